// Package workspace prepares the on-disk layout scan results live in.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Prepare ensures the results root exists and returns its absolute path.
// An empty root falls back to the platform default.
func Prepare(root string) (string, error) {
	if root == "" {
		var err error
		root, err = defaultRoot()
		if err != nil {
			return "", err
		}
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve results path: %w", err)
	}

	if err := os.MkdirAll(absRoot, 0o750); err != nil {
		return "", fmt.Errorf("create results root: %w", err)
	}

	return absRoot, nil
}

func defaultRoot() (string, error) {
	if dir := os.Getenv("RECONPIPE_WORKSPACE"); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Application Support", "reconpipe", "results"), nil
	case "windows":
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "reconpipe", "results"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "AppData", "Roaming", "reconpipe", "results"), nil
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "reconpipe", "results"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if home == "" {
			return "", errors.New("cannot determine results directory")
		}
		return filepath.Join(home, ".local", "share", "reconpipe", "results"), nil
	}
}
