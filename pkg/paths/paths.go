package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir returns the config directory for reconpipe.
// Order: XDG_CONFIG_HOME/reconpipe, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reconpipe")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Reconpipe")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reconpipe")
}

// DataDir returns the data directory for reconpipe. Scan results and the
// pipeline database default to subdirectories of this path.
// Order: XDG_DATA_HOME/reconpipe, platform-specific fallback.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "reconpipe")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Reconpipe")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "reconpipe")
}

// ToolsDir returns the directory that holds installed external tools and the
// tool-state snapshot written by the installer.
func ToolsDir() string {
	return filepath.Join(DataDir(), "tools")
}
