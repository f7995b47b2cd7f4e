// pkg/tools/state.go
// Package tools tracks which external reconnaissance tools are installed and
// gates scan execution on that state.
package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// SnapshotName is the well-known file the installer writes under the tools
// directory. The snapshot is the single source of truth for tool state.
const SnapshotName = "tool-state.json"

// ToolInfo describes one external tool as recorded by the installer.
type ToolInfo struct {
	Installed    bool     `json:"installed"`
	Version      string   `json:"version,omitempty"`
	Path         string   `json:"path,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// State is the process-wide view of installed tools. It is loaded once per
// run, read-only afterwards, and safe to share across concurrent tasks
// without synchronization. Construct it with Load and pass it by reference;
// there is no hidden package-level instance.
type State struct {
	tools  map[string]ToolInfo
	source string
}

// NewState builds a State from an explicit tool map. Used by the installer
// and by tests; pipeline code should use Load.
func NewState(tools map[string]ToolInfo) *State {
	if tools == nil {
		tools = make(map[string]ToolInfo)
	}
	return &State{tools: tools}
}

// Load reads the tool-state snapshot from toolsDir.
//
// A snapshot that has never been created is not an error: callers get an
// empty State, meaning "no tool is known installed". A corrupt snapshot
// degrades the same way so that capability discovery is never aborted by a
// bad installer run.
func Load(toolsDir string) (*State, error) {
	path := filepath.Join(toolsDir, SnapshotName)

	// On a fresh install the tools dir itself does not exist yet; only the
	// installer creates it. Check before locking: taking the flock would
	// fail on the missing directory (and would drop a lock file into a dir
	// this read path has no business creating).
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &State{tools: map[string]ToolInfo{}, source: path}, nil
	}

	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock tool-state snapshot: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &State{tools: map[string]ToolInfo{}, source: path}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tool-state snapshot: %w", err)
	}

	var tools map[string]ToolInfo
	if err := json.Unmarshal(data, &tools); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("tool-state snapshot is corrupt, treating all tools as not installed")
		return &State{tools: map[string]ToolInfo{}, source: path}, nil
	}

	return &State{tools: tools, source: path}, nil
}

// Save persists the state back to toolsDir under the snapshot lock. Only the
// installer path writes; pipeline runs treat the state as read-only.
func (s *State) Save(toolsDir string) error {
	if err := os.MkdirAll(toolsDir, 0o750); err != nil {
		return fmt.Errorf("create tools dir: %w", err)
	}
	path := filepath.Join(toolsDir, SnapshotName)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock tool-state snapshot: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	data, err := json.MarshalIndent(s.tools, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tool-state snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write tool-state snapshot: %w", err)
	}
	return nil
}

// Get returns the recorded info for a tool. Unknown tools report as not
// installed, as does any lookup against a nil State, so requirement gating
// fails closed instead of panicking when no state was loaded.
func (s *State) Get(name string) ToolInfo {
	if s == nil {
		return ToolInfo{}
	}
	return s.tools[name]
}

// Names returns the names of all tools present in the snapshot.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	return names
}

// Source returns the snapshot path the state was loaded from, if any.
func (s *State) Source() string {
	return s.source
}
