// pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/reconpipe/reconpipe/pkg/paths"
)

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a config Manager with a fresh koanf instance.
func NewManager() *Manager {
	return &Manager{koanfInstance: koanf.New(".")}
}

// DefaultConfig returns a Config populated with hardcoded default values.
// These serve as the baseline if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Pipeline: PipelineConfig{
			ToolsDir:   paths.ToolsDir(),
			ResultsDir: filepath.Join(paths.DataDir(), "results"),
			DBLocation: "host=localhost user=reconpipe dbname=reconpipe port=5432 sslmode=disable",
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider so
// koanf knows every key up front.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"pipeline.tools_dir":   def.Pipeline.ToolsDir,
		"pipeline.results_dir": def.Pipeline.ResultsDir,
		"pipeline.db_location": def.Pipeline.DBLocation,
		"pipeline.scope_file":  def.Pipeline.ScopeFile,
		"pipeline.target_file": def.Pipeline.TargetFile,
	}
}

// BindFlags declares the pflag set that maps onto config keys. Flag names
// use dots so posflag can route them without a translation table.
func BindFlags(flags *pflag.FlagSet) {
	flags.String("pipeline.tools_dir", "", "Directory holding installed tools and the tool-state snapshot")
	flags.String("pipeline.results_dir", "", "Root directory for scan results")
	flags.String("pipeline.db_location", "", "Connection string of the result store")
	flags.String("pipeline.scope_file", "", "Scope policy file (empty: everything in scope)")
	flags.String("pipeline.target_file", "", "Seed target file, one domain per line")
	flags.String("log.level", "", "Log level (trace, debug, info, warn, error)")
	flags.String("log.format", "", "Log output format (text, json)")
}

// Load merges configuration sources in precedence order: hardcoded defaults,
// the config file (explicit path or <ConfigDir>/config.yaml when present),
// then command-line flags.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.koanfInstance.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("error loading hardcoded defaults into koanf: %w", err)
	}

	configFile := customConfigFilePath
	if configFile == "" {
		candidate := filepath.Join(paths.ConfigDir(), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
		}
	}
	if configFile != "" {
		if err := m.koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return fmt.Errorf("error loading config file %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := m.koanfInstance.Load(posflag.Provider(flags, ".", m.koanfInstance), nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}

	if err := validator.New().Struct(newCfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}
