// pkg/config/types.go
package config

// Config is the fully merged application configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Pipeline PipelineConfig `koanf:"pipeline"`

	// Scans holds per-scan tunables keyed by scan name, e.g.
	// scans.masscan.rate. Values stay loosely typed; each scan coerces
	// the options it recognizes.
	Scans map[string]map[string]any `koanf:"scans"`
}

// ScanOptions flattens the Scans section into "<scan>.<option>" keys for the
// task layer.
func (c Config) ScanOptions() map[string]any {
	if len(c.Scans) == 0 {
		return nil
	}
	options := make(map[string]any)
	for scan, opts := range c.Scans {
		for key, value := range opts {
			options[scan+"."+key] = value
		}
	}
	return options
}

// LogConfig controls global logging behavior.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// PipelineConfig locates the pipeline's inputs and outputs.
type PipelineConfig struct {
	// ToolsDir holds installed external tools and the tool-state
	// snapshot the installer writes.
	ToolsDir string `koanf:"tools_dir" validate:"required"`

	// ResultsDir is the root under which every scan derives its results
	// subfolder.
	ResultsDir string `koanf:"results_dir" validate:"required"`

	// DBLocation is the connection string of the shared result store.
	DBLocation string `koanf:"db_location" validate:"required"`

	// ScopeFile is the optional Burp-style scope policy; empty means
	// every hostname is in scope.
	ScopeFile string `koanf:"scope_file"`

	// TargetFile seeds the pipeline with the domains under assessment.
	TargetFile string `koanf:"target_file"`
}
