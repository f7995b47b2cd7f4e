// pkg/task/base.go
package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reconpipe/reconpipe/pkg/execx"
)

// Base carries the shared state and run skeleton concrete scans embed. The
// derived paths are deterministic functions of the configured results
// directory and the scan's fixed subfolder and file names.
type Base struct {
	Config

	name      string
	subfolder string
	filename  string
	status    Status
	logger    zerolog.Logger
}

// NewBase wires a scan's fixed identity into the shared task state.
func NewBase(name, subfolder, filename string, cfg Config) Base {
	return Base{
		Config:    cfg,
		name:      name,
		subfolder: subfolder,
		filename:  filename,
		status:    StatusPending,
		logger:    log.With().Str("scan", name).Str("run_id", cfg.RunID.String()).Logger(),
	}
}

// Name returns the scan's registered identifier.
func (b *Base) Name() string { return b.name }

// Status returns the scan's current lifecycle state.
func (b *Base) Status() Status { return b.status }

// Logger returns the scan-scoped logger.
func (b *Base) Logger() zerolog.Logger { return b.logger }

// ResultsSubfolder is the scan's directory under the results root.
func (b *Base) ResultsSubfolder() string {
	return filepath.Join(b.ResultsDir, b.subfolder)
}

// OutputFile is the scan's artifact path inside its results subfolder.
func (b *Base) OutputFile() string {
	return filepath.Join(b.ResultsSubfolder(), b.filename)
}

// Output returns the scan's declared artifact.
func (b *Base) Output() Artifact {
	return Artifact{Path: b.OutputFile()}
}

// Execute is the run skeleton shared by every tool-wrapping scan:
//
//	artifact present        -> skip everything (idempotent)
//	requirements unmet      -> fatal precondition error
//	no targets              -> no-op, no process spawn, no parser call
//	tool failure            -> task failure, parser never called
//	tool success            -> ParseResults
//
// gather produces the scan's current target list and command builds the tool
// invocation for it, typically after writing the list to a targets file.
func (b *Base) Execute(
	ctx context.Context,
	scan Scan,
	gather func(context.Context) ([]string, error),
	command func(targets []string) (execx.Command, error),
) error {
	if b.Output().Exists() {
		b.logger.Info().Str("output", b.OutputFile()).Msg("output artifact already exists, skipping scan")
		b.status = StatusDone
		return nil
	}

	// Last-chance guard for a scan invoked directly; discovery already
	// pruned on the same policy, non-fatally.
	if requirer, ok := scan.(ToolRequirer); ok {
		if _, err := b.Tools.MeetsRequirements(b.name, requirer.Requirements(), true); err != nil {
			b.status = StatusFailed
			return err
		}
	}
	b.status = StatusRequirementsChecked

	targets, err := gather(ctx)
	if err != nil {
		b.status = StatusFailed
		return fmt.Errorf("%s: gather targets: %w", b.name, err)
	}
	if len(targets) == 0 {
		b.logger.Info().Msg("no targets to scan, nothing to do")
		b.status = StatusDone
		return nil
	}

	if err := os.MkdirAll(b.ResultsSubfolder(), 0o750); err != nil {
		b.status = StatusFailed
		return fmt.Errorf("%s: create results subfolder: %w", b.name, err)
	}

	cmd, err := command(targets)
	if err != nil {
		b.status = StatusFailed
		return fmt.Errorf("%s: build tool invocation: %w", b.name, err)
	}

	b.status = StatusRunning
	b.logger.Info().Int("targets", len(targets)).Msg("starting scan")

	if err := b.Exec.Run(ctx, cmd); err != nil {
		b.status = StatusFailed
		return fmt.Errorf("%s: %w", b.name, err)
	}

	if err := scan.ParseResults(ctx); err != nil {
		b.status = StatusFailed
		return err
	}
	b.status = StatusDone
	return nil
}

// MarkParsed records a successful parse pass. Concrete parsers call it just
// before returning.
func (b *Base) MarkParsed() { b.status = StatusParsed }

// Fail records a parse-time failure.
func (b *Base) Fail() { b.status = StatusFailed }

// WriteTargetsFile writes one target per line into the scan's results
// subfolder, for tools that take their target list as a file.
func (b *Base) WriteTargetsFile(targets []string) (string, error) {
	path := filepath.Join(b.ResultsSubfolder(), "targets.txt")
	var buf []byte
	for _, t := range targets {
		buf = append(buf, t...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(path, buf, 0o640); err != nil {
		return "", fmt.Errorf("write targets file: %w", err)
	}
	return path, nil
}
