// pkg/task/task.go
// Package task defines the contract every concrete scan implements: upstream
// dependency declaration, a deterministic output artifact used as the
// idempotency marker, external tool execution, and result normalization into
// the shared store.
package task

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/reconpipe/reconpipe/pkg/db"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/scope"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

// Status tracks a scan through its lifecycle. Failed is reachable from
// Running and Parsed.
type Status string

const (
	StatusPending             Status = "pending"
	StatusRequirementsChecked Status = "requirements-checked"
	StatusRunning             Status = "running"
	StatusParsed              Status = "parsed"
	StatusDone                Status = "done"
	StatusFailed              Status = "failed"
)

// Config carries everything a scan needs to run one pipeline stage. The
// scheduler builds one Config per run and shares it across the task graph.
type Config struct {
	// TargetFile is the operator-supplied seed target list.
	TargetFile string
	// ResultsDir is the root under which each scan derives its own
	// results subfolder and output file.
	ResultsDir string
	// DBLocation is the connection string of the shared store.
	DBLocation string

	Scope *scope.Policy
	DB    db.Manager
	Tools *tools.State
	Exec  execx.Executor
	// RunID stamps log context so interleaved pipeline runs can be told
	// apart.
	RunID uuid.UUID

	// Options carries per-scan tunables keyed "<scan>.<option>". Values
	// arrive loosely typed from the config layer; scans coerce what they
	// recognize and ignore the rest.
	Options map[string]any
}

// Option looks up a per-scan tunable, falling back when unset.
func (c Config) Option(key string, fallback any) any {
	if v, ok := c.Options[key]; ok {
		return v
	}
	return fallback
}

// Scan is the uniform unit of work the external scheduler sequences.
type Scan interface {
	// Name is the scan's registered identifier.
	Name() string

	// Requires names the upstream scans that must produce this scan's
	// input before it may run. Declaring dependencies here is how scans
	// compose into a graph without knowing about scheduling.
	Requires() []string

	// Output is the scan's declared artifact. Its existence on disk is
	// the sole idempotency signal: a present artifact means the external
	// tool must not be invoked again.
	Output() Artifact

	// Run gathers targets, invokes the wrapped external tool, and hands
	// its output to ParseResults. Run blocks for the duration of the
	// subprocess.
	Run(ctx context.Context) error

	// ParseResults reads the tool's raw output and persists normalized
	// records through the database manager. Malformed records are
	// skipped; a file that cannot be opened at all fails the task.
	ParseResults(ctx context.Context) error
}

// ToolRequirer is the optional capability a scan implements to participate
// in requirement gating. Scans without it have no external-tool
// prerequisite and always pass.
type ToolRequirer interface {
	Requirements() []tools.Requirement
}

// Artifact is a scan's declared output location.
type Artifact struct {
	Path string
}

// Exists reports whether the artifact is present on disk.
func (a Artifact) Exists() bool {
	_, err := os.Stat(a.Path)
	return err == nil
}

// Ensure creates the artifact (and its directory) if it does not exist, so
// downstream idempotency checks hold even when a scan produced zero records.
func (a Artifact) Ensure() error {
	if a.Exists() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}
