// pkg/execx/execx.go
// Package execx isolates external tool invocation behind a narrow interface
// so scan tasks can be tested with a fake executor.
package execx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/reconpipe/reconpipe/pkg/stringutil"
)

// Command describes one external tool invocation. Stdout, when non-nil,
// receives the process's standard output; tools that write their own output
// file leave it nil.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Stdout io.Writer
}

// Executor runs external tools. Run blocks until the process exits; the
// pipeline's concurrency comes from running independent tasks in parallel,
// not from overlapping work inside one invocation. Cancellation, if any, is
// the caller's context.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// Local executes commands on the host with os/exec. This is the only place
// the pipeline spawns processes.
type Local struct{}

// Run invokes the command and waits for it. A spawn failure or non-zero exit
// is returned as an error carrying the exit status and a stderr tail, and is
// fatal to the calling task.
func (Local) Run(ctx context.Context, cmd Command) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Stdout = cmd.Stdout

	var stderr bytes.Buffer
	c.Stderr = &stderr

	log.Debug().Str("tool", cmd.Name).Strs("args", cmd.Args).Msg("invoking external tool")

	if err := c.Run(); err != nil {
		if tail := stderrTail(stderr.String()); tail != "" {
			return fmt.Errorf("%s: %w: %s", cmd.Name, err, tail)
		}
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}

// stderrTail keeps the last few lines of stderr for error context; recon
// tools tend to bury the actual failure at the end of their output.
func stderrTail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	const keep = 3
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return stringutil.Ellipsis(strings.Join(lines, " | "), 256)
}
