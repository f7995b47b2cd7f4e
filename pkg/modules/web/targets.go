// pkg/modules/web/targets.go
// Package web provides the scans that assess discovered web surface:
// target gathering and subdomain takeover detection.
package web

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/task"
)

// GatherWebTargets collects every known hostname and address into the
// web-target list downstream web scans consume. It wraps no external tool.
//
// This is the task that consults the scope policy: a hostname that is not
// in-bounds never reaches a web scan.
type GatherWebTargets struct {
	task.Base
}

// NewGatherWebTargets builds the task for one pipeline stage.
func NewGatherWebTargets(cfg task.Config) *GatherWebTargets {
	t := &GatherWebTargets{}
	t.Base = task.NewBase("gather-web-targets", "web-targets", "webtargets.txt", cfg)
	return t
}

// Requires pulls hostnames from amass's discoveries.
func (t *GatherWebTargets) Requires() []string { return []string{"amass"} }

// Run writes the scope-filtered target list to the task's artifact. No
// subprocess is involved; the artifact still serves as the idempotency
// marker.
func (t *GatherWebTargets) Run(ctx context.Context) error {
	logger := t.Logger()
	if t.Output().Exists() {
		logger.Info().Str("output", t.OutputFile()).Msg("output artifact already exists, skipping scan")
		return nil
	}

	hostnames, err := t.DB.GetAllHostnames()
	if err != nil {
		t.Fail()
		return fmt.Errorf("gather-web-targets: %w", err)
	}
	addresses, err := t.DB.GetAllIPAddresses()
	if err != nil {
		t.Fail()
		return fmt.Errorf("gather-web-targets: %w", err)
	}

	var targets []string
	for _, hostname := range hostnames {
		if !t.Scope.IsInScope(hostname) {
			logger.Debug().Str("hostname", hostname).Msg("hostname out of scope, dropping")
			continue
		}
		targets = append(targets, hostname)
	}
	targets = append(targets, addresses...)

	if err := t.Output().Ensure(); err != nil {
		t.Fail()
		return fmt.Errorf("gather-web-targets: create artifact: %w", err)
	}

	var buf strings.Builder
	for _, target := range targets {
		buf.WriteString(target)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(t.OutputFile(), []byte(buf.String()), 0o640); err != nil {
		t.Fail()
		return fmt.Errorf("gather-web-targets: write artifact: %w", err)
	}

	logger.Info().Int("targets", len(targets)).Msg("web target list written")
	return t.ParseResults(ctx)
}

// ParseResults has nothing to normalize; the artifact itself is the output.
func (t *GatherWebTargets) ParseResults(context.Context) error {
	if err := t.Output().Ensure(); err != nil {
		t.Fail()
		return fmt.Errorf("gather-web-targets: %w", err)
	}
	t.MarkParsed()
	return nil
}

func init() {
	engine.Register("gather-web-targets", "web/targets", func(cfg task.Config) (task.Scan, error) {
		return NewGatherWebTargets(cfg), nil
	})
}
