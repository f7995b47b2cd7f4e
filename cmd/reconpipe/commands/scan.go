// cmd/reconpipe/commands/scan.go
package commands

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/reconpipe/reconpipe/pkg/db"
	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/execx"
	"github.com/reconpipe/reconpipe/pkg/scope"
	"github.com/reconpipe/reconpipe/pkg/task"
	"github.com/reconpipe/reconpipe/pkg/tools"
	"github.com/reconpipe/reconpipe/pkg/workspace"

	// Plugin packages register their scans with the capability registry.
	_ "github.com/reconpipe/reconpipe/pkg/modules/recon"
	_ "github.com/reconpipe/reconpipe/pkg/modules/web"
)

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <name>",
		Short: "Run a scan and the upstream scans it depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			state, err := tools.Load(cfg.Pipeline.ToolsDir)
			if err != nil {
				return fmt.Errorf("load tool state: %w", err)
			}

			policy, err := scope.LoadPolicy(cfg.Pipeline.ScopeFile)
			if err != nil {
				return fmt.Errorf("load scope policy: %w", err)
			}

			resultsDir, err := workspace.Prepare(cfg.Pipeline.ResultsDir)
			if err != nil {
				return err
			}

			manager, err := db.Open(cfg.Pipeline.DBLocation)
			if err != nil {
				return err
			}
			defer manager.Close() //nolint:errcheck

			taskCfg := task.Config{
				TargetFile: cfg.Pipeline.TargetFile,
				ResultsDir: resultsDir,
				DBLocation: cfg.Pipeline.DBLocation,
				Scope:      policy,
				DB:         manager,
				Tools:      state,
				Exec:       execx.Local{},
				RunID:      uuid.New(),
				Options:    cfg.ScanOptions(),
			}

			return runPipeline(cmd.Context(), engine.Default(), args[0], taskCfg)
		},
	}
	return cmd
}

// runPipeline is the collaborating scheduler: it resolves the requested scan
// and its transitive dependencies into dependency order and runs them one at
// a time. Each task's own artifact check keeps re-runs idempotent.
func runPipeline(ctx context.Context, registry *engine.Registry, name string, cfg task.Config) error {
	order, err := resolveOrder(registry, name, cfg, nil)
	if err != nil {
		return err
	}

	for _, scan := range order {
		log.Info().Str("scan", scan.Name()).Msg("running pipeline stage")
		if err := scan.Run(ctx); err != nil {
			return fmt.Errorf("pipeline stage %s: %w", scan.Name(), err)
		}
	}
	return nil
}

// resolveOrder walks Requires() depth-first, returning tasks in dependency
// order. A cycle in scan declarations is a plugin bug and fails resolution.
func resolveOrder(registry *engine.Registry, name string, cfg task.Config, path []string) ([]task.Scan, error) {
	for _, seen := range path {
		if seen == name {
			return nil, fmt.Errorf("dependency cycle through scan %q", name)
		}
	}

	scan, err := registry.New(name, cfg)
	if err != nil {
		return nil, err
	}

	var order []task.Scan
	for _, dep := range scan.Requires() {
		upstream, err := resolveOrder(registry, dep, cfg, append(path, name))
		if err != nil {
			return nil, err
		}
		for _, u := range upstream {
			if !containsScan(order, u.Name()) {
				order = append(order, u)
			}
		}
	}
	return append(order, scan), nil
}

func containsScan(order []task.Scan, name string) bool {
	for _, s := range order {
		if s.Name() == name {
			return true
		}
	}
	return false
}
