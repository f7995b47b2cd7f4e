// cmd/reconpipe/commands/root.go
// Package commands builds the reconpipe CLI: the top-level command, the
// capability listing, and the thin sequential scheduler that walks a scan's
// dependency graph.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reconpipe/reconpipe/pkg/config"
	"github.com/reconpipe/reconpipe/pkg/logging"
)

const cliExecutable = "reconpipe"

type configKeyType struct{}

var configKey = configKeyType{}

// configFromContext retrieves the loaded configuration placed on the command
// context by the root PersistentPreRunE.
func configFromContext(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, fmt.Errorf("configuration missing from context")
	}
	return cfg, nil
}

// NewCommand constructs the top-level reconpipe CLI command, wiring global
// flags, configuration loading, and logging setup.
func NewCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Reconpipe orchestrates external reconnaissance tools into one pipeline",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := manager.Get()

			if err := logging.ConfigureGlobalLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newScanCommand())
	cmd.AddCommand(newCapabilitiesCommand())
	cmd.AddCommand(newToolsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
