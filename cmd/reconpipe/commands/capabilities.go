// cmd/reconpipe/commands/capabilities.go
package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reconpipe/reconpipe/pkg/engine"
	"github.com/reconpipe/reconpipe/pkg/tools"
)

func newCapabilitiesCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List the scans runnable with the currently installed tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			state, err := tools.Load(cfg.Pipeline.ToolsDir)
			if err != nil {
				return fmt.Errorf("load tool state: %w", err)
			}

			registry := engine.Default()
			available := registry.Available(state)

			names := make([]string, 0, len(available))
			for name := range available {
				names = append(names, name)
			}
			sort.Strings(names)

			heading := color.New(color.Bold)
			heading.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", "SCAN", "MODULES")
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", name, strings.Join(available[name], ", "))
			}

			if all {
				unavailable := color.New(color.FgHiBlack)
				for _, name := range registry.Names() {
					if _, ok := available[name]; !ok {
						unavailable.Fprintf(cmd.OutOrStdout(), "%-24s (missing tools)\n", name)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Also list scans whose required tools are missing")
	return cmd
}
