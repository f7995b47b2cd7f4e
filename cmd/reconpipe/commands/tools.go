// cmd/reconpipe/commands/tools.go
package commands

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/reconpipe/reconpipe/pkg/tools"
)

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Show the installed state of external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			state, err := tools.Load(cfg.Pipeline.ToolsDir)
			if err != nil {
				return fmt.Errorf("load tool state: %w", err)
			}

			names := state.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tool-state snapshot found; run the installer first")
				return nil
			}
			sort.Strings(names)

			installed := color.New(color.FgGreen).SprintFunc()
			missing := color.New(color.FgHiRed).SprintFunc()
			for _, name := range names {
				info := state.Get(name)
				mark := missing("missing")
				if info.Installed {
					mark = installed("installed")
					if info.Version != "" {
						mark += " " + info.Version
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", name, mark)
			}
			return nil
		},
	}
}
