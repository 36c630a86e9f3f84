// File: cmd/scripts.go
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// newScriptsCmd creates the `scripts` command for inspecting stored
// scripts.
func newScriptsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scripts",
		Short: "List stored test scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openScriptStore()
			if err != nil {
				return err
			}

			names, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No scripts recorded yet.")
				return nil
			}

			for _, name := range names {
				script, err := store.Load(name)
				if err != nil {
					color.New(color.FgYellow).Fprintf(out, "%-30s (unreadable: %v)\n", name, err)
					continue
				}
				fmt.Fprintf(out, "%-30s %4d step(s)  mode=%s  %s\n",
					script.Name, len(script.Steps), script.Mode, script.Description)
			}
			return nil
		},
	}
	return cmd
}
