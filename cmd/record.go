// File: cmd/record.go
package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/observability"
	"github.com/agileandy/testweaver/internal/recorder"
	"github.com/agileandy/testweaver/internal/scriptstore"
)

// newRecordCmd creates the `record` command: an interactive loop that
// interprets instructions one at a time and saves the finished script.
func newRecordCmd() *cobra.Command {
	var (
		description string
		mode        string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "record [name]",
		Short: "Record a new test script from natural-language instructions",
		Long: `Record reads instructions from stdin, one per line, interprets each
into actions and accumulates them as script steps. Finish with "done"
(or EOF) to save the script; "abort" discards it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			name := args[0]

			kb := openKnowledgeBase(logger)
			interp, err := newInterpreter(kb, logger)
			if err != nil {
				return err
			}

			rec, err := recorder.New(name, description, schemas.Mode(mode), interp, appConfig.Interpreter.UseLLM, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			prompt := color.New(color.FgCyan)
			warn := color.New(color.FgYellow)
			prompt.Fprintf(out, "Recording %q. One instruction per line; \"done\" saves, \"abort\" discards.\n", name)

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				prompt.Fprint(out, "> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch strings.ToLower(line) {
				case "":
					continue
				case "done":
					goto save
				case "abort":
					fmt.Fprintln(out, "Recording discarded.")
					return nil
				}

				actions, err := rec.RecordInstruction(cmd.Context(), line)
				if err != nil {
					warn.Fprintf(out, "  not understood: %v\n", err)
					continue
				}
				for _, a := range actions {
					fmt.Fprintf(out, "  + %s", a.Type)
					if a.Selector != "" {
						fmt.Fprintf(out, " selector=%q", a.Selector)
					}
					if a.Value != "" {
						fmt.Fprintf(out, " value=%q", a.Value)
					}
					fmt.Fprintln(out)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read instructions: %w", err)
			}

		save:
			script, err := rec.Stop()
			if err != nil {
				return err
			}

			store, err := openScriptStore()
			if err != nil {
				return err
			}
			path, err := store.Save(script, scriptstore.Format(format))
			if err != nil {
				return err
			}

			// New scripts feed the pattern learner immediately, and the
			// mined element mappings flow back into the knowledge base.
			l := openLearner(logger)
			l.Observe(*script)
			saveLearner(l, logger)
			feedKnowledgeBase(l, kb, logger)

			color.New(color.FgGreen).Fprintf(out, "Saved %d step(s) to %s\n", len(script.Steps), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "script description")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(schemas.ModeDumb), "interpretation mode: dumb or smart")
	cmd.Flags().StringVarP(&format, "format", "f", string(scriptstore.FormatJSON), "storage format: json or yaml")
	return cmd
}
