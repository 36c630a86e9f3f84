// File: cmd/patterns.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/internal/observability"
)

// newPatternsCmd creates the `patterns` command, which reports recurring
// action sequences mined across all observed scripts.
func newPatternsCmd() *cobra.Command {
	var (
		minCount int
		observe  bool
	)

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Show recurring action patterns across recorded scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			l := openLearner(logger)

			// --observe re-scans the script store so patterns include
			// scripts created outside the record command.
			if observe {
				store, err := openScriptStore()
				if err != nil {
					return err
				}
				names, err := store.List()
				if err != nil {
					return err
				}
				for _, name := range names {
					script, err := store.Load(name)
					if err != nil {
						logger.Warn("Skipping unreadable script", zap.String("name", name), zap.Error(err))
						continue
					}
					l.Observe(*script)
				}
				saveLearner(l, logger)
				feedKnowledgeBase(l, openKnowledgeBase(logger), logger)
			}

			patterns := l.CommonPatterns(minCount)
			out := cmd.OutOrStdout()
			if len(patterns) == 0 {
				fmt.Fprintf(out, "No patterns with count >= %d.\n", minCount)
				return nil
			}

			bold := color.New(color.Bold)
			for _, p := range patterns {
				seq := make([]string, len(p.Sequence))
				for i, a := range p.Sequence {
					seq[i] = string(a)
				}
				bold.Fprintf(out, "%3dx  %s\n", p.Count, strings.Join(seq, " > "))
				fmt.Fprintf(out, "      seen in: %s\n", strings.Join(p.Examples, ", "))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&minCount, "min-count", 2, "minimum observations for a pattern to be reported")
	cmd.Flags().BoolVar(&observe, "observe", false, "re-observe every stored script before reporting")
	return cmd
}
