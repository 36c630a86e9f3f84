// File: cmd/analyze.go
package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agileandy/testweaver/internal/analyzer"
	"github.com/agileandy/testweaver/internal/observability"
)

// newAnalyzeCmd creates the `analyze` command, the smart-mode source scan
// that feeds selectors, routes and endpoints into the knowledge base.
func newAnalyzeCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "analyze [source-dir]",
		Short: "Scan application sources and update the knowledge base",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			a := analyzer.New(logger, concurrency)
			snap, err := a.Scan(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			kb := openKnowledgeBase(logger)
			kb.Merge(*snap)
			if err := kb.Save(appConfig.Storage.KnowledgeFile); err != nil {
				return fmt.Errorf("scan succeeded but saving the knowledge base failed: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(),
				"Learned %d element(s), %d route(s), %d component(s), %d endpoint(s).\n",
				len(snap.ElementMappings), len(snap.Routes), len(snap.Components), len(snap.APIEndpoints))
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max files scanned in parallel (0 = default)")
	return cmd
}
