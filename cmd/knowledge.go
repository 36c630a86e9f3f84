// File: cmd/knowledge.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/agileandy/testweaver/internal/observability"
)

// newKnowledgeCmd creates the `knowledge` command group for inspecting and
// editing the knowledge base.
func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect or edit the knowledge base",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the knowledge base as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kb := openKnowledgeBase(observability.GetLogger())
			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(kb.Snapshot(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render knowledge base: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set [name] [selector]",
		Short: "Map a semantic element name to a selector",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			kb := openKnowledgeBase(logger)
			kb.SetMapping(args[0], args[1])
			if err := kb.Save(appConfig.Storage.KnowledgeFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}
