// File: cmd/interpret.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/agileandy/testweaver/internal/observability"
)

// newInterpretCmd creates the `interpret` command: instruction in, action
// sequence out, no browser involved.
func newInterpretCmd() *cobra.Command {
	var useLLM bool

	cmd := &cobra.Command{
		Use:   "interpret [instruction]",
		Short: "Convert a natural-language instruction into canonical actions",
		Long: `Interpret converts an instruction such as
  "go to example.com and type 'admin' in username field"
into the validated action sequence that would be executed, without
touching a browser. Useful for inspecting how an instruction will be
understood before recording it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			instruction := strings.Join(args, " ")

			kb := openKnowledgeBase(logger)
			interp, err := newInterpreter(kb, logger)
			if err != nil {
				return err
			}

			llm := useLLM || appConfig.Interpreter.UseLLM
			actions, err := interp.Interpret(cmd.Context(), instruction, nil, llm)
			if err != nil {
				return err
			}

			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(actions, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render actions: %w", err)
			}

			color.New(color.FgCyan, color.Bold).Fprintf(cmd.OutOrStdout(), "%d action(s):\n", len(actions))
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&useLLM, "llm", false, "fall back to the configured LLM when no rule matches")
	return cmd
}
