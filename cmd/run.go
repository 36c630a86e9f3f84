// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/browser"
	"github.com/agileandy/testweaver/internal/executor"
	"github.com/agileandy/testweaver/internal/observability"
)

// newRunCmd creates the `run` command, which executes a stored script
// against a fresh browser session.
func newRunCmd() *cobra.Command {
	var (
		timeout  time.Duration
		headless bool
	)

	cmd := &cobra.Command{
		Use:   "run [script]",
		Short: "Execute a stored test script in a browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			store, err := openScriptStore()
			if err != nil {
				return err
			}
			script, err := store.Load(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			browserCfg := appConfig.Browser
			browserCfg.Headless = headless
			factory := browser.NewFactory(browserCfg, logger)
			exec := executor.New(factory, appConfig.Executor, logger)

			result, execErr := exec.Execute(ctx, script)
			if result != nil {
				printResult(cmd, result)

				// Feed the run into the pattern learner and its element
				// mappings into the knowledge base. Store failures never
				// fail the run itself.
				l := openLearner(logger)
				l.Observe(*script)
				saveLearner(l, logger)
				feedKnowledgeBase(l, openKnowledgeBase(logger), logger)
			}
			if execErr != nil {
				return execErr
			}
			if !result.Success {
				return fmt.Errorf("script %q failed: %d/%d steps passed",
					script.Name, result.StepsPassed(), len(result.StepResults))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "overall deadline for the execution (e.g. 5m)")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	return cmd
}

func printResult(cmd *cobra.Command, result *schemas.ExecutionResult) {
	out := cmd.OutOrStdout()
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	dim := color.New(color.Faint)

	for _, sr := range result.StepResults {
		if sr.Success {
			pass.Fprintf(out, "  ✓ step %d", sr.StepIndex)
		} else {
			fail.Fprintf(out, "  ✗ step %d", sr.StepIndex)
		}
		dim.Fprintf(out, " (%dms)", sr.DurationMs)
		if sr.Error != "" {
			fmt.Fprintf(out, "  %s", sr.Error)
		}
		if sr.ScreenshotPath != "" {
			dim.Fprintf(out, "  [%s]", sr.ScreenshotPath)
		}
		fmt.Fprintln(out)
	}

	if result.Success {
		pass.Fprintf(out, "PASS %s", result.ScriptName)
	} else {
		fail.Fprintf(out, "FAIL %s", result.ScriptName)
	}
	fmt.Fprintf(out, " - %d/%d steps, %dms\n",
		result.StepsPassed(), len(result.StepResults), result.TotalDurationMs)
}
