// File: cmd/explore.go
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/browser"
	"github.com/agileandy/testweaver/internal/observability"
)

// newExploreCmd creates the `explore` command: an interactive loop against a
// live browser session, useful for discovering selectors before recording.
func newExploreCmd() *cobra.Command {
	var headless bool

	cmd := &cobra.Command{
		Use:   "explore [url]",
		Short: "Interactively drive a live browser session",
		Long: `Explore opens the given URL and reads commands from stdin, one per line:

  click <selector>         click an element
  type <selector> <text>   type text into an element
  screenshot               capture the current page
  done                     close the session and quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			browserCfg := appConfig.Browser
			browserCfg.Headless = headless
			session, err := browser.NewSession(cmd.Context(), browserCfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if cerr := session.Close(closeCtx); cerr != nil {
					logger.Warn("Failed to close browser session", zap.Error(cerr))
				}
			}()

			return runExplore(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), session, args[0], browserCfg.NavigationTimeout)
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "run the browser headless")
	return cmd
}

// runExplore drives the interactive command loop against an open session.
func runExplore(ctx context.Context, out io.Writer, in io.Reader, session schemas.Driver, url string, navTimeout time.Duration) error {
	pass := color.New(color.FgGreen)
	fail := color.New(color.FgRed)
	warn := color.New(color.FgYellow)
	prompt := color.New(color.FgCyan)

	if err := session.Navigate(ctx, url, navTimeout); err != nil {
		return err
	}
	pass.Fprintf(out, "Loaded %s\n", url)
	fmt.Fprintln(out, "Commands: click <selector>, type <selector> <text>, screenshot, done")

	timeout := schemas.DefaultTimeoutMs * time.Millisecond
	scanner := bufio.NewScanner(in)
	for {
		prompt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, " ", 3)
		var err error
		switch strings.ToLower(parts[0]) {
		case "done", "quit", "exit":
			return scanner.Err()
		case "click":
			if len(parts) < 2 {
				warn.Fprintln(out, "usage: click <selector>")
				continue
			}
			if err = session.Click(ctx, parts[1], timeout); err == nil {
				pass.Fprintln(out, "clicked")
			}
		case "type":
			if len(parts) < 3 {
				warn.Fprintln(out, "usage: type <selector> <text>")
				continue
			}
			if err = session.Type(ctx, parts[1], parts[2], timeout); err == nil {
				pass.Fprintln(out, "typed")
			}
		case "screenshot":
			var path string
			if path, err = session.Screenshot(ctx, "explore"); err == nil {
				pass.Fprintf(out, "screenshot saved: %s\n", path)
			}
		default:
			warn.Fprintln(out, "unknown command")
			continue
		}
		if err != nil {
			fail.Fprintf(out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}
