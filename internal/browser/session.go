// internal/browser/session.go

// Package browser implements the capability surface the executor drives,
// backed by a headless Chrome instance over the DevTools protocol. One
// Session owns exactly one browser process and tab; sessions are never
// shared across script executions.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/config"
)

// Session drives one isolated browser tab. It implements schemas.Driver.
type Session struct {
	id          string
	cfg         config.BrowserConfig
	logger      *zap.Logger
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	monitor     *netMonitor
	closeOnce   sync.Once
}

var _ schemas.Driver = (*Session)(nil)

// NewFactory returns a DriverFactory that opens a fresh Session per call.
func NewFactory(cfg config.BrowserConfig, logger *zap.Logger) schemas.DriverFactory {
	return func(ctx context.Context) (schemas.Driver, error) {
		return NewSession(ctx, cfg, logger)
	}
}

// NewSession launches a browser, opens a tab and pins the viewport. The
// fixed viewport is part of the determinism contract: repeated runs of the
// same script render identically.
func NewSession(parentCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	id := uuid.New().String()
	log := logger.Named("browser").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, buildAllocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          id,
		cfg:         cfg,
		logger:      log,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// Starting the tab also confirms the browser process is alive.
	startCtx, cancel := context.WithTimeout(tabCtx, 30*time.Second)
	defer cancel()
	err := chromedp.Run(startCtx,
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight), 1.0, false),
		chromedp.Navigate("about:blank"),
	)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s.monitor = newNetMonitor(tabCtx, log)
	log.Debug("Browser session started",
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return s, nil
}

// buildAllocatorOptions assembles the launch flags for a reproducible
// headless instance.
func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("disable-extensions", true),
		// Animations introduce render-timing variance between runs.
		chromedp.Flag("force-prefers-reduced-motion", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// run executes chromedp actions under both the session context and a
// per-operation timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.tabCtx.Err(); err != nil {
		return schemas.NewFatalError("browser session is gone", err)
	}

	opCtx, cancel := mergeContexts(s.tabCtx, ctx)
	defer cancel()
	opCtx, opCancel := context.WithTimeout(opCtx, timeout)
	defer opCancel()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && s.tabCtx.Err() != nil {
		return schemas.NewFatalError("browser session lost during action", err)
	}
	return err
}

// mergeContexts derives a context from primary that is also cancelled when
// secondary ends, so a caller deadline interrupts an in-flight CDP call.
func mergeContexts(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// selOpt picks the chromedp query strategy: XPath expressions route through
// the DOM search API, everything else is a CSS query.
func selOpt(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if schemas.IsFatal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schemas.NewActionTimeout(fmt.Sprintf("navigation to %s did not finish within %s", url, timeout), err)
	}
	return schemas.NewNavigationError(url, err)
}

// Click waits for the element to be visible and clicks it.
func (s *Session) Click(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, selOpt(selector)),
		chromedp.Click(selector, selOpt(selector)),
	)
	return s.classifyElementErr(err, selector)
}

// Type clears the target field and types text into it.
func (s *Session) Type(ctx context.Context, selector, text string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, selOpt(selector)),
		chromedp.Clear(selector, selOpt(selector)),
		chromedp.SendKeys(selector, text, selOpt(selector)),
	)
	return s.classifyElementErr(err, selector)
}

// Select sets the value of a select element and fires its change event.
func (s *Session) Select(ctx context.Context, selector, value string, timeout time.Duration) error {
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, selOpt(selector)),
		chromedp.SetValue(selector, value, selOpt(selector)),
	)
	return s.classifyElementErr(err, selector)
}

var msValueRegex = regexp.MustCompile(`^\d+$`)

// Wait blocks on a condition: document load, network idle, or an explicit
// millisecond duration.
func (s *Session) Wait(ctx context.Context, condition string, timeout time.Duration) error {
	var err error
	switch {
	case condition == schemas.WaitLoad:
		err = s.run(ctx, timeout, chromedp.Poll("document.readyState === 'complete'", nil))
	case condition == schemas.WaitNetworkIdle:
		err = s.waitNetworkIdle(ctx, timeout)
	case msValueRegex.MatchString(condition):
		ms, convErr := strconv.Atoi(condition)
		if convErr != nil {
			return schemas.NewValidationError(fmt.Sprintf("invalid wait value %q", condition))
		}
		err = s.run(ctx, timeout, chromedp.Sleep(time.Duration(ms)*time.Millisecond))
	default:
		return schemas.NewValidationError(fmt.Sprintf("invalid wait condition %q", condition))
	}

	if err == nil || schemas.IsFatal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schemas.NewActionTimeout(fmt.Sprintf("wait %q did not complete within %s", condition, timeout), err)
	}
	return schemas.NewActionTimeout(fmt.Sprintf("wait %q failed", condition), err)
}

func (s *Session) waitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if err := s.tabCtx.Err(); err != nil {
		return schemas.NewFatalError("browser session is gone", err)
	}
	opCtx, cancel := mergeContexts(s.tabCtx, ctx)
	defer cancel()
	opCtx, opCancel := context.WithTimeout(opCtx, timeout)
	defer opCancel()

	quiet := s.cfg.NetworkQuietPeriod
	if quiet <= 0 {
		quiet = 1500 * time.Millisecond
	}
	return s.monitor.WaitIdle(opCtx, quiet)
}

// Scroll brings the element into view, or scrolls the page one viewport
// height when no selector is given.
func (s *Session) Scroll(ctx context.Context, selector string, timeout time.Duration) error {
	if selector == "" {
		err := s.run(ctx, timeout, chromedp.Evaluate("window.scrollBy(0, window.innerHeight)", nil))
		if err != nil && !schemas.IsFatal(err) {
			return schemas.NewActionTimeout("page scroll failed", err)
		}
		return err
	}
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, selOpt(selector)),
		chromedp.ScrollIntoView(selector, selOpt(selector)),
	)
	return s.classifyElementErr(err, selector)
}

// Screenshot captures the full page into the configured directory and
// returns the file path.
func (s *Session) Screenshot(ctx context.Context, label string) (string, error) {
	var buf []byte
	err := s.run(ctx, 30*time.Second, chromedp.FullScreenshot(&buf, 90))
	if err != nil {
		if schemas.IsFatal(err) {
			return "", err
		}
		return "", schemas.NewActionTimeout("screenshot capture failed", err)
	}

	if err := os.MkdirAll(s.cfg.ScreenshotsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshots directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.png", sanitizeLabel(label), s.id[:8])
	path := filepath.Join(s.cfg.ScreenshotsDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}

	s.logger.Debug("Screenshot captured", zap.String("path", path))
	return path, nil
}

// ExtractText returns the element's text content with volatile substrings
// filtered out.
func (s *Session) ExtractText(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	var text string
	err := s.run(ctx, timeout,
		chromedp.WaitVisible(selector, selOpt(selector)),
		chromedp.Text(selector, &text, selOpt(selector)),
	)
	if err != nil {
		return "", s.classifyElementErr(err, selector)
	}
	return FilterVolatile(text), nil
}

// AssertText checks that the element's filtered text contains the expected
// substring. Expected text is filtered with the same rules so assertions on
// volatile content compare like with like.
func (s *Session) AssertText(ctx context.Context, selector, text string, timeout time.Duration) error {
	actual, err := s.ExtractText(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if !strings.Contains(actual, FilterVolatile(text)) {
		return schemas.NewAssertionError(selector, fmt.Sprintf("expected text %q, element shows %q", text, truncate(actual, 200)))
	}
	return nil
}

// AssertElement checks that the element resolves and is visible.
func (s *Session) AssertElement(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, selOpt(selector)))
	return s.classifyElementErr(err, selector)
}

// Close tears the session down. Safe to call more than once; the tab and
// the browser process are always released.
func (s *Session) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Browser session closed")
	})
	return nil
}

// classifyElementErr maps raw chromedp failures onto the typed error
// taxonomy. A deadline on a selector-scoped action means the element never
// became actionable.
func (s *Session) classifyElementErr(err error, selector string) error {
	if err == nil {
		return nil
	}
	if schemas.IsFatal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return schemas.NewElementNotFound(selector, err)
	}
	return &schemas.ActionError{
		Code:     schemas.ErrCodeElementNotFound,
		Selector: selector,
		Msg:      "action on element failed",
		Err:      err,
	}
}

var labelSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeLabel(label string) string {
	if label == "" {
		label = "screenshot"
	}
	return strings.Trim(labelSanitizer.ReplaceAllString(label, "_"), "_")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
