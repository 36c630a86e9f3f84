// internal/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDriver is a scriptable in-memory capability surface. Errors are
// looked up by operation key ("click #btn", "navigate", ...).
type fakeDriver struct {
	mu         sync.Mutex
	ops        []string
	errs       map[string]error
	closeCalls int
	delay      time.Duration
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{errs: make(map[string]error)}
}

func (f *fakeDriver) do(ctx context.Context, key string) error {
	f.mu.Lock()
	f.ops = append(f.ops, key)
	err := f.errs[key]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return schemas.NewActionTimeout(key, ctx.Err())
		case <-time.After(delay):
		}
	}
	return err
}

func (f *fakeDriver) Navigate(ctx context.Context, url string, _ time.Duration) error {
	return f.do(ctx, "navigate "+url)
}
func (f *fakeDriver) Click(ctx context.Context, sel string, _ time.Duration) error {
	return f.do(ctx, "click "+sel)
}
func (f *fakeDriver) Type(ctx context.Context, sel, text string, _ time.Duration) error {
	return f.do(ctx, "type "+sel)
}
func (f *fakeDriver) Select(ctx context.Context, sel, value string, _ time.Duration) error {
	return f.do(ctx, "select "+sel)
}
func (f *fakeDriver) Wait(ctx context.Context, condition string, _ time.Duration) error {
	return f.do(ctx, "wait "+condition)
}
func (f *fakeDriver) Scroll(ctx context.Context, sel string, _ time.Duration) error {
	return f.do(ctx, "scroll "+sel)
}
func (f *fakeDriver) Screenshot(ctx context.Context, label string) (string, error) {
	if err := f.do(ctx, "screenshot"); err != nil {
		return "", err
	}
	return "/tmp/screens/" + label + ".png", nil
}
func (f *fakeDriver) ExtractText(ctx context.Context, sel string, _ time.Duration) (string, error) {
	return "some text", f.do(ctx, "extract "+sel)
}
func (f *fakeDriver) AssertText(ctx context.Context, sel, text string, _ time.Duration) error {
	return f.do(ctx, "assert_text "+sel)
}
func (f *fakeDriver) AssertElement(ctx context.Context, sel string, _ time.Duration) error {
	return f.do(ctx, "assert_element "+sel)
}
func (f *fakeDriver) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeDriver) opCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops)
}

func factoryFor(d schemas.Driver) schemas.DriverFactory {
	return func(context.Context) (schemas.Driver, error) { return d, nil }
}

func newExecutor(t *testing.T, d schemas.Driver) *Executor {
	t.Helper()
	cfg := config.ExecutorConfig{ResultsDir: t.TempDir()}
	return New(factoryFor(d), cfg, zap.NewNop())
}

func step(desc string, action schemas.Action) schemas.TestStep {
	return schemas.TestStep{Description: desc, Action: action}
}

func validScript(steps ...schemas.TestStep) *schemas.TestScript {
	return &schemas.TestScript{Name: "checkout-flow", Mode: schemas.ModeDumb, Steps: steps}
}

func TestExecuteSingleFailingStep(t *testing.T) {
	d := newFakeDriver()
	d.errs["click #never"] = schemas.NewElementNotFound("#never", errors.New("deadline exceeded"))

	result, err := newExecutor(t, d).Execute(context.Background(), validScript(
		step("click a ghost", schemas.Action{Type: schemas.ActionClick, Selector: "#never"}),
	))
	require.NoError(t, err)
	require.Len(t, result.StepResults, 1)
	assert.False(t, result.Success)
	assert.False(t, result.StepResults[0].Success)
	assert.Contains(t, result.StepResults[0].Error, "ELEMENT_NOT_FOUND")
	assert.Equal(t, 1, d.closeCalls)
}

func TestExecuteContinuesPastNonFatalFailure(t *testing.T) {
	d := newFakeDriver()
	d.errs["click #missing"] = schemas.NewElementNotFound("#missing", nil)

	result, err := newExecutor(t, d).Execute(context.Background(), validScript(
		step("open page", schemas.Action{Type: schemas.ActionNavigate, Value: "https://example.com"}),
		step("click a ghost", schemas.Action{Type: schemas.ActionClick, Selector: "#missing"}),
		step("take stock", schemas.Action{Type: schemas.ActionScreenshot}),
	))
	require.NoError(t, err)
	require.Len(t, result.StepResults, 3)
	assert.False(t, result.Success)
	assert.True(t, result.StepResults[0].Success)
	assert.False(t, result.StepResults[1].Success)
	assert.True(t, result.StepResults[2].Success)
	assert.Equal(t, 2, result.StepsPassed())
}

func TestExecuteFatalFailureSkipsRemainingSteps(t *testing.T) {
	d := newFakeDriver()
	d.errs["click #crash"] = schemas.NewFatalError("browser process died", nil)

	result, err := newExecutor(t, d).Execute(context.Background(), validScript(
		step("open page", schemas.Action{Type: schemas.ActionNavigate, Value: "https://example.com"}),
		step("crash the browser", schemas.Action{Type: schemas.ActionClick, Selector: "#crash"}),
		step("never runs", schemas.Action{Type: schemas.ActionClick, Selector: "#after"}),
		step("never runs either", schemas.Action{Type: schemas.ActionScreenshot}),
	))
	require.Error(t, err)
	assert.True(t, schemas.IsFatal(err))

	require.Len(t, result.StepResults, 4)
	assert.False(t, result.Success)
	assert.True(t, result.StepResults[0].Success)
	assert.False(t, result.StepResults[1].Success)
	assert.Equal(t, "skipped: fatal failure in prior step", result.StepResults[2].Error)
	assert.Equal(t, "skipped: fatal failure in prior step", result.StepResults[3].Error)

	// The skipped steps were never attempted against the driver.
	for _, op := range d.ops {
		assert.NotContains(t, op, "#after")
	}
	assert.Equal(t, 1, d.closeCalls)
}

func TestExecuteSessionAlwaysReleased(t *testing.T) {
	d := newFakeDriver()
	d.errs["navigate https://example.com"] = schemas.NewFatalError("session lost", nil)

	_, err := newExecutor(t, d).Execute(context.Background(), validScript(
		step("open page", schemas.Action{Type: schemas.ActionNavigate, Value: "https://example.com"}),
	))
	require.Error(t, err)
	assert.Equal(t, 1, d.closeCalls)
}

func TestExecuteRejectsInvalidScriptBeforeOpeningSession(t *testing.T) {
	factoryCalled := false
	factory := func(context.Context) (schemas.Driver, error) {
		factoryCalled = true
		return newFakeDriver(), nil
	}
	e := New(factory, config.ExecutorConfig{}, zap.NewNop())

	bad := validScript(step("bad", schemas.Action{Type: schemas.ActionClick})) // click without selector
	_, err := e.Execute(context.Background(), bad)

	var ve *schemas.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.False(t, factoryCalled)
}

func TestExecuteRejectsReuse(t *testing.T) {
	d := newFakeDriver()
	e := newExecutor(t, d)

	_, err := e.Execute(context.Background(), validScript(
		step("shot", schemas.Action{Type: schemas.ActionScreenshot}),
	))
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), validScript(
		step("shot", schemas.Action{Type: schemas.ActionScreenshot}),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
}

func TestExecuteFactoryFailureIsFatal(t *testing.T) {
	factory := func(context.Context) (schemas.Driver, error) {
		return nil, errors.New("chrome not found")
	}
	e := New(factory, config.ExecutorConfig{}, zap.NewNop())

	result, err := e.Execute(context.Background(), validScript(
		step("shot", schemas.Action{Type: schemas.ActionScreenshot}),
	))
	assert.Nil(t, result)
	assert.True(t, schemas.IsFatal(err))
}

func TestExecuteDeadlineSkipsRemainingSteps(t *testing.T) {
	d := newFakeDriver()
	d.delay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := newExecutor(t, d).Execute(ctx, validScript(
		step("slow navigate", schemas.Action{Type: schemas.ActionNavigate, Value: "https://example.com"}),
		step("never reached", schemas.Action{Type: schemas.ActionClick, Selector: "#later"}),
	))
	require.Error(t, err)
	require.Len(t, result.StepResults, 2)
	assert.False(t, result.Success)
	assert.False(t, result.StepResults[0].Success)
	assert.Equal(t, "skipped: execution deadline exceeded", result.StepResults[1].Error)
	assert.Equal(t, 1, d.closeCalls)
}

func TestWaitTimeoutCoversExplicitMillisecondWaits(t *testing.T) {
	// An explicit wait longer than the default action timeout gets its own
	// deadline with headroom; short waits keep the default.
	long := schemas.Action{Type: schemas.ActionWait, Value: "60000"}
	assert.Equal(t, 61*time.Second, waitTimeout(long))

	short := schemas.Action{Type: schemas.ActionWait, Value: "500"}
	assert.Equal(t, short.Timeout(), waitTimeout(short))

	load := schemas.Action{Type: schemas.ActionWait, Value: "load"}
	assert.Equal(t, load.Timeout(), waitTimeout(load))
}

func TestExecuteRecordsRequestedScreenshot(t *testing.T) {
	d := newFakeDriver()

	script := validScript(
		schemas.TestStep{
			Description: "open and capture",
			Action:      schemas.Action{Type: schemas.ActionNavigate, Value: "https://example.com"},
			Screenshot:  true,
		},
	)
	result, err := newExecutor(t, d).Execute(context.Background(), script)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.StepResults[0].ScreenshotPath)
}

func TestExecuteWritesResultFile(t *testing.T) {
	d := newFakeDriver()
	resultsDir := t.TempDir()
	e := New(factoryFor(d), config.ExecutorConfig{ResultsDir: resultsDir}, zap.NewNop())

	result, err := e.Execute(context.Background(), validScript(
		step("shot", schemas.Action{Type: schemas.ActionScreenshot}),
	))
	require.NoError(t, err)
	require.True(t, result.Success)

	entries, err := os.ReadDir(resultsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "checkout-flow_"))

	data, err := os.ReadFile(filepath.Join(resultsDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"script_name": "checkout-flow"`)
}

func TestExecuteOrderIsStrictlySequential(t *testing.T) {
	d := newFakeDriver()

	_, err := newExecutor(t, d).Execute(context.Background(), validScript(
		step("first", schemas.Action{Type: schemas.ActionNavigate, Value: "https://example.com"}),
		step("second", schemas.Action{Type: schemas.ActionTypeText, Selector: "#q", Value: "hi"}),
		step("third", schemas.Action{Type: schemas.ActionClick, Selector: "#go"}),
	))
	require.NoError(t, err)
	require.Equal(t, []string{"navigate https://example.com", "type #q", "click #go"}, d.ops)
}
