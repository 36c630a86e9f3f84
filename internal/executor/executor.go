// internal/executor/executor.go

// Package executor runs validated test scripts against a live browser
// session, step by step, and produces a complete execution record. Steps
// are strictly sequential; a step failure is recorded and execution moves
// on unless the failure invalidates the session itself.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Skip markers for steps that were never attempted, by cause.
const (
	skippedStepError     = "skipped: fatal failure in prior step"
	skippedDeadlineError = "skipped: execution deadline exceeded"
)

// Executor states. Terminal states never transition; an Executor runs one
// script and is then spent. Retrying means constructing a new Executor,
// which guarantees a fresh browser session per attempt.
const (
	stateIdle int32 = iota
	stateRunning
	stateCompleted
	stateFailed
)

// Executor drives one script execution.
type Executor struct {
	factory schemas.DriverFactory
	cfg     config.ExecutorConfig
	logger  *zap.Logger
	state   atomic.Int32
}

// New constructs an idle Executor.
func New(factory schemas.DriverFactory, cfg config.ExecutorConfig, logger *zap.Logger) *Executor {
	return &Executor{
		factory: factory,
		cfg:     cfg,
		logger:  logger.Named("executor"),
	}
}

// Execute runs the script to completion. The returned ExecutionResult is
// complete even on failure: every step has a StepResult, attempted or
// skipped. A non-nil error is returned only for failures outside normal
// step execution (invalid script, session could not open, fatal mid-run
// failure, caller deadline); per-step failures are reported solely through
// the result. The browser session is always released before Execute
// returns.
func (e *Executor) Execute(ctx context.Context, script *schemas.TestScript) (*schemas.ExecutionResult, error) {
	if !e.state.CompareAndSwap(stateIdle, stateRunning) {
		return nil, fmt.Errorf("executor already used; construct a new one per execution")
	}

	if err := script.Validate(); err != nil {
		e.state.Store(stateFailed)
		return nil, err
	}

	log := e.logger.With(zap.String("script", script.Name))
	result := &schemas.ExecutionResult{
		ID:         uuid.New().String(),
		ScriptName: script.Name,
		StartedAt:  time.Now().UTC(),
	}

	session, err := e.factory(ctx)
	if err != nil {
		e.state.Store(stateFailed)
		return nil, schemas.NewFatalError("failed to open browser session", err)
	}
	defer func() {
		// Release on every exit path, with a context independent of the
		// caller's possibly expired deadline.
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if cerr := session.Close(closeCtx); cerr != nil {
			log.Warn("Failed to close browser session", zap.Error(cerr))
		}
	}()

	log.Info("Execution started", zap.Int("steps", len(script.Steps)), zap.String("execution_id", result.ID))

	var fatalErr error
	for idx, step := range script.Steps {
		if fatalErr != nil || ctx.Err() != nil {
			reason := skippedStepError
			if fatalErr == nil {
				reason = skippedDeadlineError
			}
			result.StepResults = append(result.StepResults, schemas.StepResult{
				StepIndex: idx,
				Success:   false,
				Error:     reason,
			})
			continue
		}

		sr := e.runStep(ctx, session, idx, step, log)
		if sr.Error != "" && schemas.IsFatal(sr.err) {
			fatalErr = sr.err
		}
		result.StepResults = append(result.StepResults, sr.StepResult)
	}

	result.TotalDurationMs = time.Since(result.StartedAt).Milliseconds()
	result.Success = fatalErr == nil && ctx.Err() == nil && result.StepsPassed() == len(result.StepResults)

	if fatalErr != nil {
		e.state.Store(stateFailed)
	} else {
		e.state.Store(stateCompleted)
	}

	e.writeResult(result, log)

	log.Info("Execution finished",
		zap.Bool("success", result.Success),
		zap.Int("steps_passed", result.StepsPassed()),
		zap.Int("steps_total", len(result.StepResults)),
		zap.Int64("duration_ms", result.TotalDurationMs))

	switch {
	case fatalErr != nil:
		return result, fatalErr
	case ctx.Err() != nil:
		return result, fmt.Errorf("execution deadline exceeded: %w", ctx.Err())
	default:
		return result, nil
	}
}

// stepOutcome pairs the recorded result with the raw error for fatality
// classification.
type stepOutcome struct {
	schemas.StepResult
	err error
}

func (e *Executor) runStep(ctx context.Context, session schemas.Driver, idx int, step schemas.TestStep, log *zap.Logger) stepOutcome {
	stepLog := log.With(zap.Int("step", idx), zap.String("description", step.Description))
	stepLog.Debug("Step started", zap.String("action", string(step.Action.Type)))

	start := time.Now()
	screenshotPath, err := e.perform(ctx, session, step.Action, stepLabel(idx, step))
	duration := time.Since(start).Milliseconds()

	sr := schemas.StepResult{
		StepIndex:      idx,
		Success:        err == nil,
		DurationMs:     duration,
		ScreenshotPath: screenshotPath,
	}
	if err != nil {
		sr.Error = err.Error()
		stepLog.Warn("Step failed", zap.Error(err), zap.Int64("duration_ms", duration))
	} else {
		stepLog.Debug("Step completed", zap.Int64("duration_ms", duration))
	}

	// Capture the page when asked to, and on any non-fatal failure for
	// debugging. Best effort: a capture failure never fails the step.
	wantShot := step.Screenshot || (err != nil && !schemas.IsFatal(err))
	if sr.ScreenshotPath == "" && wantShot && !schemas.IsFatal(err) {
		if path, shotErr := session.Screenshot(ctx, stepLabel(idx, step)); shotErr == nil {
			sr.ScreenshotPath = path
		} else {
			stepLog.Debug("Screenshot capture failed", zap.Error(shotErr))
		}
	}

	return stepOutcome{StepResult: sr, err: err}
}

// perform dispatches one action onto the capability surface. The returned
// string is a screenshot path when the action itself produced one.
func (e *Executor) perform(ctx context.Context, session schemas.Driver, action schemas.Action, label string) (string, error) {
	timeout := action.Timeout()

	switch action.Type {
	case schemas.ActionNavigate:
		return "", session.Navigate(ctx, action.Value, timeout)
	case schemas.ActionClick:
		return "", session.Click(ctx, action.Selector, timeout)
	case schemas.ActionTypeText:
		return "", session.Type(ctx, action.Selector, action.Value, timeout)
	case schemas.ActionSelect:
		return "", session.Select(ctx, action.Selector, action.Value, timeout)
	case schemas.ActionWait:
		return "", session.Wait(ctx, action.Value, waitTimeout(action))
	case schemas.ActionScroll:
		return "", session.Scroll(ctx, action.Selector, timeout)
	case schemas.ActionScreenshot:
		return session.Screenshot(ctx, label)
	case schemas.ActionAssertText:
		return "", session.AssertText(ctx, action.Selector, action.Value, timeout)
	case schemas.ActionAssertElement:
		return "", session.AssertElement(ctx, action.Selector, timeout)
	case schemas.ActionExtract:
		text, err := session.ExtractText(ctx, action.Selector, timeout)
		if err != nil {
			return "", err
		}
		e.logger.Info("Extracted text", zap.String("selector", action.Selector), zap.String("text", text))
		return "", nil
	default:
		return "", schemas.NewValidationError(fmt.Sprintf("unknown action type %q", action.Type))
	}
}

// waitTimeout makes sure an explicit millisecond wait is never cut short by
// the default per-action timeout.
func waitTimeout(action schemas.Action) time.Duration {
	timeout := action.Timeout()
	if ms, err := time.ParseDuration(action.Value + "ms"); err == nil && ms+time.Second > timeout {
		return ms + time.Second
	}
	return timeout
}

func stepLabel(idx int, step schemas.TestStep) string {
	return fmt.Sprintf("step_%02d_%s", idx, step.Action.Type)
}

// writeResult persists the execution record as JSON in the results
// directory. Failures are logged, never fatal to the run.
func (e *Executor) writeResult(result *schemas.ExecutionResult, log *zap.Logger) {
	if e.cfg.ResultsDir == "" {
		return
	}
	if err := os.MkdirAll(e.cfg.ResultsDir, 0o755); err != nil {
		log.Warn("Failed to create results directory", zap.Error(err))
		return
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Warn("Failed to marshal execution result", zap.Error(err))
		return
	}

	path := filepath.Join(e.cfg.ResultsDir, fmt.Sprintf("%s_%s.json", sanitizeName(result.ScriptName), result.ID[:8]))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("Failed to write execution result", zap.String("path", path), zap.Error(err))
		return
	}
	log.Debug("Execution result written", zap.String("path", path))
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
