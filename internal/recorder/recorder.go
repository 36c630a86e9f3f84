// internal/recorder/recorder.go

// Package recorder assembles test scripts from natural-language
// instructions, one session per script. The finished script is immutable;
// recording again produces a new script rather than mutating an old one.
package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
)

// Interpreter is the slice of the NL interpreter the recorder needs.
type Interpreter interface {
	Interpret(ctx context.Context, text string, prior []schemas.Action, useLLM bool) ([]schemas.Action, error)
}

// Recorder accumulates steps for one script.
type Recorder struct {
	mu       sync.Mutex
	name     string
	desc     string
	mode     schemas.Mode
	useLLM   bool
	steps    []schemas.TestStep
	finished bool
	interp   Interpreter
	logger   *zap.Logger
}

// New starts a recording session for a named script.
func New(name, description string, mode schemas.Mode, interp Interpreter, useLLM bool, logger *zap.Logger) (*Recorder, error) {
	if name == "" {
		return nil, schemas.NewValidationError("script name is required")
	}
	if mode != schemas.ModeDumb && mode != schemas.ModeSmart {
		return nil, schemas.NewValidationError(fmt.Sprintf("invalid mode %q", mode))
	}
	return &Recorder{
		name:   name,
		desc:   description,
		mode:   mode,
		useLLM: useLLM,
		interp: interp,
		logger: logger.Named("recorder").With(zap.String("script", name)),
	}, nil
}

// RecordInstruction interprets one instruction and appends the resulting
// actions as steps. Each clause of the instruction becomes its own step
// whose description is the original text.
func (r *Recorder) RecordInstruction(ctx context.Context, text string) ([]schemas.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return nil, fmt.Errorf("recording for %q already stopped", r.name)
	}

	prior := make([]schemas.Action, 0, len(r.steps))
	for _, step := range r.steps {
		prior = append(prior, step.Action)
	}

	actions, err := r.interp.Interpret(ctx, text, prior, r.useLLM)
	if err != nil {
		return nil, err
	}

	for _, action := range actions {
		r.steps = append(r.steps, schemas.TestStep{
			Description: text,
			Action:      action,
		})
	}
	r.logger.Debug("Instruction recorded", zap.String("text", text), zap.Int("actions", len(actions)))
	return actions, nil
}

// RecordStep appends an explicit, pre-built step.
func (r *Recorder) RecordStep(step schemas.TestStep) error {
	if err := step.Action.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return fmt.Errorf("recording for %q already stopped", r.name)
	}
	r.steps = append(r.steps, step)
	return nil
}

// Len reports how many steps have been recorded so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

// Stop finalizes the recording and returns the script. The recorder cannot
// be used afterwards.
func (r *Recorder) Stop() (*schemas.TestScript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return nil, fmt.Errorf("recording for %q already stopped", r.name)
	}
	if len(r.steps) == 0 {
		return nil, fmt.Errorf("recording for %q has no steps", r.name)
	}
	r.finished = true

	script := &schemas.TestScript{
		Name:        r.name,
		Description: r.desc,
		Mode:        r.mode,
		Steps:       append([]schemas.TestStep(nil), r.steps...),
		Metadata:    map[string]string{"recorded": "true"},
		CreatedAt:   time.Now().UTC(),
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}

	r.logger.Info("Recording finished", zap.Int("steps", len(script.Steps)))
	return script, nil
}
