package schemas

import (
	"fmt"
	"time"
)

// Mode selects how selectors are sourced during interpretation.
type Mode string

const (
	// ModeDumb operates without application source access: visible DOM
	// and generic selectors only.
	ModeDumb Mode = "dumb"
	// ModeSmart operates with application source access: selectors and
	// routes come from static analysis output in the knowledge base.
	ModeSmart Mode = "smart"
)

// TestStep is a single step of a script. Steps are owned exclusively by
// their TestScript.
type TestStep struct {
	Description     string `json:"description" yaml:"description"`
	Action          Action `json:"action" yaml:"action"`
	ExpectedOutcome string `json:"expected_outcome,omitempty" yaml:"expected_outcome,omitempty"`
	Screenshot      bool   `json:"screenshot" yaml:"screenshot"`
}

// TestScript is a complete, replayable action sequence. Identity is the
// Name, unique per storage namespace. Scripts are immutable after
// creation; modification produces a new version rather than mutating in
// place, which preserves reproducibility of past execution records.
type TestScript struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Mode        Mode              `json:"mode" yaml:"mode"`
	Steps       []TestStep        `json:"steps" yaml:"steps"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
}

// Validate rejects malformed scripts before they reach the executor.
func (s *TestScript) Validate() error {
	if s.Name == "" {
		return NewValidationError("script name is required")
	}
	if s.Mode != ModeDumb && s.Mode != ModeSmart {
		return NewValidationError(fmt.Sprintf("script %q: mode must be %q or %q, got %q", s.Name, ModeDumb, ModeSmart, s.Mode))
	}
	for i, step := range s.Steps {
		if err := step.Action.Validate(); err != nil {
			return NewValidationError(fmt.Sprintf("script %q step %d (%s): %v", s.Name, i, step.Description, err))
		}
	}
	return nil
}

// ActionTypes returns the ordered action-type sequence across all steps,
// the unit the pattern learner operates on.
func (s *TestScript) ActionTypes() []ActionType {
	types := make([]ActionType, len(s.Steps))
	for i, step := range s.Steps {
		types[i] = step.Action.Type
	}
	return types
}
