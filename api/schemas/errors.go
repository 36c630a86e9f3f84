package schemas

import (
	"errors"
	"fmt"
)

// ErrorCode is a string type used for structured error reporting. Using a
// custom type ensures only predefined constants appear where an ErrorCode
// is expected.
type ErrorCode string

const (
	// ErrCodeValidation marks a malformed Action or script shape. Such
	// input is rejected before execution and never reaches the executor.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeInterpretation marks instruction text that matched no rule
	// with no usable LLM fallback.
	ErrCodeInterpretation ErrorCode = "INTERPRETATION_ERROR"

	// Per-step execution errors. These are captured into StepResults and
	// never abort a run on their own.
	ErrCodeElementNotFound ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeActionTimeout   ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNavigation      ErrorCode = "NAVIGATION_ERROR"
	ErrCodeAssertionFailed ErrorCode = "ASSERTION_FAILED"

	// ErrCodeFatal marks a lost browser session or crashed browser. The
	// remaining steps of the script are skipped.
	ErrCodeFatal ErrorCode = "FATAL_EXECUTION_ERROR"
)

// ValidationError reports a malformed Action or TestScript.
type ValidationError struct {
	Reason string
}

func NewValidationError(reason string) *ValidationError {
	return &ValidationError{Reason: reason}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// InterpretationError reports instruction text that could not be turned
// into actions.
type InterpretationError struct {
	Instruction string
	Reason      string
	Err         error
}

func (e *InterpretationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot interpret %q: %s: %v", e.Instruction, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot interpret %q: %s", e.Instruction, e.Reason)
}

func (e *InterpretationError) Unwrap() error { return e.Err }

// ActionError is a per-step execution failure. It is recorded in the
// step's result; execution continues with the next step.
type ActionError struct {
	Code     ErrorCode
	Selector string
	Msg      string
	Err      error
}

func (e *ActionError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Code, e.Msg)
	if e.Selector != "" {
		s += fmt.Sprintf(" (selector: %s)", e.Selector)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *ActionError) Unwrap() error { return e.Err }

func NewElementNotFound(selector string, err error) *ActionError {
	return &ActionError{Code: ErrCodeElementNotFound, Selector: selector, Msg: "element did not resolve within timeout", Err: err}
}

func NewActionTimeout(msg string, err error) *ActionError {
	return &ActionError{Code: ErrCodeActionTimeout, Msg: msg, Err: err}
}

func NewNavigationError(url string, err error) *ActionError {
	return &ActionError{Code: ErrCodeNavigation, Msg: "navigation to " + url + " failed", Err: err}
}

func NewAssertionError(selector, msg string) *ActionError {
	return &ActionError{Code: ErrCodeAssertionFailed, Selector: selector, Msg: msg}
}

// FatalError invalidates the remainder of a script: the browser session is
// gone and no further step can be attempted.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal execution error: %s: %v", e.Reason, e.Err)
	}
	return "fatal execution error: " + e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

func NewFatalError(reason string, err error) *FatalError {
	return &FatalError{Reason: reason, Err: err}
}

// IsFatal reports whether err (anywhere in its chain) invalidates the
// remaining steps of a script.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
