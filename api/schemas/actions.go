package schemas

import (
	"fmt"
	"strconv"
	"time"
)

// ActionType identifies a single browser operation. The set is closed:
// validation rejects anything outside these constants so that downstream
// switches stay exhaustive.
type ActionType string

const (
	ActionNavigate      ActionType = "navigate"
	ActionClick         ActionType = "click"
	ActionTypeText      ActionType = "type"
	ActionSelect        ActionType = "select"
	ActionWait          ActionType = "wait"
	ActionScroll        ActionType = "scroll"
	ActionScreenshot    ActionType = "screenshot"
	ActionAssertText    ActionType = "assert_text"
	ActionAssertElement ActionType = "assert_element"
	ActionExtract       ActionType = "extract"
)

// Wait conditions accepted in Action.Value for ActionWait, besides a plain
// millisecond count.
const (
	WaitLoad        = "load"
	WaitNetworkIdle = "networkidle"
)

// DefaultTimeoutMs is applied when an Action carries no explicit timeout.
const DefaultTimeoutMs = 30000

// Action is the canonical, validated representation of one browser
// operation, independent of the natural-language text that produced it.
// Once validated an Action is treated as immutable; callers copy by value.
type Action struct {
	Type      ActionType `json:"type" yaml:"type" mapstructure:"type"`
	Selector  string     `json:"selector,omitempty" yaml:"selector,omitempty" mapstructure:"selector"`
	Value     string     `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
	TimeoutMs int        `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty" mapstructure:"timeout_ms"`
}

// Timeout returns the effective per-action timeout.
func (a Action) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return DefaultTimeoutMs * time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

// knownActionTypes drives validation and exhaustiveness checks.
var knownActionTypes = map[ActionType]struct{}{
	ActionNavigate:      {},
	ActionClick:         {},
	ActionTypeText:      {},
	ActionSelect:        {},
	ActionWait:          {},
	ActionScroll:        {},
	ActionScreenshot:    {},
	ActionAssertText:    {},
	ActionAssertElement: {},
	ActionExtract:       {},
}

// fieldRule captures which of Selector/Value an action type requires or
// forbids. Optional fields are neither required nor forbidden.
type fieldRule struct {
	requireSelector bool
	forbidSelector  bool
	requireValue    bool
	forbidValue     bool
}

var actionFieldRules = map[ActionType]fieldRule{
	ActionNavigate:      {forbidSelector: true, requireValue: true},
	ActionClick:         {requireSelector: true, forbidValue: true},
	ActionTypeText:      {requireSelector: true, requireValue: true},
	ActionSelect:        {requireSelector: true, requireValue: true},
	ActionWait:          {forbidSelector: true, requireValue: true},
	ActionScroll:        {forbidValue: true}, // selector optional: no selector means scroll the page
	ActionScreenshot:    {forbidSelector: true},
	ActionAssertText:    {requireSelector: true, requireValue: true},
	ActionAssertElement: {requireSelector: true, forbidValue: true},
	ActionExtract:       {requireSelector: true, forbidValue: true},
}

// Validate checks the type-dependent field requirements. It returns a
// *ValidationError describing the first violation found.
func (a Action) Validate() error {
	if _, ok := knownActionTypes[a.Type]; !ok {
		return NewValidationError(fmt.Sprintf("unknown action type %q", a.Type))
	}
	if a.TimeoutMs < 0 {
		return NewValidationError(fmt.Sprintf("%s: timeout_ms must not be negative", a.Type))
	}

	rule := actionFieldRules[a.Type]
	if rule.requireSelector && a.Selector == "" {
		return NewValidationError(fmt.Sprintf("%s requires a selector", a.Type))
	}
	if rule.forbidSelector && a.Selector != "" {
		return NewValidationError(fmt.Sprintf("%s must not carry a selector", a.Type))
	}
	if rule.requireValue && a.Value == "" {
		return NewValidationError(fmt.Sprintf("%s requires a value", a.Type))
	}
	if rule.forbidValue && a.Value != "" {
		return NewValidationError(fmt.Sprintf("%s must not carry a value", a.Type))
	}

	if a.Type == ActionWait {
		if a.Value != WaitLoad && a.Value != WaitNetworkIdle {
			if _, err := strconv.ParseUint(a.Value, 10, 32); err != nil {
				return NewValidationError(fmt.Sprintf(
					"wait value must be %q, %q or a millisecond count, got %q",
					WaitLoad, WaitNetworkIdle, a.Value))
			}
		}
	}

	return nil
}
