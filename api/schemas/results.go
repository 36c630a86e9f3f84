package schemas

import "time"

// StepResult records the outcome of one executed step.
type StepResult struct {
	StepIndex      int    `json:"step_index"`
	Success        bool   `json:"success"`
	Error          string `json:"error,omitempty"`
	DurationMs     int64  `json:"duration_ms"`
	ScreenshotPath string `json:"screenshot_path,omitempty"`
}

// ExecutionResult is the complete record of one script execution. It is
// derived output and is never persisted back into the originating
// TestScript.
type ExecutionResult struct {
	ID              string       `json:"id"`
	ScriptName      string       `json:"script_name"`
	Success         bool         `json:"success"`
	StepResults     []StepResult `json:"step_results"`
	TotalDurationMs int64        `json:"total_duration_ms"`
	StartedAt       time.Time    `json:"started_at"`
}

// StepsPassed counts the successful steps.
func (r *ExecutionResult) StepsPassed() int {
	n := 0
	for _, sr := range r.StepResults {
		if sr.Success {
			n++
		}
	}
	return n
}
