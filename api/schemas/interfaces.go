package schemas

import (
	"context"
	"time"
)

// Driver is the browser capability surface the executor drives. Each call
// either completes within the supplied timeout or fails with a typed error
// (*ActionError for recoverable failures, *FatalError when the session is
// lost). Implementations own exactly one live browser session.
type Driver interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	Select(ctx context.Context, selector, value string, timeout time.Duration) error
	// Wait blocks on a condition: "load", "networkidle" or a decimal
	// millisecond count.
	Wait(ctx context.Context, condition string, timeout time.Duration) error
	Scroll(ctx context.Context, selector string, timeout time.Duration) error
	// Screenshot captures the page and returns the stored file path.
	Screenshot(ctx context.Context, label string) (string, error)
	ExtractText(ctx context.Context, selector string, timeout time.Duration) (string, error)
	AssertText(ctx context.Context, selector, text string, timeout time.Duration) error
	AssertElement(ctx context.Context, selector string, timeout time.Duration) error
	// Close tears the session down. Safe to call more than once.
	Close(ctx context.Context) error
}

// DriverFactory opens a fresh browser session. The executor calls it once
// per script execution; sessions are never shared across executions.
type DriverFactory func(ctx context.Context) (Driver, error)

// GenerationRequest carries one prompt to the LLM collaborator.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	ForceJSON    bool
}

// LLMClient is the language-model collaborator used for interpretation
// fallback. Implementations are expected to be deterministic-preferring
// (low temperature) but not bit-identical across provider versions; tests
// replace this interface with fixed fixtures.
type LLMClient interface {
	Complete(ctx context.Context, req GenerationRequest) (string, error)
}

// KnowledgeReader is the read side of the knowledge base consumed by the
// interpreter's selector-ranking step.
type KnowledgeReader interface {
	// Selector resolves a semantic element name to a selector.
	Selector(name string) (string, bool)
}
