// internal/interpreter/llm.go
package interpreter

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/llmutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const llmSystemPrompt = `You convert browser test instructions into a JSON array of actions.
Each action is an object: {"type", "selector", "value", "timeout_ms"}.
Valid types: navigate, click, type, select, wait, scroll, screenshot, assert_text, assert_element, extract.
Rules:
- navigate: "value" is the full URL, no selector.
- click: "selector" is a CSS or XPath selector, no value.
- type/select: both "selector" and "value".
- wait: "value" is "load", "networkidle" or a millisecond count, no selector.
- assert_text: "selector" plus expected text in "value".
- assert_element/extract: selector only.
- screenshot: neither.
Reply with ONLY the JSON array. No prose, no markdown.`

// contextWindow is how many trailing prior actions are included in the
// prompt as conversational context.
const contextWindow = 5

// interpretWithLLM sends the full instruction to the collaborator and
// validates every action in the reply. Malformed or schema-violating output
// is an InterpretationError, never coerced into a best guess.
func (i *Interpreter) interpretWithLLM(ctx context.Context, text string, prior []schemas.Action) ([]schemas.Action, error) {
	i.logger.Debug("Falling back to LLM interpretation", zap.String("instruction", text))

	req := schemas.GenerationRequest{
		SystemPrompt: llmSystemPrompt,
		UserPrompt:   buildUserPrompt(text, prior),
		Temperature:  i.temperature,
		ForceJSON:    true,
	}

	reply, err := i.llm.Complete(ctx, req)
	if err != nil {
		return nil, &schemas.InterpretationError{Instruction: text, Reason: "LLM request failed", Err: err}
	}

	parsed, err := llmutil.ParseJSONResponse[[]schemas.Action](reply)
	if err != nil {
		return nil, &schemas.InterpretationError{Instruction: text, Reason: "LLM reply is not a valid action list", Err: err}
	}

	actions := *parsed
	if len(actions) == 0 {
		return nil, &schemas.InterpretationError{Instruction: text, Reason: "LLM reply contained no actions"}
	}
	for idx, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, &schemas.InterpretationError{
				Instruction: text,
				Reason:      fmt.Sprintf("LLM action %d failed validation", idx),
				Err:         err,
			}
		}
	}

	i.logger.Info("LLM interpretation accepted",
		zap.String("instruction", text),
		zap.Int("actions", len(actions)))
	return actions, nil
}

func buildUserPrompt(text string, prior []schemas.Action) string {
	var b strings.Builder

	if len(prior) > 0 {
		start := len(prior) - contextWindow
		if start < 0 {
			start = 0
		}
		b.WriteString("Actions interpreted so far:\n")
		for _, a := range prior[start:] {
			encoded, err := json.Marshal(a)
			if err != nil {
				continue
			}
			b.Write(encoded)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString("Instruction: ")
	b.WriteString(text)
	return b.String()
}
