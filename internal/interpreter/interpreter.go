// internal/interpreter/interpreter.go

// Package interpreter turns natural-language instructions into validated
// action sequences. A first pass applies an ordered rule list; the first
// rule matching a clause wins. Instructions no rule understands optionally
// fall back to an LLM collaborator whose JSON reply is validated against
// the action schema and never silently coerced.
package interpreter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
)

// Interpreter is a pure function of (text, context, knowledge base state)
// when only rules fire. The LLM fallback is deterministic-preferring, not
// deterministic; callers that need bit-identical output keep it disabled.
type Interpreter struct {
	kb          schemas.KnowledgeReader
	llm         schemas.LLMClient
	temperature float32
	logger      *zap.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithKnowledge wires a knowledge base to bias selector synthesis.
func WithKnowledge(kb schemas.KnowledgeReader) Option {
	return func(i *Interpreter) { i.kb = kb }
}

// WithLLM wires the fallback collaborator for instructions no rule matches.
func WithLLM(client schemas.LLMClient, temperature float32) Option {
	return func(i *Interpreter) {
		i.llm = client
		i.temperature = temperature
	}
}

// New constructs an Interpreter.
func New(logger *zap.Logger, opts ...Option) *Interpreter {
	i := &Interpreter{
		temperature: 0.1,
		logger:      logger.Named("interpreter"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Interpret converts one instruction, possibly containing several imperative
// clauses, into an ordered action sequence. Clause order is preserved in the
// output. prior carries previously interpreted actions and is only consulted
// by the LLM fallback as conversational context.
func (i *Interpreter) Interpret(ctx context.Context, text string, prior []schemas.Action, useLLM bool) ([]schemas.Action, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &schemas.InterpretationError{Instruction: text, Reason: "empty instruction"}
	}

	clauses := splitClauses(trimmed)
	actions := make([]schemas.Action, 0, len(clauses))

	for _, clause := range clauses {
		action, ok, err := i.applyRules(clause)
		if err != nil {
			return nil, &schemas.InterpretationError{Instruction: clause, Reason: "rule produced invalid action", Err: err}
		}
		if !ok {
			// One opaque clause sends the whole instruction to the LLM
			// so the produced sequence stays coherent.
			if useLLM && i.llm != nil {
				return i.interpretWithLLM(ctx, trimmed, prior)
			}
			return nil, &schemas.InterpretationError{Instruction: clause, Reason: "no interpretation rule matched and LLM fallback is disabled"}
		}
		actions = append(actions, action)
	}

	return actions, nil
}

// applyRules runs the ordered rule list over one clause. The boolean is
// false when no rule matched.
func (i *Interpreter) applyRules(clause string) (schemas.Action, bool, error) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		action, err := r.build(i, m)
		if err != nil {
			return schemas.Action{}, true, fmt.Errorf("rule %s: %w", r.name, err)
		}
		if err := action.Validate(); err != nil {
			return schemas.Action{}, true, fmt.Errorf("rule %s: %w", r.name, err)
		}
		i.logger.Debug("Rule matched",
			zap.String("rule", r.name),
			zap.String("clause", clause),
			zap.String("action", string(action.Type)))
		return action, true, nil
	}
	return schemas.Action{}, false, nil
}
