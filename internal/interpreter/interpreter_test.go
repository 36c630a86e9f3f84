// internal/interpreter/interpreter_test.go
package interpreter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
)

// stubLLM returns a canned reply, recording the request it was given.
type stubLLM struct {
	reply   string
	err     error
	lastReq schemas.GenerationRequest
	calls   int
}

func (s *stubLLM) Complete(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.calls++
	s.lastReq = req
	return s.reply, s.err
}

// stubKnowledge is a fixed name-to-selector table.
type stubKnowledge map[string]string

func (s stubKnowledge) Selector(name string) (string, bool) {
	sel, ok := s[name]
	return sel, ok
}

func newInterpreter(opts ...Option) *Interpreter {
	return New(zap.NewNop(), opts...)
}

func TestInterpretTypeWithWellKnownSelector(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "type 'admin' in username field", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionTypeText, actions[0].Type)
	assert.Equal(t, "input[name='username']", actions[0].Selector)
	assert.Equal(t, "admin", actions[0].Value)
}

func TestInterpretWaitMilliseconds(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "wait 5000", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionWait, actions[0].Type)
	assert.Equal(t, "5000", actions[0].Value)
	assert.Empty(t, actions[0].Selector)
}

func TestInterpretWaitVariants(t *testing.T) {
	i := newInterpreter()

	cases := []struct {
		text string
		want string
	}{
		{"wait 5 seconds", "5000"},
		{"wait for 250 ms", "250"},
		{"wait for the page to load", schemas.WaitLoad},
		{"wait until the network is idle", schemas.WaitNetworkIdle},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			actions, err := i.Interpret(context.Background(), tc.text, nil, false)
			require.NoError(t, err)
			require.Len(t, actions, 1)
			assert.Equal(t, schemas.ActionWait, actions[0].Type)
			assert.Equal(t, tc.want, actions[0].Value)
		})
	}
}

func TestInterpretNavigateAddsScheme(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "go to example.com/login", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionNavigate, actions[0].Type)
	assert.Equal(t, "https://example.com/login", actions[0].Value)

	actions, err = i.Interpret(context.Background(), "open http://localhost:3000", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", actions[0].Value)
}

func TestInterpretClickHeuristicXPath(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "click 'Add to cart'", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionClick, actions[0].Type)
	assert.Contains(t, actions[0].Selector, "contains(normalize-space(.), 'Add to cart')")
}

func TestInterpretClickExplicitSelectorPassesThrough(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "click #checkout-btn", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "#checkout-btn", actions[0].Selector)
}

func TestInterpretKnowledgeBaseWinsOverHeuristic(t *testing.T) {
	kb := stubKnowledge{"username": "#login-user"}
	i := newInterpreter(WithKnowledge(kb))

	actions, err := i.Interpret(context.Background(), "type 'admin' in username field", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "#login-user", actions[0].Selector)
}

func TestInterpretFillWith(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "fill the search box with 'golang'", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionTypeText, actions[0].Type)
	assert.Equal(t, "input[name='q']", actions[0].Selector)
	assert.Equal(t, "golang", actions[0].Value)
}

func TestInterpretSelect(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "select 'Canada' from the country dropdown", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionSelect, actions[0].Type)
	assert.Equal(t, "Canada", actions[0].Value)
	assert.Equal(t, "input[name='country']", actions[0].Selector)
}

func TestInterpretAssertions(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "verify that the welcome banner shows 'Hello, admin'", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionAssertText, actions[0].Type)
	assert.Equal(t, "Hello, admin", actions[0].Value)

	actions, err = i.Interpret(context.Background(), "check that the logout button is visible", nil, false)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionAssertElement, actions[0].Type)
}

func TestInterpretExtractAndScreenshot(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(), "extract the text from the order total", nil, false)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionExtract, actions[0].Type)

	actions, err = i.Interpret(context.Background(), "take a screenshot", nil, false)
	require.NoError(t, err)
	assert.Equal(t, schemas.ActionScreenshot, actions[0].Type)
	assert.Empty(t, actions[0].Selector)
}

func TestInterpretMultiClausePreservesOrder(t *testing.T) {
	i := newInterpreter()

	actions, err := i.Interpret(context.Background(),
		"go to example.com and type 'admin' in username field, then click 'Login' and wait for the page to load",
		nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 4)
	assert.Equal(t, schemas.ActionNavigate, actions[0].Type)
	assert.Equal(t, schemas.ActionTypeText, actions[1].Type)
	assert.Equal(t, schemas.ActionClick, actions[2].Type)
	assert.Equal(t, schemas.ActionWait, actions[3].Type)
}

func TestSplitClausesIgnoresSeparatorsInsideQuotes(t *testing.T) {
	clauses := splitClauses("type 'tea, coffee and milk' in search box then click 'Go'")
	require.Len(t, clauses, 2)
	assert.Equal(t, "type 'tea, coffee and milk' in search box", clauses[0])
	assert.Equal(t, "click 'Go'", clauses[1])
}

func TestInterpretIsDeterministic(t *testing.T) {
	i := newInterpreter(WithKnowledge(stubKnowledge{"cart": "#cart"}))
	text := "go to shop.example.com, click the cart and verify that the total shows '$0.00'"

	first, err := i.Interpret(context.Background(), text, nil, false)
	require.NoError(t, err)
	second, err := i.Interpret(context.Background(), text, nil, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInterpretNoMatchWithoutLLMFails(t *testing.T) {
	i := newInterpreter()

	_, err := i.Interpret(context.Background(), "do a barrel roll", nil, false)
	var ie *schemas.InterpretationError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "no interpretation rule matched")
}

func TestInterpretEmptyInstructionFails(t *testing.T) {
	i := newInterpreter()

	_, err := i.Interpret(context.Background(), "   ", nil, false)
	var ie *schemas.InterpretationError
	require.ErrorAs(t, err, &ie)
}

func TestInterpretLLMFallbackAcceptsValidJSON(t *testing.T) {
	llm := &stubLLM{reply: `[{"type":"navigate","value":"https://example.com"},{"type":"click","selector":"#go"}]`}
	i := newInterpreter(WithLLM(llm, 0.1))

	actions, err := i.Interpret(context.Background(), "do the thing we discussed", nil, true)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, schemas.ActionNavigate, actions[0].Type)
	assert.Equal(t, schemas.ActionClick, actions[1].Type)
	assert.Equal(t, 1, llm.calls)
	assert.True(t, llm.lastReq.ForceJSON)
	assert.InDelta(t, 0.1, float64(llm.lastReq.Temperature), 0.001)
}

func TestInterpretLLMFallbackHandlesMarkdownFences(t *testing.T) {
	llm := &stubLLM{reply: "```json\n[{\"type\":\"screenshot\"}]\n```"}
	i := newInterpreter(WithLLM(llm, 0.1))

	actions, err := i.Interpret(context.Background(), "capture whatever is on screen now please", nil, true)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, schemas.ActionScreenshot, actions[0].Type)
}

func TestInterpretLLMFallbackRejectsMalformedReply(t *testing.T) {
	llm := &stubLLM{reply: "sure, I'd suggest clicking the login button"}
	i := newInterpreter(WithLLM(llm, 0.1))

	_, err := i.Interpret(context.Background(), "do something unusual", nil, true)
	var ie *schemas.InterpretationError
	require.ErrorAs(t, err, &ie)
}

func TestInterpretLLMFallbackRejectsInvalidAction(t *testing.T) {
	// click with a value violates the schema; it must not be coerced.
	llm := &stubLLM{reply: `[{"type":"click","selector":"#x","value":"oops"}]`}
	i := newInterpreter(WithLLM(llm, 0.1))

	_, err := i.Interpret(context.Background(), "do something unusual", nil, true)
	var ie *schemas.InterpretationError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "failed validation")
}

func TestInterpretLLMFallbackSurfacesTransportErrors(t *testing.T) {
	llm := &stubLLM{err: errors.New("connection refused")}
	i := newInterpreter(WithLLM(llm, 0.1))

	_, err := i.Interpret(context.Background(), "do something unusual", nil, true)
	var ie *schemas.InterpretationError
	require.ErrorAs(t, err, &ie)
	assert.ErrorContains(t, err, "connection refused")
}

func TestInterpretLLMReceivesPriorContext(t *testing.T) {
	llm := &stubLLM{reply: `[{"type":"screenshot"}]`}
	i := newInterpreter(WithLLM(llm, 0.1))

	prior := []schemas.Action{{Type: schemas.ActionNavigate, Value: "https://example.com"}}
	_, err := i.Interpret(context.Background(), "now do the usual checks", prior, true)
	require.NoError(t, err)
	assert.Contains(t, llm.lastReq.UserPrompt, "https://example.com")
}
