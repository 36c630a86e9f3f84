// internal/learner/learner_test.go
package learner

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agileandy/testweaver/api/schemas"
	"github.com/agileandy/testweaver/internal/interpreter"
	"github.com/agileandy/testweaver/internal/knowledge"
)

func scriptWith(name string, types ...schemas.ActionType) schemas.TestScript {
	steps := make([]schemas.TestStep, len(types))
	for i, tp := range types {
		action := schemas.Action{Type: tp}
		switch tp {
		case schemas.ActionNavigate:
			action.Value = "https://example.com"
		case schemas.ActionClick:
			action.Selector = "#btn"
		case schemas.ActionTypeText:
			action.Selector = "#field"
			action.Value = "hello"
		}
		steps[i] = schemas.TestStep{
			Description: fmt.Sprintf("step %d", i+1),
			Action:      action,
		}
	}
	return schemas.TestScript{Name: name, Mode: schemas.ModeDumb, Steps: steps}
}

func TestObserveCountsDistinctScripts(t *testing.T) {
	l := New(zap.NewNop())

	l.Observe(scriptWith("login", schemas.ActionNavigate, schemas.ActionTypeText, schemas.ActionClick))
	l.Observe(scriptWith("signup", schemas.ActionNavigate, schemas.ActionTypeText, schemas.ActionClick))
	l.Observe(scriptWith("browse", schemas.ActionNavigate, schemas.ActionClick))

	patterns := l.CommonPatterns(2)
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].Count)
	assert.Equal(t,
		[]schemas.ActionType{schemas.ActionNavigate, schemas.ActionTypeText, schemas.ActionClick},
		patterns[0].Sequence)
	assert.Equal(t, []string{"login", "signup"}, patterns[0].Examples)
}

func TestObserveIsIdempotentForUnchangedScript(t *testing.T) {
	l := New(zap.NewNop())
	s := scriptWith("login", schemas.ActionNavigate, schemas.ActionClick)

	l.Observe(s)
	l.Observe(s)
	l.Observe(s)

	patterns := l.CommonPatterns(1)
	require.Len(t, patterns, 1)
	assert.Equal(t, 1, patterns[0].Count)
}

func TestObserveCountsModifiedScriptAgain(t *testing.T) {
	l := New(zap.NewNop())

	s := scriptWith("login", schemas.ActionNavigate, schemas.ActionClick)
	l.Observe(s)

	s.Steps[1].Action.Selector = "#other-btn" // same sequence, new content
	l.Observe(s)

	patterns := l.CommonPatterns(1)
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].Count)
	assert.Equal(t, []string{"login"}, patterns[0].Examples)
}

func TestObserveIgnoresEmptyScripts(t *testing.T) {
	l := New(zap.NewNop())
	l.Observe(schemas.TestScript{Name: "empty", Mode: schemas.ModeDumb})
	assert.Empty(t, l.CommonPatterns(1))
}

func TestCommonPatternsOrdering(t *testing.T) {
	l := New(zap.NewNop())

	// Pattern A observed first, twice. Pattern B observed second, twice.
	// Pattern C observed three times.
	l.Observe(scriptWith("a1", schemas.ActionNavigate, schemas.ActionClick))
	l.Observe(scriptWith("b1", schemas.ActionNavigate, schemas.ActionTypeText))
	l.Observe(scriptWith("c1", schemas.ActionNavigate))
	l.Observe(scriptWith("a2", schemas.ActionNavigate, schemas.ActionClick))
	l.Observe(scriptWith("b2", schemas.ActionNavigate, schemas.ActionTypeText))
	l.Observe(scriptWith("c2", schemas.ActionNavigate))
	l.Observe(scriptWith("c3", schemas.ActionNavigate))

	patterns := l.CommonPatterns(2)
	require.Len(t, patterns, 3)
	assert.Equal(t, 3, patterns[0].Count)
	assert.Equal(t, []schemas.ActionType{schemas.ActionNavigate}, patterns[0].Sequence)
	// Counts tie between A and B; A was first observed so it sorts first.
	assert.Equal(t, []schemas.ActionType{schemas.ActionNavigate, schemas.ActionClick}, patterns[1].Sequence)
	assert.Equal(t, []schemas.ActionType{schemas.ActionNavigate, schemas.ActionTypeText}, patterns[2].Sequence)
}

func TestCommonPatternsMinCountFilters(t *testing.T) {
	l := New(zap.NewNop())
	l.Observe(scriptWith("solo", schemas.ActionScreenshot))

	assert.Len(t, l.CommonPatterns(1), 1)
	assert.Empty(t, l.CommonPatterns(2))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")

	l := New(zap.NewNop())
	l.Observe(scriptWith("login", schemas.ActionNavigate, schemas.ActionTypeText, schemas.ActionClick))
	l.Observe(scriptWith("signup", schemas.ActionNavigate, schemas.ActionTypeText, schemas.ActionClick))
	require.NoError(t, l.Save(path))

	restored := New(zap.NewNop())
	require.NoError(t, restored.Load(path))

	patterns := restored.CommonPatterns(2)
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].Count)
	assert.Equal(t, []string{"login", "signup"}, patterns[0].Examples)

	// Idempotence survives a restart: re-observing a persisted script is a no-op.
	restored.Observe(scriptWith("login", schemas.ActionNavigate, schemas.ActionTypeText, schemas.ActionClick))
	assert.Equal(t, 2, restored.CommonPatterns(2)[0].Count)
}

func TestLoadMergesWithInMemoryState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")

	saved := New(zap.NewNop())
	saved.Observe(scriptWith("login", schemas.ActionNavigate, schemas.ActionClick))
	require.NoError(t, saved.Save(path))

	l := New(zap.NewNop())
	l.Observe(scriptWith("checkout", schemas.ActionNavigate, schemas.ActionClick))
	l.Observe(scriptWith("pay", schemas.ActionClick))
	require.NoError(t, l.Load(path))

	patterns := l.CommonPatterns(1)
	require.Len(t, patterns, 2)
	// In-memory count (1) and loaded count (1) for the shared sequence do
	// not stack; the union of examples is kept.
	assert.Equal(t, []string{"checkout", "login"}, patterns[0].Examples)
	assert.Equal(t, 1, patterns[0].Count)
}

func TestObserveProposesSelectorMappings(t *testing.T) {
	l := New(zap.NewNop())

	l.Observe(schemas.TestScript{
		Name: "checkout",
		Mode: schemas.ModeDumb,
		Steps: []schemas.TestStep{
			{
				Description: "go to https://shop.example.com",
				Action:      schemas.Action{Type: schemas.ActionNavigate, Value: "https://shop.example.com"},
			},
			{
				Description: "type 'admin' into the username box",
				Action:      schemas.Action{Type: schemas.ActionTypeText, Selector: "#user-input", Value: "admin"},
			},
			{
				Description: "click 'Checkout'",
				Action:      schemas.Action{Type: schemas.ActionClick, Selector: "//button[contains(., 'Checkout')]"},
			},
			{
				Description: "click the login button",
				Action:      schemas.Action{Type: schemas.ActionClick, Selector: "button[type='submit']"},
			},
			{
				// A raw selector in the instruction is not an element name.
				Description: "type 'a@b.c' in #email",
				Action:      schemas.Action{Type: schemas.ActionTypeText, Selector: "#email", Value: "a@b.c"},
			},
			{
				// The quoted text of an assertion is its value, not a name.
				Description: "check that the banner shows 'Welcome'",
				Action:      schemas.Action{Type: schemas.ActionAssertText, Selector: ".banner", Value: "Welcome"},
			},
		},
	})

	proposals := l.SelectorProposals()
	assert.Equal(t, map[string]string{
		"username": "#user-input",
		"checkout": "//button[contains(., 'Checkout')]",
		"login":    "button[type='submit']",
	}, proposals)
}

func TestObserveProposesMappingsEvenForUnchangedScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.json")
	s := schemas.TestScript{
		Name: "login",
		Mode: schemas.ModeDumb,
		Steps: []schemas.TestStep{
			{
				Description: "type 'secret' in the passphrase field",
				Action:      schemas.Action{Type: schemas.ActionTypeText, Selector: "#pass-input", Value: "secret"},
			},
		},
	}

	l := New(zap.NewNop())
	l.Observe(s)
	require.NoError(t, l.Save(path))

	// A fresh process knows the script's hash but not its mappings; an
	// unchanged observation must still surface them.
	restored := New(zap.NewNop())
	require.NoError(t, restored.Load(path))
	restored.Observe(s)

	assert.Equal(t, map[string]string{"passphrase": "#pass-input"}, restored.SelectorProposals())
	assert.Equal(t, 1, restored.CommonPatterns(1)[0].Count)
}

func TestProposedMappingsResolveThroughInterpreter(t *testing.T) {
	l := New(zap.NewNop())
	l.Observe(schemas.TestScript{
		Name: "login",
		Mode: schemas.ModeDumb,
		Steps: []schemas.TestStep{
			{
				Description: "type 'secret' in the passphrase field",
				Action:      schemas.Action{Type: schemas.ActionTypeText, Selector: "#pass-input", Value: "secret"},
			},
		},
	})

	kb := knowledge.NewBase(zap.NewNop())
	for name, sel := range l.SelectorProposals() {
		kb.SetMapping(name, sel)
	}

	interp := interpreter.New(zap.NewNop(), interpreter.WithKnowledge(kb))
	actions, err := interp.Interpret(context.Background(), "type 'hunter2' in the passphrase field", nil, false)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "#pass-input", actions[0].Selector)
}

func TestLoadMissingFileIsNoOp(t *testing.T) {
	l := New(zap.NewNop())
	require.NoError(t, l.Load(filepath.Join(t.TempDir(), "absent.json")))
	assert.Empty(t, l.CommonPatterns(1))
}
