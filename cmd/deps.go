// File: cmd/deps.go
package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/agileandy/testweaver/internal/interpreter"
	"github.com/agileandy/testweaver/internal/knowledge"
	"github.com/agileandy/testweaver/internal/learner"
	"github.com/agileandy/testweaver/internal/llmclient"
	"github.com/agileandy/testweaver/internal/observability"
	"github.com/agileandy/testweaver/internal/scriptstore"
)

// openKnowledgeBase loads the persisted knowledge base. A load failure is
// non-fatal: the operation proceeds with an empty base.
func openKnowledgeBase(logger *zap.Logger) *knowledge.Base {
	kb := knowledge.NewBase(logger)
	if err := kb.Load(appConfig.Storage.KnowledgeFile); err != nil {
		logger.Warn("Failed to load knowledge base, continuing with an empty one",
			zap.String("path", appConfig.Storage.KnowledgeFile), zap.Error(err))
	}
	return kb
}

// saveKnowledgeBase persists the base; failures are logged, never fatal.
func saveKnowledgeBase(kb *knowledge.Base, logger *zap.Logger) {
	if err := kb.Save(appConfig.Storage.KnowledgeFile); err != nil {
		logger.Warn("Failed to save knowledge base",
			zap.String("path", appConfig.Storage.KnowledgeFile), zap.Error(err))
	}
}

// openLearner loads the persisted pattern state.
func openLearner(logger *zap.Logger) *learner.Learner {
	l := learner.New(logger)
	if err := l.Load(appConfig.Storage.PatternsFile); err != nil {
		logger.Warn("Failed to load pattern store, continuing with an empty one",
			zap.String("path", appConfig.Storage.PatternsFile), zap.Error(err))
	}
	return l
}

// saveLearner persists the pattern state; failures are logged, never fatal.
func saveLearner(l *learner.Learner, logger *zap.Logger) {
	if err := l.Save(appConfig.Storage.PatternsFile); err != nil {
		logger.Warn("Failed to save pattern store",
			zap.String("path", appConfig.Storage.PatternsFile), zap.Error(err))
	}
}

// feedKnowledgeBase merges the learner's element-mapping proposals into the
// knowledge base so future interpretations resolve them. Same last-write-wins
// rule as every other mapping source.
func feedKnowledgeBase(l *learner.Learner, kb *knowledge.Base, logger *zap.Logger) {
	proposals := l.SelectorProposals()
	if len(proposals) == 0 {
		return
	}
	for name, sel := range proposals {
		kb.SetMapping(name, sel)
	}
	saveKnowledgeBase(kb, logger)
}

// newInterpreter wires the interpreter with the knowledge base and, when
// enabled, the LLM fallback.
func newInterpreter(kb *knowledge.Base, logger *zap.Logger) (*interpreter.Interpreter, error) {
	opts := []interpreter.Option{interpreter.WithKnowledge(kb)}
	if appConfig.Interpreter.UseLLM {
		client, err := llmclient.New(appConfig.LLM, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build LLM client: %w", err)
		}
		opts = append(opts, interpreter.WithLLM(client, appConfig.LLM.Temperature))
	}
	return interpreter.New(logger, opts...), nil
}

// openScriptStore opens the on-disk script directory.
func openScriptStore() (*scriptstore.Store, error) {
	return scriptstore.New(appConfig.Storage.ScriptsDir, observability.GetLogger())
}
