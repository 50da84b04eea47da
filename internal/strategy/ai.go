package strategy

import (
	"context"

	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

// Decider is the capability the LLM Adapter exposes to this package. It
// is declared here, not imported from internal/llm, so that package can
// depend on strategy's Action type without an import cycle.
type Decider interface {
	Decide(ctx context.Context, gs *knowledge.GameState, sector *knowledge.SectorKnowledge) (Action, error)
}

// AIStrategy delegates every decision to an LLM Adapter, falling back to
// a configured Strategy on error (spec.md section 4.9's fallback
// discipline is implemented inside the Decider; this wrapper only
// forwards and swallows the interface boundary).
type AIStrategy struct {
	ctx      context.Context
	oracle   Decider
	fallback Strategy
}

// NewAIStrategy wraps an LLM Decider with a fallback Strategy used
// whenever the Decider itself has already exhausted its own retries and
// returns an error (the adapter's own fallback-to-opportunistic window is
// internal to it; this is the outermost safety net).
func NewAIStrategy(ctx context.Context, oracle Decider, fallback Strategy) *AIStrategy {
	return &AIStrategy{ctx: ctx, oracle: oracle, fallback: fallback}
}

func (s *AIStrategy) Decide(gs *knowledge.GameState, sector *knowledge.SectorKnowledge, shared *SharedView) Action {
	action, err := s.oracle.Decide(s.ctx, gs, sector)
	if err != nil {
		return s.fallback.Decide(gs, sector, shared)
	}
	return action
}

func (s *AIStrategy) OnOutcome(action Action, outcome Outcome) {
	s.fallback.OnOutcome(action, outcome)
}
