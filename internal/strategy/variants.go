package strategy

import "github.com/tw2kbot/tw2kbot/internal/knowledge"

// ProfitablePairsStrategy traverses a precomputed, most-profitable-first
// list of (buy, sell, commodity) pairs, rotating to the next pair once
// the active one's round trip completes (spec.md section 4.8).
type ProfitablePairsStrategy struct {
	pairs []Pair
	index int
	leg   int // 0 = travel to buy sector, 1 = travel to sell sector
	holds int
}

// NewProfitablePairsStrategy wraps a pre-built, profit-sorted pair list.
func NewProfitablePairsStrategy(pairs []Pair, holds int) *ProfitablePairsStrategy {
	return &ProfitablePairsStrategy{pairs: pairs, holds: holds}
}

func (s *ProfitablePairsStrategy) Decide(gs *knowledge.GameState, sector *knowledge.SectorKnowledge, shared *SharedView) Action {
	if len(s.pairs) == 0 {
		return Action{Kind: ActionScan}
	}
	active := s.pairs[s.index%len(s.pairs)]

	switch s.leg {
	case 0:
		if gs.CurrentSector == active.BuySector {
			s.leg = 1
			return Action{Kind: ActionTrade, Commodity: active.Commodity, Side: TradeBuy, Qty: s.holds}
		}
		return Action{Kind: ActionWarp, TargetSector: active.BuySector}
	default:
		if gs.CurrentSector == active.SellSector {
			s.index++
			s.leg = 0
			return Action{Kind: ActionTrade, Commodity: active.Commodity, Side: TradeSell, Qty: s.holds}
		}
		return Action{Kind: ActionWarp, TargetSector: active.SellSector}
	}
}

func (s *ProfitablePairsStrategy) OnOutcome(action Action, outcome Outcome) {
	if action.Kind == ActionTrade && !outcome.Success {
		// a rejected trade (e.g. wrong_side after shared knowledge went
		// stale) rotates past the bad pair rather than retrying it
		s.index++
		s.leg = 0
	}
}

// OpportunisticStrategy trades whenever marginal expected profit is
// positive at the current port, otherwise warps to the lowest-numbered
// known warp of the current sector; visit history is not consulted when
// choosing it (spec.md section 4.8).
type OpportunisticStrategy struct {
	MarginalProfit func(sector *knowledge.SectorKnowledge, commodity knowledge.Commodity) int
	Holds          int
}

func (s *OpportunisticStrategy) Decide(gs *knowledge.GameState, sector *knowledge.SectorKnowledge, shared *SharedView) Action {
	if sector != nil && sector.HasPort {
		for commodity := range sector.PortSellsSet {
			if s.MarginalProfit(sector, commodity) > 0 {
				return Action{Kind: ActionTrade, Commodity: commodity, Side: TradeBuy, Qty: s.Holds}
			}
		}
		for commodity := range sector.PortBuysSet {
			if s.MarginalProfit(sector, commodity) > 0 {
				return Action{Kind: ActionTrade, Commodity: commodity, Side: TradeSell, Qty: s.Holds}
			}
		}
	}
	target := leastVisitedWarp(sector)
	if target == 0 {
		return Action{Kind: ActionScan}
	}
	return Action{Kind: ActionWarp, TargetSector: target}
}

func (s *OpportunisticStrategy) OnOutcome(Action, Outcome) {}

// leastVisitedWarp returns the lowest-numbered warp out of sector, or 0
// when there is none; it does not look at visit history.
func leastVisitedWarp(sector *knowledge.SectorKnowledge) int {
	if sector == nil {
		return 0
	}
	best := 0
	for w := range sector.Warps {
		if best == 0 || w < best {
			best = w
		}
	}
	return best
}

// Route is an externally precomputed, opaque sequence of actions
// twerk_optimized executes deterministically (spec.md section 4.8:
// "strategy-external and treated as an opaque route provider at the
// spec level").
type Route struct {
	Steps []Action
	pos   int
}

// TwerkOptimizedStrategy plays back a fixed Route.
type TwerkOptimizedStrategy struct {
	route *Route
}

// NewTwerkOptimizedStrategy wraps a precomputed Route.
func NewTwerkOptimizedStrategy(route *Route) *TwerkOptimizedStrategy {
	return &TwerkOptimizedStrategy{route: route}
}

func (s *TwerkOptimizedStrategy) Decide(gs *knowledge.GameState, sector *knowledge.SectorKnowledge, shared *SharedView) Action {
	if s.route == nil || s.route.pos >= len(s.route.Steps) {
		return Action{Kind: ActionQuit}
	}
	step := s.route.Steps[s.route.pos]
	s.route.pos++
	return step
}

func (s *TwerkOptimizedStrategy) OnOutcome(Action, Outcome) {}
