package strategy

import "github.com/tw2kbot/tw2kbot/internal/knowledge"

// RejectReason enumerates the structural_failure telemetry counters the
// trade gate produces instead of a runtime error (spec.md section 4.8).
type RejectReason string

const (
	ReasonWrongSide     RejectReason = "wrong_side"
	ReasonNoPort        RejectReason = "no_port"
	ReasonNoInteraction RejectReason = "no_interaction"
)

// TradeFailureCounters accumulates the structural_failure telemetry the
// gate produces (spec.md section 8, scenario 6).
type TradeFailureCounters struct {
	WrongSide     int
	NoPort        int
	NoInteraction int
}

func (c *TradeFailureCounters) record(reason RejectReason) {
	switch reason {
	case ReasonWrongSide:
		c.WrongSide++
	case ReasonNoPort:
		c.NoPort++
	case ReasonNoInteraction:
		c.NoInteraction++
	}
}

// CheckTrade validates a prospective trade Action against the port class
// of sector before it ever reaches the orchestrator/transport (spec.md
// section 8, P7: "a trade with qty > 0 on the wrong side of M is
// rejected with wrong_side and never reaches the transport").
func CheckTrade(action Action, sector *knowledge.SectorKnowledge, counters *TradeFailureCounters) (RejectReason, bool) {
	if sector == nil || !sector.HasPort {
		counters.record(ReasonNoPort)
		return ReasonNoPort, false
	}
	if action.Qty <= 0 {
		counters.record(ReasonNoInteraction)
		return ReasonNoInteraction, false
	}

	var legal bool
	switch action.Side {
	case TradeBuy:
		legal = knowledge.PortSells(sector.PortClass, action.Commodity)
	case TradeSell:
		legal = knowledge.PortBuys(sector.PortClass, action.Commodity)
	default:
		counters.record(ReasonNoInteraction)
		return ReasonNoInteraction, false
	}
	if !legal {
		counters.record(ReasonWrongSide)
		return ReasonWrongSide, false
	}
	return "", true
}

// AntiCollapseLevel tracks how far a Strategy has downshifted after its
// rolling net-worth-per-turn average fell below its configured floor
// (spec.md section 4.8).
type AntiCollapseLevel struct {
	Downshifted            bool
	MaxTradeSize           int
	RequireVerifiedCredits bool
}

// EvaluateAntiCollapse applies the downshift when the rolling average
// drops below floor, and re-verification is required before the next
// trade once downshifted.
func EvaluateAntiCollapse(rollingAvg float64, floor float64, normalMaxTradeSize int) AntiCollapseLevel {
	if rollingAvg >= floor {
		return AntiCollapseLevel{MaxTradeSize: normalMaxTradeSize}
	}
	return AntiCollapseLevel{
		Downshifted:            true,
		MaxTradeSize:           normalMaxTradeSize / 2,
		RequireVerifiedCredits: true,
	}
}
