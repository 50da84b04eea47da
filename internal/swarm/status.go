package swarm

import (
	"sync"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/botruntime"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

// BotStatus is the per-bot snapshot spec.md section 4.11's status
// aggregation publishes and GET /swarm/status returns.
type BotStatus struct {
	ID               string    `json:"id"`
	Owner            string    `json:"owner,omitempty"`
	State            string    `json:"state"`
	CharacterName    string    `json:"character_name,omitempty"`
	Sector           int       `json:"sector"`
	Credits          int       `json:"credits"`
	HoldsUsed        int       `json:"holds_used"`
	TurnsRemaining   int       `json:"turns_remaining"`
	NetWorthEstimate int       `json:"net_worth_estimate"`
	TradeFailures    TradeFailureSummary `json:"trade_failures"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HijackReadResult is what POST /bots/{id}/hijack/read returns: the
// usual status fields plus the bot's live screen, so an operator
// holding a hijack lease sees what the character sees (spec.md section
// 4.11).
type HijackReadResult struct {
	BotStatus
	Screen string `json:"screen"`
}

// TradeFailureSummary mirrors strategy.TradeFailureCounters for JSON
// rendering without exposing the strategy package's internal type.
type TradeFailureSummary struct {
	WrongSide     int `json:"wrong_side"`
	NoPort        int `json:"no_port"`
	NoInteraction int `json:"no_interaction"`
}

// DeltaAttribution categorizes a recorded action for the
// delta_attribution time series (spec.md section 4.11).
type DeltaAttribution string

const (
	DeltaTrade   DeltaAttribution = "trade"
	DeltaBank    DeltaAttribution = "bank"
	DeltaCombat  DeltaAttribution = "combat"
	DeltaUnknown DeltaAttribution = "unknown"
)

func attributionOf(action string) DeltaAttribution {
	switch action {
	case string(strategy.ActionTrade):
		return DeltaTrade
	case string(strategy.ActionBank):
		return DeltaBank
	case "combat":
		return DeltaCombat
	default:
		return DeltaUnknown
	}
}

// TimeSeriesSummary is the computed window spec.md section 4.11 and
// section 6's `GET /swarm/timeseries/summary` expose per bot. The
// precise formulas are not given literally in spec text beyond the
// metric names, so — in the same spirit as spec.md section 9's
// commodity-floor treatment of an unspecified constant — these are
// reasonable, clearly documented estimators over the bounded recent-
// action history every GameState already carries.
type TimeSeriesSummary struct {
	BotID             string                   `json:"bot_id"`
	WindowMinutes     int                      `json:"window_minutes"`
	NetWorthPerTurn   float64                  `json:"net_worth_per_turn"`
	TradesPer100Turns float64                  `json:"trades_per_100_turns"`
	TradeSuccessRate  float64                  `json:"trade_success_rate"`
	NoTrade120P       bool                     `json:"no_trade_120p"`
	ROIConfidence     float64                  `json:"roi_confidence"`
	FailureReasons    TradeFailureSummary      `json:"failure_reasons"`
	DeltaAttribution  map[DeltaAttribution]int `json:"delta_attribution"`
}

// sample is one periodic net-worth observation, the raw material for
// net_worth_per_turn and roi_confidence.
type sample struct {
	at       time.Time
	turns    int
	netWorth int
}

const maxSamplesPerBot = 500

// botEntry is everything the Manager tracks about one registered bot:
// the live Runtime plus its sample history for time series computation.
type botEntry struct {
	mu      sync.Mutex
	id      string
	owner   string
	rt      *botruntime.Runtime
	cancel  func()
	samples []sample
}

func (e *botEntry) status(now time.Time) BotStatus {
	gs := e.rt.GameState()
	counters := e.rt.TradeFailureCounters()
	return BotStatus{
		ID:               e.id,
		Owner:            e.owner,
		State:            string(e.rt.State()),
		CharacterName:    e.rt.CharacterName(),
		Sector:           gs.CurrentSector,
		Credits:          gs.Credits,
		HoldsUsed:        gs.HoldsUsed,
		TurnsRemaining:   gs.TurnsRemaining,
		NetWorthEstimate: netWorthOf(gs),
		TradeFailures:    TradeFailureSummary(counters),
		UpdatedAt:        now,
	}
}

func netWorthOf(gs *knowledge.GameState) int {
	return knowledge.NetWorthEstimate(gs.Credits, nil)
}

// sampleNow appends the bot's current net-worth/turn reading, bounding
// the history to maxSamplesPerBot (spec.md section 5: "configuration
// is immutable after load" sibling policy — unbounded history would
// violate the same bounded-resource spirit the recent-actions ring
// already follows).
func (e *botEntry) sampleNow(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	gs := e.rt.GameState()
	e.samples = append(e.samples, sample{at: now, turns: gs.TurnsRemaining, netWorth: netWorthOf(gs)})
	if len(e.samples) > maxSamplesPerBot {
		e.samples = e.samples[len(e.samples)-maxSamplesPerBot:]
	}
}

func (e *botEntry) timeSeries(windowMinutes int, now time.Time) TimeSeriesSummary {
	e.mu.Lock()
	windowed := e.windowedSamplesLocked(windowMinutes, now)
	e.mu.Unlock()

	gs := e.rt.GameState()
	recent := recentActions(gs.RecentActions, 120)

	summary := TimeSeriesSummary{
		BotID:            e.id,
		WindowMinutes:    windowMinutes,
		FailureReasons:   TradeFailureSummary(e.rt.TradeFailureCounters()),
		DeltaAttribution: map[DeltaAttribution]int{},
	}

	if len(windowed) >= 2 {
		first, last := windowed[0], windowed[len(windowed)-1]
		turnDelta := last.turns - first.turns
		if turnDelta < 0 {
			turnDelta = -turnDelta
		}
		if turnDelta > 0 {
			summary.NetWorthPerTurn = float64(last.netWorth-first.netWorth) / float64(turnDelta)
		}
	}
	summary.ROIConfidence = confidenceFromSampleCount(len(windowed))

	var trades, successfulTrades int
	for _, a := range recent {
		summary.DeltaAttribution[attributionOf(a.Action)]++
		if a.Action == string(strategy.ActionTrade) {
			trades++
			// GameState.RecordOutcome stores the rejection/failure reason
			// as Outcome, left empty on a successful action.
			if a.Outcome == "" {
				successfulTrades++
			}
		}
	}
	if len(recent) > 0 {
		summary.TradesPer100Turns = float64(trades) / float64(len(recent)) * 100
	}
	if trades > 0 {
		summary.TradeSuccessRate = float64(successfulTrades) / float64(trades)
	}
	summary.NoTrade120P = len(recent) >= 120 && trades == 0

	return summary
}

func (e *botEntry) windowedSamplesLocked(windowMinutes int, now time.Time) []sample {
	if windowMinutes <= 0 {
		out := make([]sample, len(e.samples))
		copy(out, e.samples)
		return out
	}
	cutoff := now.Add(-time.Duration(windowMinutes) * time.Minute)
	var out []sample
	for _, s := range e.samples {
		if !s.at.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// confidenceFromSampleCount is a monotonically increasing, saturating
// estimate of how much to trust a window's derived rate: few samples
// mean low confidence, spec.md section 4.11's `roi_confidence` metric
// name without a literal formula attached.
func confidenceFromSampleCount(n int) float64 {
	const fullConfidenceSamples = 20
	if n >= fullConfidenceSamples {
		return 1
	}
	return float64(n) / fullConfidenceSamples
}

func recentActions(all []knowledge.ActionOutcome, limit int) []knowledge.ActionOutcome {
	if len(all) <= limit {
		return all
	}
	return all[len(all)-limit:]
}
