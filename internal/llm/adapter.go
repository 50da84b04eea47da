package llm

import (
	"context"
	"errors"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/logging"
	"github.com/tw2kbot/tw2kbot/internal/recorder"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

// Adapter implements strategy.Decider: it builds a Prompt, calls an
// Oracle with bounded retry/backoff, parses the response, and enforces
// the fallback discipline of spec.md section 4.9 (F consecutive
// failures hand the decision to a fallback Strategy for D turns).
type Adapter struct {
	oracle         Oracle
	graph          *knowledge.Graph
	retry          RetryPolicy
	mode           string
	radius         int
	maxHistory     int
	includeHistory bool

	failureThreshold int
	fallbackTurns    int

	rec *recorder.Writer

	consecutiveFailures int
	fallbackRemaining   int
}

// NewAdapter wires an Oracle with the context-building and
// fallback-discipline parameters from spec.md section 6's `ai_strategy`
// and `llm` sections.
func NewAdapter(oracle Oracle, graph *knowledge.Graph, retry RetryPolicy, mode string, radius, maxHistory int, includeHistory bool, failureThreshold, fallbackTurns int, rec *recorder.Writer) *Adapter {
	return &Adapter{
		oracle:           oracle,
		graph:            graph,
		retry:            retry,
		mode:             mode,
		radius:           radius,
		maxHistory:       maxHistory,
		includeHistory:   includeHistory,
		failureThreshold: failureThreshold,
		fallbackTurns:    fallbackTurns,
		rec:              rec,
	}
}

// InFallback reports whether the adapter is currently serving decisions
// from its fallback window rather than the oracle.
func (a *Adapter) InFallback() bool {
	return a.fallbackRemaining > 0
}

// Decide satisfies strategy.Decider. While inside a fallback window it
// returns errs.ErrLLMTimeout-flavored failure immediately so the caller
// (strategy.AIStrategy) falls through to its own fallback Strategy
// without spending a retry budget on an oracle known to be failing.
func (a *Adapter) Decide(ctx context.Context, gs *knowledge.GameState, sector *knowledge.SectorKnowledge) (strategy.Action, error) {
	if a.fallbackRemaining > 0 {
		a.fallbackRemaining--
		return strategy.Action{}, errs.ErrLLMTimeout
	}

	prompt := BuildPrompt(a.mode, gs, a.graph, a.radius, a.maxHistory, a.includeHistory)
	known := adjacentSet(prompt)

	resp, err := a.callWithRetry(ctx, prompt)
	if err != nil {
		a.recordFailure(err)
		return strategy.Action{}, err
	}

	action, err := ParseAction(resp, known)
	if err != nil {
		a.recordFailure(err)
		return strategy.Action{}, err
	}

	a.consecutiveFailures = 0
	return action, nil
}

func adjacentSet(p Prompt) map[int]bool {
	set := map[int]bool{p.CurrentSector: true}
	for _, a := range p.Adjacent {
		set[a.SectorID] = true
	}
	return set
}

func (a *Adapter) callWithRetry(ctx context.Context, prompt Prompt) (Response, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(a.retry.Delay(attempt - 1)):
			}
		}
		resp, err := a.oracle.Complete(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, errs.ErrLLMModelNotFound) {
			break // not transient, retrying cannot help
		}
	}
	return Response{}, lastErr
}

// recordFailure bumps the consecutive-failure counter and, once it
// crosses failureThreshold, opens a fallback window of fallbackTurns
// decisions (spec.md section 4.9, section 8 scenario 4).
func (a *Adapter) recordFailure(err error) {
	a.consecutiveFailures++
	if a.consecutiveFailures < a.failureThreshold {
		return
	}
	a.consecutiveFailures = 0
	a.fallbackRemaining = a.fallbackTurns
	if a.rec != nil {
		if recErr := a.rec.LLMIntervention("fallback_to_strategy"); recErr != nil {
			logging.Warn("llm: failed to record fallback intervention: %v", recErr)
		}
	}
}
