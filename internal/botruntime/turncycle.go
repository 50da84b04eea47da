package botruntime

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/promptrules"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

// turnCycle runs one wait-orient-decide-execute step. Returning
// errs.ErrTargetReached signals a graceful stop; any other non-nil
// error propagates to playOneCharacter and, from there, to Run's
// caller.
func (r *Runtime) turnCycle(ctx context.Context) error {
	res, err := r.orch.WaitAndRespond(ctx, "", r.promptTimeout())
	if err != nil {
		return fmt.Errorf("turn cycle: %w", err)
	}

	prevSector, prevCredits, prevHolds := r.gs.CurrentSector, r.gs.Credits, r.gs.HoldsUsed
	sector, oriented := knowledge.Apply(r.graph, r.gs, res.Snapshot.Text)
	if oriented {
		r.rec.OrientationUpdated(sector, r.gs.Credits, r.gs.HoldsUsed, r.gs.TurnsRemaining)
	}

	if deathMarkers.MatchString(res.Snapshot.Text) {
		return errs.ErrCharacterDied
	}

	// A matched prompt only proves the screen looks recognizable, not that
	// anything actually moved. Only a real orientation delta counts as
	// progress for recovery-attempt purposes; otherwise the same stuck
	// screen matching every turn would reset the counter before it ever
	// reaches MaxRecoveryAttempts.
	if r.gs.CurrentSector != prevSector || r.gs.Credits != prevCredits || r.gs.HoldsUsed != prevHolds {
		r.recoveryAttempts = 0
	}

	if res.Matched {
		if r.loop.Observe(res.Detection.PromptID, r.gs.CurrentSector, r.gs.Credits, r.gs.HoldsUsed) {
			return r.recover(ctx)
		}
	} else {
		if r.loop.Observe("", r.gs.CurrentSector, r.gs.Credits, r.gs.HoldsUsed) {
			return r.recover(ctx)
		}
	}

	if r.gs.CreditsVerified && r.cfg.Session.TargetCredits > 0 && r.gs.Credits >= r.cfg.Session.TargetCredits {
		return errs.ErrTargetReached
	}

	r.turnsThisSession++
	if r.cfg.Session.MaxTurnsPerSession > 0 && r.turnsThisSession > r.cfg.Session.MaxTurnsPerSession {
		return errs.ErrTurnBudgetExhausted
	}

	select {
	case cmd := <-r.inject:
		return r.executeInjected(ctx, cmd)
	default:
	}

	return r.decideAndExecute(ctx)
}

// executeInjected sends an operator-hijacked keystroke in place of the
// Strategy's own decision (spec.md section 4.11 hijack send), recording
// it the same way a regular action is recorded.
func (r *Runtime) executeInjected(ctx context.Context, cmd string) error {
	outcome, err := r.executeCommand(ctx, cmd)
	if err != nil {
		return err
	}
	result := "success"
	if !outcome.Success {
		result = "unmatched"
	}
	r.rec.ActionExecuted("hijack_send", cmd, result)
	return nil
}

func (r *Runtime) decideAndExecute(ctx context.Context) error {
	sk := r.graph.Get(r.gs.CurrentSector)
	shared := &strategy.SharedView{Graph: r.graph}
	action := r.strat.Decide(r.gs, sk, shared)

	if action.Kind == strategy.ActionTrade {
		if reason, ok := strategy.CheckTrade(action, sk, &r.counters); !ok {
			outcome := strategy.Outcome{Success: false, Reason: string(reason)}
			r.strat.OnOutcome(action, outcome)
			r.rec.ActionExecuted(string(action.Kind), action, string(reason))
			return nil
		}
	}

	outcome, err := r.executeAction(ctx, action)
	if err != nil {
		return err
	}
	r.strat.OnOutcome(action, outcome)
	r.gs.RecordOutcome(string(action.Kind), outcome.Reason)
	result := "success"
	if !outcome.Success {
		result = outcome.Reason
	}
	r.rec.ActionExecuted(string(action.Kind), action, result)
	return nil
}

// executeAction maps a decided Action onto orchestrator send/wait calls.
// The wire-level shape of trade/bank interactions is game-specific and
// not given literally in spec.md beyond its gating and success
// accounting, so this sends the action's command letter and lets
// orientation re-extraction on the resulting screen determine whether
// state actually changed.
func (r *Runtime) executeAction(ctx context.Context, action strategy.Action) (strategy.Outcome, error) {
	switch action.Kind {
	case strategy.ActionWarp:
		return r.executeWarp(ctx, action)
	case strategy.ActionTrade:
		return r.executeTrade(ctx, action)
	case strategy.ActionScan:
		return r.executeCommand(ctx, "scan")
	case strategy.ActionBank:
		return r.executeCommand(ctx, "bank "+string(action.BankOp)+" "+strconv.Itoa(action.BankAmount))
	case strategy.ActionWait:
		return strategy.Outcome{Success: true}, nil
	case strategy.ActionQuit:
		return strategy.Outcome{Success: true}, errs.ErrTargetReached
	default:
		return strategy.Outcome{}, fmt.Errorf("turn cycle: %w: unknown action kind %q", errs.ErrNoFeasibleAction, action.Kind)
	}
}

func (r *Runtime) executeWarp(ctx context.Context, action strategy.Action) (strategy.Outcome, error) {
	hop, ok := r.navigationHop(action.TargetSector)
	if !ok {
		return strategy.Outcome{Success: false, Reason: "unreachable"}, nil
	}
	if hop == r.gs.CurrentSector {
		return strategy.Outcome{Success: true}, nil
	}
	return r.executeCommand(ctx, strconv.Itoa(hop))
}

func (r *Runtime) executeTrade(ctx context.Context, action strategy.Action) (strategy.Outcome, error) {
	cmd := "t " + string(action.Side) + " " + string(action.Commodity) + " " + strconv.Itoa(action.Qty)
	before := r.gs.Credits
	outcome, err := r.executeCommand(ctx, cmd)
	if err != nil || !outcome.Success {
		return outcome, err
	}
	if r.gs.Credits == before {
		return strategy.Outcome{Success: false, Reason: "no_interaction"}, nil
	}
	return strategy.Outcome{Success: true}, nil
}

func (r *Runtime) executeCommand(ctx context.Context, cmd string) (strategy.Outcome, error) {
	if err := r.orch.SendInput(promptrules.InputMultiKey, cmd); err != nil {
		r.logError("send_failed", err)
		return strategy.Outcome{}, err
	}
	res, err := r.orch.WaitAndRespond(ctx, "", r.promptTimeout())
	if err != nil {
		return strategy.Outcome{}, fmt.Errorf("execute %q: %w", cmd, err)
	}
	knowledge.Apply(r.graph, r.gs, res.Snapshot.Text)
	return strategy.Outcome{Success: res.Matched}, nil
}

// recover implements the loop-recovery protocol (spec.md section 4.6,
// section 8 P9/scenario 3): Enter, then q, then the anchor key
// sequence, up to MaxRecoveryAttempts before surfacing OrientationLost.
func (r *Runtime) recover(ctx context.Context) error {
	r.recoveryAttempts++
	if r.recoveryAttempts > knowledge.MaxRecoveryAttempts {
		return errs.ErrOrientationLost
	}
	anchor := r.anchorKeys()
	for _, step := range knowledge.RecoverySequence(anchor) {
		if step.Keys == "" {
			continue
		}
		if err := r.orch.SendInput(promptrules.InputMultiKey, step.Keys); err != nil {
			return err
		}
		if _, err := r.orch.WaitAndRespond(ctx, "", r.promptTimeout()); err != nil {
			return fmt.Errorf("recover: %w", err)
		}
	}
	r.loop.Reset()
	return nil
}

// anchorKeys returns the game-specific safe-anchor sequence recovery
// falls back to (spec.md section 4.6), sourced from the dedicated
// detection.anchor_keys config key.
func (r *Runtime) anchorKeys() string {
	return r.cfg.Detection.AnchorKeys
}
