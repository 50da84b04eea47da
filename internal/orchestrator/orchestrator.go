// Package orchestrator implements the IO Orchestrator (spec.md section
// 4.5): send_input/wait_and_respond over a Session, with idle/stability
// gating, pagination continuation, and a pages-per-command cap.
package orchestrator

import (
	"context"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/promptrules"
	"github.com/tw2kbot/tw2kbot/internal/session"
)

// RuleSource exposes the currently active prompt rule set; satisfied by
// both *promptrules.Watcher and a static set wrapper.
type RuleSource interface {
	Current() *promptrules.Set
}

// staticRules adapts a single *promptrules.Set to RuleSource for
// callers that don't need hot reload.
type staticRules struct{ set *promptrules.Set }

func (s staticRules) Current() *promptrules.Set { return s.set }

// StaticRuleSource wraps a fixed rule Set as a RuleSource.
func StaticRuleSource(set *promptrules.Set) RuleSource { return staticRules{set} }

// Orchestrator drives one Session's send/wait cycle against a RuleSource.
type Orchestrator struct {
	sess  *session.Session
	rules RuleSource

	// PagesPerCommand bounds auto-continuation through pagination
	// prompts (spec.md section 4.5 default 20).
	PagesPerCommand int
}

// New wires a Session with its prompt RuleSource.
func New(sess *session.Session, rules RuleSource) *Orchestrator {
	return &Orchestrator{sess: sess, rules: rules, PagesPerCommand: 20}
}

// SendInput writes keys according to input_kind (spec.md section 4.5):
// single_key sends one byte, multi_key sends the string then a CR as a
// separate write (the TWGS quirk this spec carries verbatim), any_key
// sends a space, none sends nothing.
func (o *Orchestrator) SendInput(kind promptrules.InputKind, keys string) error {
	switch kind {
	case promptrules.InputSingleKey:
		if keys == "" {
			return nil
		}
		return o.sess.Send([]byte{keys[0]})
	case promptrules.InputMultiKey:
		if err := o.sess.Send([]byte(keys)); err != nil {
			return err
		}
		return o.sess.Send([]byte{'\r'})
	case promptrules.InputAnyKey:
		return o.sess.Send([]byte{' '})
	case promptrules.InputNone:
		return nil
	default:
		return nil
	}
}

// Result is what wait_and_respond hands back to the caller.
type Result struct {
	Detection promptrules.Detection
	Snapshot  session.Snapshot
	Matched   bool
}

// WaitAndRespond loops reading snapshots until a detection matching
// expectedPromptID (empty = any) appears on an idle screen, the screen
// goes stable-but-unknown for three consecutive reads, the timeout's
// 80% mark is crossed with a detection present but the screen still
// not idle, pagination auto-continuation is exhausted, or timeout
// elapses (spec.md section 4.5).
func (o *Orchestrator) WaitAndRespond(ctx context.Context, expectedPromptID string, timeout time.Duration) (Result, error) {
	deadline := time.Now().Add(timeout)
	unchangedReads := 0
	var lastHash string
	pages := 0

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Result{}, errs.ErrPromptTimeout
		}
		step := remaining
		if step > 250*time.Millisecond {
			step = 250 * time.Millisecond
		}

		snap, err := o.sess.Read(ctx, step)
		if err != nil {
			return Result{Snapshot: snap}, err
		}

		if snap.Hash == lastHash {
			unchangedReads++
		} else {
			unchangedReads = 0
			lastHash = snap.Hash
		}

		rules := o.rules.Current()
		det, found := rules.Detect(snap.LastNRows(o.sess.LastNRows()), snap.CursorAtEnd)

		if found && isPagination(det) {
			if pages >= o.PagesPerCommand {
				return Result{Detection: det, Snapshot: snap, Matched: true}, nil
			}
			pages++
			if err := o.sess.Send([]byte{' '}); err != nil {
				return Result{Snapshot: snap}, err
			}
			continue
		}

		if found && (expectedPromptID == "" || det.PromptID == expectedPromptID) {
			if snap.IsIdle {
				return Result{Detection: det, Snapshot: snap, Matched: true}, nil
			}
			elapsedFrac := 1 - float64(time.Until(deadline))/float64(timeout)
			if elapsedFrac >= 0.8 {
				return Result{Detection: det, Snapshot: snap, Matched: true}, nil
			}
		}

		if unchangedReads >= 3 {
			return Result{Snapshot: snap, Matched: false}, nil
		}
	}
}

// isPagination reports whether a detection is a pause/more-style prompt
// the orchestrator should auto-continue rather than surface.
func isPagination(det promptrules.Detection) bool {
	if det.InputKind == promptrules.InputAnyKey {
		return true
	}
	return det.Kind == promptrules.KindPause
}
