package botruntime

import (
	"context"
	"fmt"

	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/promptrules"
)

// maxLoginPrompts bounds the login state machine so a misconfigured
// rule file or an unexpected server flow cannot spin forever.
const maxLoginPrompts = 20

// login drives the connect-to-command-prompt sequence (spec.md section
// 6: "servers are known to skip the initial name prompt under some
// client fingerprints, so the login state machine tolerates either an
// immediate game-selection menu or a preceding name prompt"). Dispatch
// is entirely on PromptRule.Kind, never on a specific rule id, so any
// game namespace's rule file drives the same state machine.
func (r *Runtime) login(ctx context.Context) error {
	r.characterName = r.names.Generate(r.cfg.Character.NameComplexity)

	var lastGamePassPromptID string

	for i := 0; i < maxLoginPrompts; i++ {
		res, err := r.orch.WaitAndRespond(ctx, "", r.promptTimeout())
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		sector, oriented := knowledge.Apply(r.graph, r.gs, res.Snapshot.Text)
		if oriented {
			r.rec.OrientationUpdated(sector, r.gs.Credits, r.gs.HoldsUsed, r.gs.TurnsRemaining)
		}

		if !res.Matched {
			if oriented {
				return nil
			}
			return fmt.Errorf("login: %w", errs.ErrUnexpectedPrompt)
		}
		if oriented && isCommandPromptKind(res.Detection.Kind) {
			return nil
		}

		// A private game's password prompt reappearing with the same
		// PromptID means the password just sent was rejected: the game
		// re-asks rather than advancing, so a second identical prompt
		// is the only observable signal of rejection.
		if res.Detection.Kind == promptrules.KindGamePass {
			if res.Detection.PromptID == lastGamePassPromptID {
				return fmt.Errorf("login: %w", errs.ErrPrivateGameRejected)
			}
			lastGamePassPromptID = res.Detection.PromptID
		}

		payload, err := r.loginPayload(res.Detection)
		if err != nil {
			return err
		}
		if err := r.orch.SendInput(res.Detection.InputKind, payload); err != nil {
			return err
		}
	}
	return fmt.Errorf("login: %w: exceeded %d login prompts", errs.ErrLoginFailed, maxLoginPrompts)
}

// isCommandPromptKind reports whether a detection's kind is one the
// login loop treats as "already inside the game" rather than part of
// the login sequence proper (a rule author tags the in-game command
// prompt with kind "input" once name/password/menu prompts are past).
func isCommandPromptKind(k promptrules.Kind) bool {
	return k == promptrules.KindInput
}

// loginPayload picks what to send for a detected login-sequence prompt,
// purely from its Kind (spec.md section 3's closed Kind set).
func (r *Runtime) loginPayload(det promptrules.Detection) (string, error) {
	switch det.Kind {
	case promptrules.KindMenu:
		return r.cfg.Connection.GameLetter, nil
	case promptrules.KindGamePass, promptrules.KindLoginPass:
		return r.cfg.Character.Password, nil
	case promptrules.KindLoginName:
		return r.characterName, nil
	case promptrules.KindConfirm:
		return "Y", nil
	case promptrules.KindPause:
		return "", nil
	default:
		return "", fmt.Errorf("login: %w: unhandled prompt kind %q", errs.ErrUnexpectedPrompt, det.Kind)
	}
}
