package llm

import (
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

// BuildPrompt assembles a bounded Prompt from the live game state: up to
// radius adjacent sectors with port/price knowledge, and up to
// maxHistory recent (action, outcome) pairs (spec.md section 4.9).
func BuildPrompt(mode string, gs *knowledge.GameState, graph *knowledge.Graph, radius, maxHistory int, includeHistory bool) Prompt {
	p := Prompt{
		Mode:           mode,
		CurrentSector:  gs.CurrentSector,
		Credits:        gs.Credits,
		HoldsUsed:      gs.HoldsUsed,
		HoldsTotal:     gs.HoldsTotal,
		TurnsRemaining: gs.TurnsRemaining,
	}

	if graph != nil {
		for _, n := range graph.Neighbors(gs.CurrentSector) {
			if len(p.Adjacent) >= radius {
				break
			}
			sk := graph.Get(n)
			if sk == nil {
				continue
			}
			p.Adjacent = append(p.Adjacent, AdjacentSector{
				SectorID:  n,
				HasPort:   sk.HasPort,
				PortClass: string(sk.PortClass),
			})
		}
	}

	if includeHistory {
		actions := gs.RecentActions
		if len(actions) > maxHistory {
			actions = actions[len(actions)-maxHistory:]
		}
		for _, a := range actions {
			p.RecentActions = append(p.RecentActions, RecentAction{Action: a.Action, Outcome: a.Outcome})
		}
	}

	return p
}
