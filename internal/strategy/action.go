// Package strategy implements the pure-policy dispatcher of spec.md
// section 4.8: strategies observe (GameState, SectorKnowledge, optional
// SharedKnowledge) and return one Action from a closed tagged union,
// grounded on spec.md section 9's "dynamic/duck-typed polymorphism ->
// tagged variants" design note and, stylistically, on the teacher's
// internal/ftn packet-kind dispatch (a small closed set of structs behind
// one Kind field and a switch, rather than an interface hierarchy).
package strategy

import (
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
)

// ActionKind enumerates the closed set of actions a Strategy may return.
type ActionKind string

const (
	ActionWarp  ActionKind = "warp"
	ActionTrade ActionKind = "trade"
	ActionScan  ActionKind = "scan"
	ActionWait  ActionKind = "wait"
	ActionBank  ActionKind = "bank"
	ActionQuit  ActionKind = "quit"
)

// BankOp selects deposit vs withdraw for ActionBank.
type BankOp string

const (
	BankDeposit  BankOp = "deposit"
	BankWithdraw BankOp = "withdraw"
)

// TradeSide distinguishes a buy from a bot perspective (bot acquires the
// commodity from the port) vs a sell (bot delivers it to the port).
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Action is the tagged union a Strategy returns each turn. Only the
// fields relevant to Kind are populated.
type Action struct {
	Kind ActionKind

	TargetSector int

	Commodity knowledge.Commodity
	Side      TradeSide
	Qty       int

	BankAmount int
	BankOp     BankOp
}

// Outcome is what the orchestrator reports back to a Strategy's
// on_outcome hook after executing an Action.
type Outcome struct {
	Success bool
	Reason  string
}

// Strategy is the capability set every variant implements (spec.md
// section 9): decide the next Action, and observe the outcome of the
// previous one.
type Strategy interface {
	Decide(gs *knowledge.GameState, sector *knowledge.SectorKnowledge, shared *SharedView) Action
	OnOutcome(action Action, outcome Outcome)
}

// SharedView is the read-only slice of SharedKnowledge a Strategy may
// consult; swarm-mode strategies receive a populated view, solo bots a
// nil one.
type SharedView struct {
	Graph *knowledge.Graph
}
