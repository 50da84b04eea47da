// Package botruntime implements the per-character outer loop (spec.md
// section 4.10): connect, log in, cycle turns through a Strategy, and
// recover from or accept character death, wiring every lower layer
// (transport, session, orchestrator, prompt rules, knowledge, navigation,
// strategy) into one goroutine-per-character task. Grounded on the
// teacher's session.BbsSession lifecycle (a long-lived per-connection
// struct whose CurrentMenu field tracks state transitions) generalized
// from a server-side menu tracker into a client-side state machine with
// explicit states instead of free-form menu names.
package botruntime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/logging"
	"github.com/tw2kbot/tw2kbot/internal/namegen"
	"github.com/tw2kbot/tw2kbot/internal/navigation"
	"github.com/tw2kbot/tw2kbot/internal/orchestrator"
	"github.com/tw2kbot/tw2kbot/internal/recorder"
	"github.com/tw2kbot/tw2kbot/internal/session"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
	"github.com/tw2kbot/tw2kbot/internal/transport"
)

// State is one node of the outer state machine (spec.md section 4.10).
type State string

const (
	StateDisconnected State = "disconnected"
	StateLoggingIn    State = "logging_in"
	StateInGame       State = "in_game"
	StateRecovering   State = "recovering"
	StateExiting      State = "exiting"
)

// StrategyFactory builds a fresh Strategy for a character, given its
// live GameState and the knowledge graph it should consult. Supplied by
// the caller (cmd/twbot) since strategy construction depends on config
// sections (trading.strategy, ai_strategy, llm) this package does not
// own.
type StrategyFactory func(gs *knowledge.GameState, graph *knowledge.Graph) strategy.Strategy

// Runtime drives one character's full lifecycle: connect, log in, play
// turns, and on death either retire or spin up a successor (spec.md
// section 4.10's death handling).
type Runtime struct {
	cfg         *config.Config
	rules       orchestrator.RuleSource
	rec         *recorder.Writer
	names       *namegen.Generator
	newStrategy StrategyFactory

	dial func(ctx context.Context, addr string) (session.Transport, error)

	graph *knowledge.Graph
	gs    *knowledge.GameState
	loop  *knowledge.LoopDetector
	strat strategy.Strategy

	counters strategy.TradeFailureCounters

	state         State
	sess          *session.Session
	orch          *orchestrator.Orchestrator
	characterName string

	turnsThisSession int
	recoveryAttempts int

	inject chan string
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithGraph seeds the Runtime with a pre-existing knowledge graph,
// either a private arena or a view onto a swarm's shared store (spec.md
// section 3 SharedKnowledge `shared`/`inherit_on_death` modes).
func WithGraph(g *knowledge.Graph) Option {
	return func(r *Runtime) { r.graph = g }
}

// WithDialer overrides how Run establishes the transport connection,
// primarily for tests that substitute an in-memory net.Pipe listener.
func WithDialer(dial func(ctx context.Context, addr string) (session.Transport, error)) Option {
	return func(r *Runtime) { r.dial = dial }
}

// New wires a Runtime from its immutable collaborators.
func New(cfg *config.Config, rules orchestrator.RuleSource, rec *recorder.Writer, names *namegen.Generator, newStrategy StrategyFactory, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:         cfg,
		rules:       rules,
		rec:         rec,
		names:       names,
		newStrategy: newStrategy,
		dial:        dialTelnet,
		graph:       knowledge.NewGraph(),
		gs:          &knowledge.GameState{DangerCooldowns: map[int]time.Time{}},
		loop:        knowledge.NewLoopDetector(),
		state:       StateDisconnected,
		inject:      make(chan string, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State reports the Runtime's current outer-loop state, primarily for
// tests and swarm status reporting.
func (r *Runtime) State() State { return r.state }

// GameState exposes the live game state for swarm status aggregation.
func (r *Runtime) GameState() *knowledge.GameState { return r.gs }

// TradeFailureCounters exposes the trade gate's accumulated rejection
// counts for swarm failure-reason telemetry (spec.md section 4.11).
func (r *Runtime) TradeFailureCounters() strategy.TradeFailureCounters { return r.counters }

// CharacterName reports the currently active character's generated
// name, for swarm status reporting.
func (r *Runtime) CharacterName() string { return r.characterName }

// Inject queues an operator keystroke (spec.md section 4.11 hijack
// send) to be sent on the next turn cycle in place of the Strategy's
// own decision. The queue holds one pending command: a command sent
// before the previous one is consumed replaces it rather than
// blocking, since a hijacking operator wants their latest keystroke
// honored, not a backlog played out after they have moved on.
func (r *Runtime) Inject(cmd string) {
	for {
		select {
		case r.inject <- cmd:
			return
		default:
		}
		select {
		case <-r.inject:
		default:
		}
	}
}

// LastScreen returns the most recently rendered terminal screen without
// disturbing the turn cycle's own reads, for a hijack operator's live
// view (spec.md section 4.11). It returns the empty string before the
// Runtime has connected.
func (r *Runtime) LastScreen() string {
	if r.sess == nil {
		return ""
	}
	return r.sess.Peek().Text
}

// Run drives one character from connect through its terminal outcome.
// It returns nil on a graceful quit and also when the character reaches
// its target (errs.ErrTargetReached is mapped to nil); any other error is one of the lifecycle/protocol sentinels in
// internal/errs, from which cmd/twbot derives its process exit code.
func (r *Runtime) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := r.playOneCharacter(ctx)
		if !isDeath(err) {
			return err
		}
		if !r.shouldCreateSuccessor(attempt) {
			return err
		}
		r.prepareSuccessor()
	}
}

// dialTelnet is the production dialer, wired to the real telnet
// transport; tests substitute WithDialer to avoid a real socket.
func dialTelnet(ctx context.Context, addr string) (session.Transport, error) {
	return transport.Dial(ctx, addr)
}

func isDeath(err error) bool {
	return errors.Is(err, errs.ErrCharacterDied)
}

func (r *Runtime) shouldCreateSuccessor(attempt int) bool {
	mc := r.cfg.MultiCharacter
	if !mc.Enabled {
		return false
	}
	if mc.MaxCharacters > 0 && attempt+1 >= mc.MaxCharacters {
		return false
	}
	return true
}

// prepareSuccessor resets session-scoped state for a new character,
// conditionally carrying danger cooldowns forward per
// multi_character.inherit_danger_cooldowns (spec.md section 9 open
// question decision).
func (r *Runtime) prepareSuccessor() {
	r.names.Release(r.characterName)
	r.characterName = ""

	cooldowns := map[int]time.Time{}
	if r.cfg.MultiCharacter.InheritDangerCooldowns {
		for sector, expiry := range r.gs.DangerCooldowns {
			cooldowns[sector] = expiry
		}
	}
	r.gs = &knowledge.GameState{DangerCooldowns: cooldowns}
	r.loop.Reset()
	r.turnsThisSession = 0
	r.recoveryAttempts = 0

	if r.cfg.MultiCharacter.KnowledgeSharing != config.KnowledgeSharingInheritOnDeath {
		r.graph = knowledge.NewGraph()
	}
}

func (r *Runtime) playOneCharacter(ctx context.Context) error {
	r.state = StateLoggingIn
	if err := r.connect(ctx); err != nil {
		return err
	}
	defer r.sess.Close()

	if err := r.login(ctx); err != nil {
		return err
	}

	r.strat = r.newStrategy(r.gs, r.graph)
	r.state = StateInGame

	for {
		select {
		case <-ctx.Done():
			r.state = StateExiting
			return ctx.Err()
		default:
		}

		err := r.turnCycle(ctx)
		switch {
		case err == nil:
			continue
		case isQuit(err):
			r.state = StateExiting
			return nil
		default:
			r.state = StateExiting
			return err
		}
	}
}

func isQuit(err error) bool {
	return errors.Is(err, errs.ErrTargetReached)
}

func (r *Runtime) connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", r.cfg.Connection.Host, r.cfg.Connection.Port)
	tr, err := r.dial(ctx, addr)
	if err != nil {
		return err
	}
	stability := time.Duration(r.cfg.Detection.StabilityWindowMs) * time.Millisecond
	r.sess = session.New(tr, r.rec, stability, r.cfg.Detection.LastNRows)
	r.orch = orchestrator.New(r.sess, r.rules)
	r.orch.PagesPerCommand = r.cfg.Detection.PagesPerCommand
	return nil
}

// deathMarkers is a heuristic text match for a character-death screen;
// no PromptRule kind exists for it in spec.md section 3 (kind is closed
// to login/menu/input-style prompts), so detection happens directly
// against orientation text.
var deathMarkers = regexp.MustCompile(`(?i)(you have been destroyed|your ship has been destroyed|killed in combat)`)

func (r *Runtime) promptTimeout() time.Duration {
	ms := r.cfg.Session.PromptTimeoutMs
	if ms <= 0 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}

func (r *Runtime) logError(kind string, err error) {
	if err == nil {
		return
	}
	logging.Warn("botruntime: %s: %v", kind, err)
}

// navigationHop returns the next sector a warp toward target should move
// through, given the runtime's current knowledge and danger cooldowns
// (spec.md section 4.7).
func (r *Runtime) navigationHop(target int) (int, bool) {
	if r.gs.CurrentSector == target {
		return target, true
	}
	path, ok := navigation.FindPath(r.graph, r.gs.DangerCooldowns, r.gs.CurrentSector, target)
	if !ok || len(path) == 0 {
		return 0, false
	}
	return path[0], true
}
