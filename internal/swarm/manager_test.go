package swarm

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/botruntime"
	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/namegen"
	"github.com/tw2kbot/tw2kbot/internal/orchestrator"
	"github.com/tw2kbot/tw2kbot/internal/promptrules"
	"github.com/tw2kbot/tw2kbot/internal/recorder"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

func newTestRuntime(t *testing.T) *botruntime.Runtime {
	t.Helper()
	rules, err := promptrules.Load(strings.NewReader(`[]`))
	if err != nil {
		t.Fatalf("Load rules: %v", err)
	}
	cfg := config.Default()
	cfg.Connection = config.ConnectionConfig{Host: "bbs.example.test", Port: 2002}
	names := namegen.New(cfg.Character)
	factory := func(gs *knowledge.GameState, graph *knowledge.Graph) strategy.Strategy { return nil }
	return botruntime.New(cfg, orchestrator.StaticRuleSource(rules), recorder.NewWriter(io.Discard), names, factory)
}

func newTestManager() *Manager {
	return NewManager(time.Hour, 0, 0)
}

func TestRegisterAndStatusReportsRuntimeState(t *testing.T) {
	m := newTestManager()
	rt := newTestRuntime(t)
	rt.GameState().Credits = 1200
	rt.GameState().CurrentSector = 7

	m.Register("bot-1", "alice", rt, func() {})

	statuses := m.Status(time.Unix(0, 0))
	if len(statuses) != 1 {
		t.Fatalf("Status returned %d entries, want 1", len(statuses))
	}
	if statuses[0].Credits != 1200 || statuses[0].Sector != 7 {
		t.Fatalf("status = %+v, unexpected credits/sector", statuses[0])
	}
}

func TestUnregisterRemovesBotFromStatus(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	m.Unregister("bot-1")

	if len(m.Status(time.Unix(0, 0))) != 0 {
		t.Fatal("expected no bots after Unregister")
	}
}

func TestTimeSeriesUnknownBotReturnsNotFound(t *testing.T) {
	m := newTestManager()
	if _, err := m.TimeSeries("missing", 0, time.Unix(0, 0)); err == nil {
		t.Fatal("expected error for unknown bot id")
	}
}

func TestAssumeRequiresRegisteredBot(t *testing.T) {
	m := newTestManager()
	if _, err := m.Assume("missing", "alice", time.Unix(0, 0)); err == nil {
		t.Fatal("expected error for unknown bot id")
	}

	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	lease, err := m.Assume("bot-1", "alice", time.Unix(0, 0))
	if err != nil {
		t.Fatalf("Assume: %v", err)
	}
	if lease.Owner != "alice" {
		t.Fatalf("lease owner = %q, want alice", lease.Owner)
	}
}

func TestSweepLeasesReclaimsExpiredLeaseForRegisteredBot(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})

	t0 := time.Unix(0, 0)
	if _, err := m.Leases.Begin("bot-1", "alice", 5, t0); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	m.sweepLeases(t0.Add(10 * time.Second))

	if _, ok := m.Leases.Current("bot-1", t0.Add(10*time.Second)); ok {
		t.Fatal("expected lease to be reclaimed")
	}
}

func TestSampleAllFeedsTimeSeriesWindow(t *testing.T) {
	m := newTestManager()
	rt := newTestRuntime(t)
	rt.GameState().Credits = 100
	rt.GameState().TurnsRemaining = 100
	m.Register("bot-1", "alice", rt, func() {})

	t0 := time.Unix(0, 0)
	m.sampleAll(t0)

	rt.GameState().Credits = 900
	rt.GameState().TurnsRemaining = 50
	t1 := t0.Add(time.Minute)
	m.sampleAll(t1)

	summary, err := m.TimeSeries("bot-1", 0, t1)
	if err != nil {
		t.Fatalf("TimeSeries: %v", err)
	}
	if summary.NetWorthPerTurn <= 0 {
		t.Fatalf("NetWorthPerTurn = %v, want positive after a credits gain over fewer turns remaining", summary.NetWorthPerTurn)
	}
}
