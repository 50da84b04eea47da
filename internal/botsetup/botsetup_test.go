package botsetup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/recorder"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

const testRulesJSON = `[{"id":"menu.select","regex":"Selection","input_kind":"multi_key","kind":"menu"}]`

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadConfigAppliesFileThenEnvOverrides(t *testing.T) {
	path := writeTempFile(t, "config.json", `{"connection":{"host":"bbs.example.test","port":2002},"character":{"name_complexity":"medium"},"trading":{"strategy":"opportunistic","anti_collapse":{"window_minutes":15,"downshift_factor":0.5},"trade_quality":{}},"session":{"target_credits":1,"max_turns_per_session":1},"multi_character":{"knowledge_sharing":"independent"},"llm":{"provider":"ollama","providers":{}},"ai_strategy":{"fallback_strategy":"opportunistic","context_mode":"summary"},"detection":{"stability_window_ms":120,"last_n_rows":4}}`)

	t.Setenv("TWTEST_CONNECTION__PORT", "2525")
	cfg, err := LoadConfig(path, "TWTEST")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Connection.Port != 2525 {
		t.Fatalf("port = %d, want env override 2525", cfg.Connection.Port)
	}
	if cfg.Connection.Host != "bbs.example.test" {
		t.Fatalf("host = %q, want value from file", cfg.Connection.Host)
	}
}

func TestLoadConfigWithoutPathUsesDefaultsPlusEnv(t *testing.T) {
	t.Setenv("TWTEST_CONNECTION__HOST", "door.example.test")
	t.Setenv("TWTEST_CONNECTION__PORT", "23")
	cfg, err := LoadConfig("", "TWTEST")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Connection.Host != "door.example.test" {
		t.Fatalf("host = %q", cfg.Connection.Host)
	}
}

func TestLoadConfigRejectsInvalidDocument(t *testing.T) {
	path := writeTempFile(t, "config.json", `{"connection":{"host":"","port":0}}`)
	if _, err := LoadConfig(path, "TWTEST"); err == nil {
		t.Fatal("expected validation error for empty host")
	}
}

func TestLoadRulesStaticReadsFile(t *testing.T) {
	path := writeTempFile(t, "rules.json", testRulesJSON)
	rules, closeFn, err := LoadRules(path, false)
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}
	defer closeFn()
	if rules.Current() == nil {
		t.Fatal("expected a non-nil rule set")
	}
}

func TestLoadRulesMissingFileErrors(t *testing.T) {
	if _, _, err := LoadRules(filepath.Join(t.TempDir(), "missing.json"), false); err == nil {
		t.Fatal("expected an error for a missing rules file")
	}
}

func TestOpenRecorderWithEmptyPathDiscards(t *testing.T) {
	rec, closeFn, err := OpenRecorder("")
	if err != nil {
		t.Fatalf("OpenRecorder: %v", err)
	}
	defer closeFn()
	if err := rec.BytesOut([]byte("hello")); err != nil {
		t.Fatalf("BytesOut: %v", err)
	}
}

func TestOpenRecorderWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	rec, closeFn, err := OpenRecorder(path)
	if err != nil {
		t.Fatalf("OpenRecorder: %v", err)
	}
	if err := rec.BytesOut([]byte("hello")); err != nil {
		t.Fatalf("BytesOut: %v", err)
	}
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "bytes_out") {
		t.Fatalf("expected a bytes_out event, got %s", data)
	}
}

func TestStrategyFactoryBuildsOpportunisticByDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Trading.Strategy = config.StrategyOpportunistic
	factory, err := StrategyFactory(context.Background(), cfg, discardRecorder())
	if err != nil {
		t.Fatalf("StrategyFactory: %v", err)
	}
	gs := &knowledge.GameState{HoldsTotal: 40}
	s := factory(gs, knowledge.NewGraph())
	if _, ok := s.(*strategy.OpportunisticStrategy); !ok {
		t.Fatalf("got %T, want *strategy.OpportunisticStrategy", s)
	}
}

func TestStrategyFactoryBuildsProfitablePairs(t *testing.T) {
	cfg := config.Default()
	cfg.Trading.Strategy = config.StrategyProfitablePairs
	factory, err := StrategyFactory(context.Background(), cfg, discardRecorder())
	if err != nil {
		t.Fatalf("StrategyFactory: %v", err)
	}
	s := factory(&knowledge.GameState{HoldsTotal: 10}, knowledge.NewGraph())
	if _, ok := s.(*strategy.ProfitablePairsStrategy); !ok {
		t.Fatalf("got %T, want *strategy.ProfitablePairsStrategy", s)
	}
}

func TestStrategyFactoryAIStrategyRequiresProviderConfig(t *testing.T) {
	cfg := config.Default()
	cfg.AIStrategy.Enabled = true
	cfg.LLM.Provider = config.LLMProviderOpenAI
	// no providers entry and no TWBOT_OPENAI_API_KEY set
	if _, err := StrategyFactory(context.Background(), cfg, discardRecorder()); err == nil {
		t.Fatal("expected an error for a provider with no config entry")
	}
}

func TestStrategyFactoryAIStrategyWrapsFallback(t *testing.T) {
	cfg := config.Default()
	cfg.AIStrategy.Enabled = true
	cfg.LLM.Provider = config.LLMProviderOllama
	cfg.LLM.Providers[config.LLMProviderOllama] = config.LLMProviderConfig{BaseURL: "http://localhost:11434", Model: "llama3"}

	factory, err := StrategyFactory(context.Background(), cfg, discardRecorder())
	if err != nil {
		t.Fatalf("StrategyFactory: %v", err)
	}
	s := factory(&knowledge.GameState{HoldsTotal: 10}, knowledge.NewGraph())
	if _, ok := s.(*strategy.AIStrategy); !ok {
		t.Fatalf("got %T, want *strategy.AIStrategy", s)
	}
}

func TestFloorMarginalProfitUsesCommodityFloor(t *testing.T) {
	sk := &knowledge.SectorKnowledge{}
	got := floorMarginalProfit(sk, knowledge.CommodityFuel)
	if got != knowledge.CommodityFloor[knowledge.CommodityFuel] {
		t.Fatalf("floorMarginalProfit = %d, want %d", got, knowledge.CommodityFloor[knowledge.CommodityFuel])
	}
}

func TestExitCodeForMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, errs.ExitSuccess},
		{errs.ErrTargetReached, errs.ExitSuccess},
		{errs.ErrOrientationLost, errs.ExitUnrecoverableOrient},
		{errs.ErrKnowledgePoisoned, errs.ExitUnrecoverableOrient},
		{errs.ErrConnectionRefused, errs.ExitConnectionFailure},
		{errs.ErrLoginFailed, errs.ExitConnectionFailure},
	}
	for _, c := range cases {
		if got := ExitCodeFor(c.err); got != c.want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func discardRecorder() *recorder.Writer {
	return recorder.NewWriter(discardWriter{})
}
