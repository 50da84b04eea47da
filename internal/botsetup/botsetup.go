// Package botsetup holds the collaborator-wiring logic shared by the
// twbot and twswarm commands: turning a config file path and a rules
// file path into the concrete config.Config, orchestrator.RuleSource,
// recorder.Writer, and botruntime.StrategyFactory a Runtime needs.
// Neither command owns this logic exclusively, since twswarm launches
// the same kind of Runtime twbot does, just many of them under one
// process.
package botsetup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/botruntime"
	"github.com/tw2kbot/tw2kbot/internal/config"
	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/knowledge"
	"github.com/tw2kbot/tw2kbot/internal/llm"
	"github.com/tw2kbot/tw2kbot/internal/logging"
	"github.com/tw2kbot/tw2kbot/internal/orchestrator"
	"github.com/tw2kbot/tw2kbot/internal/promptrules"
	"github.com/tw2kbot/tw2kbot/internal/recorder"
	"github.com/tw2kbot/tw2kbot/internal/strategy"
)

// LoadConfig decodes path on top of config.Default() (or uses Default()
// untouched when path is empty), then layers envPrefix-prefixed
// environment overrides and validates the result.
func LoadConfig(path, envPrefix string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		cfg, err = config.Load(f)
		if err != nil {
			return nil, err
		}
	}
	if err := config.ApplyEnvOverrides(cfg, envPrefix, os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRules builds a RuleSource from path, either a one-shot Load or a
// Watcher that reloads on file change. The returned closer is a no-op
// in the static case.
func LoadRules(path string, watch bool) (orchestrator.RuleSource, func(), error) {
	if watch {
		w, err := promptrules.NewWatcher(path)
		if err != nil {
			return nil, nil, fmt.Errorf("watch rules: %w", err)
		}
		return w, func() { _ = w.Close() }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	set, err := promptrules.Load(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}
	return orchestrator.StaticRuleSource(set), func() {}, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// OpenRecorder returns a recorder.Writer appending to path, or one that
// discards every event when path is empty.
func OpenRecorder(path string) (*recorder.Writer, func(), error) {
	if path == "" {
		return recorder.NewWriter(discardWriter{}), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open record file %s: %w", path, err)
	}
	return recorder.NewWriter(f), func() { _ = f.Close() }, nil
}

// StrategyFactory builds the botruntime.StrategyFactory named by
// cfg.Trading.Strategy. When cfg.AIStrategy.Enabled routes decisions
// through an LLM oracle instead, every Strategy it builds is a
// strategy.NewAIStrategy wrapper whose fallback target is
// cfg.AIStrategy.FallbackStrategy, and cfg.Trading.Strategy is not used.
func StrategyFactory(ctx context.Context, cfg *config.Config, rec *recorder.Writer) (botruntime.StrategyFactory, error) {
	base := func(gs *knowledge.GameState, graph *knowledge.Graph) strategy.Strategy {
		return strategyFor(cfg.Trading.Strategy, gs)
	}
	if !cfg.AIStrategy.Enabled {
		return base, nil
	}

	oracle, err := buildOracle(cfg)
	if err != nil {
		return nil, err
	}

	return func(gs *knowledge.GameState, graph *knowledge.Graph) strategy.Strategy {
		fallback := strategyFor(cfg.AIStrategy.FallbackStrategy, gs)
		adapter := llm.NewAdapter(
			oracle,
			graph,
			retryPolicy(cfg),
			string(cfg.AIStrategy.ContextMode),
			cfg.AIStrategy.SectorRadius,
			cfg.AIStrategy.MaxHistoryItems,
			cfg.AIStrategy.IncludeHistory,
			cfg.AIStrategy.FallbackThreshold,
			cfg.AIStrategy.FallbackDurationTurns,
			rec,
		)
		return strategy.NewAIStrategy(ctx, adapter, fallback)
	}, nil
}

// strategyFor builds one of the three deterministic Strategy variants
// by name. Any other kind, config.StrategyAI included (which the base
// factory passes when trading.strategy names it but ai_strategy is not
// enabled), yields the opportunistic variant.
func strategyFor(kind config.StrategyKind, gs *knowledge.GameState) strategy.Strategy {
	holds := gs.HoldsTotal
	if holds <= 0 {
		holds = 1
	}
	switch kind {
	case config.StrategyProfitablePairs:
		return strategy.NewProfitablePairsStrategy(nil, holds)
	case config.StrategyTwerkOptimized:
		return strategy.NewTwerkOptimizedStrategy(&strategy.Route{})
	default:
		return &strategy.OpportunisticStrategy{MarginalProfit: floorMarginalProfit, Holds: holds}
	}
}

// floorMarginalProfit is the default OpportunisticStrategy signal. A
// sector's knowledge carries no live per-unit price, only which
// commodities its port buys and sells, so "worth trading" falls back to
// the commodity's configured floor valuation being positive.
func floorMarginalProfit(sector *knowledge.SectorKnowledge, commodity knowledge.Commodity) int {
	return knowledge.Valuation(commodity, nil, nil)
}

func retryPolicy(cfg *config.Config) llm.RetryPolicy {
	active, _ := cfg.LLM.Active()
	return llm.RetryPolicy{
		MaxRetries:        active.MaxRetries,
		InitialDelay:      time.Duration(active.RetryDelaySeconds * float64(time.Second)),
		BackoffMultiplier: active.RetryBackoffMultiplier,
	}
}

func buildOracle(cfg *config.Config) (llm.Oracle, error) {
	active, ok := cfg.LLM.Active()
	if !ok {
		return nil, fmt.Errorf("no llm.providers entry for provider %q", cfg.LLM.Provider)
	}
	switch cfg.LLM.Provider {
	case config.LLMProviderOllama:
		return llm.NewOllamaOracle(active), nil
	case config.LLMProviderOpenAI:
		key := os.Getenv("TWBOT_OPENAI_API_KEY")
		if key == "" {
			return nil, errors.New("TWBOT_OPENAI_API_KEY is required for llm.provider=openai")
		}
		return llm.NewOpenAIOracle(active, key), nil
	case config.LLMProviderGemini:
		key := os.Getenv("TWBOT_GEMINI_API_KEY")
		if key == "" {
			return nil, errors.New("TWBOT_GEMINI_API_KEY is required for llm.provider=gemini")
		}
		return llm.NewGeminiOracle(active, key), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

// ExitCodeFor maps a botruntime.Runtime.Run error to the process exit
// codes named in spec.md section 6.
func ExitCodeFor(err error) int {
	switch {
	case err == nil, errors.Is(err, errs.ErrTargetReached):
		return errs.ExitSuccess
	case errors.Is(err, errs.ErrOrientationLost), errors.Is(err, errs.ErrKnowledgePoisoned):
		return errs.ExitUnrecoverableOrient
	case errors.Is(err, errs.ErrDisconnected), errors.Is(err, errs.ErrConnectionRefused),
		errors.Is(err, errs.ErrWriteFailed), errors.Is(err, errs.ErrPromptTimeout),
		errors.Is(err, errs.ErrLoginFailed), errors.Is(err, errs.ErrPrivateGameRejected),
		errors.Is(err, errs.ErrUnexpectedPrompt):
		return errs.ExitConnectionFailure
	default:
		logging.Error("botsetup: exiting on unclassified error: %v", err)
		return errs.ExitConnectionFailure
	}
}
