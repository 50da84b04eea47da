// Package config defines the typed configuration tree consumed by the bot
// runtime and swarm manager (spec.md section 6). Actual flag parsing and
// YAML file loading are external collaborators per spec.md's Non-goals;
// this package implements the equivalent-syntax JSON loader and the
// environment-override pattern so the schema is independently testable.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
)

// Config is the root configuration document, mirroring every top-level
// section named in spec.md section 6.
type Config struct {
	Connection     ConnectionConfig     `json:"connection"`
	Character      CharacterConfig      `json:"character"`
	Trading        TradingConfig        `json:"trading"`
	Session        SessionConfig        `json:"session"`
	MultiCharacter MultiCharacterConfig `json:"multi_character"`
	LLM            LLMConfig            `json:"llm"`
	AIStrategy     AIStrategyConfig     `json:"ai_strategy"`
	Detection      DetectionConfig      `json:"detection"`
	Swarm          SwarmConfig          `json:"swarm,omitempty"`
	Console        ConsoleConfig        `json:"console,omitempty"`
}

// SwarmConfig configures the swarm manager's REST listener, lease
// ceiling, and periodic sampling/sweep cadence. Not one of spec.md
// section 6's named config sections (that list predates the swarm
// manager's own process scaffolding), added as the natural home for
// the knobs the REST control plane and lease sweep cron job need.
type SwarmConfig struct {
	ListenAddr          string `json:"listen_addr,omitempty"`
	HijackLeaseCeilingS int    `json:"hijack_lease_ceiling_s,omitempty"`
	SampleIntervalS     int    `json:"sample_interval_s,omitempty"`
	SweepIntervalS      int    `json:"sweep_interval_s,omitempty"`
}

// ConsoleConfig configures the optional SSH operator console: an
// interactive view onto the swarm manager's own REST surface, not a
// second source of truth. Operators authenticate with a fixed
// username/password pair; HostKeyPath follows the same convention as a
// BBS door server's host key.
type ConsoleConfig struct {
	Enabled         bool   `json:"enabled,omitempty"`
	Host            string `json:"host,omitempty"`
	Port            int    `json:"port,omitempty"`
	HostKeyPath     string `json:"host_key_path,omitempty"`
	OperatorUser    string `json:"operator_user,omitempty"`
	OperatorPass    string `json:"operator_pass,omitempty"`
	SwarmAPIBaseURL string `json:"swarm_api_base_url,omitempty"`
}

// ConnectionConfig is the `connection` section.
type ConnectionConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	GameLetter string `json:"game_letter,omitempty"`
}

// NameComplexity enumerates character.name_complexity.
type NameComplexity string

const (
	NameComplexitySimple   NameComplexity = "simple"
	NameComplexityMedium   NameComplexity = "medium"
	NameComplexityComplex  NameComplexity = "complex"
	NameComplexityNumbered NameComplexity = "numbered"
)

// CharacterConfig is the `character` section.
type CharacterConfig struct {
	Password             string         `json:"password"`
	NameComplexity       NameComplexity `json:"name_complexity"`
	GenerateShipNames    bool           `json:"generate_ship_names"`
	ShipNamesWithNumbers bool           `json:"ship_names_with_numbers"`
	NameSeed             *int64         `json:"name_seed,omitempty"`
}

// StrategyKind enumerates trading.strategy.
type StrategyKind string

const (
	StrategyProfitablePairs StrategyKind = "profitable_pairs"
	StrategyOpportunistic   StrategyKind = "opportunistic"
	StrategyTwerkOptimized  StrategyKind = "twerk_optimized"
	StrategyAI              StrategyKind = "ai_strategy"
)

// AntiCollapseConfig is the `trading.anti_collapse` block (and its
// per-strategy overrides).
type AntiCollapseConfig struct {
	WindowMinutes        int     `json:"window_minutes"`
	FloorNetWorthPerTurn float64 `json:"floor_net_worth_per_turn"`
	DownshiftFactor      float64 `json:"downshift_factor"`
}

// TradeQualityConfig is the `trading.trade_quality` block.
type TradeQualityConfig struct {
	RejectWrongSide     bool `json:"reject_wrong_side"`
	RejectNoPort        bool `json:"reject_no_port"`
	RejectNoInteraction bool `json:"reject_no_interaction"`
}

// TradingConfig is the `trading` section.
type TradingConfig struct {
	Strategy     StrategyKind                  `json:"strategy"`
	AntiCollapse AntiCollapseConfig            `json:"anti_collapse"`
	TradeQuality TradeQualityConfig            `json:"trade_quality"`
	Overrides    map[string]AntiCollapseConfig `json:"overrides,omitempty"`
}

// SessionConfig is the `session` section.
type SessionConfig struct {
	TargetCredits      int `json:"target_credits"`
	MaxTurnsPerSession int `json:"max_turns_per_session"`
	PromptTimeoutMs    int `json:"prompt_timeout_ms,omitempty"`
}

// KnowledgeSharing enumerates multi_character.knowledge_sharing.
type KnowledgeSharing string

const (
	KnowledgeSharingShared        KnowledgeSharing = "shared"
	KnowledgeSharingIndependent   KnowledgeSharing = "independent"
	KnowledgeSharingInheritOnDeath KnowledgeSharing = "inherit_on_death"
)

// MultiCharacterConfig is the `multi_character` section.
type MultiCharacterConfig struct {
	Enabled                bool             `json:"enabled"`
	MaxCharacters          int              `json:"max_characters"`
	KnowledgeSharing       KnowledgeSharing `json:"knowledge_sharing"`
	InheritDangerCooldowns bool             `json:"inherit_danger_cooldowns"`
}

// LLMProvider enumerates llm.provider.
type LLMProvider string

const (
	LLMProviderOllama LLMProvider = "ollama"
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMProviderConfig is one provider subsection under `llm`.
type LLMProviderConfig struct {
	BaseURL                string  `json:"base_url"`
	Model                  string  `json:"model"`
	TimeoutSeconds         int     `json:"timeout_seconds"`
	MaxRetries             int     `json:"max_retries"`
	RetryDelaySeconds      float64 `json:"retry_delay_seconds"`
	RetryBackoffMultiplier float64 `json:"retry_backoff_multiplier"`
}

// LLMConfig is the `llm` section.
type LLMConfig struct {
	Provider  LLMProvider                  `json:"provider"`
	Providers map[LLMProvider]LLMProviderConfig `json:"providers"`
}

// Active returns the configuration for the currently selected provider.
func (c LLMConfig) Active() (LLMProviderConfig, bool) {
	p, ok := c.Providers[c.Provider]
	return p, ok
}

// ContextMode enumerates ai_strategy.context_mode.
type ContextMode string

const (
	ContextModeSummary ContextMode = "summary"
	ContextModeFull    ContextMode = "full"
)

// AIStrategyConfig is the `ai_strategy` section.
type AIStrategyConfig struct {
	Enabled              bool        `json:"enabled"`
	FallbackStrategy     StrategyKind `json:"fallback_strategy"`
	FallbackThreshold    int         `json:"fallback_threshold"`
	FallbackDurationTurns int        `json:"fallback_duration_turns"`
	ContextMode          ContextMode `json:"context_mode"`
	SectorRadius         int         `json:"sector_radius"`
	IncludeHistory       bool        `json:"include_history"`
	MaxHistoryItems      int         `json:"max_history_items"`
	TimeoutMs            int         `json:"timeout_ms"`
}

// DetectionConfig combines the stability-window and last-N-rows knobs that
// spec.md section 9 notes are "configured in multiple places" in the
// source; this spec exposes both as the single knob described there.
type DetectionConfig struct {
	StabilityWindowMs int    `json:"stability_window_ms"`
	LastNRows         int    `json:"last_n_rows"`
	PagesPerCommand   int    `json:"pages_per_command"`
	AnchorKeys        string `json:"anchor_keys,omitempty"`
}

// Default returns a Config populated with the defaults named throughout
// spec.md (120ms stability window, 4-row slice, 20 pages/command, etc).
func Default() *Config {
	return &Config{
		Connection: ConnectionConfig{Port: 23},
		Character: CharacterConfig{
			NameComplexity: NameComplexityMedium,
		},
		Trading: TradingConfig{
			Strategy: StrategyOpportunistic,
			AntiCollapse: AntiCollapseConfig{
				WindowMinutes:        15,
				FloorNetWorthPerTurn: 0,
				DownshiftFactor:      0.5,
			},
			TradeQuality: TradeQualityConfig{
				RejectWrongSide:     true,
				RejectNoPort:        true,
				RejectNoInteraction: true,
			},
		},
		Session: SessionConfig{
			MaxTurnsPerSession: 1000,
			PromptTimeoutMs:    10000,
		},
		MultiCharacter: MultiCharacterConfig{
			KnowledgeSharing: KnowledgeSharingIndependent,
		},
		LLM: LLMConfig{
			Provider:  LLMProviderOllama,
			Providers: map[LLMProvider]LLMProviderConfig{},
		},
		AIStrategy: AIStrategyConfig{
			FallbackStrategy:      StrategyOpportunistic,
			FallbackThreshold:     3,
			FallbackDurationTurns: 10,
			ContextMode:           ContextModeSummary,
			SectorRadius:          2,
			MaxHistoryItems:       10,
			TimeoutMs:             10000,
		},
		Detection: DetectionConfig{
			StabilityWindowMs: 120,
			LastNRows:         4,
			PagesPerCommand:   20,
		},
		Swarm: SwarmConfig{
			ListenAddr:          ":8070",
			HijackLeaseCeilingS: 300,
			SampleIntervalS:     30,
			SweepIntervalS:      10,
		},
		Console: ConsoleConfig{
			Host:            "0.0.0.0",
			Port:            2322,
			OperatorUser:    "operator",
			SwarmAPIBaseURL: "http://127.0.0.1:8070",
		},
	}
}

// Load decodes a JSON configuration document (the equivalent syntax this
// spec implements in place of external YAML loading) on top of Default(),
// then validates it.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks enum fields and required values, returning a single
// aggregated error describing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if c.Connection.Host == "" {
		problems = append(problems, "connection.host is required")
	}
	if c.Connection.Port <= 0 {
		problems = append(problems, "connection.port must be positive")
	}

	switch c.Character.NameComplexity {
	case NameComplexitySimple, NameComplexityMedium, NameComplexityComplex, NameComplexityNumbered:
	default:
		problems = append(problems, fmt.Sprintf("character.name_complexity invalid: %q", c.Character.NameComplexity))
	}

	switch c.Trading.Strategy {
	case StrategyProfitablePairs, StrategyOpportunistic, StrategyTwerkOptimized, StrategyAI:
	default:
		problems = append(problems, fmt.Sprintf("trading.strategy invalid: %q", c.Trading.Strategy))
	}

	switch c.MultiCharacter.KnowledgeSharing {
	case KnowledgeSharingShared, KnowledgeSharingIndependent, KnowledgeSharingInheritOnDeath:
	default:
		problems = append(problems, fmt.Sprintf("multi_character.knowledge_sharing invalid: %q", c.MultiCharacter.KnowledgeSharing))
	}

	switch c.LLM.Provider {
	case LLMProviderOllama, LLMProviderOpenAI, LLMProviderGemini:
	default:
		problems = append(problems, fmt.Sprintf("llm.provider invalid: %q", c.LLM.Provider))
	}

	switch c.AIStrategy.ContextMode {
	case ContextModeSummary, ContextModeFull:
	default:
		problems = append(problems, fmt.Sprintf("ai_strategy.context_mode invalid: %q", c.AIStrategy.ContextMode))
	}

	if c.Detection.StabilityWindowMs <= 0 {
		problems = append(problems, "detection.stability_window_ms must be positive")
	}
	if c.Detection.LastNRows <= 0 {
		problems = append(problems, "detection.last_n_rows must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// AntiCollapseFor returns the anti-collapse settings for a strategy,
// applying any per-strategy override on top of the section default.
func (c *Config) AntiCollapseFor(strategy StrategyKind) AntiCollapseConfig {
	base := c.Trading.AntiCollapse
	if override, ok := c.Trading.Overrides[string(strategy)]; ok {
		if override.WindowMinutes != 0 {
			base.WindowMinutes = override.WindowMinutes
		}
		if override.FloorNetWorthPerTurn != 0 {
			base.FloorNetWorthPerTurn = override.FloorNetWorthPerTurn
		}
		if override.DownshiftFactor != 0 {
			base.DownshiftFactor = override.DownshiftFactor
		}
	}
	return base
}

// ApplyEnvOverrides mutates cfg in place using the <APP>_<SECTION>__<SUBSECTION>__<KEY>
// environment pattern from spec.md section 6, e.g. TWBOT_CONNECTION__HOST=host.example.com
// or TWBOT_LLM__PROVIDERS__OLLAMA__MODEL=llama3. environ is typically os.Environ().
func ApplyEnvOverrides(cfg *Config, appPrefix string, environ []string) error {
	prefix := strings.ToUpper(appPrefix) + "_"
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		key, val := kv[:eq], kv[eq+1:]
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		path := strings.Split(strings.TrimPrefix(key, prefix), "__")
		if err := setByPath(reflect.ValueOf(cfg).Elem(), path, val); err != nil {
			return fmt.Errorf("config: env override %s: %w", key, err)
		}
	}
	return nil
}

// setByPath walks a struct by JSON tag name (case-insensitive, matched
// against the env-style upper-snake path segment) and sets the leaf field
// from its string representation.
func setByPath(v reflect.Value, path []string, val string) error {
	if len(path) == 0 {
		return setScalar(v, val)
	}
	segment := strings.ToLower(path[0])

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			tag := strings.Split(field.Tag.Get("json"), ",")[0]
			if tag == "" {
				tag = strings.ToLower(field.Name)
			}
			if tag == segment {
				return setByPath(v.Field(i), path[1:], val)
			}
		}
		return fmt.Errorf("no field matching %q", segment)
	case reflect.Map:
		if v.IsNil() {
			v.Set(reflect.MakeMap(v.Type()))
		}
		keyType := v.Type().Key()
		key := reflect.New(keyType).Elem()
		key.SetString(strings.ToLower(path[0]))
		elem := reflect.New(v.Type().Elem()).Elem()
		if existing := v.MapIndex(key); existing.IsValid() {
			elem.Set(existing)
		}
		if err := setByPath(elem, path[1:], val); err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setByPath(v.Elem(), path, val)
	default:
		return fmt.Errorf("cannot descend into %s at %q", v.Kind(), segment)
	}
}

func setScalar(v reflect.Value, val string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(val)
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Ptr:
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		return setScalar(v.Elem(), val)
	default:
		return fmt.Errorf("unsupported scalar kind %s", v.Kind())
	}
	return nil
}
