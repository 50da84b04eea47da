// Package llm implements the LLM Adapter (spec.md section 4.9): it
// builds a bounded-token prompt from game state, calls an injected
// oracle, and parses its response (JSON-first, regex-fallback) into a
// strategy.Action. No vendor SDK appears anywhere in the reference pack
// for ollama/openai/gemini, so providers are thin net/http clients
// speaking each API's plain JSON shape rather than a generated client
// library (see DESIGN.md).
package llm

import (
	"context"
	"time"
)

// Prompt is the bounded context handed to an Oracle.
type Prompt struct {
	Mode           string // "summary" or "full"
	CurrentSector  int
	Credits        int
	HoldsUsed      int
	HoldsTotal     int
	TurnsRemaining int
	Adjacent       []AdjacentSector
	RecentActions  []RecentAction
}

// AdjacentSector is one entry of the up-to-R neighbor summary.
type AdjacentSector struct {
	SectorID    int
	HasPort     bool
	PortClass   string
	LastPrices  map[string]int
}

// RecentAction is one entry of the up-to-H action/outcome history.
type RecentAction struct {
	Action  string
	Outcome string
}

// Response is an oracle's raw reply: free text the parser will attempt
// to read as JSON first, falling back to regex extraction.
type Response struct {
	Text string
}

// Oracle is the capability an LLM backend exposes. Implementations
// (ollama, openai, gemini) only need to satisfy this; the adapter owns
// retry, backoff, and fallback discipline around it.
type Oracle interface {
	Complete(ctx context.Context, prompt Prompt) (Response, error)
}

// ErrorKind distinguishes the oracle failure modes spec.md section 4.9
// names explicitly, mapped onto the shared errs sentinels by callers.
type ErrorKind string

const (
	ErrorKindTimeout         ErrorKind = "timeout"
	ErrorKindConnection      ErrorKind = "connection"
	ErrorKindModelNotFound   ErrorKind = "model_not_found"
	ErrorKindInvalidResponse ErrorKind = "invalid_response"
)

// RetryPolicy is the bounded exponential-backoff schedule from spec.md
// section 6's `llm` config section.
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// Delay returns the backoff delay before retry attempt n (0-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	d := float64(p.InitialDelay)
	for i := 0; i < n; i++ {
		d *= p.BackoffMultiplier
	}
	return time.Duration(d)
}
