// Package errs defines the error taxonomy shared across the bot runtime.
//
// Errors are grouped by kind, not by concrete type: callers use
// errors.Is against the sentinels below, and wrap them with fmt.Errorf's
// %w verb so context survives the trip up the call stack.
package errs

import "errors"

// Transport errors.
var (
	ErrDisconnected      = errors.New("transport: disconnected")
	ErrConnectionRefused = errors.New("transport: connection refused")
	ErrWriteFailed       = errors.New("transport: write failed")
)

// Protocol errors.
var (
	ErrPromptTimeout        = errors.New("protocol: prompt timeout")
	ErrUnexpectedPrompt     = errors.New("protocol: unexpected prompt")
	ErrLoginFailed          = errors.New("protocol: login failed")
	ErrPrivateGameRejected  = errors.New("protocol: private game password rejected")
)

// Orientation errors.
var (
	ErrOrientationLost  = errors.New("orientation: lost (disoriented)")
	ErrLoopDetected     = errors.New("orientation: loop detected")
	ErrKnowledgePoisoned = errors.New("orientation: knowledge poisoned")
)

// Decision errors.
var (
	ErrNoFeasibleAction  = errors.New("decision: no feasible action")
	ErrStrategyExhausted = errors.New("decision: strategy exhausted")
)

// LLM errors.
var (
	ErrLLMTimeout         = errors.New("llm: timeout")
	ErrLLMConnectionError = errors.New("llm: connection error")
	ErrLLMModelNotFound   = errors.New("llm: model not found")
	ErrLLMInvalidResponse = errors.New("llm: invalid response")
)

// Character lifecycle events. TargetReached is a success signal, not a
// failure, but it is propagated through the same error-return channel
// the rest of the outer loop uses so callers can select on it uniformly.
var (
	ErrCharacterDied       = errors.New("lifecycle: character died")
	ErrTurnBudgetExhausted = errors.New("lifecycle: turn budget exhausted")
	ErrTargetReached       = errors.New("lifecycle: target reached")
)

// Swarm errors.
var (
	ErrLeaseDenied  = errors.New("swarm: lease denied")
	ErrLeaseExpired = errors.New("swarm: lease expired")
	ErrBotNotFound  = errors.New("swarm: bot not found")
)

// Exit codes for the twbot CLI process, per spec.md section 6.
const (
	ExitSuccess              = 0
	ExitUsageError           = 2
	ExitConfigurationError   = 3
	ExitConnectionFailure    = 4
	ExitUnrecoverableOrient  = 5
)
