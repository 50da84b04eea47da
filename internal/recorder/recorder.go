// Package recorder implements the JSONL record stream emitted by a Session
// (spec section 6, "Record stream"): one JSON object per line, one stream
// per session, every event kind named in the external interface.
package recorder

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the record-stream event kinds from spec.md section 6.
type Kind string

const (
	KindBytesIn           Kind = "transport.bytes_in"
	KindBytesOut          Kind = "transport.bytes_out"
	KindScreenChanged     Kind = "screen.changed"
	KindPromptDetected    Kind = "prompt.detected"
	KindActionExecuted    Kind = "action.executed"
	KindOrientationUpdate Kind = "orientation.updated"
	KindLLMRequest        Kind = "llm.request"
	KindLLMResponse       Kind = "llm.response"
	KindLLMIntervention   Kind = "llm.intervention"
	KindError             Kind = "error"
)

// Event is the envelope written for every record-stream line. Fields not
// relevant to a given Kind are left zero and omitted by the json tag.
type Event struct {
	Time      time.Time `json:"t"`
	SessionID string    `json:"session_id"`
	Kind      Kind      `json:"kind"`

	// transport.bytes_in / transport.bytes_out
	Length int    `json:"length,omitempty"`
	Dir    string `json:"dir,omitempty"`
	Base64 string `json:"payload_b64,omitempty"`

	// screen.changed
	Hash       string `json:"hash,omitempty"`
	Text       string `json:"text,omitempty"`
	DedupCount int    `json:"dedup_count,omitempty"`

	// prompt.detected
	PromptID    string `json:"prompt_id,omitempty"`
	InputKind   string `json:"input_kind,omitempty"`
	MatchedText string `json:"matched_text,omitempty"`

	// action.executed
	Action string `json:"action,omitempty"`
	Params any    `json:"params,omitempty"`
	Result string `json:"result,omitempty"`

	// orientation.updated
	Sector int  `json:"sector,omitempty"`
	Credits int `json:"credits,omitempty"`
	Holds   int `json:"holds,omitempty"`
	Turns   int `json:"turns,omitempty"`

	// llm.*
	Provider string `json:"provider,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`
	Goal     string `json:"goal,omitempty"`

	// error
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
}

// Writer appends Events as JSON lines to an underlying io.Writer. It is
// safe for concurrent use; the record stream within a single Session is
// totally ordered by the monotonic clock used to stamp each Event (spec
// section 5), enforced here by serializing all writes through one mutex.
type Writer struct {
	mu        sync.Mutex
	out       io.Writer
	enc       *json.Encoder
	sessionID string
}

// NewWriter creates a Writer that stamps every event with a freshly
// generated session id.
func NewWriter(out io.Writer) *Writer {
	return &Writer{
		out:       out,
		enc:       json.NewEncoder(out),
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the id stamped on every event from this writer.
func (w *Writer) SessionID() string {
	return w.sessionID
}

// Write appends one event, filling in Time and SessionID if unset.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.SessionID == "" {
		ev.SessionID = w.sessionID
	}
	return w.enc.Encode(ev)
}

// BytesOut records an outbound payload, base64-encoded per spec.
func (w *Writer) BytesOut(payload []byte) error {
	return w.Write(Event{
		Kind:   KindBytesOut,
		Dir:    "out",
		Length: len(payload),
		Base64: base64.StdEncoding.EncodeToString(payload),
	})
}

// BytesIn records an inbound payload. Payload bytes are optional per spec
// ("length, optional base64"); callers pass nil to omit the encoding.
func (w *Writer) BytesIn(payload []byte) error {
	ev := Event{Kind: KindBytesIn, Dir: "in", Length: len(payload)}
	if payload != nil {
		ev.Base64 = base64.StdEncoding.EncodeToString(payload)
	}
	return w.Write(ev)
}

// ScreenChanged records a new, distinct screen hash and its text.
func (w *Writer) ScreenChanged(hash, text string) error {
	return w.Write(Event{Kind: KindScreenChanged, Hash: hash, Text: text})
}

// ScreenDedup records a repeat of the most recent hash as a count-only event.
func (w *Writer) ScreenDedup(hash string, count int) error {
	return w.Write(Event{Kind: KindScreenChanged, Hash: hash, DedupCount: count})
}

// PromptDetected records a successful prompt detection.
func (w *Writer) PromptDetected(promptID, inputKind, matchedText string) error {
	return w.Write(Event{
		Kind:        KindPromptDetected,
		PromptID:    promptID,
		InputKind:   inputKind,
		MatchedText: matchedText,
	})
}

// ActionExecuted records the outcome of an executed action.
func (w *Writer) ActionExecuted(action string, params any, result string) error {
	return w.Write(Event{Kind: KindActionExecuted, Action: action, Params: params, Result: result})
}

// OrientationUpdated records a successful orientation pass.
func (w *Writer) OrientationUpdated(sector, credits, holds, turns int) error {
	return w.Write(Event{
		Kind:    KindOrientationUpdate,
		Sector:  sector,
		Credits: credits,
		Holds:   holds,
		Turns:   turns,
	})
}

// LLMRequest records an oracle call.
func (w *Writer) LLMRequest(provider, prompt string) error {
	return w.Write(Event{Kind: KindLLMRequest, Provider: provider, Prompt: prompt})
}

// LLMResponse records an oracle reply.
func (w *Writer) LLMResponse(provider, response string) error {
	return w.Write(Event{Kind: KindLLMResponse, Provider: provider, Response: response})
}

// LLMIntervention records a higher-level goal issued by the adapter.
func (w *Writer) LLMIntervention(goal string) error {
	return w.Write(Event{Kind: KindLLMIntervention, Goal: goal})
}

// Error records an error event.
func (w *Writer) Error(kind, details string) error {
	return w.Write(Event{Kind: KindError, ErrorKind: kind, ErrorDetails: details})
}
