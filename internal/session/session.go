// Package session owns one transport+emulator pair, exposes the
// send/read/wait primitives the rest of the bot runtime is built on, and
// emits the JSONL record stream (spec.md section 4.3), grounded on the
// teacher's session.BbsSession for field layout conventions: a mutex-
// guarded struct carrying RemoteAddr and start/last-activity timestamps,
// here restructured around a client read/send/wait triad instead of an
// SSH-terminal handler.
package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/recorder"
	"github.com/tw2kbot/tw2kbot/internal/termgrid"
)

// Transport is the subset of *transport.Transport a Session depends on.
// Defining it here (rather than importing the transport package's
// concrete type) lets session tests drive the emulator from an in-memory
// fake without a real socket.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// Session serializes all access to one Transport+Grid pair behind a
// single mutex (spec.md section 5: "all operations on Transport+Emulator
// are serialized through one task").
type Session struct {
	mu sync.Mutex

	tr     Transport
	grid   *termgrid.Grid
	parser *termgrid.Parser
	rec    *recorder.Writer

	stabilityWindow time.Duration
	lastNRows       int

	startTime    time.Time
	lastActivity time.Time

	lastHash   string
	lastChange time.Time
	dedupCount int
	readBuf    []byte
}

// New creates a Session around an already-dialed Transport. stabilityWindow
// is the idle threshold (spec.md section 4.3 default 120ms); lastNRows is
// the window width the Prompt Detector will read off Snapshot.
func New(tr Transport, rec *recorder.Writer, stabilityWindow time.Duration, lastNRows int) *Session {
	now := time.Now()
	return &Session{
		tr:              tr,
		grid:            termgrid.NewGrid(),
		rec:             rec,
		stabilityWindow: stabilityWindow,
		lastNRows:       lastNRows,
		startTime:       now,
		lastActivity:    now,
		lastChange:      now,
		readBuf:         make([]byte, 4096),
	}
}

func (s *Session) ensureParser() *termgrid.Parser {
	if s.parser == nil {
		s.parser = termgrid.NewParser(s.grid)
	}
	return s.parser
}

// Snapshot is the information a Session hands back to callers: the
// terminal grid's visible state plus the session-owned timing derivation
// the emulator itself cannot know (spec.md section 4.3: is_idle is
// "computed against a configurable stability window").
type Snapshot struct {
	termgrid.Snapshot
	IsIdle      bool
	ChangeAgeMs int64
}

// Send writes payload through the transport and records a bytes_out event.
func (s *Session) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendLocked(payload)
}

func (s *Session) sendLocked(payload []byte) error {
	if _, err := s.tr.Write(payload); err != nil {
		if s.rec != nil {
			s.rec.Error("send_failed", err.Error())
		}
		return err
	}
	if s.rec != nil {
		s.rec.BytesOut(payload)
	}
	s.lastActivity = time.Now()
	return nil
}

// Read pulls whatever bytes are available up to timeout, feeds the
// emulator, and returns the latest Snapshot. A timeout with zero bytes
// read is not an error: it simply returns the unchanged snapshot.
func (s *Session) Read(ctx context.Context, timeout time.Duration) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(ctx, timeout)
}

func (s *Session) readLocked(ctx context.Context, timeout time.Duration) (Snapshot, error) {
	deadline := time.Now().Add(timeout)
	if err := s.tr.SetReadDeadline(deadline); err != nil {
		return Snapshot{}, err
	}

	n, err := s.tr.Read(s.readBuf)
	if n > 0 {
		s.ensureParser().Feed(s.readBuf[:n])
		if s.rec != nil {
			s.rec.BytesIn(s.readBuf[:n])
		}
		s.lastActivity = time.Now()
	}
	if err != nil && !isTimeout(err) {
		if errors.Is(err, errs.ErrDisconnected) && s.rec != nil {
			s.rec.Error("disconnected", err.Error())
		}
		return s.snapshotLocked(), err
	}

	snap := s.snapshotLocked()
	s.recordScreenLocked(snap)
	return snap, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func (s *Session) snapshotLocked() Snapshot {
	raw := s.grid.Snapshot()
	now := time.Now()
	changed := raw.Hash != s.lastHash
	if changed {
		s.lastHash = raw.Hash
		s.lastChange = now
		s.dedupCount = 0
	} else {
		s.dedupCount++
	}
	age := now.Sub(s.lastChange)
	return Snapshot{
		Snapshot:    raw,
		IsIdle:      age >= s.stabilityWindow,
		ChangeAgeMs: age.Milliseconds(),
	}
}

func (s *Session) recordScreenLocked(snap Snapshot) {
	if s.rec == nil {
		return
	}
	if s.dedupCount == 0 {
		s.rec.ScreenChanged(snap.Hash, snap.Text)
	} else {
		s.rec.ScreenDedup(snap.Hash, s.dedupCount)
	}
}

// WaitUntil repeatedly reads until predicate holds against the latest
// snapshot or the deadline elapses, returning the last snapshot seen
// either way (spec.md section 4.3).
func (s *Session) WaitUntil(ctx context.Context, timeout time.Duration, predicate func(Snapshot) bool) (Snapshot, error) {
	deadline := time.Now().Add(timeout)
	var last Snapshot
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return last, nil
		}
		step := remaining
		if step > 50*time.Millisecond {
			step = 50 * time.Millisecond
		}
		snap, err := s.Read(ctx, step)
		if err != nil && !isTimeout(err) {
			return snap, err
		}
		last = snap
		if predicate(snap) {
			return last, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		default:
		}
	}
}

// RemoteAddr reports the underlying transport's remote address.
func (s *Session) RemoteAddr() net.Addr {
	return s.tr.RemoteAddr()
}

// Close closes the underlying transport.
func (s *Session) Close() error {
	return s.tr.Close()
}

// Uptime reports how long the session has existed.
func (s *Session) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// LastNRows is the configured window width for prompt detection (spec.md
// section 9 open question: one Detection config knob shared by both the
// stability window and the row-window width).
func (s *Session) LastNRows() int {
	return s.lastNRows
}

// Peek returns the current screen snapshot without reading the
// transport, for callers that want the live grid (e.g. a hijack
// operator's read) without disturbing the turn cycle's own Read calls.
func (s *Session) Peek() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// RecorderSessionID exposes the id stamped on this session's record
// stream, or the empty string if recording is disabled.
func (s *Session) RecorderSessionID() string {
	if s.rec == nil {
		return ""
	}
	return s.rec.SessionID()
}
