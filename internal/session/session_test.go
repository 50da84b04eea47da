package session

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"
)

// pipeTransport adapts a net.Conn to the session.Transport interface for
// tests, the same net.Pipe-based approach the transport package's own
// tests use for a dependency-free in-memory connection.
type pipeTransport struct {
	net.Conn
}

func newTestSession(t *testing.T) (*Session, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	s := New(pipeTransport{client}, nil, 50*time.Millisecond, 4)
	return s, server
}

func TestSendWritesPayload(t *testing.T) {
	s, server := newTestSession(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	if err := s.Send([]byte("hello")); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-done:
		if !bytes.Equal(got, []byte("hello")) {
			t.Errorf("wire bytes = %q, want %q", got, "hello")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send")
	}
}

func TestReadFeedsEmulatorAndReturnsSnapshot(t *testing.T) {
	s, server := newTestSession(t)

	go server.Write([]byte("Command [TL=00:00:00]:[1234] (?=Help)? : "))

	snap, err := s.Read(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytesContains(snap.Text, "Command") {
		t.Errorf("snapshot text = %q, missing expected prompt text", snap.Text)
	}
}

func TestPeekReturnsLastSnapshotWithoutReadingTransport(t *testing.T) {
	s, server := newTestSession(t)

	go server.Write([]byte("Command [TL=00:00:00]:[1234] (?=Help)? : "))
	if _, err := s.Read(context.Background(), 200*time.Millisecond); err != nil {
		t.Fatalf("Read: %v", err)
	}

	snap := s.Peek()
	if !bytesContains(snap.Text, "Command") {
		t.Errorf("peeked text = %q, missing expected prompt text", snap.Text)
	}

	server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 16)
	if _, err := server.Read(buf); err == nil {
		t.Fatal("Peek should not have triggered a transport read")
	}
}

func TestReadTimeoutWithNoDataIsNotAnError(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.Read(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Read with no data available should not error, got: %v", err)
	}
}

func TestIsIdleFalseImmediatelyAfterChange(t *testing.T) {
	s, server := newTestSession(t)
	go server.Write([]byte("fresh text"))

	snap, err := s.Read(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if snap.IsIdle {
		t.Errorf("snapshot should not be idle immediately after a change")
	}
}

func TestIsIdleTrueAfterStabilityWindowElapses(t *testing.T) {
	s, server := newTestSession(t)
	go server.Write([]byte("static text"))

	if _, err := s.Read(context.Background(), 200*time.Millisecond); err != nil {
		t.Fatalf("Read: %v", err)
	}

	time.Sleep(60 * time.Millisecond) // exceeds the 50ms stability window

	snap, err := s.Read(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !snap.IsIdle {
		t.Errorf("snapshot should be idle once the stability window has elapsed with no new bytes")
	}
}

func TestWaitUntilReturnsOnPredicateMatch(t *testing.T) {
	s, server := newTestSession(t)
	go server.Write([]byte("Sector  : 123"))

	snap, err := s.WaitUntil(context.Background(), time.Second, func(snap Snapshot) bool {
		return bytesContains(snap.Text, "Sector")
	})
	if err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if !bytesContains(snap.Text, "Sector") {
		t.Errorf("WaitUntil returned without the expected text: %q", snap.Text)
	}
}

func TestWaitUntilReturnsAtDeadlineIfPredicateNeverMatches(t *testing.T) {
	s, _ := newTestSession(t)

	start := time.Now()
	_, err := s.WaitUntil(context.Background(), 80*time.Millisecond, func(Snapshot) bool {
		return false
	})
	if err != nil {
		t.Fatalf("WaitUntil: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("WaitUntil returned early after %v, want >= 80ms", elapsed)
	}
}

func bytesContains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && bytes.Contains([]byte(haystack), []byte(needle))
}
