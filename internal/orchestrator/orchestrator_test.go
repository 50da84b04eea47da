package orchestrator

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/promptrules"
	"github.com/tw2kbot/tw2kbot/internal/session"
)

type pipeTransport struct{ net.Conn }

func newTestOrchestrator(t *testing.T, rulesJSON string) (*Orchestrator, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })
	sess := session.New(pipeTransport{client}, nil, 50*time.Millisecond, 4)
	set, err := promptrules.Load(strings.NewReader(rulesJSON))
	if err != nil {
		t.Fatalf("promptrules.Load: %v", err)
	}
	return New(sess, StaticRuleSource(set)), server
}

const commandPromptRules = `[
	{"id":"command.prompt","regex":"Command \\[TL=","input_kind":"multi_key","kind":"input"},
	{"id":"pager.more","regex":"\\[Pause\\]","input_kind":"any_key","kind":"pause"}
]`

func TestSendInputSingleKeySendsOneByte(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	if err := o.SendInput(promptrules.InputSingleKey, "Y"); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	select {
	case got := <-done:
		if !bytes.Equal(got, []byte("Y")) {
			t.Errorf("wire bytes = %q, want %q", got, "Y")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send")
	}
}

func TestSendInputMultiKeySendsPayloadThenSeparateCR(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)

	writes := make(chan []byte, 2)
	go func() {
		for i := 0; i < 2; i++ {
			buf := make([]byte, 16)
			n, err := server.Read(buf)
			if err != nil {
				return
			}
			writes <- buf[:n]
		}
	}()

	if err := o.SendInput(promptrules.InputMultiKey, "move 5"); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	var got [][]byte
	for i := 0; i < 2; i++ {
		select {
		case w := <-writes:
			got = append(got, w)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for writes")
		}
	}

	if len(got) != 2 {
		t.Fatalf("got %d separate writes, want 2", len(got))
	}
	if !bytes.Equal(got[0], []byte("move 5")) {
		t.Errorf("first write = %q, want %q", got[0], "move 5")
	}
	if !bytes.Equal(got[1], []byte{'\r'}) {
		t.Errorf("second write = %q, want a lone CR", got[1])
	}
}

func TestSendInputAnyKeySendsSpace(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 16)
		n, _ := server.Read(buf)
		done <- buf[:n]
	}()

	if err := o.SendInput(promptrules.InputAnyKey, ""); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	select {
	case got := <-done:
		if !bytes.Equal(got, []byte{' '}) {
			t.Errorf("wire bytes = %q, want a single space", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send")
	}
}

func TestSendInputNoneWritesNothing(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)

	readDone := make(chan struct{})
	go func() {
		server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		buf := make([]byte, 16)
		server.Read(buf)
		close(readDone)
	}()

	if err := o.SendInput(promptrules.InputNone, "ignored"); err != nil {
		t.Fatalf("SendInput: %v", err)
	}

	select {
	case <-readDone:
		// expected: the deadline fires with no bytes delivered.
	case <-time.After(time.Second):
		t.Fatal("read goroutine never returned")
	}
}

// bottomRow pushes text onto the grid's final visible row by leading it
// with enough line feeds to walk the cursor down without scrolling
// (termgrid.Height is 25, 0-indexed rows 0..24).
func bottomRow(text string) []byte {
	return []byte(strings.Repeat("\n", 24) + text)
}

func TestWaitAndRespondReturnsOnMatchingDetection(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)
	go server.Write(bottomRow("Command [TL=00:00:00]:[1234] (?=Help)? : "))

	res, err := o.WaitAndRespond(context.Background(), "command.prompt", time.Second)
	if err != nil {
		t.Fatalf("WaitAndRespond: %v", err)
	}
	if !res.Matched || res.Detection.PromptID != "command.prompt" {
		t.Fatalf("res = %+v, want a matched command.prompt detection", res)
	}
}

func TestWaitAndRespondReturnsUnmatchedAfterThreeStableUnknownReads(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)
	go server.Write(bottomRow("some unrecognized static screen"))

	res, err := o.WaitAndRespond(context.Background(), "command.prompt", time.Second)
	if err != nil {
		t.Fatalf("WaitAndRespond: %v", err)
	}
	if res.Matched {
		t.Fatalf("res = %+v, want Matched=false for stable unrecognized screen", res)
	}
}

func TestWaitAndRespondAutoContinuesPaginationThenMatches(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)
	o.PagesPerCommand = 5

	go func() {
		server.Write(bottomRow("[Pause]"))
		buf := make([]byte, 16)
		server.Read(buf) // consume the auto-continue space
		server.Write([]byte("\nCommand [TL=00:00:00]:[1234] (?=Help)? : "))
	}()

	res, err := o.WaitAndRespond(context.Background(), "command.prompt", 2*time.Second)
	if err != nil {
		t.Fatalf("WaitAndRespond: %v", err)
	}
	if !res.Matched || res.Detection.PromptID != "command.prompt" {
		t.Fatalf("res = %+v, want auto-continuation through pagination into command.prompt", res)
	}
}

func TestWaitAndRespondStopsAutoContinuingAtPagesPerCommand(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)
	o.PagesPerCommand = 0

	go server.Write(bottomRow("[Pause]"))

	res, err := o.WaitAndRespond(context.Background(), "command.prompt", time.Second)
	if err != nil {
		t.Fatalf("WaitAndRespond: %v", err)
	}
	if !res.Matched || res.Detection.PromptID != "pager.more" {
		t.Fatalf("res = %+v, want the pagination detection surfaced once the page cap is exhausted", res)
	}
}

// TestWaitAndRespondWithholdsMatchUntilIdleOrBudgetConcession keeps the
// screen perpetually matching command.prompt but never idle (rewritten
// just under the stability window on every cycle), so WaitAndRespond
// must not return the moment it first sees the detection: it should
// only concede once elapsed time crosses the 80% mark.
func TestWaitAndRespondWithholdsMatchUntilIdleOrBudgetConcession(t *testing.T) {
	o, server := newTestOrchestrator(t, commandPromptRules)

	timeout := 400 * time.Millisecond
	stop := make(chan struct{})
	go func() {
		n := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			server.Write(bottomRow("Command [TL=00:00:0" + string(rune('0'+n%10)) + "]:[1234] (?=Help)? : "))
			n++
			time.Sleep(20 * time.Millisecond)
		}
	}()
	defer close(stop)

	start := time.Now()
	res, err := o.WaitAndRespond(context.Background(), "command.prompt", timeout)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("WaitAndRespond: %v", err)
	}
	if !res.Matched || res.Detection.PromptID != "command.prompt" {
		t.Fatalf("res = %+v, want a matched command.prompt detection", res)
	}
	if res.Snapshot.IsIdle {
		t.Errorf("snapshot reported idle despite the screen changing every cycle")
	}
	if elapsed < time.Duration(0.75*float64(timeout)) {
		t.Errorf("WaitAndRespond returned after %v, want it to withhold the match until near the %v budget concession", elapsed, timeout)
	}
}

func TestWaitAndRespondTimesOutWithoutAnyData(t *testing.T) {
	o, _ := newTestOrchestrator(t, commandPromptRules)

	_, err := o.WaitAndRespond(context.Background(), "command.prompt", 60*time.Millisecond)
	if err != errs.ErrPromptTimeout {
		t.Fatalf("err = %v, want errs.ErrPromptTimeout", err)
	}
}
