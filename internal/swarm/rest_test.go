package swarm

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	m := newTestManager()
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStatusEndpointReflectsRegisteredBots(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodGet, "/swarm/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var statuses []BotStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(statuses) != 1 || statuses[0].ID != "bot-1" {
		t.Fatalf("statuses = %+v", statuses)
	}
}

func TestHijackLeaseLifecycleOverREST(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	router := NewRouter(m)

	begin := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/begin", leaseRequest{Owner: "alice", LeaseSecs: 30})
	if begin.Code != http.StatusOK {
		t.Fatalf("begin status = %d body=%s", begin.Code, begin.Body.String())
	}

	readResp := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/read?owner=alice", nil)
	if readResp.Code != http.StatusOK {
		t.Fatalf("read status = %d body=%s", readResp.Code, readResp.Body.String())
	}

	readDenied := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/read?owner=bob", nil)
	if readDenied.Code != http.StatusForbidden {
		t.Fatalf("non-holder read status = %d, want 403", readDenied.Code)
	}

	release := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/release?owner=alice", nil)
	if release.Code != http.StatusOK {
		t.Fatalf("release status = %d body=%s", release.Code, release.Body.String())
	}

	readAfterRelease := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/read?owner=alice", nil)
	if readAfterRelease.Code != http.StatusForbidden {
		t.Fatalf("read after release status = %d, want 403", readAfterRelease.Code)
	}
}

func TestHijackSendInjectsIntoOwningRuntime(t *testing.T) {
	m := newTestManager()
	rt := newTestRuntime(t)
	m.Register("bot-1", "alice", rt, func() {})
	router := NewRouter(m)

	begin := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/begin", leaseRequest{Owner: "alice", LeaseSecs: 30})
	if begin.Code != http.StatusOK {
		t.Fatalf("begin status = %d body=%s", begin.Code, begin.Body.String())
	}

	send := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/send", sendRequest{Owner: "alice", Input: "q"})
	if send.Code != http.StatusAccepted {
		t.Fatalf("send status = %d body=%s", send.Code, send.Body.String())
	}

	// A second send before the first is consumed should replace it, not
	// block or queue behind it (botruntime.Runtime.Inject's own
	// contract, exercised directly in package botruntime's tests).
	send2 := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/send", sendRequest{Owner: "alice", Input: "0"})
	if send2.Code != http.StatusAccepted {
		t.Fatalf("second send status = %d body=%s", send2.Code, send2.Body.String())
	}
}

func TestHijackSendDeniedWithoutLease(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	router := NewRouter(m)

	send := doJSON(t, router, http.MethodPost, "/bots/bot-1/hijack/send", sendRequest{Owner: "bob", Input: "q"})
	if send.Code != http.StatusForbidden {
		t.Fatalf("send status = %d, want 403", send.Code)
	}
}

func TestHijackBeginUnknownBotReturnsNotFound(t *testing.T) {
	m := newTestManager()
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodPost, "/bots/missing/hijack/begin", leaseRequest{Owner: "alice", LeaseSecs: 30})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAssumeEndpointGrantsCeilingLease(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodPost, "/bots/bot-1/assume?owner=alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var lease HijackLease
	if err := json.Unmarshal(rec.Body.Bytes(), &lease); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lease.Owner != "alice" {
		t.Fatalf("owner = %q, want alice", lease.Owner)
	}
}

func TestTimeSeriesSummaryEndpoint(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodGet, "/swarm/timeseries/summary?bot_id=bot-1&window_minutes=30", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var summary TimeSeriesSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if summary.BotID != "bot-1" || summary.WindowMinutes != 30 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestTimeSeriesSummaryEndpointBadWindow(t *testing.T) {
	m := newTestManager()
	m.Register("bot-1", "alice", newTestRuntime(t), func() {})
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodGet, "/swarm/timeseries/summary?bot_id=bot-1&window_minutes=not-a-number", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestClearEndpointResetsBroker(t *testing.T) {
	m := newTestManager()
	m.Broker.MarkVisited(5)
	router := NewRouter(m)

	rec := doJSON(t, router, http.MethodPost, "/swarm/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if m.Broker.SectorCount() != 0 {
		t.Fatal("expected broker to be cleared")
	}
}
