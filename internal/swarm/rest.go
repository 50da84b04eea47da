package swarm

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tw2kbot/tw2kbot/internal/errs"
)

// NewRouter builds the swarm REST control plane spec.md section 6
// names: GET /health, GET /swarm/status, POST /swarm/clear, GET
// /swarm/timeseries/summary, and the hijack family under /bots/{id}.
// Grounded on the ocx-backend's internal/api.APIServer: a
// mux.NewRouter() with one HandleFunc per endpoint and a JSON-only
// response convention, generalized from that server's tenant-scoped
// handlers into owner-scoped hijack lease handlers.
func NewRouter(m *Manager) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/swarm/status", m.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/swarm/clear", m.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/swarm/timeseries/summary", m.handleTimeSeriesSummary).Methods(http.MethodGet)
	r.HandleFunc("/bots/{id}/assume", m.handleAssume).Methods(http.MethodPost)
	r.HandleFunc("/bots/{id}/hijack/begin", m.handleHijackBegin).Methods(http.MethodPost)
	r.HandleFunc("/bots/{id}/hijack/heartbeat", m.handleHijackHeartbeat).Methods(http.MethodPost)
	r.HandleFunc("/bots/{id}/hijack/release", m.handleHijackRelease).Methods(http.MethodPost)
	r.HandleFunc("/bots/{id}/hijack/read", m.handleHijackRead).Methods(http.MethodPost)
	r.HandleFunc("/bots/{id}/hijack/send", m.handleHijackSend).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.HandlerFor(m.metrics.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Manager) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.Status(time.Now()))
}

func (m *Manager) handleClear(w http.ResponseWriter, r *http.Request) {
	m.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (m *Manager) handleTimeSeriesSummary(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("bot_id")
	windowMinutes := 0
	if raw := r.URL.Query().Get("window_minutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "window_minutes must be an integer")
			return
		}
		windowMinutes = n
	}
	summary, err := m.TimeSeries(id, windowMinutes, time.Now())
	if err != nil {
		writeErrAsStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (m *Manager) handleAssume(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	owner := ownerOf(r)
	lease, err := m.Assume(id, owner, time.Now())
	if err != nil {
		writeErrAsStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

type leaseRequest struct {
	Owner     string `json:"owner"`
	LeaseSecs int    `json:"lease_s"`
}

func (m *Manager) handleHijackBegin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req leaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := m.entry(id); !ok {
		writeErrAsStatus(w, errs.ErrBotNotFound)
		return
	}
	lease, err := m.Leases.Begin(id, req.Owner, req.LeaseSecs, time.Now())
	if err != nil {
		writeErrAsStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

func (m *Manager) handleHijackHeartbeat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req leaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	lease, err := m.Leases.Heartbeat(id, req.Owner, req.LeaseSecs, time.Now())
	if err != nil {
		writeErrAsStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lease)
}

func (m *Manager) handleHijackRelease(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	owner := ownerOf(r)
	if err := m.Leases.Release(id, owner, time.Now()); err != nil {
		writeErrAsStatus(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (m *Manager) handleHijackRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	owner := ownerOf(r)
	if err := m.Leases.Authorize(id, owner, time.Now()); err != nil {
		writeErrAsStatus(w, err)
		return
	}
	e, ok := m.entry(id)
	if !ok {
		writeErrAsStatus(w, errs.ErrBotNotFound)
		return
	}
	writeJSON(w, http.StatusOK, HijackReadResult{
		BotStatus: e.status(time.Now()),
		Screen:    e.rt.LastScreen(),
	})
}

type sendRequest struct {
	Owner string `json:"owner"`
	Input string `json:"input"`
}

func (m *Manager) handleHijackSend(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := m.Leases.Authorize(id, req.Owner, time.Now()); err != nil {
		writeErrAsStatus(w, err)
		return
	}
	e, ok := m.entry(id)
	if !ok {
		writeErrAsStatus(w, errs.ErrBotNotFound)
		return
	}
	e.rt.Inject(req.Input)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func ownerOf(r *http.Request) string {
	if owner := r.URL.Query().Get("owner"); owner != "" {
		return owner
	}
	return r.Header.Get("X-Bot-Owner")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeErrAsStatus(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrBotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrLeaseExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrLeaseDenied):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
