package swarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tw2kbot/tw2kbot/internal/botruntime"
	"github.com/tw2kbot/tw2kbot/internal/errs"
	"github.com/tw2kbot/tw2kbot/internal/logging"
)

// Manager owns a fleet of botruntime.Runtimes plus the cross-cutting
// swarm concerns the teacher has no equivalent of: hijack leases, a
// shared knowledge broker, and periodic status sampling. Grounded on
// the teacher's internal/scheduler.Scheduler for the cron-driven
// sampler/sweep shape (cron.Cron + a mutex-guarded map, no
// concurrency semaphore needed here since sampling one bot is cheap
// and unconditional rather than user-scheduled work).
type Manager struct {
	mu   sync.RWMutex
	bots map[string]*botEntry

	Leases  *LeaseManager
	Broker  *KnowledgeBroker
	metrics *Metrics

	sampleInterval time.Duration
	sweepInterval  time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewManager wires a Manager from its config knobs (spec.md section
// 4.11's lease ceiling and the sample/sweep cadence this expansion's
// SwarmConfig adds).
func NewManager(leaseCeiling, sampleInterval, sweepInterval time.Duration) *Manager {
	return &Manager{
		bots:           make(map[string]*botEntry),
		Leases:         NewLeaseManager(leaseCeiling),
		Broker:         NewKnowledgeBroker(),
		metrics:        NewMetrics(),
		sampleInterval: sampleInterval,
		sweepInterval:  sweepInterval,
	}
}

// Register adds a live Runtime to the swarm under id, owned by owner
// (the operator or process that launched it). cancel stops the
// Runtime's goroutine; Manager calls it from nowhere itself, it is
// exposed only so a future REST "stop bot" operation has something to
// call — spec.md section 6 names no such endpoint today.
func (m *Manager) Register(id, owner string, rt *botruntime.Runtime, cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bots[id] = &botEntry{id: id, owner: owner, rt: rt, cancel: cancel}
}

// Unregister drops a bot from the swarm, e.g. after its Runtime.Run
// returns a terminal error and the caller decides not to respawn it.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bots, id)
}

func (m *Manager) entry(id string) (*botEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.bots[id]
	return e, ok
}

// Status returns every registered bot's current BotStatus (GET
// /swarm/status).
func (m *Manager) Status(now time.Time) []BotStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]BotStatus, 0, len(m.bots))
	for _, e := range m.bots {
		out = append(out, e.status(now))
	}
	return out
}

// TimeSeries returns the computed TimeSeriesSummary for one bot (GET
// /swarm/timeseries/summary).
func (m *Manager) TimeSeries(id string, windowMinutes int, now time.Time) (TimeSeriesSummary, error) {
	e, ok := m.entry(id)
	if !ok {
		return TimeSeriesSummary{}, fmt.Errorf("swarm: %s: %w", id, errs.ErrBotNotFound)
	}
	return e.timeSeries(windowMinutes, now), nil
}

// Clear resets the shared knowledge broker (POST /swarm/clear). Lease
// state and per-bot sample history are untouched — clearing shared
// terrain knowledge is a trading-strategy reset, not a swarm-wide
// restart.
func (m *Manager) Clear() {
	m.Broker.Clear()
}

// Assume grants the operator a ceiling-length lease outright (POST
// /bots/{id}/assume).
func (m *Manager) Assume(id, owner string, now time.Time) (HijackLease, error) {
	if _, ok := m.entry(id); !ok {
		return HijackLease{}, fmt.Errorf("swarm: %s: %w", id, errs.ErrBotNotFound)
	}
	return m.Leases.Assume(id, owner, now)
}

// Start runs the periodic sampler and lease-sweep cron jobs until ctx
// is canceled, mirroring the teacher's Scheduler.Start/Stop lifecycle.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.cron = cron.New(cron.WithSeconds())
	if m.sampleInterval > 0 {
		spec := fmt.Sprintf("@every %s", m.sampleInterval)
		if _, err := m.cron.AddFunc(spec, func() { m.sampleAll(time.Now()) }); err != nil {
			logging.Error("swarm: schedule sampler: %v", err)
		}
	}
	if m.sweepInterval > 0 {
		spec := fmt.Sprintf("@every %s", m.sweepInterval)
		if _, err := m.cron.AddFunc(spec, func() { m.sweepLeases(time.Now()) }); err != nil {
			logging.Error("swarm: schedule lease sweep: %v", err)
		}
	}
	m.cron.Start()

	<-runCtx.Done()
	cronCtx := m.cron.Stop()
	<-cronCtx.Done()
}

// Stop cancels a running Manager's Start loop.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
}

func (m *Manager) sampleAll(now time.Time) {
	m.mu.RLock()
	entries := make([]*botEntry, 0, len(m.bots))
	for _, e := range m.bots {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		e.sampleNow(now)
		m.metrics.observe(e.status(now))
	}
}

func (m *Manager) sweepLeases(now time.Time) {
	reclaimed := m.Leases.Sweep(now)
	for _, botID := range reclaimed {
		logging.Info("swarm: lease on %s auto-released (expired)", botID)
	}
}
