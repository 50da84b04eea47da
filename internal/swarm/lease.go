// Package swarm implements the Swarm Manager (spec.md section 4.11):
// hijack leases, a single-writer shared-knowledge broker, status/time
// series aggregation across many Bot Runtimes, and the REST control
// plane spec.md section 6 names. Grounded on the teacher's
// internal/scheduler.Scheduler for the cron-driven sweep shape and
// session/registry.go's read-mostly registry idiom for the broker.
package swarm

import (
	"fmt"
	"sync"
	"time"

	"github.com/tw2kbot/tw2kbot/internal/errs"
)

// HijackLease is the time-bounded exclusive right for an external
// operator to read or send input to one bot (spec.md section 3).
type HijackLease struct {
	BotID     string
	Owner     string
	GrantedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the lease has lapsed as of now.
func (l HijackLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// LeaseManager grants, extends, and revokes HijackLeases, enforcing
// that at most one unexpired lease exists per bot_id at any time
// (spec.md section 8, P8).
type LeaseManager struct {
	mu      sync.Mutex
	leases  map[string]HijackLease
	ceiling time.Duration
}

// NewLeaseManager returns a LeaseManager that caps lease duration
// (initial grant and every heartbeat extension) at ceiling.
func NewLeaseManager(ceiling time.Duration) *LeaseManager {
	return &LeaseManager{leases: make(map[string]HijackLease), ceiling: ceiling}
}

// Begin grants a new lease (spec.md section 4.11's `begin(lease_s,
// owner)`), or re-grants to the same owner already holding an
// unexpired one. A still-valid lease held by a different owner is
// denied rather than overwritten.
func (lm *LeaseManager) Begin(botID, owner string, leaseSeconds int, now time.Time) (HijackLease, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if existing, ok := lm.leases[botID]; ok && !existing.Expired(now) && existing.Owner != owner {
		return HijackLease{}, fmt.Errorf("swarm: begin %s: %w", botID, errs.ErrLeaseDenied)
	}

	dur := lm.clamp(time.Duration(leaseSeconds) * time.Second)
	lease := HijackLease{BotID: botID, Owner: owner, GrantedAt: now, ExpiresAt: now.Add(dur)}
	lm.leases[botID] = lease
	return lease, nil
}

// Assume is the convenience variant of Begin used by an operator who
// hasn't negotiated a lease duration: it grants the ceiling duration
// outright (spec.md section 6's `POST /bots/{id}/assume`).
func (lm *LeaseManager) Assume(botID, owner string, now time.Time) (HijackLease, error) {
	return lm.Begin(botID, owner, int(lm.ceiling/time.Second), now)
}

// Heartbeat extends an owned, still-valid lease by leaseSeconds,
// clamped so the lease's total lifetime from grant never exceeds the
// configured ceiling.
func (lm *LeaseManager) Heartbeat(botID, owner string, leaseSeconds int, now time.Time) (HijackLease, error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	lease, err := lm.authorizedLocked(botID, owner, now)
	if err != nil {
		return HijackLease{}, err
	}

	extended := lease.ExpiresAt.Add(time.Duration(leaseSeconds) * time.Second)
	ceilingExpiry := lease.GrantedAt.Add(lm.ceiling)
	if extended.After(ceilingExpiry) {
		extended = ceilingExpiry
	}
	lease.ExpiresAt = extended
	lm.leases[botID] = lease
	return lease, nil
}

// Release revokes owner's lease on botID. Releasing a lease that has
// already expired or that owner never held is a no-op error free of
// side effects — the caller's intent ("I'm done") is already true.
func (lm *LeaseManager) Release(botID, owner string, now time.Time) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	existing, ok := lm.leases[botID]
	if !ok || existing.Expired(now) {
		return nil
	}
	if existing.Owner != owner {
		return fmt.Errorf("swarm: release %s: %w", botID, errs.ErrLeaseDenied)
	}
	delete(lm.leases, botID)
	return nil
}

// Authorize reports whether owner currently holds a valid lease on
// botID, for the hijack read/send endpoints (spec.md section 8, P8:
// "sends from non-holders are rejected with lease_denied").
func (lm *LeaseManager) Authorize(botID, owner string, now time.Time) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	_, err := lm.authorizedLocked(botID, owner, now)
	return err
}

func (lm *LeaseManager) authorizedLocked(botID, owner string, now time.Time) (HijackLease, error) {
	lease, ok := lm.leases[botID]
	if !ok {
		return HijackLease{}, fmt.Errorf("swarm: %s: %w", botID, errs.ErrLeaseDenied)
	}
	if lease.Expired(now) {
		delete(lm.leases, botID)
		return HijackLease{}, fmt.Errorf("swarm: %s: %w", botID, errs.ErrLeaseExpired)
	}
	if lease.Owner != owner {
		return HijackLease{}, fmt.Errorf("swarm: %s: %w", botID, errs.ErrLeaseDenied)
	}
	return lease, nil
}

// Current returns the active lease for botID, if any.
func (lm *LeaseManager) Current(botID string, now time.Time) (HijackLease, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lease, ok := lm.leases[botID]
	if !ok || lease.Expired(now) {
		return HijackLease{}, false
	}
	return lease, true
}

// Sweep auto-releases every expired lease (spec.md section 4.11's
// "expired leases are auto-released"), returning the bot ids it
// reclaimed. Intended to run off a periodic cron tick.
func (lm *LeaseManager) Sweep(now time.Time) []string {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	var reclaimed []string
	for botID, lease := range lm.leases {
		if lease.Expired(now) {
			delete(lm.leases, botID)
			reclaimed = append(reclaimed, botID)
		}
	}
	return reclaimed
}

func (lm *LeaseManager) clamp(d time.Duration) time.Duration {
	if lm.ceiling > 0 && d > lm.ceiling {
		return lm.ceiling
	}
	return d
}
