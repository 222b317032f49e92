package callsync

import (
	"time"

	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

// State is a phase of one tenant sync cycle.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateMerging     State = "merging"
	StateReconciling State = "reconciling"
	StateNotifying   State = "notifying"
	StatePersisting  State = "persisting"
	StateFailed      State = "failed"
)

// SyncResult describes one tenant sync cycle.
//
// Err holds a fetch failure. Such a cycle ends in StateFailed, keeps the
// previously cached records and is not reported as an error by SyncTenant.
type SyncResult struct {
	TenantID string
	RunID    string
	States   []State
	Final    State

	Fetched      int
	Pages        int
	CacheChanged bool
	CacheSize    int
	UsedMinutes  float64
	UsageChanged bool
	// Degraded reports that the provider rejected the retention-safe window
	// too, so only a partial page set was merged.
	Degraded bool

	Notification *tenantdomain.Notification
	Retried      int
	Delivered    int
	Persisted    bool

	Err      error
	Duration time.Duration
}

func (r *SyncResult) enter(s State) {
	r.States = append(r.States, s)
}

// SweepResult aggregates one pass over every tenant.
type SweepResult struct {
	RunID     string
	Tenants   int
	Succeeded int
	Failed    int
	Results   []SyncResult
}
