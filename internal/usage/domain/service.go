package domain

import (
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

// UsageEpsilon is the smallest change in used minutes that is written back.
const UsageEpsilon = 0.01

// Stats summarises the current billing cycle of a tenant.
type Stats struct {
	CycleStart   time.Time                     `json:"cycle_start"`
	TotalMinutes float64                       `json:"total_minutes"`
	TotalCalls   int                           `json:"total_calls"`
	ReasonCounts map[callsdomain.EndReason]int `json:"reason_counts"`
}

type Reconciler interface {
	// Reconcile recomputes tenant.UsedMinutes from records and reports
	// whether the stored value changed.
	Reconcile(tenant *tenantdomain.Tenant, records []callsdomain.CallRecord, now time.Time) (float64, bool)
	CycleStats(tenant tenantdomain.Tenant, records []callsdomain.CallRecord, now time.Time) Stats
}
