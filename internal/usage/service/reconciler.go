package service

import (
	"math"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	usagedomain "github.com/railzwaylabs/callsync/internal/usage/domain"
	"go.uber.org/zap"
)

type Reconciler struct {
	log *zap.Logger
}

func NewReconciler(log *zap.Logger) usagedomain.Reconciler {
	return &Reconciler{log: log.Named("usage.reconciler")}
}

func (r *Reconciler) Reconcile(tenant *tenantdomain.Tenant, records []callsdomain.CallRecord, now time.Time) (float64, bool) {
	cycleStart := BillingCycleStart(tenant.CreatedAt, now)
	used := roundMinutes(sumMinutes(records, cycleStart, now))

	if math.Abs(used-tenant.UsedMinutes) <= usagedomain.UsageEpsilon {
		return tenant.UsedMinutes, false
	}

	r.log.Debug("used minutes changed",
		zap.String("tenant_id", tenant.ID),
		zap.Float64("previous", tenant.UsedMinutes),
		zap.Float64("used", used),
		zap.Time("cycle_start", cycleStart))
	tenant.UsedMinutes = used
	return used, true
}

func (r *Reconciler) CycleStats(tenant tenantdomain.Tenant, records []callsdomain.CallRecord, now time.Time) usagedomain.Stats {
	cycleStart := BillingCycleStart(tenant.CreatedAt, now)
	stats := usagedomain.Stats{
		CycleStart:   cycleStart,
		ReasonCounts: make(map[callsdomain.EndReason]int),
	}

	var minutes float64
	for _, rec := range records {
		if !inCycle(rec, cycleStart, now) {
			continue
		}
		minutes += rec.Minutes()
		stats.TotalCalls++
		stats.ReasonCounts[rec.EndReason]++
	}
	stats.TotalMinutes = roundMinutes(minutes)
	return stats
}

// BillingCycleStart returns midnight UTC of the latest date on or before now
// whose day of month matches created. Days past the end of a shorter month
// are clamped to its last day, so a tenant created on the 31st renews on
// the 30th in April and on the 28th or 29th in February.
func BillingCycleStart(created, now time.Time) time.Time {
	now = now.UTC()
	day := created.UTC().Day()

	start := anchorDate(now.Year(), now.Month(), day)
	if now.Before(start) {
		prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		start = anchorDate(prev.Year(), prev.Month(), day)
	}
	return start
}

func anchorDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func sumMinutes(records []callsdomain.CallRecord, cycleStart, now time.Time) float64 {
	var total float64
	for _, rec := range records {
		if inCycle(rec, cycleStart, now) {
			total += rec.Minutes()
		}
	}
	return total
}

func inCycle(rec callsdomain.CallRecord, cycleStart, now time.Time) bool {
	return !rec.StartedAt.Before(cycleStart) && rec.StartedAt.Before(now)
}

func roundMinutes(v float64) float64 {
	return math.Round(v*100) / 100
}
