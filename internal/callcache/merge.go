// Package callcache merges fetched call records into a tenant's cached
// history and keeps read-only snapshots of that history for concurrent
// readers.
package callcache

import (
	"slices"
	"strings"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
)

const (
	DefaultOverlap = time.Hour
)

// DefaultEpochFloor is the lower bound of a tenant's first-ever fetch.
var DefaultEpochFloor = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Merge folds fresh into entry keyed by call id; fresh records win on
// collision. The result is sorted by StartedAt descending.
//
// An empty fresh slice leaves entry untouched and reports false. Otherwise the
// watermark advances to now, or stays put if now is behind it.
func Merge(entry callsdomain.CacheEntry, fresh []callsdomain.CallRecord, now time.Time) (callsdomain.CacheEntry, bool) {
	if len(fresh) == 0 {
		return entry, false
	}

	byID := make(map[string]callsdomain.CallRecord, len(entry.Records)+len(fresh))
	for _, rec := range entry.Records {
		rec.TenantID = entry.TenantID
		byID[rec.ID] = rec
	}
	for _, rec := range fresh {
		rec.TenantID = entry.TenantID
		byID[rec.ID] = rec
	}

	merged := make([]callsdomain.CallRecord, 0, len(byID))
	for _, rec := range byID {
		merged = append(merged, rec)
	}
	SortNewestFirst(merged)

	watermark := now.UTC()
	if entry.LastSyncWatermark.After(watermark) {
		watermark = entry.LastSyncWatermark
	}

	return callsdomain.CacheEntry{
		TenantID:          entry.TenantID,
		LastSyncWatermark: watermark,
		Records:           merged,
	}, true
}

// FetchSince returns the exclusive lower bound of the next incremental fetch.
func FetchSince(entry callsdomain.CacheEntry, overlap time.Duration, floor time.Time) time.Time {
	if !entry.HasSynced() {
		return floor
	}
	return entry.LastSyncWatermark.Add(-overlap)
}

// SortNewestFirst orders records by StartedAt descending, breaking ties by id
// so the order is deterministic.
func SortNewestFirst(records []callsdomain.CallRecord) {
	slices.SortFunc(records, func(a, b callsdomain.CallRecord) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
