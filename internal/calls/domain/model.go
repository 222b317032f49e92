package domain

import "time"

type CallStatus string

const (
	CallStatusCompleted CallStatus = "completed"
	CallStatusOngoing   CallStatus = "ongoing"
	CallStatusFailed    CallStatus = "failed"
)

type EndReason string

const (
	EndReasonCustomerEnded  EndReason = "customer-ended-call"
	EndReasonAssistantEnded EndReason = "assistant-ended-call"
	EndReasonSilenceTimeout EndReason = "silence-timeout"
	EndReasonError          EndReason = "error"
)

// CallRecord is an immutable snapshot of one provider call.
//
// ID is assigned by the provider and is unique within a tenant. StartedAt is
// both data and the pagination cursor value.
type CallRecord struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	StartedAt       time.Time  `json:"started_at"`
	DurationSeconds float64    `json:"duration_seconds"`
	EndReason       EndReason  `json:"end_reason"`
	Status          CallStatus `json:"status"`
	CustomerPhone   string     `json:"customer_phone"`
	AssistantID     string     `json:"assistant_id"`
	RecordingURL    string     `json:"recording_url,omitempty"`
	Transcript      string     `json:"transcript,omitempty"`
	Summary         string     `json:"summary,omitempty"`
	Cost            float64    `json:"cost"`
}

// Minutes returns the billable minutes of the call. Negative durations count
// as zero.
func (c CallRecord) Minutes() float64 {
	if c.DurationSeconds <= 0 {
		return 0
	}
	return c.DurationSeconds / 60
}

// CacheEntry is the merged call history of one tenant.
//
// Records are ordered by StartedAt descending and ids are unique.
// LastSyncWatermark only moves forward; the zero value means the tenant has
// never been synchronized.
type CacheEntry struct {
	TenantID          string       `json:"tenant_id"`
	LastSyncWatermark time.Time    `json:"last_sync_watermark"`
	Records           []CallRecord `json:"records"`
}

func (e CacheEntry) HasSynced() bool {
	return !e.LastSyncWatermark.IsZero()
}

// Clone returns a copy that shares no backing array with e.
func (e CacheEntry) Clone() CacheEntry {
	out := e
	if e.Records != nil {
		out.Records = make([]CallRecord, len(e.Records))
		copy(out.Records, e.Records)
	}
	return out
}
