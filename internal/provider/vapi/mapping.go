package vapi

import (
	"math"
	"strings"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
)

// rawCall is the provider's call object. Only the fields the engine reads are
// declared.
type rawCall struct {
	ID              string   `json:"id"`
	Status          string   `json:"status"`
	StartedAt       string   `json:"startedAt"`
	EndedAt         string   `json:"endedAt"`
	EndedReason     string   `json:"endedReason"`
	Cost            *float64 `json:"cost"`
	DurationSeconds *float64 `json:"durationSeconds"`
	AssistantID     string   `json:"assistantId"`
	RecordingURL    string   `json:"recordingUrl"`
	Transcript      string   `json:"transcript"`
	Customer        *struct {
		Number string `json:"number"`
	} `json:"customer"`
	Analysis *struct {
		Summary string `json:"summary"`
	} `json:"analysis"`
}

func (r rawCall) toRecord() (callsdomain.CallRecord, bool) {
	id := strings.TrimSpace(r.ID)
	startedAt, ok := parseTime(r.StartedAt)
	if id == "" || !ok {
		return callsdomain.CallRecord{}, false
	}

	var summary string
	if r.Analysis != nil {
		summary = r.Analysis.Summary
	}
	transcript := r.Transcript
	if transcript == "" {
		transcript = summary
	}

	phone := "Unknown"
	if r.Customer != nil && strings.TrimSpace(r.Customer.Number) != "" {
		phone = r.Customer.Number
	}
	assistantID := "Unknown"
	if strings.TrimSpace(r.AssistantID) != "" {
		assistantID = r.AssistantID
	}

	var cost float64
	if r.Cost != nil && !math.IsNaN(*r.Cost) && *r.Cost > 0 {
		cost = *r.Cost
	}

	return callsdomain.CallRecord{
		ID:              id,
		StartedAt:       startedAt,
		DurationSeconds: r.duration(startedAt),
		EndReason:       mapEndReason(r.EndedReason),
		Status:          mapStatus(r.Status),
		CustomerPhone:   phone,
		AssistantID:     assistantID,
		RecordingURL:    r.RecordingURL,
		Transcript:      transcript,
		Summary:         summary,
		Cost:            cost,
	}, true
}

func (r rawCall) duration(startedAt time.Time) float64 {
	if r.DurationSeconds != nil {
		d := *r.DurationSeconds
		if !math.IsNaN(d) && !math.IsInf(d, 0) && d > 0 {
			return d
		}
	}
	endedAt, ok := parseTime(r.EndedAt)
	if !ok {
		return 0
	}
	d := endedAt.Sub(startedAt).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func mapStatus(s string) callsdomain.CallStatus {
	switch s {
	case "active", "in-progress":
		return callsdomain.CallStatusOngoing
	case "failed":
		return callsdomain.CallStatusFailed
	default:
		return callsdomain.CallStatusCompleted
	}
}

func mapEndReason(reason string) callsdomain.EndReason {
	switch {
	case strings.Contains(reason, "customer"):
		return callsdomain.EndReasonCustomerEnded
	case strings.Contains(reason, "assistant"), strings.Contains(reason, "bot"):
		return callsdomain.EndReasonAssistantEnded
	case strings.Contains(reason, "silence"):
		return callsdomain.EndReasonSilenceTimeout
	default:
		return callsdomain.EndReasonError
	}
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
