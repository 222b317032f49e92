package domain

import (
	"context"
	"errors"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
)

var (
	// ErrRetentionLimit is returned when the requested window is older than
	// the provider plan allows.
	ErrRetentionLimit = errors.New("provider_retention_limit")
	ErrRequestFailed  = errors.New("provider_request_failed")
	ErrMissingAPIKey  = errors.New("provider_missing_api_key")
)

// ListCallsRequest selects one page of calls. StartedAfter and StartedBefore
// are exclusive bounds; pages are returned newest first.
type ListCallsRequest struct {
	Limit         int
	StartedAfter  *time.Time
	StartedBefore *time.Time
}

// Page is one provider response. Received counts the raw elements returned,
// including any dropped by validation, and drives pagination termination.
// LastStartedAt is the start time of the last raw element that carried a
// parseable one, valid or not; nil when no element did.
type Page struct {
	Calls         []callsdomain.CallRecord
	Received      int
	LastStartedAt *time.Time
}

type Client interface {
	ListCalls(ctx context.Context, apiKey string, req ListCallsRequest) (Page, error)
}
