package domain

import "context"

// NotificationProvider delivers an envelope to an external endpoint.
type NotificationProvider interface {
	Send(ctx context.Context, input NotificationInput) error
}

type NotificationInput struct {
	URL            string
	IdempotencyKey string
	Envelope       Envelope
}
