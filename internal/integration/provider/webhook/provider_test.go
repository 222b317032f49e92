package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/railzwaylabs/callsync/internal/integration/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_PostsEnvelope(t *testing.T) {
	var (
		gotKey  string
		gotType string
		got     domain.Envelope
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("Idempotency-Key")
		gotType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	env := domain.Envelope{
		Event:            domain.EventNotification,
		NotificationType: "warning",
		TenantID:         "t1",
		TenantName:       "Acme",
		ID:               "n1",
		Timestamp:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Title:            "Critical Usage Warning",
		Message:          "msg",
	}

	p := NewProvider(domain.Config{})
	err := p.Send(context.Background(), domain.NotificationInput{URL: srv.URL, IdempotencyKey: "n1", Envelope: env})
	require.NoError(t, err)

	assert.Equal(t, "n1", gotKey)
	assert.Contains(t, gotType, "application/json")
	assert.Equal(t, env, got)
}

func TestSend_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(domain.Config{})
	err := p.Send(context.Background(), domain.NotificationInput{URL: srv.URL})
	assert.ErrorIs(t, err, domain.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "status=500")
}

func TestSend_MissingURL(t *testing.T) {
	p := NewProvider(domain.Config{})
	err := p.Send(context.Background(), domain.NotificationInput{URL: "  "})
	assert.ErrorIs(t, err, domain.ErrMissingWebhookURL)
}
