package webhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/railzwaylabs/callsync/internal/integration/domain"
)

const defaultTimeout = 10 * time.Second

// Provider POSTs notification envelopes to tenant webhook URLs.
type Provider struct {
	client *resty.Client
}

func NewProvider(cfg domain.Config) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Provider{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "callsync-webhook/1"),
	}
}

func (p *Provider) Send(ctx context.Context, input domain.NotificationInput) error {
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return domain.ErrMissingWebhookURL
	}

	req := p.client.R().
		SetContext(ctx).
		SetBody(input.Envelope)
	if input.IdempotencyKey != "" {
		req.SetHeader("Idempotency-Key", input.IdempotencyKey)
	}

	resp, err := req.Post(url)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("%w: status=%d", domain.ErrDeliveryFailed, resp.StatusCode())
	}
	return nil
}
