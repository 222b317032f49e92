package paginator

import (
	"context"
	"errors"
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	"github.com/railzwaylabs/callsync/internal/clock"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	DefaultPageSize        = 500
	DefaultPageDelay       = 500 * time.Millisecond
	DefaultRetentionWindow = 14 * 24 * time.Hour
)

var tracer = otel.Tracer("github.com/railzwaylabs/callsync/internal/provider/paginator")

type Config struct {
	PageSize        int
	PageDelay       time.Duration
	RetentionWindow time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.PageSize <= 0 {
		out.PageSize = DefaultPageSize
	}
	if out.PageDelay < 0 {
		out.PageDelay = 0
	}
	if out.RetentionWindow <= 0 {
		out.RetentionWindow = DefaultRetentionWindow
	}
	return out
}

// FetchResult is the outcome of one bulk fetch.
//
// Retried reports that the retention fallback ran. Degraded reports that the
// fallback window was rejected as well, so Records holds only what was
// accumulated before that second rejection.
type FetchResult struct {
	Records  []callsdomain.CallRecord
	Pages    int
	Retried  bool
	Degraded bool
}

// Paginator pulls a bounded number of calls across provider pages.
type Paginator struct {
	client providerdomain.Client
	clock  clock.Clock
	cfg    Config
	log    *zap.Logger
}

func New(client providerdomain.Client, clk clock.Clock, cfg Config, log *zap.Logger) *Paginator {
	return &Paginator{
		client: client,
		clock:  clk,
		cfg:    cfg.withDefaults(),
		log:    log.Named("provider.paginator"),
	}
}

// Fetch pulls up to totalLimit calls that started after since, newest first.
//
// A retention rejection restarts the whole fetch once with since clamped to
// the retention window; a second rejection ends the fetch with the records
// gathered so far and a nil error. Any other failure returns the partial
// records together with the error and callers must not merge them.
func (p *Paginator) Fetch(ctx context.Context, apiKey string, totalLimit int, since time.Time) (FetchResult, error) {
	ctx, span := tracer.Start(ctx, "paginator.Fetch")
	defer span.End()

	res, err := p.fetch(ctx, apiKey, totalLimit, since)
	if errors.Is(err, providerdomain.ErrRetentionLimit) {
		safe := p.clock.Now().Add(-p.cfg.RetentionWindow)
		if since.After(safe) {
			safe = since
		}
		p.log.Warn("retention limit hit, retrying with narrowed window",
			zap.Time("since", since),
			zap.Time("narrowed_since", safe))

		retry, retryErr := p.fetch(ctx, apiKey, totalLimit, safe)
		retry.Pages += res.Pages
		retry.Retried = true
		res, err = retry, retryErr

		if errors.Is(err, providerdomain.ErrRetentionLimit) {
			p.log.Error("retention limit hit on narrowed window, keeping partial result",
				zap.Int("records", len(res.Records)))
			res.Degraded = true
			err = nil
		}
	}

	span.SetAttributes(
		attribute.Int("provider.pages", res.Pages),
		attribute.Int("provider.records", len(res.Records)),
		attribute.Bool("provider.retried", res.Retried),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

func (p *Paginator) fetch(ctx context.Context, apiKey string, totalLimit int, since time.Time) (FetchResult, error) {
	var (
		res    FetchResult
		cursor *time.Time
	)
	after := since

	for len(res.Records) < totalLimit {
		if res.Pages > 0 {
			if err := sleep(ctx, p.cfg.PageDelay); err != nil {
				return res, err
			}
		}

		limit := min(p.cfg.PageSize, totalLimit-len(res.Records))
		req := providerdomain.ListCallsRequest{
			Limit:         limit,
			StartedBefore: cursor,
		}
		if !after.IsZero() {
			req.StartedAfter = &after
		}

		page, err := p.client.ListCalls(ctx, apiKey, req)
		if err != nil {
			return res, err
		}
		res.Pages++

		if page.Received == 0 {
			break
		}
		res.Records = append(res.Records, page.Calls...)
		p.log.Debug("fetched page",
			zap.Int("page", res.Pages),
			zap.Int("received", page.Received),
			zap.Int("records", len(res.Records)))

		next := page.LastStartedAt
		if len(page.Calls) > 0 {
			last := page.Calls[len(page.Calls)-1].StartedAt
			if next == nil || last.Before(*next) {
				next = &last
			}
		}
		if page.Received < limit {
			break
		}
		if len(page.Calls) == 0 {
			p.log.Warn("full page had no valid calls",
				zap.Int("page", res.Pages),
				zap.Int("received", page.Received),
				zap.Bool("cursor_advanced", next != nil))
		}
		if next == nil || (cursor != nil && !next.Before(*cursor)) {
			// no way to move the cursor further back
			break
		}
		cursor = next
	}

	if len(res.Records) > totalLimit {
		res.Records = res.Records[:totalLimit]
	}
	return res, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
