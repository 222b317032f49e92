package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	providerdomain "github.com/railzwaylabs/callsync/internal/provider/domain"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.vapi.ai"
	callsPath      = "/call"

	// queryTimeLayout matches the millisecond ISO-8601 form the provider
	// emits for startedAt.
	queryTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client lists calls from the provider's calls endpoint.
type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		log: log.Named("provider.vapi"),
	}
}

func (c *Client) ListCalls(ctx context.Context, apiKey string, req providerdomain.ListCallsRequest) (providerdomain.Page, error) {
	if strings.TrimSpace(apiKey) == "" {
		return providerdomain.Page{}, providerdomain.ErrMissingAPIKey
	}

	params := map[string]string{
		"limit": strconv.Itoa(req.Limit),
	}
	if req.StartedAfter != nil {
		params["createdAtGt"] = req.StartedAfter.UTC().Format(queryTimeLayout)
	}
	if req.StartedBefore != nil {
		params["createdAtLt"] = req.StartedBefore.UTC().Format(queryTimeLayout)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(apiKey).
		SetQueryParams(params).
		Get(callsPath)
	if err != nil {
		return providerdomain.Page{}, fmt.Errorf("list calls: %w", err)
	}

	if resp.IsError() {
		body := resp.String()
		if isRetentionError(resp.StatusCode(), body) {
			return providerdomain.Page{}, providerdomain.ErrRetentionLimit
		}
		c.log.Warn("provider responded with error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", truncate(body, 512)))
		return providerdomain.Page{}, fmt.Errorf("%w: status=%d", providerdomain.ErrRequestFailed, resp.StatusCode())
	}

	return c.decodePage(resp.Body()), nil
}

func (c *Client) decodePage(body []byte) providerdomain.Page {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		c.log.Warn("provider returned a non-array body", zap.Error(err))
		return providerdomain.Page{}
	}

	page := providerdomain.Page{Received: len(elems)}
	for _, elem := range elems {
		var raw rawCall
		if err := json.Unmarshal(elem, &raw); err != nil {
			c.log.Debug("dropping malformed call", zap.Error(err))
			continue
		}
		if startedAt, ok := parseTime(raw.StartedAt); ok {
			page.LastStartedAt = &startedAt
		}
		call, ok := raw.toRecord()
		if !ok {
			c.log.Debug("dropping call without id or start time", zap.String("call_id", raw.ID))
			continue
		}
		page.Calls = append(page.Calls, call)
	}
	return page
}

func isRetentionError(status int, body string) bool {
	if status != 400 {
		return false
	}
	body = strings.ToLower(body)
	return strings.Contains(body, "retention") || strings.Contains(body, "subscription plan")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
