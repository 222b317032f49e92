package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/callsync/internal/callsync"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

type upsertTenantRequest struct {
	Name            string     `json:"name"`
	CreatedAt       *time.Time `json:"created_at"`
	MinuteLimit     float64    `json:"minute_limit"`
	OveragesEnabled bool       `json:"overages_enabled"`
	WebhookURL      string     `json:"webhook_url"`
	ProviderAPIKey  string     `json:"provider_api_key"`
}

type createNotificationRequest struct {
	Title   string                        `json:"title"`
	Message string                        `json:"message"`
	Kind    tenantdomain.NotificationKind `json:"kind"`
}

type syncResultView struct {
	TenantID     string                     `json:"tenant_id"`
	RunID        string                     `json:"run_id"`
	States       []callsync.State           `json:"states"`
	Final        callsync.State             `json:"final"`
	Fetched      int                        `json:"fetched"`
	Pages        int                        `json:"pages"`
	CacheChanged bool                       `json:"cache_changed"`
	CacheSize    int                        `json:"cache_size"`
	UsedMinutes  float64                    `json:"used_minutes"`
	UsageChanged bool                       `json:"usage_changed"`
	Degraded     bool                       `json:"degraded"`
	Notification *tenantdomain.Notification `json:"notification,omitempty"`
	Retried      int                        `json:"retried"`
	Delivered    int                        `json:"delivered"`
	Persisted    bool                       `json:"persisted"`
	Error        string                     `json:"error,omitempty"`
	DurationMS   int64                      `json:"duration_ms"`
}

func newSyncResultView(res callsync.SyncResult) syncResultView {
	v := syncResultView{
		TenantID:     res.TenantID,
		RunID:        res.RunID,
		States:       res.States,
		Final:        res.Final,
		Fetched:      res.Fetched,
		Pages:        res.Pages,
		CacheChanged: res.CacheChanged,
		CacheSize:    res.CacheSize,
		UsedMinutes:  res.UsedMinutes,
		UsageChanged: res.UsageChanged,
		Degraded:     res.Degraded,
		Notification: res.Notification,
		Retried:      res.Retried,
		Delivered:    res.Delivered,
		Persisted:    res.Persisted,
		DurationMS:   res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func (s *Server) ListTenants(c *gin.Context) {
	tenants, err := s.store.ListTenants(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, tenants)
}

func (s *Server) UpsertTenant(c *gin.Context) {
	var req upsertTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", err.Error()))
		return
	}

	tenant := tenantdomain.Tenant{
		ID:              strings.TrimSpace(c.Param("id")),
		Name:            strings.TrimSpace(req.Name),
		MinuteLimit:     req.MinuteLimit,
		OveragesEnabled: req.OveragesEnabled,
		WebhookURL:      strings.TrimSpace(req.WebhookURL),
		ProviderAPIKey:  strings.TrimSpace(req.ProviderAPIKey),
	}
	if req.CreatedAt != nil {
		tenant.CreatedAt = req.CreatedAt.UTC()
	}

	if err := s.store.UpsertTenant(c.Request.Context(), tenant); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DeleteTenant(c *gin.Context) {
	if err := s.sync.DeleteTenant(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncTenant runs one synchronization cycle. A failed provider fetch is
// reported in the body with status 200; only infrastructure errors fail.
func (s *Server) SyncTenant(c *gin.Context) {
	res, err := s.sync.SyncTenant(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newSyncResultView(res))
}

func (s *Server) SyncAll(c *gin.Context) {
	sweep, err := s.sync.SyncAll(c.Request.Context())
	if err != nil && sweep.Tenants == 0 {
		AbortWithError(c, err)
		return
	}

	results := make([]syncResultView, 0, len(sweep.Results))
	for _, res := range sweep.Results {
		results = append(results, newSyncResultView(res))
	}
	respondData(c, gin.H{
		"run_id":    sweep.RunID,
		"tenants":   sweep.Tenants,
		"succeeded": sweep.Succeeded,
		"failed":    sweep.Failed,
		"results":   results,
	})
}

func (s *Server) ListCalls(c *gin.Context) {
	refresh, err := boolQuery(c, "refresh")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	calls, err := s.sync.Calls(c.Request.Context(), c.Param("id"), refresh)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, calls)
}

func (s *Server) GetStats(c *gin.Context) {
	stats, err := s.sync.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, stats)
}

func (s *Server) ListNotifications(c *gin.Context) {
	list, err := s.sync.Notifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondList(c, list)
}

func (s *Server) CreateNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("body", "invalid_json", err.Error()))
		return
	}

	n, err := s.sync.Notify(c.Request.Context(), c.Param("id"), req.Title, req.Message, req.Kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": n})
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, newValidationError(key, "invalid_bool", key+" must be a boolean")
	}
	return v, nil
}
