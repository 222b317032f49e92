package service

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/railzwaylabs/callsync/internal/quota/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type ServiceParam struct {
	fx.In

	Log    *zap.Logger
	Config *quotadomain.Config
	GenID  *snowflake.Node
}

type service struct {
	log   *zap.Logger
	cfg   *quotadomain.Config
	genID *snowflake.Node
}

func NewService(p ServiceParam) quotadomain.Service {
	return &service{
		log:   p.Log.Named("quota.service"),
		cfg:   p.Config,
		genID: p.GenID,
	}
}

func (s *service) Evaluate(state *tenantdomain.TenantState, now time.Time) (*tenantdomain.Notification, bool) {
	if !s.cfg.Enabled {
		return nil, false
	}

	tenant := state.Tenant
	if tenant.OveragesEnabled || tenant.MinuteLimit <= 0 {
		return nil, false
	}

	percent := tenant.UsedMinutes / tenant.MinuteLimit * 100
	if percent < s.cfg.WarningPercent {
		return nil, false
	}

	if s.hasRecent(state.Notifications, quotadomain.TitleUsageWarning, now) {
		s.log.Debug("usage warning suppressed",
			zap.String("tenant_id", tenant.ID),
			zap.Float64("percent", percent))
		return nil, false
	}

	n := s.Add(state, quotadomain.TitleUsageWarning,
		quotadomain.UsageWarningMessage(int(math.Round(percent))),
		tenantdomain.NotificationWarning, now)

	s.log.Info("usage warning raised",
		zap.String("tenant_id", tenant.ID),
		zap.String("notification_id", n.ID),
		zap.Float64("used_minutes", tenant.UsedMinutes),
		zap.Float64("minute_limit", tenant.MinuteLimit))
	return n, true
}

// Add returns a pointer into state.Notifications; it stays valid until the
// list is replaced.
func (s *service) Add(state *tenantdomain.TenantState, title, message string, kind tenantdomain.NotificationKind, now time.Time) *tenantdomain.Notification {
	n := tenantdomain.Notification{
		ID:        s.genID.Generate().String(),
		TenantID:  state.Tenant.ID,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: now.UTC(),
	}

	keep := min(len(state.Notifications), s.cfg.MaxNotifications-1)
	list := make([]tenantdomain.Notification, 0, keep+1)
	list = append(list, n)
	list = append(list, state.Notifications[:keep]...)

	if dropped := len(state.Notifications) - keep; dropped > 0 {
		s.log.Debug("notifications evicted",
			zap.String("tenant_id", state.Tenant.ID),
			zap.Int("dropped", dropped))
	}

	state.Notifications = list
	return &state.Notifications[0]
}

func (s *service) hasRecent(list []tenantdomain.Notification, title string, now time.Time) bool {
	cutoff := now.Add(-s.cfg.DedupWindow)
	for _, n := range list {
		if n.Title == title && n.CreatedAt.After(cutoff) {
			return true
		}
	}
	return false
}
