package service_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	quotadomain "github.com/railzwaylabs/callsync/internal/quota/domain"
	"github.com/railzwaylabs/callsync/internal/quota/service"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, cfg quotadomain.Config) quotadomain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.NewService(service.ServiceParam{
		Log:    zap.NewNop(),
		Config: &cfg,
		GenID:  node,
	})
}

func stateAt(used, limit float64, overages bool) *tenantdomain.TenantState {
	return &tenantdomain.TenantState{
		Tenant: tenantdomain.Tenant{
			ID:              "t1",
			MinuteLimit:     limit,
			UsedMinutes:     used,
			OveragesEnabled: overages,
		},
	}
}

func TestEvaluate_RaisesWarningAtThreshold(t *testing.T) {
	svc := newService(t, quotadomain.DefaultConfig())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := stateAt(85, 100, false)

	n, ok := svc.Evaluate(state, now)
	require.True(t, ok)
	assert.Equal(t, quotadomain.TitleUsageWarning, n.Title)
	assert.Equal(t, "You have used 85% of your monthly minute limit. Please top up.", n.Message)
	assert.Equal(t, tenantdomain.NotificationWarning, n.Kind)
	assert.Equal(t, "t1", n.TenantID)
	assert.False(t, n.Delivered)
	assert.NotEmpty(t, n.ID)
	require.Len(t, state.Notifications, 1)
	assert.Same(t, &state.Notifications[0], n)
}

func TestEvaluate_DedupWithinWindow(t *testing.T) {
	svc := newService(t, quotadomain.DefaultConfig())
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state := stateAt(85, 100, false)

	_, ok := svc.Evaluate(state, now)
	require.True(t, ok)

	_, ok = svc.Evaluate(state, now.Add(23*time.Hour))
	assert.False(t, ok)
	assert.Len(t, state.Notifications, 1)

	_, ok = svc.Evaluate(state, now.Add(24*time.Hour+time.Second))
	assert.True(t, ok)
	assert.Len(t, state.Notifications, 2)
}

func TestEvaluate_NoWarning(t *testing.T) {
	svc := newService(t, quotadomain.DefaultConfig())
	now := time.Now()

	tests := []struct {
		name  string
		state *tenantdomain.TenantState
	}{
		{"below threshold", stateAt(79.9, 100, false)},
		{"overages enabled", stateAt(95, 100, true)},
		{"no limit", stateAt(95, 0, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := svc.Evaluate(tt.state, now)
			assert.False(t, ok)
			assert.Nil(t, n)
			assert.Empty(t, tt.state.Notifications)
		})
	}
}

func TestEvaluate_Disabled(t *testing.T) {
	cfg := quotadomain.DefaultConfig()
	cfg.Enabled = false
	svc := newService(t, cfg)

	_, ok := svc.Evaluate(stateAt(100, 100, false), time.Now())
	assert.False(t, ok)
}

func TestAdd_CapsListNewestFirst(t *testing.T) {
	svc := newService(t, quotadomain.DefaultConfig())
	state := stateAt(0, 100, false)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := range 55 {
		svc.Add(state, fmt.Sprintf("n%d", i), "msg", tenantdomain.NotificationInfo, start.Add(time.Duration(i)*time.Minute))
	}

	require.Len(t, state.Notifications, 50)
	assert.Equal(t, "n54", state.Notifications[0].Title)
	assert.Equal(t, "n5", state.Notifications[49].Title)
}
