package domain

import (
	"fmt"
	"time"

	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

const (
	TitleUsageWarning    = "Critical Usage Warning"
	TitleOveragesEnabled = "Overages Enabled"
	TitlePaymentVerified = "Payment Verified"
)

// UsageWarningMessage renders the body of the usage warning.
func UsageWarningMessage(percent int) string {
	return fmt.Sprintf("You have used %d%% of your monthly minute limit. Please top up.", percent)
}

type Service interface {
	// Evaluate creates at most one usage warning for state, based on the
	// already reconciled UsedMinutes.
	Evaluate(state *tenantdomain.TenantState, now time.Time) (*tenantdomain.Notification, bool)

	// Add prepends a notification to state and evicts the oldest entries
	// beyond the configured cap.
	Add(state *tenantdomain.TenantState, title, message string, kind tenantdomain.NotificationKind, now time.Time) *tenantdomain.Notification
}
