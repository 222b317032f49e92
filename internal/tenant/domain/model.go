package domain

import (
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
)

// Tenant is a client account whose call usage and minute limit are tracked
// independently. CreatedAt anchors the billing-cycle day of month.
type Tenant struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatedAt       time.Time `json:"created_at"`
	MinuteLimit     float64   `json:"minute_limit"`
	UsedMinutes     float64   `json:"used_minutes"`
	OveragesEnabled bool      `json:"overages_enabled"`
	WebhookURL      string    `json:"webhook_url,omitempty"`
	ProviderAPIKey  string    `json:"-"`
}

func (t Tenant) HasProviderKey() bool {
	return t.ProviderAPIKey != ""
}

type NotificationKind string

const (
	NotificationWarning NotificationKind = "warning"
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
)

// Notification is an event raised for a tenant and delivered to its webhook.
//
// Attempts, NextAttemptAt and LastError track webhook delivery; they are only
// written by the dispatcher.
type Notification struct {
	ID            string           `json:"id"`
	TenantID      string           `json:"tenant_id"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	Kind          NotificationKind `json:"kind"`
	CreatedAt     time.Time        `json:"created_at"`
	Read          bool             `json:"read"`
	Delivered     bool             `json:"delivered"`
	Attempts      int              `json:"attempts"`
	NextAttemptAt *time.Time       `json:"next_attempt_at,omitempty"`
	LastError     string           `json:"last_error,omitempty"`
}

// TenantState is everything one sync cycle reads and writes for a tenant.
// Notifications are ordered newest first. Version is the optimistic
// concurrency token of the stored aggregate.
type TenantState struct {
	Tenant        Tenant
	Cache         callsdomain.CacheEntry
	Notifications []Notification
	Version       int64
}

// Clone returns a deep copy of s.
func (s *TenantState) Clone() *TenantState {
	if s == nil {
		return nil
	}
	out := &TenantState{
		Tenant:  s.Tenant,
		Cache:   s.Cache.Clone(),
		Version: s.Version,
	}
	if s.Notifications != nil {
		out.Notifications = make([]Notification, len(s.Notifications))
		for i, n := range s.Notifications {
			if n.NextAttemptAt != nil {
				at := *n.NextAttemptAt
				n.NextAttemptAt = &at
			}
			out.Notifications[i] = n
		}
	}
	return out
}

// Document is the whole persisted aggregate.
type Document struct {
	Tenants []*TenantState
}
