package repository

import (
	"time"

	callsdomain "github.com/railzwaylabs/callsync/internal/calls/domain"
	tenantdomain "github.com/railzwaylabs/callsync/internal/tenant/domain"
)

type tenantRow struct {
	ID                string `gorm:"primaryKey;size:64"`
	Name              string `gorm:"size:255;not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	MinuteLimit       float64 `gorm:"not null;default:0"`
	UsedMinutes       float64 `gorm:"not null;default:0"`
	OveragesEnabled   bool    `gorm:"not null;default:false"`
	WebhookURL        string  `gorm:"size:2048"`
	EncryptedAPIKey   []byte
	LastSyncWatermark *time.Time
	Version           int64 `gorm:"not null;default:0"`
}

func (tenantRow) TableName() string {
	return "tenants"
}

type callRecordRow struct {
	TenantID        string    `gorm:"primaryKey;size:64"`
	ID              string    `gorm:"primaryKey;size:128"`
	StartedAt       time.Time `gorm:"index;not null"`
	DurationSeconds float64
	EndReason       string `gorm:"size:64"`
	Status          string `gorm:"size:32"`
	CustomerPhone   string `gorm:"size:64"`
	AssistantID     string `gorm:"size:128"`
	RecordingURL    string `gorm:"size:2048"`
	Transcript      string `gorm:"type:text"`
	Summary         string `gorm:"type:text"`
	Cost            float64
}

func (callRecordRow) TableName() string {
	return "call_records"
}

type notificationRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	TenantID      string `gorm:"index;size:64;not null"`
	Position      int    `gorm:"not null"`
	Title         string `gorm:"size:255"`
	Message       string `gorm:"type:text"`
	Kind          string `gorm:"size:32"`
	CreatedAt     time.Time
	Read          bool
	Delivered     bool `gorm:"index"`
	Attempts      int
	NextAttemptAt *time.Time
	LastError     string `gorm:"type:text"`
}

func (notificationRow) TableName() string {
	return "notifications"
}

func toCallRecordRows(tenantID string, records []callsdomain.CallRecord) []callRecordRow {
	rows := make([]callRecordRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, callRecordRow{
			TenantID:        tenantID,
			ID:              r.ID,
			StartedAt:       r.StartedAt.UTC(),
			DurationSeconds: r.DurationSeconds,
			EndReason:       string(r.EndReason),
			Status:          string(r.Status),
			CustomerPhone:   r.CustomerPhone,
			AssistantID:     r.AssistantID,
			RecordingURL:    r.RecordingURL,
			Transcript:      r.Transcript,
			Summary:         r.Summary,
			Cost:            r.Cost,
		})
	}
	return rows
}

func (r callRecordRow) toDomain() callsdomain.CallRecord {
	return callsdomain.CallRecord{
		ID:              r.ID,
		TenantID:        r.TenantID,
		StartedAt:       r.StartedAt.UTC(),
		DurationSeconds: r.DurationSeconds,
		EndReason:       callsdomain.EndReason(r.EndReason),
		Status:          callsdomain.CallStatus(r.Status),
		CustomerPhone:   r.CustomerPhone,
		AssistantID:     r.AssistantID,
		RecordingURL:    r.RecordingURL,
		Transcript:      r.Transcript,
		Summary:         r.Summary,
		Cost:            r.Cost,
	}
}

func toNotificationRows(tenantID string, list []tenantdomain.Notification) []notificationRow {
	rows := make([]notificationRow, 0, len(list))
	for i, n := range list {
		rows = append(rows, notificationRow{
			ID:            n.ID,
			TenantID:      tenantID,
			Position:      i,
			Title:         n.Title,
			Message:       n.Message,
			Kind:          string(n.Kind),
			CreatedAt:     n.CreatedAt.UTC(),
			Read:          n.Read,
			Delivered:     n.Delivered,
			Attempts:      n.Attempts,
			NextAttemptAt: n.NextAttemptAt,
			LastError:     n.LastError,
		})
	}
	return rows
}

func (r notificationRow) toDomain() tenantdomain.Notification {
	n := tenantdomain.Notification{
		ID:        r.ID,
		TenantID:  r.TenantID,
		Title:     r.Title,
		Message:   r.Message,
		Kind:      tenantdomain.NotificationKind(r.Kind),
		CreatedAt: r.CreatedAt.UTC(),
		Read:      r.Read,
		Delivered: r.Delivered,
		Attempts:  r.Attempts,
		LastError: r.LastError,
	}
	if r.NextAttemptAt != nil {
		at := r.NextAttemptAt.UTC()
		n.NextAttemptAt = &at
	}
	return n
}
