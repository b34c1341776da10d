package metering

import (
	"time"

	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// AlertKind identifies a usage alert
type AlertKind string

const (
	// AlertKindNearLimit is raised when remaining call capacity drops to
	// NearLimitThreshold of the period total
	AlertKindNearLimit AlertKind = "near_limit"
)

// UsageAlert marks that an alert was raised for a tenant in a billing period.
// The row's existence is the dedup key: one alert per kind per period.
type UsageAlert struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	Kind        AlertKind
	PeriodStart time.Time
	UsedSeconds int64 // Call usage at the moment the alert fired
	TotalSecs   int64 // Period total at the moment the alert fired
}

// NewNearLimitAlert creates a near-limit alert for the given period
func NewNearLimitAlert(tenantID uuid.UUID, periodStart time.Time, usedSeconds, totalSeconds int64) *UsageAlert {
	return &UsageAlert{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		Kind:        AlertKindNearLimit,
		PeriodStart: periodStart,
		UsedSeconds: usedSeconds,
		TotalSecs:   totalSeconds,
	}
}

// AuditAction identifies an administrative action on a ledger
type AuditAction string

const (
	AuditActionForcePause  AuditAction = "force_pause"
	AuditActionForceResume AuditAction = "force_resume"
	AuditActionManualTopup AuditAction = "manual_topup"
	// AuditActionBillingEvent records a billing-provider event that changed
	// ledger or tenant state; the actor is the provider, not an admin
	AuditActionBillingEvent AuditAction = "billing_event"
)

// AuditRecord is a write-only trail entry for administrative overrides
type AuditRecord struct {
	shared.BaseEntity
	TenantID uuid.UUID
	Actor    string // Administrator identity from the auth context
	Action   AuditAction
	Detail   string // Free-form description, e.g. topup amounts
}

// NewAuditRecord creates an audit trail entry
func NewAuditRecord(tenantID uuid.UUID, actor string, action AuditAction, detail string) *AuditRecord {
	return &AuditRecord{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		Actor:      actor,
		Action:     action,
		Detail:     detail,
	}
}
