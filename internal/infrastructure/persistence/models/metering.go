package models

import (
	"time"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageLedgerModel is the persistence model for the UsageLedger aggregate.
// One row per tenant; counter columns are updated with atomic SQL deltas,
// full-row saves check the version column.
type UsageLedgerModel struct {
	AggregateModel
	TenantID          uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	PlanTier          string              `gorm:"type:varchar(20);not null"`
	CallCapSeconds    int64               `gorm:"not null;default:0"`
	SMSCap            int64               `gorm:"column:sms_cap;not null;default:0"`
	CallUsedSeconds   int64               `gorm:"not null;default:0"`
	SMSUsed           int64               `gorm:"column:sms_used;not null;default:0"`
	CallCreditSeconds int64               `gorm:"not null;default:0"`
	SMSCredit         int64               `gorm:"column:sms_credit;not null;default:0"`
	RolloverSeconds   int64               `gorm:"not null;default:0"`
	GraceSeconds      int64               `gorm:"not null;default:0"`
	LimitState        metering.LimitState `gorm:"type:varchar(20);not null;default:'ok'"`
	ForcePause        bool                `gorm:"not null;default:false"`
	ForceResume       bool                `gorm:"not null;default:false"`
	PeriodStart       time.Time           `gorm:"not null"`
	PeriodEnd         time.Time           `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (UsageLedgerModel) TableName() string {
	return "usage_ledgers"
}

// ToDomain converts the persistence model to a domain UsageLedger aggregate.
func (m *UsageLedgerModel) ToDomain() *metering.UsageLedger {
	return &metering.UsageLedger{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		TenantID:          m.TenantID,
		PlanTier:          metering.PlanTier(m.PlanTier),
		CallCapSeconds:    m.CallCapSeconds,
		SMSCap:            m.SMSCap,
		CallUsedSeconds:   m.CallUsedSeconds,
		SMSUsed:           m.SMSUsed,
		CallCreditSeconds: m.CallCreditSeconds,
		SMSCredit:         m.SMSCredit,
		RolloverSeconds:   m.RolloverSeconds,
		GraceSeconds:      m.GraceSeconds,
		LimitState:        m.LimitState,
		ForcePause:        m.ForcePause,
		ForceResume:       m.ForceResume,
		PeriodStart:       m.PeriodStart,
		PeriodEnd:         m.PeriodEnd,
	}
}

// FromDomain populates the persistence model from a domain UsageLedger.
func (m *UsageLedgerModel) FromDomain(l *metering.UsageLedger) {
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	m.TenantID = l.TenantID
	m.PlanTier = l.PlanTier.String()
	m.CallCapSeconds = l.CallCapSeconds
	m.SMSCap = l.SMSCap
	m.CallUsedSeconds = l.CallUsedSeconds
	m.SMSUsed = l.SMSUsed
	m.CallCreditSeconds = l.CallCreditSeconds
	m.SMSCredit = l.SMSCredit
	m.RolloverSeconds = l.RolloverSeconds
	m.GraceSeconds = l.GraceSeconds
	m.LimitState = l.LimitState
	m.ForcePause = l.ForcePause
	m.ForceResume = l.ForceResume
	m.PeriodStart = l.PeriodStart
	m.PeriodEnd = l.PeriodEnd
}

// UsageEventModel is the persistence model for the append-only usage log.
type UsageEventModel struct {
	BaseModel
	TenantID    uuid.UUID          `gorm:"type:uuid;not null;index:idx_usage_events_tenant_period"`
	Kind        metering.UsageKind `gorm:"type:varchar(10);not null"`
	Quantity    int64              `gorm:"not null"`
	SourceID    string             `gorm:"type:varchar(100);index"`
	Cost        decimal.Decimal    `gorm:"type:decimal(12,6);not null;default:0"`
	RecordedAt  time.Time          `gorm:"not null;index:idx_usage_events_tenant_period"`
	PeriodStart time.Time          `gorm:"not null"`
	PeriodEnd   time.Time          `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToDomain converts the persistence model to a domain UsageEvent.
func (m *UsageEventModel) ToDomain() *metering.UsageEvent {
	return &metering.UsageEvent{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:    m.TenantID,
		Kind:        m.Kind,
		Quantity:    m.Quantity,
		SourceID:    m.SourceID,
		Cost:        m.Cost,
		RecordedAt:  m.RecordedAt,
		PeriodStart: m.PeriodStart,
		PeriodEnd:   m.PeriodEnd,
	}
}

// FromDomain populates the persistence model from a domain UsageEvent.
func (m *UsageEventModel) FromDomain(e *metering.UsageEvent) {
	m.FromDomainBaseEntity(e.BaseEntity)
	m.TenantID = e.TenantID
	m.Kind = e.Kind
	m.Quantity = e.Quantity
	m.SourceID = e.SourceID
	m.Cost = e.Cost
	m.RecordedAt = e.RecordedAt
	m.PeriodStart = e.PeriodStart
	m.PeriodEnd = e.PeriodEnd
}

// UsageAlertModel is the persistence model for raised usage alerts. The
// unique (tenant, kind, period_start) index is the dedup guarantee.
type UsageAlertModel struct {
	BaseModel
	TenantID    uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_usage_alerts_dedup"`
	Kind        metering.AlertKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_usage_alerts_dedup"`
	PeriodStart time.Time          `gorm:"not null;uniqueIndex:idx_usage_alerts_dedup"`
	UsedSeconds int64              `gorm:"not null"`
	TotalSecs   int64              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsageAlertModel) TableName() string {
	return "usage_alerts"
}

// ToDomain converts the persistence model to a domain UsageAlert.
func (m *UsageAlertModel) ToDomain() *metering.UsageAlert {
	return &metering.UsageAlert{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID:    m.TenantID,
		Kind:        m.Kind,
		PeriodStart: m.PeriodStart,
		UsedSeconds: m.UsedSeconds,
		TotalSecs:   m.TotalSecs,
	}
}

// FromDomain populates the persistence model from a domain UsageAlert.
func (m *UsageAlertModel) FromDomain(a *metering.UsageAlert) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.TenantID = a.TenantID
	m.Kind = a.Kind
	m.PeriodStart = a.PeriodStart
	m.UsedSeconds = a.UsedSeconds
	m.TotalSecs = a.TotalSecs
}

// AuditRecordModel is the persistence model for administrative audit entries.
type AuditRecordModel struct {
	BaseModel
	TenantID uuid.UUID            `gorm:"type:uuid;not null;index"`
	Actor    string               `gorm:"type:varchar(200);not null"`
	Action   metering.AuditAction `gorm:"type:varchar(30);not null"`
	Detail   string               `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (AuditRecordModel) TableName() string {
	return "audit_log"
}

// ToDomain converts the persistence model to a domain AuditRecord.
func (m *AuditRecordModel) ToDomain() *metering.AuditRecord {
	return &metering.AuditRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		TenantID: m.TenantID,
		Actor:    m.Actor,
		Action:   m.Action,
		Detail:   m.Detail,
	}
}

// FromDomain populates the persistence model from a domain AuditRecord.
func (m *AuditRecordModel) FromDomain(r *metering.AuditRecord) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.TenantID = r.TenantID
	m.Actor = r.Actor
	m.Action = r.Action
	m.Detail = r.Detail
}
