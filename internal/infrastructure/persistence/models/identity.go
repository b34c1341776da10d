package models

import (
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/shared"
)

// TenantModel is the persistence model for the Tenant domain entity.
type TenantModel struct {
	AggregateModel
	Name                 string                `gorm:"type:varchar(200);not null"`
	Status               identity.TenantStatus `gorm:"type:varchar(20);not null;default:'active'"`
	PlanTier             string                `gorm:"type:varchar(100);not null;default:'starter'"`
	AgentID              string                `gorm:"type:varchar(100);uniqueIndex"`
	SMSNumber            string                `gorm:"column:sms_number;type:varchar(30);uniqueIndex"`
	StripeCustomerID     string                `gorm:"column:stripe_customer_id;type:varchar(100);index"`
	StripeSubscriptionID string                `gorm:"column:stripe_subscription_id;type:varchar(100);index"`
	CurrentPeriodEnd     *time.Time
	PaymentFailed        bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant entity.
func (m *TenantModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Name:                 m.Name,
		Status:               m.Status,
		PlanTier:             m.PlanTier,
		AgentID:              m.AgentID,
		SMSNumber:            m.SMSNumber,
		StripeCustomerID:     m.StripeCustomerID,
		StripeSubscriptionID: m.StripeSubscriptionID,
		CurrentPeriodEnd:     m.CurrentPeriodEnd,
		PaymentFailed:        m.PaymentFailed,
	}
}

// FromDomain populates the persistence model from a domain Tenant entity.
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	m.Name = t.Name
	m.Status = t.Status
	m.PlanTier = t.PlanTier
	m.AgentID = t.AgentID
	m.SMSNumber = t.SMSNumber
	m.StripeCustomerID = t.StripeCustomerID
	m.StripeSubscriptionID = t.StripeSubscriptionID
	m.CurrentPeriodEnd = t.CurrentPeriodEnd
	m.PaymentFailed = t.PaymentFailed
}
