package identity

import (
	"github.com/frontdesk/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeTenant = "Tenant"

// Event type constants
const (
	EventTypeTenantCreated       = "TenantCreated"
	EventTypeTenantStatusChanged = "TenantStatusChanged"
	EventTypeTenantPlanChanged   = "TenantPlanChanged"
	EventTypeTenantPaymentFailed = "TenantPaymentFailed"
)

// TenantCreatedEvent is published when a new tenant is created
type TenantCreatedEvent struct {
	shared.BaseDomainEvent
	Name     string       `json:"name"`
	Status   TenantStatus `json:"status"`
	PlanTier string       `json:"plan_tier"`
}

// NewTenantCreatedEvent creates a new TenantCreatedEvent
func NewTenantCreatedEvent(tenant *Tenant) *TenantCreatedEvent {
	return &TenantCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantCreated, AggregateTypeTenant, tenant.ID, tenant.ID),
		Name:            tenant.Name,
		Status:          tenant.Status,
		PlanTier:        tenant.PlanTier,
	}
}

// TenantStatusChangedEvent is published when a tenant's status changes
type TenantStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus TenantStatus `json:"old_status"`
	NewStatus TenantStatus `json:"new_status"`
}

// NewTenantStatusChangedEvent creates a new TenantStatusChangedEvent
func NewTenantStatusChangedEvent(tenant *Tenant, oldStatus, newStatus TenantStatus) *TenantStatusChangedEvent {
	return &TenantStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantStatusChanged, AggregateTypeTenant, tenant.ID, tenant.ID),
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

// TenantPlanChangedEvent is published when a tenant's plan tier changes
type TenantPlanChangedEvent struct {
	shared.BaseDomainEvent
	OldTier string `json:"old_tier"`
	NewTier string `json:"new_tier"`
}

// NewTenantPlanChangedEvent creates a new TenantPlanChangedEvent
func NewTenantPlanChangedEvent(tenant *Tenant, oldTier, newTier string) *TenantPlanChangedEvent {
	return &TenantPlanChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTenantPlanChanged, AggregateTypeTenant, tenant.ID, tenant.ID),
		OldTier:         oldTier,
		NewTier:         newTier,
	}
}

// TenantPaymentFailedEvent is published when an invoice payment fails
type TenantPaymentFailedEvent struct {
	shared.BaseDomainEvent
	StripeCustomerID string `json:"stripe_customer_id"`
}

// NewTenantPaymentFailedEvent creates a new TenantPaymentFailedEvent
func NewTenantPaymentFailedEvent(tenant *Tenant) *TenantPaymentFailedEvent {
	return &TenantPaymentFailedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeTenantPaymentFailed, AggregateTypeTenant, tenant.ID, tenant.ID),
		StripeCustomerID: tenant.StripeCustomerID,
	}
}
