package identity

import (
	"strings"
	"time"

	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantStatus represents the lifecycle status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended" // Suspended due to payment issues
)

// Tenant represents one business subscribed to the front-desk service. It owns
// the billing identifiers and routing identities (voice agent, SMS number)
// that inbound webhooks resolve against.
type Tenant struct {
	shared.BaseAggregateRoot
	Name   string       `gorm:"type:varchar(200);not null"`
	Status TenantStatus `gorm:"type:varchar(20);not null;default:'active'"`

	// PlanTier is the raw tier label from the billing provider (e.g.
	// "core_monthly_v2"); the metering catalog resolves it to an entitlement.
	PlanTier string `gorm:"type:varchar(100);not null;default:'starter'"`

	// AgentID identifies the tenant's voice agent with the telephony provider
	AgentID string `gorm:"type:varchar(100);uniqueIndex"`

	// SMSNumber is the tenant's outbound reminder number in E.164 form
	SMSNumber string `gorm:"type:varchar(30);uniqueIndex"`

	StripeCustomerID     string `gorm:"type:varchar(100);index"`
	StripeSubscriptionID string `gorm:"type:varchar(100);index"`

	// CurrentPeriodEnd mirrors the subscription period end reported by the
	// billing provider; nil until the first subscription event arrives
	CurrentPeriodEnd *time.Time

	PaymentFailed bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (Tenant) TableName() string {
	return "tenants"
}

// NewTenant creates a new active tenant on the default starter tier
func NewTenant(name string) (*Tenant, error) {
	if err := validateTenantName(name); err != nil {
		return nil, err
	}

	tenant := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Status:            TenantStatusActive,
		PlanTier:          "starter",
	}

	tenant.AddDomainEvent(NewTenantCreatedEvent(tenant))

	return tenant, nil
}

// Rename updates the tenant's display name
func (t *Tenant) Rename(name string) error {
	if err := validateTenantName(name); err != nil {
		return err
	}

	t.Name = name
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// SetPlanTier stores the raw plan label reported by the billing provider
func (t *Tenant) SetPlanTier(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return shared.NewDomainError("INVALID_PLAN", "Plan tier label cannot be empty")
	}
	if len(label) > 100 {
		return shared.NewDomainError("INVALID_PLAN", "Plan tier label cannot exceed 100 characters")
	}

	oldTier := t.PlanTier
	t.PlanTier = label
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	if oldTier != label {
		t.AddDomainEvent(NewTenantPlanChangedEvent(t, oldTier, label))
	}

	return nil
}

// SetAgentID assigns the tenant's voice agent identifier
func (t *Tenant) SetAgentID(agentID string) error {
	agentID = strings.TrimSpace(agentID)
	if len(agentID) > 100 {
		return shared.NewDomainError("INVALID_AGENT_ID", "Agent ID cannot exceed 100 characters")
	}

	t.AgentID = agentID
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// SetSMSNumber assigns the tenant's outbound SMS number
func (t *Tenant) SetSMSNumber(number string) error {
	number = strings.TrimSpace(number)
	if number != "" && !strings.HasPrefix(number, "+") {
		return shared.NewDomainError("INVALID_SMS_NUMBER", "SMS number must be in E.164 form")
	}
	if len(number) > 30 {
		return shared.NewDomainError("INVALID_SMS_NUMBER", "SMS number cannot exceed 30 characters")
	}

	t.SMSNumber = number
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// LinkStripeCustomer records the billing-provider customer ID
func (t *Tenant) LinkStripeCustomer(customerID string) error {
	if customerID == "" {
		return shared.NewDomainError("INVALID_CUSTOMER_ID", "Customer ID cannot be empty")
	}

	t.StripeCustomerID = customerID
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// LinkStripeSubscription records the billing-provider subscription ID
func (t *Tenant) LinkStripeSubscription(subscriptionID string) error {
	if subscriptionID == "" {
		return shared.NewDomainError("INVALID_SUBSCRIPTION_ID", "Subscription ID cannot be empty")
	}

	t.StripeSubscriptionID = subscriptionID
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	return nil
}

// SetBillingPeriodEnd mirrors the subscription period end reported by the
// billing provider
func (t *Tenant) SetBillingPeriodEnd(end time.Time) {
	t.CurrentPeriodEnd = &end
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// MarkPaymentFailed flags the tenant after a failed invoice
func (t *Tenant) MarkPaymentFailed() {
	if t.PaymentFailed {
		return
	}
	t.PaymentFailed = true
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenantPaymentFailedEvent(t))
}

// ClearPaymentFailed resets the payment-failed flag after a successful invoice
func (t *Tenant) ClearPaymentFailed() {
	if !t.PaymentFailed {
		return
	}
	t.PaymentFailed = false
	t.UpdatedAt = time.Now()
	t.IncrementVersion()
}

// Activate activates the tenant
func (t *Tenant) Activate() error {
	if t.Status == TenantStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Tenant is already active")
	}

	oldStatus := t.Status
	t.Status = TenantStatusActive
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenantStatusChangedEvent(t, oldStatus, TenantStatusActive))

	return nil
}

// Deactivate deactivates the tenant (e.g. subscription cancelled)
func (t *Tenant) Deactivate() error {
	if t.Status == TenantStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Tenant is already inactive")
	}

	oldStatus := t.Status
	t.Status = TenantStatusInactive
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenantStatusChangedEvent(t, oldStatus, TenantStatusInactive))

	return nil
}

// Suspend suspends the tenant due to payment issues
func (t *Tenant) Suspend() error {
	if t.Status == TenantStatusSuspended {
		return shared.NewDomainError("ALREADY_SUSPENDED", "Tenant is already suspended")
	}

	oldStatus := t.Status
	t.Status = TenantStatusSuspended
	t.UpdatedAt = time.Now()
	t.IncrementVersion()

	t.AddDomainEvent(NewTenantStatusChangedEvent(t, oldStatus, TenantStatusSuspended))

	return nil
}

// IsActive returns true if the tenant is active
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// IsSuspended returns true if the tenant is suspended
func (t *Tenant) IsSuspended() bool {
	return t.Status == TenantStatusSuspended
}

func validateTenantName(name string) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot exceed 200 characters")
	}
	return nil
}

// GetTenantID returns the tenant ID
func (t *Tenant) GetTenantID() uuid.UUID {
	return t.ID
}
