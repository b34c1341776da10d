package identity

import (
	"context"

	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// TenantRepository defines the interface for tenant persistence
type TenantRepository interface {
	// FindByID finds a tenant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindByAgentID finds the tenant owning a voice agent
	FindByAgentID(ctx context.Context, agentID string) (*Tenant, error)

	// FindBySMSNumber finds the tenant owning an SMS number
	FindBySMSNumber(ctx context.Context, number string) (*Tenant, error)

	// FindByStripeCustomerID finds a tenant by its billing customer ID
	FindByStripeCustomerID(ctx context.Context, customerID string) (*Tenant, error)

	// FindByStripeSubscriptionID finds a tenant by its subscription ID
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*Tenant, error)

	// FindAll finds all tenants matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Tenant, error)

	// Create persists a new tenant
	Create(ctx context.Context, tenant *Tenant) error

	// Save updates an existing tenant
	Save(ctx context.Context, tenant *Tenant) error

	// Count counts tenants matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}
