package metering

import (
	"context"
	"errors"
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// assertError stands in for any infrastructure failure in expectations
var assertError = errors.New("store unavailable")

// MockTenantRepository is a mock implementation of identity.TenantRepository
type MockTenantRepository struct {
	mock.Mock
}

func (m *MockTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindByAgentID(ctx context.Context, agentID string) (*identity.Tenant, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindBySMSNumber(ctx context.Context, number string) (*identity.Tenant, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.Tenant, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*identity.Tenant, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Tenant), args.Error(1)
}

func (m *MockTenantRepository) Create(ctx context.Context, tenant *identity.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockTenantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockLedgerRepository is a mock implementation of metering.UsageLedgerRepository
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.UsageLedger, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*metering.UsageLedger), args.Error(1)
}

func (m *MockLedgerRepository) Create(ctx context.Context, ledger *metering.UsageLedger) error {
	args := m.Called(ctx, ledger)
	return args.Error(0)
}

func (m *MockLedgerRepository) Save(ctx context.Context, ledger *metering.UsageLedger) error {
	args := m.Called(ctx, ledger)
	return args.Error(0)
}

func (m *MockLedgerRepository) AddCallUsage(ctx context.Context, tenantID uuid.UUID, deltaSeconds int64, state metering.LimitState) error {
	args := m.Called(ctx, tenantID, deltaSeconds, state)
	return args.Error(0)
}

func (m *MockLedgerRepository) AddSMSUsage(ctx context.Context, tenantID uuid.UUID, delta int64, state metering.LimitState) error {
	args := m.Called(ctx, tenantID, delta, state)
	return args.Error(0)
}

func (m *MockLedgerRepository) ApplyCredit(ctx context.Context, tenantID uuid.UUID, callSeconds, smsCount int64) error {
	args := m.Called(ctx, tenantID, callSeconds, smsCount)
	return args.Error(0)
}

func (m *MockLedgerRepository) SetLimitState(ctx context.Context, tenantID uuid.UUID, state metering.LimitState) error {
	args := m.Called(ctx, tenantID, state)
	return args.Error(0)
}

// MockUsageEventRepository is a mock implementation of metering.UsageEventRepository
type MockUsageEventRepository struct {
	mock.Mock
}

func (m *MockUsageEventRepository) Append(ctx context.Context, event *metering.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockUsageEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*metering.UsageEvent, error) {
	args := m.Called(ctx, tenantID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*metering.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) SumQuantity(ctx context.Context, tenantID uuid.UUID, kind metering.UsageKind, from, to time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, kind, from, to)
	return args.Get(0).(int64), args.Error(1)
}

// MockUsageAlertRepository is a mock implementation of metering.UsageAlertRepository
type MockUsageAlertRepository struct {
	mock.Mock
}

func (m *MockUsageAlertRepository) Exists(ctx context.Context, tenantID uuid.UUID, kind metering.AlertKind, periodStart time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, kind, periodStart)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsageAlertRepository) Create(ctx context.Context, alert *metering.UsageAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

// MockAuditLogRepository is a mock implementation of metering.AuditLogRepository
type MockAuditLogRepository struct {
	mock.Mock
}

func (m *MockAuditLogRepository) Append(ctx context.Context, record *metering.AuditRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSMSSender is a mock implementation of SMSSender
type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, from, to, body string) (string, error) {
	args := m.Called(ctx, from, to, body)
	return args.String(0), args.Error(1)
}
