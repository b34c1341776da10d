package handler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// fakeTenantRepository is an in-memory identity.TenantRepository for handler tests
type fakeTenantRepository struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*identity.Tenant
	err     error
}

func newFakeTenantRepository(tenants ...*identity.Tenant) *fakeTenantRepository {
	repo := &fakeTenantRepository{tenants: make(map[uuid.UUID]*identity.Tenant)}
	for _, tenant := range tenants {
		repo.tenants[tenant.ID] = tenant
	}
	return repo
}

func (r *fakeTenantRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if tenant, ok := r.tenants[id]; ok {
		return tenant, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTenantRepository) FindByAgentID(ctx context.Context, agentID string) (*identity.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tenant := range r.tenants {
		if tenant.AgentID == agentID && agentID != "" {
			return tenant, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTenantRepository) FindBySMSNumber(ctx context.Context, number string) (*identity.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tenant := range r.tenants {
		if tenant.SMSNumber == number && number != "" {
			return tenant, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeTenantRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*identity.Tenant, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeTenantRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*identity.Tenant, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeTenantRepository) FindAll(ctx context.Context, filter shared.Filter) ([]identity.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	tenants := make([]identity.Tenant, 0, len(r.tenants))
	for _, tenant := range r.tenants {
		tenants = append(tenants, *tenant)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Name < tenants[j].Name })
	return tenants, nil
}

func (r *fakeTenantRepository) Create(ctx context.Context, tenant *identity.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *fakeTenantRepository) Save(ctx context.Context, tenant *identity.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[tenant.ID] = tenant
	return nil
}

func (r *fakeTenantRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	return int64(len(r.tenants)), nil
}

// fakeLedgerRepository is an in-memory metering.UsageLedgerRepository
type fakeLedgerRepository struct {
	mu      sync.Mutex
	ledgers map[uuid.UUID]*metering.UsageLedger
	err     error
}

func newFakeLedgerRepository(ledgers ...*metering.UsageLedger) *fakeLedgerRepository {
	repo := &fakeLedgerRepository{ledgers: make(map[uuid.UUID]*metering.UsageLedger)}
	for _, ledger := range ledgers {
		repo.ledgers[ledger.TenantID] = ledger
	}
	return repo
}

func (r *fakeLedgerRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.UsageLedger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if ledger, ok := r.ledgers[tenantID]; ok {
		copied := *ledger
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeLedgerRepository) Create(ctx context.Context, ledger *metering.UsageLedger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgers[ledger.TenantID]; ok {
		return shared.ErrAlreadyExists
	}
	copied := *ledger
	r.ledgers[ledger.TenantID] = &copied
	return nil
}

func (r *fakeLedgerRepository) Save(ctx context.Context, ledger *metering.UsageLedger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *ledger
	r.ledgers[ledger.TenantID] = &copied
	return nil
}

func (r *fakeLedgerRepository) AddCallUsage(ctx context.Context, tenantID uuid.UUID, deltaSeconds int64, state metering.LimitState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[tenantID]
	if !ok {
		return shared.ErrNotFound
	}
	ledger.CallUsedSeconds += deltaSeconds
	ledger.LimitState = state
	return nil
}

func (r *fakeLedgerRepository) AddSMSUsage(ctx context.Context, tenantID uuid.UUID, delta int64, state metering.LimitState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[tenantID]
	if !ok {
		return shared.ErrNotFound
	}
	ledger.SMSUsed += delta
	ledger.LimitState = state
	return nil
}

func (r *fakeLedgerRepository) ApplyCredit(ctx context.Context, tenantID uuid.UUID, callSeconds, smsCount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[tenantID]
	if !ok {
		return shared.ErrNotFound
	}
	ledger.CallCreditSeconds += callSeconds
	ledger.SMSCredit += smsCount
	ledger.LimitState = metering.LimitStateOK
	ledger.ForcePause = false
	return nil
}

func (r *fakeLedgerRepository) SetLimitState(ctx context.Context, tenantID uuid.UUID, state metering.LimitState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ledger, ok := r.ledgers[tenantID]
	if !ok {
		return shared.ErrNotFound
	}
	ledger.LimitState = state
	return nil
}

// fakeEventRepository is an in-memory metering.UsageEventRepository
type fakeEventRepository struct {
	mu     sync.Mutex
	events []*metering.UsageEvent
}

func (r *fakeEventRepository) Append(ctx context.Context, event *metering.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*metering.UsageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*metering.UsageEvent
	for _, event := range r.events {
		if event.TenantID == tenantID && !event.RecordedAt.Before(from) && event.RecordedAt.Before(to) {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func (r *fakeEventRepository) SumQuantity(ctx context.Context, tenantID uuid.UUID, kind metering.UsageKind, from, to time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, event := range r.events {
		if event.TenantID == tenantID && event.Kind == kind {
			total += event.Quantity
		}
	}
	return total, nil
}

// fakeAlertRepository is an in-memory metering.UsageAlertRepository
type fakeAlertRepository struct {
	mu     sync.Mutex
	alerts []*metering.UsageAlert
}

func (r *fakeAlertRepository) Exists(ctx context.Context, tenantID uuid.UUID, kind metering.AlertKind, periodStart time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, alert := range r.alerts {
		if alert.TenantID == tenantID && alert.Kind == kind && alert.PeriodStart.Equal(periodStart) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeAlertRepository) Create(ctx context.Context, alert *metering.UsageAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

// fakeAuditRepository is an in-memory metering.AuditLogRepository
type fakeAuditRepository struct {
	mu      sync.Mutex
	records []*metering.AuditRecord
}

func (r *fakeAuditRepository) Append(ctx context.Context, record *metering.AuditRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// fakeSMSSender records outbound messages
type fakeSMSSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (s *fakeSMSSender) Send(ctx context.Context, from, to, body string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.sent = append(s.sent, to)
	return "msg_test_1", nil
}

var errSenderDown = errors.New("provider unavailable")
