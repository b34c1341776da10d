package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LedgerService owns the lifecycle of the per-tenant usage ledger: lazy
// creation on first touch and reconciliation into a new billing period once
// the current one has elapsed. Every usage-affecting path goes through
// EnsureLedger so reconciliation needs no scheduler.
type LedgerService struct {
	ledgerRepo metering.UsageLedgerRepository
	tenantRepo identity.TenantRepository
	catalog    *metering.PlanCatalog
	logger     *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	ledgerRepo metering.UsageLedgerRepository,
	tenantRepo identity.TenantRepository,
	catalog *metering.PlanCatalog,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		tenantRepo: tenantRepo,
		catalog:    catalog,
		logger:     logger,
		now:        time.Now,
	}
}

// EnsureLedger returns the tenant's current-period ledger, creating it on
// first touch and rolling it into a new period when the old one has elapsed.
func (s *LedgerService) EnsureLedger(ctx context.Context, tenant *identity.Tenant) (*metering.UsageLedger, error) {
	ledger, err := s.ledgerRepo.FindByTenant(ctx, tenant.ID)
	if err == shared.ErrNotFound {
		return s.createLedger(ctx, tenant)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	return s.reconcileIfNeeded(ctx, tenant, ledger)
}

// EnsureLedgerByTenantID resolves the tenant first, then ensures its ledger
func (s *LedgerService) EnsureLedgerByTenantID(ctx context.Context, tenantID uuid.UUID) (*metering.UsageLedger, error) {
	tenant, err := s.tenantRepo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.EnsureLedger(ctx, tenant)
}

func (s *LedgerService) createLedger(ctx context.Context, tenant *identity.Tenant) (*metering.UsageLedger, error) {
	tier := s.catalog.ResolveTier(tenant.PlanTier)
	ent := s.catalog.Entitlement(tenant.PlanTier)

	ledger, err := metering.NewUsageLedger(tenant.ID, tier, ent, tenant.CurrentPeriodEnd)
	if err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.Create(ctx, ledger); err != nil {
		if err == shared.ErrAlreadyExists {
			// A concurrent request created it first; use theirs
			return s.ledgerRepo.FindByTenant(ctx, tenant.ID)
		}
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}

	s.logger.Info("Created usage ledger",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan_tier", tier.String()))

	return ledger, nil
}

func (s *LedgerService) reconcileIfNeeded(ctx context.Context, tenant *identity.Tenant, ledger *metering.UsageLedger) (*metering.UsageLedger, error) {
	now := s.now()
	if !ledger.NeedsReconcile(now) {
		return ledger, nil
	}

	tier := s.catalog.ResolveTier(tenant.PlanTier)
	ent := s.catalog.Entitlement(tenant.PlanTier)

	if !ledger.Reconcile(tier, ent, tenant.CurrentPeriodEnd, now) {
		return ledger, nil
	}

	if err := s.ledgerRepo.Save(ctx, ledger); err != nil {
		if err == shared.ErrConcurrencyConflict {
			// Another caller reconciled the same expired period; their row is
			// the authoritative one
			s.logger.Debug("Lost reconcile race, reloading ledger",
				zap.String("tenant_id", tenant.ID.String()))
			return s.ledgerRepo.FindByTenant(ctx, tenant.ID)
		}
		return nil, fmt.Errorf("failed to save reconciled ledger: %w", err)
	}

	s.logger.Info("Reconciled usage ledger into new period",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan_tier", tier.String()),
		zap.Int64("rollover_seconds", ledger.RolloverSeconds),
		zap.Time("period_end", ledger.PeriodEnd))

	return ledger, nil
}
