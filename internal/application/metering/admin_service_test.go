package metering

import (
	"context"
	"testing"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type adminFixture struct {
	service    *AdminOverrideService
	ledgerRepo *MockLedgerRepository
	tenantRepo *MockTenantRepository
	auditRepo  *MockAuditLogRepository
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	f := &adminFixture{
		ledgerRepo: new(MockLedgerRepository),
		tenantRepo: new(MockTenantRepository),
		auditRepo:  new(MockAuditLogRepository),
	}
	logger, _ := zap.NewDevelopment()
	ledgers := NewLedgerService(f.ledgerRepo, f.tenantRepo, metering.NewPlanCatalog(), logger)
	f.service = NewAdminOverrideService(ledgers, f.ledgerRepo, f.tenantRepo, f.auditRepo, logger)
	return f
}

func TestAdminOverrideService_ForcePause(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	catalog := metering.NewPlanCatalog()

	tenant := newTestTenant(t, "core")
	ledger, err := metering.NewUsageLedger(tenant.ID, metering.PlanTierCore, catalog.Entitlement("core"), nil)
	require.NoError(t, err)

	f.tenantRepo.On("FindByID", ctx, tenant.ID).Return(tenant, nil)
	f.ledgerRepo.On("FindByTenant", ctx, tenant.ID).Return(ledger, nil)
	f.ledgerRepo.On("Save", ctx, ledger).Return(nil)
	f.auditRepo.On("Append", ctx, mock.MatchedBy(func(r *metering.AuditRecord) bool {
		return r.Action == metering.AuditActionForcePause && r.Actor == "ops@frontdesk"
	})).Return(nil)

	err = f.service.ForcePause(ctx, tenant.ID, "ops@frontdesk", "abuse report")

	require.NoError(t, err)
	assert.True(t, ledger.ForcePause)
	assert.False(t, ledger.ForceResume)
	f.auditRepo.AssertExpectations(t)
}

func TestAdminOverrideService_ForceResume(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	catalog := metering.NewPlanCatalog()

	tenant := newTestTenant(t, "core")
	ledger, err := metering.NewUsageLedger(tenant.ID, metering.PlanTierCore, catalog.Entitlement("core"), nil)
	require.NoError(t, err)
	ledger.RecordCallUsage(20000) // deep past cap+grace
	require.Equal(t, metering.LimitStatePaused, ledger.LimitState)

	f.tenantRepo.On("FindByID", ctx, tenant.ID).Return(tenant, nil)
	f.ledgerRepo.On("FindByTenant", ctx, tenant.ID).Return(ledger, nil)
	f.ledgerRepo.On("Save", ctx, ledger).Return(nil)
	f.auditRepo.On("Append", ctx, mock.MatchedBy(func(r *metering.AuditRecord) bool {
		return r.Action == metering.AuditActionForceResume
	})).Return(nil)

	err = f.service.ForceResume(ctx, tenant.ID, "ops@frontdesk", "customer escalation")

	require.NoError(t, err)
	assert.Equal(t, metering.LimitStateOK, ledger.LimitState)
	assert.True(t, ledger.ForceResume)
	f.auditRepo.AssertExpectations(t)
}

func TestAdminOverrideService_ListTenants(t *testing.T) {
	ctx := context.Background()

	t.Run("returns summaries with the total count", func(t *testing.T) {
		f := newAdminFixture(t)
		first := newTestTenant(t, "starter")
		second := newTestTenant(t, "scale")
		filter := shared.DefaultFilter()

		f.tenantRepo.On("FindAll", ctx, filter).Return([]identity.Tenant{*first, *second}, nil)
		f.tenantRepo.On("Count", ctx, filter).Return(int64(7), nil)

		summaries, total, err := f.service.ListTenants(ctx, filter)

		require.NoError(t, err)
		assert.Equal(t, int64(7), total)
		require.Len(t, summaries, 2)
		assert.Equal(t, first.ID.String(), summaries[0].ID)
		assert.Equal(t, "starter", summaries[0].PlanTier)
		assert.Equal(t, "scale", summaries[1].PlanTier)
	})

	t.Run("propagates repository failures", func(t *testing.T) {
		f := newAdminFixture(t)
		filter := shared.DefaultFilter()

		f.tenantRepo.On("FindAll", ctx, filter).Return(nil, assertError)

		_, _, err := f.service.ListTenants(ctx, filter)

		require.Error(t, err)
		f.tenantRepo.AssertNotCalled(t, "Count", mock.Anything, mock.Anything)
	})
}

func TestAdminOverrideService_GrantCredit(t *testing.T) {
	ctx := context.Background()
	catalog := metering.NewPlanCatalog()

	t.Run("applies and audits the credit", func(t *testing.T) {
		f := newAdminFixture(t)
		tenant := newTestTenant(t, "starter")
		ledger, err := metering.NewUsageLedger(tenant.ID, metering.PlanTierStarter, catalog.Entitlement("starter"), nil)
		require.NoError(t, err)

		f.tenantRepo.On("FindByID", ctx, tenant.ID).Return(tenant, nil)
		f.ledgerRepo.On("FindByTenant", ctx, tenant.ID).Return(ledger, nil)
		f.ledgerRepo.On("ApplyCredit", ctx, tenant.ID, int64(3600), int64(50)).Return(nil)
		f.auditRepo.On("Append", ctx, mock.MatchedBy(func(r *metering.AuditRecord) bool {
			return r.Action == metering.AuditActionManualTopup
		})).Return(nil)

		err = f.service.GrantCredit(ctx, tenant.ID, 3600, 50, "ops@frontdesk", "outage goodwill")

		require.NoError(t, err)
		f.ledgerRepo.AssertExpectations(t)
		f.auditRepo.AssertExpectations(t)
	})

	t.Run("rejects negative amounts before touching the store", func(t *testing.T) {
		f := newAdminFixture(t)
		tenant := newTestTenant(t, "starter")
		ledger, err := metering.NewUsageLedger(tenant.ID, metering.PlanTierStarter, catalog.Entitlement("starter"), nil)
		require.NoError(t, err)

		f.tenantRepo.On("FindByID", ctx, tenant.ID).Return(tenant, nil)
		f.ledgerRepo.On("FindByTenant", ctx, tenant.ID).Return(ledger, nil)

		err = f.service.GrantCredit(ctx, tenant.ID, -10, 0, "ops@frontdesk", "typo")

		assert.Error(t, err)
		f.ledgerRepo.AssertNotCalled(t, "ApplyCredit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.auditRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}
