package handler

import (
	"testing"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// meteringFixture wires real application services over in-memory fakes
type meteringFixture struct {
	tenantRepo *fakeTenantRepository
	ledgerRepo *fakeLedgerRepository
	eventRepo  *fakeEventRepository
	alertRepo  *fakeAlertRepository
	auditRepo  *fakeAuditRepository
	sender     *fakeSMSSender

	ledgers  *meteringapp.LedgerService
	gate     *meteringapp.QuotaGate
	status   *meteringapp.UsageStatusService
	override *meteringapp.AdminOverrideService
	ingest   *meteringapp.CallIngestService
	reminder *meteringapp.ReminderDispatchService
}

func newMeteringFixture(tenants ...*identity.Tenant) *meteringFixture {
	f := &meteringFixture{
		tenantRepo: newFakeTenantRepository(tenants...),
		ledgerRepo: newFakeLedgerRepository(),
		eventRepo:  &fakeEventRepository{},
		alertRepo:  &fakeAlertRepository{},
		auditRepo:  &fakeAuditRepository{},
		sender:     &fakeSMSSender{},
	}

	logger := zap.NewNop()
	catalog := metering.NewPlanCatalog()

	f.ledgers = meteringapp.NewLedgerService(f.ledgerRepo, f.tenantRepo, catalog, logger)
	f.gate = meteringapp.NewQuotaGate(f.ledgers, f.ledgerRepo, logger)
	f.status = meteringapp.NewUsageStatusService(f.ledgers, logger)
	f.override = meteringapp.NewAdminOverrideService(f.ledgers, f.ledgerRepo, f.tenantRepo, f.auditRepo, logger)
	f.ingest = meteringapp.NewCallIngestService(f.ledgers, f.ledgerRepo, f.eventRepo, f.alertRepo, f.tenantRepo, nil, nil, logger)
	f.reminder = meteringapp.NewReminderDispatchService(f.gate, f.ledgers, f.ledgerRepo, f.eventRepo, f.tenantRepo, f.sender, logger)

	return f
}

// newReceptionTenant builds a tenant with voice and SMS routing configured
func newReceptionTenant(t *testing.T, name, tier, agentID, smsNumber string) *identity.Tenant {
	t.Helper()
	tenant, err := identity.NewTenant(name)
	require.NoError(t, err)
	require.NoError(t, tenant.SetPlanTier(tier))
	if agentID != "" {
		require.NoError(t, tenant.SetAgentID(agentID))
	}
	if smsNumber != "" {
		require.NoError(t, tenant.SetSMSNumber(smsNumber))
	}
	return tenant
}
