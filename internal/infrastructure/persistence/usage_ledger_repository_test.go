package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// UsageLedgerModelSQLite is a SQLite-compatible version of UsageLedgerModel for testing
type UsageLedgerModelSQLite struct {
	ID                uuid.UUID `gorm:"primaryKey"`
	Version           int       `gorm:"not null;default:1"`
	TenantID          uuid.UUID `gorm:"not null;uniqueIndex"`
	PlanTier          string    `gorm:"not null"`
	CallCapSeconds    int64     `gorm:"not null;default:0"`
	SMSCap            int64     `gorm:"column:sms_cap;not null;default:0"`
	CallUsedSeconds   int64     `gorm:"not null;default:0"`
	SMSUsed           int64     `gorm:"column:sms_used;not null;default:0"`
	CallCreditSeconds int64     `gorm:"not null;default:0"`
	SMSCredit         int64     `gorm:"column:sms_credit;not null;default:0"`
	RolloverSeconds   int64     `gorm:"not null;default:0"`
	GraceSeconds      int64     `gorm:"not null;default:0"`
	LimitState        string    `gorm:"not null;default:'ok'"`
	ForcePause        bool      `gorm:"not null;default:false"`
	ForceResume       bool      `gorm:"not null;default:false"`
	PeriodStart       time.Time `gorm:"not null"`
	PeriodEnd         time.Time `gorm:"not null"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (UsageLedgerModelSQLite) TableName() string {
	return "usage_ledgers"
}

func setupUsageLedgerTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&UsageLedgerModelSQLite{})
	require.NoError(t, err)

	return db
}

func newTestLedger(t *testing.T, tier metering.PlanTier) *metering.UsageLedger {
	t.Helper()
	catalog := metering.NewPlanCatalog()
	ent := catalog.Entitlement(tier.String())
	ledger, err := metering.NewUsageLedger(uuid.New(), tier, ent, nil)
	require.NoError(t, err)
	return ledger
}

func TestGormUsageLedgerRepository_CreateAndFind(t *testing.T) {
	db := setupUsageLedgerTestDB(t)
	repo := NewGormUsageLedgerRepository(db)
	ctx := context.Background()

	t.Run("creates and reads back a ledger", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierCore)

		err := repo.Create(ctx, ledger)
		require.NoError(t, err)

		found, err := repo.FindByTenant(ctx, ledger.TenantID)
		require.NoError(t, err)
		assert.Equal(t, ledger.ID, found.ID)
		assert.Equal(t, ledger.TenantID, found.TenantID)
		assert.Equal(t, metering.PlanTierCore, found.PlanTier)
		assert.Equal(t, int64(9000), found.CallCapSeconds)
		assert.Equal(t, int64(250), found.SMSCap)
		assert.Equal(t, int64(600), found.GraceSeconds)
		assert.Equal(t, metering.LimitStateOK, found.LimitState)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("returns not found for unknown tenant", func(t *testing.T) {
		_, err := repo.FindByTenant(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("second create for the same tenant reports already exists", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierStarter)
		require.NoError(t, repo.Create(ctx, ledger))

		dup := newTestLedger(t, metering.PlanTierStarter)
		dup.TenantID = ledger.TenantID

		err := repo.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestGormUsageLedgerRepository_Save(t *testing.T) {
	db := setupUsageLedgerTestDB(t)
	repo := NewGormUsageLedgerRepository(db)
	ctx := context.Background()

	t.Run("persists a version-incremented mutation", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierCore)
		require.NoError(t, repo.Create(ctx, ledger))

		ledger.ForcePauseByAdmin()
		require.Equal(t, 2, ledger.Version)

		err := repo.Save(ctx, ledger)
		require.NoError(t, err)

		found, err := repo.FindByTenant(ctx, ledger.TenantID)
		require.NoError(t, err)
		assert.True(t, found.ForcePause)
		assert.Equal(t, 2, found.Version)
	})

	t.Run("rejects a stale save", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierCore)
		require.NoError(t, repo.Create(ctx, ledger))

		ledger.ForcePauseByAdmin()
		require.NoError(t, repo.Save(ctx, ledger))

		// Same in-memory version again: the row has already moved on.
		err := repo.Save(ctx, ledger)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestGormUsageLedgerRepository_AddCallUsage(t *testing.T) {
	db := setupUsageLedgerTestDB(t)
	repo := NewGormUsageLedgerRepository(db)
	ctx := context.Background()

	t.Run("accumulates deltas and writes the state", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierCore)
		require.NoError(t, repo.Create(ctx, ledger))

		require.NoError(t, repo.AddCallUsage(ctx, ledger.TenantID, 185, metering.LimitStateOK))
		require.NoError(t, repo.AddCallUsage(ctx, ledger.TenantID, 300, metering.LimitStatePending))

		found, err := repo.FindByTenant(ctx, ledger.TenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(485), found.CallUsedSeconds)
		assert.Equal(t, metering.LimitStatePending, found.LimitState)
		assert.Equal(t, 3, found.Version)
	})

	t.Run("unknown tenant reports not found", func(t *testing.T) {
		err := repo.AddCallUsage(ctx, uuid.New(), 60, metering.LimitStateOK)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormUsageLedgerRepository_AddSMSUsage(t *testing.T) {
	db := setupUsageLedgerTestDB(t)
	repo := NewGormUsageLedgerRepository(db)
	ctx := context.Background()

	ledger := newTestLedger(t, metering.PlanTierStarter)
	require.NoError(t, repo.Create(ctx, ledger))

	require.NoError(t, repo.AddSMSUsage(ctx, ledger.TenantID, 1, metering.LimitStateOK))
	require.NoError(t, repo.AddSMSUsage(ctx, ledger.TenantID, 1, metering.LimitStatePaused))

	found, err := repo.FindByTenant(ctx, ledger.TenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.SMSUsed)
	assert.Equal(t, metering.LimitStatePaused, found.LimitState)
}

func TestGormUsageLedgerRepository_ApplyCredit(t *testing.T) {
	db := setupUsageLedgerTestDB(t)
	repo := NewGormUsageLedgerRepository(db)
	ctx := context.Background()

	t.Run("adds credit and unblocks a paused ledger", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierStarter)
		require.NoError(t, repo.Create(ctx, ledger))

		require.NoError(t, repo.AddCallUsage(ctx, ledger.TenantID, 3900, metering.LimitStatePaused))

		err := repo.ApplyCredit(ctx, ledger.TenantID, 18000, 100)
		require.NoError(t, err)

		found, err := repo.FindByTenant(ctx, ledger.TenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(18000), found.CallCreditSeconds)
		assert.Equal(t, int64(100), found.SMSCredit)
		assert.Equal(t, metering.LimitStateOK, found.LimitState)
		assert.False(t, found.ForcePause)
	})

	t.Run("credits are additive across topups", func(t *testing.T) {
		ledger := newTestLedger(t, metering.PlanTierScale)
		require.NoError(t, repo.Create(ctx, ledger))

		require.NoError(t, repo.ApplyCredit(ctx, ledger.TenantID, 600, 10))
		require.NoError(t, repo.ApplyCredit(ctx, ledger.TenantID, 1200, 0))

		found, err := repo.FindByTenant(ctx, ledger.TenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1800), found.CallCreditSeconds)
		assert.Equal(t, int64(10), found.SMSCredit)
	})

	t.Run("unknown tenant reports not found", func(t *testing.T) {
		err := repo.ApplyCredit(ctx, uuid.New(), 600, 0)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormUsageLedgerRepository_SetLimitState(t *testing.T) {
	db := setupUsageLedgerTestDB(t)
	repo := NewGormUsageLedgerRepository(db)
	ctx := context.Background()

	ledger := newTestLedger(t, metering.PlanTierCore)
	require.NoError(t, repo.Create(ctx, ledger))

	require.NoError(t, repo.SetLimitState(ctx, ledger.TenantID, metering.LimitStatePaused))

	found, err := repo.FindByTenant(ctx, ledger.TenantID)
	require.NoError(t, err)
	assert.Equal(t, metering.LimitStatePaused, found.LimitState)
	assert.Equal(t, int64(0), found.CallUsedSeconds)

	err = repo.SetLimitState(ctx, uuid.New(), metering.LimitStatePaused)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
