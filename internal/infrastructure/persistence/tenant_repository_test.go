package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TenantModelSQLite is a SQLite-compatible version of TenantModel for testing
type TenantModelSQLite struct {
	ID                   uuid.UUID `gorm:"primaryKey"`
	Version              int       `gorm:"not null;default:1"`
	Name                 string    `gorm:"not null"`
	Status               string    `gorm:"not null"`
	PlanTier             string    `gorm:"not null"`
	AgentID              string    `gorm:"uniqueIndex"`
	SMSNumber            string    `gorm:"column:sms_number;uniqueIndex"`
	StripeCustomerID     string
	StripeSubscriptionID string
	CurrentPeriodEnd     *time.Time
	PaymentFailed        bool `gorm:"not null;default:false"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (TenantModelSQLite) TableName() string {
	return "tenants"
}

func setupTenantTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&TenantModelSQLite{})
	require.NoError(t, err)

	return db
}

func createReceptionTenant(t *testing.T, repo *GormTenantRepository, name, agentID, smsNumber string) *identity.Tenant {
	t.Helper()
	tenant, err := identity.NewTenant(name)
	require.NoError(t, err)
	if agentID != "" {
		require.NoError(t, tenant.SetAgentID(agentID))
	}
	if smsNumber != "" {
		require.NoError(t, tenant.SetSMSNumber(smsNumber))
	}
	require.NoError(t, repo.Create(context.Background(), tenant))
	return tenant
}

func TestGormTenantRepository_Lookups(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	tenant := createReceptionTenant(t, repo, "Smile Dental", "agent_42", "+15550100")

	t.Run("find by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, "Smile Dental", found.Name)
		assert.Equal(t, "starter", found.PlanTier)
		assert.Equal(t, identity.TenantStatusActive, found.Status)
	})

	t.Run("find by agent id", func(t *testing.T) {
		found, err := repo.FindByAgentID(ctx, "agent_42")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, found.ID)

		_, err = repo.FindByAgentID(ctx, "agent_unknown")
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByAgentID(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find by sms number", func(t *testing.T) {
		found, err := repo.FindBySMSNumber(ctx, "+15550100")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, found.ID)

		_, err = repo.FindBySMSNumber(ctx, "+15559999")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find by stripe ids", func(t *testing.T) {
		tenant.LinkStripeCustomer("cus_abc")
		tenant.LinkStripeSubscription("sub_abc")
		require.NoError(t, repo.Save(ctx, tenant))

		byCustomer, err := repo.FindByStripeCustomerID(ctx, "cus_abc")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, byCustomer.ID)

		bySub, err := repo.FindByStripeSubscriptionID(ctx, "sub_abc")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, bySub.ID)

		_, err = repo.FindByStripeCustomerID(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormTenantRepository_Create(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	createReceptionTenant(t, repo, "Smile Dental", "agent_42", "+15550100")

	t.Run("duplicate agent id reports already exists", func(t *testing.T) {
		dup, err := identity.NewTenant("Copycat Clinic")
		require.NoError(t, err)
		require.NoError(t, dup.SetAgentID("agent_42"))

		err = repo.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestGormTenantRepository_Save(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	tenant := createReceptionTenant(t, repo, "Smile Dental", "agent_42", "+15550100")

	periodEnd := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
	require.NoError(t, tenant.SetPlanTier("core_monthly"))
	tenant.SetBillingPeriodEnd(periodEnd)
	tenant.MarkPaymentFailed()
	require.NoError(t, repo.Save(ctx, tenant))

	found, err := repo.FindByID(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "core_monthly", found.PlanTier)
	assert.True(t, found.PaymentFailed)
	require.NotNil(t, found.CurrentPeriodEnd)
	assert.WithinDuration(t, periodEnd, *found.CurrentPeriodEnd, time.Second)
}

func TestGormTenantRepository_FindAllAndCount(t *testing.T) {
	db := setupTenantTestDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	createReceptionTenant(t, repo, "Smile Dental", "agent_1", "+15550101")
	createReceptionTenant(t, repo, "Bright Ortho", "agent_2", "+15550102")
	createReceptionTenant(t, repo, "Lakeside Vet", "agent_3", "+15550103")

	t.Run("paginates", func(t *testing.T) {
		page, err := repo.FindAll(ctx, shared.Filter{Page: 1, PageSize: 2, OrderBy: "name", OrderDir: "asc"})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "Bright Ortho", page[0].Name)
		assert.Equal(t, "Lakeside Vet", page[1].Name)
	})

	t.Run("counts all tenants", func(t *testing.T) {
		count, err := repo.Count(ctx, shared.Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})
}
