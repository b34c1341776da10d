package persistence

import (
	"context"
	"errors"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/frontdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUsageLedgerRepository implements metering.UsageLedgerRepository using GORM.
//
// Counter increments run as single-statement SQL deltas so concurrent call
// and SMS producers never lose an update. Full-row saves carry the aggregate
// version so the slower path (rollover, admin override) detects interleaving.
type GormUsageLedgerRepository struct {
	db *gorm.DB
}

// NewGormUsageLedgerRepository creates a new GormUsageLedgerRepository
func NewGormUsageLedgerRepository(db *gorm.DB) *GormUsageLedgerRepository {
	return &GormUsageLedgerRepository{db: db}
}

// FindByTenant returns the tenant's ledger or shared.ErrNotFound
func (r *GormUsageLedgerRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*metering.UsageLedger, error) {
	var model models.UsageLedgerModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a freshly ensured ledger. The unique tenant_id index turns
// a create race into shared.ErrAlreadyExists so the loser can refetch.
func (r *GormUsageLedgerRepository) Create(ctx context.Context, ledger *metering.UsageLedger) error {
	var model models.UsageLedgerModel
	model.FromDomain(ledger)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save rewrites the full row guarded by the aggregate version
func (r *GormUsageLedgerRepository) Save(ctx context.Context, ledger *metering.UsageLedger) error {
	var model models.UsageLedgerModel
	model.FromDomain(ledger)

	result := r.db.WithContext(ctx).
		Model(&models.UsageLedgerModel{}).
		Where("id = ? AND version = ?", ledger.ID, ledger.Version-1).
		Select("*").
		Omit("id", "created_at").
		Updates(&model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// AddCallUsage atomically increments call_used_seconds and writes the
// escalated limit state computed by the aggregate
func (r *GormUsageLedgerRepository) AddCallUsage(ctx context.Context, tenantID uuid.UUID, deltaSeconds int64, state metering.LimitState) error {
	result := r.db.WithContext(ctx).
		Model(&models.UsageLedgerModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"call_used_seconds": gorm.Expr("call_used_seconds + ?", deltaSeconds),
			"limit_state":       state,
			"version":           gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// AddSMSUsage atomically increments sms_used and writes the limit state
func (r *GormUsageLedgerRepository) AddSMSUsage(ctx context.Context, tenantID uuid.UUID, delta int64, state metering.LimitState) error {
	result := r.db.WithContext(ctx).
		Model(&models.UsageLedgerModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"sms_used":    gorm.Expr("sms_used + ?", delta),
			"limit_state": state,
			"version":     gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ApplyCredit atomically adds topup credit and unblocks the ledger
func (r *GormUsageLedgerRepository) ApplyCredit(ctx context.Context, tenantID uuid.UUID, callSeconds, smsCount int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.UsageLedgerModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"call_credit_seconds": gorm.Expr("call_credit_seconds + ?", callSeconds),
			"sms_credit":          gorm.Expr("sms_credit + ?", smsCount),
			"limit_state":         metering.LimitStateOK,
			"force_pause":         false,
			"version":             gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetLimitState writes only the limit state
func (r *GormUsageLedgerRepository) SetLimitState(ctx context.Context, tenantID uuid.UUID, state metering.LimitState) error {
	result := r.db.WithContext(ctx).
		Model(&models.UsageLedgerModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]interface{}{
			"limit_state": state,
			"version":     gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormUsageLedgerRepository implements the interface
var _ metering.UsageLedgerRepository = (*GormUsageLedgerRepository)(nil)
