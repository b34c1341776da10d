package persistence

import (
	"context"
	"time"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/frontdesk/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUsageEventRepository implements metering.UsageEventRepository using GORM
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

// Append inserts an immutable usage event. Returns shared.ErrAlreadyExists
// when an event with the same kind and source was already recorded, so
// webhook retries can treat the row as written.
func (r *GormUsageEventRepository) Append(ctx context.Context, event *metering.UsageEvent) error {
	var model models.UsageEventModel
	model.FromDomain(event)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// FindByTenant returns events for a tenant within a period, newest first
func (r *GormUsageEventRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*metering.UsageEvent, error) {
	var eventModels []models.UsageEventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("recorded_at >= ?", from).
		Where("recorded_at < ?", to).
		Order("recorded_at DESC").
		Find(&eventModels).Error; err != nil {
		return nil, err
	}

	events := make([]*metering.UsageEvent, len(eventModels))
	for i, model := range eventModels {
		events[i] = model.ToDomain()
	}
	return events, nil
}

// SumQuantity totals event quantities of one kind within a period
func (r *GormUsageEventRepository) SumQuantity(ctx context.Context, tenantID uuid.UUID, kind metering.UsageKind, from, to time.Time) (int64, error) {
	var result struct {
		Total int64
	}

	err := r.db.WithContext(ctx).
		Model(&models.UsageEventModel{}).
		Select("COALESCE(SUM(quantity), 0) as total").
		Where("tenant_id = ?", tenantID).
		Where("kind = ?", kind).
		Where("recorded_at >= ?", from).
		Where("recorded_at < ?", to).
		Scan(&result).Error

	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

// Ensure GormUsageEventRepository implements the interface
var _ metering.UsageEventRepository = (*GormUsageEventRepository)(nil)
