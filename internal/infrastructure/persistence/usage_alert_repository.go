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

// GormUsageAlertRepository implements metering.UsageAlertRepository using GORM
type GormUsageAlertRepository struct {
	db *gorm.DB
}

// NewGormUsageAlertRepository creates a new GormUsageAlertRepository
func NewGormUsageAlertRepository(db *gorm.DB) *GormUsageAlertRepository {
	return &GormUsageAlertRepository{db: db}
}

// Exists reports whether an alert of this kind was already raised for the period
func (r *GormUsageAlertRepository) Exists(ctx context.Context, tenantID uuid.UUID, kind metering.AlertKind, periodStart time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UsageAlertModel{}).
		Where("tenant_id = ?", tenantID).
		Where("kind = ?", kind).
		Where("period_start = ?", periodStart).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts an alert. The (tenant, kind, period_start) unique index
// closes the check-then-insert race between concurrent producers.
func (r *GormUsageAlertRepository) Create(ctx context.Context, alert *metering.UsageAlert) error {
	var model models.UsageAlertModel
	model.FromDomain(alert)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Ensure GormUsageAlertRepository implements the interface
var _ metering.UsageAlertRepository = (*GormUsageAlertRepository)(nil)
