package persistence

import (
	"context"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements metering.AuditLogRepository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append inserts an administrative audit entry
func (r *GormAuditLogRepository) Append(ctx context.Context, record *metering.AuditRecord) error {
	var model models.AuditRecordModel
	model.FromDomain(record)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Ensure GormAuditLogRepository implements the interface
var _ metering.AuditLogRepository = (*GormAuditLogRepository)(nil)
