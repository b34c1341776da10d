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

// AdminOverrideService applies operator interventions to a tenant's ledger:
// hard pause, forced resume, and manual credit grants. Every intervention is
// written to the audit log with the acting operator.
type AdminOverrideService struct {
	ledgers    *LedgerService
	ledgerRepo metering.UsageLedgerRepository
	tenantRepo identity.TenantRepository
	auditRepo  metering.AuditLogRepository
	logger     *zap.Logger
}

// NewAdminOverrideService creates a new AdminOverrideService
func NewAdminOverrideService(
	ledgers *LedgerService,
	ledgerRepo metering.UsageLedgerRepository,
	tenantRepo identity.TenantRepository,
	auditRepo metering.AuditLogRepository,
	logger *zap.Logger,
) *AdminOverrideService {
	return &AdminOverrideService{
		ledgers:    ledgers,
		ledgerRepo: ledgerRepo,
		tenantRepo: tenantRepo,
		auditRepo:  auditRepo,
		logger:     logger,
	}
}

// TenantSummary is one row of the operator's tenant listing
type TenantSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	PlanTier  string    `json:"plan_tier"`
	AgentID   string    `json:"agent_id,omitempty"`
	SMSNumber string    `json:"sms_number,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListTenants returns a page of tenant accounts for the operator console
func (s *AdminOverrideService) ListTenants(ctx context.Context, filter shared.Filter) ([]TenantSummary, int64, error) {
	tenants, err := s.tenantRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	total, err := s.tenantRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}

	summaries := make([]TenantSummary, len(tenants))
	for i, tenant := range tenants {
		summaries[i] = TenantSummary{
			ID:        tenant.ID.String(),
			Name:      tenant.Name,
			Status:    string(tenant.Status),
			PlanTier:  tenant.PlanTier,
			AgentID:   tenant.AgentID,
			SMSNumber: tenant.SMSNumber,
			CreatedAt: tenant.CreatedAt,
		}
	}
	return summaries, total, nil
}

// ForcePause hard-stops a tenant regardless of its counters
func (s *AdminOverrideService) ForcePause(ctx context.Context, tenantID uuid.UUID, actor, reason string) error {
	ledger, err := s.ledgers.EnsureLedgerByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	ledger.ForcePauseByAdmin()
	if err := s.ledgerRepo.Save(ctx, ledger); err != nil {
		return fmt.Errorf("failed to save forced pause: %w", err)
	}

	s.audit(ctx, tenantID, actor, metering.AuditActionForcePause, reason)

	s.logger.Info("Tenant force-paused",
		zap.String("tenant_id", tenantID.String()),
		zap.String("actor", actor))

	return nil
}

// ForceResume unblocks a tenant immediately, even with remaining capacity at
// zero; the override holds until the next counter mutation
func (s *AdminOverrideService) ForceResume(ctx context.Context, tenantID uuid.UUID, actor, reason string) error {
	ledger, err := s.ledgers.EnsureLedgerByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	ledger.ForceResumeByAdmin()
	if err := s.ledgerRepo.Save(ctx, ledger); err != nil {
		return fmt.Errorf("failed to save forced resume: %w", err)
	}

	s.audit(ctx, tenantID, actor, metering.AuditActionForceResume, reason)

	s.logger.Info("Tenant force-resumed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("actor", actor))

	return nil
}

// GrantCredit applies a manual topup outside the payment flow, e.g. a
// goodwill credit after a service incident
func (s *AdminOverrideService) GrantCredit(ctx context.Context, tenantID uuid.UUID, callSeconds, smsCount int64, actor, reason string) error {
	ledger, err := s.ledgers.EnsureLedgerByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	// Validates the amounts and computes the unblock
	if err := ledger.ApplyTopup(callSeconds, smsCount); err != nil {
		return err
	}

	if err := s.ledgerRepo.ApplyCredit(ctx, tenantID, callSeconds, smsCount); err != nil {
		return fmt.Errorf("failed to apply manual credit: %w", err)
	}

	detail := fmt.Sprintf("call_seconds=%d sms_count=%d reason=%s", callSeconds, smsCount, reason)
	s.audit(ctx, tenantID, actor, metering.AuditActionManualTopup, detail)

	s.logger.Info("Manual credit granted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("actor", actor),
		zap.Int64("call_seconds", callSeconds),
		zap.Int64("sms_count", smsCount))

	return nil
}

// audit records the intervention; audit failures are logged, not surfaced,
// because the override itself already took effect
func (s *AdminOverrideService) audit(ctx context.Context, tenantID uuid.UUID, actor string, action metering.AuditAction, detail string) {
	record := metering.NewAuditRecord(tenantID, actor, action, detail)
	if err := s.auditRepo.Append(ctx, record); err != nil {
		s.logger.Error("Failed to append audit record",
			zap.String("tenant_id", tenantID.String()),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}
