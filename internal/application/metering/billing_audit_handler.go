package metering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
)

// billingActor is the audit-trail actor for provider-driven changes
const billingActor = "stripe"

// BillingEventAuditHandler appends an audit record for every billing-provider
// event that changed metering state, so manual topups and webhook-driven ones
// land in the same trail.
type BillingEventAuditHandler struct {
	auditRepo metering.AuditLogRepository
	logger    *zap.Logger
}

// NewBillingEventAuditHandler creates a new handler
func NewBillingEventAuditHandler(auditRepo metering.AuditLogRepository, logger *zap.Logger) *BillingEventAuditHandler {
	return &BillingEventAuditHandler{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// EventTypes returns the billing event types this handler subscribes to
func (h *BillingEventAuditHandler) EventTypes() []string {
	return []string{
		EventTypeTopupApplied,
		EventTypeSubscriptionSynced,
		EventTypeSubscriptionDeleted,
		EventTypeInvoicePaid,
		EventTypePaymentFailed,
	}
}

// Handle records the billing event in the audit log
func (h *BillingEventAuditHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	billingEvent, ok := event.(*StripeMeteringEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	record := metering.NewAuditRecord(
		billingEvent.TenantID(),
		billingActor,
		metering.AuditActionBillingEvent,
		fmt.Sprintf("%s (%s)", billingEvent.Action, billingEvent.SourceID),
	)

	if err := h.auditRepo.Append(ctx, record); err != nil {
		h.logger.Error("failed to append billing audit record",
			zap.String("tenant_id", billingEvent.TenantID().String()),
			zap.String("action", billingEvent.Action),
			zap.Error(err),
		)
		return fmt.Errorf("failed to append billing audit record: %w", err)
	}

	h.logger.Info("billing event audited",
		zap.String("tenant_id", billingEvent.TenantID().String()),
		zap.String("action", billingEvent.Action),
		zap.String("source_id", billingEvent.SourceID),
	)

	return nil
}

// Ensure BillingEventAuditHandler implements shared.EventHandler
var _ shared.EventHandler = (*BillingEventAuditHandler)(nil)
