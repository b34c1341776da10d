package metering

import (
	"context"
	"fmt"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SMSSender is the outbound messaging port implemented by the telephony
// provider adapter
type SMSSender interface {
	// Send delivers one message from the tenant's number; returns the
	// provider's message ID
	Send(ctx context.Context, from, to, body string) (string, error)
}

// ReminderRequest is one appointment-reminder send
type ReminderRequest struct {
	TenantID uuid.UUID
	To       string // Recipient in E.164 form
	Body     string
}

// ReminderResult describes the outcome of a reminder dispatch
type ReminderResult struct {
	Sent         bool                      `json:"sent"`
	MessageID    string                    `json:"message_id,omitempty"`
	DeniedReason metering.GateDenialReason `json:"denied_reason,omitempty"`
	RemainingSMS int64                     `json:"remaining_sms"`
}

// ReminderDispatchService sends appointment reminders through the quota gate:
// check first, send, then meter. A denied send consumes nothing.
type ReminderDispatchService struct {
	gate       *QuotaGate
	ledgers    *LedgerService
	ledgerRepo metering.UsageLedgerRepository
	eventRepo  metering.UsageEventRepository
	tenantRepo identity.TenantRepository
	sender     SMSSender
	logger     *zap.Logger
}

// NewReminderDispatchService creates a new ReminderDispatchService
func NewReminderDispatchService(
	gate *QuotaGate,
	ledgers *LedgerService,
	ledgerRepo metering.UsageLedgerRepository,
	eventRepo metering.UsageEventRepository,
	tenantRepo identity.TenantRepository,
	sender SMSSender,
	logger *zap.Logger,
) *ReminderDispatchService {
	return &ReminderDispatchService{
		gate:       gate,
		ledgers:    ledgers,
		ledgerRepo: ledgerRepo,
		eventRepo:  eventRepo,
		tenantRepo: tenantRepo,
		sender:     sender,
		logger:     logger,
	}
}

// Dispatch sends one reminder if the tenant's quota allows it
func (s *ReminderDispatchService) Dispatch(ctx context.Context, req *ReminderRequest) (*ReminderResult, error) {
	if req.To == "" || req.Body == "" {
		return nil, shared.NewDomainError("INVALID_REMINDER", "Recipient and body are required")
	}

	tenant, err := s.tenantRepo.FindByID(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant.SMSNumber == "" {
		return nil, shared.NewDomainError("NO_SMS_NUMBER", "Tenant has no outbound SMS number configured")
	}

	gateResult, err := s.gate.CheckSMS(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if !gateResult.Allowed {
		return &ReminderResult{
			Sent:         false,
			DeniedReason: gateResult.Reason,
			RemainingSMS: gateResult.RemainingSMS,
		}, nil
	}

	messageID, err := s.sender.Send(ctx, tenant.SMSNumber, req.To, req.Body)
	if err != nil {
		// Nothing went out, nothing is metered
		return nil, fmt.Errorf("failed to send reminder: %w", err)
	}

	s.recordSend(ctx, tenant, messageID)

	return &ReminderResult{
		Sent:         true,
		MessageID:    messageID,
		RemainingSMS: gateResult.RemainingSMS - 1,
	}, nil
}

// recordSend meters one delivered message. Metering failures after a
// successful send are logged, not surfaced: the message is already gone and
// the next gate check re-reads the store.
func (s *ReminderDispatchService) recordSend(ctx context.Context, tenant *identity.Tenant, messageID string) {
	ledger, err := s.ledgers.EnsureLedger(ctx, tenant)
	if err != nil {
		s.logger.Error("Failed to load ledger after send",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Error(err))
		return
	}

	if !ledger.RecordSMSUsage(1) {
		return
	}

	if err := s.ledgerRepo.AddSMSUsage(ctx, tenant.ID, 1, ledger.LimitState); err != nil {
		s.logger.Error("Failed to record SMS usage",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("message_id", messageID),
			zap.Error(err))
		return
	}

	event, err := metering.NewUsageEvent(tenant.ID, metering.UsageKindSMS, 1, messageID, ledger.PeriodStart, ledger.PeriodEnd)
	if err != nil {
		s.logger.Warn("Failed to build usage event", zap.Error(err))
		return
	}
	if err := s.eventRepo.Append(ctx, event); err != nil {
		s.logger.Warn("Failed to append usage event",
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}
