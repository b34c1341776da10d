package metering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CallEndedPayload is the normalized form of the telephony provider's
// call-ended webhook. Provider payloads are loose: duration may arrive as
// seconds, milliseconds, or a legacy call_length field, and tenant routing may
// come as an agent ID or a phone number.
type CallEndedPayload struct {
	CallID          string  `json:"call_id"`
	AgentID         string  `json:"agent_id"`
	PhoneNumber     string  `json:"phone_number"`
	DurationSeconds *int64  `json:"duration_seconds"`
	DurationMS      *int64  `json:"duration_ms"`
	CallLength      *int64  `json:"call_length"`
	Cost            float64 `json:"cost"`
	EndedAt         *int64  `json:"ended_at"` // Unix seconds
}

// EffectiveDurationSeconds resolves the duration with fixed precedence:
// duration_seconds, then duration_ms, then call_length. Absent or negative
// fields are skipped; zero from duration_seconds is authoritative.
func (p *CallEndedPayload) EffectiveDurationSeconds() int64 {
	if p.DurationSeconds != nil && *p.DurationSeconds >= 0 {
		return *p.DurationSeconds
	}
	if p.DurationMS != nil && *p.DurationMS >= 0 {
		// Ceiling: a 500ms call bills as one second
		return (*p.DurationMS + 999) / 1000
	}
	if p.CallLength != nil && *p.CallLength >= 0 {
		return *p.CallLength
	}
	return 0
}

// CallIngestResult describes the outcome of ingesting one call-ended event
type CallIngestResult struct {
	TenantID        string              `json:"tenant_id"`
	CallID          string              `json:"call_id"`
	DurationApplied int64               `json:"duration_applied"`
	Duplicate       bool                `json:"duplicate"`
	LimitState      metering.LimitState `json:"limit_state"`
	AlertRaised     bool                `json:"alert_raised"`
}

// AlertNotifier delivers near-limit notifications to the tenant's operator
type AlertNotifier interface {
	NotifyNearLimit(ctx context.Context, tenant *identity.Tenant, usedSeconds, totalSeconds int64) error
}

// CallIngestService applies finished-call durations to the usage ledger.
// Ingestion is metering only: it never rejects a call, because the usage
// already happened. Enforcement is the pause state it escalates into, which
// the provisioning layer reads to disable the agent.
type CallIngestService struct {
	ledgers     *LedgerService
	ledgerRepo  metering.UsageLedgerRepository
	eventRepo   metering.UsageEventRepository
	alertRepo   metering.UsageAlertRepository
	tenantRepo  identity.TenantRepository
	idempotency shared.IdempotencyStore
	notifier    AlertNotifier
	logger      *zap.Logger
}

// NewCallIngestService creates a new CallIngestService
func NewCallIngestService(
	ledgers *LedgerService,
	ledgerRepo metering.UsageLedgerRepository,
	eventRepo metering.UsageEventRepository,
	alertRepo metering.UsageAlertRepository,
	tenantRepo identity.TenantRepository,
	idempotency shared.IdempotencyStore,
	notifier AlertNotifier,
	logger *zap.Logger,
) *CallIngestService {
	return &CallIngestService{
		ledgers:     ledgers,
		ledgerRepo:  ledgerRepo,
		eventRepo:   eventRepo,
		alertRepo:   alertRepo,
		tenantRepo:  tenantRepo,
		idempotency: idempotency,
		notifier:    notifier,
		logger:      logger,
	}
}

// IngestCallEnded records a finished call against the owning tenant's ledger.
// Returns shared.ErrNotFound when no tenant owns the payload's agent or
// number; the HTTP layer maps that to 404 so the provider stops retrying.
func (s *CallIngestService) IngestCallEnded(ctx context.Context, payload *CallEndedPayload) (*CallIngestResult, error) {
	tenant, err := s.resolveTenant(ctx, payload)
	if err != nil {
		return nil, err
	}

	result := &CallIngestResult{
		TenantID: tenant.ID.String(),
		CallID:   payload.CallID,
	}

	claimed := false
	if payload.CallID != "" && s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, "call:"+payload.CallID, shared.DefaultIdempotencyConfig().TTL)
		if err != nil {
			// Degrade to at-least-once rather than dropping billable usage
			s.logger.Warn("Idempotency store unavailable, processing anyway",
				zap.String("call_id", payload.CallID),
				zap.Error(err))
		} else if !fresh {
			s.logger.Info("Duplicate call-ended event ignored",
				zap.String("call_id", payload.CallID),
				zap.String("tenant_id", tenant.ID.String()))
			result.Duplicate = true
			return result, nil
		} else {
			claimed = true
		}
	}

	ledger, err := s.ledgers.EnsureLedger(ctx, tenant)
	if err != nil {
		s.releaseClaim(ctx, payload.CallID, claimed)
		return nil, err
	}

	seconds := payload.EffectiveDurationSeconds()
	usage := ledger.RecordCallUsage(seconds)
	result.LimitState = ledger.LimitState

	if !usage.Applied {
		s.logger.Debug("Zero-duration call, nothing to record",
			zap.String("call_id", payload.CallID),
			zap.String("tenant_id", tenant.ID.String()))
		return result, nil
	}

	// The event row lands before the counters move: a failure on either
	// write releases the claim and surfaces the error, so the provider's
	// redelivery retries the whole ingest instead of being dropped.
	if err := s.appendUsageEvent(ctx, tenant, ledger, payload, usage.DeltaSeconds); err != nil {
		s.releaseClaim(ctx, payload.CallID, claimed)
		return nil, fmt.Errorf("failed to append usage event: %w", err)
	}

	if err := s.ledgerRepo.AddCallUsage(ctx, tenant.ID, usage.DeltaSeconds, usage.NewState); err != nil {
		s.releaseClaim(ctx, payload.CallID, claimed)
		return nil, fmt.Errorf("failed to record call usage: %w", err)
	}
	result.DurationApplied = usage.DeltaSeconds

	if usage.NewState != usage.PreviousState {
		s.logger.Info("Ledger limit state escalated",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("from", usage.PreviousState.String()),
			zap.String("to", usage.NewState.String()),
			zap.Int64("used_seconds", usage.NewUsedSeconds))
	}

	if usage.NearLimit {
		result.AlertRaised = s.raiseNearLimitAlert(ctx, tenant, ledger)
	}

	return result, nil
}

// resolveTenant maps the payload to its tenant: agent ID first, phone number
// as the fallback route
func (s *CallIngestService) resolveTenant(ctx context.Context, payload *CallEndedPayload) (*identity.Tenant, error) {
	if agentID := strings.TrimSpace(payload.AgentID); agentID != "" {
		tenant, err := s.tenantRepo.FindByAgentID(ctx, agentID)
		if err == nil {
			return tenant, nil
		}
		if err != shared.ErrNotFound {
			return nil, fmt.Errorf("failed to resolve tenant by agent: %w", err)
		}
	}

	if number := strings.TrimSpace(payload.PhoneNumber); number != "" {
		tenant, err := s.tenantRepo.FindBySMSNumber(ctx, number)
		if err == nil {
			return tenant, nil
		}
		if err != shared.ErrNotFound {
			return nil, fmt.Errorf("failed to resolve tenant by number: %w", err)
		}
	}

	s.logger.Warn("Call-ended event for unknown tenant",
		zap.String("call_id", payload.CallID),
		zap.String("agent_id", payload.AgentID),
		zap.String("phone_number", payload.PhoneNumber))
	return nil, shared.ErrNotFound
}

// appendUsageEvent writes the immutable audit-trail row. An already-existing
// row for the same call means a prior attempt got this far before failing on
// the counters, so the retry continues past it.
func (s *CallIngestService) appendUsageEvent(ctx context.Context, tenant *identity.Tenant, ledger *metering.UsageLedger, payload *CallEndedPayload, seconds int64) error {
	event, err := metering.NewUsageEvent(tenant.ID, metering.UsageKindCall, seconds, payload.CallID, ledger.PeriodStart, ledger.PeriodEnd)
	if err != nil {
		return err
	}
	if payload.Cost > 0 {
		event.WithCost(decimal.NewFromFloat(payload.Cost))
	}
	if payload.EndedAt != nil && *payload.EndedAt > 0 {
		event.RecordedAt = time.Unix(*payload.EndedAt, 0)
	}

	if err := s.eventRepo.Append(ctx, event); err != nil {
		if err == shared.ErrAlreadyExists {
			s.logger.Debug("Usage event already recorded for call",
				zap.String("call_id", payload.CallID))
			return nil
		}
		return err
	}
	return nil
}

// releaseClaim returns the idempotency claim after a failed ingest so the
// provider's redelivery is not dropped as a duplicate
func (s *CallIngestService) releaseClaim(ctx context.Context, callID string, claimed bool) {
	if !claimed || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, "call:"+callID); err != nil {
		s.logger.Error("Failed to release call claim, redelivery will be dropped",
			zap.String("call_id", callID),
			zap.Error(err))
	}
}

// raiseNearLimitAlert raises at most one near-limit alert per billing period;
// the alert row's existence is the dedup key
func (s *CallIngestService) raiseNearLimitAlert(ctx context.Context, tenant *identity.Tenant, ledger *metering.UsageLedger) bool {
	exists, err := s.alertRepo.Exists(ctx, tenant.ID, metering.AlertKindNearLimit, ledger.PeriodStart)
	if err != nil {
		s.logger.Warn("Failed to check for existing alert", zap.Error(err))
		return false
	}
	if exists {
		return false
	}

	alert := metering.NewNearLimitAlert(tenant.ID, ledger.PeriodStart, ledger.CallUsedSeconds, ledger.TotalCallSeconds())
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		if err != shared.ErrAlreadyExists {
			s.logger.Warn("Failed to create near-limit alert", zap.Error(err))
		}
		return false
	}

	s.logger.Info("Near-limit alert raised",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int64("used_seconds", ledger.CallUsedSeconds),
		zap.Int64("total_seconds", ledger.TotalCallSeconds()))

	if s.notifier != nil {
		if err := s.notifier.NotifyNearLimit(ctx, tenant, ledger.CallUsedSeconds, ledger.TotalCallSeconds()); err != nil {
			s.logger.Warn("Failed to deliver near-limit notification", zap.Error(err))
		}
	}
	return true
}
