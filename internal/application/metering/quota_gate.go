package metering

import (
	"context"
	"net/http"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuotaExceededError is returned when an SMS send is denied by the gate
type QuotaExceededError struct {
	TenantID uuid.UUID
	Reason   metering.GateDenialReason
}

// Error implements the error interface
func (e *QuotaExceededError) Error() string {
	return string(e.Reason)
}

// HTTPStatusCode returns 429 Too Many Requests
func (e *QuotaExceededError) HTTPStatusCode() int {
	return http.StatusTooManyRequests
}

// GateResult is the outcome of an SMS pre-flight check
type GateResult struct {
	Allowed      bool                      `json:"allowed"`
	Reason       metering.GateDenialReason `json:"reason,omitempty"`
	RemainingSMS int64                     `json:"remaining_sms"`
}

// QuotaGate is the pre-flight check consulted before every outbound SMS.
// Voice calls are not gated here: call duration is only known after the call
// ends, so enforcement for calls is the pause that ingestion escalates into.
type QuotaGate struct {
	ledgers    *LedgerService
	ledgerRepo metering.UsageLedgerRepository
	logger     *zap.Logger
}

// NewQuotaGate creates a new QuotaGate
func NewQuotaGate(ledgers *LedgerService, ledgerRepo metering.UsageLedgerRepository, logger *zap.Logger) *QuotaGate {
	return &QuotaGate{
		ledgers:    ledgers,
		ledgerRepo: ledgerRepo,
		logger:     logger,
	}
}

// CheckSMS decides whether the tenant may send one more SMS. A denial caused
// by exhaustion discovered at the gate itself is written back to the store so
// later checks short-circuit on the paused state.
func (g *QuotaGate) CheckSMS(ctx context.Context, tenantID uuid.UUID) (*GateResult, error) {
	ledger, err := g.ledgers.EnsureLedgerByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	decision := ledger.CheckSMSGate()

	if decision.PersistPause {
		if err := g.ledgerRepo.SetLimitState(ctx, tenantID, metering.LimitStatePaused); err != nil {
			// The denial stands either way; the next check recomputes it
			g.logger.Warn("Failed to persist gate-discovered pause",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
		}
	}

	if !decision.Allowed {
		g.logger.Info("SMS send denied",
			zap.String("tenant_id", tenantID.String()),
			zap.String("reason", string(decision.Reason)))
	}

	return &GateResult{
		Allowed:      decision.Allowed,
		Reason:       decision.Reason,
		RemainingSMS: ledger.RemainingSMS(),
	}, nil
}

// RequireSMS is CheckSMS with a denial surfaced as a typed error
func (g *QuotaGate) RequireSMS(ctx context.Context, tenantID uuid.UUID) error {
	result, err := g.CheckSMS(ctx, tenantID)
	if err != nil {
		return err
	}
	if !result.Allowed {
		if result.Reason == metering.GateDeniedAdminPause {
			return shared.ErrPausedByAdmin
		}
		return &QuotaExceededError{TenantID: tenantID, Reason: result.Reason}
	}
	return nil
}
