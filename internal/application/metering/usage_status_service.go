package metering

import (
	"context"
	"time"

	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UsageStatusDTO is the dashboard projection of a tenant's ledger
type UsageStatusDTO struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	PlanTier   string    `json:"plan_tier"`
	LimitState string    `json:"limit_state"`

	Calls CallUsageDTO `json:"calls"`
	SMS   SMSUsageDTO  `json:"sms"`

	ForcePause  bool      `json:"force_pause"`
	ForceResume bool      `json:"force_resume"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// CallUsageDTO breaks down call capacity for the current period
type CallUsageDTO struct {
	UsedSeconds      int64   `json:"used_seconds"`
	CapSeconds       int64   `json:"cap_seconds"`
	CreditSeconds    int64   `json:"credit_seconds"`
	RolloverSeconds  int64   `json:"rollover_seconds"`
	TotalSeconds     int64   `json:"total_seconds"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	GraceSeconds     int64   `json:"grace_seconds"`
	UsedFraction     float64 `json:"used_fraction"`
	NearLimit        bool    `json:"near_limit"`
}

// SMSUsageDTO breaks down SMS capacity for the current period
type SMSUsageDTO struct {
	Used      int64 `json:"used"`
	Cap       int64 `json:"cap"`
	Credit    int64 `json:"credit"`
	Total     int64 `json:"total"`
	Remaining int64 `json:"remaining"`
	Exhausted bool  `json:"exhausted"`
}

// UsageStatusService projects the ledger into the dashboard read model.
// Reads go through EnsureLedger too, so a dashboard visit after the period
// boundary shows the fresh period rather than a stale one.
type UsageStatusService struct {
	ledgers *LedgerService
	logger  *zap.Logger
}

// NewUsageStatusService creates a new UsageStatusService
func NewUsageStatusService(ledgers *LedgerService, logger *zap.Logger) *UsageStatusService {
	return &UsageStatusService{
		ledgers: ledgers,
		logger:  logger,
	}
}

// GetStatus returns the tenant's current usage snapshot
func (s *UsageStatusService) GetStatus(ctx context.Context, tenantID uuid.UUID) (*UsageStatusDTO, error) {
	ledger, err := s.ledgers.EnsureLedgerByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return projectStatus(ledger), nil
}

func projectStatus(ledger *metering.UsageLedger) *UsageStatusDTO {
	totalCalls := ledger.TotalCallSeconds()
	remaining := ledger.RemainingCallSeconds()

	usedFraction := 0.0
	nearLimit := false
	if totalCalls > 0 {
		usedFraction = float64(ledger.CallUsedSeconds) / float64(totalCalls)
		nearLimit = float64(remaining)/float64(totalCalls) <= metering.NearLimitThreshold
	}

	return &UsageStatusDTO{
		TenantID:   ledger.TenantID,
		PlanTier:   ledger.PlanTier.String(),
		LimitState: ledger.LimitState.String(),
		Calls: CallUsageDTO{
			UsedSeconds:      ledger.CallUsedSeconds,
			CapSeconds:       ledger.CallCapSeconds,
			CreditSeconds:    ledger.CallCreditSeconds,
			RolloverSeconds:  ledger.RolloverSeconds,
			TotalSeconds:     totalCalls,
			RemainingSeconds: remaining,
			GraceSeconds:     ledger.GraceSeconds,
			UsedFraction:     usedFraction,
			NearLimit:        nearLimit,
		},
		SMS: SMSUsageDTO{
			Used:      ledger.SMSUsed,
			Cap:       ledger.SMSCap,
			Credit:    ledger.SMSCredit,
			Total:     ledger.TotalSMS(),
			Remaining: ledger.RemainingSMS(),
			Exhausted: ledger.SMSExhausted(),
		},
		ForcePause:  ledger.ForcePause,
		ForceResume: ledger.ForceResume,
		PeriodStart: ledger.PeriodStart,
		PeriodEnd:   ledger.PeriodEnd,
	}
}
