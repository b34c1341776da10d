package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsageLedgerRepository persists the per-tenant ledger row.
//
// The ledger is mutated by concurrent producers without a cross-request
// lock. Counter mutations are atomic in-store deltas; full-row saves
// (rollover, admin override) are guarded by the aggregate version.
type UsageLedgerRepository interface {
	// FindByTenant returns the tenant's ledger or shared.ErrNotFound
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*UsageLedger, error)

	// Create inserts a freshly ensured ledger; returns shared.ErrAlreadyExists
	// when a concurrent request created it first
	Create(ctx context.Context, ledger *UsageLedger) error

	// Save rewrites the full row guarded by the aggregate version; returns
	// shared.ErrConcurrencyConflict when the row moved underneath the caller
	Save(ctx context.Context, ledger *UsageLedger) error

	// AddCallUsage atomically increments call_used_seconds and writes the
	// escalated limit state computed by the aggregate
	AddCallUsage(ctx context.Context, tenantID uuid.UUID, deltaSeconds int64, state LimitState) error

	// AddSMSUsage atomically increments sms_used and writes the limit state
	AddSMSUsage(ctx context.Context, tenantID uuid.UUID, delta int64, state LimitState) error

	// ApplyCredit atomically adds topup credit and unblocks the ledger
	// (limit_state=ok, force_pause=false)
	ApplyCredit(ctx context.Context, tenantID uuid.UUID, callSeconds, smsCount int64) error

	// SetLimitState writes only the limit state, used by the gate's
	// self-healing pause
	SetLimitState(ctx context.Context, tenantID uuid.UUID, state LimitState) error
}

// UsageEventRepository persists the append-only usage event log
type UsageEventRepository interface {
	// Append inserts an immutable usage event
	Append(ctx context.Context, event *UsageEvent) error

	// FindByTenant returns events for a tenant within a period, newest first
	FindByTenant(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]*UsageEvent, error)

	// SumQuantity totals event quantities of one kind within a period, for
	// reconstructing a ledger from the log
	SumQuantity(ctx context.Context, tenantID uuid.UUID, kind UsageKind, from, to time.Time) (int64, error)
}

// UsageAlertRepository persists near-limit alerts; existence is the dedup key
type UsageAlertRepository interface {
	// Exists reports whether an alert of this kind was already raised for
	// the period starting at periodStart
	Exists(ctx context.Context, tenantID uuid.UUID, kind AlertKind, periodStart time.Time) (bool, error)

	// Create inserts an alert; duplicate (tenant, kind, period) rows return
	// shared.ErrAlreadyExists
	Create(ctx context.Context, alert *UsageAlert) error
}

// AuditLogRepository is the write-only sink for administrative actions
type AuditLogRepository interface {
	Append(ctx context.Context, record *AuditRecord) error
}
