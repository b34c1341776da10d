package metering

import (
	"time"

	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultPeriodDays is the billing-period length assumed when the payment
// provider has not supplied an explicit period end.
const DefaultPeriodDays = 30

// NearLimitThreshold is the remaining/total fraction at or below which a
// near-limit alert is raised.
const NearLimitThreshold = 0.20

// LimitState represents the enforcement state of a ledger
type LimitState string

const (
	// LimitStateOK means the tenant has headroom
	LimitStateOK LimitState = "ok"

	// LimitStatePending means call usage has reached the included cap but is
	// still inside the grace buffer
	LimitStatePending LimitState = "pending"

	// LimitStatePaused means usage is hard-stopped
	LimitStatePaused LimitState = "paused"
)

// String returns the string representation of LimitState
func (s LimitState) String() string {
	return string(s)
}

// IsValid returns true if the limit state is valid
func (s LimitState) IsValid() bool {
	switch s {
	case LimitStateOK, LimitStatePending, LimitStatePaused:
		return true
	}
	return false
}

// rank orders states by severity so ingestion can only escalate, never relax
func (s LimitState) rank() int {
	switch s {
	case LimitStatePending:
		return 1
	case LimitStatePaused:
		return 2
	default:
		return 0
	}
}

// UsageLedger is the per-tenant usage and entitlement record for one billing
// period. It is the aggregate root of the metering core: five producers
// (call ingestion, SMS gating, topups, subscription sync, admin override)
// mutate it and the usage-status read model projects from it.
//
// Counters follow delta semantics: call_used_seconds and sms_used only grow
// within a period and only reset to zero at a period rollover, where unused
// call capacity is folded into rollover_seconds.
type UsageLedger struct {
	shared.BaseAggregateRoot
	TenantID          uuid.UUID
	PlanTier          PlanTier
	CallCapSeconds    int64 // Included call capacity, re-derived from the plan at each rollover
	SMSCap            int64 // Included SMS messages, re-derived from the plan at each rollover
	CallUsedSeconds   int64 // Monotonic within a period
	SMSUsed           int64 // Monotonic within a period
	CallCreditSeconds int64 // Pay-as-you-go call credit, zeroed at rollover
	SMSCredit         int64 // Pay-as-you-go SMS credit, zeroed at rollover
	RolloverSeconds   int64 // Unused call capacity carried from the prior period
	GraceSeconds      int64 // Call overage buffer before a hard pause; SMS has none
	LimitState        LimitState
	ForcePause        bool // Admin hard stop, overrides any computed state
	ForceResume       bool // Admin unblock, overrides paused until the next recompute
	PeriodStart       time.Time
	PeriodEnd         time.Time
}

// NewUsageLedger creates a fresh ledger for a tenant from its entitlement.
// Ledgers are created lazily on the first usage-affecting request; callers
// pass a nil periodEnd when the billing provider has not reported one yet.
func NewUsageLedger(tenantID uuid.UUID, tier PlanTier, ent Entitlement, periodEnd *time.Time) (*UsageLedger, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}

	now := time.Now()
	end := now.AddDate(0, 0, DefaultPeriodDays)
	if periodEnd != nil && periodEnd.After(now) {
		end = *periodEnd
	}

	return &UsageLedger{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          tenantID,
		PlanTier:          tier,
		CallCapSeconds:    ent.CallCapSeconds(),
		SMSCap:            ent.SMSCount,
		GraceSeconds:      ent.GraceSeconds,
		LimitState:        LimitStateOK,
		PeriodStart:       now,
		PeriodEnd:         end,
	}, nil
}

// TotalCallSeconds returns the total call capacity available this period
func (l *UsageLedger) TotalCallSeconds() int64 {
	return l.CallCapSeconds + l.CallCreditSeconds + l.RolloverSeconds
}

// RemainingCallSeconds returns the unconsumed call capacity, never negative
func (l *UsageLedger) RemainingCallSeconds() int64 {
	remaining := l.TotalCallSeconds() - l.CallUsedSeconds
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TotalSMS returns the total SMS capacity available this period
func (l *UsageLedger) TotalSMS() int64 {
	return l.SMSCap + l.SMSCredit
}

// RemainingSMS returns the unconsumed SMS capacity, never negative
func (l *UsageLedger) RemainingSMS() int64 {
	remaining := l.TotalSMS() - l.SMSUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GraceLimitSeconds returns the call usage at which the hard pause engages
func (l *UsageLedger) GraceLimitSeconds() int64 {
	return l.TotalCallSeconds() + l.GraceSeconds
}

// SMSExhausted returns true when SMS usage has consumed cap plus credit.
// There is no grace buffer for SMS.
func (l *UsageLedger) SMSExhausted() bool {
	return l.SMSUsed >= l.TotalSMS()
}

// PausedByAdmin returns true when an administrator pause is in effect
func (l *UsageLedger) PausedByAdmin() bool {
	return l.ForcePause && !l.ForceResume
}

// CallUsage describes the outcome of applying a call-duration delta
type CallUsage struct {
	Applied        bool
	DeltaSeconds   int64
	NewUsedSeconds int64
	PreviousState  LimitState
	NewState       LimitState
	NearLimit      bool // remaining/total at or below NearLimitThreshold after the delta
}

// RecordCallUsage applies a call-duration delta and recomputes the limit
// state. Ingestion only escalates state (ok -> pending -> paused); relaxation
// happens exclusively via rollover, topup, or admin resume. Non-positive
// durations are a no-op.
func (l *UsageLedger) RecordCallUsage(seconds int64) CallUsage {
	result := CallUsage{
		PreviousState:  l.LimitState,
		NewState:       l.LimitState,
		NewUsedSeconds: l.CallUsedSeconds,
	}
	if seconds <= 0 {
		return result
	}

	updatedUsed := l.CallUsedSeconds + seconds

	computed := LimitStateOK
	switch {
	case updatedUsed >= l.GraceLimitSeconds():
		computed = LimitStatePaused
	case updatedUsed >= l.CallCapSeconds:
		computed = LimitStatePending
	}

	next := l.LimitState
	if computed.rank() > next.rank() {
		next = computed
	}

	l.CallUsedSeconds = updatedUsed
	l.LimitState = next
	l.UpdatedAt = time.Now()

	result.Applied = true
	result.DeltaSeconds = seconds
	result.NewUsedSeconds = updatedUsed
	result.NewState = next
	if total := l.TotalCallSeconds(); total > 0 {
		result.NearLimit = float64(l.RemainingCallSeconds())/float64(total) <= NearLimitThreshold
	}
	return result
}

// RecordSMSUsage applies an SMS-count delta. The state is recomputed so a
// send that consumes the last message leaves the ledger paused rather than
// stale; non-positive counts are a no-op.
func (l *UsageLedger) RecordSMSUsage(count int64) bool {
	if count <= 0 {
		return false
	}
	l.SMSUsed += count
	if l.SMSExhausted() && l.LimitState != LimitStatePaused {
		l.LimitState = LimitStatePaused
	}
	l.UpdatedAt = time.Now()
	return true
}

// ApplyTopup adds purchased capacity to the period-scoped credit balances.
// A successful purchase always unblocks: the computed state is forced back
// to ok and any admin pause is lifted.
func (l *UsageLedger) ApplyTopup(callSeconds, smsCount int64) error {
	if callSeconds < 0 || smsCount < 0 {
		return shared.NewDomainError("INVALID_TOPUP", "Topup amounts cannot be negative")
	}
	l.CallCreditSeconds += callSeconds
	l.SMSCredit += smsCount
	l.LimitState = LimitStateOK
	l.ForcePause = false
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return nil
}

// ForcePauseByAdmin hard-stops the tenant regardless of counters
func (l *UsageLedger) ForcePauseByAdmin() {
	l.ForcePause = true
	l.ForceResume = false
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// ForceResumeByAdmin unblocks the tenant immediately. The limit state is set
// to ok without waiting for a reconcile; the next counter mutation recomputes
// it from arithmetic. Override beats arithmetic until then.
func (l *UsageLedger) ForceResumeByAdmin() {
	l.ForcePause = false
	l.ForceResume = true
	l.LimitState = LimitStateOK
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// MarkPaused records a pause discovered during a gate check
func (l *UsageLedger) MarkPaused() {
	l.LimitState = LimitStatePaused
	l.UpdatedAt = time.Now()
}

// GateDenialReason is the user-visible reason an SMS send was denied
type GateDenialReason string

const (
	// GateDeniedAdminPause denies because an administrator paused the tenant
	GateDeniedAdminPause GateDenialReason = "paused by admin"

	// GateDeniedLimitReached denies because capacity is exhausted
	GateDeniedLimitReached GateDenialReason = "limit reached"
)

// GateDecision is the outcome of an SMS pre-flight check
type GateDecision struct {
	Allowed bool
	Reason  GateDenialReason // empty when allowed

	// PersistPause is set when the check itself discovered exhaustion, so the
	// caller must write limit_state=paused back to the store. Later checks
	// then short-circuit on the stored state.
	PersistPause bool
}

// CheckSMSGate evaluates the SMS pre-flight decision in fixed order:
// admin pause first (it wins over any numeric headroom), then the stored
// paused state, then the cap+credit arithmetic.
func (l *UsageLedger) CheckSMSGate() GateDecision {
	if l.PausedByAdmin() {
		return GateDecision{Allowed: false, Reason: GateDeniedAdminPause}
	}
	if l.LimitState == LimitStatePaused {
		return GateDecision{Allowed: false, Reason: GateDeniedLimitReached}
	}
	if l.SMSExhausted() {
		return GateDecision{Allowed: false, Reason: GateDeniedLimitReached, PersistPause: true}
	}
	return GateDecision{Allowed: true}
}

// NeedsReconcile returns true once the billing period has elapsed
func (l *UsageLedger) NeedsReconcile(now time.Time) bool {
	return now.After(l.PeriodEnd)
}

// Reconcile rolls the ledger into a new billing period: unused call capacity
// from the closing period becomes rollover, caps are re-derived from the
// current plan tier, used and credit counters reset, and the state returns
// to ok. It reports whether a rollover was performed.
//
// The elapsed-period guard makes repeated invocation idempotent: two
// concurrent callers may both observe a stale ledger, but the second
// Reconcile against the already-advanced period is a no-op (and the
// version-guarded save rejects the stale writer anyway).
func (l *UsageLedger) Reconcile(tier PlanTier, ent Entitlement, periodEnd *time.Time, now time.Time) bool {
	if !l.NeedsReconcile(now) {
		return false
	}

	rollover := l.RemainingCallSeconds()

	l.PlanTier = tier
	l.CallCapSeconds = ent.CallCapSeconds()
	l.SMSCap = ent.SMSCount
	l.GraceSeconds = ent.GraceSeconds
	l.CallUsedSeconds = 0
	l.SMSUsed = 0
	l.CallCreditSeconds = 0
	l.SMSCredit = 0
	l.RolloverSeconds = rollover
	l.LimitState = LimitStateOK

	l.PeriodStart = now
	if periodEnd != nil && periodEnd.After(now) {
		l.PeriodEnd = *periodEnd
	} else {
		l.PeriodEnd = now.AddDate(0, 0, DefaultPeriodDays)
	}

	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	return true
}
