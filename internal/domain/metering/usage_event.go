package metering

import (
	"time"

	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageKind distinguishes the two metered resources
type UsageKind string

const (
	// UsageKindCall is voice-call consumption, measured in seconds
	UsageKindCall UsageKind = "call"

	// UsageKindSMS is SMS consumption, measured in messages
	UsageKindSMS UsageKind = "sms"
)

// String returns the string representation of UsageKind
func (k UsageKind) String() string {
	return string(k)
}

// IsValid returns true if the usage kind is valid
func (k UsageKind) IsValid() bool {
	switch k {
	case UsageKindCall, UsageKindSMS:
		return true
	}
	return false
}

// UsageEvent is an immutable record of a single consumption event. The
// append-only event log is the source of truth for reconstructing a ledger:
// corrections are made with new events, never by editing existing ones.
type UsageEvent struct {
	shared.BaseEntity
	TenantID    uuid.UUID
	Kind        UsageKind
	Quantity    int64           // Seconds for calls, message count for SMS
	SourceID    string          // Provider call ID or SMS message ID
	Cost        decimal.Decimal // Provider-reported cost, zero when unknown
	RecordedAt  time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// NewUsageEvent creates a usage event bound to the ledger period it was
// consumed in
func NewUsageEvent(tenantID uuid.UUID, kind UsageKind, quantity int64, sourceID string, periodStart, periodEnd time.Time) (*UsageEvent, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_USAGE_KIND", "Invalid usage kind")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	return &UsageEvent{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		Kind:        kind,
		Quantity:    quantity,
		SourceID:    sourceID,
		Cost:        decimal.Zero,
		RecordedAt:  time.Now(),
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
	}, nil
}

// WithCost attaches the provider-reported cost
func (e *UsageEvent) WithCost(cost decimal.Decimal) *UsageEvent {
	if cost.IsNegative() {
		return e
	}
	e.Cost = cost
	return e
}
