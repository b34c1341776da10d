package metering

import (
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants for Stripe-driven metering events
const (
	EventTypeTopupApplied        = "TopupApplied"
	EventTypeSubscriptionSynced  = "SubscriptionSynced"
	EventTypeSubscriptionDeleted = "SubscriptionDeleted"
	EventTypeInvoicePaid         = "InvoicePaid"
	EventTypePaymentFailed       = "PaymentFailed"
)

// Aggregate type constant
const AggregateTypeStripeMetering = "StripeMetering"

// StripeMeteringEvent represents a billing-provider event that changed
// metering or tenant state
type StripeMeteringEvent struct {
	shared.BaseDomainEvent
	Action   string `json:"action"`
	SourceID string `json:"source_id"` // Session, subscription, or invoice ID
}

// NewStripeMeteringEvent creates a new StripeMeteringEvent
func NewStripeMeteringEvent(tenantID uuid.UUID, action, sourceID string) *StripeMeteringEvent {
	var eventType string
	switch action {
	case "topup_applied":
		eventType = EventTypeTopupApplied
	case "subscription_synced":
		eventType = EventTypeSubscriptionSynced
	case "subscription_deleted":
		eventType = EventTypeSubscriptionDeleted
	case "invoice_paid":
		eventType = EventTypeInvoicePaid
	case "payment_failed":
		eventType = EventTypePaymentFailed
	default:
		eventType = "StripeMetering" + action
	}

	return &StripeMeteringEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeStripeMetering, tenantID, tenantID),
		Action:          action,
		SourceID:        sourceID,
	}
}
