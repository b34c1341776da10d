package metering

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/frontdesk/backend/internal/infrastructure/billing"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeWebhookService handles Stripe webhook events: pay-as-you-go topups
// arrive as payment-mode checkout sessions, subscription lifecycle changes
// drive the tenant's plan tier and billing period, and invoice outcomes flip
// the payment-failed flag.
type StripeWebhookService struct {
	config      *billing.StripeConfig
	tenantRepo  identity.TenantRepository
	ledgers     *LedgerService
	ledgerRepo  metering.UsageLedgerRepository
	idempotency shared.IdempotencyStore
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// StripeWebhookServiceConfig contains configuration for StripeWebhookService
type StripeWebhookServiceConfig struct {
	Config      *billing.StripeConfig
	TenantRepo  identity.TenantRepository
	Ledgers     *LedgerService
	LedgerRepo  metering.UsageLedgerRepository
	Idempotency shared.IdempotencyStore
	EventBus    shared.EventBus
	Logger      *zap.Logger
}

// NewStripeWebhookService creates a new StripeWebhookService
func NewStripeWebhookService(cfg StripeWebhookServiceConfig) *StripeWebhookService {
	return &StripeWebhookService{
		config:      cfg.Config,
		tenantRepo:  cfg.TenantRepo,
		ledgers:     cfg.Ledgers,
		ledgerRepo:  cfg.LedgerRepo,
		idempotency: cfg.Idempotency,
		eventBus:    cfg.EventBus,
		logger:      cfg.Logger,
	}
}

// WebhookResult contains the result of processing a webhook
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// ProcessWebhook verifies and processes a Stripe webhook event. Signature
// verification happens before any state is touched; a verification failure is
// the only path the HTTP layer maps to a non-2xx response.
func (s *StripeWebhookService) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.config.WebhookSecret)
	if err != nil {
		s.logger.Error("Failed to verify webhook signature",
			zap.Error(err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	s.logger.Info("Processing Stripe webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	// Stripe redelivers events; the event ID is the dedup key
	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, "stripe:"+event.ID, shared.DefaultIdempotencyConfig().TTL)
		if err != nil {
			s.logger.Warn("Idempotency store unavailable, processing anyway",
				zap.String("event_id", event.ID),
				zap.Error(err))
		} else if !fresh {
			s.logger.Info("Duplicate Stripe event ignored",
				zap.String("event_id", event.ID))
			result.Message = "Duplicate event"
			return result, nil
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		err = s.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created":
		err = s.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.updated":
		err = s.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		err = s.handleSubscriptionDeleted(ctx, event)
	case "invoice.paid":
		err = s.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		err = s.handleInvoicePaymentFailed(ctx, event)
	default:
		s.logger.Debug("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	if err != nil {
		s.logger.Error("Failed to process webhook event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		result.Processed = false
		result.Message = err.Error()
		return result, err
	}

	return result, nil
}

// handleCheckoutCompleted handles checkout.session.completed events.
// Payment-mode sessions are topup purchases; subscription-mode sessions link
// the new customer and subscription to the tenant.
func (s *StripeWebhookService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	s.logger.Info("Handling checkout completed",
		zap.String("session_id", session.ID),
		zap.String("mode", string(session.Mode)))

	tenant, err := s.resolveCheckoutTenant(ctx, &session)
	if err != nil {
		if err == shared.ErrNotFound {
			// Note: ErrNotFound is not treated as an error because webhooks may
			// arrive before tenant setup is complete, or for customers not in
			// our system. We acknowledge receipt to prevent Stripe retries.
			s.logger.Warn("Tenant not found for checkout session",
				zap.String("session_id", session.ID))
			return nil
		}
		return err
	}

	if session.Customer != nil && tenant.StripeCustomerID == "" {
		if err := tenant.LinkStripeCustomer(session.Customer.ID); err != nil {
			s.logger.Warn("Failed to link customer", zap.Error(err))
		}
		if err := s.tenantRepo.Save(ctx, tenant); err != nil {
			return fmt.Errorf("failed to save tenant: %w", err)
		}
	}

	if session.Mode == stripe.CheckoutSessionModePayment {
		return s.applyTopup(ctx, tenant, &session)
	}

	// Subscription-mode sessions carry no usage change themselves; the
	// subscription.created event that follows syncs the tier and period
	return nil
}

// applyTopup credits purchased capacity and unblocks the ledger. Amounts come
// from the checkout session metadata set when the session was created.
func (s *StripeWebhookService) applyTopup(ctx context.Context, tenant *identity.Tenant, session *stripe.CheckoutSession) error {
	callSeconds := metadataInt64(session.Metadata, "topup_call_seconds")
	smsCount := metadataInt64(session.Metadata, "topup_sms_count")
	if callSeconds <= 0 && smsCount <= 0 {
		s.logger.Warn("Payment-mode checkout without topup metadata, skipping",
			zap.String("session_id", session.ID),
			zap.String("tenant_id", tenant.ID.String()))
		return nil
	}

	// Ensure the credit lands in the current period, not a stale one
	ledger, err := s.ledgers.EnsureLedger(ctx, tenant)
	if err != nil {
		return err
	}
	if err := ledger.ApplyTopup(callSeconds, smsCount); err != nil {
		return err
	}

	if err := s.ledgerRepo.ApplyCredit(ctx, tenant.ID, callSeconds, smsCount); err != nil {
		return fmt.Errorf("failed to apply topup credit: %w", err)
	}

	s.logger.Info("Topup applied",
		zap.String("tenant_id", tenant.ID.String()),
		zap.Int64("call_seconds", callSeconds),
		zap.Int64("sms_count", smsCount),
		zap.String("session_id", session.ID))

	s.publishMeteringEvent(ctx, tenant.ID, "topup_applied", session.ID)

	return nil
}

// handleSubscriptionChanged handles subscription created and updated events
func (s *StripeWebhookService) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	s.logger.Info("Handling subscription change",
		zap.String("subscription_id", subscription.ID),
		zap.String("status", string(subscription.Status)))

	tenant, err := s.resolveSubscriptionTenant(ctx, &subscription)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Tenant not found for subscription",
				zap.String("subscription_id", subscription.ID))
			return nil
		}
		return err
	}

	if tenant.StripeSubscriptionID != subscription.ID {
		if err := tenant.LinkStripeSubscription(subscription.ID); err != nil {
			s.logger.Warn("Failed to link subscription", zap.Error(err))
		}
	}

	// The raw tier label lands on the tenant; entitlements only change at the
	// next reconcile, so a mid-period downgrade cannot claw back capacity
	if label := s.tierLabel(&subscription); label != "" && label != tenant.PlanTier {
		if err := tenant.SetPlanTier(label); err != nil {
			s.logger.Warn("Failed to set plan tier",
				zap.String("label", label),
				zap.Error(err))
		}
	}

	if subscription.CurrentPeriodEnd > 0 {
		tenant.SetBillingPeriodEnd(time.Unix(subscription.CurrentPeriodEnd, 0))
	}

	switch subscription.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		if tenant.IsSuspended() {
			if err := tenant.Activate(); err != nil {
				s.logger.Warn("Failed to activate tenant", zap.Error(err))
			}
		}
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		s.logger.Warn("Subscription payment issue",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("status", string(subscription.Status)))
	}

	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	s.publishMeteringEvent(ctx, tenant.ID, "subscription_synced", subscription.ID)

	s.logger.Info("Subscription change processed successfully",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("subscription_id", subscription.ID),
		zap.String("plan_tier", tenant.PlanTier))

	return nil
}

// handleSubscriptionDeleted handles customer.subscription.deleted events
func (s *StripeWebhookService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var subscription stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &subscription); err != nil {
		return fmt.Errorf("failed to unmarshal subscription: %w", err)
	}

	s.logger.Info("Handling subscription deleted",
		zap.String("subscription_id", subscription.ID))

	tenant, err := s.tenantRepo.FindByStripeSubscriptionID(ctx, subscription.ID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Tenant not found for subscription",
				zap.String("subscription_id", subscription.ID))
			return nil
		}
		return fmt.Errorf("failed to find tenant: %w", err)
	}

	if !tenant.IsActive() {
		s.logger.Debug("Tenant already inactive",
			zap.String("tenant_id", tenant.ID.String()))
	} else if err := tenant.Deactivate(); err != nil {
		s.logger.Warn("Failed to deactivate tenant", zap.Error(err))
	}

	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	s.publishMeteringEvent(ctx, tenant.ID, "subscription_deleted", subscription.ID)

	return nil
}

// handleInvoicePaid handles invoice.paid events
func (s *StripeWebhookService) handleInvoicePaid(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Invoice has no customer ID, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	if invoice.Subscription == nil {
		s.logger.Debug("Invoice is not for a subscription, skipping")
		return nil
	}

	tenant, err := s.tenantRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Tenant not found for customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find tenant: %w", err)
	}

	tenant.ClearPaymentFailed()
	if tenant.IsSuspended() {
		if err := tenant.Activate(); err != nil {
			s.logger.Warn("Failed to activate tenant after payment", zap.Error(err))
		}
	}

	if invoice.PeriodEnd > 0 {
		tenant.SetBillingPeriodEnd(time.Unix(invoice.PeriodEnd, 0))
	}

	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	s.publishMeteringEvent(ctx, tenant.ID, "invoice_paid", invoice.ID)

	return nil
}

// handleInvoicePaymentFailed handles invoice.payment_failed events
func (s *StripeWebhookService) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("failed to unmarshal invoice: %w", err)
	}

	customerID := ""
	if invoice.Customer != nil {
		customerID = invoice.Customer.ID
	}
	if customerID == "" {
		s.logger.Warn("Invoice has no customer ID, skipping",
			zap.String("invoice_id", invoice.ID))
		return nil
	}

	tenant, err := s.tenantRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		if err == shared.ErrNotFound {
			s.logger.Warn("Tenant not found for customer",
				zap.String("customer_id", customerID))
			return nil
		}
		return fmt.Errorf("failed to find tenant: %w", err)
	}

	tenant.MarkPaymentFailed()
	if !tenant.IsSuspended() {
		if err := tenant.Suspend(); err != nil {
			s.logger.Warn("Failed to suspend tenant after payment failure", zap.Error(err))
		}
	}

	if err := s.tenantRepo.Save(ctx, tenant); err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}

	s.publishMeteringEvent(ctx, tenant.ID, "payment_failed", invoice.ID)

	s.logger.Warn("Invoice payment failed - tenant suspended",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("invoice_id", invoice.ID))

	return nil
}

// resolveCheckoutTenant maps a checkout session to its tenant: explicit
// metadata first, then the client reference ID, then the customer link
func (s *StripeWebhookService) resolveCheckoutTenant(ctx context.Context, session *stripe.CheckoutSession) (*identity.Tenant, error) {
	if raw, ok := session.Metadata["tenant_id"]; ok {
		if tenantID, err := uuid.Parse(raw); err == nil {
			return s.tenantRepo.FindByID(ctx, tenantID)
		}
		s.logger.Warn("Malformed tenant_id in session metadata",
			zap.String("session_id", session.ID),
			zap.String("tenant_id", raw))
	}

	if session.ClientReferenceID != "" {
		if tenantID, err := uuid.Parse(session.ClientReferenceID); err == nil {
			return s.tenantRepo.FindByID(ctx, tenantID)
		}
	}

	if session.Customer != nil && session.Customer.ID != "" {
		return s.tenantRepo.FindByStripeCustomerID(ctx, session.Customer.ID)
	}

	return nil, shared.ErrNotFound
}

// resolveSubscriptionTenant maps a subscription to its tenant: subscription
// ID first, then the customer link
func (s *StripeWebhookService) resolveSubscriptionTenant(ctx context.Context, subscription *stripe.Subscription) (*identity.Tenant, error) {
	tenant, err := s.tenantRepo.FindByStripeSubscriptionID(ctx, subscription.ID)
	if err == nil {
		return tenant, nil
	}
	if err != shared.ErrNotFound {
		return nil, fmt.Errorf("failed to find tenant: %w", err)
	}

	if subscription.Customer != nil && subscription.Customer.ID != "" {
		return s.tenantRepo.FindByStripeCustomerID(ctx, subscription.Customer.ID)
	}
	return nil, shared.ErrNotFound
}

// publishMeteringEvent publishes a billing-related domain event
func (s *StripeWebhookService) publishMeteringEvent(ctx context.Context, tenantID uuid.UUID, action, sourceID string) {
	if s.eventBus == nil {
		return
	}

	event := NewStripeMeteringEvent(tenantID, action, sourceID)
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish metering event",
			zap.String("action", action),
			zap.Error(err))
	}
}

// tierLabel extracts the plan tier label from a subscription: explicit
// metadata first, then the configured price mapping, then the price
// lookup key or nickname
func (s *StripeWebhookService) tierLabel(subscription *stripe.Subscription) string {
	if label, ok := subscription.Metadata["plan_tier"]; ok && label != "" {
		return label
	}
	if subscription.Items != nil {
		for _, item := range subscription.Items.Data {
			if item.Price == nil {
				continue
			}
			if s.config != nil {
				if tier := s.config.TierForPriceID(item.Price.ID); tier != "" {
					return tier
				}
			}
			if item.Price.LookupKey != "" {
				return item.Price.LookupKey
			}
			if item.Price.Nickname != "" {
				return item.Price.Nickname
			}
		}
	}
	return ""
}

func metadataInt64(metadata map[string]string, key string) int64 {
	raw, ok := metadata[key]
	if !ok {
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}
