package handler

import (
	"io"
	"net/http"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/gin-gonic/gin"
)

// Stripe webhook payloads are small; 64KB leaves ample headroom.
const maxWebhookPayloadSize = 65536

// StripeWebhookHandler receives billing events from Stripe. The endpoint is
// unauthenticated; the Stripe-Signature header is the trust boundary.
type StripeWebhookHandler struct {
	BaseHandler
	webhookService *meteringapp.StripeWebhookService
}

func NewStripeWebhookHandler(webhookService *meteringapp.StripeWebhookService) *StripeWebhookHandler {
	return &StripeWebhookHandler{webhookService: webhookService}
}

// StripeWebhookResponse represents the response for Stripe webhook
//
//	@Description	Stripe webhook response
type StripeWebhookResponse struct {
	Received  bool   `json:"received" example:"true"`
	EventID   string `json:"event_id,omitempty" example:"evt_1234567890"`
	EventType string `json:"event_type,omitempty" example:"checkout.session.completed"`
	Message   string `json:"message,omitempty" example:"Webhook processed successfully"`
}

func webhookRejected(c *gin.Context, status int, message string) {
	c.JSON(status, StripeWebhookResponse{Received: false, Message: message})
}

// HandleStripeWebhook godoc
//
//	@ID				handleStripeWebhook
//	@Summary		Handle Stripe webhook
//	@Description	Receive and process webhook events from Stripe for topups and subscription changes
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string					true	"Stripe webhook signature"
//	@Success		200					{object}	StripeWebhookResponse	"Webhook processed successfully"
//	@Failure		400					{object}	StripeWebhookResponse	"Invalid request"
//	@Failure		401					{object}	StripeWebhookResponse	"Invalid signature"
//	@Failure		413					{object}	StripeWebhookResponse	"Payload too large"
//	@Router			/webhooks/stripe [post]
func (h *StripeWebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// Signature verification needs the raw body, so read it ourselves
	// instead of binding.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		webhookRejected(c, http.StatusBadRequest, "Failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		webhookRejected(c, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		webhookRejected(c, http.StatusUnauthorized, "Missing Stripe-Signature header")
		return
	}

	result, err := h.webhookService.ProcessWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		// A nil result means signature verification failed before any
		// state moved.
		if result == nil {
			webhookRejected(c, http.StatusUnauthorized, "Webhook signature verification failed")
			return
		}

		// Processing failures after verification still get a 200 so Stripe
		// does not retry events a retry cannot fix. The message stays
		// generic; internals are in the logs.
		c.JSON(http.StatusOK, StripeWebhookResponse{
			Received:  true,
			EventID:   result.EventID,
			EventType: result.EventType,
			Message:   "Webhook received but processing encountered an issue",
		})
		return
	}

	c.JSON(http.StatusOK, StripeWebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType,
		Message:   result.Message,
	})
}
