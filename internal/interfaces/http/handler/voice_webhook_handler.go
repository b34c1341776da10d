package handler

import (
	"crypto/subtle"
	"errors"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// WebhookTokenHeader carries the shared secret the telephony provider is
// configured to send with every webhook
const WebhookTokenHeader = "X-Webhook-Token"

// VoiceWebhookHandler handles telephony provider webhook endpoints.
// These endpoints are called by the voice provider and are authenticated by a
// shared token rather than JWT.
type VoiceWebhookHandler struct {
	BaseHandler
	ingestService *meteringapp.CallIngestService
	webhookToken  string
}

// NewVoiceWebhookHandler creates a new VoiceWebhookHandler. An empty token
// disables token verification (local development).
func NewVoiceWebhookHandler(ingestService *meteringapp.CallIngestService, webhookToken string) *VoiceWebhookHandler {
	return &VoiceWebhookHandler{
		ingestService: ingestService,
		webhookToken:  webhookToken,
	}
}

// HandleCallEnded godoc
//
//	@ID				handleCallEnded
//	@Summary		Handle call-ended webhook
//	@Description	Record a finished voice call against the owning tenant's usage ledger
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			X-Webhook-Token	header		string	false	"Shared webhook token"
//	@Success		200	{object}	APIResponse[meteringapp.CallIngestResult]
//	@Failure		400	{object}	ErrorResponse	"Malformed payload"
//	@Failure		401	{object}	ErrorResponse	"Invalid webhook token"
//	@Failure		404	{object}	ErrorResponse	"No tenant owns the agent or number"
//	@Router			/webhooks/voice/call-ended [post]
func (h *VoiceWebhookHandler) HandleCallEnded(c *gin.Context) {
	if h.webhookToken != "" {
		token := c.GetHeader(WebhookTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookToken)) != 1 {
			h.Unauthorized(c, "Invalid webhook token")
			return
		}
	}

	var payload meteringapp.CallEndedPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.BadRequest(c, "Invalid call-ended payload")
		return
	}

	result, err := h.ingestService.IngestCallEnded(c.Request.Context(), &payload)
	if err != nil {
		// 404 tells the provider the route is dead so it stops retrying
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "No tenant found for this agent or number")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
