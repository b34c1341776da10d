package handler

import (
	"errors"
	"time"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UsageHandler handles tenant usage and quota HTTP requests
type UsageHandler struct {
	BaseHandler
	statusService *meteringapp.UsageStatusService
	eventRepo     metering.UsageEventRepository
}

// NewUsageHandler creates a new usage handler
func NewUsageHandler(statusService *meteringapp.UsageStatusService, eventRepo metering.UsageEventRepository) *UsageHandler {
	return &UsageHandler{
		statusService: statusService,
		eventRepo:     eventRepo,
	}
}

// ============================================================================
// Request/Response DTOs
// ============================================================================

// UsageEventItem represents one metered usage event
//
//	@Description	Single metered usage event
type UsageEventItem struct {
	ID         string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Kind       string `json:"kind" example:"call"`
	Quantity   int64  `json:"quantity" example:"185"`
	SourceID   string `json:"source_id" example:"call_abc123"`
	Cost       string `json:"cost,omitempty" example:"0.42"`
	RecordedAt string `json:"recorded_at" example:"2026-01-15T10:30:00Z"`
}

// UsageEventsResponse represents a tenant's usage event history
//
//	@Description	Usage event history for a time window
type UsageEventsResponse struct {
	TenantID string           `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	From     string           `json:"from" example:"2026-01-01T00:00:00Z"`
	To       string           `json:"to" example:"2026-01-31T00:00:00Z"`
	Events   []UsageEventItem `json:"events"`
}

// ============================================================================
// Handlers
// ============================================================================

// GetCurrentUsage godoc
//
//	@ID				getCurrentUsage
//	@Summary		Get current tenant usage
//	@Description	Get the current billing period's call and SMS usage for the authenticated tenant
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	APIResponse[meteringapp.UsageStatusDTO]
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/usage [get]
func (h *UsageHandler) GetCurrentUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in token")
		return
	}

	h.respondWithStatus(c, tenantID)
}

// GetUsageEvents godoc
//
//	@ID				getUsageEvents
//	@Summary		Get usage event history
//	@Description	List metered call and SMS events for the authenticated tenant, newest first
//	@Tags			usage
//	@Produce		json
//	@Param			from	query		string	false	"Window start (RFC 3339)"	example(2026-01-01T00:00:00Z)
//	@Param			to		query		string	false	"Window end (RFC 3339)"		example(2026-01-31T00:00:00Z)
//	@Success		200		{object}	APIResponse[UsageEventsResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/usage/events [get]
func (h *UsageHandler) GetUsageEvents(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in token")
		return
	}

	// Default window is the trailing 30 days
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.BadRequest(c, "Invalid from timestamp. Use RFC 3339 format")
			return
		}
		from = parsed
	}
	if toStr := c.Query("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.BadRequest(c, "Invalid to timestamp. Use RFC 3339 format")
			return
		}
		to = parsed
	}
	if from.After(to) {
		h.BadRequest(c, "from must be before to")
		return
	}

	events, err := h.eventRepo.FindByTenant(c.Request.Context(), tenantID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]UsageEventItem, 0, len(events))
	for _, event := range events {
		item := UsageEventItem{
			ID:         event.ID.String(),
			Kind:       string(event.Kind),
			Quantity:   event.Quantity,
			SourceID:   event.SourceID,
			RecordedAt: event.RecordedAt.UTC().Format(time.RFC3339),
		}
		if !event.Cost.IsZero() {
			item.Cost = event.Cost.String()
		}
		items = append(items, item)
	}

	h.Success(c, UsageEventsResponse{
		TenantID: tenantID.String(),
		From:     from.Format(time.RFC3339),
		To:       to.Format(time.RFC3339),
		Events:   items,
	})
}

// GetTenantUsageByAdmin godoc
//
//	@ID				getTenantUsageByAdmin
//	@Summary		Get tenant usage (admin)
//	@Description	Admin endpoint to view the usage ledger for a specific tenant
//	@Tags			usage
//	@Produce		json
//	@Param			id	path		string	true	"Tenant ID"
//	@Success		200	{object}	APIResponse[meteringapp.UsageStatusDTO]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/usage [get]
func (h *UsageHandler) GetTenantUsageByAdmin(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	h.respondWithStatus(c, tenantID)
}

func (h *UsageHandler) respondWithStatus(c *gin.Context, tenantID uuid.UUID) {
	status, err := h.statusService.GetStatus(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Tenant not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, status)
}
