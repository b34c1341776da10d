package handler

import (
	"errors"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/frontdesk/backend/internal/interfaces/http/dto"
	"github.com/frontdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ReminderHandler handles appointment-reminder SMS requests for the
// authenticated tenant
type ReminderHandler struct {
	BaseHandler
	dispatchService *meteringapp.ReminderDispatchService
}

// NewReminderHandler creates a new ReminderHandler
func NewReminderHandler(dispatchService *meteringapp.ReminderDispatchService) *ReminderHandler {
	return &ReminderHandler{
		dispatchService: dispatchService,
	}
}

// SendReminderRequest is one outbound reminder
//
//	@Description	Appointment reminder send request
type SendReminderRequest struct {
	To   string `json:"to" binding:"required" example:"+15551234567"`
	Body string `json:"body" binding:"required" example:"Reminder: your appointment is tomorrow at 2pm"`
}

// SendReminder godoc
//
//	@ID				sendReminder
//	@Summary		Send an appointment reminder
//	@Description	Send one reminder SMS if the tenant's quota allows it. Denied sends consume nothing.
//	@Tags			reminders
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SendReminderRequest	true	"Recipient and message body"
//	@Success		200		{object}	APIResponse[meteringapp.ReminderResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse	"Quota exhausted or tenant paused"
//	@Security		BearerAuth
//	@Router			/reminders [post]
func (h *ReminderHandler) SendReminder(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in token")
		return
	}

	var req SendReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.dispatchService.Dispatch(c.Request.Context(), &meteringapp.ReminderRequest{
		TenantID: tenantID,
		To:       req.To,
		Body:     req.Body,
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, "Tenant not found")
			return
		}
		h.HandleError(c, err)
		return
	}

	if !result.Sent {
		code := dto.ErrCodeUsageLimitReached
		message := "SMS quota exhausted for the current billing period"
		if result.DeniedReason == metering.GateDeniedAdminPause {
			code = dto.ErrCodePausedByAdmin
			message = "Account is paused by an administrator"
		}
		h.ErrorWithCode(c, code, message)
		return
	}

	h.Success(c, result)
}
