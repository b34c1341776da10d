package handler

import (
	"errors"

	meteringapp "github.com/frontdesk/backend/internal/application/metering"
	"github.com/frontdesk/backend/internal/domain/shared"
	"github.com/frontdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminUsageHandler handles operator overrides on tenant usage ledgers.
// All routes require an admin token.
type AdminUsageHandler struct {
	BaseHandler
	overrideService *meteringapp.AdminOverrideService
}

// NewAdminUsageHandler creates a new AdminUsageHandler
func NewAdminUsageHandler(overrideService *meteringapp.AdminOverrideService) *AdminUsageHandler {
	return &AdminUsageHandler{
		overrideService: overrideService,
	}
}

// ============================================================================
// Request/Response DTOs
// ============================================================================

// OverrideRequest carries the operator's reason for a pause or resume
//
//	@Description	Operator override request
type OverrideRequest struct {
	Reason string `json:"reason" binding:"required" example:"billing dispute under review"`
}

// GrantCreditRequest carries a manual credit grant
//
//	@Description	Manual credit grant request
type GrantCreditRequest struct {
	CallSeconds int64  `json:"call_seconds" binding:"min=0" example:"1800"`
	SMSCount    int64  `json:"sms_count" binding:"min=0" example:"100"`
	Reason      string `json:"reason" binding:"required" example:"goodwill credit after outage"`
}

// OverrideResponse confirms an applied override
//
//	@Description	Applied override confirmation
type OverrideResponse struct {
	TenantID string `json:"tenant_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Action   string `json:"action" example:"force_pause"`
}

// ============================================================================
// Handlers
// ============================================================================

// ListTenants godoc
//
//	@ID				listTenants
//	@Summary		List tenant accounts (admin)
//	@Description	Page through tenant accounts with optional keyword search
//	@Tags			admin
//	@Produce		json
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Param			search		query		string	false	"Keyword matched against name, agent ID and SMS number"
//	@Param			order_by	query		string	false	"Sort field"
//	@Param			order_dir	query		string	false	"Sort direction (asc|desc)"
//	@Success		200	{object}	APIResponse[[]meteringapp.TenantSummary]
//	@Failure		400	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants [get]
func (h *AdminUsageHandler) ListTenants(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid list parameters")
		return
	}

	filter := shared.DefaultFilter()
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.OrderBy = req.OrderBy
	filter.OrderDir = req.OrderDir
	filter.Search = req.Search

	tenants, total, err := h.overrideService.ListTenants(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, tenants, total, req.Page, req.PageSize)
}

// ForcePause godoc
//
//	@ID				forcePauseTenant
//	@Summary		Force-pause a tenant (admin)
//	@Description	Hard-stop a tenant's agent regardless of remaining quota
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Tenant ID"
//	@Param			request	body		OverrideRequest	true	"Override reason"
//	@Success		200		{object}	APIResponse[OverrideResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/force-pause [post]
func (h *AdminUsageHandler) ForcePause(c *gin.Context) {
	tenantID, req, ok := h.bindOverride(c)
	if !ok {
		return
	}

	if err := h.overrideService.ForcePause(c.Request.Context(), tenantID, getActor(c), req.Reason); err != nil {
		h.handleOverrideError(c, err)
		return
	}

	h.Success(c, OverrideResponse{TenantID: tenantID.String(), Action: "force_pause"})
}

// ForceResume godoc
//
//	@ID				forceResumeTenant
//	@Summary		Force-resume a tenant (admin)
//	@Description	Unblock a tenant immediately, overriding an exhausted quota
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Tenant ID"
//	@Param			request	body		OverrideRequest	true	"Override reason"
//	@Success		200		{object}	APIResponse[OverrideResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/force-resume [post]
func (h *AdminUsageHandler) ForceResume(c *gin.Context) {
	tenantID, req, ok := h.bindOverride(c)
	if !ok {
		return
	}

	if err := h.overrideService.ForceResume(c.Request.Context(), tenantID, getActor(c), req.Reason); err != nil {
		h.handleOverrideError(c, err)
		return
	}

	h.Success(c, OverrideResponse{TenantID: tenantID.String(), Action: "force_resume"})
}

// GrantCredit godoc
//
//	@ID				grantCredit
//	@Summary		Grant manual credit (admin)
//	@Description	Apply a manual topup credit to a tenant outside the payment flow
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Tenant ID"
//	@Param			request	body		GrantCreditRequest	true	"Credit amounts and reason"
//	@Success		200		{object}	APIResponse[OverrideResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/tenants/{id}/credit [post]
func (h *AdminUsageHandler) GrantCredit(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return
	}

	var req GrantCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid credit request")
		return
	}
	if req.CallSeconds == 0 && req.SMSCount == 0 {
		h.BadRequest(c, "Credit must include call seconds or SMS count")
		return
	}

	if err := h.overrideService.GrantCredit(c.Request.Context(), tenantID, req.CallSeconds, req.SMSCount, getActor(c), req.Reason); err != nil {
		h.handleOverrideError(c, err)
		return
	}

	h.Success(c, OverrideResponse{TenantID: tenantID.String(), Action: "grant_credit"})
}

// bindOverride parses the tenant ID path param and the override body
func (h *AdminUsageHandler) bindOverride(c *gin.Context) (uuid.UUID, *OverrideRequest, bool) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID format")
		return uuid.Nil, nil, false
	}

	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Override reason is required")
		return uuid.Nil, nil, false
	}

	return tenantID, &req, true
}

func (h *AdminUsageHandler) handleOverrideError(c *gin.Context, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		h.NotFound(c, "Tenant not found")
		return
	}
	h.HandleError(c, err)
}
