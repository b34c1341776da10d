package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/frontdesk/backend/internal/domain/identity"
	"github.com/frontdesk/backend/internal/domain/metering"
	"github.com/frontdesk/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postReminder(t *testing.T, h *ReminderHandler, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	router := gin.New()
	router.POST("/reminders", func(c *gin.Context) {
		if tenantID != "" {
			c.Set(middleware.JWTTenantIDKey, tenantID)
		}
		h.SendReminder(c)
	})

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/reminders", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedLedger(t *testing.T, f *meteringFixture, tenant *identity.Tenant, mutate func(*metering.UsageLedger)) {
	t.Helper()
	catalog := metering.NewPlanCatalog()
	tier := catalog.ResolveTier(tenant.PlanTier)
	ledger, err := metering.NewUsageLedger(tenant.ID, tier, catalog.Entitlement(tenant.PlanTier), nil)
	require.NoError(t, err)
	if mutate != nil {
		mutate(ledger)
	}
	require.NoError(t, f.ledgerRepo.Create(t.Context(), ledger))
}

func TestReminderHandler_SendsWithinQuota(t *testing.T) {
	tenant := newReceptionTenant(t, "Dental Clinic", "starter", "agent_1", "+15550001111")
	f := newMeteringFixture(tenant)
	h := NewReminderHandler(f.reminder)

	w := postReminder(t, h, tenant.ID.String(), SendReminderRequest{
		To:   "+15559998888",
		Body: "Reminder: appointment tomorrow at 2pm",
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Sent         bool   `json:"sent"`
			MessageID    string `json:"message_id"`
			RemainingSMS int64  `json:"remaining_sms"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Sent)
	assert.Equal(t, "msg_test_1", resp.Data.MessageID)
	assert.Equal(t, int64(149), resp.Data.RemainingSMS)

	assert.Equal(t, []string{"+15559998888"}, f.sender.sent)

	ledger, err := f.ledgerRepo.FindByTenant(t.Context(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ledger.SMSUsed)
}

func TestReminderHandler_QuotaExhausted(t *testing.T) {
	tenant := newReceptionTenant(t, "Dental Clinic", "starter", "agent_1", "+15550001111")
	f := newMeteringFixture(tenant)
	seedLedger(t, f, tenant, func(l *metering.UsageLedger) {
		l.SMSUsed = l.SMSCap
	})
	h := NewReminderHandler(f.reminder)

	w := postReminder(t, h, tenant.ID.String(), SendReminderRequest{
		To:   "+15559998888",
		Body: "Reminder",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_USAGE_LIMIT_REACHED")
	assert.Empty(t, f.sender.sent)
}

func TestReminderHandler_AdminPaused(t *testing.T) {
	tenant := newReceptionTenant(t, "Dental Clinic", "starter", "agent_1", "+15550001111")
	f := newMeteringFixture(tenant)
	seedLedger(t, f, tenant, func(l *metering.UsageLedger) {
		l.ForcePauseByAdmin()
	})
	h := NewReminderHandler(f.reminder)

	w := postReminder(t, h, tenant.ID.String(), SendReminderRequest{
		To:   "+15559998888",
		Body: "Reminder",
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_PAUSED_BY_ADMIN")
	assert.Empty(t, f.sender.sent)
}

func TestReminderHandler_MissingTenant(t *testing.T) {
	f := newMeteringFixture()
	h := NewReminderHandler(f.reminder)

	w := postReminder(t, h, "", SendReminderRequest{To: "+15559998888", Body: "Reminder"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReminderHandler_MissingFields(t *testing.T) {
	middleware.SetupValidator()
	tenant := newReceptionTenant(t, "Dental Clinic", "starter", "agent_1", "+15550001111")
	f := newMeteringFixture(tenant)
	h := NewReminderHandler(f.reminder)

	w := postReminder(t, h, tenant.ID.String(), map[string]any{"to": "+15559998888"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Request validation failed")
	assert.Contains(t, w.Body.String(), "body")
}

func TestReminderHandler_SenderFailure(t *testing.T) {
	tenant := newReceptionTenant(t, "Dental Clinic", "starter", "agent_1", "+15550001111")
	f := newMeteringFixture(tenant)
	f.sender.err = errSenderDown
	h := NewReminderHandler(f.reminder)

	w := postReminder(t, h, tenant.ID.String(), SendReminderRequest{
		To:   "+15559998888",
		Body: "Reminder",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	// A failed send consumes no quota
	ledger, err := f.ledgerRepo.FindByTenant(t.Context(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ledger.SMSUsed)
}
