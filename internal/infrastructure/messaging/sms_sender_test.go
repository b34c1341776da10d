package messaging

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/frontdesk/backend/internal/infrastructure/config"
)

func newTestSender(t *testing.T, baseURL string) *HTTPSMSSender {
	t.Helper()
	sender, err := NewHTTPSMSSender(config.SMSConfig{
		BaseURL:        baseURL,
		APIKey:         "test_api_key",
		TimeoutSeconds: 5,
	}, zap.NewNop())
	require.NoError(t, err)
	return sender
}

func TestHTTPSMSSender_Send(t *testing.T) {
	var gotAuth string
	var gotReq sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sendMessageResponse{MessageID: "msg_abc123", Status: "queued"})
	}))
	defer srv.Close()

	sender := newTestSender(t, srv.URL)

	id, err := sender.Send(t.Context(), "+15550001111", "+15559992222", "Reminder: appointment tomorrow at 10am")
	require.NoError(t, err)
	assert.Equal(t, "msg_abc123", id)
	assert.Equal(t, "Bearer test_api_key", gotAuth)
	assert.Equal(t, "+15550001111", gotReq.From)
	assert.Equal(t, "+15559992222", gotReq.To)
}

func TestHTTPSMSSender_Send_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid number"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	sender := newTestSender(t, srv.URL)

	_, err := sender.Send(t.Context(), "+15550001111", "not-a-number", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 422")
}

func TestHTTPSMSSender_Send_MissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer srv.Close()

	sender := newTestSender(t, srv.URL)

	_, err := sender.Send(t.Context(), "+15550001111", "+15559992222", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing message ID")
}

func TestNewHTTPSMSSender_RequiresConfig(t *testing.T) {
	_, err := NewHTTPSMSSender(config.SMSConfig{APIKey: "k"}, nil)
	assert.Error(t, err)

	_, err = NewHTTPSMSSender(config.SMSConfig{BaseURL: "https://sms.example.com"}, nil)
	assert.Error(t, err)
}

func TestLoggingSMSSender_Send(t *testing.T) {
	sender := NewLoggingSMSSender(zap.NewNop())

	first, err := sender.Send(t.Context(), "+15550001111", "+15559992222", "hello")
	require.NoError(t, err)
	second, err := sender.Send(t.Context(), "+15550001111", "+15559992222", "hello again")
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
