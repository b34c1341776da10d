package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/frontdesk/backend/internal/infrastructure/config"
)

// maxSMSResponseSize limits the provider response body size
const maxSMSResponseSize = 1 << 20 // 1MB

// HTTPSMSSender delivers messages through the telephony provider's REST API.
// It implements the metering application's SMSSender port.
type HTTPSMSSender struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPSMSSender creates a sender against the configured provider endpoint
func NewHTTPSMSSender(cfg config.SMSConfig, logger *zap.Logger) (*HTTPSMSSender, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("sms: base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sms: API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &HTTPSMSSender{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

type sendMessageRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendMessageResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// Send posts one outbound message and returns the provider's message ID
func (s *HTTPSMSSender) Send(ctx context.Context, from, to, body string) (string, error) {
	payload, err := json.Marshal(sendMessageRequest{From: from, To: to, Body: body})
	if err != nil {
		return "", fmt.Errorf("sms: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("sms: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms: provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxSMSResponseSize))
	if err != nil {
		return "", fmt.Errorf("sms: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		s.logger.Warn("SMS provider rejected message",
			zap.Int("status", resp.StatusCode),
			zap.String("to", to),
		)
		return "", fmt.Errorf("sms: provider returned HTTP %d", resp.StatusCode)
	}

	var result sendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("sms: failed to decode response: %w", err)
	}
	if result.MessageID == "" {
		return "", fmt.Errorf("sms: provider response missing message ID")
	}

	return result.MessageID, nil
}

// LoggingSMSSender logs outbound messages instead of delivering them.
// This is useful for development and testing.
type LoggingSMSSender struct {
	logger *zap.Logger
	seq    atomic.Int64
}

// NewLoggingSMSSender creates a new logging sender
func NewLoggingSMSSender(logger *zap.Logger) *LoggingSMSSender {
	return &LoggingSMSSender{logger: logger}
}

// Send logs the message and returns a synthetic message ID
func (s *LoggingSMSSender) Send(_ context.Context, from, to, body string) (string, error) {
	id := fmt.Sprintf("dry_%d_%d", time.Now().Unix(), s.seq.Add(1))
	s.logger.Info("SMS dry run",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("body_length", len(body)),
		zap.String("message_id", id),
	)
	return id, nil
}
