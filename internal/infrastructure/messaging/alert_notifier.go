package messaging

import (
	"context"

	"go.uber.org/zap"

	"github.com/frontdesk/backend/internal/domain/identity"
)

// LoggingAlertNotifier surfaces near-limit warnings in the service log.
// Operator-facing delivery (email, dashboard push) hangs off the same port.
type LoggingAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingAlertNotifier creates a new logging notifier
func NewLoggingAlertNotifier(logger *zap.Logger) *LoggingAlertNotifier {
	return &LoggingAlertNotifier{logger: logger}
}

// NotifyNearLimit logs the near-limit warning for the tenant
func (n *LoggingAlertNotifier) NotifyNearLimit(_ context.Context, tenant *identity.Tenant, usedSeconds, totalSeconds int64) error {
	n.logger.Warn("NEAR-LIMIT ALERT",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("tenant_name", tenant.Name),
		zap.String("plan_tier", tenant.PlanTier),
		zap.Int64("used_seconds", usedSeconds),
		zap.Int64("total_seconds", totalSeconds),
	)
	return nil
}
