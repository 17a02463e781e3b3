// Package notification publishes user-facing events. Delivery is best effort:
// failures are logged and counted, never returned to the ledger paths.
package notification

import (
	"context"
	"log/slog"
)

const (
	KindDepositApproved         = "deposit_approved"
	KindDepositRejected         = "deposit_rejected"
	KindWithdrawalApproved      = "withdrawal_approved"
	KindWithdrawalRejected      = "withdrawal_rejected"
	KindSubscriptionDeactivated = "subscription_deactivated"
	KindReferralBonus           = "referral_bonus"
)

// Message describes a notification for a single user.
type Message struct {
	UserID  string         `json:"user_id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger. Used in development.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "user_id", message.UserID, "payload", message.Payload)
	return nil
}
