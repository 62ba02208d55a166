package notification

import (
	"context"
	"log/slog"
)

const (
	// KindWithdrawalSettled indicates a withdrawal hold was approved or rejected.
	KindWithdrawalSettled = "withdrawal_settled"
	// KindPrizePaid indicates a game payout landed in the wallet.
	KindPrizePaid = "prize_paid"
	// KindOrderFilled indicates a marketplace sell order was bought.
	KindOrderFilled = "order_filled"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems. Push/toast delivery
// is out of scope for the core; this is the seam it hands off through.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
