package telegram

import (
	"context"
	"log/slog"

	"github.com/velikanov/calsec/internal/auth"
	"github.com/velikanov/calsec/internal/instrumentation"
	"github.com/velikanov/calsec/internal/logging"
)

// Notifier delivers messages to users from execution contexts outside the
// bot's polling loop, such as the OAuth callback HTTP handlers. Delivery
// failures are logged and swallowed: a lost confirmation must never crash
// the callback handler, and the user can always re-request state with
// /events.
type Notifier struct {
	client  *Client
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// NewNotifier creates a notifier on top of the Bot API client.
func NewNotifier(client *Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

// SetMetrics installs the recorder for delivery outcome counts.
func (n *Notifier) SetMetrics(m *instrumentation.Metrics) {
	n.metrics = m
}

// Notify sends a text message to the user, best effort.
func (n *Notifier) Notify(user auth.UserID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := n.client.SendMessage(ctx, int64(user), text); err != nil {
		n.logger.Warn("notification delivery failed",
			logging.UserID(int64(user)),
			logging.Err(err),
		)
		n.record(ctx, instrumentation.DeliveryFailure)
		return
	}
	n.record(ctx, instrumentation.DeliverySuccess)
}

func (n *Notifier) record(ctx context.Context, result string) {
	if n.metrics != nil {
		n.metrics.RecordNotificationDelivery(ctx, result)
	}
}
