// Package notify fans order alerts out to every staff member. One
// component serves both bot channels: the Sender chosen at wiring time
// decides whether alerts ride the dedicated notification bot or the main
// bot.
package notify

import (
	"context"
	"fmt"

	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/metrics"
	"github.com/otcdesk/exchange-desk-bot/models"
)

// Sender is one delivery channel.
type Sender interface {
	Send(chatID int64, text string, kb models.Keyboard) error
}

// StaffLister enumerates the fan-out recipients.
type StaffLister interface {
	ListStaff(ctx context.Context) ([]models.StaffRecord, error)
}

type Notifier struct {
	staff   StaffLister
	channel Sender
}

func NewNotifier(staff StaffLister, channel Sender) *Notifier {
	return &Notifier{staff: staff, channel: channel}
}

// NotifyNewOrder alerts all staff about a freshly created order with Take
// and View actions keyed by the order id.
func (n *Notifier) NotifyNewOrder(ctx context.Context, o *models.Order) {
	direction := "BUY"
	if o.Type == models.TypeSell {
		direction = "SELL"
	}
	text := fmt.Sprintf(
		"🆕 New %s order %s\n\n🔹 Token: %s (%s)\n🔹 Amount: %s\n\nFirst to take it owns it.",
		direction, o.ID, o.Coin, o.Symbol, o.Amount)

	kb := models.Keyboard{
		models.Row(
			models.Button{Text: "✋ Take", Data: models.CallbackTakePrefix + o.ID},
			models.Button{Text: "👁 View", Data: models.CallbackViewPrefix + o.ID},
		),
	}
	n.Broadcast(ctx, text, kb)
}

// Broadcast attempts delivery to every staff member independently. One
// failed recipient never blocks the rest; only aggregate counts are
// logged, nothing is surfaced to the triggering customer.
func (n *Notifier) Broadcast(ctx context.Context, text string, kb models.Keyboard) {
	staff, err := n.staff.ListStaff(ctx)
	if err != nil {
		logger.Error("fan-out aborted, cannot list staff", "err", err)
		return
	}

	var sent, failed int
	for _, rec := range staff {
		if err := n.channel.Send(rec.ID, text, kb); err != nil {
			failed++
			metrics.NotificationsFailed.Inc()
			if IsChatNotFound(err) {
				logger.Warn("staff chat unreachable, record may be stale", "staff", rec.ID)
			} else {
				logger.Warn("notification delivery failed", "staff", rec.ID, "err", err)
			}
			continue
		}
		sent++
		metrics.NotificationsSent.Inc()
	}
	logger.Info("fan-out done", "sent", sent, "failed", failed)
}
