package bot

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/metrics"
	"github.com/otcdesk/exchange-desk-bot/orders"
	"github.com/otcdesk/exchange-desk-bot/roles"
)

// NotificationRouter handles the dedicated notification channel. Only the
// take and view actions live here; everything else belongs to the main
// conversation and is ignored.
type NotificationRouter struct {
	svc   *orders.Service
	roles *roles.Resolver
	msg   Messenger
}

func NewNotificationRouter(svc *orders.Service, resolver *roles.Resolver, msg Messenger) *NotificationRouter {
	return &NotificationRouter{svc: svc, roles: resolver, msg: msg}
}

// HandleUpdate processes one update from the notification bot.
func (n *NotificationRouter) HandleUpdate(ctx context.Context, upd Update) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.HandlerPanics.Inc()
			logger.Error("notification handler panicked", "user", upd.UserID, "panic", rec)
		}
	}()
	metrics.UpdatesProcessed.WithLabelValues("notification").Inc()

	if !upd.IsCallback() {
		return
	}

	switch {
	case strings.HasPrefix(upd.CallbackData, cbTakePrefix):
		n.onTake(ctx, upd, strings.TrimPrefix(upd.CallbackData, cbTakePrefix))
	case strings.HasPrefix(upd.CallbackData, cbViewPrefix):
		n.onView(ctx, upd, strings.TrimPrefix(upd.CallbackData, cbViewPrefix))
	default:
		n.answer(upd, "Open the main bot for that action.", false)
	}
}

func (n *NotificationRouter) onTake(ctx context.Context, upd Update, orderID string) {
	o, err := n.svc.Claim(ctx, orderID, upd.UserID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidState):
			n.answer(upd, "Too late — this order is no longer available.", true)
		case errors.Is(err, orders.ErrUnauthorized):
			n.answer(upd, "You're not allowed to take orders.", true)
		case errors.Is(err, orders.ErrNotFound):
			n.answer(upd, "That order no longer exists.", true)
		default:
			n.answer(upd, "Couldn't take the order, try again.", true)
		}
		return
	}
	n.answer(upd, "Order "+o.ID+" is yours!", false)
	n.send(upd.UserID, "✋ You took order "+o.ID+". Continue in the main bot to process it.")
}

func (n *NotificationRouter) onView(ctx context.Context, upd Update, orderID string) {
	if !n.roles.CanHandleCustomers(ctx, upd.UserID) {
		n.answer(upd, "Staff only.", true)
		return
	}
	o, err := n.svc.Get(ctx, orderID)
	if err != nil {
		n.answer(upd, "That order no longer exists.", true)
		return
	}
	n.answer(upd, "", false)
	n.send(upd.UserID, formatOrderDetails(o))
}

func (n *NotificationRouter) answer(upd Update, text string, alert bool) {
	if err := n.msg.AnswerCallback(upd.CallbackID, text, alert); err != nil {
		logger.Debug("notification callback ack failed", "err", err)
	}
}

func (n *NotificationRouter) send(userID int64, text string) {
	if err := n.msg.SendText(userID, text); err != nil {
		logger.Warn("notification reply not delivered", "user", userID, "err", err)
	}
}
