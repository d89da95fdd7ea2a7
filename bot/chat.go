package bot

import (
	"context"
	"fmt"

	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/roles"
)

// onStartStaffChat parks a staff member in relay mode with the order's
// customer. Every following message is logged and forwarded until they
// navigate away.
func (r *Router) onStartStaffChat(ctx context.Context, upd Update, sess *models.Session, orderID string) {
	o, err := r.svc.Get(ctx, orderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		return
	}

	sess.Step = models.StepChattingWithUser
	sess.FocusKind = models.FocusChatOrder
	sess.FocusOrderID = orderID
	r.saveSession(ctx, sess)

	r.sendText(upd.UserID, fmt.Sprintf(
		"💬 You are now chatting with the customer of order %s. Everything you type is forwarded. Send /done to leave.", o.ID))
}

// onStaffChatText relays one staff message to the customer, under the
// staff persona.
func (r *Router) onStaffChatText(ctx context.Context, upd Update, sess *models.Session, role roles.Role) {
	if sess.FocusKind != models.FocusChatOrder || sess.FocusOrderID == "" {
		sess.Step = models.StepAdminPanel
		r.saveSession(ctx, sess)
		r.sendText(upd.UserID, "The chat ended. Pick an order to chat about from the panel.")
		return
	}
	o, err := r.svc.Get(ctx, sess.FocusOrderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		sess.ClearFocus()
		sess.Step = models.StepAdminPanel
		r.saveSession(ctx, sess)
		return
	}

	r.logMessage(ctx, o.ID, upd.UserID, models.SenderStaff, upd.Text)

	persona := "Support"
	if role.Profile != nil && role.Profile.DisplayName != "" {
		persona = role.Profile.DisplayName
	}
	r.sendText(o.UserID, fmt.Sprintf("💬 %s (order %s):\n%s", persona, o.ID, upd.Text))
}

// onStartSupportChat parks a customer in relay mode about one of their
// orders.
func (r *Router) onStartSupportChat(ctx context.Context, upd Update, sess *models.Session, orderID string) {
	o, err := r.svc.Get(ctx, orderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		return
	}
	if o.UserID != upd.UserID {
		r.sendText(upd.UserID, "⛔️ That's not your order.")
		return
	}

	sess.Step = models.StepChatWithSupport
	sess.FocusKind = models.FocusChatOrder
	sess.FocusOrderID = orderID
	r.saveSession(ctx, sess)

	r.sendText(upd.UserID, fmt.Sprintf(
		"💬 You're now chatting with support about order %s. Send /done when you're finished.", o.ID))
}

// onCustomerChatText relays one customer message to the assigned agent,
// or broadcasts it to all staff while the order is unclaimed.
func (r *Router) onCustomerChatText(ctx context.Context, upd Update, sess *models.Session) {
	if sess.FocusKind != models.FocusChatOrder || sess.FocusOrderID == "" {
		sess.Step = models.StepMainMenu
		r.saveSession(ctx, sess)
		r.sendText(upd.UserID, "The chat ended. Open My Orders to start a new one.")
		return
	}
	o, err := r.svc.Get(ctx, sess.FocusOrderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		sess.ClearFocus()
		sess.Step = models.StepMainMenu
		r.saveSession(ctx, sess)
		return
	}

	r.logMessage(ctx, o.ID, upd.UserID, models.SenderCustomer, upd.Text)

	text := fmt.Sprintf("💬 Customer (order %s):\n%s", o.ID, upd.Text)
	if o.AssignedStaff != 0 {
		r.sendText(o.AssignedStaff, text)
		return
	}
	// nobody owns the order yet; every staff member gets the message
	r.notifier.Broadcast(ctx, text, models.Keyboard{
		models.Row(models.Button{Text: "✋ Take", Data: cbTakePrefix + o.ID}),
	})
}

func (r *Router) logMessage(ctx context.Context, orderID string, senderID int64, senderType models.SenderType, body string) {
	err := r.store.AppendMessage(ctx, &models.ChatMessage{
		OrderID:    orderID,
		SenderID:   senderID,
		SenderType: senderType,
		Body:       body,
	})
	if err != nil {
		// the relay still goes through; the log is best effort
		logger.Warn("chat log write failed", "order", orderID, "err", err)
	}
}
