package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/orders"
	"github.com/otcdesk/exchange-desk-bot/roles"
)

const ordersPerPage = 5

func (r *Router) showAdminPanel(ctx context.Context, upd Update, sess *models.Session, role roles.Role) {
	sess.Step = models.StepAdminPanel
	sess.ClearFocus()
	r.saveSession(ctx, sess)

	admin := role.Kind == roles.KindAdmin || role.Kind == roles.KindSuperAdmin
	r.sendMenu(upd.UserID, "🛠 Admin panel — what do you need?", adminPanelKeyboard(admin))
}

// showOrdersPage renders one page of all orders, newest first, five per
// page, with per-order actions and pagination.
func (r *Router) showOrdersPage(ctx context.Context, upd Update, page int) {
	list, err := r.svc.ListPage(ctx, page, ordersPerPage)
	if err != nil {
		r.sendText(upd.UserID, "Couldn't load orders, please try again.")
		return
	}
	if len(list) == 0 && page == 0 {
		r.sendText(upd.UserID, "No orders yet.")
		return
	}
	if len(list) == 0 {
		r.sendText(upd.UserID, "No more orders.")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📦 Orders — page %d\n\n", page+1)
	var kb models.Keyboard
	for i := range list {
		o := &list[i]
		b.WriteString(formatOrderLine(o) + "\n")
		// the label text also routes on its own, for clients that echo
		// button labels back as plain messages
		row := models.Row(models.Button{Text: "Manage #" + o.ID, Data: cbViewPrefix + o.ID})
		if o.Status == models.StatusPending {
			row = append(row, models.Button{Text: "✋ Take", Data: cbTakePrefix + o.ID})
		}
		kb = append(kb, row)
	}

	var nav []models.Button
	if page > 0 {
		nav = append(nav, models.Button{Text: "⬅️ Prev", Data: fmt.Sprintf("%s%d", cbPagePrefix, page-1)})
	}
	if len(list) == ordersPerPage {
		nav = append(nav, models.Button{Text: "Next ➡️", Data: fmt.Sprintf("%s%d", cbPagePrefix, page+1)})
	}
	if len(nav) > 0 {
		kb = append(kb, nav)
	}
	kb = append(kb, models.Row(models.Button{Text: btnAdminHome, Data: cbAdminPanel}))

	r.sendMenu(upd.UserID, b.String(), kb)
}

func (r *Router) onTakeOrder(ctx context.Context, upd Update, orderID string) {
	o, err := r.svc.Claim(ctx, orderID, upd.UserID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			r.sendText(upd.UserID, "That order no longer exists.")
		case errors.Is(err, orders.ErrInvalidState):
			r.sendText(upd.UserID, "⚠️ This order is no longer available — someone else took it.")
		case errors.Is(err, orders.ErrUnauthorized):
			r.sendText(upd.UserID, "⛔️ You're not allowed to take orders.")
		default:
			r.sendText(upd.UserID, "😔 Couldn't take the order, please try again.")
		}
		return
	}
	r.sendText(upd.UserID, fmt.Sprintf("✋ Order %s is yours.", o.ID))
	r.showOrderForStaff(ctx, upd, orderID)
}

// showOrderForStaff renders the full order card with the actions the
// caller may currently take on it.
func (r *Router) showOrderForStaff(ctx context.Context, upd Update, orderID string) {
	o, err := r.svc.Get(ctx, orderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		return
	}

	var kb models.Keyboard
	mine := o.AssignedStaff == upd.UserID
	switch {
	case o.Status == models.StatusPending:
		kb = append(kb, models.Row(models.Button{Text: "✋ Take", Data: cbTakePrefix + o.ID}))
	case mine && o.Status == models.StatusInProgress && o.Type == models.TypeBuy:
		kb = append(kb, models.Row(models.Button{Text: "💳 Set Payment Address", Data: cbPaymentPrefix + o.ID}))
	case mine && o.Status == models.StatusInProgress && o.Type == models.TypeSell:
		kb = append(kb, models.Row(models.Button{Text: "📥 Set Receiving Wallet", Data: cbWalletPrefix + o.ID}))
	}
	if mine && !o.Status.Terminal() {
		kb = append(kb, models.Row(
			models.Button{Text: "✅ Complete", Data: cbCompletePrefix + o.ID},
			models.Button{Text: "❌ Cancel", Data: cbCancelPrefix + o.ID},
		))
		kb = append(kb, models.Row(models.Button{Text: "💬 Chat with customer", Data: cbChatPrefix + o.ID}))
	}
	kb = append(kb, models.Row(models.Button{Text: btnAdminHome, Data: cbAdminPanel}))

	r.sendMenu(upd.UserID, formatOrderDetails(o), kb)
}

// onEnterAddress parks the staff member at the address-entry step: the
// next free-text message is consumed as the order's address.
func (r *Router) onEnterAddress(ctx context.Context, upd Update, sess *models.Session, orderID string, payment bool) {
	o, err := r.svc.Get(ctx, orderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		return
	}
	if o.AssignedStaff != upd.UserID {
		r.sendText(upd.UserID, "⛔️ Only the assigned agent can set addresses for this order.")
		return
	}

	if payment {
		sess.Step = models.StepEnterPaymentAddress
	} else {
		sess.Step = models.StepEnterWalletAddress
	}
	sess.FocusKind = models.FocusStaffOrder
	sess.FocusOrderID = orderID
	r.saveSession(ctx, sess)

	what := "the payment address the customer should pay to"
	if !payment {
		what = "the wallet address the customer should send tokens to"
	}
	r.sendText(upd.UserID, fmt.Sprintf("Send %s (0x followed by 40 hex characters).", what))
}

// onAddressText consumes the next staff message as an address. A malformed
// address re-prompts at the same step with no order mutation.
func (r *Router) onAddressText(ctx context.Context, upd Update, sess *models.Session) {
	address := strings.TrimSpace(upd.Text)
	payment := sess.Step == models.StepEnterPaymentAddress

	if sess.FocusKind != models.FocusStaffOrder || sess.FocusOrderID == "" {
		r.sendText(upd.UserID, "I lost track of which order this was for. Open the order again.")
		sess.Step = models.StepAdminPanel
		r.saveSession(ctx, sess)
		return
	}

	var err error
	if payment {
		err = r.svc.AssignPaymentAddress(ctx, sess.FocusOrderID, upd.UserID, address)
	} else {
		err = r.svc.AssignReceivingAddress(ctx, sess.FocusOrderID, upd.UserID, address)
	}
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrValidation):
			// stay parked; the agent can immediately resend
			r.sendText(upd.UserID, "⚠️ That's not a valid address. Send 0x followed by 40 hex characters.")
			return
		case errors.Is(err, orders.ErrNotFound):
			r.sendText(upd.UserID, "That order no longer exists.")
		case errors.Is(err, orders.ErrUnauthorized):
			r.sendText(upd.UserID, "⛔️ Only the assigned agent can set addresses for this order.")
		case errors.Is(err, orders.ErrInvalidState):
			r.sendText(upd.UserID, "⚠️ This order isn't in a state that takes an address right now.")
		default:
			r.sendText(upd.UserID, "😔 Couldn't save the address, please try again.")
			return
		}
	} else {
		r.sendText(upd.UserID, "✅ Address saved and sent to the customer.")
	}

	sess.ClearFocus()
	sess.Step = models.StepAdminPanel
	r.saveSession(ctx, sess)
}

func (r *Router) onCompleteOrder(ctx context.Context, upd Update, orderID string) {
	if err := r.svc.Complete(ctx, orderID, upd.UserID); err != nil {
		r.sendText(upd.UserID, staffOrderErrorText(err))
		return
	}
	r.sendText(upd.UserID, fmt.Sprintf("✅ Order %s completed.", orderID))
}

func (r *Router) onCancelOrder(ctx context.Context, upd Update, orderID string) {
	if err := r.svc.Cancel(ctx, orderID, upd.UserID); err != nil {
		r.sendText(upd.UserID, staffOrderErrorText(err))
		return
	}
	r.sendText(upd.UserID, fmt.Sprintf("❌ Order %s cancelled.", orderID))
}

func staffOrderErrorText(err error) string {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return "That order no longer exists."
	case errors.Is(err, orders.ErrUnauthorized):
		return "⛔️ Only the assigned agent can do that."
	case errors.Is(err, orders.ErrInvalidState):
		return "⚠️ The order's current status doesn't allow that."
	default:
		return "😔 Something went wrong, please try again."
	}
}

func (r *Router) showStaffList(ctx context.Context, upd Update) {
	staff, err := r.store.ListStaff(ctx)
	if err != nil {
		r.sendText(upd.UserID, "Couldn't load the staff list, please try again.")
		return
	}
	r.sendText(upd.UserID, formatStaffList(staff))
}

// showStats degrades to partial numbers when a count fails, rather than
// refusing the whole view.
func (r *Router) showStats(ctx context.Context, upd Update) {
	counts, err := r.store.OrderStatusCounts(ctx)
	if err != nil {
		counts = map[models.OrderStatus]int64{}
	}
	users, _ := r.store.CountUsers(ctx)
	total, _ := r.store.CountOrders(ctx)
	r.sendText(upd.UserID, formatStats(counts, users, total))
}

func (r *Router) showActiveChats(ctx context.Context, upd Update) {
	chats, err := r.store.ListActiveChats(ctx)
	if err != nil {
		r.sendText(upd.UserID, "Couldn't load chats, please try again.")
		return
	}
	if len(chats) == 0 {
		r.sendText(upd.UserID, "No active chats.")
		return
	}

	var b strings.Builder
	b.WriteString("💬 Active chats:\n\n")
	var kb models.Keyboard
	for _, cs := range chats {
		assignee := "unassigned"
		if cs.StaffID != 0 {
			assignee = fmt.Sprintf("staff %d", cs.StaffID)
		}
		fmt.Fprintf(&b, "• %s | customer %d | %s | %s\n", cs.OrderID, cs.UserID, cs.Status, assignee)
		kb = append(kb, models.Row(models.Button{Text: "💬 " + cs.OrderID, Data: cbChatPrefix + cs.OrderID}))
	}
	kb = append(kb, models.Row(models.Button{Text: btnAdminHome, Data: cbAdminPanel}))
	r.sendMenu(upd.UserID, b.String(), kb)
}
