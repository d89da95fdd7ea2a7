// Package bot holds the conversation state machine: it maps inbound
// messages and button presses onto the menu flows and order operations,
// using the per-user session as the cursor between messages.
package bot

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/otcdesk/exchange-desk-bot/db"
	"github.com/otcdesk/exchange-desk-bot/logger"
	"github.com/otcdesk/exchange-desk-bot/metrics"
	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/notify"
	"github.com/otcdesk/exchange-desk-bot/orders"
	"github.com/otcdesk/exchange-desk-bot/roles"
)

// Router is the central dispatcher. Routing precedence: exact commands,
// then exact button labels, then catalog/manage text patterns, then the
// session-step handler, then the fallback menu.
type Router struct {
	store    *db.Store
	svc      *orders.Service
	roles    *roles.Resolver
	notifier *notify.Notifier
	msg      Messenger
	rng      *rand.Rand
}

func NewRouter(store *db.Store, svc *orders.Service, resolver *roles.Resolver,
	notifier *notify.Notifier, msg Messenger, rng *rand.Rand) *Router {
	return &Router{
		store:    store,
		svc:      svc,
		roles:    resolver,
		notifier: notifier,
		msg:      msg,
		rng:      rng,
	}
}

var (
	catalogPickRx = regexp.MustCompile(`^([A-Za-z0-9]{2,10}) - .+$`)
	manageOrderRx = regexp.MustCompile(`^Manage #(ORD-[A-Z0-9-]+)$`)
)

// HandleUpdate processes one inbound update. Whatever happens inside, the
// update loop survives: unexpected errors become an apology to the sender.
func (r *Router) HandleUpdate(ctx context.Context, upd Update) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.HandlerPanics.Inc()
			logger.Error("update handler panicked", "user", upd.UserID, "panic", rec)
			r.sendText(upd.UserID, "😔 Sorry, something went wrong on our side. Please try again.")
		}
	}()
	metrics.UpdatesProcessed.WithLabelValues("main").Inc()

	if upd.IsCallback() {
		// Acknowledge immediately so the client stops its spinner.
		if err := r.msg.AnswerCallback(upd.CallbackID, "", false); err != nil {
			logger.Debug("callback ack failed", "err", err)
		}
		sess := r.store.GetSession(ctx, upd.UserID)
		role := r.roles.Resolve(ctx, upd.UserID)
		r.dispatchAction(ctx, upd, sess, role, upd.CallbackData)
		return
	}
	r.handleText(ctx, upd)
}

func (r *Router) handleText(ctx context.Context, upd Update) {
	sess := r.store.GetSession(ctx, upd.UserID)
	role := r.roles.Resolve(ctx, upd.UserID)
	text := upd.Text

	// 1. exact commands
	if strings.HasPrefix(text, "/") {
		if r.handleCommand(ctx, upd, sess, role) {
			return
		}
	}

	// 2. exact button labels
	if action, ok := labelAction(text); ok {
		r.dispatchAction(ctx, upd, sess, role, action)
		return
	}

	// 3. text patterns: catalog picks and staff "Manage #" selections
	if m := catalogPickRx.FindStringSubmatch(text); m != nil && sess.Step == models.StepSelectToken {
		if _, known := models.FindToken(m[1]); known {
			r.dispatchAction(ctx, upd, sess, role, cbPickPrefix+m[1])
			return
		}
	}
	if m := manageOrderRx.FindStringSubmatch(text); m != nil && role.Kind != roles.KindNone {
		r.dispatchAction(ctx, upd, sess, role, cbViewPrefix+m[1])
		return
	}

	// 4. session-step handlers
	switch sess.Step {
	case models.StepSelectToken:
		r.onSelectTokenText(ctx, upd, sess)
		return
	case models.StepEnterAmount:
		r.onAmountText(ctx, upd, sess)
		return
	case models.StepConfirmTransaction:
		r.promptConfirm(ctx, upd.UserID, sess)
		return
	case models.StepEnterPaymentAddress, models.StepEnterWalletAddress:
		r.onAddressText(ctx, upd, sess)
		return
	case models.StepEnterPaymentHash, models.StepEnterTokenHash:
		r.onHashText(ctx, upd, sess)
		return
	case models.StepChattingWithUser:
		r.onStaffChatText(ctx, upd, sess, role)
		return
	case models.StepChatWithSupport:
		r.onCustomerChatText(ctx, upd, sess)
		return
	}

	// 5. fallback: staff land on the admin panel, customers on the menu
	if role.Kind != roles.KindNone {
		r.showAdminPanel(ctx, upd, sess, role)
		return
	}
	r.upsertUser(ctx, upd)
	r.sendText(upd.UserID, "I didn't catch that — use the menu below. 👇")
	r.showMainMenu(ctx, upd, sess)
}

// dispatchAction routes a callback payload (or a button label resolved to
// one) to its handler: first exact matches, then id-carrying prefixes.
func (r *Router) dispatchAction(ctx context.Context, upd Update, sess *models.Session, role roles.Role, action string) {
	switch action {
	case cbMainMenu:
		r.upsertUser(ctx, upd)
		sess.ClearDraft()
		sess.ClearFocus()
		r.showMainMenu(ctx, upd, sess)
		return
	case cbAdminPanel:
		if role.Kind == roles.KindNone {
			r.showMainMenu(ctx, upd, sess)
			return
		}
		r.showAdminPanel(ctx, upd, sess, role)
		return
	case cbBuy:
		r.startDraft(ctx, upd, sess, models.TypeBuy)
		return
	case cbSell:
		r.startDraft(ctx, upd, sess, models.TypeSell)
		return
	case cbTokens:
		r.sendText(upd.UserID, formatTokenList())
		return
	case cbMyOrders:
		r.showMyOrders(ctx, upd)
		return
	case cbHelp:
		if role.Kind != roles.KindNone {
			r.sendText(upd.UserID, staffHelp)
		} else {
			r.sendText(upd.UserID, customerHelp)
		}
		return
	case cbConfirm:
		r.confirmDraft(ctx, upd, sess)
		return
	case cbCancelDraft:
		sess.ClearDraft()
		r.sendText(upd.UserID, "Draft discarded.")
		r.showMainMenu(ctx, upd, sess)
		return
	case cbOrders:
		r.requireStaff(ctx, upd, role, func() { r.showOrdersPage(ctx, upd, 0) })
		return
	case cbChats:
		r.requireStaff(ctx, upd, role, func() { r.showActiveChats(ctx, upd) })
		return
	case cbStaff:
		r.requireAdmin(ctx, upd, role, func() { r.showStaffList(ctx, upd) })
		return
	case cbStats:
		r.requireAdmin(ctx, upd, role, func() { r.showStats(ctx, upd) })
		return
	}

	switch {
	case strings.HasPrefix(action, cbPickPrefix):
		r.onTokenPick(ctx, upd, sess, strings.TrimPrefix(action, cbPickPrefix))
	case strings.HasPrefix(action, cbPagePrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.showOrdersPage(ctx, upd, parsePage(strings.TrimPrefix(action, cbPagePrefix)))
		})
	case strings.HasPrefix(action, cbTakePrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.onTakeOrder(ctx, upd, strings.TrimPrefix(action, cbTakePrefix))
		})
	case strings.HasPrefix(action, cbViewPrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.showOrderForStaff(ctx, upd, strings.TrimPrefix(action, cbViewPrefix))
		})
	case strings.HasPrefix(action, cbPaymentPrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.onEnterAddress(ctx, upd, sess, strings.TrimPrefix(action, cbPaymentPrefix), true)
		})
	case strings.HasPrefix(action, cbWalletPrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.onEnterAddress(ctx, upd, sess, strings.TrimPrefix(action, cbWalletPrefix), false)
		})
	case strings.HasPrefix(action, cbCompletePrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.onCompleteOrder(ctx, upd, strings.TrimPrefix(action, cbCompletePrefix))
		})
	case strings.HasPrefix(action, cbCancelPrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.onCancelOrder(ctx, upd, strings.TrimPrefix(action, cbCancelPrefix))
		})
	case strings.HasPrefix(action, cbChatPrefix):
		r.requireStaff(ctx, upd, role, func() {
			r.onStartStaffChat(ctx, upd, sess, strings.TrimPrefix(action, cbChatPrefix))
		})
	case strings.HasPrefix(action, cbHashPrefix):
		r.onEnterHash(ctx, upd, sess, strings.TrimPrefix(action, cbHashPrefix))
	case strings.HasPrefix(action, cbSupportPrefix):
		r.onStartSupportChat(ctx, upd, sess, strings.TrimPrefix(action, cbSupportPrefix))
	default:
		logger.Debug("unknown action", "action", action, "user", upd.UserID)
	}
}

func (r *Router) requireStaff(ctx context.Context, upd Update, role roles.Role, fn func()) {
	if role.Kind == roles.KindNone {
		r.sendText(upd.UserID, "⛔️ This action is for staff only.")
		return
	}
	fn()
}

func (r *Router) requireAdmin(ctx context.Context, upd Update, role roles.Role, fn func()) {
	if role.Kind != roles.KindAdmin && role.Kind != roles.KindSuperAdmin {
		r.sendText(upd.UserID, "⛔️ This action is for admins only.")
		return
	}
	fn()
}

func (r *Router) upsertUser(ctx context.Context, upd Update) {
	err := r.store.UpsertUser(ctx, &models.User{
		ID:        upd.UserID,
		Username:  upd.Username,
		FirstName: upd.FirstName,
	})
	if err != nil {
		logger.Warn("user upsert failed", "user", upd.UserID, "err", err)
	}
}

func (r *Router) saveSession(ctx context.Context, sess *models.Session) {
	if err := r.store.PutSession(ctx, sess); err != nil {
		logger.Error("session write failed", "user", sess.UserID, "err", err)
	}
}

func (r *Router) sendText(userID int64, text string) {
	if err := r.msg.SendText(userID, text); err != nil {
		logger.Warn("reply not delivered", "user", userID, "err", err)
	}
}

func (r *Router) sendMenu(userID int64, text string, kb models.Keyboard) {
	if err := r.msg.SendMenu(userID, text, kb); err != nil {
		logger.Warn("menu not delivered", "user", userID, "err", err)
	}
}

func parsePage(s string) int {
	page := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		page = page*10 + int(c-'0')
	}
	return page
}
