package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/orders"
	"github.com/otcdesk/exchange-desk-bot/validation"
)

func (r *Router) showMainMenu(ctx context.Context, upd Update, sess *models.Session) {
	sess.Step = models.StepMainMenu
	r.saveSession(ctx, sess)

	name := upd.FirstName
	if name == "" {
		name = "there"
	}
	r.sendMenu(upd.UserID, fmt.Sprintf("Hi %s! 👋 What would you like to do?", name), mainMenuKeyboard())
}

// startDraft begins a fresh buy or sell flow. Any staging left over from an
// abandoned draft is dropped first.
func (r *Router) startDraft(ctx context.Context, upd Update, sess *models.Session, t models.OrderType) {
	r.upsertUser(ctx, upd)
	sess.ClearDraft()
	sess.ClearFocus()
	sess.TransactionType = t
	sess.Step = models.StepSelectToken
	r.saveSession(ctx, sess)

	verb := "buy"
	if t == models.TypeSell {
		verb = "sell"
	}
	r.sendMenu(upd.UserID, fmt.Sprintf(
		"Which token would you like to %s?\nPick one below, or send a contract address (0x…).", verb),
		tokenKeyboard())
}

// onTokenPick handles a catalog selection, via button or via the exact
// "SYM - Name" text.
func (r *Router) onTokenPick(ctx context.Context, upd Update, sess *models.Session, symbol string) {
	if sess.Step != models.StepSelectToken {
		r.sendText(upd.UserID, "Start a new order from the menu first.")
		r.showMainMenu(ctx, upd, sess)
		return
	}
	token, ok := models.FindToken(symbol)
	if !ok {
		r.sendText(upd.UserID, "That token is not in the catalog. Pick one from the list or send a contract address.")
		return
	}
	sess.Coin = token.Name
	sess.Symbol = token.Symbol
	sess.ContractAddress = token.ContractAddress
	sess.Step = models.StepEnterAmount
	r.saveSession(ctx, sess)

	r.sendText(upd.UserID, fmt.Sprintf("How much %s? Send the amount as a number.", token.Symbol))
}

// onSelectTokenText handles free text while selecting a token: a valid
// contract address becomes an ad-hoc CUSTOM token, anything else re-prompts
// without advancing.
func (r *Router) onSelectTokenText(ctx context.Context, upd Update, sess *models.Session) {
	text := strings.TrimSpace(upd.Text)
	if !validation.IsValidContractAddress(text) {
		r.sendText(upd.UserID, "That doesn't look like a token. Pick one from the list, or send a contract address like 0x followed by 40 hex characters.")
		return
	}
	sess.Coin = models.CustomSymbol
	sess.Symbol = models.CustomSymbol
	sess.ContractAddress = text
	sess.Step = models.StepEnterAmount
	r.saveSession(ctx, sess)

	r.sendText(upd.UserID, "Custom token accepted. How much? Send the amount as a number.")
}

// onAmountText accepts a positive decimal amount; anything else re-prompts
// at the same step.
func (r *Router) onAmountText(ctx context.Context, upd Update, sess *models.Session) {
	text := strings.TrimSpace(upd.Text)
	if !validation.IsValidAmount(text) {
		r.sendText(upd.UserID, "Please send a positive number, like 100 or 3.14.")
		return
	}
	sess.Amount = text
	sess.Step = models.StepConfirmTransaction
	r.saveSession(ctx, sess)
	r.promptConfirm(ctx, upd.UserID, sess)
}

func (r *Router) promptConfirm(_ context.Context, userID int64, sess *models.Session) {
	summary := fmt.Sprintf(
		"Please confirm your order:\n\n🔹 Direction: %s\n🔹 Token: %s (%s)\n🔹 Amount: %s",
		strings.ToUpper(string(sess.TransactionType)), sess.Coin, sess.Symbol, sess.Amount)
	if sess.ContractAddress != "" {
		summary += "\n🔹 Contract: " + sess.ContractAddress
	}
	r.sendMenu(userID, summary, confirmKeyboard())
}

// confirmDraft turns the staged draft into a live order and clears the
// staging fields either way the creation goes.
func (r *Router) confirmDraft(ctx context.Context, upd Update, sess *models.Session) {
	if sess.Step != models.StepConfirmTransaction || sess.TransactionType == "" {
		r.sendText(upd.UserID, "There's no draft to confirm. Start from the menu.")
		r.showMainMenu(ctx, upd, sess)
		return
	}

	draft := orders.Draft{
		Type:            sess.TransactionType,
		Coin:            sess.Coin,
		Symbol:          sess.Symbol,
		Amount:          sess.Amount,
		ContractAddress: sess.ContractAddress,
	}
	o, err := r.svc.Create(ctx, upd.UserID, draft)
	if err != nil {
		if errors.Is(err, orders.ErrValidation) {
			r.sendText(upd.UserID, "⚠️ "+err.Error())
		} else {
			r.sendText(upd.UserID, "😔 We couldn't create your order, please try again.")
		}
		sess.ClearDraft()
		r.showMainMenu(ctx, upd, sess)
		return
	}

	sess.ClearDraft()
	sess.Step = models.StepMainMenu
	r.saveSession(ctx, sess)
	r.sendMenu(upd.UserID, fmt.Sprintf(
		"✅ Order %s created!\n\nOur staff has been alerted; you'll hear from an agent shortly. Track it under My Orders.", o.ID),
		mainMenuKeyboard())
}

// showMyOrders lists the customer's orders, each with its next-step action.
func (r *Router) showMyOrders(ctx context.Context, upd Update) {
	list, err := r.svc.ListForUser(ctx, upd.UserID)
	if err != nil {
		r.sendText(upd.UserID, "Couldn't load your orders right now, please try again.")
		return
	}
	if len(list) == 0 {
		r.sendText(upd.UserID, "You have no orders yet. Start one from the menu!")
		return
	}

	for i := range list {
		o := &list[i]
		text := formatOrderDetails(o) + "\n" + customerInstructions(o)

		var kb models.Keyboard
		switch o.Status {
		case models.StatusWaitingPayment:
			kb = append(kb, models.Row(models.Button{Text: "📤 Submit Payment Hash", Data: cbHashPrefix + o.ID}))
		case models.StatusWaitingTokens:
			kb = append(kb, models.Row(models.Button{Text: "📤 Submit Transfer Hash", Data: cbHashPrefix + o.ID}))
		}
		if !o.Status.Terminal() {
			kb = append(kb, models.Row(models.Button{Text: "💬 Chat with support", Data: cbSupportPrefix + o.ID}))
		}
		r.sendMenu(upd.UserID, text, kb)
	}
}

// onEnterHash parks the customer at the matching hash-entry step for the
// focused order.
func (r *Router) onEnterHash(ctx context.Context, upd Update, sess *models.Session, orderID string) {
	o, err := r.svc.Get(ctx, orderID)
	if err != nil {
		r.sendText(upd.UserID, "That order no longer exists.")
		return
	}
	if o.UserID != upd.UserID {
		r.sendText(upd.UserID, "⛔️ That's not your order.")
		return
	}

	switch o.Status {
	case models.StatusWaitingPayment:
		sess.Step = models.StepEnterPaymentHash
	case models.StatusWaitingTokens:
		sess.Step = models.StepEnterTokenHash
	default:
		r.sendText(upd.UserID, "This order isn't waiting for a hash right now.")
		return
	}
	sess.FocusKind = models.FocusCustomerOrder
	sess.FocusOrderID = orderID
	r.saveSession(ctx, sess)

	r.sendText(upd.UserID, "Send the transaction hash (0x followed by 64 hex characters).")
}

// onHashText consumes the next message as a transaction hash. A malformed
// hash re-prompts without advancing; service rejections reset to the menu.
func (r *Router) onHashText(ctx context.Context, upd Update, sess *models.Session) {
	hash := strings.TrimSpace(upd.Text)
	if !validation.IsValidTxHash(hash) {
		r.sendText(upd.UserID, "That hash doesn't look right. It should be 0x followed by exactly 64 hex characters.")
		return
	}
	if sess.FocusKind != models.FocusCustomerOrder || sess.FocusOrderID == "" {
		r.sendText(upd.UserID, "I lost track of which order this was for. Open My Orders and try again.")
		r.showMainMenu(ctx, upd, sess)
		return
	}

	err := r.svc.SubmitHash(ctx, sess.FocusOrderID, upd.UserID, hash)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			r.sendText(upd.UserID, "That order no longer exists.")
		case errors.Is(err, orders.ErrUnauthorized):
			r.sendText(upd.UserID, "⛔️ That's not your order.")
		case errors.Is(err, orders.ErrInvalidState):
			r.sendText(upd.UserID, "This order isn't waiting for a hash right now.")
		default:
			r.sendText(upd.UserID, "😔 Couldn't record the hash, please try again.")
			return // keep the step so the customer can resend
		}
	} else {
		r.sendText(upd.UserID, "✅ Hash received! The agent will verify your transaction shortly.")
	}

	sess.ClearFocus()
	sess.Step = models.StepMainMenu
	r.saveSession(ctx, sess)
}
