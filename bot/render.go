package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/otcdesk/exchange-desk-bot/models"
)

// Button labels. Text equal to a label routes the same as pressing the
// button, so the menus keep working for clients that echo labels back as
// plain text.
const (
	btnBuy       = "🛒 Buy Crypto"
	btnSell      = "💰 Sell Crypto"
	btnTokens    = "🪙 Available Tokens"
	btnMyOrders  = "📋 My Orders"
	btnHelp      = "❓ Help"
	btnConfirm   = "✅ Confirm Transaction"
	btnCancel    = "❌ Cancel"
	btnMainMenu  = "🏠 Main Menu"
	btnOrders    = "📦 View Orders"
	btnChats     = "💬 Active Chats"
	btnStaff     = "👥 Manage Staff"
	btnStats     = "📊 Statistics"
	btnAdminHome = "🏠 Admin Panel"
)

// Callback payloads. Prefixed entries carry an order id after the colon.
const (
	cbBuy         = "buy"
	cbSell        = "sell"
	cbTokens      = "tokens"
	cbMyOrders    = "my_orders"
	cbHelp        = "help"
	cbMainMenu    = "main_menu"
	cbAdminPanel  = "admin_panel"
	cbConfirm     = "confirm_order"
	cbCancelDraft = "cancel_draft"
	cbOrders      = "orders"
	cbChats       = "chats"
	cbStaff       = "staff"
	cbStats       = "stats"

	cbPickPrefix     = "pick:"
	cbTakePrefix     = models.CallbackTakePrefix
	cbViewPrefix     = models.CallbackViewPrefix
	cbPaymentPrefix  = "payment:"
	cbWalletPrefix   = "wallet:"
	cbCompletePrefix = "complete:"
	cbCancelPrefix   = "cancel:"
	cbChatPrefix     = "chat:"
	cbHashPrefix     = "hash:"
	cbSupportPrefix  = "support:"
	cbPagePrefix     = "page:"
)

// labelActions maps exact button-label text onto the matching callback
// payload. Labels are matched with and without their emoji prefix.
var labelActions = map[string]string{
	"Buy Crypto":          cbBuy,
	"Sell Crypto":         cbSell,
	"Available Tokens":    cbTokens,
	"My Orders":           cbMyOrders,
	"Help":                cbHelp,
	"Confirm Transaction": cbConfirm,
	"Cancel":              cbCancelDraft,
	"Main Menu":           cbMainMenu,
	"View Orders":         cbOrders,
	"Active Chats":        cbChats,
	"Manage Staff":        cbStaff,
	"Statistics":          cbStats,
	"Admin Panel":         cbAdminPanel,
}

// labelAction resolves exact button-label text to its callback payload.
func labelAction(text string) (string, bool) {
	if action, ok := labelActions[text]; ok {
		return action, true
	}
	// tolerate the emoji-prefixed form of the same label
	if idx := strings.IndexByte(text, ' '); idx > 0 {
		if action, ok := labelActions[text[idx+1:]]; ok {
			return action, true
		}
	}
	return "", false
}

func mainMenuKeyboard() models.Keyboard {
	return models.Keyboard{
		models.Row(
			models.Button{Text: btnBuy, Data: cbBuy},
			models.Button{Text: btnSell, Data: cbSell},
		),
		models.Row(
			models.Button{Text: btnTokens, Data: cbTokens},
			models.Button{Text: btnMyOrders, Data: cbMyOrders},
		),
		models.Row(models.Button{Text: btnHelp, Data: cbHelp}),
	}
}

func adminPanelKeyboard(admin bool) models.Keyboard {
	kb := models.Keyboard{
		models.Row(
			models.Button{Text: btnOrders, Data: cbOrders},
			models.Button{Text: btnChats, Data: cbChats},
		),
	}
	if admin {
		kb = append(kb, models.Row(
			models.Button{Text: btnStaff, Data: cbStaff},
			models.Button{Text: btnStats, Data: cbStats},
		))
	}
	return kb
}

func tokenKeyboard() models.Keyboard {
	var kb models.Keyboard
	for _, t := range models.KnownTokens {
		kb = append(kb, models.Row(models.Button{
			Text: fmt.Sprintf("%s - %s", t.Symbol, t.Name),
			Data: cbPickPrefix + t.Symbol,
		}))
	}
	kb = append(kb, models.Row(models.Button{Text: btnCancel, Data: cbMainMenu}))
	return kb
}

func confirmKeyboard() models.Keyboard {
	return models.Keyboard{
		models.Row(
			models.Button{Text: btnConfirm, Data: cbConfirm},
			models.Button{Text: btnCancel, Data: cbCancelDraft},
		),
	}
}

func statusEmoji(s models.OrderStatus) string {
	switch s {
	case models.StatusPending:
		return "⏳"
	case models.StatusInProgress:
		return "👨‍💼"
	case models.StatusWaitingPayment, models.StatusWaitingTokens:
		return "💳"
	case models.StatusPaymentSent, models.StatusTokensSent:
		return "📤"
	case models.StatusCompleted:
		return "✅"
	case models.StatusCancelled:
		return "❌"
	default:
		return "•"
	}
}

func formatOrderLine(o *models.Order) string {
	return fmt.Sprintf("%s %s | %s %s %s | %s",
		statusEmoji(o.Status), o.ID, strings.ToUpper(string(o.Type)),
		o.Amount, o.Symbol, o.Status)
}

func formatOrderDetails(o *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order %s\n\n", o.ID)
	fmt.Fprintf(&b, "🔹 Direction: %s\n", strings.ToUpper(string(o.Type)))
	fmt.Fprintf(&b, "🔹 Token: %s (%s)\n", o.Coin, o.Symbol)
	fmt.Fprintf(&b, "🔹 Amount: %s\n", o.Amount)
	if o.ContractAddress != "" {
		fmt.Fprintf(&b, "🔹 Contract: %s\n", o.ContractAddress)
	}
	fmt.Fprintf(&b, "🔹 Status: %s %s\n", statusEmoji(o.Status), o.Status)
	if o.PaymentAddress != "" {
		fmt.Fprintf(&b, "🔹 Payment address: %s\n", o.PaymentAddress)
	}
	if o.ReceivingAddress != "" {
		fmt.Fprintf(&b, "🔹 Receiving wallet: %s\n", o.ReceivingAddress)
	}
	if o.CustomerTxHash != "" {
		fmt.Fprintf(&b, "🔹 Payment hash: %s\n", o.CustomerTxHash)
	}
	if o.SentTxHash != "" {
		fmt.Fprintf(&b, "🔹 Transfer hash: %s\n", o.SentTxHash)
	}
	fmt.Fprintf(&b, "🔹 Created: %s\n", o.CreatedAt.Format(time.RFC822))
	return b.String()
}

// customerInstructions tells the customer what the order needs next.
func customerInstructions(o *models.Order) string {
	switch o.Status {
	case models.StatusPending:
		return "Waiting for an agent to pick up your order."
	case models.StatusInProgress:
		return "An agent is preparing your instructions."
	case models.StatusWaitingPayment:
		return fmt.Sprintf("Send your payment to %s and submit the transaction hash.", o.PaymentAddress)
	case models.StatusWaitingTokens:
		return fmt.Sprintf("Send your tokens to %s and submit the transaction hash.", o.ReceivingAddress)
	case models.StatusPaymentSent, models.StatusTokensSent:
		return "Your transaction is being verified."
	case models.StatusCompleted:
		return "This order is complete."
	case models.StatusCancelled:
		return "This order was cancelled."
	default:
		return ""
	}
}

func formatTokenList() string {
	var b strings.Builder
	b.WriteString("🪙 Available tokens:\n\n")
	for _, t := range models.KnownTokens {
		fmt.Fprintf(&b, "• %s - %s\n  %s\n", t.Symbol, t.Name, t.ContractAddress)
	}
	b.WriteString("\nAny other token can be traded by sending its contract address during an order.")
	return b.String()
}

func formatStaffList(staff []models.StaffRecord) string {
	if len(staff) == 0 {
		return "No staff registered yet."
	}
	var b strings.Builder
	b.WriteString("👥 Staff:\n\n")
	for _, rec := range staff {
		fmt.Fprintf(&b, "• %d | %s (as %q) | %s\n", rec.ID, rec.Name, rec.DisplayName, rec.Role)
	}
	b.WriteString("\n/addadmin <id> <name> — register an admin\n")
	b.WriteString("/addcare <id> <name> — register a customer-care agent\n")
	b.WriteString("/removestaff <id> — remove a staff member")
	return b.String()
}

func formatStats(statusCounts map[models.OrderStatus]int64, users, orders int64) string {
	var b strings.Builder
	b.WriteString("📊 Statistics\n\n")
	fmt.Fprintf(&b, "Users: %d\nOrders: %d\n\n", users, orders)
	for _, s := range []models.OrderStatus{
		models.StatusPending, models.StatusInProgress, models.StatusWaitingPayment,
		models.StatusWaitingTokens, models.StatusPaymentSent, models.StatusTokensSent,
		models.StatusCompleted, models.StatusCancelled,
	} {
		if n := statusCounts[s]; n > 0 {
			fmt.Fprintf(&b, "%s %s: %d\n", statusEmoji(s), s, n)
		}
	}
	return b.String()
}

const customerHelp = `❓ How this desk works

1. Pick Buy or Sell from the menu
2. Choose a token from the catalog, or send a contract address
3. Enter the amount and confirm
4. An agent picks your order up and sends instructions
5. Submit your transaction hash from My Orders when asked

Your order history lives under My Orders. Send /start any time to get back
to the menu.`

const staffHelp = `❓ Staff reference

Orders: take one from a notification or from View Orders. Assign a payment
address (buy) or receiving wallet (sell), verify the customer's hash, then
complete. Only the assigned agent can complete or cancel an order.

Commands:
/addadmin <id> <name> — register an admin (admins only)
/addcare <id> <name> — register a customer-care agent (admins only)
/removestaff <id> — remove a staff member (admins only)

Send /start to return to the admin panel.`
