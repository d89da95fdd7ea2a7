package bot

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otcdesk/exchange-desk-bot/db"
	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/notify"
	"github.com/otcdesk/exchange-desk-bot/orders"
	"github.com/otcdesk/exchange-desk-bot/roles"
)

const (
	staffID    = int64(99)
	customerID = int64(7)
)

type sentText struct {
	userID int64
	text   string
}

type sentMenu struct {
	userID int64
	text   string
	kb     models.Keyboard
}

// fakeMessenger records outbound traffic instead of talking to Telegram.
type fakeMessenger struct {
	texts     []sentText
	menus     []sentMenu
	acks      []string
	ackTexts  []string
	ackAlerts []bool
}

func (f *fakeMessenger) SendText(userID int64, text string) error {
	f.texts = append(f.texts, sentText{userID, text})
	return nil
}

func (f *fakeMessenger) SendMenu(userID int64, text string, kb models.Keyboard) error {
	f.menus = append(f.menus, sentMenu{userID, text, kb})
	return nil
}

func (f *fakeMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	f.acks = append(f.acks, callbackID)
	f.ackTexts = append(f.ackTexts, text)
	f.ackAlerts = append(f.ackAlerts, alert)
	return nil
}

func (f *fakeMessenger) lastText(userID int64) string {
	for i := len(f.texts) - 1; i >= 0; i-- {
		if f.texts[i].userID == userID {
			return f.texts[i].text
		}
	}
	return ""
}

func (f *fakeMessenger) lastMenu(userID int64) *sentMenu {
	for i := len(f.menus) - 1; i >= 0; i-- {
		if f.menus[i].userID == userID {
			return &f.menus[i]
		}
	}
	return nil
}

// fakeChannel stands in for the notification bot.
type fakeChannel struct {
	sends []sentMenu
}

func (f *fakeChannel) Send(chatID int64, text string, kb models.Keyboard) error {
	f.sends = append(f.sends, sentMenu{chatID, text, kb})
	return nil
}

type testEnv struct {
	store    *db.Store
	router   *Router
	msg      *fakeMessenger
	channel  *fakeChannel
	svc      *orders.Service
	resolver *roles.Resolver
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()

	store, err := db.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	resolver := roles.NewResolver(store, []int64{staffID})
	resolver.SeedSuperAdmins(context.Background())

	msg := &fakeMessenger{}
	channel := &fakeChannel{}
	notifier := notify.NewNotifier(store, channel)
	svc := orders.NewService(store, resolver, msg, notifier, "https://etherscan.io/tx/")

	router := NewRouter(store, svc, resolver, notifier, msg, rand.New(rand.NewSource(1)))
	return &testEnv{store: store, router: router, msg: msg, channel: channel, svc: svc, resolver: resolver}
}

func textUpdate(userID int64, text string) Update {
	return Update{UserID: userID, FirstName: "Jo", Text: text}
}

func callbackUpdate(userID int64, data string) Update {
	return Update{UserID: userID, FirstName: "Jo", CallbackID: "cb-1", CallbackData: data}
}

func TestOrderCreationFlow(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))
	menu := env.msg.lastMenu(customerID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "What would you like to do?")

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "buy"))
	menu = env.msg.lastMenu(customerID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "Which token would you like to buy?")

	// a catalog pick arrives as the button's echoed label text
	env.router.HandleUpdate(ctx, textUpdate(customerID, "XTM - XTM"))
	assert.Contains(t, env.msg.lastText(customerID), "How much XTM?")

	env.router.HandleUpdate(ctx, textUpdate(customerID, "100"))
	menu = env.msg.lastMenu(customerID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "Please confirm your order")
	assert.Contains(t, menu.text, "Amount: 100")

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "confirm_order"))

	list, err := env.store.ListUserOrders(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	o := list[0]
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.TypeBuy, o.Type)
	assert.Equal(t, "XTM", o.Symbol)
	assert.Equal(t, "100", o.Amount)
	assert.True(t, strings.HasPrefix(o.ID, "ORD-"))

	chat, err := env.store.GetChatSession(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ChatWaitingForStaff, chat.Status)

	// every staff member hears about the new order on the alert channel
	require.NotEmpty(t, env.channel.sends)
	assert.Equal(t, staffID, env.channel.sends[0].userID)
	assert.Contains(t, env.channel.sends[0].text, o.ID)

	menu = env.msg.lastMenu(customerID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "✅ Order "+o.ID+" created!")

	sess := env.store.GetSession(ctx, customerID)
	assert.Equal(t, models.StepMainMenu, sess.Step)
	assert.Empty(t, sess.Amount)
}

func TestStartIsIdempotent(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))
	first := env.msg.lastMenu(customerID)
	require.NotNil(t, first)

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))
	second := env.msg.lastMenu(customerID)
	require.NotNil(t, second)

	assert.Equal(t, first.text, second.text)
	assert.Equal(t, models.StepMainMenu, env.store.GetSession(ctx, customerID).Step)
}

func TestStartRecoversFromMidFlow(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "sell"))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "USDT - Tether USD"))
	require.Equal(t, models.StepEnterAmount, env.store.GetSession(ctx, customerID).Step)

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))

	sess := env.store.GetSession(ctx, customerID)
	assert.Equal(t, models.StepMainMenu, sess.Step)
	assert.Empty(t, sess.Symbol)
	assert.Empty(t, sess.TransactionType)
}

func TestStartRoutesStaffToAdminPanel(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(staffID, "/start"))

	menu := env.msg.lastMenu(staffID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "Admin panel")
	assert.Equal(t, models.StepAdminPanel, env.store.GetSession(ctx, staffID).Step)
}

func TestButtonLabelTextRoutesLikeCallback(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(customerID, "🛒 Buy Crypto"))
	assert.Equal(t, models.StepSelectToken, env.store.GetSession(ctx, customerID).Step)

	// the bare label without its emoji routes the same way
	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "Sell Crypto"))
	sess := env.store.GetSession(ctx, customerID)
	assert.Equal(t, models.StepSelectToken, sess.Step)
	assert.Equal(t, models.TypeSell, sess.TransactionType)
}

func TestCustomContractAddressStartsCustomToken(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "buy"))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "0x"+strings.Repeat("ab", 20)))

	sess := env.store.GetSession(ctx, customerID)
	assert.Equal(t, models.StepEnterAmount, sess.Step)
	assert.Equal(t, models.CustomSymbol, sess.Symbol)
	assert.Contains(t, env.msg.lastText(customerID), "Custom token accepted")
}

func TestInvalidAmountReprompts(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "buy"))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "XTM - XTM"))

	for _, bad := range []string{"zero", "-5", "0"} {
		env.router.HandleUpdate(ctx, textUpdate(customerID, bad))
		assert.Contains(t, env.msg.lastText(customerID), "positive number")
		assert.Equal(t, models.StepEnterAmount, env.store.GetSession(ctx, customerID).Step)
	}
}

func TestStaffAddressEntry(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)

	env.router.HandleUpdate(ctx, callbackUpdate(staffID, "take:"+o.ID))
	got, err := env.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, staffID, got.AssignedStaff)

	env.router.HandleUpdate(ctx, callbackUpdate(staffID, "payment:"+o.ID))
	sess := env.store.GetSession(ctx, staffID)
	require.Equal(t, models.StepEnterPaymentAddress, sess.Step)
	require.Equal(t, o.ID, sess.FocusOrderID)

	// a malformed address re-prompts at the same step and touches nothing
	env.router.HandleUpdate(ctx, textUpdate(staffID, "not-an-address"))
	assert.Contains(t, env.msg.lastText(staffID), "not a valid address")
	assert.Equal(t, models.StepEnterPaymentAddress, env.store.GetSession(ctx, staffID).Step)
	got, err = env.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Empty(t, got.PaymentAddress)

	address := "0x" + strings.Repeat("1a", 20)
	env.router.HandleUpdate(ctx, textUpdate(staffID, address))
	got, err = env.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingPayment, got.Status)
	assert.Equal(t, address, got.PaymentAddress)
	assert.Equal(t, models.StepAdminPanel, env.store.GetSession(ctx, staffID).Step)

	// the customer has the instructions by now
	assert.Contains(t, env.msg.lastText(customerID), address)
}

func TestCustomerHashSubmission(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)
	_, err = env.svc.Claim(ctx, o.ID, staffID)
	require.NoError(t, err)
	require.NoError(t, env.svc.AssignPaymentAddress(ctx, o.ID, staffID, "0x"+strings.Repeat("1a", 20)))

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "hash:"+o.ID))
	require.Equal(t, models.StepEnterPaymentHash, env.store.GetSession(ctx, customerID).Step)

	env.router.HandleUpdate(ctx, textUpdate(customerID, "0xdeadbeef"))
	assert.Contains(t, env.msg.lastText(customerID), "doesn't look right")
	assert.Equal(t, models.StepEnterPaymentHash, env.store.GetSession(ctx, customerID).Step)

	hash := "0x" + strings.Repeat("ab", 32)
	env.router.HandleUpdate(ctx, textUpdate(customerID, hash))

	got, err := env.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaymentSent, got.Status)
	assert.Equal(t, hash, got.CustomerTxHash)
	assert.Equal(t, models.StepMainMenu, env.store.GetSession(ctx, customerID).Step)

	// the assigned agent gets the hash with an explorer link
	assert.Contains(t, env.msg.lastText(staffID), "https://etherscan.io/tx/"+hash)
}

func TestStaffOnlyActionsAreGated(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "orders"))
	assert.Contains(t, env.msg.lastText(customerID), "staff only")

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "stats"))
	assert.Contains(t, env.msg.lastText(customerID), "admins only")
}

func TestFallbackRepromptsMenu(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "what is this"))

	assert.Contains(t, env.msg.lastText(customerID), "didn't catch that")
	menu := env.msg.lastMenu(customerID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "What would you like to do?")
}

func TestCatalogPickIgnoredOutsideTokenStep(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/start"))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "XTM - XTM"))

	// outside the token step the pick text falls through to the fallback
	assert.Contains(t, env.msg.lastText(customerID), "didn't catch that")
	assert.Equal(t, models.StepMainMenu, env.store.GetSession(ctx, customerID).Step)
}

func TestAddStaffCommand(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(staffID, "/addcare 1234 Dana Smith"))
	assert.Contains(t, env.msg.lastText(staffID), "Customer-care agent Dana Smith (1234) registered")

	rec, err := env.store.GetStaff(ctx, 1234)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomerCare, rec.Role)
	assert.Equal(t, "Dana Smith", rec.Name)
	assert.NotEmpty(t, rec.DisplayName)

	// customers cannot manage staff
	env.router.HandleUpdate(ctx, textUpdate(customerID, "/addcare 5678 Eve"))
	assert.Contains(t, env.msg.lastText(customerID), "admins only")
	_, err = env.store.GetStaff(ctx, 5678)
	assert.Error(t, err)
}

func TestRemoveStaffRefusesSuperAdmin(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, textUpdate(staffID, "/removestaff 99"))
	assert.Contains(t, env.msg.lastText(staffID), "Super admins cannot be removed")

	_, err := env.store.GetStaff(ctx, staffID)
	assert.NoError(t, err)
}

func TestCallbacksAreAcknowledged(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "buy"))
	assert.Equal(t, []string{"cb-1"}, env.msg.acks)
}

func TestManageLabelTextOpensOrderCard(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)

	// the orders page labels each entry with the text that routes back
	env.router.HandleUpdate(ctx, callbackUpdate(staffID, "orders"))
	menu := env.msg.lastMenu(staffID)
	require.NotNil(t, menu)
	var labels []string
	for _, row := range menu.kb {
		for _, b := range row {
			labels = append(labels, b.Text)
		}
	}
	assert.Contains(t, labels, "Manage #"+o.ID)

	env.router.HandleUpdate(ctx, textUpdate(staffID, "Manage #"+o.ID))
	menu = env.msg.lastMenu(staffID)
	require.NotNil(t, menu)
	assert.Contains(t, menu.text, "Order "+o.ID)

	// customers typing the same text fall through to the menu instead
	env.router.HandleUpdate(ctx, textUpdate(customerID, "Manage #"+o.ID))
	assert.Contains(t, env.msg.lastText(customerID), "didn't catch that")
}

func TestStaffChatRelayForwardsUnderPersona(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)
	_, err = env.svc.Claim(ctx, o.ID, staffID)
	require.NoError(t, err)

	env.router.HandleUpdate(ctx, callbackUpdate(staffID, "chat:"+o.ID))
	require.Equal(t, models.StepChattingWithUser, env.store.GetSession(ctx, staffID).Step)
	assert.Contains(t, env.msg.lastText(staffID), "Send /done to leave")

	env.router.HandleUpdate(ctx, textUpdate(staffID, "your payment cleared"))

	// the customer sees the persona, never the staff identity
	got := env.msg.lastText(customerID)
	assert.Contains(t, got, "Support")
	assert.Contains(t, got, "your payment cleared")
	assert.NotContains(t, got, "99")

	msgs, err := env.store.ListMessages(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderStaff, msgs[0].SenderType)
	assert.Equal(t, "your payment cleared", msgs[0].Body)

	// /done leaves the relay and returns to the panel
	env.router.HandleUpdate(ctx, textUpdate(staffID, "/done"))
	assert.Equal(t, models.StepAdminPanel, env.store.GetSession(ctx, staffID).Step)
}

func TestCustomerChatRelayToAssignedStaff(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)
	_, err = env.svc.Claim(ctx, o.ID, staffID)
	require.NoError(t, err)

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "support:"+o.ID))
	require.Equal(t, models.StepChatWithSupport, env.store.GetSession(ctx, customerID).Step)

	env.router.HandleUpdate(ctx, textUpdate(customerID, "is my payment through?"))

	got := env.msg.lastText(staffID)
	assert.Contains(t, got, "Customer (order "+o.ID+")")
	assert.Contains(t, got, "is my payment through?")

	msgs, err := env.store.ListMessages(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.SenderCustomer, msgs[0].SenderType)

	env.router.HandleUpdate(ctx, textUpdate(customerID, "/done"))
	assert.Equal(t, models.StepMainMenu, env.store.GetSession(ctx, customerID).Step)
}

func TestCustomerChatBroadcastsWhileUnclaimed(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)
	env.channel.sends = nil // drop the new-order fan-out

	env.router.HandleUpdate(ctx, callbackUpdate(customerID, "support:"+o.ID))
	env.router.HandleUpdate(ctx, textUpdate(customerID, "anyone there?"))

	require.NotEmpty(t, env.channel.sends)
	broadcast := env.channel.sends[0]
	assert.Equal(t, staffID, broadcast.userID)
	assert.Contains(t, broadcast.text, "anyone there?")
	require.NotEmpty(t, broadcast.kb)
	assert.Equal(t, "take:"+o.ID, broadcast.kb[0][0].Data)
}

func TestSupportChatRequiresOwnership(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)

	other := int64(1000)
	env.router.HandleUpdate(ctx, callbackUpdate(other, "support:"+o.ID))
	assert.Contains(t, env.msg.lastText(other), "not your order")
	assert.NotEqual(t, models.StepChatWithSupport, env.store.GetSession(ctx, other).Step)
}

func TestNotificationChannelTake(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()
	n := NewNotificationRouter(env.svc, env.resolver, env.msg)

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)

	n.HandleUpdate(ctx, callbackUpdate(staffID, "take:"+o.ID))

	got, err := env.svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.Equal(t, staffID, got.AssignedStaff)
	require.NotEmpty(t, env.msg.ackTexts)
	assert.Contains(t, env.msg.ackTexts[0], "is yours")
	assert.Contains(t, env.msg.lastText(staffID), "Continue in the main bot")

	// the loser of the race gets an alert, not a silent failure
	n.HandleUpdate(ctx, callbackUpdate(staffID, "take:"+o.ID))
	assert.Contains(t, env.msg.ackTexts[len(env.msg.ackTexts)-1], "no longer available")
	assert.True(t, env.msg.ackAlerts[len(env.msg.ackAlerts)-1])
}

func TestNotificationChannelViewIsStaffGated(t *testing.T) {
	env := setupRouter(t)
	ctx := context.Background()
	n := NewNotificationRouter(env.svc, env.resolver, env.msg)

	o, err := env.svc.Create(ctx, customerID, orders.Draft{
		Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "50",
	})
	require.NoError(t, err)

	n.HandleUpdate(ctx, callbackUpdate(customerID, "view:"+o.ID))
	require.NotEmpty(t, env.msg.ackTexts)
	assert.Equal(t, "Staff only.", env.msg.ackTexts[len(env.msg.ackTexts)-1])
	assert.Empty(t, env.msg.lastText(customerID))

	n.HandleUpdate(ctx, callbackUpdate(staffID, "view:"+o.ID))
	assert.Contains(t, env.msg.lastText(staffID), "Order "+o.ID)

	// plain messages on the notification channel are ignored
	n.HandleUpdate(ctx, textUpdate(staffID, "hello"))
	assert.NotContains(t, env.msg.lastText(staffID), "hello")
}
