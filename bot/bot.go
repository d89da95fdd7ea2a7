package bot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/tucnak/telebot.v2"

	"github.com/otcdesk/exchange-desk-bot/models"
	"github.com/otcdesk/exchange-desk-bot/notify"
)

// Messenger is the delivery substrate the router talks to: send text, send
// structured buttons, answer a callback. The telebot adapter implements it
// for the main channel, the raw client adapter for the notification one.
type Messenger interface {
	SendText(userID int64, text string) error
	SendMenu(userID int64, text string, kb models.Keyboard) error
	AnswerCallback(callbackID, text string, alert bool) error
}

// Telebot adapts a telebot instance to the Messenger and notify.Sender
// contracts and feeds polled updates into the router.
type Telebot struct {
	tb *telebot.Bot
}

// NewTelebot creates the main channel bot. With polling disabled the
// instance only sends; updates then arrive through the webhook.
func NewTelebot(token string, polling bool) (*Telebot, error) {
	settings := telebot.Settings{Token: token}
	if polling {
		settings.Poller = &telebot.LongPoller{Timeout: 10 * time.Second}
	}
	tb, err := telebot.NewBot(settings)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bot")
	}
	return &Telebot{tb: tb}, nil
}

func (t *Telebot) SendText(userID int64, text string) error {
	_, err := t.tb.Send(&telebot.User{ID: userID}, text)
	return errors.Wrap(err, "failed to send message")
}

func (t *Telebot) SendMenu(userID int64, text string, kb models.Keyboard) error {
	if len(kb) == 0 {
		return t.SendText(userID, text)
	}
	_, err := t.tb.Send(&telebot.User{ID: userID}, text, &telebot.ReplyMarkup{
		InlineKeyboard: toInlineKeyboard(kb),
	})
	return errors.Wrap(err, "failed to send menu")
}

func (t *Telebot) AnswerCallback(callbackID, text string, alert bool) error {
	err := t.tb.Respond(&telebot.Callback{ID: callbackID}, &telebot.CallbackResponse{
		Text:      text,
		ShowAlert: alert,
	})
	return errors.Wrap(err, "failed to answer callback")
}

// Send implements notify.Sender so the main bot can carry fan-out traffic
// when no dedicated notification bot is configured.
func (t *Telebot) Send(chatID int64, text string, kb models.Keyboard) error {
	return t.SendMenu(chatID, text, kb)
}

func toInlineKeyboard(kb models.Keyboard) [][]telebot.InlineButton {
	rows := make([][]telebot.InlineButton, 0, len(kb))
	for _, row := range kb {
		r := make([]telebot.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, telebot.InlineButton{Text: b.Text, Data: b.Data, URL: b.URL})
		}
		rows = append(rows, r)
	}
	return rows
}

// RegisterHandlers funnels every polled message and callback into the
// router. Commands are not registered individually; the router owns the
// routing precedence.
func (t *Telebot) RegisterHandlers(r *Router) {
	t.tb.Handle(telebot.OnText, func(m *telebot.Message) {
		r.HandleUpdate(context.Background(), FromMessage(m))
	})
	t.tb.Handle(telebot.OnCallback, func(c *telebot.Callback) {
		r.HandleUpdate(context.Background(), FromCallback(c))
	})
}

// Start blocks on the long-polling loop.
func (t *Telebot) Start() {
	t.tb.Start()
}

// Stop terminates the polling loop.
func (t *Telebot) Stop() {
	t.tb.Stop()
}

// NotificationMessenger adapts the raw notification client to the Messenger
// contract used by the callback-only notification router.
type NotificationMessenger struct {
	client *notify.Client
}

func NewNotificationMessenger(c *notify.Client) *NotificationMessenger {
	return &NotificationMessenger{client: c}
}

func (n *NotificationMessenger) SendText(userID int64, text string) error {
	return n.client.Send(userID, text, nil)
}

func (n *NotificationMessenger) SendMenu(userID int64, text string, kb models.Keyboard) error {
	return n.client.Send(userID, text, kb)
}

func (n *NotificationMessenger) AnswerCallback(callbackID, text string, alert bool) error {
	return n.client.AnswerCallback(callbackID, text, alert)
}
