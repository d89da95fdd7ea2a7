package bot

import (
	"strings"

	"gopkg.in/tucnak/telebot.v2"
)

// Update is the transport-neutral inbound event the router consumes. It is
// built either from a long-polled telebot event or from a webhook payload.
type Update struct {
	UserID    int64
	Username  string
	FirstName string

	// Text is set for plain messages.
	Text string

	// CallbackID and CallbackData are set for button presses.
	CallbackID   string
	CallbackData string
}

// IsCallback reports whether the update is a button press.
func (u Update) IsCallback() bool {
	return u.CallbackID != "" || u.CallbackData != ""
}

// FromMessage converts a telebot message into a router update.
func FromMessage(m *telebot.Message) Update {
	return Update{
		UserID:    m.Sender.ID,
		Username:  m.Sender.Username,
		FirstName: m.Sender.FirstName,
		Text:      strings.TrimSpace(m.Text),
	}
}

// FromCallback converts a telebot callback into a router update. telebot
// prefixes data of buttons it created itself with "\f"; strip it so both
// channels see identical payloads.
func FromCallback(c *telebot.Callback) Update {
	return Update{
		UserID:       c.Sender.ID,
		Username:     c.Sender.Username,
		FirstName:    c.Sender.FirstName,
		CallbackID:   c.ID,
		CallbackData: strings.TrimPrefix(c.Data, "\f"),
	}
}

// FromTelebotUpdate converts a raw webhook update. The second return is
// false for update kinds the router does not handle (edits, channel posts).
func FromTelebotUpdate(u telebot.Update) (Update, bool) {
	switch {
	case u.Message != nil && u.Message.Sender != nil:
		return FromMessage(u.Message), true
	case u.Callback != nil && u.Callback.Sender != nil:
		return FromCallback(u.Callback), true
	default:
		return Update{}, false
	}
}
