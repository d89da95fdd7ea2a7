package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/tucnak/telebot.v2"
)

func TestFromCallbackStripsTelebotPrefix(t *testing.T) {
	upd := FromCallback(&telebot.Callback{
		ID:     "cb-9",
		Sender: &telebot.User{ID: 7, FirstName: "Jo"},
		Data:   "\ftake:ORD-1",
	})

	assert.True(t, upd.IsCallback())
	assert.Equal(t, "take:ORD-1", upd.CallbackData)
	assert.Equal(t, int64(7), upd.UserID)
}

func TestFromTelebotUpdateKinds(t *testing.T) {
	_, ok := FromTelebotUpdate(telebot.Update{})
	assert.False(t, ok)

	upd, ok := FromTelebotUpdate(telebot.Update{Message: &telebot.Message{
		Sender: &telebot.User{ID: 7},
		Text:   "  /start  ",
	}})
	assert.True(t, ok)
	assert.Equal(t, "/start", upd.Text)
	assert.False(t, upd.IsCallback())
}

func TestLabelActionToleratesEmoji(t *testing.T) {
	for _, text := range []string{"🛒 Buy Crypto", "Buy Crypto"} {
		action, ok := labelAction(text)
		assert.True(t, ok, text)
		assert.Equal(t, cbBuy, action)
	}

	_, ok := labelAction("Buy")
	assert.False(t, ok)
}
