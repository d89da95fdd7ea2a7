package notify

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otcdesk/exchange-desk-bot/models"
)

type fakeStaffLister struct {
	staff []models.StaffRecord
	err   error
}

func (f *fakeStaffLister) ListStaff(context.Context) ([]models.StaffRecord, error) {
	return f.staff, f.err
}

type fakeSender struct {
	failFor map[int64]error
	sent    []int64
	texts   []string
	boards  []models.Keyboard
}

func (f *fakeSender) Send(chatID int64, text string, kb models.Keyboard) error {
	if err, ok := f.failFor[chatID]; ok {
		return err
	}
	f.sent = append(f.sent, chatID)
	f.texts = append(f.texts, text)
	f.boards = append(f.boards, kb)
	return nil
}

func staffIDs(ids ...int64) []models.StaffRecord {
	var out []models.StaffRecord
	for _, id := range ids {
		out = append(out, models.StaffRecord{ID: id, Role: models.RoleCustomerCare})
	}
	return out
}

func TestBroadcastReachesEveryRecipient(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(&fakeStaffLister{staff: staffIDs(1, 2, 3)}, sender)

	n.Broadcast(context.Background(), "hello", nil)
	assert.Equal(t, []int64{1, 2, 3}, sender.sent)
}

func TestBroadcastContinuesPastFailures(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]error{
		2: errors.New("telegram: Bad Request: chat not found"),
	}}
	n := NewNotifier(&fakeStaffLister{staff: staffIDs(1, 2, 3)}, sender)

	n.Broadcast(context.Background(), "hello", nil)
	assert.Equal(t, []int64{1, 3}, sender.sent)
}

func TestNotifyNewOrderCarriesTakeAndViewActions(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(&fakeStaffLister{staff: staffIDs(7)}, sender)

	o := &models.Order{ID: "ORD-1", Type: models.TypeBuy, Coin: "XTM", Symbol: "XTM", Amount: "100"}
	n.NotifyNewOrder(context.Background(), o)

	require.Len(t, sender.boards, 1)
	kb := sender.boards[0]
	require.Len(t, kb, 1)
	require.Len(t, kb[0], 2)
	assert.Equal(t, "take:ORD-1", kb[0][0].Data)
	assert.Equal(t, "view:ORD-1", kb[0][1].Data)
	assert.Contains(t, sender.texts[0], "BUY")
	assert.Contains(t, sender.texts[0], "100")
}

func TestIsChatNotFound(t *testing.T) {
	assert.True(t, IsChatNotFound(ErrChatNotFound))
	assert.True(t, IsChatNotFound(errors.Wrap(ErrChatNotFound, "sendMessage rejected")))
	assert.True(t, IsChatNotFound(errors.New("Bad Request: Chat Not Found")))
	assert.False(t, IsChatNotFound(errors.New("timeout")))
	assert.False(t, IsChatNotFound(nil))
}
