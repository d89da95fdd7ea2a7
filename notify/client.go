package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/otcdesk/exchange-desk-bot/models"
)

// ErrChatNotFound marks a recipient the provider no longer knows about,
// typically a staff member who never opened the notification bot or who
// blocked it. Candidates for pruning; we only log them.
var ErrChatNotFound = errors.New("chat not found")

// IsChatNotFound reports whether err is a provider "chat not found"
// condition, regardless of which channel produced it.
func IsChatNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrChatNotFound) ||
		strings.Contains(strings.ToLower(err.Error()), "chat not found")
}

// Client is a minimal Telegram Bot API client used for the dedicated
// notification channel. It deliberately skips the full bot SDK: the
// channel only ever sends alert messages and answers callbacks.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewClient initializes a notification channel client
func NewClient(token string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://api.telegram.org",
		token:   token,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) call(method string, body map[string]interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	resp, err := c.client.Post(url, "application/json", bytes.NewBuffer(jsonBody))
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", method)
	}
	defer resp.Body.Close()

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	if !result.OK {
		if strings.Contains(strings.ToLower(result.Description), "chat not found") {
			return errors.Wrapf(ErrChatNotFound, "%s rejected", method)
		}
		return errors.Errorf("%s rejected: %s", method, result.Description)
	}
	return nil
}

// Send delivers a text message with an optional inline keyboard.
func (c *Client) Send(chatID int64, text string, kb models.Keyboard) error {
	body := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if len(kb) > 0 {
		var rows [][]map[string]string
		for _, row := range kb {
			var r []map[string]string
			for _, b := range row {
				btn := map[string]string{"text": b.Text}
				if b.URL != "" {
					btn["url"] = b.URL
				} else {
					btn["callback_data"] = b.Data
				}
				r = append(r, btn)
			}
			rows = append(rows, r)
		}
		body["reply_markup"] = map[string]interface{}{"inline_keyboard": rows}
	}
	return c.call("sendMessage", body)
}

// AnswerCallback acknowledges a button press on the notification channel.
func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	body := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		body["text"] = text
		body["show_alert"] = alert
	}
	return c.call("answerCallbackQuery", body)
}
