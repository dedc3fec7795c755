package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mailshop-bot/internal/bot"
)

const apiBase = "https://api.telegram.org/bot"

// Client is a minimal Telegram Bot API client implementing bot.Transport.
// It long-polls getUpdates and exposes messages, commands and inline
// keyboard presses as normalized events.
type Client struct {
	token       string
	pollTimeout time.Duration
	http        *http.Client
	offset      int64
}

// New creates a client for the given bot token.
func New(token string, pollTimeout time.Duration) *Client {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Client{
		token:       token,
		pollTimeout: pollTimeout,
		// The request timeout must outlast the long-poll hold.
		http: &http.Client{Timeout: pollTimeout + 10*time.Second},
	}
}

// Wire types, trimmed to the fields the storefront uses.

type update struct {
	UpdateID int64          `json:"update_id"`
	Message  *message       `json:"message"`
	Callback *callbackQuery `json:"callback_query"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	From      *tgUser `json:"from"`
	Chat      chat   `json:"chat"`
	Text      string `json:"text"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type chat struct {
	ID int64 `json:"id"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    *tgUser  `json:"from"`
	Message *message `json:"message"`
	Data    string   `json:"data"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

func keyboard(buttons [][]bot.Button) *inlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	markup := &inlineKeyboardMarkup{}
	for _, row := range buttons {
		var out []inlineKeyboardButton
		for _, btn := range row {
			out = append(out, inlineKeyboardButton{Text: btn.Label, CallbackData: btn.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, out)
	}
	return markup
}

// Poll long-polls for the next batch of updates and converts them to events.
func (c *Client) Poll(ctx context.Context) ([]bot.Event, error) {
	params := map[string]interface{}{
		"offset":          c.offset,
		"timeout":         int(c.pollTimeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}

	var updates []update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}

	var events []bot.Event
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		if ev, ok := toEvent(u); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

func toEvent(u update) (bot.Event, bool) {
	switch {
	case u.Callback != nil && u.Callback.From != nil && u.Callback.Message != nil:
		return bot.Event{
			Kind:       bot.EventButton,
			ChatID:     u.Callback.Message.Chat.ID,
			UserID:     u.Callback.From.ID,
			Username:   u.Callback.From.Username,
			FirstName:  u.Callback.From.FirstName,
			Data:       u.Callback.Data,
			CallbackID: u.Callback.ID,
			Message: bot.MessageRef{
				ChatID:    u.Callback.Message.Chat.ID,
				MessageID: u.Callback.Message.MessageID,
			},
		}, true

	case u.Message != nil && u.Message.From != nil:
		ev := bot.Event{
			ChatID:    u.Message.Chat.ID,
			UserID:    u.Message.From.ID,
			Username:  u.Message.From.Username,
			FirstName: u.Message.From.FirstName,
		}
		text := strings.TrimSpace(u.Message.Text)
		if strings.HasPrefix(text, "/") {
			ev.Kind = bot.EventCommand
			cmd, args, _ := strings.Cut(text[1:], " ")
			// Commands in groups arrive as /cmd@botname.
			cmd, _, _ = strings.Cut(cmd, "@")
			ev.Command = strings.ToLower(cmd)
			ev.Args = strings.TrimSpace(args)
		} else {
			ev.Kind = bot.EventText
			ev.Text = text
		}
		return ev, true
	}
	return bot.Event{}, false
}

// SendMessage sends text with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, buttons [][]bot.Button) (bot.MessageRef, error) {
	params := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if markup := keyboard(buttons); markup != nil {
		params["reply_markup"] = markup
	}

	var sent message
	if err := c.call(ctx, "sendMessage", params, &sent); err != nil {
		return bot.MessageRef{}, err
	}
	return bot.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// EditMessage rewrites a previously sent message in place.
func (c *Client) EditMessage(ctx context.Context, ref bot.MessageRef, text string, buttons [][]bot.Button) error {
	params := map[string]interface{}{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
		"text":       text,
	}
	if markup := keyboard(buttons); markup != nil {
		params["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// AckButton acknowledges a button press.
func (c *Client) AckButton(ctx context.Context, callbackID, text string) error {
	params := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		params["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// call posts one Bot API method and decodes its result.
func (c *Client) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if !api.OK {
		return fmt.Errorf("%s rejected: %s", method, api.Description)
	}

	if out != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, out); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
	}
	return nil
}

// Ensure Client implements bot.Transport
var _ bot.Transport = (*Client)(nil)
