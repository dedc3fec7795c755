package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailshop-bot/internal/bot"
)

func TestToEventCommand(t *testing.T) {
	u := update{Message: &message{
		MessageID: 5,
		From:      &tgUser{ID: 100, Username: "alice", FirstName: "Alice"},
		Chat:      chat{ID: 100},
		Text:      "/Buy@mailshopbot 3",
	}}

	ev, ok := toEvent(u)
	require.True(t, ok)
	assert.Equal(t, bot.EventCommand, ev.Kind)
	assert.Equal(t, "buy", ev.Command)
	assert.Equal(t, "3", ev.Args)
	assert.Equal(t, int64(100), ev.UserID)
}

func TestToEventText(t *testing.T) {
	u := update{Message: &message{
		From: &tgUser{ID: 100, Username: "alice", FirstName: "Alice"},
		Chat: chat{ID: 100},
		Text: "  50000  ",
	}}

	ev, ok := toEvent(u)
	require.True(t, ok)
	assert.Equal(t, bot.EventText, ev.Kind)
	assert.Equal(t, "50000", ev.Text)
}

func TestToEventButton(t *testing.T) {
	u := update{Callback: &callbackQuery{
		ID:      "cb42",
		From:    &tgUser{ID: 900, Username: "staff", FirstName: "Staff"},
		Message: &message{MessageID: 7, Chat: chat{ID: 900}},
		Data:    "approve_dep_12",
	}}

	ev, ok := toEvent(u)
	require.True(t, ok)
	assert.Equal(t, bot.EventButton, ev.Kind)
	assert.Equal(t, "approve_dep_12", ev.Data)
	assert.Equal(t, "cb42", ev.CallbackID)
	assert.Equal(t, int64(7), ev.Message.MessageID)
}

func TestToEventIgnoresUnsupported(t *testing.T) {
	_, ok := toEvent(update{})
	assert.False(t, ok)
}

func TestKeyboard(t *testing.T) {
	assert.Nil(t, keyboard(nil))

	markup := keyboard([][]bot.Button{{{Label: "Yes", Data: "yes"}, {Label: "No", Data: "no"}}})
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "Yes", markup.InlineKeyboard[0][0].Text)
	assert.Equal(t, "no", markup.InlineKeyboard[0][1].CallbackData)
}
