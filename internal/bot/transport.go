package bot

import "context"

// Button is one inline keyboard button. Data is the opaque payload delivered
// back in a button event when pressed.
type Button struct {
	Label string
	Data  string
}

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// EventKind classifies an incoming chat event.
type EventKind string

const (
	EventCommand EventKind = "command"
	EventButton  EventKind = "button"
	EventText    EventKind = "text"
)

// Event is one normalized incoming chat event.
type Event struct {
	Kind      EventKind
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string

	// Command and Args are set for EventCommand ("/buy 3" -> "buy", "3").
	Command string
	Args    string

	// Data is the button payload, CallbackID the press to acknowledge and
	// Message the message carrying the keyboard. Set for EventButton.
	Data       string
	CallbackID string
	Message    MessageRef

	// Text is the raw message text. Set for EventText.
	Text string
}

// Transport is the chat surface the storefront runs on. Implementations
// deliver incoming events in order per chat and carry outgoing messages.
type Transport interface {
	// Poll blocks until at least one event arrives or ctx is done.
	Poll(ctx context.Context) ([]Event, error)

	// SendMessage sends text with an optional inline keyboard.
	SendMessage(ctx context.Context, chatID int64, text string, buttons [][]Button) (MessageRef, error)

	// EditMessage rewrites a previously sent message in place.
	EditMessage(ctx context.Context, ref MessageRef, text string, buttons [][]Button) error

	// AckButton acknowledges a button press, optionally with a toast text.
	AckButton(ctx context.Context, callbackID, text string) error
}
