package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailshop-bot/internal/cache"
	"mailshop-bot/internal/model"
	"mailshop-bot/internal/repository"
	"mailshop-bot/internal/service"
	"mailshop-bot/internal/settings"
	"mailshop-bot/internal/sheets"
)

// sentMessage is one outgoing message captured by the fake transport.
type sentMessage struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
	Edited  bool
}

// fakeTransport records outgoing traffic; Poll is unused because tests feed
// events straight into the dispatcher.
type fakeTransport struct {
	sent   []sentMessage
	nextID int64
}

func (f *fakeTransport) Poll(ctx context.Context) ([]Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeTransport) SendMessage(_ context.Context, chatID int64, text string, buttons [][]Button) (MessageRef, error) {
	f.sent = append(f.sent, sentMessage{ChatID: chatID, Text: text, Buttons: buttons})
	f.nextID++
	return MessageRef{ChatID: chatID, MessageID: f.nextID}, nil
}

func (f *fakeTransport) EditMessage(_ context.Context, ref MessageRef, text string, buttons [][]Button) error {
	f.sent = append(f.sent, sentMessage{ChatID: ref.ChatID, Text: text, Buttons: buttons, Edited: true})
	return nil
}

func (f *fakeTransport) AckButton(context.Context, string, string) error {
	return nil
}

// last returns the most recent outgoing message.
func (f *fakeTransport) last() sentMessage {
	return f.sent[len(f.sent)-1]
}

// memRowAPI mirrors the remote row store in memory.
type memRowAPI struct {
	rows []model.InventoryItem
}

func (m *memRowAPI) RowCount(context.Context) (int, error) { return len(m.rows), nil }

func (m *memRowAPI) ReadRows(_ context.Context, offset, limit int) ([]model.InventoryItem, error) {
	if offset >= len(m.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.rows) {
		end = len(m.rows)
	}
	out := make([]model.InventoryItem, end-offset)
	copy(out, m.rows[offset:end])
	return out, nil
}

func (m *memRowAPI) AppendRows(_ context.Context, items []model.InventoryItem) error {
	m.rows = append(m.rows, items...)
	return nil
}

func (m *memRowAPI) DeleteRow(_ context.Context, index int) error {
	if index >= len(m.rows) {
		return sheets.ErrUnavailable
	}
	m.rows = append(m.rows[:index], m.rows[index+1:]...)
	return nil
}

const (
	buyerID = int64(100)
	adminID = int64(900)
)

type botFixture struct {
	bot  *Bot
	t    *fakeTransport
	repo repository.LedgerRepository
	api  *memRowAPI
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := repository.NewSQLiteLedgerRepository(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	st, err := settings.NewStore(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)

	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	api := &memRowAPI{}
	limiter := sheets.NewLimiter(sheets.LimiterConfig{Window: time.Minute, WindowLimit: 1000, WriteDelay: 0, MaxRetries: 0})
	queue := sheets.NewQueue(api, limiter)

	transport := &fakeTransport{}
	b := New(Deps{
		Transport:      transport,
		Sessions:       NewSessionStore(c, 30*time.Minute),
		Account:        service.NewAccountService(repo, 50000, 10000000),
		Purchase:       service.NewPurchaseService(repo, queue, st),
		Discount:       service.NewDiscountService(repo, st),
		Queue:          queue,
		Settings:       st,
		IsAdmin:        func(id int64) bool { return id == adminID },
		AdminChatIDs:   []int64{adminID},
		StockBatchSize: 3,
	})

	return &botFixture{bot: b, t: transport, repo: repo, api: api}
}

func event(userID int64, kind EventKind) Event {
	return Event{Kind: kind, ChatID: userID, UserID: userID, Username: "user", FirstName: "User"}
}

func command(userID int64, cmd string) Event {
	ev := event(userID, EventCommand)
	ev.Command = cmd
	return ev
}

func text(userID int64, body string) Event {
	ev := event(userID, EventText)
	ev.Text = body
	return ev
}

func button(userID int64, data string) Event {
	ev := event(userID, EventButton)
	ev.Data = data
	ev.CallbackID = "cb"
	ev.Message = MessageRef{ChatID: userID, MessageID: 1}
	return ev
}

func TestStartShowsMenu(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handle(context.Background(), command(buyerID, "start")))

	msg := f.t.last()
	assert.Contains(t, msg.Text, "Gmail account")
	assert.NotEmpty(t, msg.Buttons)
}

func TestDepositFlow(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.handle(ctx, command(buyerID, "deposit")))
	assert.Contains(t, f.t.last().Text, "How much")

	// The next free text answers the deposit question.
	require.NoError(t, f.bot.handle(ctx, text(buyerID, "100000")))

	// The buyer gets payment details with their id in the transfer note,
	// and staff gets a review request with decision buttons.
	var buyerMsg, adminMsg *sentMessage
	for i := range f.t.sent {
		m := &f.t.sent[i]
		if m.ChatID == buyerID && strings.Contains(m.Text, "Transfer to") {
			buyerMsg = m
		}
		if m.ChatID == adminID && strings.Contains(m.Text, "Deposit request") {
			adminMsg = m
		}
	}
	require.NotNil(t, buyerMsg)
	assert.Contains(t, buyerMsg.Text, "NAPBOT 100")
	require.NotNil(t, adminMsg)
	require.NotEmpty(t, adminMsg.Buttons)

	// Staff approves via the button; the balance is credited once.
	approve := adminMsg.Buttons[0][0].Data
	require.NoError(t, f.bot.handle(ctx, button(adminID, approve)))

	balance, err := f.repo.GetBalance(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)

	// A second press reports the stale state without double crediting.
	require.NoError(t, f.bot.handle(ctx, button(adminID, approve)))
	balance, err = f.repo.GetBalance(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)
}

func TestDepositBoundsRePrompt(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.handle(ctx, command(buyerID, "deposit")))
	require.NoError(t, f.bot.handle(ctx, text(buyerID, "100")))
	assert.Contains(t, f.t.last().Text, "between")

	// The slot was re-armed, so the corrected amount still lands.
	require.NoError(t, f.bot.handle(ctx, text(buyerID, "50000")))
	assert.Contains(t, f.t.last().Text, "Deposit request")
}

func TestPurchaseFlow(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.UpsertUser(ctx, buyerID, "user", "User"))
	require.NoError(t, f.repo.CreditBalance(ctx, buyerID, 200000))
	f.api.rows = []model.InventoryItem{
		{Identifier: "a@example.com", Secret: "pw1"},
		{Identifier: "b@example.com", Secret: "pw2"},
	}

	require.NoError(t, f.bot.handle(ctx, command(buyerID, "buy")))
	assert.Contains(t, f.t.last().Text, "How many")

	require.NoError(t, f.bot.handle(ctx, text(buyerID, "2")))
	quote := f.t.last()
	assert.Contains(t, quote.Text, "100,000đ")
	require.NotEmpty(t, quote.Buttons)

	require.NoError(t, f.bot.handle(ctx, button(buyerID, quote.Buttons[0][0].Data)))
	receipt := f.t.last()
	assert.True(t, receipt.Edited)
	assert.Contains(t, receipt.Text, "a@example.com:pw1")
	assert.Contains(t, receipt.Text, "b@example.com:pw2")

	balance, err := f.repo.GetBalance(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), balance)
	assert.Empty(t, f.api.rows)
}

func TestPurchaseShortStock(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.UpsertUser(ctx, buyerID, "user", "User"))
	require.NoError(t, f.repo.CreditBalance(ctx, buyerID, 500000))
	f.api.rows = []model.InventoryItem{{Identifier: "a@example.com", Secret: "pw1"}}

	// Stock shrank between quote and confirm: settle for what is left.
	require.NoError(t, f.bot.handle(ctx, button(buyerID, "confirm_buy_3")))
	receipt := f.t.last()
	assert.Contains(t, receipt.Text, "1 of 3")

	balance, err := f.repo.GetBalance(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(450000), balance)
}

func TestUnexpectedTextShowsMenu(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handle(context.Background(), text(buyerID, "hello?")))
	assert.NotEmpty(t, f.t.last().Buttons)
}

func TestCommandAbandonsFlow(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.handle(ctx, command(buyerID, "deposit")))
	require.NoError(t, f.bot.handle(ctx, command(buyerID, "balance")))

	// The deposit slot is gone; plain text falls back to the menu.
	require.NoError(t, f.bot.handle(ctx, text(buyerID, "100000")))
	assert.NotEmpty(t, f.t.last().Buttons)
}

func TestBannedUserBlocked(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.UpsertUser(ctx, buyerID, "user", "User"))
	require.NoError(t, f.repo.SetBanned(ctx, buyerID, true))

	require.NoError(t, f.bot.handle(ctx, command(buyerID, "buy")))
	assert.Contains(t, f.t.last().Text, "blocked")
}

func TestAdminCommandsHiddenFromUsers(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.handle(context.Background(), command(buyerID, "stats")))
	assert.Contains(t, f.t.last().Text, "Unknown command")
}

func TestAdminStockUpload(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.handle(ctx, command(adminID, "addstock")))
	require.NoError(t, f.bot.handle(ctx, text(adminID, "a@example.com:pw1\nb@example.com:pw2\nbroken\nc@example.com:pw3")))

	msg := f.t.last()
	assert.Contains(t, msg.Text, "Added 3 items")
	assert.Contains(t, msg.Text, "Skipped 1")
	assert.Len(t, f.api.rows, 3)
}

func TestAdminBalanceAdjustTwoStep(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.UpsertUser(ctx, buyerID, "user", "User"))

	require.NoError(t, f.bot.handle(ctx, command(adminID, "addbalance")))
	require.NoError(t, f.bot.handle(ctx, text(adminID, "100")))
	assert.Contains(t, f.t.last().Text, "Send the amount")

	require.NoError(t, f.bot.handle(ctx, text(adminID, "75000")))

	balance, err := f.repo.GetBalance(ctx, buyerID)
	require.NoError(t, err)
	assert.Equal(t, int64(75000), balance)
}

func TestAdminDiscountEdit(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.handle(ctx, command(adminID, "setdiscount")))
	require.NoError(t, f.bot.handle(ctx, text(adminID, "100")))
	require.NoError(t, f.bot.handle(ctx, text(adminID, "500000")))
	assert.Contains(t, f.t.last().Text, "Discount set")

	require.NoError(t, f.bot.handle(ctx, command(adminID, "removediscount")))
	require.NoError(t, f.bot.handle(ctx, text(adminID, "100")))
	assert.Contains(t, f.t.last().Text, "removed")
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0đ", formatAmount(0))
	assert.Equal(t, "500đ", formatAmount(500))
	assert.Equal(t, "50,000đ", formatAmount(50000))
	assert.Equal(t, "1,234,567đ", formatAmount(1234567))
	assert.Equal(t, "-50,000đ", formatAmount(-50000))
}
