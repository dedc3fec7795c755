package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"mailshop-bot/internal/model"
	"mailshop-bot/internal/service"
	"mailshop-bot/internal/settings"
	"mailshop-bot/internal/sheets"
)

// Deps are the collaborators of the storefront bot.
type Deps struct {
	Transport Transport
	Sessions  *SessionStore
	Account   *service.AccountService
	Purchase  *service.PurchaseService
	Discount  *service.DiscountService
	Queue     *sheets.Queue
	Settings  *settings.Store

	// IsAdmin reports whether a user id belongs to staff.
	IsAdmin func(int64) bool
	// AdminChatIDs receive deposit review requests.
	AdminChatIDs []int64
	// StockBatchSize is the append batch size for bulk uploads.
	StockBatchSize int
}

// Bot routes chat events to the storefront flows. Free-text messages are
// resolved against the session's single pending-input slot: whatever
// question was asked last is the one the text answers.
type Bot struct {
	t        Transport
	sessions *SessionStore
	account  *service.AccountService
	purchase *service.PurchaseService
	discount *service.DiscountService
	queue    *sheets.Queue
	settings *settings.Store

	isAdmin        func(int64) bool
	adminChats     []int64
	stockBatchSize int
}

// New creates the bot.
func New(d Deps) *Bot {
	if d.StockBatchSize <= 0 {
		d.StockBatchSize = 3
	}
	return &Bot{
		t:              d.Transport,
		sessions:       d.Sessions,
		account:        d.Account,
		purchase:       d.Purchase,
		discount:       d.Discount,
		queue:          d.Queue,
		settings:       d.Settings,
		isAdmin:        d.IsAdmin,
		adminChats:     d.AdminChatIDs,
		stockBatchSize: d.StockBatchSize,
	}
}

// Run polls the transport until ctx is done. Events are handled in arrival
// order; a failing handler logs and never stops the loop.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("[Bot] Event loop started")
	for {
		events, err := b.t.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("[Bot] Event loop stopped")
				return ctx.Err()
			}
			log.Printf("[Bot] Poll failed: %v", err)
			continue
		}
		for _, ev := range events {
			if err := b.handle(ctx, ev); err != nil {
				log.Printf("[Bot] Event from user %d failed: %v", ev.UserID, err)
			}
		}
	}
}

func (b *Bot) handle(ctx context.Context, ev Event) error {
	if err := b.account.Register(ctx, ev.UserID, ev.Username, ev.FirstName); err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	if u, err := b.account.Profile(ctx, ev.UserID); err == nil && u.IsBanned && !b.isAdmin(ev.UserID) {
		return b.reply(ctx, ev.ChatID, "Your account is blocked. Contact support if you believe this is a mistake.")
	}

	switch ev.Kind {
	case EventCommand:
		return b.handleCommand(ctx, ev)
	case EventButton:
		if err := b.t.AckButton(ctx, ev.CallbackID, ""); err != nil {
			log.Printf("[Bot] Failed to ack button: %v", err)
		}
		return b.handleButton(ctx, ev)
	case EventText:
		return b.handleText(ctx, ev)
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, ev Event) error {
	// Any command abandons a half-finished flow.
	if ev.Command != "cancel" {
		if err := b.sessions.Clear(ctx, ev.UserID); err != nil {
			log.Printf("[Bot] Failed to clear session: %v", err)
		}
	}

	switch ev.Command {
	case "start":
		return b.sendWelcome(ctx, ev)
	case "help":
		return b.sendHelp(ctx, ev)
	case "buy":
		return b.startPurchase(ctx, ev)
	case "deposit":
		return b.startDeposit(ctx, ev)
	case "balance":
		return b.sendBalance(ctx, ev)
	case "history":
		return b.sendHistory(ctx, ev)
	case "orders":
		return b.sendOrders(ctx, ev)
	case "purchases":
		return b.sendPurchases(ctx, ev)
	case "discount":
		return b.startDiscountClaim(ctx, ev)
	case "cancel":
		if err := b.sessions.Clear(ctx, ev.UserID); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Cancelled.")
	}

	if b.isAdmin(ev.UserID) {
		return b.handleAdminCommand(ctx, ev)
	}
	return b.reply(ctx, ev.ChatID, "Unknown command. Use /help to see what I can do.")
}

func (b *Bot) handleText(ctx context.Context, ev Event) error {
	slot, err := b.sessions.Take(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if slot == nil {
		// Not waiting for anything: show the menu instead of guessing.
		return b.sendWelcome(ctx, ev)
	}

	text := strings.TrimSpace(ev.Text)

	switch slot.Tag {
	case TagDepositAmount:
		return b.finishDeposit(ctx, ev, text)
	case TagPurchaseQuantity:
		return b.quotePurchase(ctx, ev, text)
	case TagDiscountOrderID:
		return b.finishDiscountClaim(ctx, ev, text)
	}

	if b.isAdmin(ev.UserID) {
		return b.handleAdminInput(ctx, ev, slot, text)
	}
	return b.reply(ctx, ev.ChatID, "I was not expecting that. Use /help to see what I can do.")
}

func (b *Bot) handleButton(ctx context.Context, ev Event) error {
	data := ev.Data

	switch {
	case data == "menu_buy":
		return b.startPurchase(ctx, ev)
	case data == "menu_deposit":
		return b.startDeposit(ctx, ev)
	case data == "menu_balance":
		return b.sendBalance(ctx, ev)
	case data == "menu_history":
		return b.sendHistory(ctx, ev)
	case data == "menu_discount":
		return b.startDiscountClaim(ctx, ev)
	case strings.HasPrefix(data, "confirm_buy_"):
		return b.confirmPurchase(ctx, ev, strings.TrimPrefix(data, "confirm_buy_"))
	case data == "cancel_buy":
		if err := b.sessions.Clear(ctx, ev.UserID); err != nil {
			return err
		}
		return b.edit(ctx, ev.Message, "Purchase cancelled.")
	}

	if b.isAdmin(ev.UserID) {
		return b.handleAdminButton(ctx, ev)
	}
	return nil
}

// reply sends plain text without a keyboard.
func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	_, err := b.t.SendMessage(ctx, chatID, text, nil)
	return err
}

// reprompt re-arms the slot that was just consumed and asks again, so a
// validation failure does not dump the user back at the menu.
func (b *Bot) reprompt(ctx context.Context, ev Event, slot *PendingInput, text string) error {
	if err := b.sessions.Prompt(ctx, ev.UserID, slot.Tag, slot.Context); err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, text)
}

// edit rewrites a keyboard message in place, dropping the keyboard.
func (b *Bot) edit(ctx context.Context, ref MessageRef, text string) error {
	return b.t.EditMessage(ctx, ref, text, nil)
}

// notifyAdmins fans a message out to every staff chat.
func (b *Bot) notifyAdmins(ctx context.Context, text string, buttons [][]Button) {
	for _, chatID := range b.adminChats {
		if _, err := b.t.SendMessage(ctx, chatID, text, buttons); err != nil {
			log.Printf("[Bot] Failed to notify admin chat %d: %v", chatID, err)
		}
	}
}

// formatAmount renders minor currency units with thousands separators.
func formatAmount(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	digits := fmt.Sprintf("%d", amount)
	var parts []string
	for len(digits) > 3 {
		parts = append([]string{digits[len(digits)-3:]}, parts...)
		digits = digits[:len(digits)-3]
	}
	parts = append([]string{digits}, parts...)

	out := strings.Join(parts, ",") + "đ"
	if negative {
		return "-" + out
	}
	return out
}

// userError maps domain errors to user-facing text; other errors pass through.
func userError(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrInsufficientBalance):
		return "Your balance does not cover this. Use /deposit to top up.", true
	case errors.Is(err, model.ErrInsufficientInventory):
		return "Not enough items in stock right now. Try a smaller quantity or come back later.", true
	case errors.Is(err, model.ErrOrderNotFound):
		return "No order with that code. Check the code on your receipt.", true
	case errors.Is(err, model.ErrNotOrderOwner):
		return "That order belongs to a different account.", true
	case errors.Is(err, model.ErrAlreadyClaimed):
		return "The discount for this order has already been claimed.", true
	case errors.Is(err, model.ErrNotEligible):
		return "This order does not reach any discount threshold.", true
	case errors.Is(err, model.ErrDepositNotPending):
		return "This deposit has already been reviewed.", true
	case errors.Is(err, model.ErrInvalidInput):
		return "That does not look right: " + err.Error(), true
	}
	return "", false
}
