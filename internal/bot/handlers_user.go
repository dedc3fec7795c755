package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mailshop-bot/internal/model"
)

func (b *Bot) sendWelcome(ctx context.Context, ev Event) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s!\n\n", ev.FirstName)
	fmt.Fprintf(&sb, "This is the %s store. Top up your balance, buy instantly, claim volume discounts.\n\n", b.settings.ProductName())
	fmt.Fprintf(&sb, "Price: %s each", formatAmount(b.settings.ProductPrice()))

	buttons := [][]Button{
		{{Label: "Buy", Data: "menu_buy"}, {Label: "Deposit", Data: "menu_deposit"}},
		{{Label: "Balance", Data: "menu_balance"}, {Label: "History", Data: "menu_history"}},
		{{Label: "Claim discount", Data: "menu_discount"}},
	}

	_, err := b.t.SendMessage(ctx, ev.ChatID, sb.String(), buttons)
	return err
}

func (b *Bot) sendHelp(ctx context.Context, ev Event) error {
	text := strings.Join([]string{
		"/buy - buy items",
		"/deposit - top up your balance",
		"/balance - show your balance",
		"/history - recent transactions",
		"/orders - your orders",
		"/purchases - items you bought",
		"/discount - claim a volume discount",
		"/cancel - abandon the current step",
	}, "\n")
	return b.reply(ctx, ev.ChatID, text)
}

func (b *Bot) sendBalance(ctx context.Context, ev Event) error {
	u, err := b.account.Profile(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, fmt.Sprintf("Your balance: %s", formatAmount(u.Balance)))
}

// --- deposit flow ---

func (b *Bot) startDeposit(ctx context.Context, ev Event) error {
	min, max := b.account.DepositBounds()
	if err := b.sessions.Prompt(ctx, ev.UserID, TagDepositAmount, nil); err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, fmt.Sprintf(
		"How much would you like to deposit? (between %s and %s)",
		formatAmount(min), formatAmount(max)))
}

func (b *Bot) finishDeposit(ctx context.Context, ev Event, text string) error {
	amount, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil {
		if perr := b.sessions.Prompt(ctx, ev.UserID, TagDepositAmount, nil); perr != nil {
			return perr
		}
		return b.reply(ctx, ev.ChatID, "Please send the amount as a plain number.")
	}

	txID, err := b.account.RequestDeposit(ctx, ev.UserID, amount)
	if err != nil {
		if msg, ok := userError(err); ok {
			if perr := b.sessions.Prompt(ctx, ev.UserID, TagDepositAmount, nil); perr != nil {
				return perr
			}
			return b.reply(ctx, ev.ChatID, msg)
		}
		return err
	}

	pay := b.settings.Payment()
	note := strings.ReplaceAll(pay.Content, "{user_id}", strconv.FormatInt(ev.UserID, 10))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Deposit request #%d for %s created.\n\n", txID, formatAmount(amount))
	fmt.Fprintf(&sb, "Transfer to:\nBank: %s\nAccount: %s\nName: %s\nNote: %s\n\n",
		pay.BankName, pay.AccountNumber, pay.AccountName, note)
	sb.WriteString("Your balance is credited once staff confirms the transfer.")

	if err := b.reply(ctx, ev.ChatID, sb.String()); err != nil {
		return err
	}

	review := fmt.Sprintf("Deposit request #%d\nUser: %s (%d)\nAmount: %s",
		txID, ev.FirstName, ev.UserID, formatAmount(amount))
	b.notifyAdmins(ctx, review, [][]Button{{
		{Label: "Approve", Data: fmt.Sprintf("approve_dep_%d", txID)},
		{Label: "Reject", Data: fmt.Sprintf("reject_dep_%d", txID)},
	}})
	return nil
}

// --- purchase flow ---

func (b *Bot) startPurchase(ctx context.Context, ev Event) error {
	stock, err := b.queue.Count(ctx)
	if err != nil {
		return b.reply(ctx, ev.ChatID, "The store is unreachable right now, please try again in a minute.")
	}
	if stock == 0 {
		return b.reply(ctx, ev.ChatID, "Out of stock right now. Check back later.")
	}

	if err := b.sessions.Prompt(ctx, ev.UserID, TagPurchaseQuantity, nil); err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - %s\n%s\n\n", b.settings.ProductName(),
		formatAmount(b.settings.ProductPrice()), b.settings.ProductDescription())
	fmt.Fprintf(&sb, "In stock: %d\n\nHow many would you like?", stock)
	return b.reply(ctx, ev.ChatID, sb.String())
}

func (b *Bot) quotePurchase(ctx context.Context, ev Event, text string) error {
	quantity, err := strconv.Atoi(text)
	if err != nil || quantity <= 0 {
		if perr := b.sessions.Prompt(ctx, ev.UserID, TagPurchaseQuantity, nil); perr != nil {
			return perr
		}
		return b.reply(ctx, ev.ChatID, "Please send the quantity as a positive number.")
	}

	q, err := b.purchase.Quote(ctx, ev.UserID, quantity)
	if err != nil {
		if msg, ok := userError(err); ok {
			return b.reply(ctx, ev.ChatID, msg)
		}
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Order quote\n\n%d x %s at %s\nTotal: %s\nBalance after: %s\n\nConfirm?",
		q.Quantity, q.Product, formatAmount(q.UnitPrice), formatAmount(q.Total),
		formatAmount(q.Balance-q.Total))

	_, err = b.t.SendMessage(ctx, ev.ChatID, sb.String(), [][]Button{{
		{Label: "Confirm", Data: fmt.Sprintf("confirm_buy_%d", quantity)},
		{Label: "Cancel", Data: "cancel_buy"},
	}})
	return err
}

func (b *Bot) confirmPurchase(ctx context.Context, ev Event, arg string) error {
	quantity, err := strconv.Atoi(arg)
	if err != nil || quantity <= 0 {
		return b.edit(ctx, ev.Message, "This purchase is no longer valid, start over with /buy.")
	}

	r, err := b.purchase.Execute(ctx, ev.UserID, quantity)
	if err != nil {
		if msg, ok := userError(err); ok {
			return b.edit(ctx, ev.Message, msg)
		}
		return b.edit(ctx, ev.Message, "The purchase failed, nothing was charged. Please try again.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Order %s settled.\n\n", r.OrderID)
	if r.Dispensed < r.Requested {
		fmt.Fprintf(&sb, "Stock ran short: %d of %d items delivered, you were only charged for %d.\n\n",
			r.Dispensed, r.Requested, r.Dispensed)
	}
	for _, item := range r.Items {
		fmt.Fprintf(&sb, "%s:%s\n", item.Identifier, item.Secret)
	}
	fmt.Fprintf(&sb, "\nCharged: %s\nBalance: %s", formatAmount(r.Total), formatAmount(r.Balance))
	if b.discount.EligibleAmount(r.Dispensed) > 0 {
		fmt.Fprintf(&sb, "\n\nThis order qualifies for a %s discount. Claim it with /discount using code %s.",
			formatAmount(b.discount.EligibleAmount(r.Dispensed)), r.OrderID)
	}
	return b.edit(ctx, ev.Message, sb.String())
}

// --- discount flow ---

func (b *Bot) startDiscountClaim(ctx context.Context, ev Event) error {
	rates := b.discount.Rates()
	if len(rates) == 0 {
		return b.reply(ctx, ev.ChatID, "No discounts are running right now.")
	}

	var sb strings.Builder
	sb.WriteString("Volume discounts:\n")
	for _, rate := range rates {
		fmt.Fprintf(&sb, "%d+ items: %s back\n", rate.Quantity, formatAmount(rate.Amount))
	}
	sb.WriteString("\nSend the order code from your receipt to claim.")

	if err := b.sessions.Prompt(ctx, ev.UserID, TagDiscountOrderID, nil); err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, sb.String())
}

func (b *Bot) finishDiscountClaim(ctx context.Context, ev Event, text string) error {
	orderID := strings.ToUpper(text)

	amount, err := b.discount.Claim(ctx, ev.UserID, orderID)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			if perr := b.sessions.Prompt(ctx, ev.UserID, TagDiscountOrderID, nil); perr != nil {
				return perr
			}
			return b.reply(ctx, ev.ChatID, "No order with that code. Check the receipt and send it again.")
		}
		if msg, ok := userError(err); ok {
			return b.reply(ctx, ev.ChatID, msg)
		}
		return err
	}

	balance, err := b.account.Balance(ctx, ev.UserID)
	if err != nil {
		return err
	}
	return b.reply(ctx, ev.ChatID, fmt.Sprintf(
		"Discount of %s credited for order %s.\nBalance: %s",
		formatAmount(amount), orderID, formatAmount(balance)))
}

// --- histories ---

func (b *Bot) sendHistory(ctx context.Context, ev Event) error {
	entries, err := b.account.Transactions(ctx, ev.UserID, 10)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return b.reply(ctx, ev.ChatID, "No transactions yet.")
	}

	var sb strings.Builder
	sb.WriteString("Recent transactions:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s  %s  %s (%s)\n",
			e.CreatedAt.Format("02.01 15:04"), e.Type, formatAmount(e.Amount), e.Status)
	}
	return b.reply(ctx, ev.ChatID, sb.String())
}

func (b *Bot) sendOrders(ctx context.Context, ev Event) error {
	orders, err := b.account.Orders(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return b.reply(ctx, ev.ChatID, "No orders yet. Use /buy to place one.")
	}

	var sb strings.Builder
	sb.WriteString("Your orders:\n\n")
	for _, o := range orders {
		fmt.Fprintf(&sb, "%s  %d items  %s  %s\n",
			o.OrderID, o.Quantity, formatAmount(o.TotalAmount), o.CreatedAt.Format("02.01.2006"))
	}
	return b.reply(ctx, ev.ChatID, sb.String())
}

func (b *Bot) sendPurchases(ctx context.Context, ev Event) error {
	purchases, err := b.account.Purchases(ctx, ev.UserID, 20)
	if err != nil {
		return err
	}
	if len(purchases) == 0 {
		return b.reply(ctx, ev.ChatID, "You have not bought anything yet.")
	}

	var sb strings.Builder
	sb.WriteString("Your items:\n\n")
	for _, p := range purchases {
		fmt.Fprintf(&sb, "%s:%s\n", p.Identifier, p.Secret)
	}
	return b.reply(ctx, ev.ChatID, sb.String())
}
