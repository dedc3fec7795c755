package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mailshop-bot/internal/sheets"
)

func (b *Bot) handleAdminCommand(ctx context.Context, ev Event) error {
	switch ev.Command {
	case "admin":
		return b.sendAdminPanel(ctx, ev)
	case "stats":
		return b.sendStats(ctx, ev)
	case "pending":
		return b.sendPendingDeposits(ctx, ev)
	case "stock":
		return b.sendStockPreview(ctx, ev)
	case "addstock":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagStockLines, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the stock, one identifier:secret pair per line.")
	case "sheet":
		return b.sendSheetStatus(ctx, ev)
	case "users":
		return b.sendUsers(ctx, ev)
	case "ban":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagBanUserID, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the user id to ban.")
	case "unban":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagUnbanUserID, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the user id to unban.")
	case "addbalance":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagBalanceUserID, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the user id to adjust.")
	case "setprice":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagProductPrice, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Current price is %s. Send the new price.", formatAmount(b.settings.ProductPrice())))
	case "setname":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagProductName, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the new product name.")
	case "setbank":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagBankName, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the new bank name.")
	case "setaccount":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagAccountNumber, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the new account number.")
	case "setaccountname":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagAccountName, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the new account holder name.")
	case "setdiscount":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagDiscountThreshold, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the quantity threshold for the discount.")
	case "removediscount":
		if err := b.sessions.Prompt(ctx, ev.UserID, TagDiscountRemove, nil); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Send the quantity threshold to remove.")
	case "resetdiscounts":
		if err := b.discount.ResetRates(); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Discount table reset to defaults.")
	}
	return b.reply(ctx, ev.ChatID, "Unknown command. Use /admin for the panel.")
}

func (b *Bot) handleAdminInput(ctx context.Context, ev Event, slot *PendingInput, text string) error {
	switch slot.Tag {
	case TagStockLines:
		return b.uploadStock(ctx, ev, text)

	case TagBanUserID, TagUnbanUserID:
		userID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return b.reprompt(ctx, ev, slot, "Send a numeric user id.")
		}
		if slot.Tag == TagBanUserID {
			if err := b.account.Ban(ctx, userID); err != nil {
				if msg, ok := userError(err); ok {
					return b.reply(ctx, ev.ChatID, msg)
				}
				return err
			}
			return b.reply(ctx, ev.ChatID, fmt.Sprintf("User %d banned.", userID))
		}
		if err := b.account.Unban(ctx, userID); err != nil {
			if msg, ok := userError(err); ok {
				return b.reply(ctx, ev.ChatID, msg)
			}
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("User %d unbanned.", userID))

	case TagBalanceUserID:
		userID, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return b.reprompt(ctx, ev, slot, "Send a numeric user id.")
		}
		if err := b.sessions.Prompt(ctx, ev.UserID, TagBalanceAmount, map[string]string{"user_id": text}); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Adjusting user %d. Send the amount (negative to deduct).", userID))

	case TagBalanceAmount:
		targetID, err := strconv.ParseInt(slot.Context["user_id"], 10, 64)
		if err != nil {
			return b.reply(ctx, ev.ChatID, "Lost the target user, start over with /addbalance.")
		}
		amount, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
		if err != nil {
			return b.reprompt(ctx, ev, slot, "Send the amount as a plain number.")
		}
		balance, err := b.account.AdjustBalance(ctx, targetID, amount, fmt.Sprintf("Adjustment by admin %d", ev.UserID))
		if err != nil {
			if msg, ok := userError(err); ok {
				return b.reply(ctx, ev.ChatID, msg)
			}
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf(
			"User %d adjusted by %s, balance now %s.", targetID, formatAmount(amount), formatAmount(balance)))

	case TagProductPrice:
		price, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
		if err != nil || price <= 0 {
			return b.reprompt(ctx, ev, slot, "Send the price as a positive number.")
		}
		if err := b.settings.SetProductPrice(price); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Price set to %s.", formatAmount(price)))

	case TagProductName:
		if err := b.settings.SetProductName(text); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Product name set to %q.", text))

	case TagBankName:
		if err := b.settings.SetBankName(text); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Bank name updated.")

	case TagAccountNumber:
		if err := b.settings.SetAccountNumber(text); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Account number updated.")

	case TagAccountName:
		if err := b.settings.SetAccountName(text); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, "Account holder name updated.")

	case TagDiscountThreshold:
		if _, err := strconv.Atoi(text); err != nil {
			return b.reprompt(ctx, ev, slot, "Send the threshold as a number.")
		}
		if err := b.sessions.Prompt(ctx, ev.UserID, TagDiscountAmount, map[string]string{"threshold": text}); err != nil {
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Threshold %s. Now send the rebate amount.", text))

	case TagDiscountAmount:
		threshold, err := strconv.Atoi(slot.Context["threshold"])
		if err != nil {
			return b.reply(ctx, ev.ChatID, "Lost the threshold, start over with /setdiscount.")
		}
		amount, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
		if err != nil {
			return b.reprompt(ctx, ev, slot, "Send the amount as a plain number.")
		}
		if err := b.discount.SetRate(threshold, amount); err != nil {
			if msg, ok := userError(err); ok {
				return b.reply(ctx, ev.ChatID, msg)
			}
			return err
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Discount set: %d+ items pay back %s.", threshold, formatAmount(amount)))

	case TagDiscountRemove:
		threshold, err := strconv.Atoi(text)
		if err != nil {
			return b.reprompt(ctx, ev, slot, "Send the threshold as a number.")
		}
		removed, err := b.discount.RemoveRate(threshold)
		if err != nil {
			return err
		}
		if !removed {
			return b.reply(ctx, ev.ChatID, fmt.Sprintf("No discount at threshold %d.", threshold))
		}
		return b.reply(ctx, ev.ChatID, fmt.Sprintf("Discount at threshold %d removed.", threshold))
	}

	return b.reply(ctx, ev.ChatID, "I was not expecting that. Use /admin for the panel.")
}

func (b *Bot) handleAdminButton(ctx context.Context, ev Event) error {
	data := ev.Data

	switch {
	case strings.HasPrefix(data, "approve_dep_"), strings.HasPrefix(data, "reject_dep_"):
		return b.decideDeposit(ctx, ev)
	case data == "admin_stats":
		return b.sendStats(ctx, ev)
	case data == "admin_pending":
		return b.sendPendingDeposits(ctx, ev)
	case data == "admin_stock":
		return b.sendStockPreview(ctx, ev)
	case data == "admin_sheet":
		return b.sendSheetStatus(ctx, ev)
	}
	return nil
}

// decideDeposit handles the approve/reject buttons. The ledger decides each
// deposit exactly once, so a second press just reports the stale state.
func (b *Bot) decideDeposit(ctx context.Context, ev Event) error {
	approve := strings.HasPrefix(ev.Data, "approve_dep_")
	idText := strings.TrimPrefix(strings.TrimPrefix(ev.Data, "approve_dep_"), "reject_dep_")
	txID, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return b.edit(ctx, ev.Message, "Broken review request, use /pending.")
	}

	if approve {
		t, err := b.account.ApproveDeposit(ctx, txID)
		if err != nil {
			if msg, ok := userError(err); ok {
				return b.edit(ctx, ev.Message, msg)
			}
			return err
		}
		if err := b.edit(ctx, ev.Message, fmt.Sprintf(
			"Deposit #%d approved: %s for user %d.", t.ID, formatAmount(t.Amount), t.UserID)); err != nil {
			return err
		}
		return b.reply(ctx, t.UserID, fmt.Sprintf(
			"Your deposit of %s was approved and credited.", formatAmount(t.Amount)))
	}

	t, err := b.account.RejectDeposit(ctx, txID)
	if err != nil {
		if msg, ok := userError(err); ok {
			return b.edit(ctx, ev.Message, msg)
		}
		return err
	}
	if err := b.edit(ctx, ev.Message, fmt.Sprintf(
		"Deposit #%d rejected for user %d.", t.ID, t.UserID)); err != nil {
		return err
	}
	return b.reply(ctx, t.UserID, fmt.Sprintf(
		"Your deposit request of %s was rejected. Contact support for details.", formatAmount(t.Amount)))
}

// uploadStock parses and appends bulk stock, warning when the upload will
// outrun the remote write window.
func (b *Bot) uploadStock(ctx context.Context, ev Event, text string) error {
	items, skipped := sheets.ParseStock(text)
	if len(items) == 0 {
		return b.reply(ctx, ev.ChatID, "No valid identifier:secret lines found.")
	}

	batches := (len(items) + b.stockBatchSize - 1) / b.stockBatchSize
	if capacity := b.queue.CapacityRemaining(); batches > capacity {
		if err := b.reply(ctx, ev.ChatID, fmt.Sprintf(
			"Heads up: %d write batches but only %d fit in the current window, the rest will be throttled.",
			batches, capacity)); err != nil {
			return err
		}
	}

	appended, err := b.queue.AppendMany(ctx, items, b.stockBatchSize)
	if err != nil {
		return b.reply(ctx, ev.ChatID, fmt.Sprintf(
			"Upload stopped after %d of %d items: %v. Resend the rest.", appended, len(items), err))
	}

	msg := fmt.Sprintf("Added %d items to stock.", appended)
	if skipped > 0 {
		msg += fmt.Sprintf(" Skipped %d malformed lines.", skipped)
	}
	return b.reply(ctx, ev.ChatID, msg)
}

func (b *Bot) sendAdminPanel(ctx context.Context, ev Event) error {
	text := strings.Join([]string{
		"Admin panel",
		"",
		"/pending - review deposits",
		"/addstock - upload stock",
		"/stock - preview stock",
		"/sheet - remote store status",
		"/stats - store stats",
		"/users - list users",
		"/ban /unban /addbalance",
		"/setprice /setname /setbank /setaccount /setaccountname",
		"/setdiscount /removediscount /resetdiscounts",
	}, "\n")

	_, err := b.t.SendMessage(ctx, ev.ChatID, text, [][]Button{
		{{Label: "Deposits", Data: "admin_pending"}, {Label: "Stats", Data: "admin_stats"}},
		{{Label: "Stock", Data: "admin_stock"}, {Label: "Sheet", Data: "admin_sheet"}},
	})
	return err
}

func (b *Bot) sendStats(ctx context.Context, ev Event) error {
	s, err := b.account.Stats(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("Store stats\n\n")
	fmt.Fprintf(&sb, "Users: %d (%d today)\n", s.TotalUsers, s.NewUsersToday)
	fmt.Fprintf(&sb, "Revenue: %s (%s today)\n", formatAmount(s.TotalRevenue), formatAmount(s.RevenueToday))
	fmt.Fprintf(&sb, "Approved deposits: %s\n", formatAmount(s.TotalDeposits))
	return b.reply(ctx, ev.ChatID, sb.String())
}

func (b *Bot) sendPendingDeposits(ctx context.Context, ev Event) error {
	deposits, err := b.account.PendingDeposits(ctx)
	if err != nil {
		return err
	}
	if len(deposits) == 0 {
		return b.reply(ctx, ev.ChatID, "No deposits waiting for review.")
	}

	for _, d := range deposits {
		text := fmt.Sprintf("Deposit request #%d\nUser: %s (%d)\nAmount: %s\nRequested: %s",
			d.TransactionID, d.FirstName, d.UserID, formatAmount(d.Amount),
			d.CreatedAt.Format("02.01.2006 15:04"))
		if _, err := b.t.SendMessage(ctx, ev.ChatID, text, [][]Button{{
			{Label: "Approve", Data: fmt.Sprintf("approve_dep_%d", d.TransactionID)},
			{Label: "Reject", Data: fmt.Sprintf("reject_dep_%d", d.TransactionID)},
		}}); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) sendStockPreview(ctx context.Context, ev Event) error {
	items, err := b.queue.Preview(ctx, 5)
	if err != nil {
		return b.reply(ctx, ev.ChatID, "The remote store is unreachable right now.")
	}
	count, err := b.queue.Count(ctx)
	if err != nil {
		return b.reply(ctx, ev.ChatID, "The remote store is unreachable right now.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Stock: %d items\n\n", count)
	if len(items) > 0 {
		sb.WriteString("Next out:\n")
		for _, item := range items {
			fmt.Fprintf(&sb, "%s\n", item.Identifier)
		}
	}
	return b.reply(ctx, ev.ChatID, sb.String())
}

func (b *Bot) sendSheetStatus(ctx context.Context, ev Event) error {
	st, err := b.queue.Status(ctx)
	if err != nil {
		return b.reply(ctx, ev.ChatID, "The remote store is unreachable right now.")
	}
	return b.reply(ctx, ev.ChatID, fmt.Sprintf(
		"Remote store\n\nItems: %d\nWrite window: %d/%d used, resets in %ds",
		st.Count, st.WindowUsed, st.WindowLimit, st.WindowResetSec))
}

func (b *Bot) sendUsers(ctx context.Context, ev Event) error {
	users, err := b.account.AllUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return b.reply(ctx, ev.ChatID, "No users yet.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Users (%d):\n\n", len(users))
	shown := users
	if len(shown) > 30 {
		shown = shown[:30]
	}
	for _, u := range shown {
		flag := ""
		if u.IsBanned {
			flag = " [banned]"
		}
		fmt.Fprintf(&sb, "%d  %s  %s%s\n", u.UserID, u.Username, formatAmount(u.Balance), flag)
	}
	if len(users) > len(shown) {
		fmt.Fprintf(&sb, "\n... and %d more", len(users)-len(shown))
	}
	return b.reply(ctx, ev.ChatID, sb.String())
}
