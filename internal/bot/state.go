package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mailshop-bot/internal/cache"
)

// Input tags. Each names the one piece of text the conversation is waiting
// for; a session holds at most one at a time.
const (
	TagDepositAmount     = "deposit_amount"
	TagPurchaseQuantity  = "purchase_quantity"
	TagDiscountOrderID   = "discount_order_id"
	TagStockLines        = "stock_lines"
	TagBanUserID         = "ban_user_id"
	TagUnbanUserID       = "unban_user_id"
	TagBalanceUserID     = "balance_user_id"
	TagBalanceAmount     = "balance_amount"
	TagProductPrice      = "product_price"
	TagProductName       = "product_name"
	TagBankName          = "bank_name"
	TagAccountNumber     = "account_number"
	TagAccountName       = "account_name"
	TagDiscountThreshold = "discount_threshold"
	TagDiscountAmount    = "discount_amount"
	TagDiscountRemove    = "discount_remove"
)

// PendingInput is the single conversation slot of a session: which input the
// next free-text message answers, plus whatever context the earlier step
// collected (e.g. the target user id while waiting for the amount).
type PendingInput struct {
	Tag     string            `json:"tag"`
	Context map[string]string `json:"context,omitempty"`
	SetAt   time.Time         `json:"set_at"`
}

// SessionStore keeps per-session conversation slots in the cache. Setting a
// new slot replaces the old one, so a user who abandons one flow and starts
// another only ever answers the newest question.
type SessionStore struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessionStore creates a session store with the given slot TTL.
func NewSessionStore(c cache.Cache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: c, ttl: ttl}
}

func sessionKey(sessionID int64) string {
	return fmt.Sprintf("mailshop:session:%d", sessionID)
}

// Prompt arms the session's slot with tag and context, replacing any
// previous slot.
func (s *SessionStore) Prompt(ctx context.Context, sessionID int64, tag string, inputCtx map[string]string) error {
	data, err := json.Marshal(PendingInput{Tag: tag, Context: inputCtx, SetAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to serialize session slot: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKey(sessionID), data, s.ttl); err != nil {
		return fmt.Errorf("failed to store session slot: %w", err)
	}
	return nil
}

// Peek returns the session's slot without clearing it, or nil when the
// session is not waiting for anything.
func (s *SessionStore) Peek(ctx context.Context, sessionID int64) (*PendingInput, error) {
	data, err := s.cache.Get(ctx, sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session slot: %w", err)
	}

	var p PendingInput
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse session slot: %w", err)
	}
	return &p, nil
}

// Take returns and clears the session's slot, or nil when empty. The slot is
// consumed even if the caller then rejects the input; re-prompting is the
// caller's job.
func (s *SessionStore) Take(ctx context.Context, sessionID int64) (*PendingInput, error) {
	p, err := s.Peek(ctx, sessionID)
	if err != nil || p == nil {
		return p, err
	}
	if err := s.cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		return nil, fmt.Errorf("failed to clear session slot: %w", err)
	}
	return p, nil
}

// Clear empties the session's slot.
func (s *SessionStore) Clear(ctx context.Context, sessionID int64) error {
	if err := s.cache.Delete(ctx, sessionKey(sessionID)); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return fmt.Errorf("failed to clear session slot: %w", err)
	}
	return nil
}
