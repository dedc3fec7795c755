package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailshop-bot/internal/cache"
)

func newSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	return NewSessionStore(c, 30*time.Minute)
}

func TestSessionSlotEmpty(t *testing.T) {
	s := newSessionStore(t)

	slot, err := s.Peek(context.Background(), 100)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestSessionSlotTake(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Prompt(ctx, 100, TagDepositAmount, nil))

	slot, err := s.Take(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, TagDepositAmount, slot.Tag)

	// Taking consumes the slot.
	slot, err = s.Take(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestSessionSlotReplaced(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	// A new prompt replaces an abandoned one; only the newest question is
	// ever answered.
	require.NoError(t, s.Prompt(ctx, 100, TagDepositAmount, nil))
	require.NoError(t, s.Prompt(ctx, 100, TagPurchaseQuantity, nil))

	slot, err := s.Take(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, TagPurchaseQuantity, slot.Tag)
}

func TestSessionSlotContext(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Prompt(ctx, 100, TagBalanceAmount, map[string]string{"user_id": "200"}))

	slot, err := s.Take(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, "200", slot.Context["user_id"])
}

func TestSessionSlotsIsolated(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Prompt(ctx, 100, TagDepositAmount, nil))

	slot, err := s.Peek(ctx, 200)
	require.NoError(t, err)
	assert.Nil(t, slot)
}

func TestSessionClear(t *testing.T) {
	s := newSessionStore(t)
	ctx := context.Background()

	require.NoError(t, s.Prompt(ctx, 100, TagDepositAmount, nil))
	require.NoError(t, s.Clear(ctx, 100))

	slot, err := s.Peek(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, slot)

	// Clearing an empty slot is fine.
	require.NoError(t, s.Clear(ctx, 100))
}
