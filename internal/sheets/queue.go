package sheets

import (
	"context"
	"fmt"
	"strings"

	"mailshop-bot/internal/model"
)

// Queue gives the remote row store FIFO semantics: items are appended at the
// tail and dispensed from the front. Reads go straight to the store; every
// write (append, delete) goes through the limiter.
//
// Popping is a read followed by a delete. The two are not atomic on the
// remote side, so a crash between them can lose the item; the purchase layer
// records each item locally before asking for the next one to keep that
// window small.
type Queue struct {
	api     RowAPI
	limiter *Limiter
}

// NewQueue creates a queue over api, throttled by limiter.
func NewQueue(api RowAPI, limiter *Limiter) *Queue {
	return &Queue{api: api, limiter: limiter}
}

// Count returns the number of items waiting in the queue.
func (q *Queue) Count(ctx context.Context) (int, error) {
	return q.api.RowCount(ctx)
}

// PeekFront returns the front item without removing it, or ErrEmpty.
func (q *Queue) PeekFront(ctx context.Context) (*model.InventoryItem, error) {
	items, err := q.api.ReadRows(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmpty
	}
	return &items[0], nil
}

// PopFront removes and returns the front item, or ErrEmpty. A failed delete
// is returned to the caller; the item may then still be at the front.
func (q *Queue) PopFront(ctx context.Context) (*model.InventoryItem, error) {
	item, err := q.PeekFront(ctx)
	if err != nil {
		return nil, err
	}

	err = q.limiter.Execute(ctx, func(ctx context.Context) error {
		return q.api.DeleteRow(ctx, 0)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to remove dispensed item: %w", err)
	}
	return item, nil
}

// AppendMany appends items in batches so one bulk upload does not monopolize
// the write window. It returns how many items made it in; on error the count
// covers the batches that succeeded before the failure.
func (q *Queue) AppendMany(ctx context.Context, items []model.InventoryItem, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	appended := 0
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		err := q.limiter.Execute(ctx, func(ctx context.Context) error {
			return q.api.AppendRows(ctx, batch)
		})
		if err != nil {
			return appended, fmt.Errorf("failed to append batch: %w", err)
		}
		appended += len(batch)
	}
	return appended, nil
}

// Preview returns up to limit items from the front without removing them.
func (q *Queue) Preview(ctx context.Context, limit int) ([]model.InventoryItem, error) {
	return q.api.ReadRows(ctx, 0, limit)
}

// Status describes the queue and its write window for the admin panel.
type Status struct {
	Count          int `json:"count"`
	WindowUsed     int `json:"window_used"`
	WindowLimit    int `json:"window_limit"`
	WindowResetSec int `json:"window_reset_sec"`
}

// Status returns the current queue depth and write-window occupancy.
func (q *Queue) Status(ctx context.Context) (*Status, error) {
	count, err := q.api.RowCount(ctx)
	if err != nil {
		return nil, err
	}
	used, limit := q.limiter.Usage()
	return &Status{
		Count:          count,
		WindowUsed:     used,
		WindowLimit:    limit,
		WindowResetSec: int(q.limiter.ResetIn().Seconds()),
	}, nil
}

// CapacityRemaining reports how many writes fit in the window right now.
func (q *Queue) CapacityRemaining() int {
	return q.limiter.CapacityRemaining()
}

// ParseStock parses bulk upload text, one "identifier:secret" pair per line.
// Lines without a separator are skipped and counted.
func ParseStock(text string) (items []model.InventoryItem, skipped int) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		identifier, secret, ok := strings.Cut(line, ":")
		if !ok {
			skipped++
			continue
		}
		items = append(items, model.InventoryItem{
			Identifier: strings.TrimSpace(identifier),
			Secret:     strings.TrimSpace(secret),
		})
	}
	return items, skipped
}
