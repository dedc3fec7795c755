package sheets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailshop-bot/internal/model"
)

// fakeRowAPI is an in-memory row store.
type fakeRowAPI struct {
	rows        []model.InventoryItem
	appendCalls int
	deleteCalls int
	failAppend  int // fail the Nth append call (1-based), 0 = never
}

func (f *fakeRowAPI) RowCount(context.Context) (int, error) {
	return len(f.rows), nil
}

func (f *fakeRowAPI) ReadRows(_ context.Context, offset, limit int) ([]model.InventoryItem, error) {
	if offset >= len(f.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	out := make([]model.InventoryItem, end-offset)
	copy(out, f.rows[offset:end])
	return out, nil
}

func (f *fakeRowAPI) AppendRows(_ context.Context, items []model.InventoryItem) error {
	f.appendCalls++
	if f.failAppend > 0 && f.appendCalls == f.failAppend {
		return ErrUnavailable
	}
	f.rows = append(f.rows, items...)
	return nil
}

func (f *fakeRowAPI) DeleteRow(_ context.Context, index int) error {
	f.deleteCalls++
	if index >= len(f.rows) {
		return ErrUnavailable
	}
	f.rows = append(f.rows[:index], f.rows[index+1:]...)
	return nil
}

func newTestQueue(api RowAPI) *Queue {
	// No spacing so tests run without sleeping.
	limiter := NewLimiter(LimiterConfig{Window: time.Minute, WindowLimit: 1000, WriteDelay: 0, MaxRetries: 0})
	return NewQueue(api, limiter)
}

func stock(identifiers ...string) []model.InventoryItem {
	items := make([]model.InventoryItem, 0, len(identifiers))
	for _, id := range identifiers {
		items = append(items, model.InventoryItem{Identifier: id, Secret: "pw-" + id})
	}
	return items
}

func TestQueuePopFrontFIFO(t *testing.T) {
	api := &fakeRowAPI{rows: stock("a", "b", "c")}
	q := newTestQueue(api)
	ctx := context.Background()

	first, err := q.PopFront(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Identifier)

	second, err := q.PopFront(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", second.Identifier)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 2, api.deleteCalls)
}

func TestQueuePopFrontEmpty(t *testing.T) {
	q := newTestQueue(&fakeRowAPI{})

	_, err := q.PopFront(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestQueuePeekDoesNotRemove(t *testing.T) {
	api := &fakeRowAPI{rows: stock("a", "b")}
	q := newTestQueue(api)
	ctx := context.Background()

	item, err := q.PeekFront(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", item.Identifier)

	count, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 0, api.deleteCalls)
}

func TestAppendManyBatches(t *testing.T) {
	api := &fakeRowAPI{}
	q := newTestQueue(api)

	appended, err := q.AppendMany(context.Background(), stock("a", "b", "c", "d", "e"), 3)
	require.NoError(t, err)
	assert.Equal(t, 5, appended)
	// 3 + 2 in two write calls.
	assert.Equal(t, 2, api.appendCalls)

	assert.Equal(t, "a", api.rows[0].Identifier)
	assert.Equal(t, "e", api.rows[4].Identifier)
}

func TestAppendManyPartialFailure(t *testing.T) {
	api := &fakeRowAPI{failAppend: 2}
	q := newTestQueue(api)

	appended, err := q.AppendMany(context.Background(), stock("a", "b", "c", "d", "e"), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	// The first batch of three landed before the failure.
	assert.Equal(t, 3, appended)
	assert.Len(t, api.rows, 3)
}

func TestQueueStatus(t *testing.T) {
	api := &fakeRowAPI{rows: stock("a", "b", "c")}
	q := newTestQueue(api)

	_, err := q.PopFront(context.Background())
	require.NoError(t, err)

	st, err := q.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Count)
	assert.Equal(t, 1, st.WindowUsed)
	assert.Equal(t, 1000, st.WindowLimit)
}

func TestParseStock(t *testing.T) {
	text := "alice@example.com:pw1\n\n  bob@example.com : pw2  \nbroken-line\ncarol@example.com:pw:with:colons\n"

	items, skipped := ParseStock(text)
	require.Len(t, items, 3)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "alice@example.com", items[0].Identifier)
	assert.Equal(t, "pw1", items[0].Secret)
	assert.Equal(t, "bob@example.com", items[1].Identifier)
	assert.Equal(t, "pw2", items[1].Secret)
	// Only the first separator splits; secrets may contain colons.
	assert.Equal(t, "pw:with:colons", items[2].Secret)
}
