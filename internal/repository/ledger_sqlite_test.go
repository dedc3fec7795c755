package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailshop-bot/internal/model"
)

func newTestRepo(t *testing.T) *SQLiteLedgerRepository {
	t.Helper()

	repo, err := NewSQLiteLedgerRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestUpsertUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))

	u, err := repo.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, int64(0), u.Balance)
	assert.False(t, u.IsBanned)

	// Re-registering refreshes names but keeps the balance.
	require.NoError(t, repo.CreditBalance(ctx, 100, 5000))
	require.NoError(t, repo.UpsertUser(ctx, 100, "alice2", "Alice"))

	u, err = repo.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice2", u.Username)
	assert.Equal(t, int64(5000), u.Balance)
}

func TestGetUserNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetUser(context.Background(), 404)
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestDebitBalanceGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	require.NoError(t, repo.CreditBalance(ctx, 100, 1000))

	// Overdraw must fail and leave the balance untouched.
	err := repo.DebitBalance(ctx, 100, 1500)
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	balance, err := repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	// Exact balance drains to zero.
	require.NoError(t, repo.DebitBalance(ctx, 100, 1000))
	balance, err = repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestApproveDepositExactlyOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	txID, err := repo.AddTransaction(ctx, 100, model.TransactionDeposit, 50000, "Deposit request", model.StatusPending)
	require.NoError(t, err)

	tr, err := repo.ApproveDeposit(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), tr.UserID)
	assert.Equal(t, int64(50000), tr.Amount)

	balance, err := repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), balance)

	// A second decision on the same deposit must not credit again.
	_, err = repo.ApproveDeposit(ctx, txID)
	assert.ErrorIs(t, err, model.ErrDepositNotPending)
	_, err = repo.RejectDeposit(ctx, txID)
	assert.ErrorIs(t, err, model.ErrDepositNotPending)

	balance, err = repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), balance)
}

func TestRejectDepositLeavesBalance(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	txID, err := repo.AddTransaction(ctx, 100, model.TransactionDeposit, 50000, "Deposit request", model.StatusPending)
	require.NoError(t, err)

	tr, err := repo.RejectDeposit(ctx, txID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, tr.Status)

	balance, err := repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	deposits, err := repo.PendingDeposits(ctx)
	require.NoError(t, err)
	assert.Empty(t, deposits)
}

func TestPendingDepositsOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	require.NoError(t, repo.UpsertUser(ctx, 200, "bob", "Bob"))

	first, err := repo.AddTransaction(ctx, 100, model.TransactionDeposit, 50000, "Deposit request", model.StatusPending)
	require.NoError(t, err)
	second, err := repo.AddTransaction(ctx, 200, model.TransactionDeposit, 70000, "Deposit request", model.StatusPending)
	require.NoError(t, err)

	deposits, err := repo.PendingDeposits(ctx)
	require.NoError(t, err)
	require.Len(t, deposits, 2)
	assert.Equal(t, first, deposits[0].TransactionID)
	assert.Equal(t, second, deposits[1].TransactionID)
	assert.Equal(t, "bob", deposits[1].Username)
}

func TestCreateAndGetOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))

	orderID, err := repo.CreateOrder(ctx, 100, 3, 150000)
	require.NoError(t, err)
	assert.Regexp(t, `^ORD[0-9A-F]{8}$`, orderID)

	o, err := repo.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), o.UserID)
	assert.Equal(t, 3, o.Quantity)
	assert.Equal(t, int64(150000), o.TotalAmount)

	_, err = repo.GetOrder(ctx, "ORDFFFFFFFF")
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
}

func TestClaimDiscountOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	orderID, err := repo.CreateOrder(ctx, 100, 10, 500000)
	require.NoError(t, err)

	require.NoError(t, repo.ClaimDiscount(ctx, orderID, 100, 10000))

	balance, err := repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)

	err = repo.ClaimDiscount(ctx, orderID, 100, 10000)
	assert.ErrorIs(t, err, model.ErrAlreadyClaimed)

	balance, err = repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
}

func TestClaimDiscountConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	orderID, err := repo.CreateOrder(ctx, 100, 10, 500000)
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- repo.ClaimDiscount(ctx, orderID, 100, 10000)
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, model.ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, succeeded)

	// The rebate must have been paid out exactly once.
	balance, err := repo.GetBalance(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
}

func TestLedgerInvariant(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))

	// Approved deposit.
	txID, err := repo.AddTransaction(ctx, 100, model.TransactionDeposit, 200000, "Deposit request", model.StatusPending)
	require.NoError(t, err)
	_, err = repo.ApproveDeposit(ctx, txID)
	require.NoError(t, err)

	// Admin bonus.
	require.NoError(t, repo.CreditBalance(ctx, 100, 30000))
	_, err = repo.AddTransaction(ctx, 100, model.TransactionBonus, 30000, "Bonus", model.StatusApproved)
	require.NoError(t, err)

	// Purchase.
	require.NoError(t, repo.DebitBalance(ctx, 100, 100000))
	_, err = repo.AddTransaction(ctx, 100, model.TransactionPurchase, -100000, "Purchase", model.StatusApproved)
	require.NoError(t, err)

	// Discount claim.
	orderID, err := repo.CreateOrder(ctx, 100, 2, 100000)
	require.NoError(t, err)
	require.NoError(t, repo.ClaimDiscount(ctx, orderID, 100, 10000))

	balance, err := repo.GetBalance(ctx, 100)
	require.NoError(t, err)

	// Balance must equal the signed sum of approved ledger entries.
	entries, err := repo.UserTransactions(ctx, 100, 50)
	require.NoError(t, err)

	var sum int64
	for _, e := range entries {
		if e.Status == model.StatusApproved {
			sum += e.Amount
		}
	}
	assert.Equal(t, sum, balance)
	assert.Equal(t, int64(140000), balance)
}

func TestUserPurchasesAndTransactionsLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AddPurchase(ctx, 100, "acc@example.com", "secret", 50000))
	}

	purchases, err := repo.UserPurchases(ctx, 100, 3)
	require.NoError(t, err)
	assert.Len(t, purchases, 3)

	all, err := repo.UserPurchases(ctx, 100, 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSetBanned(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	require.NoError(t, repo.SetBanned(ctx, 100, true))

	u, err := repo.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.True(t, u.IsBanned)

	require.NoError(t, repo.SetBanned(ctx, 100, false))
	u, err = repo.GetUser(ctx, 100)
	require.NoError(t, err)
	assert.False(t, u.IsBanned)

	assert.ErrorIs(t, repo.SetBanned(ctx, 404, true), model.ErrUserNotFound)
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertUser(ctx, 100, "alice", "Alice"))
	require.NoError(t, repo.UpsertUser(ctx, 200, "bob", "Bob"))

	txID, err := repo.AddTransaction(ctx, 100, model.TransactionDeposit, 200000, "Deposit request", model.StatusPending)
	require.NoError(t, err)
	_, err = repo.ApproveDeposit(ctx, txID)
	require.NoError(t, err)

	require.NoError(t, repo.AddPurchase(ctx, 100, "acc@example.com", "secret", 50000))
	require.NoError(t, repo.AddPurchase(ctx, 200, "acc2@example.com", "secret", 50000))

	s, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.TotalUsers)
	assert.Equal(t, int64(100000), s.TotalRevenue)
	assert.Equal(t, int64(200000), s.TotalDeposits)
}
