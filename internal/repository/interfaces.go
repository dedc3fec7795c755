package repository

import (
	"context"

	"mailshop-bot/internal/model"
)

// LedgerRepository is the relational store of users, balances, transactions,
// orders and discount claims. Balance mutations are single atomic statements;
// there is no cross-call locking.
type LedgerRepository interface {
	// UpsertUser registers a user if unseen, otherwise refreshes the name fields.
	UpsertUser(ctx context.Context, userID int64, username, firstName string) error

	// GetUser returns a user or model.ErrUserNotFound.
	GetUser(ctx context.Context, userID int64) (*model.User, error)

	// GetBalance returns the current balance, zero for unknown users.
	GetBalance(ctx context.Context, userID int64) (int64, error)

	// CreditBalance atomically adds amount (positive) to a user's balance.
	CreditBalance(ctx context.Context, userID, amount int64) error

	// DebitBalance atomically subtracts amount, guarded so the balance never
	// goes negative. Returns model.ErrInsufficientBalance when the guard fails.
	DebitBalance(ctx context.Context, userID, amount int64) error

	// SetBanned toggles the banned flag.
	SetBanned(ctx context.Context, userID int64, banned bool) error

	// AddTransaction appends a ledger entry and returns its id.
	AddTransaction(ctx context.Context, userID int64, typ model.TransactionType, amount int64, description string, status model.TransactionStatus) (int64, error)

	// ApproveDeposit flips a pending deposit to approved and credits the user
	// in one transaction. Returns model.ErrDepositNotPending when the entry
	// was already decided.
	ApproveDeposit(ctx context.Context, transactionID int64) (*model.Transaction, error)

	// RejectDeposit flips a pending deposit to rejected without touching the
	// balance. Returns model.ErrDepositNotPending when already decided.
	RejectDeposit(ctx context.Context, transactionID int64) (*model.Transaction, error)

	// PendingDeposits lists the staff review queue, oldest first.
	PendingDeposits(ctx context.Context) ([]model.PendingDeposit, error)

	// UserTransactions lists a user's most recent ledger entries.
	UserTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)

	// AddPurchase records one dispensed inventory item on the buyer's receipt.
	AddPurchase(ctx context.Context, userID int64, identifier, secret string, price int64) error

	// UserPurchases lists a user's most recent receipts.
	UserPurchases(ctx context.Context, userID int64, limit int) ([]model.Purchase, error)

	// CreateOrder inserts an order row and returns its presentable order id.
	CreateOrder(ctx context.Context, userID int64, quantity int, totalAmount int64) (string, error)

	// GetOrder returns an order by its presentable id or model.ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)

	// UserOrders lists a user's orders, newest first.
	UserOrders(ctx context.Context, userID int64) ([]model.Order, error)

	// AllOrders lists every order, newest first.
	AllOrders(ctx context.Context) ([]model.Order, error)

	// ClaimDiscount inserts the claim row, credits the balance and appends the
	// discount transaction, all in one database transaction. The unique
	// constraint on the claim's order id turns a concurrent double claim into
	// model.ErrAlreadyClaimed with nothing committed.
	ClaimDiscount(ctx context.Context, orderID string, userID, amount int64) error

	// Stats returns store-wide aggregates.
	Stats(ctx context.Context) (*model.Stats, error)

	// AllUsers lists every user, newest first.
	AllUsers(ctx context.Context) ([]model.User, error)

	// Close closes the underlying connection.
	Close() error
}
