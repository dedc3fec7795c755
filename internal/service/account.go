package service

import (
	"context"
	"fmt"
	"log"

	"mailshop-bot/internal/model"
	"mailshop-bot/internal/repository"
)

// AccountService covers user registration, the deposit lifecycle and admin
// balance adjustments. Deposits are requested by users, sit pending on the
// ledger and are approved or rejected exactly once by staff.
type AccountService struct {
	repo       repository.LedgerRepository
	minDeposit int64
	maxDeposit int64
}

// NewAccountService creates an account service with the given deposit bounds.
func NewAccountService(repo repository.LedgerRepository, minDeposit, maxDeposit int64) *AccountService {
	return &AccountService{repo: repo, minDeposit: minDeposit, maxDeposit: maxDeposit}
}

// Register upserts the user on first contact and refreshes their names after.
func (s *AccountService) Register(ctx context.Context, userID int64, username, firstName string) error {
	return s.repo.UpsertUser(ctx, userID, username, firstName)
}

// Profile returns the user's record.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// Balance returns the user's current balance.
func (s *AccountService) Balance(ctx context.Context, userID int64) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// DepositBounds returns the accepted deposit range.
func (s *AccountService) DepositBounds() (min, max int64) {
	return s.minDeposit, s.maxDeposit
}

// RequestDeposit records a pending deposit awaiting staff review and returns
// its transaction id.
func (s *AccountService) RequestDeposit(ctx context.Context, userID, amount int64) (int64, error) {
	if amount < s.minDeposit || amount > s.maxDeposit {
		return 0, fmt.Errorf("%w: deposit must be between %d and %d", model.ErrInvalidInput, s.minDeposit, s.maxDeposit)
	}

	txID, err := s.repo.AddTransaction(ctx, userID, model.TransactionDeposit, amount, "Deposit request", model.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to record deposit request: %w", err)
	}

	log.Printf("[AccountService] User %d requested deposit of %d (tx %d)", userID, amount, txID)
	return txID, nil
}

// ApproveDeposit credits a pending deposit. Safe to call twice; the second
// call returns model.ErrDepositNotPending without crediting again.
func (s *AccountService) ApproveDeposit(ctx context.Context, transactionID int64) (*model.Transaction, error) {
	t, err := s.repo.ApproveDeposit(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	log.Printf("[AccountService] Deposit %d approved: %d for user %d", t.ID, t.Amount, t.UserID)
	return t, nil
}

// RejectDeposit declines a pending deposit.
func (s *AccountService) RejectDeposit(ctx context.Context, transactionID int64) (*model.Transaction, error) {
	t, err := s.repo.RejectDeposit(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	log.Printf("[AccountService] Deposit %d rejected for user %d", t.ID, t.UserID)
	return t, nil
}

// PendingDeposits lists the staff review queue, oldest first.
func (s *AccountService) PendingDeposits(ctx context.Context) ([]model.PendingDeposit, error) {
	return s.repo.PendingDeposits(ctx)
}

// AdjustBalance applies an admin bonus or deduction and records it on the
// ledger. Negative amounts are guarded against overdrawing the balance.
func (s *AccountService) AdjustBalance(ctx context.Context, userID, amount int64, note string) (int64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("%w: amount must be non-zero", model.ErrInvalidInput)
	}

	if amount > 0 {
		if err := s.repo.CreditBalance(ctx, userID, amount); err != nil {
			return 0, err
		}
	} else {
		if err := s.repo.DebitBalance(ctx, userID, -amount); err != nil {
			return 0, err
		}
	}

	if note == "" {
		note = "Balance adjustment"
	}
	if _, err := s.repo.AddTransaction(ctx, userID, model.TransactionBonus, amount, note, model.StatusApproved); err != nil {
		return 0, fmt.Errorf("failed to append adjustment transaction: %w", err)
	}

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load balance: %w", err)
	}

	log.Printf("[AccountService] Adjusted user %d by %d, balance now %d", userID, amount, balance)
	return balance, nil
}

// Ban blocks the user from the storefront.
func (s *AccountService) Ban(ctx context.Context, userID int64) error {
	return s.repo.SetBanned(ctx, userID, true)
}

// Unban restores a banned user.
func (s *AccountService) Unban(ctx context.Context, userID int64) error {
	return s.repo.SetBanned(ctx, userID, false)
}

// Transactions lists a user's most recent ledger entries.
func (s *AccountService) Transactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	return s.repo.UserTransactions(ctx, userID, limit)
}

// Purchases lists a user's most recent receipts.
func (s *AccountService) Purchases(ctx context.Context, userID int64, limit int) ([]model.Purchase, error) {
	return s.repo.UserPurchases(ctx, userID, limit)
}

// Orders lists a user's orders, newest first.
func (s *AccountService) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.UserOrders(ctx, userID)
}

// Stats returns store-wide aggregates.
func (s *AccountService) Stats(ctx context.Context) (*model.Stats, error) {
	return s.repo.Stats(ctx)
}

// AllUsers lists every registered user.
func (s *AccountService) AllUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.AllUsers(ctx)
}
