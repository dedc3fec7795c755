package model

import "time"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionPurchase TransactionType = "purchase"
	TransactionBonus    TransactionType = "admin_bonus"
	TransactionDiscount TransactionType = "discount"
)

// TransactionStatus is the review state of a ledger entry. Deposits start
// pending and are approved or rejected exactly once by staff; every other
// transaction type is created already approved.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

// Transaction is one append-only ledger entry. Amount is signed: credits
// positive, debits negative.
type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// PendingDeposit is a row from the staff review queue: a pending deposit
// transaction joined with its user.
type PendingDeposit struct {
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username"`
	FirstName     string    `json:"first_name"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}
