package model

import "errors"

// Domain errors surfaced to users. Remote-store errors live in the sheets
// package; these cover the ledger and discount domains.
var (
	ErrUserNotFound          = errors.New("user not found")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrDepositNotPending     = errors.New("deposit is not pending")
	ErrOrderNotFound         = errors.New("order not found")
	ErrNotOrderOwner         = errors.New("not the owner of this order")
	ErrAlreadyClaimed        = errors.New("discount already claimed for this order")
	ErrNotEligible           = errors.New("order is not eligible for a discount")
	ErrInvalidInput          = errors.New("invalid input")
)
