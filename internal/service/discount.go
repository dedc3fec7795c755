package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"

	"mailshop-bot/internal/model"
	"mailshop-bot/internal/repository"
	"mailshop-bot/internal/settings"
)

// DiscountRate is one row of the threshold table: buy at least Quantity
// items in one order and the rebate is Amount.
type DiscountRate struct {
	Quantity int   `json:"quantity"`
	Amount   int64 `json:"amount"`
}

// DiscountService pays out loyalty rebates on settled orders. Eligibility is
// decided by the highest threshold the order's quantity reaches; each order
// can be claimed at most once.
type DiscountService struct {
	repo     repository.LedgerRepository
	settings *settings.Store
}

// NewDiscountService creates a discount service.
func NewDiscountService(repo repository.LedgerRepository, st *settings.Store) *DiscountService {
	return &DiscountService{repo: repo, settings: st}
}

// Rates returns the threshold table sorted by quantity ascending. Keys that
// do not parse as integers are dropped.
func (s *DiscountService) Rates() []DiscountRate {
	raw := s.settings.DiscountRates()

	rates := make([]DiscountRate, 0, len(raw))
	for key, amount := range raw {
		quantity, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		rates = append(rates, DiscountRate{Quantity: quantity, Amount: amount})
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].Quantity < rates[j].Quantity })
	return rates
}

// EligibleAmount returns the rebate for an order of the given quantity: the
// amount of the highest threshold the quantity reaches, zero when none does.
func (s *DiscountService) EligibleAmount(quantity int) int64 {
	var amount int64
	for _, rate := range s.Rates() {
		if quantity >= rate.Quantity {
			amount = rate.Amount
		}
	}
	return amount
}

// Claim pays the rebate for an order onto its owner's balance. Returns the
// amount credited, or model.ErrOrderNotFound, model.ErrNotOrderOwner,
// model.ErrNotEligible or model.ErrAlreadyClaimed.
func (s *DiscountService) Claim(ctx context.Context, userID int64, orderID string) (int64, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if order.UserID != userID {
		return 0, model.ErrNotOrderOwner
	}

	amount := s.EligibleAmount(order.Quantity)
	if amount <= 0 {
		return 0, model.ErrNotEligible
	}

	if err := s.repo.ClaimDiscount(ctx, orderID, userID, amount); err != nil {
		return 0, err
	}

	log.Printf("[DiscountService] User %d claimed %d for order %s", userID, amount, orderID)
	return amount, nil
}

// SetRate upserts a threshold.
func (s *DiscountService) SetRate(quantity int, amount int64) error {
	if quantity <= 0 || amount <= 0 {
		return fmt.Errorf("%w: quantity and amount must be positive", model.ErrInvalidInput)
	}
	return s.settings.SetDiscountRate(quantity, amount)
}

// RemoveRate deletes a threshold. Returns false when it did not exist.
func (s *DiscountService) RemoveRate(quantity int) (bool, error) {
	return s.settings.RemoveDiscountRate(quantity)
}

// ResetRates restores the default threshold table.
func (s *DiscountService) ResetRates() error {
	return s.settings.ResetDiscountRates()
}
