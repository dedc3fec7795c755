package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mailshop-bot/internal/model"
	"mailshop-bot/internal/repository"
	"mailshop-bot/internal/settings"
	"mailshop-bot/internal/sheets"
)

// Quote is the offer shown to a buyer before they confirm.
type Quote struct {
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Total     int64  `json:"total"`
	Balance   int64  `json:"balance"`
	Stock     int    `json:"stock"`
	Product   string `json:"product"`
}

// Receipt is the outcome of a settled purchase. Dispensed may be lower than
// the requested quantity when the queue ran dry mid-order; the buyer is only
// charged for what was dispensed.
type Receipt struct {
	OrderID   string                `json:"order_id"`
	Requested int                   `json:"requested"`
	Dispensed int                   `json:"dispensed"`
	UnitPrice int64                 `json:"unit_price"`
	Total     int64                 `json:"total"`
	Balance   int64                 `json:"balance"`
	Items     []model.InventoryItem `json:"items"`
}

// PurchaseService sells inventory items against prepaid balances. A purchase
// dispenses items from the front of the remote queue, records each one
// locally as it arrives, then settles the debit for the actual count.
type PurchaseService struct {
	repo     repository.LedgerRepository
	queue    *sheets.Queue
	settings *settings.Store
}

// NewPurchaseService creates a purchase service.
func NewPurchaseService(repo repository.LedgerRepository, queue *sheets.Queue, st *settings.Store) *PurchaseService {
	return &PurchaseService{repo: repo, queue: queue, settings: st}
}

// Quote prices a purchase without committing anything. It fails early when
// the balance or the queue cannot cover the requested quantity, so the buyer
// sees the problem before confirming.
func (s *PurchaseService) Quote(ctx context.Context, userID int64, quantity int) (*Quote, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidInput)
	}

	unit := s.settings.ProductPrice()
	total := unit * int64(quantity)

	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	stock, err := s.queue.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check stock: %w", err)
	}

	q := &Quote{
		Quantity:  quantity,
		UnitPrice: unit,
		Total:     total,
		Balance:   balance,
		Stock:     stock,
		Product:   s.settings.ProductName(),
	}

	if stock < quantity {
		return q, model.ErrInsufficientInventory
	}
	if balance < total {
		return q, model.ErrInsufficientBalance
	}
	return q, nil
}

// Execute runs a confirmed purchase to settlement. Items already dispensed
// are never put back: if the queue runs dry mid-order the purchase settles
// for the actual count, and if even the settling debit fails the receipts
// stay on record so staff can reconcile.
func (s *PurchaseService) Execute(ctx context.Context, userID int64, quantity int) (*Receipt, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", model.ErrInvalidInput)
	}

	unit := s.settings.ProductPrice()

	// The balance guard here is advisory; the settling debit re-checks
	// atomically.
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}
	if balance < unit*int64(quantity) {
		return nil, model.ErrInsufficientBalance
	}

	var items []model.InventoryItem
	var popErr error
	for i := 0; i < quantity; i++ {
		item, err := s.queue.PopFront(ctx)
		if err != nil {
			popErr = err
			break
		}
		// Record the receipt before asking for the next item, so a crash
		// mid-order loses at most the item currently in flight.
		if err := s.repo.AddPurchase(ctx, userID, item.Identifier, item.Secret, unit); err != nil {
			return nil, fmt.Errorf("failed to record dispensed item: %w", err)
		}
		items = append(items, *item)
	}

	if len(items) == 0 {
		if errors.Is(popErr, sheets.ErrEmpty) {
			return nil, model.ErrInsufficientInventory
		}
		return nil, fmt.Errorf("failed to dispense items: %w", popErr)
	}

	if popErr != nil && !errors.Is(popErr, sheets.ErrEmpty) {
		log.Printf("[PurchaseService] Dispensing stopped after %d/%d items for user %d: %v",
			len(items), quantity, userID, popErr)
	}

	total := unit * int64(len(items))

	if err := s.repo.DebitBalance(ctx, userID, total); err != nil {
		// The dispensed items are already on the buyer's receipts; surface
		// the failed settlement instead of discarding them.
		return nil, fmt.Errorf("failed to settle purchase of %d items: %w", len(items), err)
	}

	if _, err := s.repo.AddTransaction(ctx, userID, model.TransactionPurchase, -total,
		fmt.Sprintf("Purchase of %d x %s", len(items), s.settings.ProductName()), model.StatusApproved); err != nil {
		return nil, fmt.Errorf("failed to append purchase transaction: %w", err)
	}

	orderID, err := s.repo.CreateOrder(ctx, userID, len(items), total)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	newBalance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load balance: %w", err)
	}

	log.Printf("[PurchaseService] User %d bought %d/%d items, order %s", userID, len(items), quantity, orderID)

	return &Receipt{
		OrderID:   orderID,
		Requested: quantity,
		Dispensed: len(items),
		UnitPrice: unit,
		Total:     total,
		Balance:   newBalance,
		Items:     items,
	}, nil
}
