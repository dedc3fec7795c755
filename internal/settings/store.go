package settings

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// PaymentInfo holds the bank transfer details shown to depositing users.
type PaymentInfo struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	Content       string `json:"content"` // transfer-note template, {user_id} is substituted
}

// Settings is the full mutable configuration of the storefront. Keys of
// DiscountRates are decimal quantity thresholds; values are rebate amounts.
type Settings struct {
	ProductPrice       int64            `json:"product_price"`
	ProductName        string           `json:"product_name"`
	ProductDescription string           `json:"product_description"`
	Payment            PaymentInfo      `json:"payment_info"`
	DiscountRates      map[string]int64 `json:"discount_rates"`
}

// Defaults returns the settings written on first start.
func Defaults() Settings {
	return Settings{
		ProductPrice:       50000,
		ProductName:        "Gmail account",
		ProductDescription: "Fresh, unused, high quality",
		Payment: PaymentInfo{
			BankName:      "Vietcombank",
			AccountNumber: "1234567890",
			AccountName:   "NGUYEN VAN A",
			Content:       "NAPBOT {user_id}",
		},
		DiscountRates: map[string]int64{
			"10": 10000,
			"20": 40000,
			"30": 70000,
			"40": 105000,
			"50": 170000,
		},
	}
}

// Store is a JSON-file-backed settings store with write-through persistence.
// Reads are served from memory; every setter rewrites the file.
type Store struct {
	mu   sync.RWMutex
	path string
	s    Settings
}

// NewStore loads settings from path, creating the file with defaults when it
// does not exist.
func NewStore(path string) (*Store, error) {
	st := &Store{path: path, s: Defaults()}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &st.s); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create settings dir: %w", err)
		}
		if err := st.save(); err != nil {
			return nil, err
		}
		log.Printf("[Settings] Created %s with defaults", path)
	default:
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	return st, nil
}

// save writes the current settings to disk. Caller must hold the lock.
func (st *Store) save() error {
	data, err := json.MarshalIndent(st.s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// ProductPrice returns the unit price in minor currency units.
func (st *Store) ProductPrice() int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.ProductPrice
}

// SetProductPrice updates the unit price.
func (st *Store) SetProductPrice(price int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ProductPrice = price
	return st.save()
}

// ProductName returns the display name of the sold item.
func (st *Store) ProductName() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.ProductName
}

// SetProductName updates the display name.
func (st *Store) SetProductName(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.ProductName = name
	return st.save()
}

// ProductDescription returns the product blurb.
func (st *Store) ProductDescription() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.ProductDescription
}

// Payment returns a copy of the payment info.
func (st *Store) Payment() PaymentInfo {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Payment
}

// SetBankName updates the bank name shown to depositors.
func (st *Store) SetBankName(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Payment.BankName = name
	return st.save()
}

// SetAccountNumber updates the deposit account number.
func (st *Store) SetAccountNumber(number string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Payment.AccountNumber = number
	return st.save()
}

// SetAccountName updates the deposit account holder name.
func (st *Store) SetAccountName(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Payment.AccountName = name
	return st.save()
}

// DiscountRates returns a copy of the threshold table.
func (st *Store) DiscountRates() map[string]int64 {
	st.mu.RLock()
	defer st.mu.RUnlock()

	rates := make(map[string]int64, len(st.s.DiscountRates))
	for k, v := range st.s.DiscountRates {
		rates[k] = v
	}
	return rates
}

// SetDiscountRate sets the rebate for a quantity threshold.
func (st *Store) SetDiscountRate(quantity int, amount int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.s.DiscountRates == nil {
		st.s.DiscountRates = make(map[string]int64)
	}
	st.s.DiscountRates[strconv.Itoa(quantity)] = amount
	return st.save()
}

// RemoveDiscountRate deletes the rebate for a quantity threshold. Returns
// false when no such threshold exists.
func (st *Store) RemoveDiscountRate(quantity int) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	key := strconv.Itoa(quantity)
	if _, ok := st.s.DiscountRates[key]; !ok {
		return false, nil
	}
	delete(st.s.DiscountRates, key)
	return true, st.save()
}

// ResetDiscountRates restores the default threshold table.
func (st *Store) ResetDiscountRates() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.DiscountRates = Defaults().DiscountRates
	return st.save()
}
