package model

import "time"

// Order is the durable record of a settled purchase. OrderID is the
// externally presentable token users quote when claiming a discount.
type Order struct {
	ID          int64     `json:"id"`
	OrderID     string    `json:"order_id"`
	UserID      int64     `json:"user_id"`
	Quantity    int       `json:"quantity"`
	TotalAmount int64     `json:"total_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Purchase is the local receipt for one item leaving the inventory queue.
type Purchase struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Identifier string    `json:"identifier"`
	Secret     string    `json:"secret"`
	Price      int64     `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}

// DiscountClaim records a rebate paid out for an order. At most one claim
// exists per order id; the storage-level uniqueness constraint is the guard
// against double claims.
type DiscountClaim struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"discount_amount"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Stats aggregates store-wide counters for the admin panel.
type Stats struct {
	TotalUsers    int64 `json:"total_users"`
	TotalRevenue  int64 `json:"total_revenue"`
	TotalDeposits int64 `json:"total_deposits"`
	NewUsersToday int64 `json:"new_users_today"`
	RevenueToday  int64 `json:"revenue_today"`
}
