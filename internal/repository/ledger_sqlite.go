package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"sync"

	"mailshop-bot/internal/model"
	"mailshop-bot/pkg/uid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteLedgerRepository implements LedgerRepository using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteLedgerRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteLedgerRepository creates a new SQLite ledger repository.
// dbPath is the path to the SQLite database file (e.g., "./data/ledger.db")
func NewSQLiteLedgerRepository(dbPath string) (*SQLiteLedgerRepository, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createLedgerTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteLedgerRepository] Initialized with database: %s", dbPath)
	return &SQLiteLedgerRepository{db: db}, nil
}

// createLedgerTables creates the ledger schema.
func createLedgerTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		user_id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		balance INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		is_banned INTEGER DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		type TEXT,
		amount INTEGER,
		description TEXT,
		status TEXT DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users (user_id)
	);
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER,
		item_identifier TEXT,
		secret TEXT,
		price INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users (user_id)
	);
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT UNIQUE NOT NULL,
		user_id INTEGER,
		quantity INTEGER,
		total_amount INTEGER,
		status TEXT DEFAULT 'completed',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users (user_id)
	);
	CREATE TABLE IF NOT EXISTS discounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT UNIQUE NOT NULL,
		user_id INTEGER,
		discount_amount INTEGER,
		claimed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users (user_id),
		FOREIGN KEY (order_id) REFERENCES orders (order_id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_purchases_user ON purchases(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	`
	_, err := db.Exec(query)
	return err
}

// UpsertUser registers a user if unseen, otherwise refreshes the name fields.
func (r *SQLiteLedgerRepository) UpsertUser(ctx context.Context, userID int64, username, firstName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO users (user_id, username, first_name)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name`

	_, err := r.db.ExecContext(ctx, query, userID, username, firstName)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser returns a user or model.ErrUserNotFound.
func (r *SQLiteLedgerRepository) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT user_id, username, first_name, balance, created_at, is_banned FROM users WHERE user_id = ?`

	var u model.User
	var banned int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&u.UserID, &u.Username, &u.FirstName, &u.Balance, &u.CreatedAt, &banned)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.IsBanned = banned == 1

	return &u, nil
}

// GetBalance returns the current balance, zero for unknown users.
func (r *SQLiteLedgerRepository) GetBalance(ctx context.Context, userID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var balance int64
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE user_id = ?`, userID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// CreditBalance atomically adds amount to a user's balance.
func (r *SQLiteLedgerRepository) CreditBalance(ctx context.Context, userID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE user_id = ?`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// DebitBalance atomically subtracts amount, guarded against going negative.
func (r *SQLiteLedgerRepository) DebitBalance(ctx context.Context, userID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET balance = balance - ? WHERE user_id = ? AND balance >= ?`,
		amount, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrInsufficientBalance
	}
	return nil
}

// SetBanned toggles the banned flag.
func (r *SQLiteLedgerRepository) SetBanned(ctx context.Context, userID int64, banned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	val := 0
	if banned {
		val = 1
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_banned = ? WHERE user_id = ?`, val, userID)
	if err != nil {
		return fmt.Errorf("failed to set banned flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// AddTransaction appends a ledger entry and returns its id.
func (r *SQLiteLedgerRepository) AddTransaction(ctx context.Context, userID int64, typ model.TransactionType, amount int64, description string, status model.TransactionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount, description, status) VALUES (?, ?, ?, ?, ?)`,
		userID, string(typ), amount, description, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to add transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction id: %w", err)
	}
	return id, nil
}

// ApproveDeposit flips a pending deposit to approved and credits the user
// in one transaction.
func (r *SQLiteLedgerRepository) ApproveDeposit(ctx context.Context, transactionID int64) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := decideDeposit(ctx, tx, transactionID, model.StatusApproved)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE user_id = ?`, t.Amount, t.UserID); err != nil {
		return nil, fmt.Errorf("failed to credit deposit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deposit approval: %w", err)
	}
	return t, nil
}

// RejectDeposit flips a pending deposit to rejected without touching the balance.
func (r *SQLiteLedgerRepository) RejectDeposit(ctx context.Context, transactionID int64) (*model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := decideDeposit(ctx, tx, transactionID, model.StatusRejected)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deposit rejection: %w", err)
	}
	return t, nil
}

// decideDeposit moves a deposit out of pending exactly once. The status guard
// in the UPDATE is what makes a second approval a no-op instead of a double
// credit.
func decideDeposit(ctx context.Context, tx *sql.Tx, transactionID int64, status model.TransactionStatus) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, type, amount, description, status, created_at FROM transactions WHERE id = ?`,
		transactionID).Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.Status, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrDepositNotPending
		}
		return nil, fmt.Errorf("failed to load deposit: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions SET status = ? WHERE id = ? AND type = 'deposit' AND status = 'pending'`,
		string(status), transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to update deposit status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, model.ErrDepositNotPending
	}

	t.Status = status
	return &t, nil
}

// PendingDeposits lists the staff review queue, oldest first.
func (r *SQLiteLedgerRepository) PendingDeposits(ctx context.Context) ([]model.PendingDeposit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT t.id, t.user_id, COALESCE(u.username, ''), COALESCE(u.first_name, ''), t.amount, t.created_at
		FROM transactions t
		JOIN users u ON t.user_id = u.user_id
		WHERE t.type = 'deposit' AND t.status = 'pending'
		ORDER BY t.created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deposits: %w", err)
	}
	defer rows.Close()

	var deposits []model.PendingDeposit
	for rows.Next() {
		var d model.PendingDeposit
		if err := rows.Scan(&d.TransactionID, &d.UserID, &d.Username, &d.FirstName, &d.Amount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending deposit: %w", err)
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// UserTransactions lists a user's most recent ledger entries.
func (r *SQLiteLedgerRepository) UserTransactions(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, user_id, type, amount, description, status, created_at
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Description, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// AddPurchase records one dispensed inventory item on the buyer's receipt.
func (r *SQLiteLedgerRepository) AddPurchase(ctx context.Context, userID int64, identifier, secret string, price int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO purchases (user_id, item_identifier, secret, price) VALUES (?, ?, ?, ?)`,
		userID, identifier, secret, price)
	if err != nil {
		return fmt.Errorf("failed to add purchase: %w", err)
	}
	return nil
}

// UserPurchases lists a user's most recent receipts.
func (r *SQLiteLedgerRepository) UserPurchases(ctx context.Context, userID int64, limit int) ([]model.Purchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, user_id, item_identifier, secret, price, created_at
		FROM purchases
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.Identifier, &p.Secret, &p.Price, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// CreateOrder inserts an order row and returns its presentable order id.
func (r *SQLiteLedgerRepository) CreateOrder(ctx context.Context, userID int64, quantity int, totalAmount int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orderID := uid.NewOrderID()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, user_id, quantity, total_amount) VALUES (?, ?, ?, ?)`,
		orderID, userID, quantity, totalAmount)
	if err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}
	return orderID, nil
}

// GetOrder returns an order by its presentable id.
func (r *SQLiteLedgerRepository) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `SELECT id, order_id, user_id, quantity, total_amount, status, created_at FROM orders WHERE order_id = ?`

	var o model.Order
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.Quantity, &o.TotalAmount, &o.Status, &o.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, model.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// UserOrders lists a user's orders, newest first.
func (r *SQLiteLedgerRepository) UserOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return r.listOrders(ctx, `WHERE user_id = ?`, userID)
}

// AllOrders lists every order, newest first.
func (r *SQLiteLedgerRepository) AllOrders(ctx context.Context) ([]model.Order, error) {
	return r.listOrders(ctx, ``)
}

func (r *SQLiteLedgerRepository) listOrders(ctx context.Context, where string, args ...interface{}) ([]model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT id, order_id, user_id, quantity, total_amount, status, created_at
		FROM orders %s
		ORDER BY created_at DESC, id DESC`, where)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.OrderID, &o.UserID, &o.Quantity, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ClaimDiscount inserts the claim row, credits the balance and appends the
// discount transaction, all in one database transaction.
func (r *SQLiteLedgerRepository) ClaimDiscount(ctx context.Context, orderID string, userID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The UNIQUE constraint on discounts.order_id is the double-claim guard.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO discounts (order_id, user_id, discount_amount) VALUES (?, ?, ?)`,
		orderID, userID, amount)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return model.ErrAlreadyClaimed
		}
		return fmt.Errorf("failed to insert discount claim: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance + ? WHERE user_id = ?`, amount, userID); err != nil {
		return fmt.Errorf("failed to credit discount: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount, description, status) VALUES (?, ?, ?, ?, ?)`,
		userID, string(model.TransactionDiscount), amount,
		fmt.Sprintf("Discount for order %s", orderID), string(model.StatusApproved)); err != nil {
		return fmt.Errorf("failed to append discount transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit discount claim: %w", err)
	}
	return nil
}

// Stats returns store-wide aggregates.
func (r *SQLiteLedgerRepository) Stats(ctx context.Context) (*model.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s model.Stats

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&s.TotalUsers); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price), 0) FROM purchases`).Scan(&s.TotalRevenue); err != nil {
		return nil, fmt.Errorf("failed to sum revenue: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'deposit' AND status = 'approved'`).Scan(&s.TotalDeposits); err != nil {
		return nil, fmt.Errorf("failed to sum deposits: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE DATE(created_at) = DATE('now')`).Scan(&s.NewUsersToday); err != nil {
		return nil, fmt.Errorf("failed to count new users: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(price), 0) FROM purchases WHERE DATE(created_at) = DATE('now')`).Scan(&s.RevenueToday); err != nil {
		return nil, fmt.Errorf("failed to sum today's revenue: %w", err)
	}

	return &s, nil
}

// AllUsers lists every user, newest first.
func (r *SQLiteLedgerRepository) AllUsers(ctx context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, username, first_name, balance, created_at, is_banned FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var banned int
		if err := rows.Scan(&u.UserID, &u.Username, &u.FirstName, &u.Balance, &u.CreatedAt, &banned); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.IsBanned = banned == 1
		users = append(users, u)
	}
	return users, rows.Err()
}

// Close closes the database connection.
func (r *SQLiteLedgerRepository) Close() error {
	return r.db.Close()
}

// Ensure SQLiteLedgerRepository implements LedgerRepository
var _ LedgerRepository = (*SQLiteLedgerRepository)(nil)
