package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mwshark/shop-bot/types"
)

func (s *SQLiteStore) LogTransaction(tx types.Transaction) error {
	ctx, cancel := opCtx()
	defer cancel()
	var paymentID any
	if tx.PaymentID != "" {
		paymentID = tx.PaymentID
	}
	var amountCurrency any
	var currencyName any
	if tx.CurrencyName != "" {
		amountCurrency = tx.AmountCurrency
		currencyName = tx.CurrencyName
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transactions (username, payment_id, user_id, status, amount_rub,
amount_currency, currency_name, payment_method, metadata, created_date)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Username, paymentID, tx.UserID, string(tx.Status), tx.AmountRUB,
		amountCurrency, currencyName, tx.PaymentMethod, tx.Metadata,
		time.Now().UnixMilli())
	return err
}

// CreatePendingTransaction pre-registers an on-chain payment: the paymentID
// is the transfer comment the buyer was told to use.
func (s *SQLiteStore) CreatePendingTransaction(paymentID string, userID int64, amountRUB float64, meta types.Order) error {
	ctx, cancel := opCtx()
	defer cancel()
	blob, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO transactions (payment_id, user_id, status, amount_rub, metadata, created_date)
VALUES (?, ?, ?, ?, ?, ?)`,
		paymentID, userID, string(types.TxPending), amountRUB, string(blob),
		time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) CompleteTONTransaction(paymentID string, amountTON float64) (*types.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var blob string
	err = tx.QueryRowContext(ctx, `
SELECT metadata FROM transactions WHERE payment_id = ? AND status = ?`,
		paymentID, string(types.TxPending)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
UPDATE transactions SET status = ?, amount_currency = ?, currency_name = 'TON',
payment_method = 'TON' WHERE payment_id = ?`,
		string(types.TxPaid), amountTON, paymentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	var order types.Order
	if err := json.Unmarshal([]byte(blob), &order); err != nil {
		return nil, fmt.Errorf("pending transaction metadata: %w", err)
	}
	return &order, nil
}

// ReopenTONTransaction puts a completed transaction back into the pending
// state so a later provider retry can complete it again.
func (s *SQLiteStore) ReopenTONTransaction(paymentID string) error {
	ctx, cancel := opCtx()
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
UPDATE transactions SET status = ? WHERE payment_id = ? AND status = ?`,
		string(types.TxPending), paymentID, string(types.TxPaid))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) GetPaginatedTransactions(page, perPage int) ([]*types.Transaction, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 15
	}
	ctx, cancel := opCtx()
	defer cancel()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT transaction_id, COALESCE(username, ''), COALESCE(payment_id, ''), user_id,
status, amount_rub, COALESCE(amount_currency, 0), COALESCE(currency_name, ''),
COALESCE(payment_method, ''), COALESCE(metadata, ''), created_date
FROM transactions ORDER BY created_date DESC LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []*types.Transaction
	for rows.Next() {
		var t types.Transaction
		var status string
		var created int64
		if err := rows.Scan(&t.ID, &t.Username, &t.PaymentID, &t.UserID, &status,
			&t.AmountRUB, &t.AmountCurrency, &t.CurrencyName, &t.PaymentMethod,
			&t.Metadata, &created); err != nil {
			return nil, 0, err
		}
		t.Status = types.TxStatus(status)
		t.CreatedAt = time.UnixMilli(created)
		txs = append(txs, &t)
	}
	return txs, total, rows.Err()
}

func (s *SQLiteStore) CreatePendingInvoice(invoiceID string, meta types.Order) error {
	return s.createPendingRow(`
INSERT OR REPLACE INTO cryptobot_pending (invoice_id, metadata, created_date)
VALUES (?, ?, ?)`, invoiceID, meta)
}

func (s *SQLiteStore) ConsumePendingInvoice(invoiceID string) (*types.Order, error) {
	return s.consumePendingRow(
		`SELECT metadata FROM cryptobot_pending WHERE invoice_id = ?`,
		`DELETE FROM cryptobot_pending WHERE invoice_id = ?`, invoiceID)
}

func (s *SQLiteStore) CreatePendingCardTransaction(transactionID string, meta types.Order) error {
	return s.createPendingRow(`
INSERT OR REPLACE INTO platega_pending (transaction_id, metadata, created_date)
VALUES (?, ?, ?)`, transactionID, meta)
}

func (s *SQLiteStore) ConsumePendingCardTransaction(transactionID string) (*types.Order, error) {
	return s.consumePendingRow(
		`SELECT metadata FROM platega_pending WHERE transaction_id = ?`,
		`DELETE FROM platega_pending WHERE transaction_id = ?`, transactionID)
}

func (s *SQLiteStore) createPendingRow(query, id string, meta types.Order) error {
	ctx, cancel := opCtx()
	defer cancel()
	blob, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, id, string(blob), time.Now().UnixMilli())
	return err
}

// consumePendingRow reads and deletes the row in one transaction so a
// replayed webhook finds nothing: at-most-once consumption.
func (s *SQLiteStore) consumePendingRow(selectQuery, deleteQuery, id string) (*types.Order, error) {
	ctx, cancel := opCtx()
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var blob string
	err = tx.QueryRowContext(ctx, selectQuery, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, deleteQuery, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	var order types.Order
	if err := json.Unmarshal([]byte(blob), &order); err != nil {
		return nil, fmt.Errorf("pending row metadata: %w", err)
	}
	return &order, nil
}

// Stats used by the admin dashboard.

func (s *SQLiteStore) GetUserCount() (int, error) {
	return s.countQuery(`SELECT COUNT(*) FROM users`)
}

func (s *SQLiteStore) GetBannedUserCount() (int, error) {
	return s.countQuery(`SELECT COUNT(*) FROM users WHERE is_banned = 1`)
}

func (s *SQLiteStore) GetTotalKeysCount() (int, error) {
	return s.countQuery(`SELECT COUNT(*) FROM vpn_keys`)
}

func (s *SQLiteStore) GetActiveKeysCount() (int, error) {
	return s.countQuery(`SELECT COUNT(*) FROM vpn_keys WHERE expiry_date > ?`,
		time.Now().UnixMilli())
}

func (s *SQLiteStore) GetExpiredKeysCount() (int, error) {
	return s.countQuery(`SELECT COUNT(*) FROM vpn_keys WHERE expiry_date <= ?`,
		time.Now().UnixMilli())
}

func (s *SQLiteStore) GetTotalSpentSum() (float64, error) {
	ctx, cancel := opCtx()
	defer cancel()
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total_spent), 0) FROM users`).Scan(&total)
	return total, err
}

func (s *SQLiteStore) countQuery(query string, args ...any) (int, error) {
	ctx, cancel := opCtx()
	defer cancel()
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// GetDailyStats returns per-day new-user and new-key counts for the chart
// on the admin dashboard.
func (s *SQLiteStore) GetDailyStats(days int) (users map[string]int, keys map[string]int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	since := time.Now().AddDate(0, 0, -days).UnixMilli()

	users, err = s.dailyCounts(ctx, `
SELECT date(registration_date / 1000, 'unixepoch') AS day, COUNT(*)
FROM users WHERE registration_date >= ? GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, nil, err
	}
	keys, err = s.dailyCounts(ctx, `
SELECT date(created_date / 1000, 'unixepoch') AS day, COUNT(*)
FROM vpn_keys WHERE created_date >= ? GROUP BY day ORDER BY day`, since)
	if err != nil {
		return nil, nil, err
	}
	return users, keys, nil
}

func (s *SQLiteStore) dailyCounts(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var day string
		var n int
		if err := rows.Scan(&day, &n); err != nil {
			return nil, err
		}
		counts[day] = n
	}
	return counts, rows.Err()
}
