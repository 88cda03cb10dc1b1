package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mwshark/shop-bot/types"
)

const userColumns = `telegram_id, username, total_spent, total_months, trial_used,
agreed_to_terms, is_banned, COALESCE(referred_by, 0), referral_balance,
referral_balance_all, registration_date`

func scanUser(row interface{ Scan(...any) error }) (*types.User, error) {
	var u types.User
	var registeredAt int64
	err := row.Scan(&u.TelegramID, &u.Username, &u.TotalSpent, &u.TotalMonths,
		&u.TrialUsed, &u.AgreedToTerms, &u.IsBanned, &u.ReferredBy,
		&u.ReferralBalance, &u.ReferralEarnedAll, &registeredAt)
	if err != nil {
		return nil, err
	}
	u.RegisteredAt = time.UnixMilli(registeredAt)
	return &u, nil
}

func (s *SQLiteStore) GetUser(telegramID int64) (*types.User, error) {
	ctx, cancel := opCtx()
	defer cancel()
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}

func (s *SQLiteStore) GetAllUsers() ([]*types.User, error) {
	ctx, cancel := opCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY registration_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// RegisterUserIfNotExists creates the user on first contact. The referrer is
// recorded once and never reassigned; repeat contacts only refresh the
// username.
func (s *SQLiteStore) RegisterUserIfNotExists(telegramID int64, username string, referrerID int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	var referredBy any
	if referrerID != 0 && referrerID != telegramID {
		referredBy = referrerID
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (telegram_id, username, referred_by, registration_date)
VALUES (?, ?, ?, ?)
ON CONFLICT (telegram_id) DO UPDATE SET username = excluded.username`,
		telegramID, strings.TrimSpace(username), referredBy, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) setUserFlag(column string, value int, telegramID int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+column+` = ? WHERE telegram_id = ?`, value, telegramID)
	return err
}

func (s *SQLiteStore) BanUser(telegramID int64) error {
	return s.setUserFlag("is_banned", 1, telegramID)
}

func (s *SQLiteStore) UnbanUser(telegramID int64) error {
	return s.setUserFlag("is_banned", 0, telegramID)
}

func (s *SQLiteStore) SetTermsAgreed(telegramID int64) error {
	return s.setUserFlag("agreed_to_terms", 1, telegramID)
}

func (s *SQLiteStore) SetTrialUsed(telegramID int64) error {
	return s.setUserFlag("trial_used", 1, telegramID)
}

// DeleteUser cascades to the user's keys, transactions and pending rows.
func (s *SQLiteStore) DeleteUser(telegramID int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		`DELETE FROM vpn_keys WHERE user_id = ?`,
		`DELETE FROM transactions WHERE user_id = ?`,
		`DELETE FROM users WHERE telegram_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, telegramID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpdateUserStats(telegramID int64, amountSpent float64, monthsPurchased int) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
UPDATE users SET total_spent = total_spent + ?, total_months = total_months + ?
WHERE telegram_id = ?`, amountSpent, monthsPurchased, telegramID)
	return err
}

func (s *SQLiteStore) AddToReferralBalance(telegramID int64, amount float64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `
UPDATE users SET referral_balance = referral_balance + ?,
referral_balance_all = referral_balance_all + ?
WHERE telegram_id = ?`, amount, amount, telegramID)
	return err
}

func (s *SQLiteStore) GetReferralCount(telegramID int64) (int, error) {
	ctx, cancel := opCtx()
	defer cancel()
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE referred_by = ?`, telegramID).Scan(&count)
	return count, err
}

func (s *SQLiteStore) SearchUsers(query string) ([]*types.User, error) {
	ctx, cancel := opCtx()
	defer cancel()
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
SELECT `+userColumns+` FROM users
WHERE username LIKE ? OR CAST(telegram_id AS TEXT) LIKE ?
ORDER BY registration_date DESC`, pattern, pattern)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
