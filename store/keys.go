package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/mwshark/shop-bot/types"
)

const keyColumns = `key_id, user_id, COALESCE(subscription_link, ''),
COALESCE(subscription_uuid, ''), expiry_date, created_date`

func scanKey(row interface{ Scan(...any) error }) (*types.VPNKey, error) {
	var k types.VPNKey
	var expiry, created int64
	err := row.Scan(&k.ID, &k.UserID, &k.SubscriptionLink, &k.SubscriptionUUID,
		&expiry, &created)
	if err != nil {
		return nil, err
	}
	k.ExpiryDate = time.UnixMilli(expiry)
	k.CreatedAt = time.UnixMilli(created)
	return &k, nil
}

func (s *SQLiteStore) queryKeys(query string, args ...any) ([]*types.VPNKey, error) {
	ctx, cancel := opCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*types.VPNKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// GetUserKeys returns the user's keys ordered by id. The key's display
// number is its 1-based position in this slice, derived at render time,
// never stored.
func (s *SQLiteStore) GetUserKeys(userID int64) ([]*types.VPNKey, error) {
	return s.queryKeys(
		`SELECT `+keyColumns+` FROM vpn_keys WHERE user_id = ? ORDER BY key_id`, userID)
}

func (s *SQLiteStore) GetKeyByID(keyID int64) (*types.VPNKey, error) {
	ctx, cancel := opCtx()
	defer cancel()
	k, err := scanKey(s.db.QueryRowContext(ctx,
		`SELECT `+keyColumns+` FROM vpn_keys WHERE key_id = ?`, keyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return k, err
}

func (s *SQLiteStore) GetAllKeys() ([]*types.VPNKey, error) {
	return s.queryKeys(`SELECT ` + keyColumns + ` FROM vpn_keys ORDER BY key_id`)
}

func (s *SQLiteStore) AddKey(userID int64, link string, expiry time.Time, subscriptionUUID string) (int64, error) {
	ctx, cancel := opCtx()
	defer cancel()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO vpn_keys (user_id, subscription_link, subscription_uuid, expiry_date, created_date)
VALUES (?, ?, ?, ?, ?)`,
		userID, link, subscriptionUUID, expiry.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) UpdateKey(keyID int64, link string, expiry time.Time, subscriptionUUID string) error {
	ctx, cancel := opCtx()
	defer cancel()
	var err error
	if subscriptionUUID != "" {
		_, err = s.db.ExecContext(ctx, `
UPDATE vpn_keys SET subscription_link = ?, expiry_date = ?, subscription_uuid = ?
WHERE key_id = ?`, link, expiry.UnixMilli(), subscriptionUUID, keyID)
	} else {
		_, err = s.db.ExecContext(ctx, `
UPDATE vpn_keys SET subscription_link = ?, expiry_date = ? WHERE key_id = ?`,
			link, expiry.UnixMilli(), keyID)
	}
	return err
}

func (s *SQLiteStore) DeleteKey(keyID int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM vpn_keys WHERE key_id = ?`, keyID)
	return err
}

func (s *SQLiteStore) DeleteUserKeys(userID int64) error {
	ctx, cancel := opCtx()
	defer cancel()
	_, err := s.db.ExecContext(ctx, `DELETE FROM vpn_keys WHERE user_id = ?`, userID)
	return err
}
