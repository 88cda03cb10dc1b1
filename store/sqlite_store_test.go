package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwshark/shop-bot/types"
)

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func sampleOrder() types.Order {
	price, _ := decimal.NewFromString("950.00")
	return types.Order{
		UserID:        555,
		Days:          30,
		Price:         price,
		Action:        types.ActionNew,
		PlanID:        3,
		CustomerEmail: "buyer@example.com",
		PaymentMethod: types.MethodCryptoBot,
	}
}

func TestSettingsSeededOnFirstOpen(t *testing.T) {
	s := newStore(t)

	v, err := s.GetSetting(types.SettingPanelLogin)
	require.NoError(t, err)
	assert.Equal(t, "admin", v)

	// Unknown keys read as empty, not as errors.
	v, err = s.GetSetting("never_heard_of_it")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSettingsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.UpdateSetting(types.SettingTrialEnabled, "false"))
	s.Close()

	// Re-seeding must not clobber operator changes.
	s, err = NewSQLiteStore(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()
	v, err := s.GetSetting(types.SettingTrialEnabled)
	require.NoError(t, err)
	assert.Equal(t, "false", v)
}

func TestRegisterUserRecordsReferrerOnce(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 777))
	// A later contact with a different referral arg changes nothing.
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer_renamed", 999))

	user, err := s.GetUser(555)
	require.NoError(t, err)
	assert.Equal(t, int64(777), user.ReferredBy)
	assert.Equal(t, "buyer_renamed", user.Username)
}

func TestRegisterUserIgnoresSelfReferral(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 555))

	user, err := s.GetUser(555)
	require.NoError(t, err)
	assert.Zero(t, user.ReferredBy)
}

func TestGetUserNotFound(t *testing.T) {
	s := newStore(t)
	_, err := s.GetUser(12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStatsAccumulate(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))

	require.NoError(t, s.UpdateUserStats(555, 950, 1))
	require.NoError(t, s.UpdateUserStats(555, 1800, 2))

	user, err := s.GetUser(555)
	require.NoError(t, err)
	assert.Equal(t, 2750.0, user.TotalSpent)
	assert.Equal(t, 3, user.TotalMonths)
}

func TestReferralBalanceTracksLifetimeTotal(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(777, "referrer", 0))

	require.NoError(t, s.AddToReferralBalance(777, 100))
	require.NoError(t, s.AddToReferralBalance(777, 50))

	user, err := s.GetUser(777)
	require.NoError(t, err)
	assert.Equal(t, 150.0, user.ReferralBalance)
	assert.Equal(t, 150.0, user.ReferralEarnedAll)
}

func TestKeysOrderedForDerivedNumbering(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))

	expiry := time.Now().Add(30 * 24 * time.Hour)
	first, err := s.AddKey(555, "link-1", expiry, "uuid-1")
	require.NoError(t, err)
	second, err := s.AddKey(555, "link-2", expiry, "uuid-2")
	require.NoError(t, err)

	keys, err := s.GetUserKeys(555)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, first, keys[0].ID)
	assert.Equal(t, second, keys[1].ID)
}

func TestUpdateKeyKeepsUUIDWhenBlank(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))
	keyID, err := s.AddKey(555, "link-1", time.Now().Add(time.Hour), "uuid-1")
	require.NoError(t, err)

	require.NoError(t, s.UpdateKey(keyID, "link-2", time.Now().Add(2*time.Hour), ""))

	key, err := s.GetKeyByID(keyID)
	require.NoError(t, err)
	assert.Equal(t, "link-2", key.SubscriptionLink)
	assert.Equal(t, "uuid-1", key.SubscriptionUUID)
}

func TestDeleteUserCascades(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))
	_, err := s.AddKey(555, "link", time.Now().Add(time.Hour), "uuid")
	require.NoError(t, err)
	require.NoError(t, s.LogTransaction(types.Transaction{
		UserID: 555, Status: types.TxPaid, AmountRUB: 950, PaymentMethod: "YooKassa",
	}))

	require.NoError(t, s.DeleteUser(555))

	_, err = s.GetUser(555)
	assert.ErrorIs(t, err, ErrNotFound)
	keys, err := s.GetUserKeys(555)
	require.NoError(t, err)
	assert.Empty(t, keys)
	_, total, err := s.GetPaginatedTransactions(1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPendingInvoiceConsumedAtMostOnce(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreatePendingInvoice("12345", sampleOrder()))

	order, err := s.ConsumePendingInvoice("12345")
	require.NoError(t, err)
	assert.Equal(t, int64(555), order.UserID)
	assert.Equal(t, "950.00", order.Price.StringFixed(2))
	assert.Equal(t, "buyer@example.com", order.CustomerEmail)

	_, err = s.ConsumePendingInvoice("12345")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingCardTransactionConsumedAtMostOnce(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreatePendingCardTransaction("tx-abc", sampleOrder()))

	order, err := s.ConsumePendingCardTransaction("tx-abc")
	require.NoError(t, err)
	assert.Equal(t, types.ActionNew, order.Action)

	_, err = s.ConsumePendingCardTransaction("tx-abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteTONTransactionFirstMatchOnly(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))
	require.NoError(t, s.CreatePendingTransaction("a1b2c3d4", 555, 950, sampleOrder()))

	order, err := s.CompleteTONTransaction("a1b2c3d4", 3.5)
	require.NoError(t, err)
	assert.Equal(t, int64(555), order.UserID)

	// The row is paid now; a replayed transfer finds nothing pending.
	_, err = s.CompleteTONTransaction("a1b2c3d4", 3.5)
	assert.ErrorIs(t, err, ErrNotFound)

	txs, total, err := s.GetPaginatedTransactions(1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, types.TxPaid, txs[0].Status)
	assert.Equal(t, "TON", txs[0].PaymentMethod)
	assert.Equal(t, 3.5, txs[0].AmountCurrency)
}

func TestReopenTONTransaction(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))
	require.NoError(t, s.CreatePendingTransaction("a1b2c3d4", 555, 950, sampleOrder()))

	_, err := s.CompleteTONTransaction("a1b2c3d4", 3.5)
	require.NoError(t, err)

	require.NoError(t, s.ReopenTONTransaction("a1b2c3d4"))

	// Pending again, so completion works a second time.
	order, err := s.CompleteTONTransaction("a1b2c3d4", 3.5)
	require.NoError(t, err)
	assert.Equal(t, int64(555), order.UserID)

	// Nothing to reopen for unknown or still-pending ids.
	assert.ErrorIs(t, s.ReopenTONTransaction("never-seen"), ErrNotFound)
}

func TestTransactionMetadataRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.CreatePendingInvoice("inv-1", sampleOrder()))

	order, err := s.ConsumePendingInvoice("inv-1")
	require.NoError(t, err)
	want := sampleOrder()
	assert.Equal(t, want.UserID, order.UserID)
	assert.Equal(t, want.Days, order.Days)
	assert.True(t, want.Price.Equal(order.Price))
	assert.Equal(t, want.Action, order.Action)
	assert.Equal(t, want.PlanID, order.PlanID)
	assert.Equal(t, want.CustomerEmail, order.CustomerEmail)
	assert.Equal(t, want.PaymentMethod, order.PaymentMethod)
}

func TestTransactionPagination(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 25; i++ {
		require.NoError(t, s.LogTransaction(types.Transaction{
			UserID: int64(i), Status: types.TxPaid, AmountRUB: 100, PaymentMethod: "YooKassa",
		}))
	}

	txs, total, err := s.GetPaginatedTransactions(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Len(t, txs, 10)

	txs, _, err = s.GetPaginatedTransactions(3, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 5)
}

func TestPlanCRUD(t *testing.T) {
	s := newStore(t)

	id, err := s.CreatePlan("1 месяц", 30, 950)
	require.NoError(t, err)

	plan, err := s.GetPlanByID(id)
	require.NoError(t, err)
	assert.Equal(t, "1 месяц", plan.Name)
	assert.Equal(t, 30, plan.Days)
	assert.Equal(t, 950.0, plan.Price)

	require.NoError(t, s.DeletePlan(id))
	_, err = s.GetPlanByID(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBanUnban(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))

	require.NoError(t, s.BanUser(555))
	user, _ := s.GetUser(555)
	assert.True(t, user.IsBanned)

	require.NoError(t, s.UnbanUser(555))
	user, _ = s.GetUser(555)
	assert.False(t, user.IsBanned)
}

func TestCountsForDashboard(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.RegisterUserIfNotExists(1, "a", 0))
	require.NoError(t, s.RegisterUserIfNotExists(2, "b", 0))
	require.NoError(t, s.BanUser(2))
	_, err := s.AddKey(1, "active", time.Now().Add(time.Hour), "u1")
	require.NoError(t, err)
	_, err = s.AddKey(1, "expired", time.Now().Add(-time.Hour), "u2")
	require.NoError(t, err)
	require.NoError(t, s.UpdateUserStats(1, 950, 1))

	users, _ := s.GetUserCount()
	banned, _ := s.GetBannedUserCount()
	totalKeys, _ := s.GetTotalKeysCount()
	active, _ := s.GetActiveKeysCount()
	expired, _ := s.GetExpiredKeysCount()
	spent, _ := s.GetTotalSpentSum()

	assert.Equal(t, 2, users)
	assert.Equal(t, 1, banned)
	assert.Equal(t, 2, totalKeys)
	assert.Equal(t, 1, active)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 950.0, spent)
}
