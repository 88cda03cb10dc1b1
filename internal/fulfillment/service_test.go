package fulfillment

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwshark/shop-bot/internal/vpnapi"
	"github.com/mwshark/shop-bot/store"
	"github.com/mwshark/shop-bot/types"
)

type fakeProvisioner struct {
	sub         *vpnapi.Subscription
	err         error
	createCalls int
	extendCalls int
	gotUUID     string
	gotDays     int
}

func (f *fakeProvisioner) CreateSubscription(_ context.Context, _ int64, days int) (*vpnapi.Subscription, error) {
	f.createCalls++
	f.gotDays = days
	return f.sub, f.err
}

func (f *fakeProvisioner) ExtendSubscription(_ context.Context, uuid string, days int) (*vpnapi.Subscription, error) {
	f.extendCalls++
	f.gotUUID = uuid
	f.gotDays = days
	return f.sub, f.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends map[int64][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sends: make(map[int64][]string)}
}

func (n *recordingNotifier) Send(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends[chatID] = append(n.sends[chatID], text)
	return nil
}

func (n *recordingNotifier) sent(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sends[chatID]
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func newTestService(t *testing.T, st *store.SQLiteStore, prov Provisioner) (*Service, *recordingNotifier) {
	t.Helper()
	require.NoError(t, st.UpdateSetting(types.SettingVPNAPIKey, "test-api-key"))
	notifier := newRecordingNotifier()
	svc := NewService(st, notifier, WithProvisionerFactory(func(string) Provisioner { return prov }))
	return svc, notifier
}

func newOrder(userID int64, days int, price string, action types.OrderAction, keyID int64) types.Order {
	p, _ := decimal.NewFromString(price)
	return types.Order{
		UserID:        userID,
		Days:          days,
		Price:         p,
		Action:        action,
		KeyID:         keyID,
		PlanID:        3,
		PaymentMethod: types.MethodCryptoBot,
	}
}

func TestProcessNewGrant(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))

	prov := &fakeProvisioner{sub: &vpnapi.Subscription{
		UUID:       "sub-uuid-1",
		Link:       "https://vpn.example/sub/1",
		ExpiryDate: "2026-10-01T12:00:00+00:00",
	}}
	svc, notifier := newTestService(t, st, prov)

	require.NoError(t, svc.Process(context.Background(), newOrder(555, 30, "950.00", types.ActionNew, 0)))

	assert.Equal(t, 1, prov.createCalls)
	assert.Equal(t, 30, prov.gotDays)

	keys, err := st.GetUserKeys(555)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "https://vpn.example/sub/1", keys[0].SubscriptionLink)
	assert.Equal(t, "sub-uuid-1", keys[0].SubscriptionUUID)
	assert.Equal(t, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC), keys[0].ExpiryDate.UTC())

	user, err := st.GetUser(555)
	require.NoError(t, err)
	assert.Equal(t, 950.0, user.TotalSpent)
	assert.Equal(t, 1, user.TotalMonths)

	txs, total, err := st.GetPaginatedTransactions(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, types.TxPaid, txs[0].Status)
	assert.Equal(t, 950.0, txs[0].AmountRUB)

	require.Len(t, notifier.sent(555), 1)
}

func TestProcessExtend(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))
	oldExpiry := time.Now().Add(24 * time.Hour).Truncate(time.Millisecond)
	keyID, err := st.AddKey(555, "https://vpn.example/old", oldExpiry, "sub-uuid-1")
	require.NoError(t, err)

	prov := &fakeProvisioner{sub: &vpnapi.Subscription{
		UUID:       "sub-uuid-1",
		Link:       "https://vpn.example/new",
		ExpiryDate: "2026-12-01T00:00:00Z",
	}}
	svc, _ := newTestService(t, st, prov)

	require.NoError(t, svc.Process(context.Background(), newOrder(555, 90, "2400.00", types.ActionExtend, keyID)))

	assert.Equal(t, 0, prov.createCalls)
	assert.Equal(t, 1, prov.extendCalls)
	assert.Equal(t, "sub-uuid-1", prov.gotUUID)

	key, err := st.GetKeyByID(keyID)
	require.NoError(t, err)
	assert.Equal(t, "https://vpn.example/new", key.SubscriptionLink)
	assert.True(t, key.ExpiryDate.After(oldExpiry))
}

func TestProcessExtendLegacyKey(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))
	keyID, err := st.AddKey(555, "https://vpn.example/old", time.Now().Add(time.Hour), "")
	require.NoError(t, err)

	prov := &fakeProvisioner{}
	svc, notifier := newTestService(t, st, prov)

	err = svc.Process(context.Background(), newOrder(555, 30, "950.00", types.ActionExtend, keyID))
	assert.ErrorIs(t, err, ErrLegacyKey)
	assert.Equal(t, 0, prov.extendCalls)

	user, _ := st.GetUser(555)
	assert.Zero(t, user.TotalSpent)
	require.Len(t, notifier.sent(555), 1)
	assert.Contains(t, notifier.sent(555)[0], "нельзя продлить")
}

func TestProcessProvisioningFailure(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 777))
	require.NoError(t, st.RegisterUserIfNotExists(777, "referrer", 0))

	prov := &fakeProvisioner{err: errors.New("no balance")}
	svc, notifier := newTestService(t, st, prov)

	err := svc.Process(context.Background(), newOrder(555, 30, "950.00", types.ActionNew, 0))
	assert.Error(t, err)

	keys, _ := st.GetUserKeys(555)
	assert.Empty(t, keys)

	user, _ := st.GetUser(555)
	assert.Zero(t, user.TotalSpent)

	referrer, _ := st.GetUser(777)
	assert.Zero(t, referrer.ReferralBalance)
	assert.Empty(t, notifier.sent(777))

	_, total, _ := st.GetPaginatedTransactions(1, 10)
	assert.Zero(t, total)
}

func TestProcessMissingAPIKey(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))

	prov := &fakeProvisioner{}
	notifier := newRecordingNotifier()
	svc := NewService(st, notifier, WithProvisionerFactory(func(string) Provisioner { return prov }))

	err := svc.Process(context.Background(), newOrder(555, 30, "950.00", types.ActionNew, 0))
	assert.Error(t, err)
	assert.Equal(t, 0, prov.createCalls)
}

func TestReferralCommission(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(777, "referrer", 0))
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 777))
	require.NoError(t, st.UpdateSetting(types.SettingReferralPercentage, "10"))

	prov := &fakeProvisioner{sub: &vpnapi.Subscription{
		UUID: "u", Link: "l", ExpiryDate: "2026-10-01T00:00:00Z",
	}}
	svc, notifier := newTestService(t, st, prov)

	require.NoError(t, svc.Process(context.Background(), newOrder(555, 30, "1000.00", types.ActionNew, 0)))

	referrer, err := st.GetUser(777)
	require.NoError(t, err)
	assert.Equal(t, 100.0, referrer.ReferralBalance)
	assert.Equal(t, 100.0, referrer.ReferralEarnedAll)
	require.Len(t, notifier.sent(777), 1)
	assert.Contains(t, notifier.sent(777)[0], "100.00")
}

func TestReferralCommissionZeroPercent(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(777, "referrer", 0))
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 777))
	require.NoError(t, st.UpdateSetting(types.SettingReferralPercentage, "0"))

	prov := &fakeProvisioner{sub: &vpnapi.Subscription{
		UUID: "u", Link: "l", ExpiryDate: "2026-10-01T00:00:00Z",
	}}
	svc, notifier := newTestService(t, st, prov)

	require.NoError(t, svc.Process(context.Background(), newOrder(555, 30, "1000.00", types.ActionNew, 0)))

	referrer, _ := st.GetUser(777)
	assert.Zero(t, referrer.ReferralBalance)
	assert.Empty(t, notifier.sent(777))
}

func TestMonthsAccounting(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))

	prov := &fakeProvisioner{sub: &vpnapi.Subscription{
		UUID: "u", Link: "l", ExpiryDate: "2026-10-01T00:00:00Z",
	}}
	svc, _ := newTestService(t, st, prov)

	// 3 days (trial-sized) still counts as one month, 65 days as two.
	require.NoError(t, svc.Process(context.Background(), newOrder(555, 3, "0.00", types.ActionNew, 0)))
	require.NoError(t, svc.Process(context.Background(), newOrder(555, 65, "1800.00", types.ActionNew, 0)))

	user, err := st.GetUser(555)
	require.NoError(t, err)
	assert.Equal(t, 3, user.TotalMonths)
}

func TestEnqueueDrainsThroughWorker(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RegisterUserIfNotExists(555, "buyer", 0))

	prov := &fakeProvisioner{sub: &vpnapi.Subscription{
		UUID: "u", Link: "l", ExpiryDate: "2026-10-01T00:00:00Z",
	}}
	svc, notifier := newTestService(t, st, prov)

	svc.Start()
	defer svc.Stop()

	require.NoError(t, svc.Enqueue(newOrder(555, 30, "950.00", types.ActionNew, 0)))

	require.Eventually(t, func() bool {
		return len(notifier.sent(555)) == 1
	}, 5*time.Second, 20*time.Millisecond)

	keys, err := st.GetUserKeys(555)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-10-01T12:30:45+00:00", time.Date(2026, 10, 1, 12, 30, 45, 0, time.UTC)},
		{"2026-10-01T12:30:45Z", time.Date(2026, 10, 1, 12, 30, 45, 0, time.UTC)},
		{"2026-10-01T12:30:45.123456+00:00", time.Date(2026, 10, 1, 12, 30, 45, 123456000, time.UTC)},
		{"2026-10-01T12:30:45", time.Date(2026, 10, 1, 12, 30, 45, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseExpiry(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.True(t, got.Equal(tt.want), "parse %s: got %s", tt.raw, got)
	}

	_, err := parseExpiry("next tuesday")
	assert.Error(t, err)
}
