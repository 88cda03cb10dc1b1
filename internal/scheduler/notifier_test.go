package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwshark/shop-bot/store"
)

type captureSender struct {
	mu    sync.Mutex
	texts map[int64][]string
}

func newCaptureSender() *captureSender {
	return &captureSender{texts: make(map[int64][]string)}
}

func (c *captureSender) Send(_ context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts[chatID] = append(c.texts[chatID], text)
	return nil
}

func (c *captureSender) count(chatID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts[chatID])
}

func newNotifierStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.RegisterUserIfNotExists(555, "buyer", 0))
	return s
}

func TestScanWarnsOncePerMark(t *testing.T) {
	st := newNotifierStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// 47h59m left: inside the 48-hour window.
	_, err := st.AddKey(555, "link", base.Add(47*time.Hour+59*time.Minute), "uuid")
	require.NoError(t, err)

	sender := newCaptureSender()
	n := NewExpiryNotifier(st, sender, WithClock(func() time.Time { return base }))

	n.Scan(context.Background())
	assert.Equal(t, 1, sender.count(555))
	assert.Contains(t, sender.texts[555][0], "2 дня")

	// Repeat scans within the same window stay quiet.
	n.Scan(context.Background())
	n.Scan(context.Background())
	assert.Equal(t, 1, sender.count(555))
}

func TestScanWarnsAgainAtNextMark(t *testing.T) {
	st := newNotifierStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	expiry := base.Add(47*time.Hour + 30*time.Minute)
	_, err := st.AddKey(555, "link", expiry, "uuid")
	require.NoError(t, err)

	clock := base
	sender := newCaptureSender()
	n := NewExpiryNotifier(st, sender, WithClock(func() time.Time { return clock }))

	n.Scan(context.Background())
	assert.Equal(t, 1, sender.count(555)) // 48-hour mark

	clock = expiry.Add(-23*time.Hour - 30*time.Minute)
	n.Scan(context.Background())
	assert.Equal(t, 2, sender.count(555)) // 24-hour mark

	clock = expiry.Add(-30 * time.Minute)
	n.Scan(context.Background())
	assert.Equal(t, 3, sender.count(555)) // 1-hour mark
	assert.Contains(t, sender.texts[555][2], "1 час")
}

func TestScanSkipsDistantAndExpiredKeys(t *testing.T) {
	st := newNotifierStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	_, err := st.AddKey(555, "far", base.Add(200*time.Hour), "u1")
	require.NoError(t, err)
	_, err = st.AddKey(555, "gone", base.Add(-time.Hour), "u2")
	require.NoError(t, err)

	sender := newCaptureSender()
	n := NewExpiryNotifier(st, sender, WithClock(func() time.Time { return base }))

	n.Scan(context.Background())
	assert.Zero(t, sender.count(555))
}

func TestScanPrunesDeletedKeys(t *testing.T) {
	st := newNotifierStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	keyID, err := st.AddKey(555, "link", base.Add(47*time.Hour+59*time.Minute), "uuid")
	require.NoError(t, err)

	sender := newCaptureSender()
	n := NewExpiryNotifier(st, sender, WithClock(func() time.Time { return base }))

	n.Scan(context.Background())
	require.Contains(t, n.notified, keyID)

	require.NoError(t, st.DeleteKey(keyID))
	n.Scan(context.Background())
	assert.NotContains(t, n.notified, keyID)
}

func TestTimeLeftPhrase(t *testing.T) {
	assert.Equal(t, "1 час", timeLeftPhrase(1))
	assert.Equal(t, "2 часа", timeLeftPhrase(2))
	assert.Equal(t, "5 часов", timeLeftPhrase(5))
	assert.Equal(t, "21 час", timeLeftPhrase(21))
	assert.Equal(t, "1 день", timeLeftPhrase(24))
	assert.Equal(t, "2 дня", timeLeftPhrase(48))
	assert.Equal(t, "3 дня", timeLeftPhrase(72))
	assert.Equal(t, "11 дней", timeLeftPhrase(264))
}
