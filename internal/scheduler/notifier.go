// Package scheduler runs the expiry warning loop: a fixed-interval scan
// over all keys that warns each owner once per (key, threshold) pair as
// the key approaches expiry.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/internal/fulfillment"
	"github.com/mwshark/shop-bot/internal/metrics"
	"github.com/mwshark/shop-bot/types"
)

const defaultScanInterval = 300 * time.Second

// Warning thresholds in hours before expiry, descending.
var expiryMarks = []int{72, 48, 24, 1}

// ExpiryNotifier owns the notified-set exclusively. The set is in-memory
// only: a restart re-warns keys still inside a threshold window once,
// which is accepted.
type ExpiryNotifier struct {
	store    types.KeyStore
	sender   fulfillment.Notifier
	interval time.Duration
	now      func() time.Time

	// keyID -> hour marks already warned for.
	notified map[int64]map[int]bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

type Option func(*ExpiryNotifier)

func WithInterval(d time.Duration) Option {
	return func(n *ExpiryNotifier) { n.interval = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(n *ExpiryNotifier) { n.now = now }
}

func NewExpiryNotifier(store types.KeyStore, sender fulfillment.Notifier, opts ...Option) *ExpiryNotifier {
	ctx, cancel := context.WithCancel(context.Background())
	n := &ExpiryNotifier{
		store:    store,
		sender:   sender,
		interval: defaultScanInterval,
		now:      time.Now,
		notified: make(map[int64]map[int]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *ExpiryNotifier) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	n.wg.Add(1)
	go n.loop()
	log.Info().Dur("interval", n.interval).Msg("expiry notifier started")
}

func (n *ExpiryNotifier) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()

	n.cancel()
	n.wg.Wait()
	log.Info().Msg("expiry notifier stopped")
}

func (n *ExpiryNotifier) loop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.Scan(n.ctx)
		}
	}
}

// Scan walks every key once. Exported so tests can drive scans without
// the ticker.
func (n *ExpiryNotifier) Scan(ctx context.Context) {
	keys, err := n.store.GetAllKeys()
	if err != nil {
		log.Error().Err(err).Msg("expiry scan: list keys")
		return
	}

	alive := make(map[int64]bool, len(keys))
	now := n.now()

	for _, key := range keys {
		alive[key.ID] = true
		hoursLeft := key.ExpiryDate.Sub(now).Hours()
		if hoursLeft <= 0 {
			continue
		}

		for _, mark := range expiryMarks {
			if hoursLeft > float64(mark) || hoursLeft <= float64(mark-1) {
				continue
			}
			if n.notified[key.ID][mark] {
				break
			}
			if n.notified[key.ID] == nil {
				n.notified[key.ID] = make(map[int]bool)
			}
			n.notified[key.ID][mark] = true
			n.warn(ctx, key, mark)
			break
		}
	}

	for keyID := range n.notified {
		if !alive[keyID] {
			delete(n.notified, keyID)
		}
	}
}

func (n *ExpiryNotifier) warn(ctx context.Context, key *types.VPNKey, mark int) {
	text := fmt.Sprintf(msgExpiryWarning, timeLeftPhrase(mark), key.ExpiryDate.Format("02.01.2006 15:04"))
	if err := n.sender.Send(ctx, key.UserID, text); err != nil {
		log.Warn().Err(err).Int64("user_id", key.UserID).Int64("key_id", key.ID).Msg("expiry warning not delivered")
		return
	}
	metrics.ExpiryWarnings.WithLabelValues(strconv.Itoa(mark)).Inc()
	log.Debug().Int64("key_id", key.ID).Int("hours", mark).Msg("expiry warning sent")
}

const msgExpiryWarning = "⏳ <b>Подписка скоро закончится</b>\nДо окончания: <b>%s</b>\n📅 Дата окончания: %s\n\nПродлите ключ в разделе «Мои ключи»."

// timeLeftPhrase renders a day count once at least a full day remains,
// hours below that.
func timeLeftPhrase(hours int) string {
	value, one, few, many := hours, "час", "часа", "часов"
	if hours >= 24 {
		value, one, few, many = hours/24, "день", "дня", "дней"
	}
	n := value % 100
	if n > 19 {
		n = n % 10
	}
	switch {
	case n == 1:
		return fmt.Sprintf("%d %s", value, one)
	case n >= 2 && n <= 4:
		return fmt.Sprintf("%d %s", value, few)
	default:
		return fmt.Sprintf("%d %s", value, many)
	}
}
