package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mwshark/shop-bot/internal/metrics"
	"github.com/mwshark/shop-bot/internal/payments"
	"github.com/mwshark/shop-bot/internal/vpnapi"
	"github.com/mwshark/shop-bot/types"
)

// ErrLegacyKey means the target key predates provider-stable identifiers
// and cannot be extended remotely.
var ErrLegacyKey = errors.New("key has no subscription uuid, extension impossible")

// Provisioner is the slice of the VPN API the fulfillment steps call.
type Provisioner interface {
	CreateSubscription(ctx context.Context, userID int64, days int) (*vpnapi.Subscription, error)
	ExtendSubscription(ctx context.Context, uuid string, days int) (*vpnapi.Subscription, error)
}

// Notifier delivers buyer/admin/referrer messages. Delivery failures never
// roll anything back.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Service owns the single-consumer fulfillment queue. Webhook handlers
// enqueue verified orders and return; one worker drains the queue so two
// notifications for the same buyer never interleave their writes.
type Service struct {
	store          types.DataStore
	notifier       Notifier
	newProvisioner func(apiKey string) Provisioner

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	queue   chan types.Order
}

type Option func(*Service)

// WithProvisionerFactory overrides how the VPN API client is built from
// the configured key, for tests.
func WithProvisionerFactory(f func(apiKey string) Provisioner) Option {
	return func(s *Service) { s.newProvisioner = f }
}

func NewService(store types.DataStore, notifier Notifier, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:    store,
		notifier: notifier,
		newProvisioner: func(apiKey string) Provisioner {
			return vpnapi.New(apiKey)
		},
		ctx:    ctx,
		cancel: cancel,
		queue:  make(chan types.Order, 64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.worker()
	log.Info().Msg("fulfillment worker started")
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	log.Info().Msg("fulfillment worker stopped")
}

// Enqueue hands a verified order to the worker. Non-blocking: a full
// queue is reported back so the webhook can answer with a server error
// and let the provider retry.
func (s *Service) Enqueue(order types.Order) error {
	select {
	case s.queue <- order:
		return nil
	case <-s.ctx.Done():
		return errors.New("fulfillment worker is shut down")
	default:
		return errors.New("fulfillment queue is full")
	}
}

func (s *Service) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case order := <-s.queue:
			if err := s.Process(context.Background(), order); err != nil {
				log.Error().Err(err).
					Int64("user_id", order.UserID).
					Str("method", order.PaymentMethod).
					Msg("fulfillment failed")
			}
		}
	}
}

// Process turns verified order metadata into an issued or extended key
// plus accounting side effects. Provisioning failures abort with no local
// writes; once provisioning succeeds nothing is rolled back, later step
// failures are logged and the remaining steps still run.
func (s *Service) Process(ctx context.Context, order types.Order) error {
	apiKey, err := s.store.GetSetting(types.SettingVPNAPIKey)
	if err != nil {
		return fmt.Errorf("read provisioning key: %w", err)
	}
	if apiKey == "" {
		metrics.Fulfillments.WithLabelValues(string(order.Action), metrics.OutcomeError).Inc()
		s.bestEffortSend(ctx, order.UserID, msgConfigError)
		return errors.New("provisioning api key is not configured")
	}
	client := s.newProvisioner(apiKey)

	sub, err := s.provision(ctx, client, order)
	if err != nil {
		metrics.Fulfillments.WithLabelValues(string(order.Action), metrics.OutcomeError).Inc()
		if errors.Is(err, ErrLegacyKey) {
			s.bestEffortSend(ctx, order.UserID, msgLegacyKey)
		} else {
			s.bestEffortSend(ctx, order.UserID, msgProvisionError)
		}
		return err
	}

	expiry, err := parseExpiry(sub.ExpiryDate)
	if err != nil {
		// The grant exists remotely; keep going with a best-guess expiry
		// so the buyer is not left without a key row.
		log.Error().Err(err).Str("raw", sub.ExpiryDate).Msg("unparseable expiry from provisioning api")
		expiry = time.Now().UTC().AddDate(0, 0, order.Days)
	}

	keyID := order.KeyID
	if order.Action == types.ActionExtend {
		if err := s.store.UpdateKey(keyID, sub.Link, expiry, sub.UUID); err != nil {
			log.Error().Err(err).Int64("key_id", keyID).Msg("update key after extend")
		}
	} else {
		keyID, err = s.store.AddKey(order.UserID, sub.Link, expiry, sub.UUID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", order.UserID).Msg("insert key after provisioning")
		}
	}

	price, _ := order.Price.Float64()
	months := order.Days / 30
	if months < 1 {
		months = 1
	}
	if err := s.store.UpdateUserStats(order.UserID, price, months); err != nil {
		log.Error().Err(err).Int64("user_id", order.UserID).Msg("update buyer stats")
	}

	s.applyReferralCommission(ctx, order)

	planName := ""
	if plan, err := s.store.GetPlanByID(order.PlanID); err == nil {
		planName = plan.Name
	}
	meta, _ := json.Marshal(map[string]any{
		"plan_id":        order.PlanID,
		"plan_name":      planName,
		"customer_email": order.CustomerEmail,
	})
	if err := s.store.LogTransaction(types.Transaction{
		PaymentID:     uuid.NewString(),
		UserID:        order.UserID,
		Status:        types.TxPaid,
		AmountRUB:     price,
		PaymentMethod: order.PaymentMethod,
		Metadata:      string(meta),
	}); err != nil {
		log.Error().Err(err).Int64("user_id", order.UserID).Msg("log paid transaction")
	}

	s.notifyBuyer(ctx, order, keyID, sub.Link, expiry)
	s.notifyAdmin(ctx, order, planName)

	metrics.Fulfillments.WithLabelValues(string(order.Action), metrics.OutcomeAccepted).Inc()
	metrics.KeysIssued.WithLabelValues(string(order.Action)).Inc()
	log.Info().
		Int64("user_id", order.UserID).
		Int64("key_id", keyID).
		Str("action", string(order.Action)).
		Str("method", order.PaymentMethod).
		Msg("order fulfilled")
	return nil
}

func (s *Service) provision(ctx context.Context, client Provisioner, order types.Order) (*vpnapi.Subscription, error) {
	if order.Action == types.ActionExtend {
		key, err := s.store.GetKeyByID(order.KeyID)
		if err != nil {
			return nil, fmt.Errorf("look up key %d: %w", order.KeyID, err)
		}
		if key.SubscriptionUUID == "" {
			return nil, ErrLegacyKey
		}
		sub, err := client.ExtendSubscription(ctx, key.SubscriptionUUID, order.Days)
		if err != nil {
			return nil, fmt.Errorf("extend subscription: %w", err)
		}
		return sub, nil
	}

	sub, err := client.CreateSubscription(ctx, order.UserID, order.Days)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return sub, nil
}

func (s *Service) applyReferralCommission(ctx context.Context, order types.Order) {
	user, err := s.store.GetUser(order.UserID)
	if err != nil || user.ReferredBy == 0 {
		return
	}
	enabled, _ := s.store.GetSetting(types.SettingEnableReferrals)
	if enabled == "false" {
		return
	}
	pct, _ := s.store.GetSetting(types.SettingReferralPercentage)
	commission := payments.Commission(order.Price, pct)
	if commission.IsZero() {
		return
	}

	amount, _ := commission.Float64()
	if err := s.store.AddToReferralBalance(user.ReferredBy, amount); err != nil {
		log.Error().Err(err).Int64("referrer_id", user.ReferredBy).Msg("credit referral commission")
		return
	}
	s.bestEffortSend(ctx, user.ReferredBy, fmt.Sprintf(msgReferralCredited, commission.StringFixed(2)))
}

func (s *Service) notifyBuyer(ctx context.Context, order types.Order, keyID int64, link string, expiry time.Time) {
	number := s.keyNumber(order.UserID, keyID)
	text := fmt.Sprintf(msgKeyIssued, number, expiry.Format("02.01.2006 15:04"), link)
	if order.Action == types.ActionExtend {
		text = fmt.Sprintf(msgKeyExtended, number, expiry.Format("02.01.2006 15:04"), link)
	}
	s.bestEffortSend(ctx, order.UserID, text)
}

func (s *Service) notifyAdmin(ctx context.Context, order types.Order, planName string) {
	raw, err := s.store.GetSetting(types.SettingAdminTelegramID)
	if err != nil || raw == "" {
		return
	}
	adminID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return
	}
	s.bestEffortSend(ctx, adminID, fmt.Sprintf(msgAdminSale,
		order.UserID, planName, order.Price.StringFixed(2), order.PaymentMethod))
}

// keyNumber recomputes the 1-based positional number of a key within its
// owner's ordered key list. Never stored.
func (s *Service) keyNumber(userID, keyID int64) int {
	keys, err := s.store.GetUserKeys(userID)
	if err != nil {
		return 1
	}
	for i, k := range keys {
		if k.ID == keyID {
			return i + 1
		}
	}
	return len(keys)
}

func (s *Service) bestEffortSend(ctx context.Context, chatID int64, text string) {
	if s.notifier == nil || chatID == 0 {
		return
	}
	if err := s.notifier.Send(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("notification not delivered")
	}
}

// parseExpiry reads the provisioning API's expiry timestamp. The remote
// reports UTC with either a "+00:00" offset or a "Z"; the suffix is
// stripped and the rest parsed as UTC.
func parseExpiry(raw string) (time.Time, error) {
	s := raw
	if len(s) > 6 && s[len(s)-6:] == "+00:00" {
		s = s[:len(s)-6]
	} else if len(s) > 1 && s[len(s)-1] == 'Z' {
		s = s[:len(s)-1]
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized expiry format %q", raw)
}
