package payments

import (
	"errors"
	"net/http"
	"time"

	"github.com/mwshark/shop-bot/types"
)

// ErrBackendUnavailable means the backend's credentials are not configured;
// no outbound request was made.
var ErrBackendUnavailable = errors.New("payment backend is not configured")

const (
	yookassaBaseURL  = "https://api.yookassa.ru/v3"
	cryptobotBaseURL = "https://pay.crypt.bot/api"
	heleketBaseURL   = "https://api.heleket.com"
	plategaBaseURL   = "https://app.platega.io"
)

// Factory builds one outbound charge/invoice request per chosen backend,
// carrying the order metadata in whatever shape that backend echoes back
// (or a local pending row when it echoes nothing).
type Factory struct {
	store      types.DataStore
	httpClient *http.Client

	yookassaURL  string
	cryptobotURL string
	heleketURL   string
	plategaURL   string
}

type FactoryOption func(*Factory)

// WithBaseURLs points every backend at the given host, for tests.
func WithBaseURLs(u string) FactoryOption {
	return func(f *Factory) {
		f.yookassaURL = u
		f.cryptobotURL = u
		f.heleketURL = u
		f.plategaURL = u
	}
}

func WithHTTPClient(hc *http.Client) FactoryOption {
	return func(f *Factory) { f.httpClient = hc }
}

func NewFactory(store types.DataStore, opts ...FactoryOption) *Factory {
	f := &Factory{
		store:        store,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		yookassaURL:  yookassaBaseURL,
		cryptobotURL: cryptobotBaseURL,
		heleketURL:   heleketBaseURL,
		plategaURL:   plategaBaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewOrder prices the plan for this buyer and assembles the order metadata
// every backend intent carries.
func (f *Factory) NewOrder(user *types.User, plan *types.Plan, action types.OrderAction, keyID int64, customerEmail, method string) (types.Order, error) {
	if plan == nil {
		return types.Order{}, errors.New("plan not found")
	}
	discount, err := f.store.GetSetting(types.SettingReferralDiscount)
	if err != nil {
		return types.Order{}, err
	}
	if action != types.ActionExtend {
		keyID = 0
	}
	return types.Order{
		UserID:        user.TelegramID,
		Days:          plan.Days,
		Price:         Charge(user, plan, discount),
		Action:        action,
		KeyID:         keyID,
		PlanID:        plan.ID,
		CustomerEmail: customerEmail,
		PaymentMethod: method,
	}, nil
}

func (f *Factory) setting(key string) (string, error) {
	v, err := f.store.GetSetting(key)
	if err != nil {
		return "", err
	}
	return v, nil
}

// requireSettings returns ErrBackendUnavailable if any of the listed keys
// is empty.
func (f *Factory) requireSettings(keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := f.setting(key)
		if err != nil {
			return nil, err
		}
		if v == "" {
			return nil, ErrBackendUnavailable
		}
		out[key] = v
	}
	return out, nil
}
