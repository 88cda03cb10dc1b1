package types

import "time"

type User struct {
	TelegramID        int64
	Username          string
	TotalSpent        float64
	TotalMonths       int
	TrialUsed         bool
	AgreedToTerms     bool
	IsBanned          bool
	ReferredBy        int64 // 0 = no referrer
	ReferralBalance   float64
	ReferralEarnedAll float64
	RegisteredAt      time.Time
}

type VPNKey struct {
	ID               int64
	UserID           int64
	SubscriptionLink string
	SubscriptionUUID string // empty for legacy rows, required for extend
	ExpiryDate       time.Time
	CreatedAt        time.Time
}

type Plan struct {
	ID    int64
	Name  string
	Days  int
	Price float64
}

type Transaction struct {
	ID             int64
	Username       string
	PaymentID      string // internal idempotency token, unique when set
	UserID         int64
	Status         TxStatus
	AmountRUB      float64
	AmountCurrency float64
	CurrencyName   string
	PaymentMethod  string
	Metadata       string // JSON blob
	CreatedAt      time.Time
}

type SettingsStore interface {
	GetSetting(key string) (string, error)
	UpdateSetting(key, value string) error
	AllSettings() (map[string]string, error)
}

type UserStore interface {
	GetUser(telegramID int64) (*User, error)
	GetAllUsers() ([]*User, error)
	RegisterUserIfNotExists(telegramID int64, username string, referrerID int64) error
	BanUser(telegramID int64) error
	UnbanUser(telegramID int64) error
	SetTermsAgreed(telegramID int64) error
	SetTrialUsed(telegramID int64) error
	DeleteUser(telegramID int64) error
	UpdateUserStats(telegramID int64, amountSpent float64, monthsPurchased int) error
	AddToReferralBalance(telegramID int64, amount float64) error
	GetReferralCount(telegramID int64) (int, error)
}

type KeyStore interface {
	GetUserKeys(userID int64) ([]*VPNKey, error)
	GetKeyByID(keyID int64) (*VPNKey, error)
	GetAllKeys() ([]*VPNKey, error)
	AddKey(userID int64, link string, expiry time.Time, subscriptionUUID string) (int64, error)
	UpdateKey(keyID int64, link string, expiry time.Time, subscriptionUUID string) error
	DeleteKey(keyID int64) error
	DeleteUserKeys(userID int64) error
}

type PlanStore interface {
	GetAllPlans() ([]*Plan, error)
	GetPlanByID(planID int64) (*Plan, error)
	CreatePlan(name string, days int, price float64) (int64, error)
	DeletePlan(planID int64) error
}

type TransactionStore interface {
	LogTransaction(tx Transaction) error
	CreatePendingTransaction(paymentID string, userID int64, amountRUB float64, meta Order) error
	// CompleteTONTransaction flips a pending transaction to paid and returns
	// its stored order metadata. Second and later calls for the same
	// paymentID return ErrNotFound.
	CompleteTONTransaction(paymentID string, amountTON float64) (*Order, error)
	// ReopenTONTransaction reverses a CompleteTONTransaction when the
	// order could not be handed to fulfillment.
	ReopenTONTransaction(paymentID string) error
	GetPaginatedTransactions(page, perPage int) ([]*Transaction, int, error)

	CreatePendingInvoice(invoiceID string, meta Order) error
	ConsumePendingInvoice(invoiceID string) (*Order, error)
	CreatePendingCardTransaction(transactionID string, meta Order) error
	ConsumePendingCardTransaction(transactionID string) (*Order, error)
}

// DataStore is what the fulfillment worker and the HTTP surfaces hold.
type DataStore interface {
	SettingsStore
	UserStore
	KeyStore
	PlanStore
	TransactionStore
}
