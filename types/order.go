package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Order is the reconciled metadata of one purchase attempt. Every payment
// backend decodes its own notification into this shape before fulfillment.
type Order struct {
	UserID        int64
	Days          int
	Price         decimal.Decimal
	Action        OrderAction
	KeyID         int64 // 0 unless Action is ActionExtend
	PlanID        int64
	CustomerEmail string // empty = no receipt email
	PaymentMethod string
}

type orderWire struct {
	UserID        int64       `json:"user_id"`
	Days          int         `json:"days"`
	Price         string      `json:"price"`
	Action        OrderAction `json:"action"`
	KeyID         int64       `json:"key_id"`
	PlanID        int64       `json:"plan_id"`
	CustomerEmail *string     `json:"customer_email"`
	PaymentMethod string      `json:"payment_method"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	w := orderWire{
		UserID:        o.UserID,
		Days:          o.Days,
		Price:         o.Price.StringFixed(2),
		Action:        o.Action,
		KeyID:         o.KeyID,
		PlanID:        o.PlanID,
		PaymentMethod: o.PaymentMethod,
	}
	if o.CustomerEmail != "" {
		w.CustomerEmail = &o.CustomerEmail
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts numeric fields as either JSON numbers or strings:
// the card processor echoes metadata with numbers, our own blobs carry the
// price as a string.
func (o *Order) UnmarshalJSON(data []byte) error {
	var w struct {
		UserID        json.RawMessage `json:"user_id"`
		Days          json.RawMessage `json:"days"`
		Price         json.RawMessage `json:"price"`
		Action        OrderAction     `json:"action"`
		KeyID         json.RawMessage `json:"key_id"`
		PlanID        json.RawMessage `json:"plan_id"`
		CustomerEmail *string         `json:"customer_email"`
		PaymentMethod string          `json:"payment_method"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	userID, err := rawInt64(w.UserID)
	if err != nil {
		return fmt.Errorf("order user_id: %w", err)
	}
	days, err := rawInt64(w.Days)
	if err != nil {
		return fmt.Errorf("order days: %w", err)
	}
	price, err := rawDecimal(w.Price)
	if err != nil {
		return fmt.Errorf("order price: %w", err)
	}
	planID, err := rawInt64(w.PlanID)
	if err != nil {
		return fmt.Errorf("order plan_id: %w", err)
	}
	keyID := int64(0)
	if len(w.KeyID) > 0 && !bytes.Equal(w.KeyID, []byte("null")) {
		if keyID, err = rawInt64(w.KeyID); err != nil {
			return fmt.Errorf("order key_id: %w", err)
		}
	}

	o.UserID = userID
	o.Days = int(days)
	o.Price = price
	o.Action = w.Action
	o.KeyID = keyID
	o.PlanID = planID
	o.PaymentMethod = w.PaymentMethod
	o.CustomerEmail = ""
	if w.CustomerEmail != nil {
		o.CustomerEmail = *w.CustomerEmail
	}
	return nil
}

func rawString(raw json.RawMessage) string {
	s := string(bytes.TrimSpace(raw))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	return s
}

func rawInt64(raw json.RawMessage) (int64, error) {
	s := rawString(raw)
	if s == "" || s == "null" {
		return 0, fmt.Errorf("missing value")
	}
	// Tolerate float-formatted ids ("555.0") the way loosely typed
	// producers emit them.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), nil
	}
	return strconv.ParseInt(s, 10, 64)
}

func rawDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	s := rawString(raw)
	if s == "" || s == "null" {
		return decimal.Zero, fmt.Errorf("missing value")
	}
	return decimal.NewFromString(s)
}
