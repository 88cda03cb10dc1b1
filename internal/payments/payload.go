package payments

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mwshark/shop-bot/types"
)

// The crypto-invoice backend carries order metadata as a single opaque
// string of 8 colon-delimited positional fields:
//
//	user_id:days:price:action:key_id:plan_id:email:method
//
// Absent key id and email are encoded as the literal "None".
const payloadNone = "None"

func EncodePayload(o types.Order) string {
	keyID := payloadNone
	if o.KeyID != 0 {
		keyID = strconv.FormatInt(o.KeyID, 10)
	}
	email := payloadNone
	if o.CustomerEmail != "" {
		email = o.CustomerEmail
	}
	return strings.Join([]string{
		strconv.FormatInt(o.UserID, 10),
		strconv.Itoa(o.Days),
		o.Price.StringFixed(2),
		string(o.Action),
		keyID,
		strconv.FormatInt(o.PlanID, 10),
		email,
		o.PaymentMethod,
	}, ":")
}

func DecodePayload(s string) (*types.Order, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 8 {
		return nil, fmt.Errorf("invoice payload: want 8 fields, got %d", len(parts))
	}

	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invoice payload user_id: %w", err)
	}
	days, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invoice payload days: %w", err)
	}
	price, err := decimal.NewFromString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("invoice payload price: %w", err)
	}

	action := types.OrderAction(parts[3])
	if action != types.ActionNew && action != types.ActionExtend {
		return nil, fmt.Errorf("invoice payload action: unknown %q", parts[3])
	}

	var keyID int64
	if parts[4] != payloadNone && parts[4] != "" {
		if keyID, err = strconv.ParseInt(parts[4], 10, 64); err != nil {
			return nil, fmt.Errorf("invoice payload key_id: %w", err)
		}
	}
	planID, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invoice payload plan_id: %w", err)
	}

	email := parts[6]
	if email == payloadNone {
		email = ""
	}

	return &types.Order{
		UserID:        userID,
		Days:          days,
		Price:         price,
		Action:        action,
		KeyID:         keyID,
		PlanID:        planID,
		CustomerEmail: email,
		PaymentMethod: parts[7],
	}, nil
}
