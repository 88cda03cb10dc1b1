package payments

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mwshark/shop-bot/types"
)

var hundred = decimal.NewFromInt(100)

// Charge computes the price a buyer pays for a plan. Referred buyers with
// zero lifetime spend get the configured first-purchase discount, rounded
// half-up to 2 decimal places. Re-evaluated per purchase attempt: the
// "zero lifetime spend" condition flips after the first fulfillment.
func Charge(user *types.User, plan *types.Plan, discountPercent string) decimal.Decimal {
	base := decimal.NewFromFloat(plan.Price).Round(2)
	if user == nil || user.ReferredBy == 0 || user.TotalSpent != 0 {
		return base
	}
	pct, err := decimal.NewFromString(strings.TrimSpace(discountPercent))
	if err != nil || !pct.IsPositive() {
		return base
	}
	discount := base.Mul(pct).Div(hundred).Round(2)
	return base.Sub(discount)
}

// Commission is the referrer's cut of a referred purchase, rounded half-up
// to 2 decimal places. Zero when the percentage is zero, empty or invalid.
func Commission(price decimal.Decimal, percent string) decimal.Decimal {
	pct, err := decimal.NewFromString(strings.TrimSpace(percent))
	if err != nil || !pct.IsPositive() {
		return decimal.Zero
	}
	return price.Mul(pct).Div(hundred).Round(2)
}
