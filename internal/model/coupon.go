package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponType identifies how a coupon's discount value is interpreted.
type CouponType string

const (
	CouponTypePercentage  CouponType = "PERCENTAGE"
	CouponTypeFixedAmount CouponType = "FIXED_AMOUNT"
)

var oneHundred = decimal.NewFromInt(100)

// Coupon represents a discount definition with a validity window and a
// usage cap. Codes are matched case-insensitively.
type Coupon struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	Code              string           `json:"code" db:"code"`
	Type              CouponType       `json:"type" db:"type"`
	DiscountValue     decimal.Decimal  `json:"discountValue" db:"discount_value"`
	MinimumPurchase   *decimal.Decimal `json:"minimumPurchase,omitempty" db:"minimum_purchase"`
	MaxUsageCount     int              `json:"maxUsageCount" db:"max_usage_count"`
	CurrentUsageCount int              `json:"currentUsageCount" db:"current_usage_count"`
	ValidFrom         time.Time        `json:"validFrom" db:"valid_from"`
	ValidUntil        time.Time        `json:"validUntil" db:"valid_until"`
	Active            bool             `json:"active" db:"active"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time        `json:"updatedAt" db:"updated_at"`
}

// HasCapacity reports whether the coupon can still be redeemed.
func (c *Coupon) HasCapacity() bool {
	return c.CurrentUsageCount < c.MaxUsageCount
}

// Discount computes the discount the coupon yields for the given cart total.
// Returns zero when the cart total is below the coupon's minimum purchase
// amount. Percentage discounts round half up to two decimal places; fixed
// discounts never exceed the cart total.
func (c *Coupon) Discount(cartTotal decimal.Decimal) decimal.Decimal {
	if c.MinimumPurchase != nil && cartTotal.LessThan(*c.MinimumPurchase) {
		return decimal.Zero
	}

	switch c.Type {
	case CouponTypePercentage:
		return cartTotal.Mul(c.DiscountValue).Div(oneHundred).Round(2)
	case CouponTypeFixedAmount:
		return decimal.Min(c.DiscountValue, cartTotal)
	default:
		return decimal.Zero
	}
}

// ApplyCouponRequest represents the request payload for applying a coupon.
type ApplyCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

// ConfirmCouponRequest represents the request payload for confirming a
// pending coupon usage after payment.
type ConfirmCouponRequest struct {
	OrderRef uuid.UUID `json:"orderRef"`
}
