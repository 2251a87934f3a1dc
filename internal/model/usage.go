package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UsageStatus tracks a coupon redemption through its lifecycle.
type UsageStatus string

const (
	UsageStatusPending   UsageStatus = "PENDING"
	UsageStatusUsed      UsageStatus = "USED"
	UsageStatusCancelled UsageStatus = "CANCELLED"
)

// CouponUsage records a single user's redemption of a coupon. The amount
// fields are snapshots captured when the coupon was applied and are never
// recomputed.
type CouponUsage struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CouponID           uuid.UUID       `json:"couponId" db:"coupon_id"`
	UserID             int64           `json:"userId" db:"user_id"`
	Status             UsageStatus     `json:"status" db:"status"`
	OrderTotal         decimal.Decimal `json:"orderTotal" db:"order_total"`
	DiscountAmount     decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	TotalAfterDiscount decimal.Decimal `json:"orderTotalAfterDiscount" db:"total_after_discount"`
	OrderRef           *uuid.UUID      `json:"orderRef,omitempty" db:"order_ref"`
	UsedAt             *time.Time      `json:"usedAt,omitempty" db:"used_at"`
	CreatedAt          time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time       `json:"updatedAt" db:"updated_at"`
}
