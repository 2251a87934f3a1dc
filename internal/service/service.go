package service

import (
	"context"

	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponService defines operations for coupon redemption.
type CouponService interface {
	// Apply validates a coupon for the given cart and records a PENDING
	// usage with snapshot amounts. Guest use is rejected.
	Apply(ctx context.Context, code string, cartTotal decimal.Decimal, userID int64) (*model.CouponUsage, error)

	// Remove cancels a PENDING usage. A USED usage cannot be removed.
	Remove(ctx context.Context, usageID uuid.UUID) error

	// Confirm transitions a PENDING usage to USED and counts it against
	// the coupon's capacity. Idempotent: confirming a USED usage is a
	// no-op.
	Confirm(ctx context.Context, usageID uuid.UUID, orderRef uuid.UUID) (*model.CouponUsage, error)

	// ListRedeemable retrieves coupons currently available for redemption,
	// optionally restricted to those whose minimum purchase the given cart
	// total meets.
	ListRedeemable(ctx context.Context, cartTotal *decimal.Decimal) ([]model.Coupon, error)

	// PendingForUser retrieves the user's PENDING usage, or nil when the
	// user has none.
	PendingForUser(ctx context.Context, userID int64) (*model.CouponUsage, error)
}

// VerificationService defines the email verification flow that gates guest
// order lookup.
type VerificationService interface {
	// SendCode issues a one-time code to the given email, subject to the
	// resend rate limit.
	SendCode(ctx context.Context, email string) error

	// VerifyCode checks a submitted code and, on success, exchanges it for
	// a short-lived lookup token.
	VerifyCode(ctx context.Context, email, code string) (*model.VerifyCodeResponse, error)

	// RequireValidToken resolves a lookup token to the email it proves
	// control of. Callers must scope queries to the returned email only.
	RequireValidToken(ctx context.Context, token string) (string, error)
}

// LookupService defines guest order lookup.
type LookupService interface {
	// OrdersForToken returns the orders belonging to the email bound to a
	// valid lookup token.
	OrdersForToken(ctx context.Context, token string) ([]model.Order, error)
}
