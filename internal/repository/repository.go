package repository

import (
	"context"
	"time"

	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// CouponRepository defines the interface for coupon definition data access.
type CouponRepository interface {
	// GetByCode retrieves a coupon by its code, matched case-insensitively.
	// Returns nil when no coupon matches.
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)

	// GetByID retrieves a coupon by its ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error)

	// ListRedeemable retrieves coupons that are active, inside their
	// validity window at the given instant, and under their usage cap.
	// When cartTotal is set, coupons whose minimum purchase exceeds it
	// are excluded.
	ListRedeemable(ctx context.Context, now time.Time, cartTotal *decimal.Decimal) ([]model.Coupon, error)

	// IncrementUsage atomically increments a coupon's usage counter within
	// the provided transaction. Returns false when the coupon is already
	// at capacity; the counter is never advanced past the cap.
	IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)

	// Create inserts a new coupon definition.
	Create(ctx context.Context, coupon *model.Coupon) error
}

// CouponUsageRepository defines the interface for redemption record data access.
type CouponUsageRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// GetByID retrieves a usage record by its ID. Returns nil when missing.
	GetByID(ctx context.Context, id uuid.UUID) (*model.CouponUsage, error)

	// GetByIDForUpdate retrieves a usage record by its ID within the
	// provided transaction, locking the row for the transaction's duration.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.CouponUsage, error)

	// HasUsed reports whether a USED usage exists for the user and coupon.
	HasUsed(ctx context.Context, userID int64, couponID uuid.UUID) (bool, error)

	// FindPending retrieves the user's PENDING usage for the coupon, if any.
	FindPending(ctx context.Context, userID int64, couponID uuid.UUID) (*model.CouponUsage, error)

	// FindPendingByUser retrieves the user's single PENDING usage across
	// all coupons, if any.
	FindPendingByUser(ctx context.Context, userID int64) (*model.CouponUsage, error)

	// Create inserts a new usage record. Returns
	// model.ErrCouponAlreadyApplied when a PENDING record already exists
	// for the same user and coupon (unique constraint).
	Create(ctx context.Context, usage *model.CouponUsage) error

	// MarkCancelled transitions a usage record to CANCELLED.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkUsed transitions a usage record to USED within the provided
	// transaction, attaching the order reference and usage timestamp.
	MarkUsed(ctx context.Context, tx pgx.Tx, id uuid.UUID, orderRef uuid.UUID, usedAt time.Time) error
}

// LookupSessionRepository defines the interface for per-email verification
// session data access.
type LookupSessionRepository interface {
	// GetByEmail retrieves the session for a normalised email. Returns nil
	// when no session exists.
	GetByEmail(ctx context.Context, email string) (*model.LookupSession, error)

	// GetByToken retrieves the session holding the given access token.
	// Returns nil when no session matches.
	GetByToken(ctx context.Context, token string) (*model.LookupSession, error)

	// SaveCode upserts the session row for an email with a freshly issued
	// code: stores the hash and expiry, records the send time, resets the
	// attempt counter, increments the send counter, and clears any
	// outstanding access token. The unique email constraint collapses
	// concurrent first-time requests onto a single row.
	SaveCode(ctx context.Context, email, codeHash string, expiresAt, sentAt time.Time) error

	// IncrementAttempts advances the failed-attempt counter for a session.
	IncrementAttempts(ctx context.Context, id uuid.UUID, at time.Time) error

	// SetToken records a successful verification: clears the code fields,
	// resets the attempt counter, and stores the new access token.
	SetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error

	// ClearToken removes the session's access token.
	ClearToken(ctx context.Context, id uuid.UUID, at time.Time) error
}

// OrderRepository defines the interface for order read access. Guest lookup
// only ever reads orders scoped to a verified email.
type OrderRepository interface {
	// GetByEmail retrieves all orders belonging to the given email,
	// newest first.
	GetByEmail(ctx context.Context, email string) ([]model.Order, error)
}
