package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations, raised by the partial unique index on pending usages.
const uniqueViolation = "23505"

// usageRepository implements the CouponUsageRepository interface using PostgreSQL.
type usageRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponUsageRepository creates a new PostgreSQL-backed coupon usage repository.
func NewCouponUsageRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponUsageRepository {
	return &usageRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon_usage").Logger(),
	}
}

const usageColumns = `
	id, coupon_id, user_id, status,
	order_total, discount_amount, total_after_discount,
	order_ref, used_at, created_at, updated_at
`

func scanUsage(row pgx.Row, u *model.CouponUsage) error {
	return row.Scan(
		&u.ID,
		&u.CouponID,
		&u.UserID,
		&u.Status,
		&u.OrderTotal,
		&u.DiscountAmount,
		&u.TotalAfterDiscount,
		&u.OrderRef,
		&u.UsedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}

// BeginTx starts a new database transaction.
func (r *usageRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// GetByID retrieves a usage record by its ID.
func (r *usageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CouponUsage, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM coupon_usages
		WHERE id = $1
	`

	var u model.CouponUsage
	err := scanUsage(r.pool.QueryRow(ctx, query, id), &u)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("usage_id", id.String()).Msg("coupon usage not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("usage_id", id.String()).Msg("failed to query coupon usage")
		return nil, fmt.Errorf("failed to query coupon usage: %w", err)
	}

	return &u, nil
}

// GetByIDForUpdate retrieves a usage record within the provided transaction,
// locking the row until the transaction ends.
func (r *usageRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.CouponUsage, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM coupon_usages
		WHERE id = $1
		FOR UPDATE
	`

	var u model.CouponUsage
	err := scanUsage(tx.QueryRow(ctx, query, id), &u)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("usage_id", id.String()).Msg("coupon usage not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("usage_id", id.String()).Msg("failed to lock coupon usage")
		return nil, fmt.Errorf("failed to lock coupon usage: %w", err)
	}

	return &u, nil
}

// HasUsed reports whether a USED usage exists for the user and coupon.
func (r *usageRepository) HasUsed(ctx context.Context, userID int64, couponID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM coupon_usages
			WHERE user_id = $1 AND coupon_id = $2 AND status = $3
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, userID, couponID, model.UsageStatusUsed).Scan(&exists)
	if err != nil {
		r.logger.Error().Err(err).
			Int64("user_id", userID).
			Str("coupon_id", couponID.String()).
			Msg("failed to check used coupon usage")
		return false, fmt.Errorf("failed to check used coupon usage: %w", err)
	}

	return exists, nil
}

// FindPending retrieves the user's PENDING usage for the coupon, if any.
func (r *usageRepository) FindPending(ctx context.Context, userID int64, couponID uuid.UUID) (*model.CouponUsage, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM coupon_usages
		WHERE user_id = $1 AND coupon_id = $2 AND status = $3
	`

	var u model.CouponUsage
	err := scanUsage(r.pool.QueryRow(ctx, query, userID, couponID, model.UsageStatusPending), &u)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).
			Int64("user_id", userID).
			Str("coupon_id", couponID.String()).
			Msg("failed to query pending coupon usage")
		return nil, fmt.Errorf("failed to query pending coupon usage: %w", err)
	}

	return &u, nil
}

// FindPendingByUser retrieves the user's single PENDING usage, if any.
func (r *usageRepository) FindPendingByUser(ctx context.Context, userID int64) (*model.CouponUsage, error) {
	query := `
		SELECT ` + usageColumns + `
		FROM coupon_usages
		WHERE user_id = $1 AND status = $2
	`

	var u model.CouponUsage
	err := scanUsage(r.pool.QueryRow(ctx, query, userID, model.UsageStatusPending), &u)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to query pending coupon usage")
		return nil, fmt.Errorf("failed to query pending coupon usage: %w", err)
	}

	return &u, nil
}

// Create inserts a new usage record. The partial unique index on
// (coupon_id, user_id) for PENDING rows closes the race between two
// concurrent applications of the same coupon by the same user.
func (r *usageRepository) Create(ctx context.Context, usage *model.CouponUsage) error {
	query := `
		INSERT INTO coupon_usages (
			id, coupon_id, user_id, status,
			order_total, discount_amount, total_after_discount,
			order_ref, used_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		usage.ID,
		usage.CouponID,
		usage.UserID,
		usage.Status,
		usage.OrderTotal,
		usage.DiscountAmount,
		usage.TotalAfterDiscount,
		usage.OrderRef,
		usage.UsedAt,
		usage.CreatedAt,
		usage.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Warn().
				Int64("user_id", usage.UserID).
				Str("coupon_id", usage.CouponID.String()).
				Msg("concurrent coupon application rejected by unique constraint")
			return model.ErrCouponAlreadyApplied
		}
		r.logger.Error().Err(err).
			Str("usage_id", usage.ID.String()).
			Msg("failed to create coupon usage")
		return fmt.Errorf("failed to create coupon usage: %w", err)
	}

	r.logger.Debug().
		Str("usage_id", usage.ID.String()).
		Str("coupon_id", usage.CouponID.String()).
		Msg("coupon usage created successfully")

	return nil
}

// MarkCancelled transitions a usage record to CANCELLED.
func (r *usageRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE coupon_usages
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, model.UsageStatusCancelled, at)
	if err != nil {
		r.logger.Error().Err(err).Str("usage_id", id.String()).Msg("failed to cancel coupon usage")
		return fmt.Errorf("failed to cancel coupon usage: %w", err)
	}

	r.logger.Debug().Str("usage_id", id.String()).Msg("coupon usage cancelled")

	return nil
}

// MarkUsed transitions a usage record to USED within the provided transaction.
func (r *usageRepository) MarkUsed(ctx context.Context, tx pgx.Tx, id uuid.UUID, orderRef uuid.UUID, usedAt time.Time) error {
	query := `
		UPDATE coupon_usages
		SET status = $2, order_ref = $3, used_at = $4, updated_at = $4
		WHERE id = $1
	`

	_, err := tx.Exec(ctx, query, id, model.UsageStatusUsed, orderRef, usedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("usage_id", id.String()).Msg("failed to mark coupon usage as used")
		return fmt.Errorf("failed to mark coupon usage as used: %w", err)
	}

	r.logger.Debug().
		Str("usage_id", id.String()).
		Str("order_ref", orderRef.String()).
		Msg("coupon usage marked as used")

	return nil
}
