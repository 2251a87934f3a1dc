package repository

import (
	"context"
	"fmt"
	"time"

	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// couponRepository implements the CouponRepository interface using PostgreSQL.
type couponRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCouponRepository creates a new PostgreSQL-backed coupon repository.
func NewCouponRepository(pool *pgxpool.Pool, logger zerolog.Logger) CouponRepository {
	return &couponRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "coupon").Logger(),
	}
}

const couponColumns = `
	id, code, type, discount_value, minimum_purchase,
	max_usage_count, current_usage_count,
	valid_from, valid_until, active, created_at, updated_at
`

func scanCoupon(row pgx.Row, c *model.Coupon) error {
	return row.Scan(
		&c.ID,
		&c.Code,
		&c.Type,
		&c.DiscountValue,
		&c.MinimumPurchase,
		&c.MaxUsageCount,
		&c.CurrentUsageCount,
		&c.ValidFrom,
		&c.ValidUntil,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

// GetByCode retrieves a coupon by its code, matched case-insensitively.
func (r *couponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		WHERE lower(code) = lower($1)
	`

	var c model.Coupon
	err := scanCoupon(r.pool.QueryRow(ctx, query, code), &c)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("code", code).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("code", code).Msg("failed to query coupon by code")
		return nil, fmt.Errorf("failed to query coupon by code: %w", err)
	}

	return &c, nil
}

// GetByID retrieves a coupon by its ID.
func (r *couponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		WHERE id = $1
	`

	var c model.Coupon
	err := scanCoupon(r.pool.QueryRow(ctx, query, id), &c)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("coupon_id", id.String()).Msg("coupon not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("coupon_id", id.String()).Msg("failed to query coupon")
		return nil, fmt.Errorf("failed to query coupon: %w", err)
	}

	return &c, nil
}

// ListRedeemable retrieves coupons that are active, inside their validity
// window, and under their usage cap, optionally filtered by minimum purchase.
func (r *couponRepository) ListRedeemable(ctx context.Context, now time.Time, cartTotal *decimal.Decimal) ([]model.Coupon, error) {
	query := `
		SELECT ` + couponColumns + `
		FROM coupons
		WHERE active
		  AND valid_from <= $1
		  AND valid_until >= $1
		  AND current_usage_count < max_usage_count
		  AND ($2::numeric IS NULL OR minimum_purchase IS NULL OR minimum_purchase <= $2)
		ORDER BY code
	`

	rows, err := r.pool.Query(ctx, query, now, cartTotal)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query redeemable coupons")
		return nil, fmt.Errorf("failed to query redeemable coupons: %w", err)
	}
	defer rows.Close()

	var coupons []model.Coupon
	for rows.Next() {
		var c model.Coupon
		if err := scanCoupon(rows, &c); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan coupon row")
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating coupon rows")
		return nil, fmt.Errorf("error iterating coupons: %w", err)
	}

	return coupons, nil
}

// IncrementUsage atomically increments a coupon's usage counter within the
// provided transaction. The conditional update keeps the counter at or
// below the cap under concurrent confirmations.
func (r *couponRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	query := `
		UPDATE coupons
		SET current_usage_count = current_usage_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND current_usage_count < max_usage_count
	`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error().Err(err).Str("coupon_id", id.String()).Msg("failed to increment coupon usage count")
		return false, fmt.Errorf("failed to increment coupon usage count: %w", err)
	}

	if tag.RowsAffected() == 0 {
		r.logger.Warn().Str("coupon_id", id.String()).Msg("coupon at capacity, usage count not incremented")
		return false, nil
	}

	return true, nil
}

// Create inserts a new coupon definition.
func (r *couponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	query := `
		INSERT INTO coupons (
			id, code, type, discount_value, minimum_purchase,
			max_usage_count, current_usage_count,
			valid_from, valid_until, active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.pool.Exec(ctx, query,
		coupon.ID,
		coupon.Code,
		coupon.Type,
		coupon.DiscountValue,
		coupon.MinimumPurchase,
		coupon.MaxUsageCount,
		coupon.CurrentUsageCount,
		coupon.ValidFrom,
		coupon.ValidUntil,
		coupon.Active,
		coupon.CreatedAt,
		coupon.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to create coupon")
		return fmt.Errorf("failed to create coupon: %w", err)
	}

	r.logger.Debug().Str("code", coupon.Code).Msg("coupon created successfully")

	return nil
}
