package repository

import (
	"context"
	"testing"
	"time"

	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and returns a connection pool.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	// Get connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Create connection pool
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Create schema
	createSchema(t, pool)

	// Cleanup function
	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// createSchema creates the necessary database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	schema := `
		CREATE TABLE coupons (
			id UUID PRIMARY KEY,
			code TEXT NOT NULL,
			type TEXT NOT NULL,
			discount_value NUMERIC(12,2) NOT NULL,
			minimum_purchase NUMERIC(12,2),
			max_usage_count INT NOT NULL,
			current_usage_count INT NOT NULL DEFAULT 0,
			valid_from TIMESTAMPTZ NOT NULL,
			valid_until TIMESTAMPTZ NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE UNIQUE INDEX coupons_code_lower_idx ON coupons (lower(code));

		CREATE TABLE coupon_usages (
			id UUID PRIMARY KEY,
			coupon_id UUID NOT NULL REFERENCES coupons(id),
			user_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			order_total NUMERIC(12,2) NOT NULL,
			discount_amount NUMERIC(12,2) NOT NULL,
			total_after_discount NUMERIC(12,2) NOT NULL,
			order_ref UUID,
			used_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE UNIQUE INDEX coupon_usages_pending_idx
			ON coupon_usages (coupon_id, user_id) WHERE status = 'PENDING';
		CREATE UNIQUE INDEX coupon_usages_used_idx
			ON coupon_usages (coupon_id, user_id) WHERE status = 'USED';

		CREATE TABLE lookup_sessions (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			code_hash TEXT,
			code_expires_at TIMESTAMPTZ,
			last_code_sent_at TIMESTAMPTZ,
			attempt_count INT NOT NULL DEFAULT 0,
			send_count INT NOT NULL DEFAULT 0,
			access_token TEXT,
			token_expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX lookup_sessions_token_idx ON lookup_sessions (access_token);

		CREATE TABLE orders (
			id UUID PRIMARY KEY,
			email TEXT NOT NULL,
			total NUMERIC(12,2) NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX orders_email_idx ON orders (email);
	`

	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err)
}

// testCoupon builds a coupon that is active, in window, and under capacity.
func testCoupon(code string) *model.Coupon {
	now := time.Now().UTC()
	return &model.Coupon{
		ID:            uuid.New(),
		Code:          code,
		Type:          model.CouponTypePercentage,
		DiscountValue: decimal.NewFromInt(10),
		MaxUsageCount: 5,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// testUsage builds a PENDING usage for the given coupon and user.
func testUsage(couponID uuid.UUID, userID int64) *model.CouponUsage {
	now := time.Now().UTC()
	return &model.CouponUsage{
		ID:                 uuid.New(),
		CouponID:           couponID,
		UserID:             userID,
		Status:             model.UsageStatusPending,
		OrderTotal:         decimal.NewFromInt(150),
		DiscountAmount:     decimal.NewFromInt(15),
		TotalAfterDiscount: decimal.NewFromInt(135),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
