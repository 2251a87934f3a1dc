package integration

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL test container with the full schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	createSchema(t, pool)

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// createSchema creates the database schema for testing.
func createSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

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

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
}
