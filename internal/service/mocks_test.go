package service

import (
	"context"
	"time"

	"checkout-core/internal/mail"
	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockCouponRepository is a mock implementation of CouponRepository.
type MockCouponRepository struct {
	mock.Mock
}

func (m *MockCouponRepository) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Coupon, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponRepository) ListRedeemable(ctx context.Context, now time.Time, cartTotal *decimal.Decimal) ([]model.Coupon, error) {
	args := m.Called(ctx, now, cartTotal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Coupon), args.Error(1)
}

func (m *MockCouponRepository) IncrementUsage(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCouponRepository) Create(ctx context.Context, coupon *model.Coupon) error {
	args := m.Called(ctx, coupon)
	return args.Error(0)
}

// MockCouponUsageRepository is a mock implementation of CouponUsageRepository.
type MockCouponUsageRepository struct {
	mock.Mock
}

func (m *MockCouponUsageRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCouponUsageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.CouponUsage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CouponUsage), args.Error(1)
}

func (m *MockCouponUsageRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*model.CouponUsage, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CouponUsage), args.Error(1)
}

func (m *MockCouponUsageRepository) HasUsed(ctx context.Context, userID int64, couponID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, couponID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCouponUsageRepository) FindPending(ctx context.Context, userID int64, couponID uuid.UUID) (*model.CouponUsage, error) {
	args := m.Called(ctx, userID, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CouponUsage), args.Error(1)
}

func (m *MockCouponUsageRepository) FindPendingByUser(ctx context.Context, userID int64) (*model.CouponUsage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CouponUsage), args.Error(1)
}

func (m *MockCouponUsageRepository) Create(ctx context.Context, usage *model.CouponUsage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func (m *MockCouponUsageRepository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockCouponUsageRepository) MarkUsed(ctx context.Context, tx pgx.Tx, id uuid.UUID, orderRef uuid.UUID, usedAt time.Time) error {
	args := m.Called(ctx, tx, id, orderRef, usedAt)
	return args.Error(0)
}

// MockLookupSessionRepository is a mock implementation of LookupSessionRepository.
type MockLookupSessionRepository struct {
	mock.Mock
}

func (m *MockLookupSessionRepository) GetByEmail(ctx context.Context, email string) (*model.LookupSession, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LookupSession), args.Error(1)
}

func (m *MockLookupSessionRepository) GetByToken(ctx context.Context, token string) (*model.LookupSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LookupSession), args.Error(1)
}

func (m *MockLookupSessionRepository) SaveCode(ctx context.Context, email, codeHash string, expiresAt, sentAt time.Time) error {
	args := m.Called(ctx, email, codeHash, expiresAt, sentAt)
	return args.Error(0)
}

func (m *MockLookupSessionRepository) IncrementAttempts(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockLookupSessionRepository) SetToken(ctx context.Context, id uuid.UUID, token string, expiresAt, at time.Time) error {
	args := m.Called(ctx, id, token, expiresAt, at)
	return args.Error(0)
}

func (m *MockLookupSessionRepository) ClearToken(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) GetByEmail(ctx context.Context, email string) ([]model.Order, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockMailer is a mock implementation of mail.Mailer that records sent
// messages on a channel so tests can wait for the async dispatch.
type MockMailer struct {
	Sent chan mail.Message
	Err  error
}

func NewMockMailer() *MockMailer {
	return &MockMailer{Sent: make(chan mail.Message, 1)}
}

func (m *MockMailer) Send(ctx context.Context, msg mail.Message) error {
	m.Sent <- msg
	return m.Err
}

// MockVerificationService is a mock implementation of VerificationService.
type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) SendCode(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockVerificationService) VerifyCode(ctx context.Context, email, code string) (*model.VerifyCodeResponse, error) {
	args := m.Called(ctx, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.VerifyCodeResponse), args.Error(1)
}

func (m *MockVerificationService) RequireValidToken(ctx context.Context, token string) (string, error) {
	args := m.Called(ctx, token)
	return args.String(0), args.Error(1)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }
