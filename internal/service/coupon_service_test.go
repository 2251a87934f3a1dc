package service

import (
	"context"
	"testing"
	"time"

	"checkout-core/internal/cache"
	"checkout-core/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newCouponService(couponRepo *MockCouponRepository, usageRepo *MockCouponUsageRepository) CouponService {
	cfg := DefaultCouponConfig()
	cfg.Now = func() time.Time { return fixedNow }
	return NewCouponService(couponRepo, usageRepo, cache.NewInMemoryCache(), cfg, zerolog.Nop())
}

// welcomeCoupon matches the canonical scenario: 10% off, minimum purchase
// 100.00, single redemption, valid from an hour ago until an hour from now.
func welcomeCoupon() *model.Coupon {
	return &model.Coupon{
		ID:              uuid.New(),
		Code:            "WELCOME10",
		Type:            model.CouponTypePercentage,
		DiscountValue:   dec("10"),
		MinimumPurchase: decPtr("100.00"),
		MaxUsageCount:   1,
		ValidFrom:       fixedNow.Add(-time.Hour),
		ValidUntil:      fixedNow.Add(time.Hour),
		Active:          true,
	}
}

func TestCouponService_Apply_Success(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	coupon := welcomeCoupon()
	couponRepo.On("GetByCode", ctx, "WELCOME10").Return(coupon, nil)
	usageRepo.On("HasUsed", ctx, int64(7), coupon.ID).Return(false, nil)
	usageRepo.On("FindPending", ctx, int64(7), coupon.ID).Return(nil, nil)
	usageRepo.On("Create", ctx, mock.AnythingOfType("*model.CouponUsage")).Return(nil)

	usage, err := svc.Apply(ctx, "WELCOME10", dec("150.00"), 7)

	require.NoError(t, err)
	require.NotNil(t, usage)
	assert.Equal(t, model.UsageStatusPending, usage.Status)
	assert.Equal(t, coupon.ID, usage.CouponID)
	assert.Equal(t, int64(7), usage.UserID)
	assert.True(t, dec("15.00").Equal(usage.DiscountAmount))
	assert.True(t, dec("135.00").Equal(usage.TotalAfterDiscount))
	assert.True(t, dec("150.00").Equal(usage.OrderTotal))

	usageRepo.AssertExpectations(t)
}

func TestCouponService_Apply_GuestRejected(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)

	_, err := svc.Apply(context.Background(), "WELCOME10", dec("150.00"), 0)

	assert.ErrorIs(t, err, model.ErrLoginRequired)
	couponRepo.AssertNotCalled(t, "GetByCode")
}

func TestCouponService_Apply_NotFound(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	couponRepo.On("GetByCode", ctx, "NOPE").Return(nil, nil)

	_, err := svc.Apply(ctx, "NOPE", dec("150.00"), 7)

	assert.ErrorIs(t, err, model.ErrCouponNotFound)
}

func TestCouponService_Apply_InvalidCartTotal(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)

	_, err := svc.Apply(context.Background(), "WELCOME10", dec("0"), 7)

	assert.ErrorIs(t, err, model.ErrInvalidCartTotal)
}

func TestCouponService_Apply_ValidationGates(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *model.Coupon)
		total    string
		expected error
	}{
		{
			name:     "inactive coupon",
			mutate:   func(c *model.Coupon) { c.Active = false },
			total:    "150.00",
			expected: model.ErrCouponNotActive,
		},
		{
			name:     "not yet valid",
			mutate:   func(c *model.Coupon) { c.ValidFrom = fixedNow.Add(time.Minute) },
			total:    "150.00",
			expected: model.ErrCouponNotYetValid,
		},
		{
			name:     "expired",
			mutate:   func(c *model.Coupon) { c.ValidUntil = fixedNow.Add(-time.Minute) },
			total:    "150.00",
			expected: model.ErrCouponExpired,
		},
		{
			name:     "at capacity",
			mutate:   func(c *model.Coupon) { c.CurrentUsageCount = 1 },
			total:    "150.00",
			expected: model.ErrUsageLimitExceeded,
		},
		{
			name:     "below minimum purchase",
			mutate:   func(c *model.Coupon) {},
			total:    "99.99",
			expected: model.ErrMinimumPurchase,
		},
		{
			name: "inactive wins over expired",
			mutate: func(c *model.Coupon) {
				c.Active = false
				c.ValidUntil = fixedNow.Add(-time.Minute)
			},
			total:    "150.00",
			expected: model.ErrCouponNotActive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			couponRepo := new(MockCouponRepository)
			usageRepo := new(MockCouponUsageRepository)
			svc := newCouponService(couponRepo, usageRepo)
			ctx := context.Background()

			coupon := welcomeCoupon()
			tt.mutate(coupon)
			couponRepo.On("GetByCode", ctx, "WELCOME10").Return(coupon, nil)

			_, err := svc.Apply(ctx, "WELCOME10", dec(tt.total), 7)

			assert.ErrorIs(t, err, tt.expected)
			usageRepo.AssertNotCalled(t, "Create")
		})
	}
}

func TestCouponService_Apply_AlreadyUsed(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	coupon := welcomeCoupon()
	couponRepo.On("GetByCode", ctx, "WELCOME10").Return(coupon, nil)
	usageRepo.On("HasUsed", ctx, int64(7), coupon.ID).Return(true, nil)

	_, err := svc.Apply(ctx, "WELCOME10", dec("200.00"), 7)

	assert.ErrorIs(t, err, model.ErrCouponAlreadyUsed)
	usageRepo.AssertNotCalled(t, "FindPending")
}

func TestCouponService_Apply_AlreadyApplied(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	coupon := welcomeCoupon()
	pending := &model.CouponUsage{ID: uuid.New(), CouponID: coupon.ID, UserID: 7, Status: model.UsageStatusPending}
	couponRepo.On("GetByCode", ctx, "WELCOME10").Return(coupon, nil)
	usageRepo.On("HasUsed", ctx, int64(7), coupon.ID).Return(false, nil)
	usageRepo.On("FindPending", ctx, int64(7), coupon.ID).Return(pending, nil)

	_, err := svc.Apply(ctx, "WELCOME10", dec("150.00"), 7)

	assert.ErrorIs(t, err, model.ErrCouponAlreadyApplied)
	usageRepo.AssertNotCalled(t, "Create")
}

func TestCouponService_Apply_ConcurrentDuplicateSurfacesAlreadyApplied(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	// both requests pass the pending check, the unique constraint decides
	coupon := welcomeCoupon()
	couponRepo.On("GetByCode", ctx, "WELCOME10").Return(coupon, nil)
	usageRepo.On("HasUsed", ctx, int64(7), coupon.ID).Return(false, nil)
	usageRepo.On("FindPending", ctx, int64(7), coupon.ID).Return(nil, nil)
	usageRepo.On("Create", ctx, mock.AnythingOfType("*model.CouponUsage")).Return(model.ErrCouponAlreadyApplied)

	_, err := svc.Apply(ctx, "WELCOME10", dec("150.00"), 7)

	assert.ErrorIs(t, err, model.ErrCouponAlreadyApplied)
}

func TestCouponService_Remove(t *testing.T) {
	t.Run("usage not found", func(t *testing.T) {
		couponRepo := new(MockCouponRepository)
		usageRepo := new(MockCouponUsageRepository)
		svc := newCouponService(couponRepo, usageRepo)
		ctx := context.Background()

		id := uuid.New()
		usageRepo.On("GetByID", ctx, id).Return(nil, nil)

		err := svc.Remove(ctx, id)
		assert.ErrorIs(t, err, model.ErrUsageNotFound)
	})

	t.Run("used usage cannot be removed", func(t *testing.T) {
		couponRepo := new(MockCouponRepository)
		usageRepo := new(MockCouponUsageRepository)
		svc := newCouponService(couponRepo, usageRepo)
		ctx := context.Background()

		usage := &model.CouponUsage{ID: uuid.New(), Status: model.UsageStatusUsed}
		usageRepo.On("GetByID", ctx, usage.ID).Return(usage, nil)

		err := svc.Remove(ctx, usage.ID)
		assert.ErrorIs(t, err, model.ErrCannotRemoveUsed)
		usageRepo.AssertNotCalled(t, "MarkCancelled")
	})

	t.Run("pending usage is cancelled", func(t *testing.T) {
		couponRepo := new(MockCouponRepository)
		usageRepo := new(MockCouponUsageRepository)
		svc := newCouponService(couponRepo, usageRepo)
		ctx := context.Background()

		usage := &model.CouponUsage{ID: uuid.New(), Status: model.UsageStatusPending}
		usageRepo.On("GetByID", ctx, usage.ID).Return(usage, nil)
		usageRepo.On("MarkCancelled", ctx, usage.ID, fixedNow).Return(nil)

		err := svc.Remove(ctx, usage.ID)
		assert.NoError(t, err)
		usageRepo.AssertExpectations(t)
	})

	t.Run("cancelled usage re-cancels silently", func(t *testing.T) {
		couponRepo := new(MockCouponRepository)
		usageRepo := new(MockCouponUsageRepository)
		svc := newCouponService(couponRepo, usageRepo)
		ctx := context.Background()

		usage := &model.CouponUsage{ID: uuid.New(), Status: model.UsageStatusCancelled}
		usageRepo.On("GetByID", ctx, usage.ID).Return(usage, nil)
		usageRepo.On("MarkCancelled", ctx, usage.ID, fixedNow).Return(nil)

		err := svc.Remove(ctx, usage.ID)
		assert.NoError(t, err)
	})
}

func TestCouponService_Confirm_Success(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	tx := new(MockTx)
	tx.On("Commit", ctx).Return(nil)

	usage := &model.CouponUsage{
		ID:       uuid.New(),
		CouponID: uuid.New(),
		UserID:   7,
		Status:   model.UsageStatusPending,
	}
	orderRef := uuid.New()

	usageRepo.On("BeginTx", ctx).Return(tx, nil)
	usageRepo.On("GetByIDForUpdate", ctx, tx, usage.ID).Return(usage, nil)
	usageRepo.On("MarkUsed", ctx, tx, usage.ID, orderRef, fixedNow).Return(nil)
	couponRepo.On("IncrementUsage", ctx, tx, usage.CouponID).Return(true, nil)

	confirmed, err := svc.Confirm(ctx, usage.ID, orderRef)

	require.NoError(t, err)
	assert.Equal(t, model.UsageStatusUsed, confirmed.Status)
	require.NotNil(t, confirmed.OrderRef)
	assert.Equal(t, orderRef, *confirmed.OrderRef)
	require.NotNil(t, confirmed.UsedAt)
	assert.Equal(t, fixedNow, *confirmed.UsedAt)

	tx.AssertExpectations(t)
	couponRepo.AssertExpectations(t)
}

func TestCouponService_Confirm_Idempotent(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	tx := new(MockTx)
	tx.On("Rollback", ctx).Return(nil)

	orderRef := uuid.New()
	usedAt := fixedNow.Add(-time.Minute)
	usage := &model.CouponUsage{
		ID:       uuid.New(),
		CouponID: uuid.New(),
		Status:   model.UsageStatusUsed,
		OrderRef: &orderRef,
		UsedAt:   &usedAt,
	}

	usageRepo.On("BeginTx", ctx).Return(tx, nil)
	usageRepo.On("GetByIDForUpdate", ctx, tx, usage.ID).Return(usage, nil)

	confirmed, err := svc.Confirm(ctx, usage.ID, orderRef)

	require.NoError(t, err)
	assert.Equal(t, model.UsageStatusUsed, confirmed.Status)

	// the already-counted redemption must not be counted again
	couponRepo.AssertNotCalled(t, "IncrementUsage")
	usageRepo.AssertNotCalled(t, "MarkUsed")
	tx.AssertExpectations(t)
}

func TestCouponService_Confirm_NotFound(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	tx := new(MockTx)
	tx.On("Rollback", ctx).Return(nil)

	id := uuid.New()
	usageRepo.On("BeginTx", ctx).Return(tx, nil)
	usageRepo.On("GetByIDForUpdate", ctx, tx, id).Return(nil, nil)

	_, err := svc.Confirm(ctx, id, uuid.New())

	assert.ErrorIs(t, err, model.ErrUsageNotFound)
	tx.AssertExpectations(t)
}

func TestCouponService_Confirm_AtCapacityRollsBack(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	tx := new(MockTx)
	tx.On("Rollback", ctx).Return(nil)

	usage := &model.CouponUsage{
		ID:       uuid.New(),
		CouponID: uuid.New(),
		Status:   model.UsageStatusPending,
	}
	orderRef := uuid.New()

	usageRepo.On("BeginTx", ctx).Return(tx, nil)
	usageRepo.On("GetByIDForUpdate", ctx, tx, usage.ID).Return(usage, nil)
	usageRepo.On("MarkUsed", ctx, tx, usage.ID, orderRef, fixedNow).Return(nil)
	couponRepo.On("IncrementUsage", ctx, tx, usage.CouponID).Return(false, nil)

	_, err := svc.Confirm(ctx, usage.ID, orderRef)

	assert.ErrorIs(t, err, model.ErrUsageLimitExceeded)
	tx.AssertNotCalled(t, "Commit")
	tx.AssertExpectations(t)
}

func TestCouponService_ListRedeemable(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	cheap := *welcomeCoupon()
	cheap.Code = "ANY5"
	cheap.MinimumPurchase = nil

	pricey := *welcomeCoupon()
	pricey.Code = "BIG20"
	pricey.MinimumPurchase = decPtr("500.00")

	couponRepo.On("ListRedeemable", ctx, fixedNow, (*decimal.Decimal)(nil)).
		Return([]model.Coupon{cheap, pricey}, nil).Once()

	t.Run("unfiltered returns everything", func(t *testing.T) {
		coupons, err := svc.ListRedeemable(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, coupons, 2)
	})

	t.Run("cart total filter served from cache", func(t *testing.T) {
		cartTotal := dec("100.00")
		coupons, err := svc.ListRedeemable(ctx, &cartTotal)
		require.NoError(t, err)
		require.Len(t, coupons, 1)
		assert.Equal(t, "ANY5", coupons[0].Code)
	})

	// the single .Once() expectation proves the second call hit the cache
	couponRepo.AssertExpectations(t)
}

func TestCouponService_PendingForUser(t *testing.T) {
	couponRepo := new(MockCouponRepository)
	usageRepo := new(MockCouponUsageRepository)
	svc := newCouponService(couponRepo, usageRepo)
	ctx := context.Background()

	pending := &model.CouponUsage{ID: uuid.New(), UserID: 7, Status: model.UsageStatusPending}
	usageRepo.On("FindPendingByUser", ctx, int64(7)).Return(pending, nil)
	usageRepo.On("FindPendingByUser", ctx, int64(8)).Return(nil, nil)

	got, err := svc.PendingForUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, got.ID)

	got, err = svc.PendingForUser(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, got)
}
