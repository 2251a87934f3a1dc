package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checkout-core/internal/cache"
	"checkout-core/internal/model"
	"checkout-core/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// redeemableCacheKey caches the unfiltered redeemable coupon listing.
const redeemableCacheKey = "coupons:redeemable"

// CouponConfig holds tuning knobs for the coupon service.
type CouponConfig struct {
	// ListCacheTTL bounds how stale the redeemable coupon listing may be.
	ListCacheTTL time.Duration

	// Now is the time source; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// DefaultCouponConfig returns the default coupon service configuration.
func DefaultCouponConfig() *CouponConfig {
	return &CouponConfig{
		ListCacheTTL: 30 * time.Second,
	}
}

// couponService implements CouponService.
type couponService struct {
	couponRepo repository.CouponRepository
	usageRepo  repository.CouponUsageRepository
	cache      cache.Cache
	cacheTTL   time.Duration
	nowFn      func() time.Time
	logger     zerolog.Logger
}

// NewCouponService creates a new coupon service.
func NewCouponService(
	couponRepo repository.CouponRepository,
	usageRepo repository.CouponUsageRepository,
	listCache cache.Cache,
	cfg *CouponConfig,
	logger zerolog.Logger,
) CouponService {
	if cfg == nil {
		cfg = DefaultCouponConfig()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &couponService{
		couponRepo: couponRepo,
		usageRepo:  usageRepo,
		cache:      listCache,
		cacheTTL:   cfg.ListCacheTTL,
		nowFn:      nowFn,
		logger:     logger.With().Str("service", "coupon").Logger(),
	}
}

// Apply validates a coupon for the given cart and records a PENDING usage.
func (s *couponService) Apply(ctx context.Context, code string, cartTotal decimal.Decimal, userID int64) (*model.CouponUsage, error) {
	if userID <= 0 {
		return nil, model.ErrLoginRequired
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, model.ErrCouponNotFound
	}

	if !cartTotal.IsPositive() {
		return nil, model.ErrInvalidCartTotal
	}

	// Single time capture keeps all window comparisons consistent.
	now := s.nowFn().UTC()

	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to apply coupon: %w", err)
	}
	if coupon == nil {
		s.logger.Debug().Str("code", code).Msg("coupon code not found")
		return nil, model.ErrCouponNotFound
	}

	if err := s.validate(ctx, coupon, cartTotal, userID, now); err != nil {
		s.logger.Warn().
			Str("code", coupon.Code).
			Int64("user_id", userID).
			Err(err).
			Msg("coupon rejected")
		return nil, err
	}

	discount := coupon.Discount(cartTotal)
	if !discount.IsPositive() {
		// validate already checked the minimum, this guards a zero-value
		// coupon definition
		return nil, model.ErrMinimumPurchase
	}

	usage := &model.CouponUsage{
		ID:                 uuid.New(),
		CouponID:           coupon.ID,
		UserID:             userID,
		Status:             model.UsageStatusPending,
		OrderTotal:         cartTotal,
		DiscountAmount:     discount,
		TotalAfterDiscount: cartTotal.Sub(discount),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.usageRepo.Create(ctx, usage); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("usage_id", usage.ID.String()).
		Str("code", coupon.Code).
		Int64("user_id", userID).
		Str("discount", discount.String()).
		Msg("coupon applied")

	return usage, nil
}

// validate runs the redemption gate in order; the first failure wins.
func (s *couponService) validate(ctx context.Context, coupon *model.Coupon, cartTotal decimal.Decimal, userID int64, now time.Time) error {
	if !coupon.Active {
		return model.ErrCouponNotActive
	}
	if now.Before(coupon.ValidFrom) {
		return model.ErrCouponNotYetValid
	}
	if now.After(coupon.ValidUntil) {
		return model.ErrCouponExpired
	}
	if !coupon.HasCapacity() {
		return model.ErrUsageLimitExceeded
	}
	if coupon.MinimumPurchase != nil && cartTotal.LessThan(*coupon.MinimumPurchase) {
		return model.ErrMinimumPurchase
	}

	used, err := s.usageRepo.HasUsed(ctx, userID, coupon.ID)
	if err != nil {
		return fmt.Errorf("failed to validate coupon: %w", err)
	}
	if used {
		return model.ErrCouponAlreadyUsed
	}

	pending, err := s.usageRepo.FindPending(ctx, userID, coupon.ID)
	if err != nil {
		return fmt.Errorf("failed to validate coupon: %w", err)
	}
	if pending != nil {
		return model.ErrCouponAlreadyApplied
	}

	return nil
}

// Remove cancels a PENDING usage.
func (s *couponService) Remove(ctx context.Context, usageID uuid.UUID) error {
	usage, err := s.usageRepo.GetByID(ctx, usageID)
	if err != nil {
		return fmt.Errorf("failed to remove coupon: %w", err)
	}
	if usage == nil {
		return model.ErrUsageNotFound
	}

	if usage.Status == model.UsageStatusUsed {
		s.logger.Warn().Str("usage_id", usageID.String()).Msg("attempted to remove a used coupon")
		return model.ErrCannotRemoveUsed
	}

	// re-cancelling a CANCELLED usage is a silent no-op
	if err := s.usageRepo.MarkCancelled(ctx, usageID, s.nowFn().UTC()); err != nil {
		return err
	}

	s.logger.Info().Str("usage_id", usageID.String()).Msg("coupon removed from cart")

	return nil
}

// Confirm transitions a PENDING usage to USED and counts it against the
// coupon's capacity. The status transition and the counter increment commit
// in the same transaction.
func (s *couponService) Confirm(ctx context.Context, usageID uuid.UUID, orderRef uuid.UUID) (*model.CouponUsage, error) {
	now := s.nowFn().UTC()

	tx, err := s.usageRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm coupon: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	usage, err := s.usageRepo.GetByIDForUpdate(ctx, tx, usageID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm coupon: %w", err)
	}
	if usage == nil {
		err = model.ErrUsageNotFound
		return nil, err
	}

	// idempotent: a payment hook may fire more than once
	if usage.Status == model.UsageStatusUsed {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		s.logger.Debug().Str("usage_id", usageID.String()).Msg("coupon usage already confirmed")
		return usage, nil
	}

	if err = s.usageRepo.MarkUsed(ctx, tx, usageID, orderRef, now); err != nil {
		return nil, fmt.Errorf("failed to confirm coupon: %w", err)
	}

	var incremented bool
	incremented, err = s.couponRepo.IncrementUsage(ctx, tx, usage.CouponID)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm coupon: %w", err)
	}
	if !incremented {
		// capacity invariant wins: leave the usage PENDING
		err = model.ErrUsageLimitExceeded
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to confirm coupon: %w", err)
	}

	// the listing is stale now that capacity moved
	if s.cache != nil {
		if cacheErr := s.cache.Delete(ctx, redeemableCacheKey); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Msg("failed to invalidate redeemable coupon cache")
		}
	}

	usage.Status = model.UsageStatusUsed
	usage.OrderRef = &orderRef
	usage.UsedAt = &now
	usage.UpdatedAt = now

	s.logger.Info().
		Str("usage_id", usageID.String()).
		Str("order_ref", orderRef.String()).
		Msg("coupon usage confirmed")

	return usage, nil
}

// ListRedeemable retrieves coupons currently available for redemption.
// The unfiltered listing is cached; the cart total filter is applied on the
// way out so one cache entry serves every cart.
func (s *couponService) ListRedeemable(ctx context.Context, cartTotal *decimal.Decimal) ([]model.Coupon, error) {
	now := s.nowFn().UTC()

	var coupons []model.Coupon
	cached := false

	if s.cache != nil {
		if err := cache.GetJSON(ctx, s.cache, redeemableCacheKey, &coupons); err == nil {
			cached = true
		} else if err != cache.ErrNotFound {
			s.logger.Warn().Err(err).Msg("failed to read redeemable coupon cache")
		}
	}

	if !cached {
		var err error
		coupons, err = s.couponRepo.ListRedeemable(ctx, now, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to list redeemable coupons: %w", err)
		}

		if s.cache != nil {
			if err := cache.SetJSON(ctx, s.cache, redeemableCacheKey, coupons, s.cacheTTL); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write redeemable coupon cache")
			}
		}
	}

	filtered := make([]model.Coupon, 0, len(coupons))
	for _, c := range coupons {
		// a cached entry may have crossed its window or cap since it was stored
		if !c.Active || now.Before(c.ValidFrom) || now.After(c.ValidUntil) || !c.HasCapacity() {
			continue
		}
		if cartTotal != nil && c.MinimumPurchase != nil && cartTotal.LessThan(*c.MinimumPurchase) {
			continue
		}
		filtered = append(filtered, c)
	}

	return filtered, nil
}

// PendingForUser retrieves the user's PENDING usage, or nil when none exists.
func (s *couponService) PendingForUser(ctx context.Context, userID int64) (*model.CouponUsage, error) {
	usage, err := s.usageRepo.FindPendingByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending coupon usage: %w", err)
	}
	return usage, nil
}
