package service

import (
	"context"
	"fmt"

	"checkout-core/internal/model"
	"checkout-core/internal/repository"

	"github.com/rs/zerolog"
)

// lookupService implements LookupService.
type lookupService struct {
	verification VerificationService
	orderRepo    repository.OrderRepository
	logger       zerolog.Logger
}

// NewLookupService creates a new guest order lookup service.
func NewLookupService(
	verification VerificationService,
	orderRepo repository.OrderRepository,
	logger zerolog.Logger,
) LookupService {
	return &lookupService{
		verification: verification,
		orderRepo:    orderRepo,
		logger:       logger.With().Str("service", "lookup").Logger(),
	}
}

// OrdersForToken returns the orders belonging to the email bound to a valid
// lookup token. The email is taken from the token exchange only; a
// client-supplied email is never trusted here.
func (s *lookupService) OrdersForToken(ctx context.Context, token string) ([]model.Order, error) {
	email, err := s.verification.RequireValidToken(ctx, token)
	if err != nil {
		return nil, err
	}

	orders, err := s.orderRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up orders: %w", err)
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("guest order lookup served")

	return orders, nil
}
