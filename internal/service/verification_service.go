package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"checkout-core/internal/model"
	"checkout-core/internal/repository"

	mailer "checkout-core/internal/mail"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// VerificationConfig holds tuning knobs for the verification flow. The
// defaults match the documented behaviour; deployments can loosen or
// tighten them per environment.
type VerificationConfig struct {
	// ResendInterval is the minimum wait between two codes for one email.
	ResendInterval time.Duration

	// CodeTTL is how long an issued code stays verifiable.
	CodeTTL time.Duration

	// TokenTTL is how long a lookup token stays valid after verification.
	TokenTTL time.Duration

	// MaxAttempts caps failed code submissions before a new code is required.
	MaxAttempts int

	// BcryptCost tunes code hashing; zero selects the bcrypt default.
	BcryptCost int

	// MailTimeout bounds the fire-and-forget dispatch of the code email.
	MailTimeout time.Duration

	// Now is the time source; defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// DefaultVerificationConfig returns the default verification configuration.
func DefaultVerificationConfig() *VerificationConfig {
	return &VerificationConfig{
		ResendInterval: 45 * time.Second,
		CodeTTL:        10 * time.Minute,
		TokenTTL:       30 * time.Minute,
		MaxAttempts:    5,
		BcryptCost:     bcrypt.DefaultCost,
		MailTimeout:    10 * time.Second,
	}
}

// verificationService implements VerificationService.
type verificationService struct {
	repo   repository.LookupSessionRepository
	mailer mailer.Mailer
	cfg    VerificationConfig
	nowFn  func() time.Time
	logger zerolog.Logger
}

// NewVerificationService creates a new verification service.
func NewVerificationService(
	repo repository.LookupSessionRepository,
	m mailer.Mailer,
	cfg *VerificationConfig,
	logger zerolog.Logger,
) VerificationService {
	if cfg == nil {
		cfg = DefaultVerificationConfig()
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	return &verificationService{
		repo:   repo,
		mailer: m,
		cfg:    *cfg,
		nowFn:  nowFn,
		logger: logger.With().Str("service", "verification").Logger(),
	}
}

// normalizeEmail canonicalises an email for use as the session key.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", model.ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", model.ErrEmailInvalid
	}
	return email, nil
}

// generateCode produces a uniform 6-digit numeric code from a
// cryptographically secure source.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// generateToken produces an opaque, unguessable lookup token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate lookup token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SendCode issues a one-time code to the given email. The plaintext code
// exists only in the outbound email; storage holds its bcrypt hash.
func (s *verificationService) SendCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	now := s.nowFn().UTC()

	session, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}

	if session != nil && session.LastCodeSentAt != nil {
		elapsed := now.Sub(*session.LastCodeSentAt)
		if elapsed < s.cfg.ResendInterval {
			remaining := int((s.cfg.ResendInterval - elapsed + time.Second - 1) / time.Second)
			s.logger.Warn().Int("retry_after_seconds", remaining).Msg("verification code resend throttled")
			return model.NewResendTooSoonError(remaining)
		}
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash verification code: %w", err)
	}

	if err := s.repo.SaveCode(ctx, email, string(hash), now.Add(s.cfg.CodeTTL), now); err != nil {
		return err
	}

	s.logger.Info().Int("send_count_delta", 1).Msg("verification code issued")

	// Fire-and-forget: delivery failure must not undo the persisted session
	// state, and issuance does not wait on the relay.
	go s.dispatchCode(email, code)

	return nil
}

// dispatchCode sends the code email on its own deadline, detached from the
// request that triggered it.
func (s *verificationService) dispatchCode(email, code string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.MailTimeout)
	defer cancel()

	msg := mailer.Message{
		To:      email,
		Subject: "Your order lookup code",
		HTMLBody: fmt.Sprintf(
			"<p>Your verification code is <strong>%s</strong>.</p><p>It expires in %d minutes.</p>",
			code, int(s.cfg.CodeTTL.Minutes())),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error().Err(err).Msg("failed to dispatch verification code email")
	}
}

// VerifyCode checks a submitted code and exchanges it for a lookup token.
func (s *verificationService) VerifyCode(ctx context.Context, email, code string) (*model.VerifyCodeResponse, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	now := s.nowFn().UTC()

	session, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to verify code: %w", err)
	}
	if session == nil {
		return nil, model.ErrNoActiveSession
	}

	if session.CodeHash == nil || session.CodeExpiresAt == nil || now.After(*session.CodeExpiresAt) {
		return nil, model.ErrVerifyExpired
	}

	// checked before the attempt is evaluated, and the counter stops here:
	// guesses past the cap accrue nothing further
	if session.AttemptCount >= s.cfg.MaxAttempts {
		s.logger.Warn().Int("attempts", session.AttemptCount).Msg("verification attempt cap reached")
		return nil, model.ErrTooManyAttempts
	}

	if strings.TrimSpace(code) == "" {
		return nil, model.ErrCodeBlank
	}

	if bcrypt.CompareHashAndPassword([]byte(*session.CodeHash), []byte(code)) != nil {
		// the increment is committed even though the call fails, this is
		// how the attempt limit accrues
		if incErr := s.repo.IncrementAttempts(ctx, session.ID, now); incErr != nil {
			return nil, incErr
		}
		s.logger.Warn().Int("attempts", session.AttemptCount+1).Msg("verification code mismatch")
		return nil, model.ErrInvalidCode
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	expiresAt := now.Add(s.cfg.TokenTTL)
	if err := s.repo.SetToken(ctx, session.ID, token, expiresAt, now); err != nil {
		return nil, err
	}

	s.logger.Info().Msg("verification succeeded, lookup token issued")

	return &model.VerifyCodeResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// RequireValidToken resolves a lookup token to the email it proves control
// of. Expired tokens are cleared on first detection.
func (s *verificationService) RequireValidToken(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", model.ErrTokenMissing
	}

	now := s.nowFn().UTC()

	session, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to validate lookup token: %w", err)
	}
	if session == nil {
		return "", model.ErrTokenInvalid
	}

	if session.TokenExpiresAt == nil || now.After(*session.TokenExpiresAt) {
		// lazy invalidation so a replay of the expired token fails fast
		if clearErr := s.repo.ClearToken(ctx, session.ID, now); clearErr != nil {
			s.logger.Error().Err(clearErr).Msg("failed to clear expired lookup token")
		}
		return "", model.ErrTokenExpired
	}

	return session.Email, nil
}
