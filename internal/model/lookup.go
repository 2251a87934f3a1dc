package model

import (
	"time"

	"github.com/google/uuid"
)

// LookupSession tracks one-time-code issuance for guest order lookup,
// keyed by normalised email (one row per email). Only the hash of a code
// is ever stored. The row persists indefinitely as a rate-limit record.
type LookupSession struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	CodeHash       *string    `json:"-" db:"code_hash"`
	CodeExpiresAt  *time.Time `json:"-" db:"code_expires_at"`
	LastCodeSentAt *time.Time `json:"-" db:"last_code_sent_at"`
	AttemptCount   int        `json:"-" db:"attempt_count"`
	SendCount      int        `json:"-" db:"send_count"`
	AccessToken    *string    `json:"-" db:"access_token"`
	TokenExpiresAt *time.Time `json:"-" db:"token_expires_at"`
	CreatedAt      time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" db:"updated_at"`
}

// SendCodeRequest represents the request payload for requesting a
// verification code.
type SendCodeRequest struct {
	Email string `json:"email"`
}

// VerifyCodeRequest represents the request payload for verifying a code.
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCodeResponse carries the lookup token issued on successful
// verification.
type VerifyCodeResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
