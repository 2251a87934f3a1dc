package model

import "fmt"

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON   = "INVALID_JSON"
	ErrCodeMissingField  = "MISSING_FIELD"
	ErrCodeUnauthorised  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"

	ErrCodeLoginRequired         = "LOGIN_REQUIRED"
	ErrCodeCouponNotFound        = "COUPON_NOT_FOUND"
	ErrCodeCouponNotActive       = "COUPON_NOT_ACTIVE"
	ErrCodeCouponNotYetValid     = "COUPON_NOT_YET_VALID"
	ErrCodeCouponExpired         = "COUPON_EXPIRED"
	ErrCodeUsageLimitExceeded    = "USAGE_LIMIT_EXCEEDED"
	ErrCodeMinimumPurchase       = "MINIMUM_PURCHASE_NOT_MET"
	ErrCodeCouponAlreadyUsed     = "COUPON_ALREADY_USED"
	ErrCodeCouponAlreadyApplied  = "COUPON_ALREADY_APPLIED"
	ErrCodeUsageNotFound         = "USAGE_NOT_FOUND"
	ErrCodeCannotRemoveUsed      = "CANNOT_REMOVE_USED"
	ErrCodeInvalidCartTotal      = "INVALID_CART_TOTAL"

	ErrCodeEmailRequired    = "EMAIL_REQUIRED"
	ErrCodeEmailInvalid     = "EMAIL_INVALID"
	ErrCodeResendTooSoon    = "RESEND_TOO_SOON"
	ErrCodeNoActiveSession  = "NO_ACTIVE_SESSION"
	ErrCodeVerifyExpired    = "CODE_EXPIRED"
	ErrCodeTooManyAttempts  = "TOO_MANY_ATTEMPTS"
	ErrCodeCodeRequired     = "CODE_REQUIRED"
	ErrCodeInvalidCode      = "INVALID_CODE"
	ErrCodeTokenMissing     = "TOKEN_MISSING"
	ErrCodeTokenInvalid     = "TOKEN_INVALID"
	ErrCodeTokenExpired     = "TOKEN_EXPIRED"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string

	// RetryAfterSeconds carries the wait duration for rate-limit errors.
	// Zero for all other error kinds.
	RetryAfterSeconds int
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewResendTooSoonError creates a rate-limit error carrying the number of
// seconds the caller must wait before requesting another code.
func NewResendTooSoonError(seconds int) *DomainError {
	return &DomainError{
		Code:              ErrCodeResendTooSoon,
		Message:           fmt.Sprintf("A verification code was sent recently, retry in %d seconds", seconds),
		RetryAfterSeconds: seconds,
	}
}

// Common domain errors
var (
	ErrLoginRequired        = NewDomainError(ErrCodeLoginRequired, "Sign in to use a coupon")
	ErrCouponNotFound       = NewDomainError(ErrCodeCouponNotFound, "Coupon code not found")
	ErrCouponNotActive      = NewDomainError(ErrCodeCouponNotActive, "Coupon is not active")
	ErrCouponNotYetValid    = NewDomainError(ErrCodeCouponNotYetValid, "Coupon is not valid yet")
	ErrCouponExpired        = NewDomainError(ErrCodeCouponExpired, "Coupon has expired")
	ErrUsageLimitExceeded   = NewDomainError(ErrCodeUsageLimitExceeded, "Coupon usage limit has been reached")
	ErrMinimumPurchase      = NewDomainError(ErrCodeMinimumPurchase, "Cart total does not meet the coupon minimum purchase amount")
	ErrCouponAlreadyUsed    = NewDomainError(ErrCodeCouponAlreadyUsed, "Coupon has already been used")
	ErrCouponAlreadyApplied = NewDomainError(ErrCodeCouponAlreadyApplied, "Coupon is already applied to the cart")
	ErrUsageNotFound        = NewDomainError(ErrCodeUsageNotFound, "Coupon usage not found")
	ErrCannotRemoveUsed     = NewDomainError(ErrCodeCannotRemoveUsed, "A used coupon cannot be removed")
	ErrInvalidCartTotal     = NewDomainError(ErrCodeInvalidCartTotal, "Cart total must be greater than zero")

	ErrEmailRequired   = NewDomainError(ErrCodeEmailRequired, "Email address is required")
	ErrEmailInvalid    = NewDomainError(ErrCodeEmailInvalid, "Email address is not valid")
	ErrNoActiveSession = NewDomainError(ErrCodeNoActiveSession, "No verification in progress for this email")
	ErrVerifyExpired   = NewDomainError(ErrCodeVerifyExpired, "Verification code has expired, request a new one")
	ErrTooManyAttempts = NewDomainError(ErrCodeTooManyAttempts, "Too many failed attempts, request a new code")
	ErrCodeBlank       = NewDomainError(ErrCodeCodeRequired, "Verification code is required")
	ErrInvalidCode     = NewDomainError(ErrCodeInvalidCode, "Verification code is incorrect")
	ErrTokenMissing    = NewDomainError(ErrCodeTokenMissing, "Lookup token is required")
	ErrTokenInvalid    = NewDomainError(ErrCodeTokenInvalid, "Lookup token is not valid")
	ErrTokenExpired    = NewDomainError(ErrCodeTokenExpired, "Lookup token has expired, verify your email again")
)
