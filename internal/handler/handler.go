package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"checkout-core/internal/model"

	"github.com/rs/zerolog"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps a service error onto an HTTP response. Domain
// errors carry their code through to the client; anything else is reported
// as an opaque internal error.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		logger.Error().Err(err).Msg("unexpected handler error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  model.ErrCodeInternalError,
		})
		return
	}

	status := domainStatus(domainErr.Code)
	if domainErr.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(domainErr.RetryAfterSeconds))
	}

	logger.Warn().
		Str("code", domainErr.Code).
		Int("status", status).
		Msg("request rejected")

	writeJSON(w, status, ErrorResponse{
		Error:             domainErr.Message,
		Code:              domainErr.Code,
		RetryAfterSeconds: domainErr.RetryAfterSeconds,
	})
}

// domainStatus maps a domain error code to an HTTP status.
func domainStatus(code string) int {
	switch code {
	case model.ErrCodeLoginRequired,
		model.ErrCodeTokenMissing,
		model.ErrCodeTokenInvalid,
		model.ErrCodeTokenExpired,
		model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeCouponNotFound,
		model.ErrCodeUsageNotFound:
		return http.StatusNotFound
	case model.ErrCodeCouponAlreadyUsed,
		model.ErrCodeCouponAlreadyApplied,
		model.ErrCodeCannotRemoveUsed,
		model.ErrCodeUsageLimitExceeded:
		return http.StatusConflict
	case model.ErrCodeResendTooSoon,
		model.ErrCodeTooManyAttempts:
		return http.StatusTooManyRequests
	case model.ErrCodeInternalError:
		return http.StatusInternalServerError
	default:
		// validation and coupon gate failures
		return http.StatusBadRequest
	}
}
