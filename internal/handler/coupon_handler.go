package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"checkout-core/internal/model"
	"checkout-core/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// userIDHeader carries the authenticated user identity set by the gateway.
const userIDHeader = "X-User-ID"

// CouponHandler handles coupon-related HTTP requests.
type CouponHandler struct {
	service service.CouponService
	logger  zerolog.Logger
}

// NewCouponHandler creates a new coupon handler.
func NewCouponHandler(service service.CouponService, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		logger:  logger.With().Str("handler", "coupon").Logger(),
	}
}

// userID extracts the caller's user ID from the request. Zero means guest.
func userID(r *http.Request) int64 {
	raw := r.Header.Get(userIDHeader)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// List handles GET /api/coupons requests. An optional cartTotal query
// parameter narrows the listing to coupons the cart qualifies for.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	var cartTotal *decimal.Decimal
	if raw := r.URL.Query().Get("cartTotal"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsPositive() {
			writeDomainError(w, model.ErrInvalidCartTotal, h.logger)
			return
		}
		cartTotal = &parsed
	}

	coupons, err := h.service.ListRedeemable(r.Context(), cartTotal)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, coupons)
}

// Pending handles GET /api/coupons/pending requests, returning the
// caller's cart-applied coupon or 204 when none is applied.
func (h *CouponHandler) Pending(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == 0 {
		writeDomainError(w, model.ErrLoginRequired, h.logger)
		return
	}

	usage, err := h.service.PendingForUser(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	if usage == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}

// Apply handles POST /api/coupons/apply requests.
func (h *CouponHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req model.ApplyCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	usage, err := h.service.Apply(r.Context(), req.Code, req.CartTotal, userID(r))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, usage)
}

// Confirm handles POST /api/coupons/usages/{id}/confirm requests.
func (h *CouponHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	usageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid usage ID format", h.logger)
		return
	}

	var req model.ConfirmCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.OrderRef == uuid.Nil {
		writeError(w, http.StatusBadRequest, "orderRef is required", h.logger)
		return
	}

	usage, err := h.service.Confirm(r.Context(), usageID, req.OrderRef)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, usage)
}

// Remove handles DELETE /api/coupons/usages/{id} requests.
func (h *CouponHandler) Remove(w http.ResponseWriter, r *http.Request) {
	usageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid usage ID format", h.logger)
		return
	}

	if err := h.service.Remove(r.Context(), usageID); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
