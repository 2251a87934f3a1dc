package handler

import (
	"encoding/json"
	"net/http"

	"checkout-core/internal/model"
	"checkout-core/internal/service"

	"github.com/rs/zerolog"
)

// lookupTokenHeader carries the token issued by a successful verification.
const lookupTokenHeader = "X-Lookup-Token"

// LookupHandler handles guest order lookup HTTP requests.
type LookupHandler struct {
	verification service.VerificationService
	lookup       service.LookupService
	logger       zerolog.Logger
}

// NewLookupHandler creates a new lookup handler.
func NewLookupHandler(
	verification service.VerificationService,
	lookup service.LookupService,
	logger zerolog.Logger,
) *LookupHandler {
	return &LookupHandler{
		verification: verification,
		lookup:       lookup,
		logger:       logger.With().Str("handler", "lookup").Logger(),
	}
}

// SendCode handles POST /api/lookup/code requests. The response is 202
// whether or not a mailbox exists behind the address; delivery is async.
func (h *LookupHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req model.SendCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	if err := h.verification.SendCode(r.Context(), req.Email); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// VerifyCode handles POST /api/lookup/verify requests, exchanging a valid
// code for a lookup token.
func (h *LookupHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req model.VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	resp, err := h.verification.VerifyCode(r.Context(), req.Email, req.Code)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Orders handles GET /api/lookup/orders requests authenticated by the
// X-Lookup-Token header.
func (h *LookupHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.lookup.OrdersForToken(r.Context(), r.Header.Get(lookupTokenHeader))
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	if orders == nil {
		orders = []model.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}
