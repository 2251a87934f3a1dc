package router

import (
	"net/http"

	"checkout-core/internal/handler"
	"checkout-core/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	couponHandler *handler.CouponHandler,
	lookupHandler *handler.LookupHandler,
	apiKey string,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware in order: Recovery -> Logging -> CORS -> APIKeyAuth
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)
	r.Use(middleware.APIKeyAuth(apiKey, logger))

	// Health check endpoint (no authentication required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/api/coupons", func(r chi.Router) {
		r.Get("/", couponHandler.List)
		r.Get("/pending", couponHandler.Pending)
		r.Post("/apply", couponHandler.Apply)
		r.Post("/usages/{id}/confirm", couponHandler.Confirm)
		r.Delete("/usages/{id}", couponHandler.Remove)
	})

	// Guest routes: no API key, authenticated by code / lookup token
	r.Route("/api/lookup", func(r chi.Router) {
		r.Post("/code", lookupHandler.SendCode)
		r.Post("/verify", lookupHandler.VerifyCode)
		r.Get("/orders", lookupHandler.Orders)
	})

	return r
}
