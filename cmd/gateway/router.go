package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/vault_gateway/internal/auth"
	svcerrors "github.com/R3E-Network/vault_gateway/internal/errors"
	"github.com/R3E-Network/vault_gateway/internal/httputil"
	"github.com/R3E-Network/vault_gateway/internal/metrics"
	"github.com/R3E-Network/vault_gateway/internal/middleware"
	"github.com/R3E-Network/vault_gateway/internal/wallet"
)

// =============================================================================
// Router
// =============================================================================

func newRouter(d *dependencies, corsOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteServiceError(w, svcerrors.NotFound("Route"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
	})

	r.Use(middleware.NewTracingMiddleware(d.logger).Handler)
	r.Use(middleware.RecoveryMiddleware(d.logger))
	r.Use(middleware.MetricsMiddleware())

	r.HandleFunc("/health", healthHandler(d)).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	r.Use(d.clientIP.Handler)
	r.Use(apiOnly(d.authMiddleware.Optional))
	r.Use(apiOnly(d.rateLimiter.Handler))

	d.jupiter.RegisterRoutes(r)
	wallet.NewHandler(d.walletStore, d.logger).RegisterRoutes(r, d.authMiddleware)
	auth.RegisterRoutes(r, d.authClient, d.authMiddleware, d.logger)

	return middleware.NewCORSMiddleware(corsOrigins)(r)
}

// apiOnly applies mw to /api routes and leaves probes and metrics alone.
func apiOnly(mw mux.MiddlewareFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// Health
// =============================================================================

func healthHandler(d *dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "healthy",
			"service":      "gateway",
			"wallet_store": d.walletStoreMode,
			"token_store":  d.tokenStoreMode,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
	}
}
