// Package auth delegates session management to Supabase GoTrue.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	svcerrors "github.com/R3E-Network/vault_gateway/internal/errors"
	"github.com/R3E-Network/vault_gateway/internal/httputil"
	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/middleware"
	"github.com/R3E-Network/vault_gateway/internal/supabase"
)

// SessionService is the GoTrue surface the handlers need.
type SessionService interface {
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// RegisterRoutes mounts /api/auth/{refresh,logout,me}.
func RegisterRoutes(r *mux.Router, sessions SessionService, authMW *middleware.AuthMiddleware, logger *logging.Logger) {
	if logger == nil {
		logger = logging.NewNop()
	}
	router := r.PathPrefix("/api/auth").Subrouter()
	router.HandleFunc("/refresh", refreshHandler(sessions, logger)).Methods("POST")
	router.HandleFunc("/logout", logoutHandler(sessions, logger)).Methods("POST")
	router.Handle("/me", authMW.Required(meHandler())).Methods("GET")
}

// =============================================================================
// Auth Handlers
// =============================================================================

func refreshHandler(sessions SessionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken      string `json:"refresh_token"`
			RefreshTokenCamel string `json:"refreshToken"`
		}
		if !httputil.DecodeJSON(w, r, &req) {
			return
		}
		token := strings.TrimSpace(req.RefreshToken)
		if token == "" {
			token = strings.TrimSpace(req.RefreshTokenCamel)
		}
		if token == "" {
			httputil.BadRequest(w, "Missing required field: refresh_token")
			return
		}

		session, err := sessions.RefreshSession(r.Context(), token)
		if err != nil {
			se := refreshFailure(err)
			logger.WithContext(r.Context()).WithError(err).WithField("status", se.HTTPStatus).Warn("session refresh failed")
			httputil.WriteServiceError(w, se)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"session": session,
		})
	}
}

// refreshFailure maps GoTrue rejections (4xx) to 401 and anything else to 502.
func refreshFailure(err error) *svcerrors.ServiceError {
	var upstreamErr *httputil.UpstreamError
	if errors.As(err, &upstreamErr) && upstreamErr.StatusCode >= 400 && upstreamErr.StatusCode < 500 {
		return svcerrors.InvalidToken("Invalid or expired refresh token", err)
	}
	return svcerrors.Upstream("Failed to refresh session", err)
}

func logoutHandler(sessions SessionService, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		switch {
		case token == "":
			logger.WithContext(r.Context()).Debug("logout without bearer token")
		default:
			if err := sessions.Logout(r.Context(), token); err != nil {
				logger.WithContext(r.Context()).WithError(err).Warn("upstream logout failed")
			}
		}

		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Logged out",
		})
	}
}

func meHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			httputil.Unauthorized(w, "")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"user":    user,
		})
	}
}
