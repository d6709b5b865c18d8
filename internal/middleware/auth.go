// Package middleware provides HTTP middleware for the gateway
package middleware

import (
	"context"
	"net/http"

	svcerrors "github.com/R3E-Network/vault_gateway/internal/errors"
	"github.com/R3E-Network/vault_gateway/internal/httputil"
	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/supabase"
)

type contextKey string

const (
	userContextKey  contextKey = "supabase_user"
	tokenContextKey contextKey = "supabase_token"
)

// TokenVerifier resolves a bearer token to a user.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*supabase.User, error)
}

// AuthMiddleware authenticates requests against the managed auth backend.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *logging.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier TokenVerifier, logger *logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Optional attaches the user when a valid token is present. Missing or
// invalid tokens continue unauthenticated.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" || m.verifier == nil || alreadyVerified(r.Context(), token) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Debug("optional auth failed, continuing unauthenticated")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, token)))
	})
}

// Required rejects requests without a valid token.
func (m *AuthMiddleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := httputil.BearerToken(r)
		if token == "" {
			httputil.WriteServiceError(w, svcerrors.Unauthorized("Missing Authorization header"))
			return
		}
		if alreadyVerified(r.Context(), token) {
			next.ServeHTTP(w, r)
			return
		}
		if m.verifier == nil {
			httputil.WriteServiceError(w, svcerrors.Internal("Authentication is not configured", nil))
			return
		}

		user, err := m.verifier.VerifyToken(r.Context(), token)
		if err != nil {
			m.logger.LogSecurityEvent(r.Context(), "token_rejected", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			httputil.WriteServiceError(w, svcerrors.InvalidToken("", nil))
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, token)))
	})
}

// alreadyVerified reports whether an outer middleware attached a user for
// this exact token.
func alreadyVerified(ctx context.Context, token string) bool {
	return UserFromContext(ctx) != nil && TokenFromContext(ctx) == token
}

func withUser(ctx context.Context, user *supabase.User, token string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	ctx = context.WithValue(ctx, tokenContextKey, token)
	ctx = logging.WithUserID(ctx, user.ID)
	if user.Role != "" {
		ctx = context.WithValue(ctx, logging.RoleKey, user.Role)
	}
	return ctx
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *supabase.User {
	user, _ := ctx.Value(userContextKey).(*supabase.User)
	return user
}

// TokenFromContext returns the verified bearer token, or "".
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}
