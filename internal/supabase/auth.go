// Package supabase provides the GoTrue auth client used to delegate session
// management to the managed auth backend.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/R3E-Network/vault_gateway/internal/httputil"
)

// ErrNotConfigured is returned when SUPABASE_URL is missing.
var ErrNotConfigured = errors.New("supabase auth is not configured")

// User represents an authenticated Supabase user.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email,omitempty"`
	Phone        string                 `json:"phone,omitempty"`
	Role         string                 `json:"role,omitempty"`
	Aud          string                 `json:"aud,omitempty"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt    string                 `json:"created_at,omitempty"`
	LastSignInAt string                 `json:"last_sign_in_at,omitempty"`
}

// Session is the token pair returned by GoTrue.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Config holds Supabase auth configuration.
type Config struct {
	URL       string
	AnonKey   string
	JWTSecret string
	Timeout   time.Duration
	// HTTPClient overrides the default client; used by tests.
	HTTPClient *http.Client
}

// AuthClient talks to the GoTrue REST API.
type AuthClient struct {
	cfg    Config
	client *httputil.Client
}

// NewAuthClient creates an auth client. A missing URL yields a client whose
// network calls return ErrNotConfigured; local JWT verification still works.
func NewAuthClient(cfg Config) *AuthClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &AuthClient{
		cfg: cfg,
		client: httputil.NewClient(httputil.ClientConfig{
			Target:     "supabase_auth",
			BaseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
			Timeout:    timeout,
			HTTPClient: cfg.HTTPClient,
			Headers:    map[string]string{"apikey": cfg.AnonKey},
		}),
	}
}

// RefreshSession exchanges a refresh token for a new session.
func (a *AuthClient) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if a.cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	body, err := a.client.Do(ctx, http.MethodPost, "/token",
		url.Values{"grant_type": {"refresh_token"}},
		map[string]string{"refresh_token": refreshToken}, nil)
	if err != nil {
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.AccessToken == "" {
		return nil, fmt.Errorf("decode session: missing access_token")
	}
	if session.ExpiresAt == 0 && session.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(session.ExpiresIn) * time.Second).Unix()
	}
	return &session, nil
}

// Logout revokes the session behind accessToken.
func (a *AuthClient) Logout(ctx context.Context, accessToken string) error {
	if a.cfg.URL == "" {
		return ErrNotConfigured
	}
	_, err := a.client.Do(ctx, http.MethodPost, "/logout", nil, nil,
		map[string]string{"Authorization": "Bearer " + accessToken})
	return err
}

// GetUser resolves the user behind accessToken via GoTrue.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if a.cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	body, err := a.client.Do(ctx, http.MethodGet, "/user", nil, nil,
		map[string]string{"Authorization": "Bearer " + accessToken})
	if err != nil {
		return nil, err
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return nil, fmt.Errorf("decode user: missing id")
	}
	return &user, nil
}

// VerifyToken validates an access token. Local verification with the JWT
// secret is preferred; the GoTrue user endpoint is the fallback.
func (a *AuthClient) VerifyToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if a.cfg.JWTSecret != "" {
		if user, err := a.verifyLocal(token); err == nil {
			return user, nil
		}
	}
	return a.GetUser(ctx, token)
}

func (a *AuthClient) verifyLocal(token string) (*User, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt parse: %w", err)
	}
	if !parsed.Valid {
		return nil, fmt.Errorf("jwt invalid")
	}

	user := &User{
		ID:           stringClaim(claims, "sub"),
		Email:        stringClaim(claims, "email"),
		Phone:        stringClaim(claims, "phone"),
		Role:         stringClaim(claims, "role"),
		AppMetadata:  mapClaim(claims, "app_metadata"),
		UserMetadata: mapClaim(claims, "user_metadata"),
	}
	if aud, err := claims.GetAudience(); err == nil && len(aud) > 0 {
		user.Aud = aud[0]
	}
	if user.ID == "" {
		return nil, fmt.Errorf("jwt missing sub")
	}
	return user, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if s, ok := claims[key].(string); ok {
		return s
	}
	return ""
}

func mapClaim(claims jwt.MapClaims, key string) map[string]interface{} {
	if m, ok := claims[key].(map[string]interface{}); ok {
		return m
	}
	return nil
}
