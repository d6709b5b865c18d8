package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/vault_gateway/internal/database"
	"github.com/R3E-Network/vault_gateway/internal/jupiter"
	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/middleware"
	"github.com/R3E-Network/vault_gateway/internal/supabase"
	"github.com/R3E-Network/vault_gateway/internal/tokenstore"
)

type memoryWalletStore struct {
	rows []*database.WalletConnection
}

func (m *memoryWalletStore) InsertWalletConnection(_ context.Context, conn *database.WalletConnection) (*database.WalletConnection, error) {
	m.rows = append(m.rows, conn)
	return conn, nil
}

func newTestRouter(t *testing.T, store database.WalletConnectionStore) (http.Handler, *int) {
	t.Helper()
	d, calls := newTestDeps(t, store)
	return newRouter(d, []string{"http://localhost:3000"}), calls
}

func newTestDeps(t *testing.T, store database.WalletConnectionStore) (*dependencies, *int) {
	t.Helper()
	upstreamCalls := 0
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls++
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tokens/v2/tag":
			_, _ = w.Write([]byte(`[{"id":"So11111111111111111111111111111111111111112","symbol":"SOL","name":"Wrapped SOL","decimals":9,"isVerified":true}]`))
		case "/ultra/v1/order":
			_, _ = w.Write([]byte(`{"requestId":"req-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(upstream.Close)

	logger := logging.NewNop()
	jup := jupiter.NewClient(jupiter.Config{BaseURL: upstream.URL})
	authClient := supabase.NewAuthClient(supabase.Config{JWTSecret: "test-secret"})
	d := &dependencies{
		logger:          logger,
		jupiter:         jupiter.NewHandler(jup, jupiter.NewCache(jup, tokenstore.NewMemoryStore(), 0, logger), logger),
		authClient:      authClient,
		authMiddleware:  middleware.NewAuthMiddleware(authClient, logger),
		walletStore:     store,
		rateLimiter:     middleware.NewRateLimiter(100, 100, logger),
		clientIP:        &middleware.ClientIPResolver{},
		walletStoreMode: "memory",
		tokenStoreMode:  "memory",
	}
	return d, &upstreamCalls
}

func signedToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t, &memoryWalletStore{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t, &memoryWalletStore{})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestRouter_NotFoundIsJSON(t *testing.T) {
	router, _ := newTestRouter(t, &memoryWalletStore{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":false`)
}

func TestRouter_JupiterRoutes(t *testing.T) {
	router, calls := newTestRouter(t, &memoryWalletStore{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jupiter/order?inputMint=a", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 0, *calls)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jupiter/order?inputMint=a&outputMint=b&amount=10", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "req-1")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jupiter/tokens/basic?symbols=sol", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"symbol":"SOL"`)
}

func TestRouter_WalletConnect(t *testing.T) {
	store := &memoryWalletStore{}
	router, _ := newTestRouter(t, store)

	body := `{"walletAddress":"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM","timestamp":"2026-01-02T03:04:05Z","walletType":"phantom"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/wallet/connect", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, store.rows, 1)
	assert.Nil(t, store.rows[0].UserID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/wallet/connect", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_WalletConnectWithoutStore(t *testing.T) {
	router, _ := newTestRouter(t, unconfiguredStore{})

	body := `{"walletAddress":"9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM","timestamp":"2026-01-02T03:04:05Z"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/wallet/connect", strings.NewReader(body)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to record wallet connection")
}

func TestRouter_AuthMeRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t, &memoryWalletStore{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouter_CORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, &memoryWalletStore{})

	req := httptest.NewRequest(http.MethodOptions, "/api/wallet/connect", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RateLimitIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	d, _ := newTestDeps(t, &memoryWalletStore{})
	d.rateLimiter = middleware.NewRateLimiter(1, 1, d.logger)
	router := newRouter(d, nil)

	allowed := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/jupiter/order?inputMint=a", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusTooManyRequests {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestRouter_RateLimitKeyedByUser(t *testing.T) {
	d, _ := newTestDeps(t, &memoryWalletStore{})
	d.rateLimiter = middleware.NewRateLimiter(1, 1, d.logger)
	router := newRouter(d, nil)

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.RemoteAddr = "198.51.100.9:4000"
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	alice := signedToken(t, "user-alice")
	bob := signedToken(t, "user-bob")

	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	// Same socket peer, different user: separate bucket.
	assert.Equal(t, http.StatusOK, send(bob))
	// Anonymous requests from that peer use the address bucket.
	assert.Equal(t, http.StatusUnauthorized, send(""))
}
