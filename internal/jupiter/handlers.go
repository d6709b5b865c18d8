package jupiter

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/mux"

	svcerrors "github.com/R3E-Network/vault_gateway/internal/errors"
	"github.com/R3E-Network/vault_gateway/internal/httputil"
	"github.com/R3E-Network/vault_gateway/internal/logging"
)

const (
	defaultPageLimit   = 50
	maxPageLimit       = 250
	defaultSearchLimit = 20
)

// DefaultBasicSymbols is served by /tokens/basic when no symbols are given.
var DefaultBasicSymbols = []string{"SOL", "USDC", "USDT", "JUP", "BONK", "WIF", "RAY", "JTO", "PYTH", "mSOL"}

// Upstream is the swap half of the aggregator API.
type Upstream interface {
	Order(ctx context.Context, params url.Values) (json.RawMessage, error)
	Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error)
}

// Handler serves the /api/jupiter routes.
type Handler struct {
	upstream Upstream
	cache    *Cache
	logger   *logging.Logger
}

// NewHandler creates the aggregator proxy handler.
func NewHandler(upstream Upstream, cache *Cache, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{upstream: upstream, cache: cache, logger: logger}
}

// =============================================================================
// Routes
// =============================================================================

// RegisterRoutes mounts the handler under /api/jupiter. Token listings are
// gzip compressed.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	router := r.PathPrefix("/api/jupiter").Subrouter()
	router.HandleFunc("/order", h.handleOrder).Methods("GET")
	router.HandleFunc("/execute", h.handleExecute).Methods("POST")
	router.Handle("/tokens", gziphandler.GzipHandler(http.HandlerFunc(h.handleTokens))).Methods("GET")
	router.Handle("/tokens/basic", gziphandler.GzipHandler(http.HandlerFunc(h.handleBasicTokens))).Methods("GET")
	router.Handle("/tokens/search", gziphandler.GzipHandler(http.HandlerFunc(h.handleSearchTokens))).Methods("GET")
}

// =============================================================================
// Swap proxy
// =============================================================================

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("inputMint") == "" || q.Get("outputMint") == "" || q.Get("amount") == "" {
		httputil.BadRequest(w, "Missing required parameters: inputMint, outputMint, amount")
		return
	}
	if amount, err := strconv.ParseUint(q.Get("amount"), 10, 64); err != nil || amount == 0 {
		httputil.BadRequest(w, "amount must be a positive integer")
		return
	}

	body, err := h.upstream.Order(r.Context(), q)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("jupiter order failed")
		httputil.WriteServiceError(w, svcerrors.Internal("Failed to get order", err))
		return
	}
	httputil.WriteRawJSON(w, http.StatusOK, body)
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.SignedTransaction == "" || req.RequestID == "" {
		httputil.BadRequest(w, "Missing required parameters: signedTransaction, requestId")
		return
	}

	body, err := h.upstream.Execute(r.Context(), req)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("jupiter execute failed")
		httputil.WriteServiceError(w, svcerrors.Internal("Failed to execute swap", err))
		return
	}
	httputil.WriteRawJSON(w, http.StatusOK, body)
}

// =============================================================================
// Token listing
// =============================================================================

// tokensResponse is the paginated listing body.
type tokensResponse struct {
	Success     bool      `json:"success"`
	Tokens      []Token   `json:"tokens"`
	Total       int       `json:"total"`
	Page        int       `json:"page"`
	Limit       int       `json:"limit"`
	TotalPages  int       `json:"totalPages"`
	Cached      bool      `json:"cached"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (h *Handler) handleTokens(w http.ResponseWriter, r *http.Request) {
	page, ok := positiveIntParam(w, r, "page", 1, 0)
	if !ok {
		return
	}
	limit, ok := positiveIntParam(w, r, "limit", defaultPageLimit, maxPageLimit)
	if !ok {
		return
	}

	snap, cached, err := h.cache.Get(r.Context())
	if err != nil {
		h.writeFetchError(w, r, err)
		return
	}

	total := len(snap.Tokens)
	httputil.WriteJSON(w, http.StatusOK, tokensResponse{
		Success:     true,
		Tokens:      Paginate(snap.Tokens, page, limit),
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
		Cached:      cached,
		LastUpdated: snap.FetchedAt,
	})
}

func (h *Handler) handleBasicTokens(w http.ResponseWriter, r *http.Request) {
	symbols := DefaultBasicSymbols
	if raw := strings.TrimSpace(r.URL.Query().Get("symbols")); raw != "" {
		symbols = splitSymbols(raw)
	}

	snap, cached, err := h.cache.Get(r.Context())
	if err != nil {
		h.writeFetchError(w, r, err)
		return
	}

	tokens := FilterBySymbols(snap.Tokens, symbols)
	if len(tokens) == 0 {
		httputil.WriteServiceError(w, svcerrors.Upstream("No tokens found for requested symbols", nil).
			WithDetails("reason", strings.Join(symbols, ",")))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"tokens":      tokens,
		"count":       len(tokens),
		"cached":      cached,
		"lastUpdated": snap.FetchedAt,
	})
}

func (h *Handler) handleSearchTokens(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		httputil.BadRequest(w, "Missing required parameter: query")
		return
	}
	limit, ok := positiveIntParam(w, r, "limit", defaultSearchLimit, maxPageLimit)
	if !ok {
		return
	}

	snap, cached, err := h.cache.Get(r.Context())
	if err != nil {
		h.writeFetchError(w, r, err)
		return
	}

	tokens := Search(snap.Tokens, query, limit)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"query":   query,
		"tokens":  tokens,
		"count":   len(tokens),
		"cached":  cached,
	})
}

func (h *Handler) writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WithContext(r.Context()).WithError(err).Error("token list fetch failed")
	httputil.WriteServiceError(w, svcerrors.Upstream("Failed to fetch tokens", err))
}

// positiveIntParam parses an optional query parameter that must be >= 1.
// With ceiling > 0, larger values are rejected.
func positiveIntParam(w http.ResponseWriter, r *http.Request, name string, def, ceiling int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		httputil.BadRequest(w, name+" must be a positive integer")
		return 0, false
	}
	if ceiling > 0 && v > ceiling {
		httputil.BadRequest(w, name+" must be at most "+strconv.Itoa(ceiling))
		return 0, false
	}
	return v, true
}

// =============================================================================
// Listing helpers
// =============================================================================

// Paginate returns the page-th slice of size limit (1-based). Out of range
// pages are empty.
func Paginate(tokens []Token, page, limit int) []Token {
	if page < 1 || limit < 1 {
		return []Token{}
	}
	// Compare page counts before multiplying so huge pages cannot overflow.
	if page-1 >= (len(tokens)+limit-1)/limit {
		return []Token{}
	}
	start := (page - 1) * limit
	end := start + limit
	if end > len(tokens) {
		end = len(tokens)
	}
	return tokens[start:end]
}

// FilterBySymbols returns, for each requested symbol in order, the first
// verified token with that symbol. Matching is case-insensitive.
func FilterBySymbols(tokens []Token, symbols []string) []Token {
	bySymbol := make(map[string]Token, len(symbols))
	for _, tok := range tokens {
		if !tok.Verified {
			continue
		}
		key := strings.ToUpper(tok.Symbol)
		if _, seen := bySymbol[key]; !seen {
			bySymbol[key] = tok
		}
	}

	out := make([]Token, 0, len(symbols))
	added := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		key := strings.ToUpper(sym)
		if added[key] {
			continue
		}
		if tok, ok := bySymbol[key]; ok {
			out = append(out, tok)
			added[key] = true
		}
	}
	return out
}

// Search matches query against symbol and name (substring, case-insensitive)
// or the exact address.
func Search(tokens []Token, query string, limit int) []Token {
	q := strings.ToLower(query)
	out := make([]Token, 0)
	for _, tok := range tokens {
		if len(out) >= limit {
			break
		}
		if tok.Address == query ||
			strings.Contains(strings.ToLower(tok.Symbol), q) ||
			strings.Contains(strings.ToLower(tok.Name), q) {
			out = append(out, tok)
		}
	}
	return out
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
