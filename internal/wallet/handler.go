package wallet

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/R3E-Network/vault_gateway/internal/database"
	svcerrors "github.com/R3E-Network/vault_gateway/internal/errors"
	"github.com/R3E-Network/vault_gateway/internal/httputil"
	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/middleware"
)

const maxUserAgentLen = 512

// ConnectRequest is the body of POST /api/wallet/connect.
type ConnectRequest struct {
	WalletAddress string `json:"walletAddress"`
	Timestamp     string `json:"timestamp"`
	WalletType    string `json:"walletType,omitempty"`
}

// ConnectData is returned on success.
type ConnectData struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"walletAddress"`
	ConnectedAt   time.Time `json:"connectedAt"`
}

// Handler serves the wallet routes.
type Handler struct {
	store  database.WalletConnectionStore
	logger *logging.Logger
}

// NewHandler creates the wallet handler.
func NewHandler(store database.WalletConnectionStore, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes mounts /api/wallet/connect behind optional auth.
func (h *Handler) RegisterRoutes(r *mux.Router, auth *middleware.AuthMiddleware) {
	router := r.PathPrefix("/api/wallet").Subrouter()
	router.Handle("/connect", auth.Optional(http.HandlerFunc(h.handleConnect))).Methods("POST")
}

func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if req.WalletAddress == "" || req.Timestamp == "" {
		httputil.BadRequest(w, "Missing required fields: walletAddress, timestamp")
		return
	}
	if err := ValidateAddress(req.WalletAddress); err != nil {
		httputil.WriteServiceError(w, svcerrors.BadRequest("Invalid wallet address").WithCause(err))
		return
	}
	connectedAt, err := ParseTimestamp(req.Timestamp)
	if err != nil {
		httputil.WriteServiceError(w, svcerrors.BadRequest("Invalid timestamp").WithCause(err))
		return
	}

	conn := &database.WalletConnection{
		ID:            uuid.NewString(),
		WalletAddress: req.WalletAddress,
		ConnectedAt:   connectedAt,
		WalletType:    optional(req.WalletType),
		UserAgent:     optional(truncate(r.UserAgent(), maxUserAgentLen)),
		IPAddress:     optional(middleware.ClientIP(r)),
	}
	if user := middleware.UserFromContext(r.Context()); user != nil {
		conn.UserID = optional(user.ID)
	}

	stored, err := h.store.InsertWalletConnection(r.Context(), conn)
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).
			WithField("wallet_address", conn.WalletAddress).
			Error("record wallet connection failed")
		httputil.WriteServiceError(w, svcerrors.Internal("Failed to record wallet connection", err))
		return
	}

	h.logger.WithContext(r.Context()).
		WithField("wallet_address", stored.WalletAddress).
		WithField("authenticated", conn.UserID != nil).
		Info("wallet connection recorded")

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Wallet connection recorded",
		"data": ConnectData{
			ID:            stored.ID,
			WalletAddress: stored.WalletAddress,
			ConnectedAt:   stored.ConnectedAt,
		},
	})
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// truncate caps s at n bytes without splitting a rune. Invalid UTF-8 is
// replaced so the value is always storable as text.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
