package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	svcerrors "github.com/R3E-Network/vault_gateway/internal/errors"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteRawJSON relays an already encoded JSON document.
func WriteRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError writes {success:false, error, details}.
func WriteError(w http.ResponseWriter, status int, message, details string) {
	WriteJSON(w, status, ErrorBody{Success: false, Error: message, Details: details})
}

// WriteServiceError maps err onto its HTTP status. Unknown errors become 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	se := svcerrors.GetServiceError(err)
	if se == nil {
		se = svcerrors.Internal("Internal server error", err)
	}
	WriteError(w, se.HTTPStatus, se.Message, se.DetailString())
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, message string) {
	WriteServiceError(w, svcerrors.BadRequest(message))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteServiceError(w, svcerrors.Unauthorized(message))
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteServiceError(w, svcerrors.Internal(message, nil))
}

// DecodeJSON decodes the request body into dst, writing a 400 on failure.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body == nil {
		BadRequest(w, "Request body is required")
		return false
	}
	body, err := ReadAllStrict(r.Body, maxRequestBodyBytes)
	if err != nil {
		BadRequest(w, "Request body too large")
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		BadRequest(w, "Request body is required")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		BadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

const maxRequestBodyBytes = 1 << 20
