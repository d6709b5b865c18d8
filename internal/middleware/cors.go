// Package middleware provides HTTP middleware for the gateway
package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// DefaultAllowedOrigins is used when CORS_ALLOWED_ORIGINS is empty.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// NewCORSMiddleware returns a CORS handler for the given origins. "*" allows
// any origin, in which case credentials are not allowed.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	origins := make([]string, 0, len(allowedOrigins))
	allowAll := false
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
		}
		origins = append(origins, o)
	}
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID"},
		AllowCredentials: !allowAll,
		MaxAge:           3600,
	})
	return c.Handler
}
