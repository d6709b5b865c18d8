// Package middleware provides HTTP middleware for the gateway
package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
)

const clientIPContextKey contextKey = "client_ip"

// ClientIPResolver determines the client address of a request. The
// X-Forwarded-For header is honoured only when the socket peer is one of the
// trusted proxies; otherwise the peer address is used.
type ClientIPResolver struct {
	trusted []*net.IPNet
}

// NewClientIPResolver parses trusted proxy entries. Each entry is an IP or a
// CIDR block. An empty list trusts nobody.
func NewClientIPResolver(trustedProxies []string) (*ClientIPResolver, error) {
	res := &ClientIPResolver{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			res.trusted = append(res.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, block, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		res.trusted = append(res.trusted, block)
	}
	return res, nil
}

// Resolve returns the client address for r.
//
// Behind trusted proxies the X-Forwarded-For chain is walked from the right,
// skipping trusted hops; the first untrusted hop is the client.
func (c *ClientIPResolver) Resolve(r *http.Request) string {
	peer := remoteHost(r)
	if c == nil || !c.isTrusted(peer) {
		return peer
	}
	fwd := r.Header.Values("X-Forwarded-For")
	if len(fwd) == 0 {
		return peer
	}
	hops := strings.Split(strings.Join(fwd, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if net.ParseIP(hop) == nil {
			return peer
		}
		if !c.isTrusted(hop) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

// Handler stores the resolved client address on the request context.
func (c *ClientIPResolver) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPContextKey, c.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *ClientIPResolver) isTrusted(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, block := range c.trusted {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address resolved by ClientIPResolver.Handler, or the
// socket peer when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok && ip != "" {
		return ip
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
