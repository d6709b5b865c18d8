// Package wallet records wallet connection events.
package wallet

import (
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

const (
	minAddressLen = 32
	maxAddressLen = 44
	publicKeyLen  = 32
)

// ValidateAddress checks that addr is a base58 encoded 32-byte public key.
func ValidateAddress(addr string) error {
	if len(addr) < minAddressLen || len(addr) > maxAddressLen {
		return fmt.Errorf("address length %d outside [%d, %d]", len(addr), minAddressLen, maxAddressLen)
	}
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("address is not base58: %w", err)
	}
	if len(decoded) != publicKeyLen {
		return fmt.Errorf("address decodes to %d bytes, want %d", len(decoded), publicKeyLen)
	}
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp with an optional fractional part.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp is not ISO-8601: %w", err)
	}
	return t.UTC(), nil
}
