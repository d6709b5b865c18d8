// Package tokenstore holds the verified token snapshot served by the gateway.
package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrMiss is returned by Load when no snapshot is stored.
var ErrMiss = errors.New("tokenstore: no snapshot")

// Token is one verified token as listed by the aggregator.
type Token struct {
	Address  string           `json:"address"`
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Decimals int              `json:"decimals"`
	Price    *decimal.Decimal `json:"usdPrice,omitempty"`
	Verified bool             `json:"verified"`
	LogoURI  string           `json:"logoURI,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
}

// Snapshot is the full token list with the time it was fetched.
type Snapshot struct {
	Tokens    []Token   `json:"tokens"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Fresh reports whether the snapshot is younger than ttl at now.
func (s *Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	if s == nil || s.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(s.FetchedAt) < ttl
}

// Store persists the latest snapshot. Save replaces the previous one.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}
