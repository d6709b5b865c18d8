package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// WalletConnectionsTable is the insert-only audit table.
const WalletConnectionsTable = "wallet_connections"

// WalletConnection is one recorded wallet connect event.
type WalletConnection struct {
	ID            string    `json:"id" db:"id"`
	WalletAddress string    `json:"wallet_address" db:"wallet_address"`
	ConnectedAt   time.Time `json:"connected_at" db:"connected_at"`
	WalletType    *string   `json:"wallet_type,omitempty" db:"wallet_type"`
	UserID        *string   `json:"user_id,omitempty" db:"user_id"`
	UserAgent     *string   `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress     *string   `json:"ip_address,omitempty" db:"ip_address"`
}

// WalletConnectionStore records wallet connections.
type WalletConnectionStore interface {
	InsertWalletConnection(ctx context.Context, conn *WalletConnection) (*WalletConnection, error)
}

// Repository is the PostgREST-backed store.
type Repository struct {
	client *Client
}

// NewRepository creates a repository over the Supabase REST client.
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

// InsertWalletConnection inserts one row and returns the stored representation.
func (r *Repository) InsertWalletConnection(ctx context.Context, conn *WalletConnection) (*WalletConnection, error) {
	if conn == nil || conn.WalletAddress == "" {
		return nil, fmt.Errorf("wallet address is required")
	}

	data, err := r.client.request(ctx, "POST", WalletConnectionsTable, conn, "")
	if err != nil {
		return nil, fmt.Errorf("insert wallet connection: %w", err)
	}

	var rows []WalletConnection
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal wallet connection: %w", err)
	}
	if len(rows) == 0 {
		return conn, nil
	}
	return &rows[0], nil
}
