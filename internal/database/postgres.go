package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// PostgresStore writes wallet connections directly to Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

// OpenPostgres connects to DATABASE_URL and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const insertWalletConnectionSQL = `
INSERT INTO wallet_connections (id, wallet_address, connected_at, wallet_type, user_id, user_agent, ip_address)
VALUES (:id, :wallet_address, :connected_at, :wallet_type, :user_id, :user_agent, :ip_address)
RETURNING id, wallet_address, connected_at, wallet_type, user_id, user_agent, ip_address`

// InsertWalletConnection inserts one row and returns it as stored.
func (s *PostgresStore) InsertWalletConnection(ctx context.Context, conn *WalletConnection) (*WalletConnection, error) {
	if conn == nil || conn.WalletAddress == "" {
		return nil, fmt.Errorf("wallet address is required")
	}

	query, args, err := s.db.BindNamed(insertWalletConnectionSQL, conn)
	if err != nil {
		return nil, fmt.Errorf("bind wallet connection: %w", err)
	}

	var stored WalletConnection
	if err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&stored); err != nil {
		return nil, fmt.Errorf("insert wallet connection: %w", err)
	}
	return &stored, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
