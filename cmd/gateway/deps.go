package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/vault_gateway/internal/config"
	"github.com/R3E-Network/vault_gateway/internal/database"
	"github.com/R3E-Network/vault_gateway/internal/jupiter"
	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/middleware"
	"github.com/R3E-Network/vault_gateway/internal/supabase"
	"github.com/R3E-Network/vault_gateway/internal/tokenstore"
)

var errWalletStoreNotConfigured = errors.New("wallet connection storage is not configured (set DATABASE_URL or SUPABASE_URL and SUPABASE_SERVICE_KEY)")

// dependencies holds everything the router needs.
type dependencies struct {
	logger          *logging.Logger
	jupiter         *jupiter.Handler
	authClient      *supabase.AuthClient
	authMiddleware  *middleware.AuthMiddleware
	walletStore     database.WalletConnectionStore
	rateLimiter     *middleware.RateLimiter
	clientIP        *middleware.ClientIPResolver
	walletStoreMode string
	tokenStoreMode  string
	closers         []func() error
}

// Close releases pooled connections.
func (d *dependencies) Close() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			d.logger.WithError(err).Warn("close dependency")
		}
	}
}

func buildDependencies(ctx context.Context, cfg *config.GatewayConfig, logger *logging.Logger) (*dependencies, error) {
	d := &dependencies{logger: logger}

	clientIP, err := middleware.NewClientIPResolver(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	d.clientIP = clientIP

	var store tokenstore.Store = tokenstore.NewMemoryStore()
	d.tokenStoreMode = "memory"
	if cfg.RedisURL != "" {
		rs, err := tokenstore.NewRedisStore(cfg.RedisURL, cfg.TokenCacheTTL)
		if err != nil {
			return nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		store = rs
		d.tokenStoreMode = "redis"
		d.closers = append(d.closers, rs.Close)
	}

	jup := jupiter.NewClient(jupiter.Config{BaseURL: cfg.JupiterURL, APIKey: cfg.JupiterAPIKey})
	cache := jupiter.NewCache(jup, store, cfg.TokenCacheTTL, logger)
	d.jupiter = jupiter.NewHandler(jup, cache, logger)

	d.authClient = supabase.NewAuthClient(supabase.Config{
		URL:       cfg.Supabase.URL,
		AnonKey:   cfg.Supabase.AnonKey,
		JWTSecret: cfg.Supabase.JWTSecret,
	})
	d.authMiddleware = middleware.NewAuthMiddleware(d.authClient, logger)

	d.walletStoreMode = cfg.WalletStoreMode()
	switch d.walletStoreMode {
	case "postgres":
		pg, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		d.walletStore = pg
		d.closers = append(d.closers, pg.Close)
	case "supabase":
		client, err := database.NewClient(database.Config{
			URL:        cfg.Supabase.URL,
			ServiceKey: cfg.Supabase.ServiceKey,
		})
		if err != nil {
			return nil, err
		}
		d.walletStore = database.NewRepository(client)
	default:
		logger.Warn("no wallet connection storage configured; /api/wallet/connect will fail")
		d.walletStore = unconfiguredStore{}
	}

	d.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	return d, nil
}

type unconfiguredStore struct{}

func (unconfiguredStore) InsertWalletConnection(context.Context, *database.WalletConnection) (*database.WalletConnection, error) {
	return nil, errWalletStoreNotConfigured
}
