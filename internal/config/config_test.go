package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadGatewayDefaults(t *testing.T) {
	clearEnv(t, "PORT", "JUPITER_API_URL", "TOKEN_CACHE_TTL", "SUPABASE_URL", "DATABASE_URL",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS", "SUPABASE_SERVICE_KEY")

	cfg, err := LoadGateway()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "https://lite-api.jup.ag", cfg.JupiterURL)
	assert.Equal(t, 6*time.Hour, cfg.TokenCacheTTL)
	assert.Equal(t, 20, cfg.RateLimitRPS)
	assert.Equal(t, 40, cfg.RateLimitBurst)
	assert.Empty(t, cfg.CORSOrigins)
	assert.Equal(t, "", cfg.WalletStoreMode())
}

func TestLoadGatewayOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_CACHE_TTL", "3600")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SUPABASE_URL", "https://proj.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "svc")
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadGateway()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, time.Hour, cfg.TokenCacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "supabase", cfg.WalletStoreMode())

	t.Setenv("DATABASE_URL", "postgres://localhost/vault")
	cfg, err = LoadGateway()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.WalletStoreMode())
}

func TestLoadGatewayInvalid(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := LoadGateway()
	assert.Error(t, err)

	t.Setenv("PORT", "70000")
	_, err = LoadGateway()
	assert.Error(t, err)

	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_CACHE_TTL", "soon")
	_, err = LoadGateway()
	assert.Error(t, err)

	t.Setenv("TOKEN_CACHE_TTL", "6h")
	t.Setenv("SUPABASE_URL", "not a url")
	_, err = LoadGateway()
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("VAULT_TEST_DOTENV=from-file\nVAULT_TEST_PRESET=from-file\n"), 0o600))

	t.Setenv("VAULT_TEST_PRESET", "from-env")
	t.Setenv("VAULT_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("VAULT_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("VAULT_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("VAULT_TEST_PRESET"))
}

func TestLoadProfilesMergesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	doc := `
networks:
  devnet:
    program_id: "11111111111111111111111111111111"
    feeds:
      bonk:
        mint: DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263
        expo: -10
        max_confidence_bps: 300
  custom:
    rpc_url: http://10.0.0.5:8899
    base_mint: So11111111111111111111111111111111111111112
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)

	devnet := profiles["devnet"]
	assert.Equal(t, "11111111111111111111111111111111", devnet.ProgramID)
	assert.Equal(t, "https://api.devnet.solana.com", devnet.RPCURL)
	bonk, ok := devnet.Feed("BONK")
	require.True(t, ok)
	assert.EqualValues(t, -10, bonk.Expo)
	_, ok = devnet.Feed("sol")
	assert.True(t, ok, "default feeds survive merge")
	assert.Equal(t, []string{"BONK", "SOL", "USDC"}, devnet.FeedSymbols())

	custom := profiles["custom"]
	require.NotNil(t, custom)
	assert.Equal(t, "http://10.0.0.5:8899", custom.RPCURL)

	usdc, _ := DefaultProfiles()["devnet"].Feed("USDC")
	assert.Equal(t, mintUSDC, usdc.LookupMint())
	assert.Equal(t, mintUSDCDevnet, usdc.Mint)

	_, err = LoadProfiles(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadVault(t *testing.T) {
	clearEnv(t, "VAULT_PROFILES", "SOLANA_RPC_URL", "VAULT_PROGRAM_ID", "MAX_STALENESS_SECONDS", "PRICE_UPDATE_INTERVAL")
	t.Setenv("VAULT_NETWORK", "devnet")
	t.Setenv("WALLET_PATH", "/tmp/id.json")

	cfg, err := LoadVault()
	require.NoError(t, err)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCURL)
	assert.Equal(t, 5*time.Second, cfg.PriceUpdateInterval)
	assert.Equal(t, anchorDevProgramID, cfg.Profile.ProgramID)

	t.Setenv("SOLANA_RPC_URL", "http://127.0.0.1:8899")
	t.Setenv("MAX_STALENESS_SECONDS", "120")
	t.Setenv("PRICE_UPDATE_INTERVAL", "2s")
	cfg, err = LoadVault()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8899", cfg.RPCURL)
	assert.EqualValues(t, 120, cfg.Profile.MaxStalenessSeconds)
	assert.Equal(t, 2*time.Second, cfg.PriceUpdateInterval)

	t.Setenv("VAULT_NETWORK", "mainnet-beta")
	_, err = LoadVault()
	assert.Error(t, err, "mainnet has no default program id")

	t.Setenv("VAULT_PROGRAM_ID", anchorDevProgramID)
	_, err = LoadVault()
	assert.NoError(t, err)

	t.Setenv("VAULT_NETWORK", "moonnet")
	_, err = LoadVault()
	assert.Error(t, err)
}

func TestLoadGatewayTrustedProxies(t *testing.T) {
	clearEnv(t, "PORT", "JUPITER_API_URL", "TOKEN_CACHE_TTL", "SUPABASE_URL", "DATABASE_URL",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST")

	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.5")
	cfg, err := LoadGateway()
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.5"}, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "")
	cfg, err = LoadGateway()
	require.NoError(t, err)
	assert.Empty(t, cfg.TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", "proxy.internal")
	_, err = LoadGateway()
	assert.ErrorContains(t, err, "TRUSTED_PROXIES")
}
