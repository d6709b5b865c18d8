package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// VaultConfig configures cmd/vaultctl.
type VaultConfig struct {
	Network             string
	RPCURL              string
	WalletPath          string
	DeploymentFile      string
	PriceUpdateInterval time.Duration
	JupiterURL          string
	JupiterAPIKey       string
	LogLevel            string
	Profile             *Profile
}

// DefaultWalletPath is the solana CLI default keypair location.
func DefaultWalletPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "solana", "id.json")
	}
	return filepath.Join(home, ".config", "solana", "id.json")
}

// LoadVault reads the vaultctl configuration and resolves the network profile.
func LoadVault() (*VaultConfig, error) {
	cfg := &VaultConfig{
		Network:        getEnv("VAULT_NETWORK", "devnet"),
		WalletPath:     getEnv("WALLET_PATH", DefaultWalletPath()),
		DeploymentFile: getEnv("DEPLOYMENT_FILE", "deployment.json"),
		JupiterURL:     getEnv("JUPITER_API_URL", "https://lite-api.jup.ag"),
		JupiterAPIKey:  getEnv("JUPITER_API_KEY", ""),
		LogLevel:       getEnv("LOG_LEVEL", "warn"),
	}

	var errs []error
	var err error
	cfg.PriceUpdateInterval, err = getEnvDuration("PRICE_UPDATE_INTERVAL", 5*time.Second)
	if err != nil {
		errs = append(errs, err)
	}
	maxStaleness, err := getEnvInt("MAX_STALENESS_SECONDS", 0)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	profiles, err := LoadProfiles(getEnv("VAULT_PROFILES", ""))
	if err != nil {
		return nil, err
	}
	profile, ok := profiles[cfg.Network]
	if !ok {
		return nil, fmt.Errorf("unknown VAULT_NETWORK %q", cfg.Network)
	}
	cfg.Profile = profile

	if id := getEnv("VAULT_PROGRAM_ID", ""); id != "" {
		profile.ProgramID = id
	}
	if maxStaleness > 0 {
		profile.MaxStalenessSeconds = int64(maxStaleness)
	}
	cfg.RPCURL = getEnv("SOLANA_RPC_URL", profile.RPCURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved configuration.
func (c *VaultConfig) Validate() error {
	var errs []error
	if err := validateURL("SOLANA_RPC_URL", c.RPCURL, true); err != nil {
		errs = append(errs, err)
	}
	if c.Profile == nil || c.Profile.ProgramID == "" {
		errs = append(errs, fmt.Errorf("program id is not configured for %s; set VAULT_PROGRAM_ID", c.Network))
	}
	if c.Profile != nil && c.Profile.BaseMint == "" {
		errs = append(errs, fmt.Errorf("base mint is not configured for %s", c.Network))
	}
	if c.PriceUpdateInterval <= 0 {
		errs = append(errs, fmt.Errorf("PRICE_UPDATE_INTERVAL must be positive"))
	}
	if c.WalletPath == "" {
		errs = append(errs, fmt.Errorf("WALLET_PATH is required"))
	}
	return errors.Join(errs...)
}
