package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// SupabaseConfig holds the managed backend credentials.
type SupabaseConfig struct {
	URL        string
	AnonKey    string
	ServiceKey string
	JWTSecret  string
}

// GatewayConfig configures cmd/gateway.
type GatewayConfig struct {
	Port           int
	JupiterURL     string
	JupiterAPIKey  string
	TokenCacheTTL  time.Duration
	RedisURL       string
	Supabase       SupabaseConfig
	DatabaseURL    string
	CORSOrigins    []string
	TrustedProxies []string
	RateLimitRPS   int
	RateLimitBurst int
	LogLevel       string
	LogFormat      string
}

// LoadGateway reads the gateway configuration from the environment.
func LoadGateway() (*GatewayConfig, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &GatewayConfig{
		JupiterURL:    getEnv("JUPITER_API_URL", "https://lite-api.jup.ag"),
		JupiterAPIKey: getEnv("JUPITER_API_KEY", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		Supabase: SupabaseConfig{
			URL:        getEnv("SUPABASE_URL", ""),
			AnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			JWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),
		},
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSOrigins:    parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		TrustedProxies: parseCSV(getEnv("TRUSTED_PROXIES", "")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	var err error
	cfg.Port, err = getEnvInt("PORT", 8080)
	collect(err)
	cfg.RateLimitRPS, err = getEnvInt("RATE_LIMIT_RPS", 20)
	collect(err)
	cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 40)
	collect(err)
	cfg.TokenCacheTTL, err = getEnvDuration("TOKEN_CACHE_TTL", 6*time.Hour)
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and URL shapes.
func (c *GatewayConfig) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535, got %d", c.Port))
	}
	if err := validateURL("JUPITER_API_URL", c.JupiterURL, true); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("SUPABASE_URL", c.Supabase.URL, false); err != nil {
		errs = append(errs, err)
	}
	if c.TokenCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_CACHE_TTL must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES entry %q is not an IP or CIDR", p))
		}
	}
	return errors.Join(errs...)
}

// WalletStoreMode reports which wallet connection backend is configured:
// "postgres", "supabase" or "" when neither is available.
func (c *GatewayConfig) WalletStoreMode() string {
	switch {
	case c.DatabaseURL != "":
		return "postgres"
	case c.Supabase.URL != "" && c.Supabase.ServiceKey != "":
		return "supabase"
	default:
		return ""
	}
}

func validateURL(name, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", name)
	}
	return nil
}
