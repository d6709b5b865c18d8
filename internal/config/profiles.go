package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeedConfig describes one oracle-backed asset.
type FeedConfig struct {
	// Mint is the on-chain asset mint the oracle PDA is derived from.
	Mint string `yaml:"mint"`
	// PriceMint is the mint used for aggregator price lookups. Defaults to Mint.
	PriceMint        string `yaml:"price_mint,omitempty"`
	Expo             int32  `yaml:"expo"`
	MaxConfidenceBps uint16 `yaml:"max_confidence_bps"`
}

// LookupMint returns the mint to query reference prices with.
func (f FeedConfig) LookupMint() string {
	if f.PriceMint != "" {
		return f.PriceMint
	}
	return f.Mint
}

// Profile holds per-network constants.
type Profile struct {
	RPCURL              string                `yaml:"rpc_url"`
	ProgramID           string                `yaml:"program_id"`
	BaseMint            string                `yaml:"base_mint"`
	FeeBps              uint16                `yaml:"fee_bps"`
	MaxStalenessSeconds int64                 `yaml:"max_staleness_seconds"`
	Feeds               map[string]FeedConfig `yaml:"feeds"`
}

// Feed returns the feed for symbol, matched case-insensitively.
func (p *Profile) Feed(symbol string) (FeedConfig, bool) {
	if f, ok := p.Feeds[symbol]; ok {
		return f, true
	}
	for k, f := range p.Feeds {
		if strings.EqualFold(k, symbol) {
			return f, true
		}
	}
	return FeedConfig{}, false
}

// FeedSymbols returns the configured symbols in sorted order.
func (p *Profile) FeedSymbols() []string {
	out := make([]string, 0, len(p.Feeds))
	for k := range p.Feeds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ProfilesFile is the yaml document at VAULT_PROFILES.
type ProfilesFile struct {
	Networks map[string]*Profile `yaml:"networks"`
}

const (
	mintWSOL       = "So11111111111111111111111111111111111111112"
	mintUSDC       = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	mintUSDCDevnet = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	mintUSDT       = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	mintJUP        = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"

	anchorDevProgramID = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"
)

// DefaultProfiles returns the built-in network constants.
func DefaultProfiles() map[string]*Profile {
	devFeeds := map[string]FeedConfig{
		"SOL":  {Mint: mintWSOL, Expo: -8, MaxConfidenceBps: 100},
		"USDC": {Mint: mintUSDCDevnet, PriceMint: mintUSDC, Expo: -8, MaxConfidenceBps: 50},
	}
	return map[string]*Profile{
		"localnet": {
			RPCURL:              "http://127.0.0.1:8899",
			ProgramID:           anchorDevProgramID,
			BaseMint:            mintUSDCDevnet,
			FeeBps:              50,
			MaxStalenessSeconds: 60,
			Feeds:               copyFeeds(devFeeds),
		},
		"devnet": {
			RPCURL:              "https://api.devnet.solana.com",
			ProgramID:           anchorDevProgramID,
			BaseMint:            mintUSDCDevnet,
			FeeBps:              50,
			MaxStalenessSeconds: 60,
			Feeds:               copyFeeds(devFeeds),
		},
		"mainnet-beta": {
			RPCURL:              "https://api.mainnet-beta.solana.com",
			BaseMint:            mintUSDC,
			FeeBps:              50,
			MaxStalenessSeconds: 30,
			Feeds: map[string]FeedConfig{
				"SOL":  {Mint: mintWSOL, Expo: -8, MaxConfidenceBps: 100},
				"USDC": {Mint: mintUSDC, Expo: -8, MaxConfidenceBps: 50},
				"USDT": {Mint: mintUSDT, Expo: -8, MaxConfidenceBps: 50},
				"JUP":  {Mint: mintJUP, Expo: -8, MaxConfidenceBps: 150},
			},
		},
	}
}

func copyFeeds(in map[string]FeedConfig) map[string]FeedConfig {
	out := make(map[string]FeedConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// LoadProfiles returns the built-in profiles merged with the yaml file at
// path. Non-zero fields in the file override the defaults; feeds merge by symbol.
func LoadProfiles(path string) (map[string]*Profile, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	var file ProfilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	for name, override := range file.Networks {
		if override == nil {
			continue
		}
		base, ok := profiles[name]
		if !ok {
			base = &Profile{}
			profiles[name] = base
		}
		mergeProfile(base, override)
	}
	return profiles, nil
}

func mergeProfile(dst, src *Profile) {
	if src.RPCURL != "" {
		dst.RPCURL = src.RPCURL
	}
	if src.ProgramID != "" {
		dst.ProgramID = src.ProgramID
	}
	if src.BaseMint != "" {
		dst.BaseMint = src.BaseMint
	}
	if src.FeeBps != 0 {
		dst.FeeBps = src.FeeBps
	}
	if src.MaxStalenessSeconds != 0 {
		dst.MaxStalenessSeconds = src.MaxStalenessSeconds
	}
	if dst.Feeds == nil {
		dst.Feeds = make(map[string]FeedConfig)
	}
	for sym, feed := range src.Feeds {
		dst.Feeds[strings.ToUpper(sym)] = feed
	}
}
