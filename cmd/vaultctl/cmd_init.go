package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/vault_gateway/internal/vault"
)

// =============================================================================
// Deployment commands
// =============================================================================

func initVaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-vault",
		Short: "Create the vault, share mint and vault token account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := a.addresses()
			if err != nil {
				return err
			}
			a.printf("Vault:       %s\nShare mint:  %s\nVault token: %s\n",
				addrs.Vault.Address, addrs.ShareMint.Address, addrs.VaultToken.Address)

			created, err := a.createIfMissing(cmd.Context(), "vault", addrs.Vault.Address, func() (solana.Instruction, error) {
				return vault.InitializeVault(addrs, vault.InitializeVaultArgs{
					FeeBps:       a.cfg.Profile.FeeBps,
					MaxStaleness: a.cfg.Profile.MaxStalenessSeconds,
				})
			})
			if err != nil {
				return err
			}

			record, err := a.loadRecord()
			if err != nil {
				return err
			}
			record.ProgramID = addrs.ProgramID.String()
			record.Authority = addrs.Authority.String()
			record.Vault = addrs.Vault.Address.String()
			record.ShareMint = addrs.ShareMint.Address.String()
			record.VaultTokenAccount = addrs.VaultToken.Address.String()
			record.BaseMint = addrs.BaseMint.String()
			if created {
				a.logger.WithField("vault", record.Vault).Info("vault initialized")
			}
			return a.saveRecord(record)
		},
	}
}

func initOracleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init-oracle <SYMBOL>",
		Short: "Create the price oracle for a configured feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := strings.ToUpper(args[0])
			feed, mint, err := a.feed(symbol)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			programID, err := a.programID()
			if err != nil {
				return err
			}
			oracle, err := vault.OraclePDA(programID, mint)
			if err != nil {
				return err
			}
			a.printf("Oracle %s: %s (mint %s)\n", symbol, oracle.Address, mint)

			_, err = a.createIfMissing(cmd.Context(), "oracle "+symbol, oracle.Address, func() (solana.Instruction, error) {
				return vault.InitializeOracle(programID, c.Signer(), mint, vault.InitializeOracleArgs{
					Expo:             feed.Expo,
					MaxStaleness:     a.cfg.Profile.MaxStalenessSeconds,
					MaxConfidenceBps: feed.MaxConfidenceBps,
				})
			})
			if err != nil {
				return err
			}

			record, err := a.loadRecord()
			if err != nil {
				return err
			}
			record.SetOracle(symbol, oracle.Address.String(), mint.String())
			return a.saveRecord(record)
		},
	}
}

func addStrategyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-strategy <name> <index> <weight_bps>",
		Short: "Register a staking strategy",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			index, err := strconv.ParseUint(args[1], 10, 8)
			if err != nil {
				return fmt.Errorf("invalid strategy index %q: must be 0-255", args[1])
			}
			weight, err := parseBps(args[2])
			if err != nil {
				return err
			}
			addrs, err := a.addresses()
			if err != nil {
				return err
			}
			strategy, pool, err := addrs.Strategy(uint8(index))
			if err != nil {
				return err
			}
			a.printf("Strategy %s[%d]: %s (stake pool %s)\n", name, index, strategy.Address, pool.Address)

			_, err = a.createIfMissing(cmd.Context(), "strategy "+name, strategy.Address, func() (solana.Instruction, error) {
				return vault.AddStrategy(addrs, vault.AddStrategyArgs{Index: uint8(index), WeightBps: weight})
			})
			if err != nil {
				return err
			}

			record, err := a.loadRecord()
			if err != nil {
				return err
			}
			record.SetStrategy(name, strategy.Address.String())
			return a.saveRecord(record)
		},
	}
}

func setWeightsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-weights <SYMBOL=bps>...",
		Short: "Set the vault asset allocation (must sum to 10000 bps)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bySymbol, err := parseWeights(args)
			if err != nil {
				return err
			}

			symbols := sortedKeys(bySymbol)
			weights := make([]vault.AssetWeight, 0, len(symbols))
			for _, symbol := range symbols {
				_, mint, err := a.feed(symbol)
				if err != nil {
					return err
				}
				weights = append(weights, vault.AssetWeight{Mint: mint, WeightBps: bySymbol[symbol]})
			}

			addrs, err := a.addresses()
			if err != nil {
				return err
			}
			ix, err := vault.SetAssetWeights(addrs, weights)
			if err != nil {
				return err
			}
			sig, err := a.send(cmd.Context(), ix)
			if err != nil {
				return err
			}
			a.printf("Asset weights set: %s\n", sig)

			record, err := a.loadRecord()
			if err != nil {
				return err
			}
			if err := record.SetWeights(bySymbol); err != nil {
				return err
			}
			return a.saveRecord(record)
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

// createIfMissing sends the instruction built by build unless account exists.
func (a *app) createIfMissing(ctx context.Context, name string, account solana.PublicKey, build func() (solana.Instruction, error)) (bool, error) {
	c, err := a.client()
	if err != nil {
		return false, err
	}
	exists, err := c.AccountExists(ctx, account)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", name, err)
	}
	if exists {
		a.printf("%s already exists, skipping\n", name)
		return false, nil
	}
	ix, err := build()
	if err != nil {
		return false, err
	}
	sig, err := a.send(ctx, ix)
	if err != nil {
		return false, fmt.Errorf("create %s: %w", name, err)
	}
	a.printf("Created %s: %s\n", name, sig)
	return true, nil
}

func (a *app) send(ctx context.Context, ixs ...solana.Instruction) (solana.Signature, error) {
	c, err := a.client()
	if err != nil {
		return solana.Signature{}, err
	}
	return c.SendAndConfirm(ctx, ixs...)
}

func parseBps(raw string) (uint16, error) {
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil || v > vault.BpsDenominator {
		return 0, fmt.Errorf("invalid basis points %q: must be 0-10000", raw)
	}
	return uint16(v), nil
}

// parseWeights parses SYMBOL=bps pairs and checks they sum to 10000.
func parseWeights(args []string) (map[string]uint16, error) {
	out := make(map[string]uint16, len(args))
	values := make([]uint16, 0, len(args))
	for _, arg := range args {
		symbol, raw, ok := strings.Cut(arg, "=")
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if !ok || symbol == "" {
			return nil, fmt.Errorf("invalid weight %q: want SYMBOL=bps", arg)
		}
		if _, dup := out[symbol]; dup {
			return nil, fmt.Errorf("duplicate weight for %s", symbol)
		}
		bps, err := parseBps(strings.TrimSpace(raw))
		if err != nil {
			return nil, err
		}
		out[symbol] = bps
		values = append(values, bps)
	}
	if err := vault.ValidateWeights(values); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
