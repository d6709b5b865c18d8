package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/vault_gateway/internal/chain"
	"github.com/R3E-Network/vault_gateway/internal/deployment"
	"github.com/R3E-Network/vault_gateway/internal/vault"
)

const defaultAirdropSOL = "2"

// =============================================================================
// Wallet commands
// =============================================================================

func addressesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "addresses",
		Short: "Print every derived program address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addrs, err := a.addresses()
			if err != nil {
				return err
			}
			a.printf("Network:        %s\n", a.cfg.Network)
			a.printf("Program:        %s\n", addrs.ProgramID)
			a.printf("Authority:      %s\n", addrs.Authority)
			a.printf("Base mint:      %s\n", addrs.BaseMint)
			a.printf("Vault:          %s (bump %d)\n", addrs.Vault.Address, addrs.Vault.Bump)
			a.printf("Share mint:     %s (bump %d)\n", addrs.ShareMint.Address, addrs.ShareMint.Bump)
			a.printf("Vault token:    %s (bump %d)\n", addrs.VaultToken.Address, addrs.VaultToken.Bump)

			position, err := addrs.Position(addrs.Authority)
			if err != nil {
				return err
			}
			a.printf("Position:       %s\n", position.Address)

			strategy, pool, err := addrs.Strategy(0)
			if err != nil {
				return err
			}
			a.printf("Strategy[0]:    %s\n", strategy.Address)
			a.printf("Stake pool[0]:  %s\n", pool.Address)

			for _, symbol := range a.cfg.Profile.FeedSymbols() {
				_, mint, err := a.feed(symbol)
				if err != nil {
					return err
				}
				oracle, err := addrs.Oracle(mint)
				if err != nil {
					return err
				}
				a.printf("Oracle %-7s %s\n", symbol+":", oracle.Address)
			}
			return nil
		},
	}
}

func fundCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fund [sol]",
		Short: "Request an airdrop to the local wallet (default 2 SOL)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount := defaultAirdropSOL
			if len(args) == 1 {
				amount = args[0]
			}
			lamports, err := parseSOL(amount)
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			a.printf("Requesting %s SOL for %s\n", amount, c.Signer())
			sig, err := c.FundWithRetries(cmd.Context(), c.Signer(), lamports)
			if err != nil {
				return err
			}
			a.printf("Airdrop confirmed: %s\n", sig)
			return printBalance(a, cmd, c)
		},
	}
}

func balanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the local wallet SOL balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			return printBalance(a, cmd, c)
		},
	}
}

func printBalance(a *app, cmd *cobra.Command, c chainAPI) error {
	lamports, err := c.Balance(cmd.Context(), c.Signer())
	if err != nil {
		return err
	}
	a.printf("Balance: %s SOL (%d lamports)\n", formatSOL(lamports), lamports)
	return nil
}

var maxLamports = decimal.NewFromInt(math.MaxInt64)

// parseSOL converts a decimal SOL amount to lamports.
func parseSOL(raw string) (uint64, error) {
	sol, err := decimal.NewFromString(raw)
	if err != nil || !sol.IsPositive() {
		return 0, fmt.Errorf("invalid SOL amount %q", raw)
	}
	lamports := sol.Mul(decimal.NewFromInt(int64(solana.LAMPORTS_PER_SOL))).Floor()
	if !lamports.IsPositive() {
		return 0, fmt.Errorf("SOL amount %q is below one lamport", raw)
	}
	if lamports.GreaterThan(maxLamports) {
		return 0, fmt.Errorf("SOL amount %q exceeds %s SOL", raw, formatSOL(math.MaxInt64))
	}
	return uint64(lamports.IntPart()), nil
}

func formatSOL(lamports uint64) string {
	return decimal.NewFromInt(int64(lamports)).Shift(-9).String()
}

// =============================================================================
// Status commands
// =============================================================================

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the deployment record and which derived accounts exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := deployment.Load(a.cfg.DeploymentFile)
			switch {
			case errors.Is(err, deployment.ErrNotFound):
				a.printf("No deployment record at %s\n", a.cfg.DeploymentFile)
			case err != nil:
				return err
			default:
				a.printf("Deployment (%s, updated %s)\n", record.Network, record.UpdatedAt.Format("2006-01-02 15:04:05Z07:00"))
			}

			addrs, err := a.addresses()
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			type check struct {
				name string
				key  solana.PublicKey
			}
			checks := []check{
				{"program", addrs.ProgramID},
				{"vault", addrs.Vault.Address},
				{"share mint", addrs.ShareMint.Address},
				{"vault token", addrs.VaultToken.Address},
			}
			for _, symbol := range a.cfg.Profile.FeedSymbols() {
				_, mint, err := a.feed(symbol)
				if err != nil {
					return err
				}
				oracle, err := addrs.Oracle(mint)
				if err != nil {
					return err
				}
				checks = append(checks, check{"oracle " + symbol, oracle.Address})
			}
			if record != nil {
				for _, name := range sortedKeys(record.Strategies) {
					key, err := solana.PublicKeyFromBase58(record.Strategies[name])
					if err != nil {
						return fmt.Errorf("strategy %s: %w", name, err)
					}
					checks = append(checks, check{"strategy " + name, key})
				}
			}

			for _, ch := range checks {
				exists, err := c.AccountExists(cmd.Context(), ch.key)
				if err != nil {
					return fmt.Errorf("check %s: %w", ch.name, err)
				}
				state := "missing"
				if exists {
					state = "ok"
				}
				a.printf("  %-16s %-44s %s\n", ch.name, ch.key, state)
			}

			balance, err := c.Balance(cmd.Context(), c.Signer())
			if err != nil {
				return err
			}
			a.printf("Authority balance: %s SOL\n", formatSOL(balance))
			a.printf("Max staleness: %ds, deviation limit: %d bps\n", a.cfg.Profile.MaxStalenessSeconds, vault.DefaultMaxDeviationBps)
			return nil
		},
	}
}

func deploymentCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deployment",
		Short: "Print the deployment metadata record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := deployment.Load(a.cfg.DeploymentFile)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(record, "", "  ")
			if err != nil {
				return err
			}
			a.printf("%s\n", data)
			return nil
		},
	}
}

var _ chainAPI = (*chain.Client)(nil)
