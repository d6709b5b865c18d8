package main

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/vault_gateway/internal/vault"
)

// =============================================================================
// User commands
// =============================================================================

func depositCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit base tokens (in base units) for vault shares",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.userTransfer(cmd, "deposit", args[0], vault.Deposit)
		},
	}
}

func withdrawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <shares>",
		Short: "Redeem vault shares for base tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.userTransfer(cmd, "withdraw", args[0], vault.Withdraw)
		},
	}
}

func (a *app) userTransfer(cmd *cobra.Command, name, raw string, build func(*vault.Addresses, solana.PublicKey, uint64) (solana.Instruction, error)) error {
	amount, err := parseAmount(raw)
	if err != nil {
		return err
	}
	addrs, err := a.addresses()
	if err != nil {
		return err
	}
	position, err := addrs.Position(addrs.Authority)
	if err != nil {
		return err
	}
	a.printf("Position: %s\n", position.Address)

	ix, err := build(addrs, addrs.Authority, amount)
	if err != nil {
		return err
	}
	sig, err := a.send(cmd.Context(), ix)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	a.printf("%s %d confirmed: %s\n", name, amount, sig)
	return nil
}

func stakeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stake <strategy> <amount>",
		Short: "Stake vault funds into a strategy, by name or index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			addrs, err := a.addresses()
			if err != nil {
				return err
			}
			index, err := a.resolveStrategy(addrs, args[0])
			if err != nil {
				return err
			}
			ix, err := vault.Stake(addrs, index, amount)
			if err != nil {
				return err
			}
			sig, err := a.send(cmd.Context(), ix)
			if err != nil {
				return fmt.Errorf("stake: %w", err)
			}
			a.printf("Staked %d into strategy %d: %s\n", amount, index, sig)
			return nil
		},
	}
}

// resolveStrategy accepts a numeric index or a strategy name from the
// deployment record.
func (a *app) resolveStrategy(addrs *vault.Addresses, ref string) (uint8, error) {
	if idx, err := strconv.ParseUint(ref, 10, 8); err == nil {
		return uint8(idx), nil
	}
	record, err := a.loadRecord()
	if err != nil {
		return 0, err
	}
	address, ok := record.Strategies[ref]
	if !ok {
		return 0, fmt.Errorf("unknown strategy %q (known: %v)", ref, sortedKeys(record.Strategies))
	}
	want, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("strategy %s: %w", ref, err)
	}
	for i := 0; i <= 255; i++ {
		strategy, _, err := addrs.Strategy(uint8(i))
		if err != nil {
			return 0, err
		}
		if strategy.Address.Equals(want) {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("strategy %s (%s) does not belong to vault %s", ref, address, addrs.Vault.Address)
}

func parseAmount(raw string) (uint64, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid amount %q: must be a positive integer", raw)
	}
	return v, nil
}
