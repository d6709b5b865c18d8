// Package vault derives program addresses and builds instructions for the
// on-chain vault/staking program.
package vault

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed prefixes used by the program.
const (
	SeedVault      = "vault"
	SeedShareMint  = "share_mint"
	SeedVaultToken = "vault_token"
	SeedStrategy   = "strategy"
	SeedStakePool  = "stake_pool"
	SeedOracle     = "oracle"
	SeedPosition   = "position"
)

// PDA is a program-derived address and its bump.
type PDA struct {
	Address solana.PublicKey
	Bump    uint8
}

func derive(programID solana.PublicKey, seeds ...[]byte) (PDA, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return PDA{}, fmt.Errorf("derive %q: %w", seeds[0], err)
	}
	return PDA{Address: addr, Bump: bump}, nil
}

// VaultPDA derives ["vault", authority].
func VaultPDA(programID, authority solana.PublicKey) (PDA, error) {
	return derive(programID, []byte(SeedVault), authority.Bytes())
}

// ShareMintPDA derives ["share_mint", vault].
func ShareMintPDA(programID, vault solana.PublicKey) (PDA, error) {
	return derive(programID, []byte(SeedShareMint), vault.Bytes())
}

// VaultTokenPDA derives ["vault_token", vault, base_mint].
func VaultTokenPDA(programID, vault, baseMint solana.PublicKey) (PDA, error) {
	return derive(programID, []byte(SeedVaultToken), vault.Bytes(), baseMint.Bytes())
}

// StrategyPDA derives ["strategy", vault, [index]].
func StrategyPDA(programID, vault solana.PublicKey, index uint8) (PDA, error) {
	return derive(programID, []byte(SeedStrategy), vault.Bytes(), []byte{index})
}

// StakePoolPDA derives ["stake_pool", strategy].
func StakePoolPDA(programID, strategy solana.PublicKey) (PDA, error) {
	return derive(programID, []byte(SeedStakePool), strategy.Bytes())
}

// OraclePDA derives ["oracle", asset_mint].
func OraclePDA(programID, assetMint solana.PublicKey) (PDA, error) {
	return derive(programID, []byte(SeedOracle), assetMint.Bytes())
}

// PositionPDA derives ["position", vault, user].
func PositionPDA(programID, vault, user solana.PublicKey) (PDA, error) {
	return derive(programID, []byte(SeedPosition), vault.Bytes(), user.Bytes())
}

// Addresses is the set of core accounts for one authority.
type Addresses struct {
	ProgramID  solana.PublicKey
	Authority  solana.PublicKey
	BaseMint   solana.PublicKey
	Vault      PDA
	ShareMint  PDA
	VaultToken PDA
}

// DeriveAddresses derives the vault, share mint and vault token account.
func DeriveAddresses(programID, authority, baseMint solana.PublicKey) (*Addresses, error) {
	v, err := VaultPDA(programID, authority)
	if err != nil {
		return nil, err
	}
	shareMint, err := ShareMintPDA(programID, v.Address)
	if err != nil {
		return nil, err
	}
	vaultToken, err := VaultTokenPDA(programID, v.Address, baseMint)
	if err != nil {
		return nil, err
	}
	return &Addresses{
		ProgramID:  programID,
		Authority:  authority,
		BaseMint:   baseMint,
		Vault:      v,
		ShareMint:  shareMint,
		VaultToken: vaultToken,
	}, nil
}

// Strategy derives the strategy and its stake pool for index.
func (a *Addresses) Strategy(index uint8) (strategy, stakePool PDA, err error) {
	strategy, err = StrategyPDA(a.ProgramID, a.Vault.Address, index)
	if err != nil {
		return PDA{}, PDA{}, err
	}
	stakePool, err = StakePoolPDA(a.ProgramID, strategy.Address)
	if err != nil {
		return PDA{}, PDA{}, err
	}
	return strategy, stakePool, nil
}

// Position derives the user position account.
func (a *Addresses) Position(user solana.PublicKey) (PDA, error) {
	return PositionPDA(a.ProgramID, a.Vault.Address, user)
}

// Oracle derives the oracle account for an asset mint.
func (a *Addresses) Oracle(assetMint solana.PublicKey) (PDA, error) {
	return OraclePDA(a.ProgramID, assetMint)
}
