package vault

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
)

// Instruction names as declared by the program.
const (
	IxInitializeVault  = "initialize_vault"
	IxInitializeOracle = "initialize_oracle"
	IxAddStrategy      = "add_strategy"
	IxSetAssetWeights  = "set_asset_weights"
	IxUpdatePrice      = "update_price"
	IxDeposit          = "deposit"
	IxWithdraw         = "withdraw"
	IxStake            = "stake"
)

// Discriminator returns sha256("global:" + name)[:8].
func Discriminator(name string) [8]byte {
	return hashPrefix("global:" + name)
}

// AccountDiscriminator returns sha256("account:" + name)[:8].
func AccountDiscriminator(name string) [8]byte {
	return hashPrefix("account:" + name)
}

func hashPrefix(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// EncodeInstructionData prefixes the borsh encoding of args with the
// instruction discriminator.
func EncodeInstructionData(name string, args interface{}) ([]byte, error) {
	disc := Discriminator(name)
	payload, err := borsh.Serialize(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s args: %w", name, err)
	}
	return append(disc[:], payload...), nil
}

// =============================================================================
// Argument layouts
// =============================================================================

// InitializeVaultArgs are the initialize_vault arguments.
type InitializeVaultArgs struct {
	FeeBps       uint16
	MaxStaleness int64
}

// InitializeOracleArgs are the initialize_oracle arguments.
type InitializeOracleArgs struct {
	Expo             int32
	MaxStaleness     int64
	MaxConfidenceBps uint16
}

// AddStrategyArgs are the add_strategy arguments.
type AddStrategyArgs struct {
	Index     uint8
	WeightBps uint16
}

// AssetWeight assigns a share of the vault to one asset.
type AssetWeight struct {
	Mint      solana.PublicKey
	WeightBps uint16
}

// SetAssetWeightsArgs are the set_asset_weights arguments.
type SetAssetWeightsArgs struct {
	Weights []AssetWeight
}

// UpdatePriceArgs are the update_price arguments.
type UpdatePriceArgs struct {
	Price       int64
	Confidence  uint64
	PublishTime int64
}

// AmountArgs is shared by deposit, withdraw and stake.
type AmountArgs struct {
	Amount uint64
}

// =============================================================================
// Instruction builders
// =============================================================================

func build(programID solana.PublicKey, name string, args interface{}, accounts solana.AccountMetaSlice) (solana.Instruction, error) {
	data, err := EncodeInstructionData(name, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, accounts, data), nil
}

// InitializeVault accounts: authority (w,s), vault (w), share mint (w),
// vault token (w), base mint, system program, token program, rent.
func InitializeVault(a *Addresses, args InitializeVaultArgs) (solana.Instruction, error) {
	return build(a.ProgramID, IxInitializeVault, args, solana.AccountMetaSlice{
		solana.Meta(a.Authority).WRITE().SIGNER(),
		solana.Meta(a.Vault.Address).WRITE(),
		solana.Meta(a.ShareMint.Address).WRITE(),
		solana.Meta(a.VaultToken.Address).WRITE(),
		solana.Meta(a.BaseMint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SysVarRentPubkey),
	})
}

// InitializeOracle accounts: authority (w,s), oracle (w), asset mint, system program.
func InitializeOracle(programID, authority, assetMint solana.PublicKey, args InitializeOracleArgs) (solana.Instruction, error) {
	oracle, err := OraclePDA(programID, assetMint)
	if err != nil {
		return nil, err
	}
	return build(programID, IxInitializeOracle, args, solana.AccountMetaSlice{
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(oracle.Address).WRITE(),
		solana.Meta(assetMint),
		solana.Meta(solana.SystemProgramID),
	})
}

// AddStrategy accounts: authority (w,s), vault (w), strategy (w), stake pool (w), system program.
func AddStrategy(a *Addresses, args AddStrategyArgs) (solana.Instruction, error) {
	strategy, stakePool, err := a.Strategy(args.Index)
	if err != nil {
		return nil, err
	}
	return build(a.ProgramID, IxAddStrategy, args, solana.AccountMetaSlice{
		solana.Meta(a.Authority).WRITE().SIGNER(),
		solana.Meta(a.Vault.Address).WRITE(),
		solana.Meta(strategy.Address).WRITE(),
		solana.Meta(stakePool.Address).WRITE(),
		solana.Meta(solana.SystemProgramID),
	})
}

// SetAssetWeights accounts: authority (s), vault (w). Weights must sum to 10000 bps.
func SetAssetWeights(a *Addresses, weights []AssetWeight) (solana.Instruction, error) {
	bps := make([]uint16, len(weights))
	for i, w := range weights {
		bps[i] = w.WeightBps
	}
	if err := ValidateWeights(bps); err != nil {
		return nil, err
	}
	return build(a.ProgramID, IxSetAssetWeights, SetAssetWeightsArgs{Weights: weights}, solana.AccountMetaSlice{
		solana.Meta(a.Authority).SIGNER(),
		solana.Meta(a.Vault.Address).WRITE(),
	})
}

// UpdatePrice accounts: authority (s), oracle (w).
func UpdatePrice(programID, authority, assetMint solana.PublicKey, args UpdatePriceArgs) (solana.Instruction, error) {
	oracle, err := OraclePDA(programID, assetMint)
	if err != nil {
		return nil, err
	}
	return build(programID, IxUpdatePrice, args, solana.AccountMetaSlice{
		solana.Meta(authority).SIGNER(),
		solana.Meta(oracle.Address).WRITE(),
	})
}

// Deposit accounts: user (w,s), vault (w), position (w), share mint (w),
// vault token (w), user base token (w), user share token (w), token program,
// system program.
func Deposit(a *Addresses, user solana.PublicKey, amount uint64) (solana.Instruction, error) {
	return userTransfer(a, IxDeposit, user, amount)
}

// Withdraw uses the Deposit account layout with a share amount.
func Withdraw(a *Addresses, user solana.PublicKey, shares uint64) (solana.Instruction, error) {
	return userTransfer(a, IxWithdraw, user, shares)
}

func userTransfer(a *Addresses, name string, user solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%s amount must be positive", name)
	}
	position, err := a.Position(user)
	if err != nil {
		return nil, err
	}
	userBase, _, err := solana.FindAssociatedTokenAddress(user, a.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("derive user token account: %w", err)
	}
	userShares, _, err := solana.FindAssociatedTokenAddress(user, a.ShareMint.Address)
	if err != nil {
		return nil, fmt.Errorf("derive user share account: %w", err)
	}
	return build(a.ProgramID, name, AmountArgs{Amount: amount}, solana.AccountMetaSlice{
		solana.Meta(user).WRITE().SIGNER(),
		solana.Meta(a.Vault.Address).WRITE(),
		solana.Meta(position.Address).WRITE(),
		solana.Meta(a.ShareMint.Address).WRITE(),
		solana.Meta(a.VaultToken.Address).WRITE(),
		solana.Meta(userBase).WRITE(),
		solana.Meta(userShares).WRITE(),
		solana.Meta(solana.TokenProgramID),
		solana.Meta(solana.SystemProgramID),
	})
}

// Stake accounts: authority (w,s), vault (w), strategy (w), stake pool (w),
// vault token (w), token program.
func Stake(a *Addresses, index uint8, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("stake amount must be positive")
	}
	strategy, stakePool, err := a.Strategy(index)
	if err != nil {
		return nil, err
	}
	return build(a.ProgramID, IxStake, AmountArgs{Amount: amount}, solana.AccountMetaSlice{
		solana.Meta(a.Authority).WRITE().SIGNER(),
		solana.Meta(a.Vault.Address).WRITE(),
		solana.Meta(strategy.Address).WRITE(),
		solana.Meta(stakePool.Address).WRITE(),
		solana.Meta(a.VaultToken.Address).WRITE(),
		solana.Meta(solana.TokenProgramID),
	})
}
