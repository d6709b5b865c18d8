// Package chain provides Solana RPC interaction for vaultctl.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/R3E-Network/vault_gateway/internal/logging"
)

// ErrAccountNotFound is returned when an account does not exist on chain.
var ErrAccountNotFound = errors.New("account not found")

// RPC is the subset of the Solana JSON-RPC API used here. *rpc.Client
// satisfies it.
type RPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	RequestAirdrop(ctx context.Context, account solana.PublicKey, lamports uint64, commitment rpc.CommitmentType) (solana.Signature, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// Client signs and submits transactions with a single local key.
type Client struct {
	rpc    RPC
	signer solana.PrivateKey
	logger *logging.Logger

	pollInterval  time.Duration
	waitTimeout   time.Duration
	fundAttempts  int
	fundRetryWait time.Duration
}

// Config holds client configuration.
type Config struct {
	RPCURL     string
	WalletPath string
}

// NewClient connects to RPCURL and loads the signer from a solana-keygen file.
func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}
	signer, err := LoadKeypair(cfg.WalletPath)
	if err != nil {
		return nil, err
	}
	return NewClientWithRPC(rpc.New(cfg.RPCURL), signer, logger), nil
}

// NewClientWithRPC wraps an existing RPC implementation.
func NewClientWithRPC(r RPC, signer solana.PrivateKey, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		rpc:           r,
		signer:        signer,
		logger:        logger,
		pollInterval:  DefaultPollInterval,
		waitTimeout:   DefaultTxWaitTimeout,
		fundAttempts:  DefaultFundAttempts,
		fundRetryWait: DefaultFundRetryWait,
	}
}

// LoadKeypair reads a solana-keygen JSON keypair.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, fmt.Errorf("wallet path required")
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return key, nil
}

// Signer returns the public key of the local signer.
func (c *Client) Signer() solana.PublicKey {
	return c.signer.PublicKey()
}

// =============================================================================
// Account queries
// =============================================================================

// AccountData returns the raw data of an account, or ErrAccountNotFound.
func (c *Client) AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", account, err)
	}
	if out == nil || out.Value == nil {
		return nil, ErrAccountNotFound
	}
	if out.Value.Data == nil {
		return nil, nil
	}
	return out.Value.Data.GetBinary(), nil
}

// AccountExists probes whether an account has been created.
func (c *Client) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := c.AccountData(ctx, account)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrAccountNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Balance returns the lamport balance of account.
func (c *Client) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", account, err)
	}
	return out.Value, nil
}

// LamportsToSOL formats lamports as SOL.
func LamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
}
