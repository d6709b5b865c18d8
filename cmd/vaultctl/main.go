// Command vaultctl deploys, configures and exercises the on-chain vault
// program. Every subcommand reads its settings from the environment.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/vault_gateway/internal/chain"
	"github.com/R3E-Network/vault_gateway/internal/config"
	"github.com/R3E-Network/vault_gateway/internal/deployment"
	"github.com/R3E-Network/vault_gateway/internal/jupiter"
	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/vault"
)

// chainAPI is the part of *chain.Client the commands use.
type chainAPI interface {
	Signer() solana.PublicKey
	AccountData(ctx context.Context, account solana.PublicKey) ([]byte, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	FundWithRetries(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error)
	SendAndConfirm(ctx context.Context, instructions ...solana.Instruction) (solana.Signature, error)
}

// priceAPI returns reference prices by mint.
type priceAPI interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// app carries the resolved configuration and clients for one invocation.
type app struct {
	cfg    *config.VaultConfig
	logger *logging.Logger
	out    io.Writer
	now    func() time.Time

	chain  chainAPI
	prices priceAPI

	// connect builds the chain client on first use.
	connect func() (chainAPI, error)
}

func loadApp() (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.LoadVault()
	if err != nil {
		return nil, err
	}
	logger := logging.New("vaultctl", cfg.LogLevel, "text")
	logger.SetOutput(os.Stderr)
	return &app{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		now:    time.Now,
		prices: jupiter.NewClient(jupiter.Config{BaseURL: cfg.JupiterURL, APIKey: cfg.JupiterAPIKey}),
		connect: func() (chainAPI, error) {
			return chain.NewClient(chain.Config{RPCURL: cfg.RPCURL, WalletPath: cfg.WalletPath}, logger)
		},
	}, nil
}

// client returns the chain client, connecting on first use.
func (a *app) client() (chainAPI, error) {
	if a.chain != nil {
		return a.chain, nil
	}
	if a.connect == nil {
		return nil, fmt.Errorf("no chain client configured")
	}
	c, err := a.connect()
	if err != nil {
		return nil, err
	}
	a.chain = c
	return c, nil
}

func (a *app) programID() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(a.cfg.Profile.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program id %q: %w", a.cfg.Profile.ProgramID, err)
	}
	return pk, nil
}

// addresses derives the core vault accounts for the local signer.
func (a *app) addresses() (*vault.Addresses, error) {
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	programID, err := a.programID()
	if err != nil {
		return nil, err
	}
	baseMint, err := solana.PublicKeyFromBase58(a.cfg.Profile.BaseMint)
	if err != nil {
		return nil, fmt.Errorf("invalid base mint %q: %w", a.cfg.Profile.BaseMint, err)
	}
	return vault.DeriveAddresses(programID, c.Signer(), baseMint)
}

// feed resolves a configured feed and its on-chain mint.
func (a *app) feed(symbol string) (config.FeedConfig, solana.PublicKey, error) {
	f, ok := a.cfg.Profile.Feed(symbol)
	if !ok {
		return config.FeedConfig{}, solana.PublicKey{}, fmt.Errorf("unknown feed %q for %s (configured: %v)", symbol, a.cfg.Network, a.cfg.Profile.FeedSymbols())
	}
	mint, err := solana.PublicKeyFromBase58(f.Mint)
	if err != nil {
		return config.FeedConfig{}, solana.PublicKey{}, fmt.Errorf("invalid mint for %s: %w", symbol, err)
	}
	return f, mint, nil
}

func (a *app) loadRecord() (*deployment.Record, error) {
	return deployment.LoadOrNew(a.cfg.DeploymentFile, a.cfg.Network, a.cfg.RPCURL, a.cfg.Profile.ProgramID)
}

func (a *app) saveRecord(r *deployment.Record) error {
	if err := deployment.Save(a.cfg.DeploymentFile, r, a.now()); err != nil {
		return err
	}
	a.printf("Deployment record saved to %s\n", a.cfg.DeploymentFile)
	return nil
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// =============================================================================
// Root command
// =============================================================================

func newRootCmd(load func() (*app, error)) *cobra.Command {
	var a *app
	root := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Deploy and operate the vault program",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := load()
			if err != nil {
				return err
			}
			loaded.out = cmd.OutOrStdout()
			*a = *loaded
			return nil
		},
	}
	a = &app{}

	root.AddCommand(
		addressesCmd(a),
		fundCmd(a),
		balanceCmd(a),
		initVaultCmd(a),
		initOracleCmd(a),
		addStrategyCmd(a),
		setWeightsCmd(a),
		updatePriceCmd(a),
		priceUpdaterCmd(a),
		checkOracleCmd(a),
		depositCmd(a),
		withdrawCmd(a),
		stakeCmd(a),
		statusCmd(a),
		deploymentCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd(loadApp).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
