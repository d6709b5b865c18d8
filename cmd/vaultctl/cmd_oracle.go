package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/R3E-Network/vault_gateway/internal/priceupdater"
	"github.com/R3E-Network/vault_gateway/internal/vault"
)

// fixedPrice serves one operator-supplied price.
type fixedPrice decimal.Decimal

func (p fixedPrice) Price(context.Context, string) (decimal.Decimal, error) {
	return decimal.Decimal(p), nil
}

// =============================================================================
// Oracle commands
// =============================================================================

func updatePriceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update-price <SYMBOL> [price]",
		Short: "Push one price to an oracle, from the argument or the aggregator",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source priceupdater.PriceSource = a.prices
			if len(args) == 2 {
				price, err := decimal.NewFromString(args[1])
				if err != nil || !price.IsPositive() {
					return fmt.Errorf("invalid price %q", args[1])
				}
				source = fixedPrice(price)
			}
			u, err := a.newUpdater(strings.ToUpper(args[0]), source)
			if err != nil {
				return err
			}
			sig, err := u.Tick(cmd.Context())
			if err != nil {
				return err
			}
			a.printf("Price updated: %s\n", sig)
			return nil
		},
	}
}

func priceUpdaterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "price-updater <SYMBOL>",
		Short: "Push aggregator prices on a fixed interval until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.newUpdater(strings.ToUpper(args[0]), a.prices)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := u.Start(ctx); err != nil {
				return err
			}
			a.printf("Updating %s every %s (Ctrl+C to stop)\n", args[0], a.cfg.PriceUpdateInterval)
			<-ctx.Done()

			drain, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			u.Stop(drain)
			a.printf("%s\n", u.Summary())
			return nil
		},
	}
}

func checkOracleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-oracle <SYMBOL>",
		Short: "Check oracle staleness, confidence and deviation from the aggregator",
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
			data, err := c.AccountData(cmd.Context(), oracle.Address)
			if err != nil {
				return fmt.Errorf("fetch oracle %s: %w", oracle.Address, err)
			}
			acct, err := vault.DecodeOracle(data)
			if err != nil {
				return err
			}

			reference, err := a.prices.Price(cmd.Context(), feed.LookupMint())
			if err != nil {
				a.logger.WithError(err).Warn("reference price unavailable, skipping deviation check")
				reference = decimal.Zero
			}

			h := vault.EvaluateOracle(acct, reference, vault.DefaultMaxDeviationBps, a.now())
			a.printf("Oracle %s: %s\n", symbol, oracle.Address)
			a.printf("  price:       %s (expo %d)\n", h.Price, acct.Expo)
			a.printf("  published:   %s (age %s, max %ds)\n", time.Unix(acct.PublishTime, 0).UTC().Format(time.RFC3339), h.Age.Round(time.Second), acct.MaxStaleness)
			a.printf("  confidence:  %s bps (max %d)\n", h.ConfidenceBps.StringFixed(2), acct.MaxConfidenceBps)
			if !reference.IsZero() {
				a.printf("  reference:   %s (deviation %s bps, max %d)\n", reference, h.DeviationBps.StringFixed(2), h.MaxDeviationBps)
			}
			if !h.Healthy() {
				for _, p := range h.Problems {
					a.printf("  FAIL: %s\n", p)
				}
				return fmt.Errorf("oracle %s is unhealthy", symbol)
			}
			a.printf("  status:      healthy\n")
			return nil
		},
	}
}

func (a *app) newUpdater(symbol string, source priceupdater.PriceSource) (*priceupdater.Updater, error) {
	feed, mint, err := a.feed(symbol)
	if err != nil {
		return nil, err
	}
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	programID, err := a.programID()
	if err != nil {
		return nil, err
	}
	u, err := priceupdater.New(priceupdater.Config{
		Symbol:    symbol,
		ProgramID: programID,
		Authority: c.Signer(),
		AssetMint: mint,
		PriceMint: feed.LookupMint(),
		Expo:      feed.Expo,
		Interval:  a.cfg.PriceUpdateInterval,
		Clock:     a.now,
	}, source, c, a.logger)
	if err != nil {
		return nil, err
	}
	return u, nil
}
