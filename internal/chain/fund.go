package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

const (
	// DefaultFundAttempts is how many airdrops are tried before giving up.
	DefaultFundAttempts = 3
	// DefaultFundRetryWait is the fixed pause between airdrop attempts.
	DefaultFundRetryWait = 2 * time.Second
)

// FundWithRetries requests an airdrop to account, retrying with a fixed pause.
func (c *Client) FundWithRetries(ctx context.Context, account solana.PublicKey, lamports uint64) (solana.Signature, error) {
	var lastErr error
	for attempt := 1; attempt <= c.fundAttempts; attempt++ {
		sig, err := c.rpc.RequestAirdrop(ctx, account, lamports, rpc.CommitmentConfirmed)
		if err == nil {
			err = c.WaitForConfirmation(ctx, sig)
			if err == nil {
				return sig, nil
			}
		}
		lastErr = err
		c.logger.WithError(err).
			WithField("attempt", attempt).
			WithField("account", account.String()).
			Warn("airdrop failed")

		if attempt == c.fundAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return solana.Signature{}, ctx.Err()
		case <-time.After(c.fundRetryWait):
		}
	}
	return solana.Signature{}, fmt.Errorf("airdrop failed after %d attempts: %w", c.fundAttempts, lastErr)
}
