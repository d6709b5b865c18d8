package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// =============================================================================
// Transaction submission
// =============================================================================

// DefaultTxWaitTimeout is the default timeout for waiting for confirmation.
const DefaultTxWaitTimeout = 2 * time.Minute

// DefaultPollInterval is the default interval for polling signature status.
const DefaultPollInterval = 2 * time.Second

// TxError reports a transaction that landed but failed.
type TxError struct {
	Signature solana.Signature
	Err       interface{}
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

// SendAndConfirm builds a transaction from instructions, signs it with the
// local key, sends it and waits for confirmed or finalized status.
func (c *Client) SendAndConfirm(ctx context.Context, instructions ...solana.Instruction) (solana.Signature, error) {
	sig, err := c.Send(ctx, instructions...)
	if err != nil {
		return solana.Signature{}, err
	}
	if err := c.WaitForConfirmation(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}

// Send signs and broadcasts without waiting.
func (c *Client) Send(ctx context.Context, instructions ...solana.Instruction) (solana.Signature, error) {
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(c.Signer()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	signer := c.signer
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(signer.PublicKey()) {
			return &signer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	c.logger.WithField("signature", sig.String()).Debug("transaction sent")
	return sig, nil
}

// WaitForConfirmation polls the signature status until it is confirmed or
// finalized, fails on chain, or the wait timeout expires. A missing status is
// treated as transient.
func (c *Client) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	wctx, cancel := context.WithTimeout(ctx, c.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wctx.Done():
			return fmt.Errorf("wait for %s: %w", sig, wctx.Err())
		case <-ticker.C:
			out, err := c.rpc.GetSignatureStatuses(wctx, true, sig)
			if err != nil {
				c.logger.WithError(err).Debug("signature status poll failed")
				continue
			}
			if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			status := out.Value[0]
			if status.Err != nil {
				return &TxError{Signature: sig, Err: status.Err}
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
		}
	}
}
