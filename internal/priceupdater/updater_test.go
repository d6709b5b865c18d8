package priceupdater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/vault_gateway/internal/vault"
)

type staticSource struct {
	price decimal.Decimal
	err   error
	mints []string
	mu    sync.Mutex
}

func (s *staticSource) Price(_ context.Context, mint string) (decimal.Decimal, error) {
	s.mu.Lock()
	s.mints = append(s.mints, mint)
	s.mu.Unlock()
	return s.price, s.err
}

type recordingSender struct {
	mu  sync.Mutex
	ixs []solana.Instruction
	err error
}

func (r *recordingSender) SendAndConfirm(_ context.Context, ixs ...solana.Instruction) (solana.Signature, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return solana.Signature{}, r.err
	}
	r.ixs = append(r.ixs, ixs...)
	var sig solana.Signature
	sig[0] = byte(len(r.ixs))
	return sig, nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ixs)
}

func testConfig() Config {
	return Config{
		Symbol:    "SOL",
		ProgramID: solana.MustPublicKeyFromBase58("Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"),
		Authority: solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"),
		AssetMint: solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Expo:      -8,
	}
}

func TestBuildUpdate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	args, err := BuildUpdate(decimal.RequireFromString("150.25"), -8, 10, now)
	require.NoError(t, err)
	assert.Equal(t, int64(15025000000), args.Price)
	assert.Equal(t, uint64(15025000), args.Confidence)
	assert.Equal(t, int64(1700000000), args.PublishTime)

	_, err = BuildUpdate(decimal.Zero, -8, 10, now)
	assert.ErrorIs(t, err, vault.ErrPriceOutOfRange)
}

func TestTick_SubmitsUpdatePrice(t *testing.T) {
	source := &staticSource{price: decimal.RequireFromString("150.25")}
	sender := &recordingSender{}
	u, err := New(testConfig(), source, sender, nil)
	require.NoError(t, err)
	u.now = func() time.Time { return time.Unix(1700000000, 0) }

	sig, err := u.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, sig.IsZero())
	assert.Equal(t, []string{"So11111111111111111111111111111111111111112"}, source.mints)

	require.Equal(t, 1, sender.count())
	data, err := sender.ixs[0].Data()
	require.NoError(t, err)
	var args vault.UpdatePriceArgs
	require.NoError(t, borsh.Deserialize(&args, data[8:]))
	assert.Equal(t, int64(15025000000), args.Price)
	assert.Equal(t, int64(1700000000), args.PublishTime)

	s := u.Summary()
	assert.Equal(t, int64(1), s.Ticks)
	assert.Equal(t, int64(1), s.Successes)
	assert.Equal(t, sig.String(), s.LastSignature)
}

func TestTick_CountsFailures(t *testing.T) {
	u, err := New(testConfig(), &staticSource{err: errors.New("upstream down")}, &recordingSender{}, nil)
	require.NoError(t, err)

	_, err = u.Tick(context.Background())
	assert.Error(t, err)

	sender := &recordingSender{err: errors.New("blockhash not found")}
	u2, err := New(testConfig(), &staticSource{price: decimal.NewFromInt(1)}, sender, nil)
	require.NoError(t, err)
	_, err = u2.Tick(context.Background())
	assert.Error(t, err)

	assert.Equal(t, int64(1), u.Summary().Failures)
	assert.Equal(t, int64(1), u2.Summary().Failures)
	assert.Equal(t, int64(0), u2.Summary().Successes)
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.Interval = time.Second
	sender := &recordingSender{}
	u, err := New(cfg, &staticSource{price: decimal.NewFromInt(100)}, sender, nil)
	require.NoError(t, err)

	require.NoError(t, u.Start(context.Background()))
	assert.Error(t, u.Start(context.Background()))

	require.Eventually(t, func() bool { return sender.count() >= 2 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u.Stop(ctx)

	stopped := sender.count()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, stopped, sender.count())
	assert.GreaterOrEqual(t, u.Summary().Successes, int64(2))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(testConfig(), nil, &recordingSender{}, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.AssetMint = solana.PublicKey{}
	_, err = New(cfg, &staticSource{}, &recordingSender{}, nil)
	assert.Error(t, err)

	u, err := New(testConfig(), &staticSource{}, &recordingSender{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, u.cfg.Interval)
	assert.Equal(t, int64(DefaultConfidenceBps), u.cfg.ConfidenceBps)
}
