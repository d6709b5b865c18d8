// Package priceupdater pushes reference prices to an on-chain oracle on a
// fixed interval.
package priceupdater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/vault_gateway/internal/logging"
	"github.com/R3E-Network/vault_gateway/internal/metrics"
	"github.com/R3E-Network/vault_gateway/internal/vault"
)

const (
	DefaultInterval      = 5 * time.Second
	DefaultConfidenceBps = 10
)

// PriceSource returns the reference price for a mint.
type PriceSource interface {
	Price(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Sender signs, sends and confirms instructions.
type Sender interface {
	SendAndConfirm(ctx context.Context, instructions ...solana.Instruction) (solana.Signature, error)
}

// Config identifies the oracle to update.
type Config struct {
	Symbol    string
	ProgramID solana.PublicKey
	Authority solana.PublicKey
	AssetMint solana.PublicKey
	// PriceMint is the mint queried on the price source. Defaults to AssetMint.
	PriceMint     string
	Expo          int32
	ConfidenceBps int64
	Interval      time.Duration
	// Clock stamps publish times. Defaults to time.Now.
	Clock func() time.Time
}

// Updater submits update_price instructions.
type Updater struct {
	cfg    Config
	source PriceSource
	sender Sender
	logger *logging.Logger
	now    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron

	stats stats
}

type stats struct {
	ticks        atomic.Int64
	successes    atomic.Int64
	failures     atomic.Int64
	latencyNanos atomic.Int64
	lastSig      atomic.Value // string
	startedAt    atomic.Int64
}

// New validates cfg and returns an Updater.
func New(cfg Config, source PriceSource, sender Sender, logger *logging.Logger) (*Updater, error) {
	if source == nil || sender == nil {
		return nil, errors.New("price source and sender are required")
	}
	if cfg.ProgramID.IsZero() || cfg.AssetMint.IsZero() {
		return nil, errors.New("program id and asset mint are required")
	}
	if cfg.PriceMint == "" {
		cfg.PriceMint = cfg.AssetMint.String()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ConfidenceBps <= 0 {
		cfg.ConfidenceBps = DefaultConfidenceBps
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Updater{cfg: cfg, source: source, sender: sender, logger: logger, now: now}, nil
}

// Tick fetches the reference price and submits one update.
func (u *Updater) Tick(ctx context.Context) (solana.Signature, error) {
	start := time.Now()
	u.stats.ticks.Add(1)

	sig, err := u.push(ctx)
	u.stats.latencyNanos.Add(int64(time.Since(start)))
	metrics.RecordPriceUpdate(u.cfg.Symbol, err == nil)

	log := u.logger.WithFields(map[string]interface{}{"symbol": u.cfg.Symbol})
	if err != nil {
		u.stats.failures.Add(1)
		log.WithError(err).Warn("price update failed")
		return solana.Signature{}, err
	}
	u.stats.successes.Add(1)
	u.stats.lastSig.Store(sig.String())
	log.WithField("signature", sig.String()).Info("price updated")
	return sig, nil
}

func (u *Updater) push(ctx context.Context) (solana.Signature, error) {
	price, err := u.source.Price(ctx, u.cfg.PriceMint)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("fetch price: %w", err)
	}
	args, err := BuildUpdate(price, u.cfg.Expo, u.cfg.ConfidenceBps, u.now())
	if err != nil {
		return solana.Signature{}, err
	}
	ix, err := vault.UpdatePrice(u.cfg.ProgramID, u.cfg.Authority, u.cfg.AssetMint, args)
	if err != nil {
		return solana.Signature{}, err
	}
	return u.sender.SendAndConfirm(ctx, ix)
}

// BuildUpdate converts a display price to update_price arguments. The
// confidence interval is confidenceBps of the price.
func BuildUpdate(price decimal.Decimal, expo int32, confidenceBps int64, now time.Time) (vault.UpdatePriceArgs, error) {
	if !price.IsPositive() {
		return vault.UpdatePriceArgs{}, fmt.Errorf("%w: non-positive price %s", vault.ErrPriceOutOfRange, price)
	}
	mantissa, err := vault.ToFixed(price, expo)
	if err != nil {
		return vault.UpdatePriceArgs{}, err
	}
	conf := decimal.NewFromInt(mantissa).Mul(decimal.NewFromInt(confidenceBps)).Div(decimal.NewFromInt(vault.BpsDenominator)).Round(0)
	return vault.UpdatePriceArgs{
		Price:       mantissa,
		Confidence:  uint64(conf.IntPart()),
		PublishTime: now.Unix(),
	}, nil
}

// Start schedules Tick every interval. Ticks may overlap when a send takes
// longer than the interval.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cron != nil {
		return errors.New("price updater already running")
	}

	c := cron.New()
	spec := "@every " + u.cfg.Interval.String()
	if _, err := c.AddFunc(spec, func() { _, _ = u.Tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	u.stats.startedAt.Store(time.Now().UnixNano())
	u.cron = c
	c.Start()

	u.logger.WithFields(map[string]interface{}{
		"symbol":   u.cfg.Symbol,
		"interval": u.cfg.Interval.String(),
	}).Info("price updater started")
	return nil
}

// Stop halts scheduling and waits for in-flight ticks until ctx is done.
func (u *Updater) Stop(ctx context.Context) {
	u.mu.Lock()
	c := u.cron
	u.cron = nil
	u.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// Summary is a point-in-time view of updater activity.
type Summary struct {
	Symbol         string
	Ticks          int64
	Successes      int64
	Failures       int64
	LastSignature  string
	AverageLatency time.Duration
	Uptime         time.Duration
}

// Summary returns the current counters.
func (u *Updater) Summary() Summary {
	s := Summary{
		Symbol:    u.cfg.Symbol,
		Ticks:     u.stats.ticks.Load(),
		Successes: u.stats.successes.Load(),
		Failures:  u.stats.failures.Load(),
	}
	if sig, ok := u.stats.lastSig.Load().(string); ok {
		s.LastSignature = sig
	}
	if s.Ticks > 0 {
		s.AverageLatency = time.Duration(u.stats.latencyNanos.Load() / s.Ticks)
	}
	if started := u.stats.startedAt.Load(); started > 0 {
		s.Uptime = time.Since(time.Unix(0, started))
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("%s: %d ticks, %d succeeded, %d failed, avg latency %s, last signature %q",
		s.Symbol, s.Ticks, s.Successes, s.Failures, s.AverageLatency.Round(time.Millisecond), s.LastSignature)
}
