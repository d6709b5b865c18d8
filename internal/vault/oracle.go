package vault

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/shopspring/decimal"
)

const (
	// BpsDenominator is 100% in basis points.
	BpsDenominator = 10000
	// DefaultMaxDeviationBps bounds on-chain vs reference price drift.
	DefaultMaxDeviationBps = 200
	// MaxFutureSkew is how far ahead of the local clock a publish time may be.
	MaxFutureSkew = 60 * time.Second

	oracleAccountSize = 32 + 32 + 8 + 8 + 4 + 8 + 8 + 2 + 1
)

var (
	ErrPriceOutOfRange   = errors.New("price out of range")
	ErrFuturePublishTime = errors.New("publish time is in the future")
	ErrWeightSum         = errors.New("asset weights must sum to 10000 bps")
	ErrNotOracleAccount  = errors.New("account is not an oracle")

	oracleDiscriminator = AccountDiscriminator("Oracle")
)

// OracleAccount is the decoded on-chain price oracle.
type OracleAccount struct {
	Authority        solana.PublicKey
	AssetMint        solana.PublicKey
	Price            int64
	Confidence       uint64
	Expo             int32
	PublishTime      int64
	MaxStaleness     int64
	MaxConfidenceBps uint16
	Bump             uint8
}

// DecodeOracle decodes raw account data including the discriminator.
func DecodeOracle(data []byte) (*OracleAccount, error) {
	if len(data) < 8+oracleAccountSize {
		return nil, fmt.Errorf("oracle account too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], oracleDiscriminator[:]) {
		return nil, ErrNotOracleAccount
	}
	var acct OracleAccount
	if err := borsh.Deserialize(&acct, data[8:8+oracleAccountSize]); err != nil {
		return nil, fmt.Errorf("decode oracle account: %w", err)
	}
	return &acct, nil
}

// EncodeOracle is the inverse of DecodeOracle.
func EncodeOracle(acct *OracleAccount) ([]byte, error) {
	payload, err := borsh.Serialize(*acct)
	if err != nil {
		return nil, err
	}
	return append(oracleDiscriminator[:], payload...), nil
}

// PriceDecimal returns the oracle price in display units.
func (o *OracleAccount) PriceDecimal() decimal.Decimal {
	return FromFixed(o.Price, o.Expo)
}

// =============================================================================
// Fixed point conversion
// =============================================================================

// ToFixed converts price to a mantissa with exponent expo, rounding half away
// from zero.
func ToFixed(price decimal.Decimal, expo int32) (int64, error) {
	scaled := price.Shift(-expo).Round(0)
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || scaled.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("%w: %s at expo %d", ErrPriceOutOfRange, price, expo)
	}
	return scaled.IntPart(), nil
}

// FromFixed converts a mantissa and exponent back to a decimal.
func FromFixed(mantissa int64, expo int32) decimal.Decimal {
	return decimal.New(mantissa, expo)
}

// =============================================================================
// Health checks
// =============================================================================

// Staleness reports the age of publishTime at now and whether it exceeds
// maxStaleness seconds. A publish time more than MaxFutureSkew ahead errors.
func Staleness(publishTime, maxStaleness int64, now time.Time) (age time.Duration, stale bool, err error) {
	age = now.Sub(time.Unix(publishTime, 0))
	if -age > MaxFutureSkew {
		return age, false, fmt.Errorf("%w by %s", ErrFuturePublishTime, -age)
	}
	return age, age > time.Duration(maxStaleness)*time.Second, nil
}

// ConfidenceBps is confidence relative to |price| in basis points.
func ConfidenceBps(price int64, confidence uint64) (decimal.Decimal, error) {
	if price == 0 {
		return decimal.Zero, fmt.Errorf("%w: zero price", ErrPriceOutOfRange)
	}
	conf := decimal.NewFromBigInt(new(big.Int).SetUint64(confidence), 0)
	return conf.Mul(decimal.NewFromInt(BpsDenominator)).Div(decimal.NewFromInt(price).Abs()), nil
}

// DeviationBps is |actual - reference| relative to reference in basis points.
func DeviationBps(actual, reference decimal.Decimal) (decimal.Decimal, error) {
	if !reference.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: reference price %s", ErrPriceOutOfRange, reference)
	}
	return actual.Sub(reference).Abs().Mul(decimal.NewFromInt(BpsDenominator)).Div(reference), nil
}

// ValidateWeights checks each weight is at most 10000 and the total is 10000.
func ValidateWeights(weights []uint16) error {
	if len(weights) == 0 {
		return ErrWeightSum
	}
	var sum uint32
	for _, w := range weights {
		if w > BpsDenominator {
			return fmt.Errorf("weight %d exceeds %d bps", w, BpsDenominator)
		}
		sum += uint32(w)
	}
	if sum != BpsDenominator {
		return fmt.Errorf("%w, got %d", ErrWeightSum, sum)
	}
	return nil
}

// OracleHealth is the result of checking an oracle against a reference price.
type OracleHealth struct {
	Price           decimal.Decimal
	Reference       decimal.Decimal
	Age             time.Duration
	Stale           bool
	ConfidenceBps   decimal.Decimal
	ConfidenceOK    bool
	DeviationBps    decimal.Decimal
	DeviationOK     bool
	MaxDeviationBps int64
	Problems        []string
}

// Healthy reports whether every check passed.
func (h *OracleHealth) Healthy() bool {
	return len(h.Problems) == 0
}

// EvaluateOracle runs the staleness, confidence and deviation checks. A zero
// reference skips the deviation check.
func EvaluateOracle(o *OracleAccount, reference decimal.Decimal, maxDeviationBps int64, now time.Time) *OracleHealth {
	if maxDeviationBps <= 0 {
		maxDeviationBps = DefaultMaxDeviationBps
	}
	h := &OracleHealth{
		Price:           o.PriceDecimal(),
		Reference:       reference,
		MaxDeviationBps: maxDeviationBps,
		ConfidenceOK:    true,
		DeviationOK:     true,
	}

	age, stale, err := Staleness(o.PublishTime, o.MaxStaleness, now)
	h.Age, h.Stale = age, stale
	switch {
	case err != nil:
		h.Problems = append(h.Problems, err.Error())
	case stale:
		h.Problems = append(h.Problems, fmt.Sprintf("price is stale: age %s exceeds %ds", age.Round(time.Second), o.MaxStaleness))
	}

	conf, err := ConfidenceBps(o.Price, o.Confidence)
	h.ConfidenceBps = conf
	if err != nil {
		h.ConfidenceOK = false
		h.Problems = append(h.Problems, err.Error())
	} else if conf.GreaterThan(decimal.NewFromInt(int64(o.MaxConfidenceBps))) {
		h.ConfidenceOK = false
		h.Problems = append(h.Problems, fmt.Sprintf("confidence %s bps exceeds %d bps", conf.StringFixed(2), o.MaxConfidenceBps))
	}

	if !reference.IsZero() {
		dev, err := DeviationBps(h.Price, reference)
		h.DeviationBps = dev
		if err != nil {
			h.DeviationOK = false
			h.Problems = append(h.Problems, err.Error())
		} else if dev.GreaterThan(decimal.NewFromInt(maxDeviationBps)) {
			h.DeviationOK = false
			h.Problems = append(h.Problems, fmt.Sprintf("deviation %s bps exceeds %d bps", dev.StringFixed(2), maxDeviationBps))
		}
	}
	return h
}
