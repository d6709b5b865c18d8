// Package deployment persists the vault deployment metadata record.
package deployment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultFile is used when DEPLOYMENT_FILE is unset.
const DefaultFile = "deployment.json"

// ErrNotFound is returned by Load when the record does not exist yet.
var ErrNotFound = errors.New("deployment record not found")

// Record describes what has been deployed on one network.
type Record struct {
	Network           string            `json:"network"`
	RPCURL            string            `json:"rpcUrl"`
	ProgramID         string            `json:"programId"`
	Authority         string            `json:"authority"`
	Vault             string            `json:"vault"`
	ShareMint         string            `json:"shareMint"`
	VaultTokenAccount string            `json:"vaultTokenAccount"`
	BaseMint          string            `json:"baseMint"`
	Oracles           map[string]string `json:"oracles"`
	Feeds             map[string]string `json:"feeds"`
	Strategies        map[string]string `json:"strategies"`
	AssetWeights      map[string]uint16 `json:"assetWeights"`
	DeployedAt        time.Time         `json:"deployedAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// New returns an empty record for network.
func New(network, rpcURL, programID string) *Record {
	r := &Record{Network: network, RPCURL: rpcURL, ProgramID: programID}
	r.ensureMaps()
	return r
}

func (r *Record) ensureMaps() {
	if r.Oracles == nil {
		r.Oracles = map[string]string{}
	}
	if r.Feeds == nil {
		r.Feeds = map[string]string{}
	}
	if r.Strategies == nil {
		r.Strategies = map[string]string{}
	}
	if r.AssetWeights == nil {
		r.AssetWeights = map[string]uint16{}
	}
}

// SetOracle records the oracle account and the mint it prices.
func (r *Record) SetOracle(symbol, oracle, mint string) {
	r.ensureMaps()
	r.Oracles[symbol] = oracle
	r.Feeds[symbol] = mint
}

// SetStrategy records a strategy account by name.
func (r *Record) SetStrategy(name, address string) {
	r.ensureMaps()
	r.Strategies[name] = address
}

// SetWeights replaces the asset weights after validating them.
func (r *Record) SetWeights(weights map[string]uint16) error {
	if err := validateWeights(weights); err != nil {
		return err
	}
	r.AssetWeights = make(map[string]uint16, len(weights))
	for k, v := range weights {
		r.AssetWeights[k] = v
	}
	return nil
}

// Validate checks the required fields and the weights invariant.
func (r *Record) Validate() error {
	var errs []error
	if r.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	if r.ProgramID == "" {
		errs = append(errs, errors.New("programId is required"))
	}
	if len(r.AssetWeights) > 0 {
		if err := validateWeights(r.AssetWeights); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateWeights(weights map[string]uint16) error {
	var sum uint32
	for symbol, w := range weights {
		if w > 10000 {
			return fmt.Errorf("weight for %s exceeds 10000 bps", symbol)
		}
		sum += uint32(w)
	}
	if sum != 10000 {
		return fmt.Errorf("asset weights sum to %d bps, want 10000", sum)
	}
	return nil
}

// Load reads the record at path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("read deployment record: %w", err)
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse deployment record %s: %w", path, err)
	}
	r.ensureMaps()
	return &r, nil
}

// LoadOrNew loads the record at path, or starts a new one when none exists.
func LoadOrNew(path, network, rpcURL, programID string) (*Record, error) {
	r, err := Load(path)
	if errors.Is(err, ErrNotFound) {
		return New(network, rpcURL, programID), nil
	}
	return r, err
}

// Save validates r, stamps it and replaces the file at path through a temp
// file and rename.
func Save(path string, r *Record, now time.Time) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid deployment record: %w", err)
	}
	now = now.UTC()
	if r.DeployedAt.IsZero() {
		r.DeployedAt = now
	}
	r.UpdatedAt = now

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deployment record: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create deployment directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write deployment record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close deployment record: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename deployment record: %w", err)
	}
	return nil
}
