package deployment

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment.json")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	r := New("devnet", "https://api.devnet.solana.com", "Prog1111")
	r.Authority = "Auth1111"
	r.Vault = "Vault111"
	r.SetOracle("SOL", "Oracle11", "So11111111111111111111111111111111111111112")
	r.SetStrategy("marinade", "Strat111")
	require.NoError(t, r.SetWeights(map[string]uint16{"SOL": 7000, "USDC": 3000}))
	require.NoError(t, Save(path, r, now))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r, loaded)
	assert.Equal(t, now, loaded.DeployedAt)

	later := now.Add(time.Hour)
	require.NoError(t, Save(path, loaded, later))
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, now, again.DeployedAt)
	assert.Equal(t, later, again.UpdatedAt)
}

func TestSave_InvalidLeavesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deployment.json")
	good := New("devnet", "", "Prog1111")
	require.NoError(t, Save(path, good, time.Now()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	bad := New("devnet", "", "Prog1111")
	bad.AssetWeights["SOL"] = 9000
	assert.Error(t, Save(path, bad, time.Now()))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSetWeights(t *testing.T) {
	r := New("devnet", "", "Prog1111")
	assert.Error(t, r.SetWeights(map[string]uint16{"SOL": 5000}))
	assert.Error(t, r.SetWeights(map[string]uint16{"SOL": 10001}))
	assert.Empty(t, r.AssetWeights)
	assert.NoError(t, r.SetWeights(map[string]uint16{"SOL": 10000}))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.Is(err, ErrNotFound))

	r, err := LoadOrNew(filepath.Join(t.TempDir(), "missing.json"), "localnet", "http://127.0.0.1:8899", "Prog1111")
	require.NoError(t, err)
	assert.Equal(t, "localnet", r.Network)
	assert.NotNil(t, r.Oracles)
}

func TestValidate(t *testing.T) {
	r := &Record{}
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network")
	assert.Contains(t, err.Error(), "programId")
}
