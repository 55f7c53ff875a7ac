package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, "127.0.0.1:8660", cfg.RPCAddress)
	require.Equal(t, "workledger-local", cfg.NetworkName)
	require.Equal(t, DefaultPlatformFeeBps, cfg.PlatformFeeBps)
	require.NotEmpty(t, cfg.ArbiterAddress)

	// The generated file loads back cleanly.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, reloaded)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
ArbiterAddress = "arbiter"
FeeTreasuryAddress = "treasury"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8660", cfg.RPCAddress)
	require.Equal(t, DefaultPlatformFeeBps, cfg.PlatformFeeBps)
	require.Equal(t, "arbiter", cfg.ArbiterAddress)
}

func TestLoadRejectsMissingArbiter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
RPCAddress = "127.0.0.1:9000"
FeeTreasuryAddress = "treasury"
`), 0o600))

	_, err := Load(path)
	require.ErrorContains(t, err, "ArbiterAddress")
}

func TestValidateRejectsExcessiveFee(t *testing.T) {
	cfg := &Config{
		ArbiterAddress:     "arbiter",
		FeeTreasuryAddress: "treasury",
		PlatformFeeBps:     10_001,
	}
	require.ErrorContains(t, cfg.Validate(), "PlatformFeeBps")
}

func TestValidateRequiresTreasuryWithFee(t *testing.T) {
	cfg := &Config{ArbiterAddress: "arbiter", PlatformFeeBps: 100}
	require.ErrorContains(t, cfg.Validate(), "FeeTreasuryAddress")

	cfg.PlatformFeeBps = 0
	require.NoError(t, cfg.Validate())
}
