package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DefaultPlatformFeeBps is the platform's cut of every released payment, in
// basis points (100 = 1%).
const DefaultPlatformFeeBps uint32 = 100

const maxFeeBps = 10_000

// Config carries the process-wide settings for the marketplace engine. The
// arbiter identity is read once at startup and never mutated afterwards.
type Config struct {
	RPCAddress         string `toml:"RPCAddress"`
	DataDir            string `toml:"DataDir"`
	NetworkName        string `toml:"NetworkName"`
	Env                string `toml:"Env"`
	ArbiterAddress     string `toml:"ArbiterAddress"`
	FeeTreasuryAddress string `toml:"FeeTreasuryAddress"`
	PlatformFeeBps     uint32 `toml:"PlatformFeeBps"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8660"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "workledger-local"
	}
	if cfg.PlatformFeeBps == 0 {
		cfg.PlatformFeeBps = DefaultPlatformFeeBps
	}
}

// Validate rejects configurations the engine cannot safely run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ArbiterAddress) == "" {
		return fmt.Errorf("ArbiterAddress is required")
	}
	if c.PlatformFeeBps > maxFeeBps {
		return fmt.Errorf("PlatformFeeBps %d exceeds %d", c.PlatformFeeBps, maxFeeBps)
	}
	if c.PlatformFeeBps > 0 && strings.TrimSpace(c.FeeTreasuryAddress) == "" {
		return fmt.Errorf("FeeTreasuryAddress is required when PlatformFeeBps > 0")
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ArbiterAddress:     "arbiter-local",
		FeeTreasuryAddress: "treasury-local",
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
