package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime configuration for the mintvault daemon.
type Config struct {
	ListenAddress        string `toml:"ListenAddress"`
	DataDir              string `toml:"DataDir"`
	Env                  string `toml:"Env"`
	LogFile              string `toml:"LogFile"`
	LogMaxSizeMB         int    `toml:"LogMaxSizeMB"`
	LogMaxBackups        int    `toml:"LogMaxBackups"`
	JWTSecret            string `toml:"JWTSecret"`
	BlockIntervalSeconds uint64 `toml:"BlockIntervalSeconds"`

	Risk    Risk             `toml:"risk"`
	Pauses  Pauses           `toml:"pauses"`
	Genesis []GenesisAccount `toml:"genesis"`
	// RewardTreasuryGMV pre-funds the reward treasury at first start,
	// expressed in base units as a decimal string.
	RewardTreasuryGMV string `toml:"RewardTreasuryGMV"`
}

// Risk groups the venue's published lending and auction terms.
type Risk struct {
	CollateralRatioPercent uint64 `toml:"CollateralRatioPercent"`
	InterestRatePercent    uint64 `toml:"InterestRatePercent"`
	BlocksPerYear          uint64 `toml:"BlocksPerYear"`
	AuctionWindowSeconds   int64  `toml:"AuctionWindowSeconds"`
	BorrowRewardDivisor    uint64 `toml:"BorrowRewardDivisor"`
	BidRewardDivisor       uint64 `toml:"BidRewardDivisor"`
}

// Pauses exposes switches for halting the individual module flows.
type Pauses struct {
	Position bool `toml:"Position"`
	Auction  bool `toml:"Auction"`
}

// GenesisAccount seeds a balance at first start. Amounts are decimal strings
// in base units; empty strings mean zero.
type GenesisAccount struct {
	Address string `toml:"Address"`
	VLT     string `toml:"VLT"`
	USDM    string `toml:"USDM"`
	GMV     string `toml:"GMV"`
}

// Default returns the configuration applied when no file is provided.
func Default() *Config {
	return &Config{
		ListenAddress:        "127.0.0.1:8645",
		DataDir:              "./data",
		Env:                  "dev",
		LogMaxSizeMB:         100,
		LogMaxBackups:        3,
		BlockIntervalSeconds: 1,
		Risk: Risk{
			CollateralRatioPercent: 150,
			InterestRatePercent:    5,
			BlocksPerYear:          31_536_000,
			AuctionWindowSeconds:   3600,
			BorrowRewardDivisor:    100,
			BidRewardDivisor:       50,
		},
	}
}

// Load reads the TOML configuration at path, applying defaults for missing
// fields. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engines cannot run with.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress must not be empty")
	}
	if c.Risk.CollateralRatioPercent < 100 {
		return fmt.Errorf("config: collateral ratio below 100%% would allow undercollateralized borrowing")
	}
	if c.Risk.BlocksPerYear == 0 {
		return fmt.Errorf("config: BlocksPerYear must be positive")
	}
	if c.Risk.AuctionWindowSeconds <= 0 {
		return fmt.Errorf("config: AuctionWindowSeconds must be positive")
	}
	if c.BlockIntervalSeconds == 0 {
		return fmt.Errorf("config: BlockIntervalSeconds must be positive")
	}
	for i, acc := range c.Genesis {
		if strings.TrimSpace(acc.Address) == "" {
			return fmt.Errorf("config: genesis entry %d missing address", i)
		}
		for _, amount := range []string{acc.VLT, acc.USDM, acc.GMV} {
			if _, err := ParseAmount(amount); err != nil {
				return fmt.Errorf("config: genesis entry %d: %w", i, err)
			}
		}
	}
	if _, err := ParseAmount(c.RewardTreasuryGMV); err != nil {
		return fmt.Errorf("config: RewardTreasuryGMV: %w", err)
	}
	return nil
}

// ParseAmount converts a decimal string into a non-negative big integer. An
// empty string parses as zero.
func ParseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return value, nil
}
