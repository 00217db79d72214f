package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:8645", cfg.ListenAddress)
	require.Equal(t, uint64(150), cfg.Risk.CollateralRatioPercent)
	require.Equal(t, uint64(5), cfg.Risk.InterestRatePercent)
	require.Equal(t, uint64(31_536_000), cfg.Risk.BlocksPerYear)
	require.Equal(t, int64(3600), cfg.Risk.AuctionWindowSeconds)
	require.Equal(t, uint64(100), cfg.Risk.BorrowRewardDivisor)
	require.Equal(t, uint64(50), cfg.Risk.BidRewardDivisor)
	require.Equal(t, uint64(1), cfg.BlockIntervalSeconds)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = "0.0.0.0:9000"
DataDir = ":memory:"
JWTSecret = "topsecret"
BlockIntervalSeconds = 5

[risk]
CollateralRatioPercent = 200
InterestRatePercent = 10
BlocksPerYear = 100
AuctionWindowSeconds = 600

[pauses]
Auction = true

[[genesis]]
Address = "mv1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq5affrp"
VLT = "1000000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.ListenAddress)
	require.Equal(t, ":memory:", cfg.DataDir)
	require.Equal(t, "topsecret", cfg.JWTSecret)
	require.Equal(t, uint64(5), cfg.BlockIntervalSeconds)
	require.Equal(t, uint64(200), cfg.Risk.CollateralRatioPercent)
	require.Equal(t, uint64(10), cfg.Risk.InterestRatePercent)
	require.Equal(t, uint64(100), cfg.Risk.BlocksPerYear)
	require.Equal(t, int64(600), cfg.Risk.AuctionWindowSeconds)
	require.False(t, cfg.Pauses.Position)
	require.True(t, cfg.Pauses.Auction)
	require.Len(t, cfg.Genesis, 1)
	require.Equal(t, "1000000", cfg.Genesis[0].VLT)
	// Untouched sections keep their defaults.
	require.Equal(t, uint64(100), cfg.Risk.BorrowRewardDivisor)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = " " }},
		{"collateral ratio below 100", func(c *Config) { c.Risk.CollateralRatioPercent = 99 }},
		{"zero blocks per year", func(c *Config) { c.Risk.BlocksPerYear = 0 }},
		{"non-positive auction window", func(c *Config) { c.Risk.AuctionWindowSeconds = 0 }},
		{"zero block interval", func(c *Config) { c.BlockIntervalSeconds = 0 }},
		{"genesis missing address", func(c *Config) {
			c.Genesis = []GenesisAccount{{VLT: "100"}}
		}},
		{"genesis negative amount", func(c *Config) {
			c.Genesis = []GenesisAccount{{Address: "mv1xyz", VLT: "-5"}}
		}},
		{"bad treasury amount", func(c *Config) { c.RewardTreasuryGMV = "abc" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("")
	require.NoError(t, err)
	require.Zero(t, amount.Sign())

	amount, err = ParseAmount("  123456789  ")
	require.NoError(t, err)
	require.Zero(t, amount.Cmp(big.NewInt(123456789)))

	_, err = ParseAmount("-1")
	require.Error(t, err)

	_, err = ParseAmount("12.5")
	require.Error(t, err)
}
