package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polymev/flasharb/apperror"
)

var (
	owner    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	stranger = common.HexToAddress("0x00000000000000000000000000000000000000a2")
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Owner = owner
	return cfg
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validConfig().ValidateConfig())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing owner", func(c *Config) { c.Owner = common.Address{} }, "owner must be specified"},
		{"zero delay window", func(c *Config) { c.MaxDelayBlocks = 0 }, "max_delay_blocks must be between 1 and 10"},
		{"oversized delay window", func(c *Config) { c.MaxDelayBlocks = 11 }, "max_delay_blocks must be between 1 and 10"},
		{"zero default fee", func(c *Config) { c.DefaultFee = 0 }, "default_fee must be positive"},
		{"no exchanges", func(c *Config) { c.Exchanges = nil }, "at least one exchange"},
		{"missing chain id", func(c *Config) { c.ChainID = 0 }, "chain_id must be specified"},
		{"no profit threshold", func(c *Config) { c.MinProfitThreshold = nil }, "min_profit_threshold must be positive"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestOwnerGatedSetters(t *testing.T) {
	relay := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	coordinator := common.HexToAddress("0x00000000000000000000000000000000000000b2")

	t.Run("owner may update", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.SetRelayAddress(owner, relay))
		require.NoError(t, cfg.SetCoordinator(owner, coordinator))
		require.NoError(t, cfg.SetMaxDelayBlocks(owner, 5))
		require.NoError(t, cfg.SetDefaultFee(owner, 500))

		assert.Equal(t, relay, cfg.GetRelayAddress())
		assert.Equal(t, coordinator, cfg.GetCoordinator())
		assert.Equal(t, uint64(5), cfg.GetMaxDelayBlocks())
		assert.Equal(t, uint64(500), cfg.GetDefaultFee())
	})

	t.Run("stranger may not", func(t *testing.T) {
		cfg := validConfig()
		assert.True(t, apperror.IsAuthorization(cfg.SetRelayAddress(stranger, relay)))
		assert.True(t, apperror.IsAuthorization(cfg.SetCoordinator(stranger, coordinator)))
		assert.True(t, apperror.IsAuthorization(cfg.SetMaxDelayBlocks(stranger, 5)))
		assert.True(t, apperror.IsAuthorization(cfg.SetDefaultFee(stranger, 500)))
		assert.True(t, apperror.IsAuthorization(cfg.TransferOwnership(stranger, stranger)))
	})

	t.Run("delay window bounds", func(t *testing.T) {
		cfg := validConfig()
		assert.True(t, apperror.IsValidation(cfg.SetMaxDelayBlocks(owner, 0)))
		assert.True(t, apperror.IsValidation(cfg.SetMaxDelayBlocks(owner, 11)))
		require.NoError(t, cfg.SetMaxDelayBlocks(owner, 10))
	})

	t.Run("zero addresses rejected", func(t *testing.T) {
		cfg := validConfig()
		assert.True(t, apperror.IsValidation(cfg.SetRelayAddress(owner, common.Address{})))
		assert.True(t, apperror.IsValidation(cfg.SetCoordinator(owner, common.Address{})))
		assert.True(t, apperror.IsValidation(cfg.TransferOwnership(owner, common.Address{})))
	})

	t.Run("ownership transfer moves the gate", func(t *testing.T) {
		cfg := validConfig()
		require.NoError(t, cfg.TransferOwnership(owner, stranger))
		assert.Equal(t, stranger, cfg.GetOwner())
		assert.True(t, apperror.IsAuthorization(cfg.SetMaxDelayBlocks(owner, 5)))
		require.NoError(t, cfg.SetMaxDelayBlocks(stranger, 5))
	})
}

func TestLoadExchanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routers.yaml")

	good := `exchanges:
  - name: QuickSwap
    kind: v2
    router: "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"
    factory: "0x5757371414417b8c6caad45baef941abc7d3ab32"
    init_code_hash: "0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"
  - name: UniswapV3
    kind: v3
    router: "0xE592427A0AEce92De3Edee1F18E0157C05861564"
    factory: "0x1F98431c8aD98523631AE4a59f267346ea31F984"
`
	require.NoError(t, os.WriteFile(path, []byte(good), 0o644))

	exchanges, err := LoadExchanges(path)
	require.NoError(t, err)
	require.Len(t, exchanges, 2)
	assert.Equal(t, "QuickSwap", exchanges[0].Name)
	assert.Equal(t, common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"), exchanges[0].Router)
	assert.NotEqual(t, common.Hash{}, exchanges[0].InitCodeHash)
	assert.Equal(t, "v3", exchanges[1].Kind)

	t.Run("v2 needs init code hash", func(t *testing.T) {
		bad := `exchanges:
  - name: Broken
    kind: v2
    router: "0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"
    factory: "0x5757371414417b8c6caad45baef941abc7d3ab32"
`
		badPath := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(badPath, []byte(bad), 0o644))
		_, err := LoadExchanges(badPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "init code hash")
	})

	t.Run("invalid address", func(t *testing.T) {
		bad := `exchanges:
  - name: Broken
    kind: v3
    router: "not-an-address"
    factory: "0x1F98431c8aD98523631AE4a59f267346ea31F984"
`
		badPath := filepath.Join(dir, "badaddr.yaml")
		require.NoError(t, os.WriteFile(badPath, []byte(bad), 0o644))
		_, err := LoadExchanges(badPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid router address")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadExchanges(filepath.Join(dir, "nope.yaml"))
		require.Error(t, err)
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := validConfig()
	original := cfg.RPCEndpoint

	t.Setenv(EnvRPCURL, "https://rpc.example.org")
	t.Setenv(EnvContract, "0x00000000000000000000000000000000000000c3")
	t.Setenv(EnvPrivateKey, "deadbeef")

	ApplyEnv(cfg)
	assert.NotEqual(t, original, cfg.RPCEndpoint)
	assert.Equal(t, "https://rpc.example.org", cfg.RPCEndpoint)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000c3"), cfg.EngineAddress)
	assert.Equal(t, "deadbeef", cfg.PrivateKey)
}

func TestLoadConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := validConfig()
	cfg.MaxDelayBlocks = 7
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, owner, loaded.GetOwner())
	assert.Equal(t, uint64(7), loaded.GetMaxDelayBlocks())
	assert.Equal(t, uint64(137), loaded.ChainID)
}

func TestLoadConfigDerivesOwnerFromKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := DefaultConfig()
	require.NoError(t, SaveConfig(cfg, path))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	t.Setenv(EnvPrivateKey, common.Bytes2Hex(crypto.FromECDSA(key)))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), loaded.GetOwner())
}
