package config

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/polymev/flasharb/apperror"
)

// Bounds on the bundle submission window.
const (
	MinDelayBound = 1
	MaxDelayBound = 10
)

type Config struct {
	// Chain and network settings
	ChainID     uint64 `json:"chain_id"`
	RPCEndpoint string `json:"rpc_endpoint"`
	WSEndpoint  string `json:"ws_endpoint"`
	RelayURL    string `json:"relay_url"`

	// Execution surface. Owner, Coordinator, RelayAddress,
	// MaxDelayBlocks and DefaultFee are runtime-mutable through the
	// owner-gated setters only.
	Owner          common.Address `json:"owner"`
	Coordinator    common.Address `json:"coordinator"`
	RelayAddress   common.Address `json:"relay_address"`
	EngineAddress  common.Address `json:"engine_address"`
	PoolFactory    common.Address `json:"pool_factory"`
	MaxDelayBlocks uint64         `json:"max_delay_blocks"`
	DefaultFee     uint64         `json:"default_fee"`

	// Exchanges and tokens
	Exchanges []ExchangeConfig          `json:"exchanges"`
	Tokens    map[string]common.Address `json:"tokens"`

	// Performance thresholds
	MinProfitThreshold *big.Int `json:"min_profit_threshold"`
	MaxGasPrice        *big.Int `json:"max_gas_price"`
	MaxPendingTxns     int      `json:"max_pending_txns"`
	Workers            int      `json:"workers"`

	// Network settings
	NetworkTimeout   time.Duration `json:"network_timeout"`
	ReconnectBackoff time.Duration `json:"reconnect_backoff"`
	MaxReconnects    int           `json:"max_reconnects"`
	MetricsInterval  time.Duration `json:"metrics_interval"`
	RateLimit        float64       `json:"rate_limit"`
	RateBurst        int           `json:"rate_burst"`
	CPUAffinity      []int         `json:"cpu_affinity"`

	// Secrets, environment only
	PrivateKey string `json:"-"`

	// Internal components
	Logger *zap.Logger `json:"-"`

	mu sync.RWMutex
}

// ExchangeConfig describes one registered router deployment.
type ExchangeConfig struct {
	Name         string         `json:"name" yaml:"name"`
	Kind         string         `json:"kind" yaml:"kind"` // "v2" or "v3"
	Router       common.Address `json:"router" yaml:"-"`
	Factory      common.Address `json:"factory" yaml:"-"`
	InitCodeHash common.Hash    `json:"init_code_hash" yaml:"-"`
}

// GetOwner returns the current owner.
func (c *Config) GetOwner() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Owner
}

// GetCoordinator returns the current coordinator.
func (c *Config) GetCoordinator() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Coordinator
}

// GetRelayAddress returns the current relay signer address.
func (c *Config) GetRelayAddress() common.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RelayAddress
}

// GetMaxDelayBlocks returns the current bundle window bound.
func (c *Config) GetMaxDelayBlocks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxDelayBlocks
}

// GetDefaultFee returns the default pool fee tier.
func (c *Config) GetDefaultFee() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DefaultFee
}

func (c *Config) requireOwner(caller common.Address) error {
	if caller != c.Owner {
		return apperror.Authorization("caller %s is not the owner", caller.Hex())
	}
	return nil
}

// SetRelayAddress updates the relay signer address. Owner only.
func (c *Config) SetRelayAddress(caller, relay common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if relay == (common.Address{}) {
		return apperror.Validation("relay address must not be zero")
	}
	c.RelayAddress = relay
	return nil
}

// SetCoordinator updates the solver coordinator address. Owner only.
func (c *Config) SetCoordinator(caller, coordinator common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if coordinator == (common.Address{}) {
		return apperror.Validation("coordinator address must not be zero")
	}
	c.Coordinator = coordinator
	return nil
}

// SetMaxDelayBlocks updates the bundle window bound. Owner only;
// the bound stays within [1, 10].
func (c *Config) SetMaxDelayBlocks(caller common.Address, blocks uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if blocks < MinDelayBound || blocks > MaxDelayBound {
		return apperror.Validation("max delay blocks %d out of range [%d, %d]", blocks, MinDelayBound, MaxDelayBound)
	}
	c.MaxDelayBlocks = blocks
	return nil
}

// SetDefaultFee updates the default pool fee tier. Owner only.
func (c *Config) SetDefaultFee(caller common.Address, fee uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if fee == 0 {
		return apperror.Validation("default fee must be positive")
	}
	c.DefaultFee = fee
	return nil
}

// TransferOwnership hands the owner role to a new address. Owner only.
func (c *Config) TransferOwnership(caller, newOwner common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return apperror.Validation("new owner must not be zero")
	}
	c.Owner = newOwner
	return nil
}

func (c *Config) ValidateConfig() error {
	var errors []string

	// Validate chain and network settings
	if c.ChainID == 0 {
		errors = append(errors, "chain_id must be specified")
	}
	if c.RPCEndpoint == "" {
		errors = append(errors, "rpc_endpoint must be specified")
	}
	if c.WSEndpoint == "" {
		errors = append(errors, "ws_endpoint must be specified")
	}

	// Validate the execution surface
	if c.Owner == (common.Address{}) {
		errors = append(errors, "owner must be specified")
	}
	if c.MaxDelayBlocks < MinDelayBound || c.MaxDelayBlocks > MaxDelayBound {
		errors = append(errors, fmt.Sprintf("max_delay_blocks must be between %d and %d", MinDelayBound, MaxDelayBound))
	}
	if c.DefaultFee == 0 {
		errors = append(errors, "default_fee must be positive")
	}
	if len(c.Exchanges) == 0 {
		errors = append(errors, "at least one exchange must be configured")
	}
	for _, ex := range c.Exchanges {
		if ex.Router == (common.Address{}) {
			errors = append(errors, fmt.Sprintf("exchange %q has no router address", ex.Name))
		}
		if ex.Kind != "v2" && ex.Kind != "v3" {
			errors = append(errors, fmt.Sprintf("exchange %q has unknown kind %q", ex.Name, ex.Kind))
		}
	}

	// Validate performance thresholds
	if c.MinProfitThreshold == nil || c.MinProfitThreshold.Sign() <= 0 {
		errors = append(errors, "min_profit_threshold must be positive")
	}
	if c.MaxGasPrice == nil || c.MaxGasPrice.Sign() <= 0 {
		errors = append(errors, "max_gas_price must be positive")
	}
	if c.MaxPendingTxns <= 0 {
		errors = append(errors, "max_pending_txns must be positive")
	}
	if c.Workers <= 0 {
		errors = append(errors, "workers must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// LoadConfig reads the JSON config file over the Polygon defaults,
// applies environment overrides and validates the result. When no path
// is given and the default file does not exist, the defaults plus
// environment stand alone. A missing explicit path is an error.
func LoadConfig(cfgFile string) (*Config, error) {
	explicit := cfgFile != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfgFile = filepath.Join(home, ".flasharb.json")
	}

	config := DefaultConfig()

	file, err := os.Open(cfgFile)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	case os.IsNotExist(err) && !explicit:
		// Environment-only operation.
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	ApplyEnv(config)

	// The key holder is the owner unless the file says otherwise.
	if config.Owner == (common.Address{}) && config.PrivateKey != "" {
		if key, err := crypto.HexToECDSA(strings.TrimPrefix(config.PrivateKey, "0x")); err == nil {
			config.Owner = crypto.PubkeyToAddress(key.PublicKey)
		}
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	config.Logger = logger

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig writes the config back out as indented JSON.
func SaveConfig(cfg *Config, cfgFile string) error {
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		cfgFile = filepath.Join(home, ".flasharb.json")
	}

	file, err := os.Create(cfgFile)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "    ")
	return encoder.Encode(cfg)
}

// DefaultConfig carries the Polygon mainnet address book.
func DefaultConfig() *Config {
	return &Config{
		Logger:      zap.NewNop(),
		ChainID:     137,
		RPCEndpoint: "https://polygon-rpc.com",
		WSEndpoint:  "wss://polygon-rpc.com",
		RelayURL:    "https://polygon-rpc.fastlane.xyz",

		PoolFactory:    common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		MaxDelayBlocks: 3,
		DefaultFee:     3000,

		Exchanges: DefaultExchanges(),
		Tokens: map[string]common.Address{
			"WMATIC": common.HexToAddress("0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"),
			"USDC":   common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
			"USDT":   common.HexToAddress("0xc2132D05D31c914a87C6611C10748AEb04B58e8F"),
		},

		MinProfitThreshold: big.NewInt(100000000000000000), // 0.1 WMATIC
		MaxGasPrice:        big.NewInt(500000000000),       // 500 Gwei
		MaxPendingTxns:     100,
		Workers:            4,

		NetworkTimeout:   5 * time.Second,
		ReconnectBackoff: 1 * time.Second,
		MaxReconnects:    3,
		MetricsInterval:  10 * time.Second,
		RateLimit:        50,
		RateBurst:        100,
	}
}

// DefaultExchanges lists the Polygon router deployments.
func DefaultExchanges() []ExchangeConfig {
	return []ExchangeConfig{
		{
			Name:         "QuickSwap",
			Kind:         "v2",
			Router:       common.HexToAddress("0xa5E0829CaCEd8fFDD4De3c43696c57F7D7A678ff"),
			Factory:      common.HexToAddress("0x5757371414417b8c6caad45baef941abc7d3ab32"),
			InitCodeHash: common.HexToHash("0x96e8ac4277198ff8b6f785478aa9a39f403cb768dd02cbee326c3e7da348845f"),
		},
		{
			Name:         "SushiSwap",
			Kind:         "v2",
			Router:       common.HexToAddress("0x1b02dA8Cb0d097eB8D57A175b88c7D8b47997506"),
			Factory:      common.HexToAddress("0xc35DADB65012eC5796536bD9864eD8773aBc74C4"),
			InitCodeHash: common.HexToHash("0xe18a34eb0e04b04f7a0ac29a6e80748dca96319b42c54d679cb821dca90c6303"),
		},
		{
			Name:    "UniswapV3",
			Kind:    "v3",
			Router:  common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564"),
			Factory: common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		},
	}
}
