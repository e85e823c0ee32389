package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvRPCURL     = "POLYGON_RPC_URL"
	EnvWSURL      = "POLYGON_WS_URL"
	EnvContract   = "FLASH_LOAN_CONTRACT"
	EnvRelayURL   = "FASTLANE_RELAY_URL"
	EnvPrivateKey = "PRIVATE_KEY"
)

// LoadEnv loads environment variables from a .env file.
func LoadEnv() error {
	return godotenv.Load()
}

// ApplyEnv overlays environment variables onto the config. Unset
// variables leave the config untouched.
func ApplyEnv(cfg *Config) {
	cfg.RPCEndpoint = GetEnvWithDefault(EnvRPCURL, cfg.RPCEndpoint)
	cfg.WSEndpoint = GetEnvWithDefault(EnvWSURL, cfg.WSEndpoint)
	cfg.RelayURL = GetEnvWithDefault(EnvRelayURL, cfg.RelayURL)
	cfg.PrivateKey = GetEnvWithDefault(EnvPrivateKey, cfg.PrivateKey)

	if contract := os.Getenv(EnvContract); contract != "" && common.IsHexAddress(contract) {
		cfg.EngineAddress = common.HexToAddress(contract)
	}
}

// GetEnvWithDefault gets an environment variable with a default value.
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetRequiredEnv gets an environment variable that must be set.
func GetRequiredEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", key)
	}
	return value, nil
}
