package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// rawExchange is the YAML shape; addresses arrive as hex strings.
type rawExchange struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	Router       string `yaml:"router"`
	Factory      string `yaml:"factory"`
	InitCodeHash string `yaml:"init_code_hash"`
}

type exchangeFile struct {
	Exchanges []rawExchange `yaml:"exchanges"`
}

// LoadExchanges reads a router registry file. Every entry must carry a
// valid router address; the pair init code hash is required for v2
// entries only.
func LoadExchanges(path string) ([]ExchangeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read exchange registry: %w", err)
	}

	var file exchangeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse exchange registry: %w", err)
	}
	if len(file.Exchanges) == 0 {
		return nil, fmt.Errorf("exchange registry %s lists no exchanges", path)
	}

	exchanges := make([]ExchangeConfig, 0, len(file.Exchanges))
	for _, raw := range file.Exchanges {
		if raw.Kind != "v2" && raw.Kind != "v3" {
			return nil, fmt.Errorf("exchange %q has unknown kind %q", raw.Name, raw.Kind)
		}
		if !common.IsHexAddress(raw.Router) {
			return nil, fmt.Errorf("exchange %q has invalid router address %q", raw.Name, raw.Router)
		}
		if !common.IsHexAddress(raw.Factory) {
			return nil, fmt.Errorf("exchange %q has invalid factory address %q", raw.Name, raw.Factory)
		}
		ex := ExchangeConfig{
			Name:    raw.Name,
			Kind:    raw.Kind,
			Router:  common.HexToAddress(raw.Router),
			Factory: common.HexToAddress(raw.Factory),
		}
		if raw.Kind == "v2" {
			if raw.InitCodeHash == "" {
				return nil, fmt.Errorf("exchange %q needs a pair init code hash", raw.Name)
			}
			ex.InitCodeHash = common.HexToHash(raw.InitCodeHash)
		}
		exchanges = append(exchanges, ex)
	}
	return exchanges, nil
}
