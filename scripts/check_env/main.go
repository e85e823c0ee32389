// Preflight for a deployment environment: loads .env, reports which
// variables the engine reads are set, and verifies the signing key
// parses. Exits nonzero if anything required is missing.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/polymev/flasharb/config"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Println("no .env file, checking the process environment")
	}

	required := []string{config.EnvWSURL, config.EnvContract, config.EnvPrivateKey}
	optional := []string{config.EnvRPCURL, config.EnvRelayURL}

	missing := 0
	for _, name := range required {
		if os.Getenv(name) == "" {
			fmt.Printf("MISSING  %s\n", name)
			missing++
			continue
		}
		fmt.Printf("ok       %s\n", name)
	}
	for _, name := range optional {
		if os.Getenv(name) == "" {
			fmt.Printf("default  %s\n", name)
			continue
		}
		fmt.Printf("ok       %s\n", name)
	}

	if raw := os.Getenv(config.EnvPrivateKey); raw != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			fmt.Printf("BAD      %s does not parse: %v\n", config.EnvPrivateKey, err)
			os.Exit(1)
		}
		fmt.Printf("signer   %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
	}

	if missing > 0 {
		os.Exit(1)
	}
}
