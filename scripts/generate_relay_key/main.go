// Generates a fresh secp256k1 key. The relay tracks reputation per
// signing identity, so generate one key per deployment and reuse it.
package main

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	key, err := crypto.GenerateKey()
	if err != nil {
		log.Fatal("Failed to generate key:", err)
	}

	fmt.Printf("PRIVATE_KEY=0x%x\n", crypto.FromECDSA(key))
	fmt.Printf("Address: %s\n", crypto.PubkeyToAddress(key.PublicKey).Hex())
}
