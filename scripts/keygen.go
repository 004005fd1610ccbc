package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/meatcoin/meatcoin/internal/auth"
)

type output struct {
	Identity   string `json:"identity"`
	PrivateKey string `json:"private_key"`
}

// Generates an ed25519 keypair for signing ledger requests. The identity
// is the public key in hex; the private key prints as its 32-byte seed.
func main() {
	format := flag.String("format", "plain", "Output format: plain or json")
	flag.Parse()

	kp, err := auth.GenerateKeypair()
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate keypair:", err)
		os.Exit(1)
	}

	out := output{
		Identity:   kp.Identity.String(),
		PrivateKey: auth.EncodePrivateKey(kp.Private),
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println("identity:   ", out.Identity)
		fmt.Println("private key:", out.PrivateKey)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}
