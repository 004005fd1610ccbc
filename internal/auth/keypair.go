package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// ErrInvalidPrivateKey indicates a malformed private key encoding.
var ErrInvalidPrivateKey = errors.New("invalid private key encoding")

// Keypair bundles a signing key with its ledger identity.
type Keypair struct {
	Identity identity.Identity
	Public   ed25519.PublicKey
	Private  ed25519.PrivateKey
}

// GenerateKeypair creates a fresh ed25519 keypair.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	id, err := identity.FromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return &Keypair{Identity: id, Public: pub, Private: priv}, nil
}

// EncodePrivateKey returns the hex seed of a private key. The full key is
// reconstructed from the seed, so 32 bytes is the whole secret.
func EncodePrivateKey(priv ed25519.PrivateKey) string {
	return hex.EncodeToString(priv.Seed())
}

// ParsePrivateKey reconstructs a private key from its hex seed.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	if len(s) != ed25519.SeedSize*2 {
		return nil, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidPrivateKey, ed25519.SeedSize*2, len(s))
	}
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
