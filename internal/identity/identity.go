// Package identity defines the 32-byte identity type used for every party
// in the ledger (admin, users, token accounts) and the deterministic
// derivation of program-controlled authorities from fixed seed labels.
package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Size is the byte length of an identity.
const Size = 32

// Seed labels for derived locations. These are fixed for the lifetime of
// the system; anyone can reproduce a derived address from them.
const (
	SeedState      = "state"
	SeedTreasury   = "treasury"
	SeedRedemption = "redemption"
)

// derivationDomain separates ledger derivations from any other use of the
// same hash function.
const derivationDomain = "meatcoin:v1:"

// ErrInvalidIdentity indicates a malformed identity encoding.
var ErrInvalidIdentity = errors.New("invalid identity encoding")

// Identity is an opaque 32-byte value identifying a party or account.
type Identity [Size]byte

// Zero is the empty identity. It is never a valid admin, treasury, or user.
var Zero Identity

// Parse decodes a 64-character hex string into an Identity.
func Parse(s string) (Identity, error) {
	var id Identity
	if len(s) != Size*2 {
		return id, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidIdentity, Size*2, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}
	copy(id[:], b)
	return id, nil
}

// FromBytes copies a 32-byte slice into an Identity.
func FromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != Size {
		return id, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidIdentity, Size, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// FromPublicKey converts an ed25519 public key into an Identity.
func FromPublicKey(pub ed25519.PublicKey) (Identity, error) {
	return FromBytes(pub)
}

// String returns the lowercase hex encoding.
func (id Identity) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns the first 8 hex characters, for log output.
func (id Identity) Short() string {
	return id.String()[:8]
}

// IsZero reports whether the identity is the empty identity.
func (id Identity) IsZero() bool {
	return id == Zero
}

// Bytes returns a copy of the raw identity bytes.
func (id Identity) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

// Derive computes a program-controlled identity from a seed label and a
// salt. The derivation is pure: the ledger side recomputes it to verify
// authority, so no private key exists for derived identities.
func Derive(label string, salt byte) Identity {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(derivationDomain))
	h.Write([]byte(label))
	h.Write([]byte{salt})
	var id Identity
	copy(id[:], h.Sum(nil))
	return id
}

// DeriveFor computes a per-user derived identity from a seed label and the
// user's identity. Used for redemption record addresses.
func DeriveFor(label string, user Identity) Identity {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(derivationDomain))
	h.Write([]byte(label))
	h.Write(user[:])
	var id Identity
	copy(id[:], h.Sum(nil))
	return id
}

// FindAuthority searches salts downward from 255 and returns the first
// salt whose derived identity is usable (non-zero), along with that
// identity. The salt is recorded in state so the same authority can be
// reconstructed later.
func FindAuthority(label string) (Identity, byte) {
	for salt := 255; salt >= 0; salt-- {
		id := Derive(label, byte(salt))
		if !id.IsZero() {
			return id, byte(salt)
		}
	}
	// Unreachable: a 256-bit hash does not produce the zero value for
	// all 256 salts.
	return Zero, 0
}

// StateAddress returns the well-known derived location of the global state.
func StateAddress(salt byte) Identity {
	return Derive(SeedState, salt)
}

// TreasuryAddress returns the derived location of the treasury holding
// account for the given salt.
func TreasuryAddress(salt byte) Identity {
	return Derive(SeedTreasury, salt)
}

// RecordAddress returns the derived location of a user's redemption record.
func RecordAddress(user Identity) Identity {
	return DeriveFor(SeedRedemption, user)
}
