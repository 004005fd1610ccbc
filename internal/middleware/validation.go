package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// Validation limits.
const (
	// MaxAmountDigits is the maximum digits in a decimal amount string.
	// A u64 never needs more than 20.
	MaxAmountDigits = 20

	// MaxTransitionBodySize is the max allowed transition request body.
	// Transition payloads are a handful of hex identities and an amount.
	MaxTransitionBodySize = 4 << 10 // 4KB
)

// Validation errors.
var (
	ErrIdentityInvalid = errors.New("identity must be 64 lowercase hex characters")
	ErrAmountInvalid   = errors.New("amount must be a decimal u64 string")
	ErrAmountZero      = errors.New("amount must be greater than zero")
)

// ValidateIdentity checks that a request field is a well-formed, non-zero
// identity and returns it parsed.
func ValidateIdentity(s string) (identity.Identity, error) {
	if s != strings.ToLower(s) {
		return identity.Zero, ErrIdentityInvalid
	}
	id, err := identity.Parse(s)
	if err != nil {
		return identity.Zero, ErrIdentityInvalid
	}
	return id, nil
}

// ValidateAmount parses a decimal amount string. Amounts cross the wire as
// strings so the full u64 range survives JSON.
func ValidateAmount(s string) (uint64, error) {
	if s == "" || len(s) > MaxAmountDigits {
		return 0, ErrAmountInvalid
	}
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, ErrAmountInvalid
	}
	return amount, nil
}

// ValidatePositiveAmount parses a decimal amount string and rejects zero.
func ValidatePositiveAmount(s string) (uint64, error) {
	amount, err := ValidateAmount(s)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrAmountZero
	}
	return amount, nil
}
