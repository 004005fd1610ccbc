// Package tokenledger defines the Token Ledger collaborator: the external
// system of record for mint supply, balances, and transfers. The core never
// stores balances itself; it directs the ledger through this interface and
// keeps only its own derived bookkeeping.
package tokenledger

import (
	"context"
	"errors"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// Ledger errors.
var (
	ErrMintNotFound      = errors.New("mint not found")
	ErrMintExists        = errors.New("mint already exists")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountExists     = errors.New("token account already exists")
	ErrMintMismatch      = errors.New("token account belongs to a different mint")
	ErrNotMintAuthority  = errors.New("caller is not the mint authority")
	ErrNotOwner          = errors.New("caller does not own the source account")
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrSupplyOverflow    = errors.New("mint supply overflow")
	ErrBalanceOverflow   = errors.New("token balance overflow")
)

// TokenAccount is a holding account on the ledger.
type TokenAccount struct {
	Address identity.Identity `json:"address"`
	Mint    identity.Identity `json:"mint"`
	Owner   identity.Identity `json:"owner"`
	Balance uint64            `json:"balance"`
}

// Ledger is the operation surface the core needs from the token ledger.
// Each call either fully applies or fails with no effect; the ledger
// verifies authority itself, recomputing derived identities where needed.
type Ledger interface {
	// CreateMint registers a mint with its initial minting authority.
	CreateMint(ctx context.Context, mint, authority identity.Identity) error

	// SetMintAuthority moves minting power from current to next.
	// Fails with ErrNotMintAuthority if current does not hold it.
	SetMintAuthority(ctx context.Context, mint, current, next identity.Identity) error

	// CreateAccount creates an empty holding account for a mint.
	CreateAccount(ctx context.Context, addr, mint, owner identity.Identity) error

	// Mint issues amount new tokens to the account at to, authorized by
	// the mint authority.
	Mint(ctx context.Context, mint, authority, to identity.Identity, amount uint64) error

	// Transfer moves amount tokens between accounts of the same mint,
	// authorized by the owner of from.
	Transfer(ctx context.Context, from, to, owner identity.Identity, amount uint64) error

	// Account returns the current account snapshot.
	Account(ctx context.Context, addr identity.Identity) (*TokenAccount, error)
}
