package tokenledger

import (
	"context"
	"math"
	"sync"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// Memory is the embedded in-process ledger implementation. It is the
// default collaborator in development and tests; a remote ledger would
// implement the same interface.
type Memory struct {
	mu       sync.Mutex
	mints    map[identity.Identity]*mintInfo
	accounts map[identity.Identity]*TokenAccount
}

type mintInfo struct {
	authority identity.Identity
	supply    uint64
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		mints:    make(map[identity.Identity]*mintInfo),
		accounts: make(map[identity.Identity]*TokenAccount),
	}
}

// CreateMint registers a mint with its initial minting authority.
func (m *Memory) CreateMint(_ context.Context, mint, authority identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mints[mint]; ok {
		return ErrMintExists
	}
	m.mints[mint] = &mintInfo{authority: authority}
	return nil
}

// SetMintAuthority moves minting power from current to next.
func (m *Memory) SetMintAuthority(_ context.Context, mint, current, next identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.mints[mint]
	if !ok {
		return ErrMintNotFound
	}
	if info.authority != current {
		return ErrNotMintAuthority
	}
	info.authority = next
	return nil
}

// CreateAccount creates an empty holding account for a mint.
func (m *Memory) CreateAccount(_ context.Context, addr, mint, owner identity.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mints[mint]; !ok {
		return ErrMintNotFound
	}
	if _, ok := m.accounts[addr]; ok {
		return ErrAccountExists
	}
	m.accounts[addr] = &TokenAccount{Address: addr, Mint: mint, Owner: owner}
	return nil
}

// Mint issues new tokens to an existing account.
func (m *Memory) Mint(_ context.Context, mint, authority, to identity.Identity, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.mints[mint]
	if !ok {
		return ErrMintNotFound
	}
	if info.authority != authority {
		return ErrNotMintAuthority
	}

	acct, ok := m.accounts[to]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Mint != mint {
		return ErrMintMismatch
	}
	if amount > math.MaxUint64-info.supply {
		return ErrSupplyOverflow
	}
	if amount > math.MaxUint64-acct.Balance {
		return ErrBalanceOverflow
	}

	info.supply += amount
	acct.Balance += amount
	return nil
}

// Transfer moves tokens between accounts of the same mint.
func (m *Memory) Transfer(_ context.Context, from, to, owner identity.Identity, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.accounts[from]
	if !ok {
		return ErrAccountNotFound
	}
	dst, ok := m.accounts[to]
	if !ok {
		return ErrAccountNotFound
	}
	if src.Owner != owner {
		return ErrNotOwner
	}
	if src.Mint != dst.Mint {
		return ErrMintMismatch
	}
	if src.Balance < amount {
		return ErrInsufficientFunds
	}
	if amount > math.MaxUint64-dst.Balance {
		return ErrBalanceOverflow
	}

	src.Balance -= amount
	dst.Balance += amount
	return nil
}

// Account returns a snapshot of the account at addr.
func (m *Memory) Account(_ context.Context, addr identity.Identity) (*TokenAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	snapshot := *acct
	return &snapshot, nil
}

// Supply returns the total issued supply for a mint.
func (m *Memory) Supply(_ context.Context, mint identity.Identity) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.mints[mint]
	if !ok {
		return 0, ErrMintNotFound
	}
	return info.supply, nil
}
