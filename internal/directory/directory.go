// Package directory defines the Account Directory collaborator: the
// substrate that derives storage addresses and charges/refunds storage
// deposits for per-user record accounts.
package directory

import (
	"context"
	"errors"
	"sync"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// ErrNoRecord indicates the user has no open record storage.
var ErrNoRecord = errors.New("no record storage for user")

// Directory is the operation surface the core needs from the account
// directory. Creation is idempotent; closing refunds the deposit to the
// user and is only valid while storage is open.
type Directory interface {
	// RecordAddress derives the storage address for a user's record.
	RecordAddress(user identity.Identity) identity.Identity

	// OpenRecord ensures record storage exists for the user and returns
	// the deposit charged (zero if storage was already open).
	OpenRecord(ctx context.Context, user identity.Identity) (uint64, error)

	// CloseRecord destroys the user's record storage and returns the
	// deposit refunded to the user.
	CloseRecord(ctx context.Context, user identity.Identity) (uint64, error)
}

// Memory is the embedded in-process directory implementation.
type Memory struct {
	mu      sync.Mutex
	deposit uint64
	open    map[identity.Identity]uint64
}

// NewMemory creates a directory charging the given deposit per record.
func NewMemory(deposit uint64) *Memory {
	return &Memory{
		deposit: deposit,
		open:    make(map[identity.Identity]uint64),
	}
}

// RecordAddress derives the storage address for a user's record.
func (m *Memory) RecordAddress(user identity.Identity) identity.Identity {
	return identity.RecordAddress(user)
}

// OpenRecord ensures record storage exists for the user.
func (m *Memory) OpenRecord(_ context.Context, user identity.Identity) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.open[user]; ok {
		return 0, nil
	}
	m.open[user] = m.deposit
	return m.deposit, nil
}

// CloseRecord destroys the user's record storage and refunds the deposit.
func (m *Memory) CloseRecord(_ context.Context, user identity.Identity) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deposit, ok := m.open[user]
	if !ok {
		return 0, ErrNoRecord
	}
	delete(m.open, user)
	return deposit, nil
}
