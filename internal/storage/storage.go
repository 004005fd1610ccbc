// Package storage defines the persistence contract for ledger state.
// The Postgres repository implements it for production; tests use an
// in-memory implementation with the same semantics.
package storage

import (
	"context"
	"errors"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/model"
)

// Common storage errors.
var (
	ErrStateNotFound  = errors.New("global state not found")
	ErrStateExists    = errors.New("global state already exists")
	ErrRecordNotFound = errors.New("redemption record not found")
)

// Tx is the storage view a transition executes against. Rows read through
// it stay locked until the surrounding transaction ends, so conflicting
// transitions serialize: the first to commit wins, the other observes the
// committed state or is rolled back.
type Tx interface {
	// CreateState inserts the singleton state row.
	// Returns ErrStateExists if it was already created.
	CreateState(ctx context.Context, state *model.State) error

	// StateForUpdate loads and locks the singleton state row.
	StateForUpdate(ctx context.Context) (*model.State, error)

	// SaveState writes back the locked state row.
	SaveState(ctx context.Context, state *model.State) error

	// RecordForUpdate loads and locks a user's redemption record.
	RecordForUpdate(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error)

	// SaveRecord inserts or updates a user's redemption record.
	SaveRecord(ctx context.Context, record *model.RedemptionRecord) error

	// DeleteRecord removes a user's redemption record.
	// Returns ErrRecordNotFound if it does not exist.
	DeleteRecord(ctx context.Context, user identity.Identity) error
}

// Store runs transitions atomically and serves plain reads.
type Store interface {
	// Transact runs fn inside a transaction. A non-nil error from fn, or
	// any failure inside it, rolls back every write made through the Tx.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	// State reads the current global state without locking.
	State(ctx context.Context) (*model.State, error)

	// Record reads a user's redemption record without locking.
	Record(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error)
}
