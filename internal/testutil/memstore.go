package testutil

import (
	"context"
	"sync"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/model"
	"github.com/meatcoin/meatcoin/internal/storage"
)

// MemStore is an in-memory storage.Store with the same transactional
// semantics as the Postgres repository: writes inside Transact become
// visible only on commit, and any error from the closure discards them.
type MemStore struct {
	mu      sync.Mutex
	state   *model.State
	records map[identity.Identity]*model.RedemptionRecord
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[identity.Identity]*model.RedemptionRecord),
	}
}

// Transact runs fn against a staged copy of the store, committing on nil.
// Transactions serialize on a single mutex.
func (m *MemStore) Transact(ctx context.Context, fn func(tx storage.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{
		state:   copyState(m.state),
		records: make(map[identity.Identity]*model.RedemptionRecord, len(m.records)),
	}
	for user, record := range m.records {
		tx.records[user] = copyRecord(record)
	}

	if err := fn(tx); err != nil {
		return err
	}

	m.state = tx.state
	m.records = tx.records
	return nil
}

// State reads the current global state without locking rows.
func (m *MemStore) State(ctx context.Context) (*model.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil, storage.ErrStateNotFound
	}
	return copyState(m.state), nil
}

// Record reads a user's redemption record without locking rows.
func (m *MemStore) Record(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[user]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return copyRecord(record), nil
}

// memTx is the staged view a transaction runs against.
type memTx struct {
	state   *model.State
	records map[identity.Identity]*model.RedemptionRecord
}

func (tx *memTx) CreateState(ctx context.Context, state *model.State) error {
	if tx.state != nil {
		return storage.ErrStateExists
	}
	tx.state = copyState(state)
	return nil
}

func (tx *memTx) StateForUpdate(ctx context.Context) (*model.State, error) {
	if tx.state == nil {
		return nil, storage.ErrStateNotFound
	}
	return copyState(tx.state), nil
}

func (tx *memTx) SaveState(ctx context.Context, state *model.State) error {
	tx.state = copyState(state)
	return nil
}

func (tx *memTx) RecordForUpdate(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error) {
	record, ok := tx.records[user]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return copyRecord(record), nil
}

func (tx *memTx) SaveRecord(ctx context.Context, record *model.RedemptionRecord) error {
	tx.records[record.User] = copyRecord(record)
	return nil
}

func (tx *memTx) DeleteRecord(ctx context.Context, user identity.Identity) error {
	if _, ok := tx.records[user]; !ok {
		return storage.ErrRecordNotFound
	}
	delete(tx.records, user)
	return nil
}

func copyState(state *model.State) *model.State {
	if state == nil {
		return nil
	}
	clone := *state
	return &clone
}

func copyRecord(record *model.RedemptionRecord) *model.RedemptionRecord {
	if record == nil {
		return nil
	}
	clone := *record
	return &clone
}
