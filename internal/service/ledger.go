// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/meatcoin/meatcoin/internal/audit"
	"github.com/meatcoin/meatcoin/internal/cache"
	"github.com/meatcoin/meatcoin/internal/directory"
	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/metrics"
	"github.com/meatcoin/meatcoin/internal/model"
	"github.com/meatcoin/meatcoin/internal/storage"
	"github.com/meatcoin/meatcoin/internal/tokenledger"
)

// SnapshotCache caches state and record snapshots. *cache.Cache implements
// it; a nil cache disables caching.
type SnapshotCache interface {
	GetState(ctx context.Context) (*model.State, error)
	SetState(ctx context.Context, state *model.State) error
	DeleteState(ctx context.Context) error
	GetRecord(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error)
	SetRecord(ctx context.Context, record *model.RedemptionRecord) error
	DeleteRecord(ctx context.Context, user identity.Identity) error
	IsRecordNegativelyCached(ctx context.Context, user identity.Identity) (bool, error)
	SetRecordNegativeCache(ctx context.Context, user identity.Identity) error
}

// EventPublisher publishes transition events to the audit stream.
// *audit.Publisher implements it; a nil publisher disables the trail.
type EventPublisher interface {
	PublishAsync(event audit.TransitionEventPayload)
}

// LedgerService executes the five privileged transitions against the
// durable state, directing the token ledger and account directory. Every
// transition either fully applies or leaves no local effect.
type LedgerService struct {
	store     storage.Store
	ledger    tokenledger.Ledger
	directory directory.Directory
	snapshots SnapshotCache
	events    EventPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	mint      identity.Identity
	now       func() time.Time
}

// NewLedgerService creates a LedgerService. snapshots, events, logger, and
// recorder may be nil.
func NewLedgerService(
	store storage.Store,
	ledger tokenledger.Ledger,
	dir directory.Directory,
	snapshots SnapshotCache,
	events EventPublisher,
	logger *slog.Logger,
	recorder metrics.Recorder,
	mint identity.Identity,
) *LedgerService {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LedgerService{
		store:     store,
		ledger:    ledger,
		directory: dir,
		snapshots: snapshots,
		events:    events,
		logger:    logger.With("component", "service.ledger"),
		metrics:   recorder,
		mint:      mint,
		now:       time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *LedgerService) SetNowFunc(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Mint returns the mint identity this service manages.
func (s *LedgerService) Mint() identity.Identity {
	return s.mint
}

// Initialize creates the singleton global state: derives the controlling
// authority and treasury, creates the treasury token account, and moves
// mint authority from the caller to the derived authority. The caller
// becomes the admin. Runs exactly once.
func (s *LedgerService) Initialize(ctx context.Context, admin identity.Identity) (*model.State, error) {
	op := model.OpInitialize
	defer s.observe(op, s.now())

	authority, salt := identity.FindAuthority(identity.SeedState)
	treasury := identity.TreasuryAddress(salt)

	state := &model.State{
		Admin:    admin,
		Minted:   0,
		Redeemed: 0,
		Treasury: treasury,
		Salt:     salt,
	}

	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		if err := tx.CreateState(ctx, state); err != nil {
			if errors.Is(err, storage.ErrStateExists) {
				return ErrAlreadyInitialized
			}
			return fmt.Errorf("create state: %w", err)
		}

		// A retry after a partial failure may find the treasury account
		// already present; that is fine.
		if err := s.ledger.CreateAccount(ctx, treasury, s.mint, authority); err != nil &&
			!errors.Is(err, tokenledger.ErrAccountExists) {
			return fmt.Errorf("create treasury account: %w", err)
		}

		if err := s.ledger.SetMintAuthority(ctx, s.mint, admin, authority); err != nil {
			if errors.Is(err, tokenledger.ErrNotMintAuthority) {
				return ErrUnauthorized
			}
			return fmt.Errorf("hand off mint authority: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, s.reject(op, err)
	}

	s.cacheState(ctx, state)
	s.publish(op, admin, treasury, 0, nil)
	s.logger.Info("ledger initialized",
		"admin", admin.Short(),
		"treasury", treasury.Short(),
		"salt", salt,
	)

	return state, nil
}

// MintTokens issues amount new tokens to the recipient token account.
// Only the current admin may call it; issuance is authorized on the
// ledger by the derived authority, never by the admin key directly.
func (s *LedgerService) MintTokens(ctx context.Context, caller, recipient identity.Identity, amount uint64) (*model.State, error) {
	op := model.OpMint
	defer s.observe(op, s.now())

	if amount == 0 {
		return nil, s.reject(op, ErrInvalidAmount)
	}

	var state *model.State
	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		state, err = s.loadStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if caller != state.Admin {
			return ErrUnauthorized
		}
		if math.MaxUint64-state.Minted < amount {
			return ErrOverflow
		}
		if err := s.checkAccount(ctx, recipient); err != nil {
			return err
		}

		if err := s.ledger.Mint(ctx, s.mint, state.Authority(), recipient, amount); err != nil {
			return mapMintError(err)
		}

		state.Minted += amount
		return tx.SaveState(ctx, state)
	})
	if err != nil {
		return nil, s.reject(op, err)
	}

	s.cacheState(ctx, state)
	s.metrics.IncMint()
	s.publish(op, caller, recipient, amount, nil)
	s.logger.Info("tokens minted",
		"recipient", recipient.Short(),
		"amount", amount,
		"total_minted", state.Minted,
	)

	return state, nil
}

// Redeem moves amount tokens from the caller's token account into the
// treasury, bumps the global redeemed counter, and updates the caller's
// redemption record, creating it on first use. One atomic bundle: if any
// step fails, no counter moves and no record is written.
func (s *LedgerService) Redeem(ctx context.Context, caller, from, treasury identity.Identity, amount uint64) (*model.State, *model.RedemptionRecord, error) {
	op := model.OpRedeem
	defer s.observe(op, s.now())

	if amount == 0 {
		return nil, nil, s.reject(op, ErrInvalidAmount)
	}

	var (
		state  *model.State
		record *model.RedemptionRecord
	)
	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		state, err = s.loadStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if treasury != state.Treasury {
			return ErrInvalidTreasury
		}

		account, err := s.ledger.Account(ctx, from)
		if err != nil {
			if errors.Is(err, tokenledger.ErrAccountNotFound) {
				return ErrInvalidTokenAccount
			}
			return fmt.Errorf("load token account: %w", err)
		}
		if account.Mint != s.mint || account.Owner != caller {
			return ErrInvalidTokenAccount
		}

		firstUse := false
		record, err = tx.RecordForUpdate(ctx, caller)
		if err != nil {
			if !errors.Is(err, storage.ErrRecordNotFound) {
				return fmt.Errorf("load record: %w", err)
			}
			firstUse = true
			record = &model.RedemptionRecord{User: caller}
		}

		// Every counter addition is checked before anything moves.
		if math.MaxUint64-state.Redeemed < amount {
			return ErrOverflow
		}
		if math.MaxUint64-record.Amount < amount {
			return ErrOverflow
		}
		if record.Count == math.MaxUint64 {
			return ErrOverflow
		}

		if err := s.ledger.Transfer(ctx, from, state.Treasury, caller, amount); err != nil {
			return mapTransferError(err)
		}

		// First redemption: open record storage, start from zero. Done
		// after the transfer so a rejected redeem charges no deposit.
		if firstUse {
			if _, err := s.directory.OpenRecord(ctx, caller); err != nil {
				return fmt.Errorf("open record storage: %w", err)
			}
		}

		state.Redeemed += amount
		if err := tx.SaveState(ctx, state); err != nil {
			return err
		}

		record.Amount += amount
		record.Timestamp = s.now().Unix()
		record.Count++
		return tx.SaveRecord(ctx, record)
	})
	if err != nil {
		return nil, nil, s.reject(op, err)
	}

	s.cacheState(ctx, state)
	s.cacheRecord(ctx, record)
	s.metrics.IncRedeem()
	s.publish(op, caller, from, amount, nil)
	s.logger.Info("tokens redeemed",
		"user", caller.Short(),
		"amount", amount,
		"total_redeemed", state.Redeemed,
		"user_total", record.Amount,
	)

	return state, record, nil
}

// ChangeAdmin atomically hands administrative control to newAdmin.
// Counters, treasury, and mint authority are untouched; self-assignment
// is allowed.
func (s *LedgerService) ChangeAdmin(ctx context.Context, caller, newAdmin identity.Identity) (*model.State, error) {
	op := model.OpChangeAdmin
	defer s.observe(op, s.now())

	if newAdmin.IsZero() {
		return nil, s.reject(op, ErrEmptyAdmin)
	}

	var state *model.State
	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		var err error
		state, err = s.loadStateForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		if caller != state.Admin {
			return ErrUnauthorized
		}
		state.Admin = newAdmin
		return tx.SaveState(ctx, state)
	})
	if err != nil {
		return nil, s.reject(op, err)
	}

	s.cacheState(ctx, state)
	s.metrics.IncAdminChange()
	s.publish(op, caller, newAdmin, 0, nil)
	s.logger.Info("admin changed",
		"old_admin", caller.Short(),
		"new_admin", newAdmin.Short(),
	)

	return state, nil
}

// CloseRedemptionRecord deletes the caller's redemption record and refunds
// the storage deposit. The global redeemed counter keeps the authoritative
// total; a later redeem starts a fresh record from zero.
func (s *LedgerService) CloseRedemptionRecord(ctx context.Context, caller identity.Identity) (uint64, error) {
	op := model.OpCloseRecord
	defer s.observe(op, s.now())

	var refund uint64
	err := s.store.Transact(ctx, func(tx storage.Tx) error {
		if _, err := tx.RecordForUpdate(ctx, caller); err != nil {
			if errors.Is(err, storage.ErrRecordNotFound) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("load record: %w", err)
		}
		if err := tx.DeleteRecord(ctx, caller); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}

		var err error
		refund, err = s.directory.CloseRecord(ctx, caller)
		if err != nil && !errors.Is(err, directory.ErrNoRecord) {
			return fmt.Errorf("close record storage: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, s.reject(op, err)
	}

	s.dropRecord(ctx, caller)
	s.metrics.IncRecordClosed()
	s.publish(op, caller, identity.Zero, refund, nil)
	s.logger.Info("redemption record closed",
		"user", caller.Short(),
		"refund", refund,
	)

	return refund, nil
}

// GetState reads the current global state, cache first.
func (s *LedgerService) GetState(ctx context.Context) (*model.State, error) {
	if s.snapshots != nil {
		state, err := s.snapshots.GetState(ctx)
		if err == nil {
			s.metrics.IncStateCacheHit()
			return state, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("state cache read failed", "error", err)
		}
		s.metrics.IncStateCacheMiss()
	}

	state, err := s.store.State(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrStateNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}

	s.cacheState(ctx, state)
	return state, nil
}

// GetRecord reads a user's redemption record, cache first with negative
// caching for absent records.
func (s *LedgerService) GetRecord(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error) {
	if s.snapshots != nil {
		record, err := s.snapshots.GetRecord(ctx, user)
		if err == nil {
			return record, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("record cache read failed", "error", err)
		} else if negative, _ := s.snapshots.IsRecordNegativelyCached(ctx, user); negative {
			return nil, ErrRecordNotFound
		}
	}

	record, err := s.store.Record(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			if s.snapshots != nil {
				_ = s.snapshots.SetRecordNegativeCache(ctx, user)
			}
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	s.cacheRecord(ctx, record)
	return record, nil
}

// loadStateForUpdate locks the singleton state row inside a transaction.
func (s *LedgerService) loadStateForUpdate(ctx context.Context, tx storage.Tx) (*model.State, error) {
	state, err := tx.StateForUpdate(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrStateNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, fmt.Errorf("load state: %w", err)
	}
	return state, nil
}

// checkAccount verifies that addr is a token account of the managed mint.
func (s *LedgerService) checkAccount(ctx context.Context, addr identity.Identity) error {
	account, err := s.ledger.Account(ctx, addr)
	if err != nil {
		if errors.Is(err, tokenledger.ErrAccountNotFound) {
			return ErrInvalidTokenAccount
		}
		return fmt.Errorf("load token account: %w", err)
	}
	if account.Mint != s.mint {
		return ErrInvalidTokenAccount
	}
	return nil
}

// mapMintError translates ledger issuance failures into the taxonomy.
func mapMintError(err error) error {
	switch {
	case errors.Is(err, tokenledger.ErrSupplyOverflow), errors.Is(err, tokenledger.ErrBalanceOverflow):
		return ErrOverflow
	case errors.Is(err, tokenledger.ErrNotMintAuthority):
		return ErrUnauthorized
	case errors.Is(err, tokenledger.ErrAccountNotFound), errors.Is(err, tokenledger.ErrMintMismatch):
		return ErrInvalidTokenAccount
	default:
		return fmt.Errorf("ledger mint: %w", err)
	}
}

// mapTransferError translates ledger transfer failures into the taxonomy.
// Insufficient funds stays a ledger rejection: the core never tracks
// balances itself.
func mapTransferError(err error) error {
	switch {
	case errors.Is(err, tokenledger.ErrBalanceOverflow):
		return ErrOverflow
	case errors.Is(err, tokenledger.ErrNotOwner),
		errors.Is(err, tokenledger.ErrAccountNotFound),
		errors.Is(err, tokenledger.ErrMintMismatch):
		return ErrInvalidTokenAccount
	default:
		return fmt.Errorf("ledger transfer: %w", err)
	}
}

// reject counts a failed transition and passes the error through.
func (s *LedgerService) reject(op string, err error) error {
	s.metrics.IncRejected(ErrorCode(err))
	s.logger.Debug("transition rejected", "op", op, "code", ErrorCode(err), "error", err)
	return err
}

// observe records the transition duration from start.
func (s *LedgerService) observe(op string, start time.Time) {
	s.metrics.ObserveTransitionDuration(op, s.now().Sub(start))
}

// publish emits a transition event to the audit stream, if configured.
func (s *LedgerService) publish(op string, actor, counterparty identity.Identity, amount uint64, tags []string) {
	if s.events == nil {
		return
	}
	s.events.PublishAsync(audit.NewTransitionEventPayload(op, actor, counterparty, amount, tags, s.now()))
}

// cacheState refreshes the cached state snapshot, best effort.
func (s *LedgerService) cacheState(ctx context.Context, state *model.State) {
	if s.snapshots == nil || state == nil {
		return
	}
	if err := s.snapshots.SetState(ctx, state); err != nil {
		s.logger.Warn("state cache write failed", "error", err)
	}
}

// cacheRecord refreshes a cached record snapshot, best effort.
func (s *LedgerService) cacheRecord(ctx context.Context, record *model.RedemptionRecord) {
	if s.snapshots == nil || record == nil {
		return
	}
	if err := s.snapshots.SetRecord(ctx, record); err != nil {
		s.logger.Warn("record cache write failed", "error", err)
	}
}

// dropRecord evicts a record snapshot after deletion, best effort.
func (s *LedgerService) dropRecord(ctx context.Context, user identity.Identity) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.DeleteRecord(ctx, user); err != nil {
		s.logger.Warn("record cache delete failed", "error", err)
	}
}
