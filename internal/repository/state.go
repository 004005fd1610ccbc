package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/model"
	"github.com/meatcoin/meatcoin/internal/storage"
)

// Counters are stored as numeric(20,0) so the full u64 range fits; they
// cross the wire as decimal strings.

// State reads the current global state without locking.
func (r *Repository) State(ctx context.Context) (*model.State, error) {
	query := `
		SELECT admin, minted::text, redeemed::text, treasury, salt
		FROM ledger_state
		WHERE id = 1
	`

	state, err := scanState(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	return state, nil
}

// Transact runs fn inside a database transaction. Any error from fn or
// from commit rolls back every write made through the Tx.
func (r *Repository) Transact(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgTx implements storage.Tx over a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

// CreateState inserts the singleton state row.
func (t *pgTx) CreateState(ctx context.Context, state *model.State) error {
	query := `
		INSERT INTO ledger_state (id, admin, minted, redeemed, treasury, salt, created_at, updated_at)
		VALUES (1, $1, $2::numeric, $3::numeric, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`

	result, err := t.tx.Exec(ctx, query,
		state.Admin.String(),
		strconv.FormatUint(state.Minted, 10),
		strconv.FormatUint(state.Redeemed, 10),
		state.Treasury.String(),
		int16(state.Salt),
	)
	if err != nil {
		return fmt.Errorf("failed to create state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrStateExists
	}

	return nil
}

// StateForUpdate loads and locks the singleton state row.
func (t *pgTx) StateForUpdate(ctx context.Context) (*model.State, error) {
	query := `
		SELECT admin, minted::text, redeemed::text, treasury, salt
		FROM ledger_state
		WHERE id = 1
		FOR UPDATE
	`

	state, err := scanState(t.tx.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to lock state: %w", err)
	}

	return state, nil
}

// SaveState writes back the locked state row.
func (t *pgTx) SaveState(ctx context.Context, state *model.State) error {
	query := `
		UPDATE ledger_state
		SET admin = $1, minted = $2::numeric, redeemed = $3::numeric, updated_at = NOW()
		WHERE id = 1
	`

	result, err := t.tx.Exec(ctx, query,
		state.Admin.String(),
		strconv.FormatUint(state.Minted, 10),
		strconv.FormatUint(state.Redeemed, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrStateNotFound
	}

	return nil
}

// scanState scans a state row into the domain model.
func scanState(row pgx.Row) (*model.State, error) {
	var (
		adminHex    string
		mintedStr   string
		redeemedStr string
		treasuryHex string
		salt        int16
	)

	if err := row.Scan(&adminHex, &mintedStr, &redeemedStr, &treasuryHex, &salt); err != nil {
		return nil, err
	}

	admin, err := identity.Parse(adminHex)
	if err != nil {
		return nil, fmt.Errorf("stored admin: %w", err)
	}
	treasury, err := identity.Parse(treasuryHex)
	if err != nil {
		return nil, fmt.Errorf("stored treasury: %w", err)
	}
	minted, err := strconv.ParseUint(mintedStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored minted: %w", err)
	}
	redeemed, err := strconv.ParseUint(redeemedStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored redeemed: %w", err)
	}

	return &model.State{
		Admin:    admin,
		Minted:   minted,
		Redeemed: redeemed,
		Treasury: treasury,
		Salt:     byte(salt),
	}, nil
}
