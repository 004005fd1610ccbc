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

// Record reads a user's redemption record without locking.
func (r *Repository) Record(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error) {
	query := `
		SELECT user_id, amount::text, last_redeemed_at, redemption_count::text
		FROM redemption_records
		WHERE user_id = $1
	`

	record, err := scanRecord(r.pool.QueryRow(ctx, query, user.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get redemption record: %w", err)
	}

	return record, nil
}

// RecordForUpdate loads and locks a user's redemption record.
func (t *pgTx) RecordForUpdate(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error) {
	query := `
		SELECT user_id, amount::text, last_redeemed_at, redemption_count::text
		FROM redemption_records
		WHERE user_id = $1
		FOR UPDATE
	`

	record, err := scanRecord(t.tx.QueryRow(ctx, query, user.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to lock redemption record: %w", err)
	}

	return record, nil
}

// SaveRecord inserts or updates a user's redemption record.
func (t *pgTx) SaveRecord(ctx context.Context, record *model.RedemptionRecord) error {
	query := `
		INSERT INTO redemption_records (user_id, amount, last_redeemed_at, redemption_count, created_at, updated_at)
		VALUES ($1, $2::numeric, $3, $4::numeric, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET amount = EXCLUDED.amount,
		    last_redeemed_at = EXCLUDED.last_redeemed_at,
		    redemption_count = EXCLUDED.redemption_count,
		    updated_at = NOW()
	`

	_, err := t.tx.Exec(ctx, query,
		record.User.String(),
		strconv.FormatUint(record.Amount, 10),
		record.Timestamp,
		strconv.FormatUint(record.Count, 10),
	)
	if err != nil {
		return fmt.Errorf("failed to save redemption record: %w", err)
	}

	return nil
}

// DeleteRecord removes a user's redemption record.
func (t *pgTx) DeleteRecord(ctx context.Context, user identity.Identity) error {
	query := `DELETE FROM redemption_records WHERE user_id = $1`

	result, err := t.tx.Exec(ctx, query, user.String())
	if err != nil {
		return fmt.Errorf("failed to delete redemption record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrRecordNotFound
	}

	return nil
}

// scanRecord scans a redemption record row into the domain model.
func scanRecord(row pgx.Row) (*model.RedemptionRecord, error) {
	var (
		userHex   string
		amountStr string
		ts        int64
		countStr  string
	)

	if err := row.Scan(&userHex, &amountStr, &ts, &countStr); err != nil {
		return nil, err
	}

	user, err := identity.Parse(userHex)
	if err != nil {
		return nil, fmt.Errorf("stored user: %w", err)
	}
	amount, err := strconv.ParseUint(amountStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored amount: %w", err)
	}
	count, err := strconv.ParseUint(countStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("stored count: %w", err)
	}

	return &model.RedemptionRecord{
		User:      user,
		Amount:    amount,
		Timestamp: ts,
		Count:     count,
	}, nil
}
