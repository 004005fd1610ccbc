package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/meatcoin/meatcoin/internal/model"
)

// TransitionEventRepository provides database access for audit events.
type TransitionEventRepository struct {
	repo *Repository
}

// NewTransitionEventRepository creates a new TransitionEventRepository.
func NewTransitionEventRepository(repo *Repository) *TransitionEventRepository {
	return &TransitionEventRepository{repo: repo}
}

// BulkInsert inserts multiple transition events.
// The event_id unique constraint plus ON CONFLICT DO NOTHING makes
// redelivery from the stream idempotent.
func (r *TransitionEventRepository) BulkInsert(ctx context.Context, events []*model.TransitionEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO transition_events (
			id, event_id, op, actor, counterparty, amount, tags, occurred_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.Op,
			event.Actor,
			nullableString(event.Counterparty),
			strconv.FormatUint(event.Amount, 10),
			pq.Array(event.Tags),
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert event %d: %w", i, err)
		}
	}

	return nil
}

// CountByOp returns the number of stored events per operation.
func (r *TransitionEventRepository) CountByOp(ctx context.Context) (map[string]int64, error) {
	query := `SELECT op, COUNT(*) FROM transition_events GROUP BY op`

	rows, err := r.repo.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var op string
		var count int64
		if err := rows.Scan(&op, &count); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[op] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event counts: %w", err)
	}

	return counts, nil
}

// nullableString converts an empty string to nil for nullable columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
