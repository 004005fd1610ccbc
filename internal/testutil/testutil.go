// Package testutil provides helpers for integration and unit tests.
package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 710710

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// resetSchema drops and recreates one migration pair for tests.
func resetSchema(ctx context.Context, pool *pgxpool.Pool, name string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downPath := filepath.Join(root, "migrations", name+".down.sql")
	upPath := filepath.Join(root, "migrations", name+".up.sql")

	downSQL, err := os.ReadFile(downPath)
	if err != nil {
		return fmt.Errorf("read down migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply down migration: %w", err)
	}

	upSQL, err := os.ReadFile(upPath)
	if err != nil {
		return fmt.Errorf("read up migration: %w", err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply up migration: %w", err)
	}

	return nil
}

// ResetStateSchema drops and recreates the ledger_state schema for tests.
func ResetStateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_ledger_state")
}

// ResetRecordsSchema drops and recreates the redemption_records schema for tests.
func ResetRecordsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000002_redemption_records")
}

// ResetEventsSchema drops and recreates the transition_events schema for tests.
func ResetEventsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000003_transition_events")
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewIdentity creates a deterministic identity from a fill byte.
func NewIdentity(t testing.TB, fill byte) identity.Identity {
	t.Helper()
	var id identity.Identity
	for i := range id {
		id[i] = fill
	}
	return id
}

// NewKeypair generates a fresh ed25519 keypair and its identity.
func NewKeypair(t testing.TB) (identity.Identity, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	id, err := identity.FromPublicKey(pub)
	if err != nil {
		t.Fatalf("identity from public key: %v", err)
	}
	return id, priv
}

// NewTestState creates a test state with sensible defaults.
func NewTestState(t testing.TB, admin identity.Identity) *model.State {
	t.Helper()
	_, salt := identity.FindAuthority(identity.SeedState)
	return &model.State{
		Admin:    admin,
		Treasury: identity.TreasuryAddress(salt),
		Salt:     salt,
	}
}

// NewTestRecord creates a test redemption record with sensible defaults.
func NewTestRecord(t testing.TB, user identity.Identity) *model.RedemptionRecord {
	t.Helper()
	return &model.RedemptionRecord{
		User:      user,
		Amount:    10,
		Timestamp: time.Now().Unix(),
		Count:     1,
	}
}

// NewTestEvent creates a test transition event with sensible defaults.
func NewTestEvent(t testing.TB, op string, actor identity.Identity) *model.TransitionEvent {
	t.Helper()
	now := time.Now().UTC()
	return &model.TransitionEvent{
		ID:         fmt.Sprintf("evt-%d", now.UnixNano()),
		EventID:    fmt.Sprintf("%d-0", now.UnixMilli()),
		Op:         op,
		Actor:      actor.String(),
		Amount:     1,
		OccurredAt: now,
	}
}
