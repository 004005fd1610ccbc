package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/model"
)

// Cache key prefixes and TTLs.
const (
	stateKey          = "ledger:state"
	recordKeyPrefix   = "record:"
	negCacheKeySuffix = ":neg"

	// DefaultStateTTL is the TTL for the cached global state.
	DefaultStateTTL = 30 * time.Second

	// DefaultRecordTTL is the TTL for cached redemption records.
	DefaultRecordTTL = 5 * time.Minute

	// NegativeCacheTTL is the TTL for negative cache entries.
	NegativeCacheTTL = 1 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// GetState retrieves the global ledger state from cache.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetState(ctx context.Context) (*model.State, error) {
	result, err := c.client.HGetAll(ctx, stateKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedState{
		Admin:    result["admin"],
		Minted:   result["minted"],
		Redeemed: result["redeemed"],
		Treasury: result["treasury"],
		Salt:     result["salt"],
	}

	return cached.ToState()
}

// SetState stores the global ledger state in cache.
func (c *Cache) SetState(ctx context.Context, state *model.State) error {
	cached := state.ToCachedState()

	fields := map[string]any{
		"admin":    cached.Admin,
		"minted":   cached.Minted,
		"redeemed": cached.Redeemed,
		"treasury": cached.Treasury,
		"salt":     cached.Salt,
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, stateKey, fields)
	pipe.Expire(ctx, stateKey, DefaultStateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache state: %w", err)
	}

	return nil
}

// DeleteState removes the global ledger state from cache. Called after
// any transition that changes the state so the next read repopulates.
func (c *Cache) DeleteState(ctx context.Context) error {
	if err := c.client.Del(ctx, stateKey).Err(); err != nil {
		return fmt.Errorf("failed to delete state from cache: %w", err)
	}
	return nil
}

// GetRecord retrieves a redemption record from cache by user identity.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetRecord(ctx context.Context, user identity.Identity) (*model.RedemptionRecord, error) {
	key := recordKeyPrefix + user.String()

	result, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrCacheMiss
	}

	cached := &model.CachedRecord{
		User:      result["user"],
		Amount:    result["amount"],
		Timestamp: result["timestamp"],
		Count:     result["count"],
	}

	return cached.ToRecord()
}

// SetRecord stores a redemption record in cache.
func (c *Cache) SetRecord(ctx context.Context, record *model.RedemptionRecord) error {
	key := recordKeyPrefix + record.User.String()
	cached := record.ToCachedRecord()

	fields := map[string]any{
		"user":      cached.User,
		"amount":    cached.Amount,
		"timestamp": cached.Timestamp,
		"count":     cached.Count,
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, DefaultRecordTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache record: %w", err)
	}

	// Remove negative cache if exists
	c.client.Del(ctx, key+negCacheKeySuffix)

	return nil
}

// DeleteRecord removes a redemption record from cache.
func (c *Cache) DeleteRecord(ctx context.Context, user identity.Identity) error {
	key := recordKeyPrefix + user.String()

	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.Del(ctx, key+negCacheKeySuffix)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record from cache: %w", err)
	}

	return nil
}

// IsRecordNegativelyCached checks if a user is in the record negative cache.
func (c *Cache) IsRecordNegativelyCached(ctx context.Context, user identity.Identity) (bool, error) {
	key := recordKeyPrefix + user.String() + negCacheKeySuffix

	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetRecordNegativeCache marks a user as having no redemption record.
func (c *Cache) SetRecordNegativeCache(ctx context.Context, user identity.Identity) error {
	key := recordKeyPrefix + user.String() + negCacheKeySuffix

	if err := c.client.SetEx(ctx, key, "", NegativeCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}
