package model

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// RecordSize is the fixed byte length of a persisted redemption record:
// user 32, amount 8, timestamp 8, count 8.
const RecordSize = 56

// RedemptionRecord tracks cumulative redemption history for one user.
// It is created lazily on the user's first redemption and destroyed only
// by an explicit close; the global redeemed counter remains the
// authoritative total regardless.
type RedemptionRecord struct {
	User      identity.Identity `json:"user"`
	Amount    uint64            `json:"amount"`
	Timestamp int64             `json:"timestamp"`
	Count     uint64            `json:"redemption_count"`
}

// Address returns the derived location of this record.
func (r *RedemptionRecord) Address() identity.Identity {
	return identity.RecordAddress(r.User)
}

// MarshalBinary encodes the record into its fixed 56-byte layout.
func (r *RedemptionRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	copy(buf[0:32], r.User[:])
	binary.LittleEndian.PutUint64(buf[32:40], r.Amount)
	binary.LittleEndian.PutUint64(buf[40:48], uint64(r.Timestamp))
	binary.LittleEndian.PutUint64(buf[48:56], r.Count)
	return buf, nil
}

// UnmarshalBinary decodes the fixed 56-byte layout.
func (r *RedemptionRecord) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("%w: record wants %d bytes, got %d", ErrBadLayout, RecordSize, len(data))
	}
	copy(r.User[:], data[0:32])
	r.Amount = binary.LittleEndian.Uint64(data[32:40])
	r.Timestamp = int64(binary.LittleEndian.Uint64(data[40:48]))
	r.Count = binary.LittleEndian.Uint64(data[48:56])
	return nil
}

// CachedRecord represents a redemption record stored in Redis.
// Uses string types for Redis hash compatibility.
type CachedRecord struct {
	User      string `redis:"user"`
	Amount    string `redis:"amount"`
	Timestamp string `redis:"timestamp"`
	Count     string `redis:"count"`
}

// ToRecord converts CachedRecord to the domain model.
func (c *CachedRecord) ToRecord() (*RedemptionRecord, error) {
	user, err := identity.Parse(c.User)
	if err != nil {
		return nil, fmt.Errorf("cached user: %w", err)
	}
	amount, err := strconv.ParseUint(c.Amount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cached amount: %w", err)
	}
	ts, err := strconv.ParseInt(c.Timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cached timestamp: %w", err)
	}
	count, err := strconv.ParseUint(c.Count, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cached count: %w", err)
	}

	return &RedemptionRecord{
		User:      user,
		Amount:    amount,
		Timestamp: ts,
		Count:     count,
	}, nil
}

// ToCachedRecord converts the domain model to its Redis form.
func (r *RedemptionRecord) ToCachedRecord() *CachedRecord {
	return &CachedRecord{
		User:      r.User.String(),
		Amount:    strconv.FormatUint(r.Amount, 10),
		Timestamp: strconv.FormatInt(r.Timestamp, 10),
		Count:     strconv.FormatUint(r.Count, 10),
	}
}
