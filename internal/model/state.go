// Package model defines domain entities for the ledger.
package model

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/meatcoin/meatcoin/internal/identity"
)

// StateSize is the fixed byte length of the persisted global state:
// admin 32, minted 8, redeemed 8, treasury 32, salt 1.
const StateSize = 81

// ErrBadLayout indicates a byte buffer that does not match the fixed
// account layout.
var ErrBadLayout = errors.New("bad account layout")

// State is the singleton global ledger state. It is created exactly once
// by the initialize transition and never destroyed.
type State struct {
	Admin    identity.Identity `json:"admin"`
	Minted   uint64            `json:"minted"`
	Redeemed uint64            `json:"redeemed"`
	Treasury identity.Identity `json:"treasury"`
	Salt     byte              `json:"salt"`
}

// Authority reconstructs the derived controlling identity from the
// recorded salt.
func (s *State) Authority() identity.Identity {
	return identity.Derive(identity.SeedState, s.Salt)
}

// MarshalBinary encodes the state into its fixed 81-byte layout.
func (s *State) MarshalBinary() ([]byte, error) {
	buf := make([]byte, StateSize)
	copy(buf[0:32], s.Admin[:])
	binary.LittleEndian.PutUint64(buf[32:40], s.Minted)
	binary.LittleEndian.PutUint64(buf[40:48], s.Redeemed)
	copy(buf[48:80], s.Treasury[:])
	buf[80] = s.Salt
	return buf, nil
}

// UnmarshalBinary decodes the fixed 81-byte layout.
func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) != StateSize {
		return fmt.Errorf("%w: state wants %d bytes, got %d", ErrBadLayout, StateSize, len(data))
	}
	copy(s.Admin[:], data[0:32])
	s.Minted = binary.LittleEndian.Uint64(data[32:40])
	s.Redeemed = binary.LittleEndian.Uint64(data[40:48])
	copy(s.Treasury[:], data[48:80])
	s.Salt = data[80]
	return nil
}

// CachedState represents global state stored in Redis.
// Uses string types for Redis hash compatibility.
type CachedState struct {
	Admin    string `redis:"admin"`
	Minted   string `redis:"minted"`
	Redeemed string `redis:"redeemed"`
	Treasury string `redis:"treasury"`
	Salt     string `redis:"salt"`
}

// ToState converts CachedState to the State domain model.
func (c *CachedState) ToState() (*State, error) {
	admin, err := identity.Parse(c.Admin)
	if err != nil {
		return nil, fmt.Errorf("cached admin: %w", err)
	}
	treasury, err := identity.Parse(c.Treasury)
	if err != nil {
		return nil, fmt.Errorf("cached treasury: %w", err)
	}
	minted, err := strconv.ParseUint(c.Minted, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cached minted: %w", err)
	}
	redeemed, err := strconv.ParseUint(c.Redeemed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cached redeemed: %w", err)
	}
	salt, err := strconv.ParseUint(c.Salt, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("cached salt: %w", err)
	}

	return &State{
		Admin:    admin,
		Minted:   minted,
		Redeemed: redeemed,
		Treasury: treasury,
		Salt:     byte(salt),
	}, nil
}

// ToCachedState converts the State domain model to its Redis form.
func (s *State) ToCachedState() *CachedState {
	return &CachedState{
		Admin:    s.Admin.String(),
		Minted:   strconv.FormatUint(s.Minted, 10),
		Redeemed: strconv.FormatUint(s.Redeemed, 10),
		Treasury: s.Treasury.String(),
		Salt:     strconv.FormatUint(uint64(s.Salt), 10),
	}
}
