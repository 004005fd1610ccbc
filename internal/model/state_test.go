package model

import (
	"errors"
	"testing"

	"github.com/meatcoin/meatcoin/internal/identity"
)

func testState() *State {
	admin := identity.Derive("test-admin", 0)
	return &State{
		Admin:    admin,
		Minted:   100,
		Redeemed: 40,
		Treasury: identity.TreasuryAddress(255),
		Salt:     255,
	}
}

func TestState_BinaryRoundTrip(t *testing.T) {
	t.Parallel()

	s := testState()
	data, err := s.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	if len(data) != StateSize {
		t.Fatalf("encoded length = %d, want %d", len(data), StateSize)
	}

	var decoded State
	if err := decoded.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if decoded != *s {
		t.Errorf("round trip = %+v, want %+v", decoded, *s)
	}
}

func TestState_UnmarshalBinary_WrongSize(t *testing.T) {
	t.Parallel()

	var s State
	if err := s.UnmarshalBinary(make([]byte, StateSize-1)); !errors.Is(err, ErrBadLayout) {
		t.Errorf("UnmarshalBinary(short) error = %v, want ErrBadLayout", err)
	}
}

func TestState_Authority(t *testing.T) {
	t.Parallel()

	s := testState()
	if s.Authority() != identity.Derive(identity.SeedState, s.Salt) {
		t.Error("Authority() should reproduce the derivation for the recorded salt")
	}
}

func TestState_CachedRoundTrip(t *testing.T) {
	t.Parallel()

	s := testState()
	got, err := s.ToCachedState().ToState()
	if err != nil {
		t.Fatalf("ToState() error = %v", err)
	}
	if *got != *s {
		t.Errorf("cached round trip = %+v, want %+v", *got, *s)
	}
}

func TestCachedState_ToState_Invalid(t *testing.T) {
	t.Parallel()

	valid := testState().ToCachedState()

	tests := []struct {
		name   string
		mutate func(*CachedState)
	}{
		{"bad admin", func(c *CachedState) { c.Admin = "nope" }},
		{"bad minted", func(c *CachedState) { c.Minted = "abc" }},
		{"bad redeemed", func(c *CachedState) { c.Redeemed = "-1" }},
		{"bad salt", func(c *CachedState) { c.Salt = "300" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := *valid
			tt.mutate(&c)
			if _, err := c.ToState(); err == nil {
				t.Error("ToState() should fail for corrupt cache entry")
			}
		})
	}
}
