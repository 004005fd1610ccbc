package tokenledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/meatcoin/meatcoin/internal/identity"
)

func newTestLedger(t *testing.T) (*Memory, identity.Identity, identity.Identity) {
	t.Helper()

	ctx := context.Background()
	m := NewMemory()
	mint := identity.Derive("test-mint", 0)
	authority := identity.Derive("test-authority", 0)
	if err := m.CreateMint(ctx, mint, authority); err != nil {
		t.Fatalf("CreateMint: %v", err)
	}
	return m, mint, authority
}

func TestMemory_MintRequiresAuthority(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, mint, authority := newTestLedger(t)

	owner := identity.Derive("owner", 0)
	acct := identity.Derive("acct", 0)
	if err := m.CreateAccount(ctx, acct, mint, owner); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	imposter := identity.Derive("imposter", 0)
	if err := m.Mint(ctx, mint, imposter, acct, 10); !errors.Is(err, ErrNotMintAuthority) {
		t.Errorf("Mint with wrong authority = %v, want ErrNotMintAuthority", err)
	}

	if err := m.Mint(ctx, mint, authority, acct, 10); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	got, err := m.Account(ctx, acct)
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	if got.Balance != 10 {
		t.Errorf("Balance = %d, want 10", got.Balance)
	}
	supply, _ := m.Supply(ctx, mint)
	if supply != 10 {
		t.Errorf("Supply = %d, want 10", supply)
	}
}

func TestMemory_SetMintAuthority(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, mint, authority := newTestLedger(t)
	derived := identity.Derive(identity.SeedState, 255)

	if err := m.SetMintAuthority(ctx, mint, derived, authority); !errors.Is(err, ErrNotMintAuthority) {
		t.Errorf("SetMintAuthority by non-holder = %v, want ErrNotMintAuthority", err)
	}
	if err := m.SetMintAuthority(ctx, mint, authority, derived); err != nil {
		t.Fatalf("SetMintAuthority: %v", err)
	}

	// The old authority lost minting power.
	acct := identity.Derive("acct", 0)
	_ = m.CreateAccount(ctx, acct, mint, identity.Derive("owner", 0))
	if err := m.Mint(ctx, mint, authority, acct, 1); !errors.Is(err, ErrNotMintAuthority) {
		t.Errorf("Mint by old authority = %v, want ErrNotMintAuthority", err)
	}
	if err := m.Mint(ctx, mint, derived, acct, 1); err != nil {
		t.Errorf("Mint by new authority = %v, want nil", err)
	}
}

func TestMemory_Transfer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, mint, authority := newTestLedger(t)

	alice := identity.Derive("alice", 0)
	bob := identity.Derive("bob", 0)
	aliceAcct := identity.Derive("alice-acct", 0)
	bobAcct := identity.Derive("bob-acct", 0)
	_ = m.CreateAccount(ctx, aliceAcct, mint, alice)
	_ = m.CreateAccount(ctx, bobAcct, mint, bob)
	if err := m.Mint(ctx, mint, authority, aliceAcct, 100); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := m.Transfer(ctx, aliceAcct, bobAcct, bob, 40); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Transfer by non-owner = %v, want ErrNotOwner", err)
	}
	if err := m.Transfer(ctx, aliceAcct, bobAcct, alice, 500); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("overdraw = %v, want ErrInsufficientFunds", err)
	}
	if err := m.Transfer(ctx, aliceAcct, bobAcct, alice, 40); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	src, _ := m.Account(ctx, aliceAcct)
	dst, _ := m.Account(ctx, bobAcct)
	if src.Balance != 60 || dst.Balance != 40 {
		t.Errorf("balances = %d/%d, want 60/40", src.Balance, dst.Balance)
	}
}

func TestMemory_SupplyOverflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, mint, authority := newTestLedger(t)

	acct := identity.Derive("acct", 0)
	_ = m.CreateAccount(ctx, acct, mint, identity.Derive("owner", 0))
	if err := m.Mint(ctx, mint, authority, acct, math.MaxUint64); err != nil {
		t.Fatalf("Mint max: %v", err)
	}
	if err := m.Mint(ctx, mint, authority, acct, 1); !errors.Is(err, ErrSupplyOverflow) {
		t.Errorf("Mint past max = %v, want ErrSupplyOverflow", err)
	}

	got, _ := m.Account(ctx, acct)
	if got.Balance != math.MaxUint64 {
		t.Errorf("failed mint should not change balance, got %d", got.Balance)
	}
}

func TestMemory_AccountSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m, mint, _ := newTestLedger(t)

	acct := identity.Derive("acct", 0)
	_ = m.CreateAccount(ctx, acct, mint, identity.Derive("owner", 0))

	snap, _ := m.Account(ctx, acct)
	snap.Balance = 999

	fresh, _ := m.Account(ctx, acct)
	if fresh.Balance != 0 {
		t.Error("mutating a snapshot should not affect the ledger")
	}
}

func TestMemory_UnknownMintAndAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()
	nobody := identity.Derive("nobody", 0)

	if _, err := m.Account(ctx, nobody); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Account(unknown) = %v, want ErrAccountNotFound", err)
	}
	if err := m.CreateAccount(ctx, nobody, nobody, nobody); !errors.Is(err, ErrMintNotFound) {
		t.Errorf("CreateAccount(unknown mint) = %v, want ErrMintNotFound", err)
	}
	if err := m.SetMintAuthority(ctx, nobody, nobody, nobody); !errors.Is(err, ErrMintNotFound) {
		t.Errorf("SetMintAuthority(unknown mint) = %v, want ErrMintNotFound", err)
	}
}
