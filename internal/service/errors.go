package service

import (
	"errors"

	"github.com/meatcoin/meatcoin/internal/tokenledger"
)

// Failure taxonomy for the five transitions. Handlers map these to stable
// error codes; anything else is an internal error.
var (
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrOverflow            = errors.New("counter addition would overflow")
	ErrInvalidTreasury     = errors.New("treasury does not match ledger state")
	ErrInvalidTokenAccount = errors.New("token account is not usable for this transition")
	ErrAlreadyInitialized  = errors.New("ledger already initialized")
	ErrNotInitialized      = errors.New("ledger not initialized")
	ErrRecordNotFound      = errors.New("redemption record not found")
	ErrEmptyAdmin          = errors.New("new admin must not be the zero identity")
)

// Stable error codes exposed on the API surface.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeOverflow            = "OVERFLOW"
	CodeInvalidTreasury     = "INVALID_TREASURY"
	CodeInvalidTokenAccount = "INVALID_TOKEN_ACCOUNT"
	CodeAlreadyInitialized  = "ALREADY_INITIALIZED"
	CodeNotInitialized      = "NOT_INITIALIZED"
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeEmptyAdmin          = "EMPTY_ADMIN"
	CodeLedgerRejected      = "LEDGER_REJECTED"
	CodeInternal            = "INTERNAL"
)

// ErrorCode maps a service error to its stable code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrOverflow):
		return CodeOverflow
	case errors.Is(err, ErrInvalidTreasury):
		return CodeInvalidTreasury
	case errors.Is(err, ErrInvalidTokenAccount):
		return CodeInvalidTokenAccount
	case errors.Is(err, ErrAlreadyInitialized):
		return CodeAlreadyInitialized
	case errors.Is(err, ErrNotInitialized):
		return CodeNotInitialized
	case errors.Is(err, ErrRecordNotFound):
		return CodeRecordNotFound
	case errors.Is(err, ErrEmptyAdmin):
		return CodeEmptyAdmin
	case isLedgerError(err):
		return CodeLedgerRejected
	default:
		return CodeInternal
	}
}

// isLedgerError reports whether the error originated in the token ledger
// and carries no more specific service meaning.
func isLedgerError(err error) bool {
	for _, ledgerErr := range []error{
		tokenledger.ErrMintNotFound,
		tokenledger.ErrMintExists,
		tokenledger.ErrAccountNotFound,
		tokenledger.ErrAccountExists,
		tokenledger.ErrMintMismatch,
		tokenledger.ErrNotMintAuthority,
		tokenledger.ErrNotOwner,
		tokenledger.ErrInsufficientFunds,
		tokenledger.ErrSupplyOverflow,
		tokenledger.ErrBalanceOverflow,
	} {
		if errors.Is(err, ledgerErr) {
			return true
		}
	}
	return false
}
