// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"strconv"

	"github.com/meatcoin/meatcoin/internal/model"
)

// Amounts cross the wire as decimal strings so the full u64 range
// survives JSON number handling in every client.

// MintRequest represents the request body for minting tokens.
type MintRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// RedeemRequest represents the request body for redeeming tokens.
type RedeemRequest struct {
	From     string `json:"from"`
	Treasury string `json:"treasury"`
	Amount   string `json:"amount"`
}

// ChangeAdminRequest represents the request body for handing over
// administrative control.
type ChangeAdminRequest struct {
	NewAdmin string `json:"new_admin"`
}

// StateResponse represents the global ledger state in API responses.
type StateResponse struct {
	Admin     string `json:"admin"`
	Minted    string `json:"minted"`
	Redeemed  string `json:"redeemed"`
	Treasury  string `json:"treasury"`
	Authority string `json:"authority"`
	Salt      uint8  `json:"salt"`
}

// RecordResponse represents a redemption record in API responses.
type RecordResponse struct {
	User            string `json:"user"`
	Address         string `json:"address"`
	Amount          string `json:"amount"`
	LastRedeemedAt  int64  `json:"last_redeemed_at"`
	RedemptionCount string `json:"redemption_count"`
}

// RedeemResponse bundles the updated state and record after a redeem.
type RedeemResponse struct {
	State  *StateResponse  `json:"state"`
	Record *RecordResponse `json:"record"`
}

// CloseRecordResponse reports the storage deposit refunded by closing a
// redemption record.
type CloseRecordResponse struct {
	Refund string `json:"refund"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToStateResponse converts a State model to its API form.
func ToStateResponse(state *model.State) *StateResponse {
	return &StateResponse{
		Admin:     state.Admin.String(),
		Minted:    strconv.FormatUint(state.Minted, 10),
		Redeemed:  strconv.FormatUint(state.Redeemed, 10),
		Treasury:  state.Treasury.String(),
		Authority: state.Authority().String(),
		Salt:      state.Salt,
	}
}

// ToRecordResponse converts a RedemptionRecord model to its API form.
func ToRecordResponse(record *model.RedemptionRecord) *RecordResponse {
	return &RecordResponse{
		User:            record.User.String(),
		Address:         record.Address().String(),
		Amount:          strconv.FormatUint(record.Amount, 10),
		LastRedeemedAt:  record.Timestamp,
		RedemptionCount: strconv.FormatUint(record.Count, 10),
	}
}
