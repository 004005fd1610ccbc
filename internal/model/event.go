package model

import "time"

// Transition operation names recorded in the audit trail.
const (
	OpInitialize  = "initialize"
	OpMint        = "mint"
	OpRedeem      = "redeem"
	OpChangeAdmin = "change_admin"
	OpCloseRecord = "close_redemption_record"
)

// TransitionEvent is one successful transition captured by the audit
// pipeline. EventID is the Redis stream ID and acts as the idempotency key
// for persistence.
type TransitionEvent struct {
	ID           string    `json:"id"`
	EventID      string    `json:"event_id"`
	Op           string    `json:"op"`
	Actor        string    `json:"actor"`
	Counterparty string    `json:"counterparty,omitempty"`
	Amount       uint64    `json:"amount"`
	Tags         []string  `json:"tags,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
