// Package audit provides transition event capture and processing.
package audit

import (
	"fmt"
	"strconv"

	"github.com/meatcoin/meatcoin/internal/model"
)

const (
	identityHexLength = 64
	maxTagLength      = 64
	maxTags           = 8
)

// knownOps is the set of transition names the pipeline accepts.
var knownOps = map[string]bool{
	model.OpInitialize:  true,
	model.OpMint:        true,
	model.OpRedeem:      true,
	model.OpChangeAdmin: true,
	model.OpCloseRecord: true,
}

// ValidateTransitionEventPayload validates transition event payload fields.
func ValidateTransitionEventPayload(payload TransitionEventPayload) error {
	if payload.Op == "" {
		return fmt.Errorf("op is required")
	}
	if !knownOps[payload.Op] {
		return fmt.Errorf("unknown op %q", payload.Op)
	}
	if payload.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if len(payload.Actor) != identityHexLength || !isHex(payload.Actor) {
		return fmt.Errorf("actor must be %d hex chars", identityHexLength)
	}
	if payload.Counterparty != "" && (len(payload.Counterparty) != identityHexLength || !isHex(payload.Counterparty)) {
		return fmt.Errorf("counterparty must be %d hex chars", identityHexLength)
	}
	if payload.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if _, err := strconv.ParseUint(payload.Amount, 10, 64); err != nil {
		return fmt.Errorf("amount must be a decimal u64")
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	if len(payload.Tags) > maxTags {
		return fmt.Errorf("too many tags")
	}
	for _, tag := range payload.Tags {
		if tag == "" || len(tag) > maxTagLength {
			return fmt.Errorf("tag length out of bounds")
		}
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
