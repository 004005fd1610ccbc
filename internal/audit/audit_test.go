package audit

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/model"
)

func testIdentity(b byte) identity.Identity {
	var id identity.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestValidateTransitionEventPayload(t *testing.T) {
	actor := testIdentity(1).String()
	counterparty := testIdentity(2).String()

	valid := TransitionEventPayload{
		Op:           model.OpMint,
		Actor:        actor,
		Counterparty: counterparty,
		Amount:       "100",
		Tags:         []string{"genesis"},
		OccurredAt:   time.Now().UnixMilli(),
	}

	if err := ValidateTransitionEventPayload(valid); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	cases := []struct {
		name    string
		payload TransitionEventPayload
	}{
		{"missing_op", TransitionEventPayload{Actor: actor, Amount: "1", OccurredAt: 1}},
		{"unknown_op", TransitionEventPayload{Op: "burn", Actor: actor, Amount: "1", OccurredAt: 1}},
		{"missing_actor", TransitionEventPayload{Op: model.OpMint, Amount: "1", OccurredAt: 1}},
		{"short_actor", TransitionEventPayload{Op: model.OpMint, Actor: "abcd", Amount: "1", OccurredAt: 1}},
		{"non_hex_actor", TransitionEventPayload{Op: model.OpMint, Actor: strings.Repeat("z", 64), Amount: "1", OccurredAt: 1}},
		{"bad_counterparty", TransitionEventPayload{Op: model.OpMint, Actor: actor, Counterparty: "xyz", Amount: "1", OccurredAt: 1}},
		{"missing_amount", TransitionEventPayload{Op: model.OpMint, Actor: actor, OccurredAt: 1}},
		{"negative_amount", TransitionEventPayload{Op: model.OpMint, Actor: actor, Amount: "-5", OccurredAt: 1}},
		{"overflow_amount", TransitionEventPayload{Op: model.OpMint, Actor: actor, Amount: "18446744073709551616", OccurredAt: 1}},
		{"missing_occurred_at", TransitionEventPayload{Op: model.OpMint, Actor: actor, Amount: "1"}},
		{"empty_tag", TransitionEventPayload{Op: model.OpMint, Actor: actor, Amount: "1", Tags: []string{""}, OccurredAt: 1}},
	}

	for _, tc := range cases {
		if err := ValidateTransitionEventPayload(tc.payload); err == nil {
			t.Fatalf("expected error for %s", tc.name)
		}
	}
}

func TestNewTransitionEventPayload(t *testing.T) {
	t.Parallel()

	actor := testIdentity(3)
	user := testIdentity(4)
	occurred := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)

	payload := NewTransitionEventPayload(model.OpRedeem, actor, user, 40, nil, occurred)

	if payload.Actor != actor.String() {
		t.Errorf("Actor = %q, want %q", payload.Actor, actor.String())
	}
	if payload.Counterparty != user.String() {
		t.Errorf("Counterparty = %q, want %q", payload.Counterparty, user.String())
	}
	if payload.Amount != "40" {
		t.Errorf("Amount = %q, want \"40\"", payload.Amount)
	}
	if payload.OccurredAt != occurred.UnixMilli() {
		t.Errorf("OccurredAt = %d, want %d", payload.OccurredAt, occurred.UnixMilli())
	}
	if err := ValidateTransitionEventPayload(payload); err != nil {
		t.Fatalf("constructed payload should validate, got %v", err)
	}
}

func TestNewTransitionEventPayload_ZeroCounterparty(t *testing.T) {
	t.Parallel()

	payload := NewTransitionEventPayload(model.OpChangeAdmin, testIdentity(5), identity.Identity{}, 0, nil, time.Now())

	if payload.Counterparty != "" {
		t.Errorf("zero counterparty should be omitted, got %q", payload.Counterparty)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "\"cp\"") {
		t.Errorf("serialized payload should omit empty counterparty: %s", data)
	}
}

func TestPayloadToModel(t *testing.T) {
	t.Parallel()

	actor := testIdentity(6)
	occurred := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	payload := NewTransitionEventPayload(model.OpMint, actor, testIdentity(7), 18446744073709551615, []string{"max"}, occurred)

	event, err := payload.toModel("01HX0000000000000000000000", "1700000000000-0")
	if err != nil {
		t.Fatalf("toModel: %v", err)
	}

	if event.Amount != 18446744073709551615 {
		t.Errorf("Amount = %d, want max u64", event.Amount)
	}
	if event.EventID != "1700000000000-0" {
		t.Errorf("EventID = %q", event.EventID)
	}
	if event.Op != model.OpMint {
		t.Errorf("Op = %q", event.Op)
	}
	if !event.OccurredAt.Equal(occurred) {
		t.Errorf("OccurredAt = %v, want %v", event.OccurredAt, occurred)
	}
}

func TestPayloadToModel_BadAmount(t *testing.T) {
	t.Parallel()

	payload := TransitionEventPayload{Op: model.OpMint, Actor: testIdentity(8).String(), Amount: "not-a-number", OccurredAt: 1}

	if _, err := payload.toModel("id", "1-0"); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}

func TestNewConsumerID_Unique(t *testing.T) {
	t.Parallel()

	a := NewConsumerID()
	b := NewConsumerID()

	if a == "" || b == "" {
		t.Fatal("consumer ID should not be empty")
	}
	if a == b {
		t.Error("consecutive consumer IDs should differ")
	}
}
