package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/meatcoin/meatcoin/internal/auth"
	"github.com/meatcoin/meatcoin/internal/directory"
	"github.com/meatcoin/meatcoin/internal/handler/dto"
	"github.com/meatcoin/meatcoin/internal/identity"
	"github.com/meatcoin/meatcoin/internal/metrics"
	"github.com/meatcoin/meatcoin/internal/service"
	"github.com/meatcoin/meatcoin/internal/testutil"
	"github.com/meatcoin/meatcoin/internal/tokenledger"
)

const testDeposit = 1_000_000

type fixture struct {
	handler *LedgerHandler
	svc     *service.LedgerService
	ledger  *tokenledger.Memory
	admin   identity.Identity
	mint    identity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	admin := testutil.NewIdentity(t, 1)
	mint := testutil.NewIdentity(t, 9)

	ledger := tokenledger.NewMemory()
	if err := ledger.CreateMint(context.Background(), mint, admin); err != nil {
		t.Fatalf("CreateMint: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewLedgerService(
		testutil.NewMemStore(),
		ledger,
		directory.NewMemory(testDeposit),
		nil,
		nil,
		logger,
		metrics.NewInMemory(),
		mint,
	)

	return &fixture{
		handler: NewLedgerHandler(svc, logger),
		svc:     svc,
		ledger:  ledger,
		admin:   admin,
		mint:    mint,
	}
}

// initialize runs the initialize transition and returns the resulting state.
func (f *fixture) initialize(t *testing.T) *dto.StateResponse {
	t.Helper()

	rec := f.do(t, f.handler.Initialize, f.admin, http.MethodPost, "/api/v1/initialize", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("initialize: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var state dto.StateResponse
	decode(t, rec, &state)
	return &state
}

// do issues a request to a handler func as the given authenticated caller.
func (f *fixture) do(t *testing.T, fn http.HandlerFunc, caller identity.Identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	ctx := auth.ContextWithAuth(req.Context(), &auth.AuthContext{Caller: caller})

	rec := httptest.NewRecorder()
	fn(rec, req.WithContext(ctx))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()

	if rec.Code != status {
		t.Errorf("status = %d, want %d: %s", rec.Code, status, rec.Body.String())
	}

	var resp dto.ErrorResponse
	decode(t, rec, &resp)
	if resp.Code != code {
		t.Errorf("code = %s, want %s", resp.Code, code)
	}
}

// fundAccount creates a token account and mints a balance into it through
// the service, so the ledger-side authority handoff stays consistent.
func (f *fixture) fundAccount(t *testing.T, owner identity.Identity, fill byte, amount uint64) identity.Identity {
	t.Helper()

	addr := testutil.NewIdentity(t, fill)
	if err := f.ledger.CreateAccount(context.Background(), addr, f.mint, owner); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if amount > 0 {
		rec := f.do(t, f.handler.Mint, f.admin, http.MethodPost, "/api/v1/mint", dto.MintRequest{
			Recipient: addr.String(),
			Amount:    strconv.FormatUint(amount, 10),
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("fund mint: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}
	return addr
}

func TestInitializeEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	state := f.initialize(t)

	if state.Admin != f.admin.String() {
		t.Errorf("admin = %s, want %s", state.Admin, f.admin.String())
	}
	if state.Minted != "0" || state.Redeemed != "0" {
		t.Errorf("counters = %s/%s, want 0/0", state.Minted, state.Redeemed)
	}
	if state.Treasury == "" || state.Authority == "" {
		t.Error("expected derived treasury and authority")
	}

	// Second initialize conflicts.
	rec := f.do(t, f.handler.Initialize, f.admin, http.MethodPost, "/api/v1/initialize", nil)
	assertError(t, rec, http.StatusConflict, service.CodeAlreadyInitialized)
}

func TestMintEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := testutil.NewIdentity(t, 3)
	if err := f.ledger.CreateAccount(context.Background(), account, f.mint, holder); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	rec := f.do(t, f.handler.Mint, f.admin, http.MethodPost, "/api/v1/mint", dto.MintRequest{
		Recipient: account.String(),
		Amount:    "100",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state dto.StateResponse
	decode(t, rec, &state)
	if state.Minted != "100" {
		t.Errorf("minted = %s, want 100", state.Minted)
	}
}

func TestMintEndpoint_Failures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := testutil.NewIdentity(t, 3)
	if err := f.ledger.CreateAccount(context.Background(), account, f.mint, holder); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	tests := []struct {
		name       string
		caller     identity.Identity
		req        dto.MintRequest
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not admin",
			caller:     holder,
			req:        dto.MintRequest{Recipient: account.String(), Amount: "10"},
			wantStatus: http.StatusForbidden,
			wantCode:   service.CodeUnauthorized,
		},
		{
			name:       "zero amount",
			caller:     f.admin,
			req:        dto.MintRequest{Recipient: account.String(), Amount: "0"},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeInvalidAmount,
		},
		{
			name:       "malformed amount",
			caller:     f.admin,
			req:        dto.MintRequest{Recipient: account.String(), Amount: "ten"},
			wantStatus: http.StatusBadRequest,
			wantCode:   service.CodeInvalidAmount,
		},
		{
			name:       "malformed recipient",
			caller:     f.admin,
			req:        dto.MintRequest{Recipient: "nope", Amount: "10"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_IDENTITY",
		},
		{
			name:       "unknown recipient account",
			caller:     f.admin,
			req:        dto.MintRequest{Recipient: testutil.NewIdentity(t, 7).String(), Amount: "10"},
			wantStatus: http.StatusForbidden,
			wantCode:   service.CodeInvalidTokenAccount,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, f.handler.Mint, tt.caller, http.MethodPost, "/api/v1/mint", tt.req)
			assertError(t, rec, tt.wantStatus, tt.wantCode)
		})
	}
}

func TestRedeemEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	state := f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := f.fundAccount(t, holder, 3, 100)

	rec := f.do(t, f.handler.Redeem, holder, http.MethodPost, "/api/v1/redeem", dto.RedeemRequest{
		From:     account.String(),
		Treasury: state.Treasury,
		Amount:   "40",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.RedeemResponse
	decode(t, rec, &resp)
	if resp.State.Redeemed != "40" {
		t.Errorf("redeemed = %s, want 40", resp.State.Redeemed)
	}
	if resp.Record.Amount != "40" || resp.Record.RedemptionCount != "1" {
		t.Errorf("record = %s/%s, want 40/1", resp.Record.Amount, resp.Record.RedemptionCount)
	}
	if resp.Record.User != holder.String() {
		t.Errorf("record user = %s, want %s", resp.Record.User, holder.String())
	}
}

func TestRedeemEndpoint_WrongTreasury(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := f.fundAccount(t, holder, 3, 100)

	rec := f.do(t, f.handler.Redeem, holder, http.MethodPost, "/api/v1/redeem", dto.RedeemRequest{
		From:     account.String(),
		Treasury: testutil.NewIdentity(t, 8).String(),
		Amount:   "40",
	})
	assertError(t, rec, http.StatusUnprocessableEntity, service.CodeInvalidTreasury)
}

func TestRedeemEndpoint_InsufficientFunds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	state := f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := f.fundAccount(t, holder, 3, 10)

	rec := f.do(t, f.handler.Redeem, holder, http.MethodPost, "/api/v1/redeem", dto.RedeemRequest{
		From:     account.String(),
		Treasury: state.Treasury,
		Amount:   "50",
	})
	assertError(t, rec, http.StatusUnprocessableEntity, service.CodeLedgerRejected)
}

func TestChangeAdminEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.initialize(t)

	next := testutil.NewIdentity(t, 4)

	rec := f.do(t, f.handler.ChangeAdmin, f.admin, http.MethodPost, "/api/v1/admin", dto.ChangeAdminRequest{
		NewAdmin: next.String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state dto.StateResponse
	decode(t, rec, &state)
	if state.Admin != next.String() {
		t.Errorf("admin = %s, want %s", state.Admin, next.String())
	}

	// The old admin lost control.
	rec = f.do(t, f.handler.ChangeAdmin, f.admin, http.MethodPost, "/api/v1/admin", dto.ChangeAdminRequest{
		NewAdmin: f.admin.String(),
	})
	assertError(t, rec, http.StatusForbidden, service.CodeUnauthorized)
}

func TestChangeAdminEndpoint_ZeroAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.initialize(t)

	rec := f.do(t, f.handler.ChangeAdmin, f.admin, http.MethodPost, "/api/v1/admin", dto.ChangeAdminRequest{
		NewAdmin: identity.Zero.String(),
	})
	assertError(t, rec, http.StatusBadRequest, service.CodeEmptyAdmin)
}

func TestCloseRecordEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	state := f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := f.fundAccount(t, holder, 3, 100)

	rec := f.do(t, f.handler.Redeem, holder, http.MethodPost, "/api/v1/redeem", dto.RedeemRequest{
		From:     account.String(),
		Treasury: state.Treasury,
		Amount:   "40",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, f.handler.CloseRecord, holder, http.MethodDelete, "/api/v1/redemption-records/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.CloseRecordResponse
	decode(t, rec, &resp)
	if resp.Refund != "1000000" {
		t.Errorf("refund = %s, want 1000000", resp.Refund)
	}

	// The record is gone; closing again is a 404.
	rec = f.do(t, f.handler.CloseRecord, holder, http.MethodDelete, "/api/v1/redemption-records/me", nil)
	assertError(t, rec, http.StatusNotFound, service.CodeRecordNotFound)
}

func TestGetStateEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// Before initialize the state does not exist.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	rec := httptest.NewRecorder()
	f.handler.GetState(rec, req)
	assertError(t, rec, http.StatusConflict, service.CodeNotInitialized)

	f.initialize(t)

	rec = httptest.NewRecorder()
	f.handler.GetState(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var state dto.StateResponse
	decode(t, rec, &state)
	if state.Admin != f.admin.String() {
		t.Errorf("admin = %s, want %s", state.Admin, f.admin.String())
	}
}

func TestGetRecordEndpoint(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	state := f.initialize(t)

	holder := testutil.NewIdentity(t, 2)
	account := f.fundAccount(t, holder, 3, 100)

	rec := f.do(t, f.handler.Redeem, holder, http.MethodPost, "/api/v1/redeem", dto.RedeemRequest{
		From:     account.String(),
		Treasury: state.Treasury,
		Amount:   "25",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	router := chi.NewRouter()
	router.Get("/api/v1/redemption-records/{user}", f.handler.GetRecord)

	// Known record.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/redemption-records/"+holder.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.RecordResponse
	decode(t, rec, &resp)
	if resp.Amount != "25" || resp.RedemptionCount != "1" {
		t.Errorf("record = %s/%s, want 25/1", resp.Amount, resp.RedemptionCount)
	}

	// Unknown record.
	rec = httptest.NewRecorder()
	other := testutil.NewIdentity(t, 6)
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/redemption-records/"+other.String(), nil))
	assertError(t, rec, http.StatusNotFound, service.CodeRecordNotFound)

	// Malformed identity.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/redemption-records/xyz", nil))
	assertError(t, rec, http.StatusBadRequest, "INVALID_IDENTITY")
}
