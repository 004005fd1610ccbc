package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meatcoin/meatcoin/internal/auth"
	"github.com/meatcoin/meatcoin/internal/handler/dto"
	"github.com/meatcoin/meatcoin/internal/middleware"
	"github.com/meatcoin/meatcoin/internal/service"
)

// LedgerHandler handles HTTP requests for the ledger transitions and reads.
type LedgerHandler struct {
	svc    *service.LedgerService
	logger *slog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *service.LedgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{
		svc:    svc,
		logger: logger,
	}
}

// Initialize handles POST /api/v1/initialize. The authenticated caller
// becomes the admin.
func (h *LedgerHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustAuthFromContext(r.Context()).Caller

	state, err := h.svc.Initialize(r.Context(), caller)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("ledger_initialized",
		"admin", caller.Short(),
		"treasury", state.Treasury.Short(),
	)

	writeJSON(w, http.StatusCreated, dto.ToStateResponse(state))
}

// Mint handles POST /api/v1/mint.
func (h *LedgerHandler) Mint(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustAuthFromContext(r.Context()).Caller

	var req dto.MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	recipient, err := middleware.ValidateIdentity(req.Recipient)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_IDENTITY", "recipient: "+err.Error())
		return
	}
	amount, err := middleware.ValidatePositiveAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, service.CodeInvalidAmount, err.Error())
		return
	}

	state, err := h.svc.MintTokens(r.Context(), caller, recipient, amount)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("tokens_minted",
		"recipient", recipient.Short(),
		"amount", amount,
	)

	writeJSON(w, http.StatusOK, dto.ToStateResponse(state))
}

// Redeem handles POST /api/v1/redeem.
func (h *LedgerHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustAuthFromContext(r.Context()).Caller

	var req dto.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	from, err := middleware.ValidateIdentity(req.From)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_IDENTITY", "from: "+err.Error())
		return
	}
	treasury, err := middleware.ValidateIdentity(req.Treasury)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_IDENTITY", "treasury: "+err.Error())
		return
	}
	amount, err := middleware.ValidatePositiveAmount(req.Amount)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, service.CodeInvalidAmount, err.Error())
		return
	}

	state, record, err := h.svc.Redeem(r.Context(), caller, from, treasury, amount)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("tokens_redeemed",
		"user", caller.Short(),
		"amount", amount,
	)

	writeJSON(w, http.StatusOK, dto.RedeemResponse{
		State:  dto.ToStateResponse(state),
		Record: dto.ToRecordResponse(record),
	})
}

// ChangeAdmin handles POST /api/v1/admin.
func (h *LedgerHandler) ChangeAdmin(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustAuthFromContext(r.Context()).Caller

	var req dto.ChangeAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	newAdmin, err := middleware.ValidateIdentity(req.NewAdmin)
	if err != nil {
		// The zero identity parses but is rejected by the service with
		// its own code, so only malformed input lands here.
		h.writeError(w, http.StatusBadRequest, "INVALID_IDENTITY", "new_admin: "+err.Error())
		return
	}

	state, err := h.svc.ChangeAdmin(r.Context(), caller, newAdmin)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("admin_changed",
		"old_admin", caller.Short(),
		"new_admin", newAdmin.Short(),
	)

	writeJSON(w, http.StatusOK, dto.ToStateResponse(state))
}

// CloseRecord handles DELETE /api/v1/redemption-records/me.
func (h *LedgerHandler) CloseRecord(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustAuthFromContext(r.Context()).Caller

	refund, err := h.svc.CloseRedemptionRecord(r.Context(), caller)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("record_closed",
		"user", caller.Short(),
		"refund", refund,
	)

	writeJSON(w, http.StatusOK, dto.CloseRecordResponse{
		Refund: strconv.FormatUint(refund, 10),
	})
}

// GetState handles GET /api/v1/state.
func (h *LedgerHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.GetState(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToStateResponse(state))
}

// GetRecord handles GET /api/v1/redemption-records/{user}.
func (h *LedgerHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.ValidateIdentity(chi.URLParam(r, "user"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_IDENTITY", "user: "+err.Error())
		return
	}

	record, err := h.svc.GetRecord(r.Context(), user)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToRecordResponse(record))
}

// handleServiceError maps service errors to HTTP responses.
func (h *LedgerHandler) handleServiceError(w http.ResponseWriter, err error) {
	code := service.ErrorCode(err)
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, code, "Caller is not authorized for this transition")
	case errors.Is(err, service.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, code, "Amount must be greater than zero")
	case errors.Is(err, service.ErrInvalidTreasury):
		h.writeError(w, http.StatusUnprocessableEntity, code, "Treasury does not match ledger state")
	case errors.Is(err, service.ErrInvalidTokenAccount):
		h.writeError(w, http.StatusForbidden, code, "Token account is not usable for this transition")
	case errors.Is(err, service.ErrOverflow):
		h.writeError(w, http.StatusUnprocessableEntity, code, "Counter addition would overflow")
	case errors.Is(err, service.ErrAlreadyInitialized):
		h.writeError(w, http.StatusConflict, code, "Ledger already initialized")
	case errors.Is(err, service.ErrNotInitialized):
		h.writeError(w, http.StatusConflict, code, "Ledger not initialized")
	case errors.Is(err, service.ErrRecordNotFound):
		h.writeError(w, http.StatusNotFound, code, "Redemption record not found")
	case errors.Is(err, service.ErrEmptyAdmin):
		h.writeError(w, http.StatusBadRequest, code, "New admin must not be the zero identity")
	case code == service.CodeLedgerRejected:
		h.writeError(w, http.StatusUnprocessableEntity, code, "Token ledger rejected the operation")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, code, "An internal error occurred")
	}
}

// writeError writes an error response.
func (h *LedgerHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
