/*
handlers.go - HTTP API handlers for the settlement engine

PURPOSE:
  Exposes the enrollment lifecycle and wallet ledger via REST. Handles
  HTTP request/response and JSON serialization, and delegates everything
  else to the domain services.

ENDPOINTS:
  Enrollments:
    POST   /api/enrollments                      Create enrollment
    GET    /api/enrollments/{id}                 Get enrollment
    POST   /api/enrollments/{id}/order           Attach order facts
    POST   /api/enrollments/{id}/transition      Apply one action
    GET    /api/enrollments/{id}/history         Status + allowed actions + audit trail
    POST   /api/enrollments/bulk                 Apply one action to many

  Campaigns:
    GET    /api/campaigns/{id}/payout            Payout preview

  Organizations:
    GET    /api/organizations/{id}/wallet        Wallet balances
    POST   /api/organizations/{id}/wallet/deposit  Add funds

ERROR HANDLING:
  Every error carries a stable machine code alongside the human-readable
  message, so the error kind survives the transport:
    400 validation_error      404 not_found      409 conflict
    409 illegal_transition    422 insufficient_credit
    500 internal_error (logged with full context, surfaced generically)

SEE ALSO:
  - dto.go: Request/response structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/loopreach/settlement-engine/enrollment"
	"github.com/loopreach/settlement-engine/ledger"
	"github.com/loopreach/settlement-engine/money"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Enrollments *enrollment.Service
	Wallets     *ledger.WalletLedger
	Logger      *slog.Logger
}

func NewHandler(enrollments *enrollment.Service, wallets *ledger.WalletLedger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Enrollments: enrollments, Wallets: wallets, Logger: logger}
}

// =============================================================================
// ENROLLMENT HANDLERS
// =============================================================================

// CreateEnrollment creates an enrollment in its starting status.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req CreateEnrollmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", codeValidation)
		return
	}

	e, err := h.Enrollments.Create(r.Context(), req.CampaignID, req.ShopperID, enrollment.Status(req.Status))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEnrollmentDTO(e))
}

// GetEnrollment returns a single enrollment.
func (h *Handler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := h.Enrollments.Store.GetEnrollment(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "Enrollment not found", codeNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(e))
}

// AttachOrder records order facts on an enrollment.
func (h *Handler) AttachOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AttachOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", codeValidation)
		return
	}

	placedAt := time.Now().UTC()
	if req.PlacedAt != "" {
		t, err := time.Parse(time.RFC3339, req.PlacedAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid placed_at format (use RFC3339)", codeValidation)
			return
		}
		placedAt = t
	}

	e, err := h.Enrollments.AttachOrder(r.Context(), id, enrollment.Order{
		OrderID:  req.OrderID,
		Value:    money.New(req.OrderValue),
		Quantity: req.Quantity,
		PlacedAt: placedAt,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(e))
}

// Transition applies one action to one enrollment.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", codeValidation)
		return
	}

	actor := actorFrom(authFrom(r.Context()))
	e, err := h.Enrollments.ApplyTransition(r.Context(), id, enrollment.Action(req.Action), actor, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEnrollmentDTO(e))
}

// BulkTransition applies one action to many enrollments with
// partial-success semantics. The response is 200 even when some items
// fail; the caller decides whether partial success is acceptable.
func (h *Handler) BulkTransition(w http.ResponseWriter, r *http.Request) {
	var req BulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", codeValidation)
		return
	}

	actor := actorFrom(authFrom(r.Context()))
	result, err := h.Enrollments.BulkApply(r.Context(), req.EnrollmentIDs, enrollment.Action(req.Action), actor, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBulkResultDTO(result))
}

// History returns the current status, legal next actions, and the full
// transition audit trail.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	history, err := h.Enrollments.GetHistory(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryDTO(history))
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// PayoutPreview computes a breakdown for a hypothetical order against a
// campaign's current rule.
// GET /api/campaigns/{id}/payout?order_value=10000&quantity=1
func (h *Handler) PayoutPreview(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	orderValue, err := strconv.ParseInt(r.URL.Query().Get("order_value"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "order_value must be an integer", codeValidation)
		return
	}
	var quantity int64
	if q := r.URL.Query().Get("quantity"); q != "" {
		if quantity, err = strconv.ParseInt(q, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "quantity must be an integer", codeValidation)
			return
		}
	}

	breakdown, err := h.Enrollments.PreviewPayout(r.Context(), campaignID, money.New(orderValue), quantity)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdownDTO(breakdown))
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// GetWallet returns an organization's wallet balances.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")

	wallet, err := h.Wallets.GetWallet(r.Context(), orgID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(wallet))
}

// Deposit adds funds to an organization's wallet through the ledger.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", codeValidation)
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Deposit amount must be positive", codeValidation)
		return
	}

	wallet, err := h.Wallets.Deposit(r.Context(), orgID, money.New(req.Amount))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWalletDTO(wallet))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

const (
	codeValidation         = "validation_error"
	codeNotFound           = "not_found"
	codeIllegalTransition  = "illegal_transition"
	codeConflict           = "conflict"
	codeInsufficientCredit = "insufficient_credit"
	codeForbidden          = "forbidden"
	codeInternal           = "internal_error"
)

// codeFor classifies an error into its stable machine code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, enrollment.ErrValidation):
		return codeValidation
	case enrollment.IsNotFound(err), ledger.IsNotFound(err):
		return codeNotFound
	case errors.Is(err, enrollment.ErrIllegalTransition):
		return codeIllegalTransition
	case errors.Is(err, enrollment.ErrConflict):
		return codeConflict
	case errors.Is(err, ledger.ErrInsufficientCredit):
		return codeInsufficientCredit
	default:
		return codeInternal
	}
}

func statusFor(code string) int {
	switch code {
	case codeValidation:
		return http.StatusBadRequest
	case codeNotFound:
		return http.StatusNotFound
	case codeIllegalTransition, codeConflict:
		return http.StatusConflict
	case codeInsufficientCredit:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError maps a domain error onto the wire. Internal errors are
// logged with full context and surfaced as a generic retry-safe message.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	code := codeFor(err)
	if code == codeInternal {
		h.Logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "Something went wrong, please retry", codeInternal)
		return
	}
	writeError(w, statusFor(code), err.Error(), code)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: message, Code: code})
}
