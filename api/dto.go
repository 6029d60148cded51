/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the internal domain
  model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs. DTOs
  are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/loopreach/settlement-engine/enrollment"
	"github.com/loopreach/settlement-engine/ledger"
	"github.com/loopreach/settlement-engine/payout"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// CreateEnrollmentRequest creates an enrollment for a shopper.
type CreateEnrollmentRequest struct {
	CampaignID string `json:"campaign_id"`
	ShopperID  string `json:"shopper_id"`
	Status     string `json:"status,omitempty"` // enrolled (default) or awaiting_submission
}

// AttachOrderRequest records order facts on an enrollment.
type AttachOrderRequest struct {
	OrderID    string `json:"order_id"`
	OrderValue int64  `json:"order_value"`
	Quantity   int64  `json:"quantity,omitempty"`
	PlacedAt   string `json:"placed_at,omitempty"` // RFC3339; defaults to now
}

// TransitionRequest applies one action to an enrollment.
type TransitionRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// BulkTransitionRequest applies one action to many enrollments.
type BulkTransitionRequest struct {
	EnrollmentIDs []string `json:"enrollment_ids"`
	Action        string   `json:"action"`
	Reason        string   `json:"reason,omitempty"`
}

// DepositRequest adds funds to an organization wallet.
type DepositRequest struct {
	Amount int64 `json:"amount"`
}

// EnrollmentDTO represents an enrollment in API responses.
type EnrollmentDTO struct {
	ID                 string    `json:"id"`
	CampaignID         string    `json:"campaign_id"`
	ShopperID          string    `json:"shopper_id"`
	OrganizationID     string    `json:"organization_id"`
	Status             string    `json:"status"`
	Order              *OrderDTO `json:"order,omitempty"`
	PlatformFeePercent string    `json:"platform_fee_percent"`
	GSTPercent         string    `json:"gst_percent"`
	CreatedAt          string    `json:"created_at"`
	UpdatedAt          string    `json:"updated_at"`
}

// OrderDTO represents attached order facts.
type OrderDTO struct {
	OrderID  string `json:"order_id"`
	Value    int64  `json:"value"`
	Quantity int64  `json:"quantity"`
	PlacedAt string `json:"placed_at"`
}

// HistoryEntryDTO is one transition record.
type HistoryEntryDTO struct {
	ID         string  `json:"id"`
	FromStatus *string `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	ActorType  string  `json:"actor_type"`
	ActorID    string  `json:"actor_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// HistoryDTO is the getTransitionHistory response.
type HistoryDTO struct {
	EnrollmentID   string            `json:"enrollment_id"`
	CurrentStatus  string            `json:"current_status"`
	AllowedActions []string          `json:"allowed_actions"`
	History        []HistoryEntryDTO `json:"history"`
}

// BulkResultDTO is the partial-success batch outcome.
type BulkResultDTO struct {
	Succeeded []string         `json:"succeeded"`
	Failed    []BulkFailureDTO `json:"failed"`
}

// BulkFailureDTO records one item that could not be transitioned.
type BulkFailureDTO struct {
	EnrollmentID string `json:"enrollment_id"`
	Error        string `json:"error"`
	Code         string `json:"code"`
}

// BreakdownDTO is a payout calculation result.
type BreakdownDTO struct {
	OrderValue    int64         `json:"order_value"`
	Quantity      int64         `json:"quantity"`
	PayoutPerUnit int64         `json:"payout_per_unit"`
	TotalPayout   int64         `json:"total_payout"`
	PlatformFee   int64         `json:"platform_fee"`
	GSTAmount     int64         `json:"gst_amount"`
	NetPayout     int64         `json:"net_payout"`
	LineItems     []LineItemDTO `json:"line_items"`
}

// LineItemDTO is one labeled breakdown row.
type LineItemDTO struct {
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// WalletDTO represents an organization wallet.
type WalletDTO struct {
	OrganizationID string `json:"organization_id"`
	Available      int64  `json:"available_balance"`
	Held           int64  `json:"held_amount"`
	CreditLimit    int64  `json:"credit_limit"`
	CreditUtilized int64  `json:"credit_utilized"`
	UpdatedAt      string `json:"updated_at"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEnrollmentDTO(e *enrollment.Enrollment) EnrollmentDTO {
	dto := EnrollmentDTO{
		ID:                 e.ID,
		CampaignID:         e.CampaignID,
		ShopperID:          e.ShopperID,
		OrganizationID:     e.OrganizationID,
		Status:             string(e.Status),
		PlatformFeePercent: e.PlatformFeePercent.String(),
		GSTPercent:         e.GSTPercent.String(),
		CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:          e.UpdatedAt.Format(time.RFC3339),
	}
	if e.Order != nil {
		dto.Order = &OrderDTO{
			OrderID:  e.Order.OrderID,
			Value:    e.Order.Value.Int64(),
			Quantity: e.Order.Quantity,
			PlacedAt: e.Order.PlacedAt.Format(time.RFC3339),
		}
	}
	return dto
}

func toHistoryDTO(h *enrollment.History) HistoryDTO {
	actions := make([]string, len(h.AllowedActions))
	for i, a := range h.AllowedActions {
		actions[i] = string(a)
	}
	entries := make([]HistoryEntryDTO, len(h.Entries))
	for i, entry := range h.Entries {
		dto := HistoryEntryDTO{
			ID:        entry.ID,
			ToStatus:  string(entry.ToStatus),
			ActorType: string(entry.Actor.Type),
			ActorID:   entry.Actor.ID,
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.FromStatus != nil {
			from := string(*entry.FromStatus)
			dto.FromStatus = &from
		}
		entries[i] = dto
	}
	return HistoryDTO{
		EnrollmentID:   h.EnrollmentID,
		CurrentStatus:  string(h.CurrentStatus),
		AllowedActions: actions,
		History:        entries,
	}
}

func toBreakdownDTO(b *payout.Breakdown) BreakdownDTO {
	items := make([]LineItemDTO, len(b.LineItems))
	for i, item := range b.LineItems {
		items[i] = LineItemDTO{Label: item.Label, Amount: item.Amount.Int64()}
	}
	return BreakdownDTO{
		OrderValue:    b.OrderValue.Int64(),
		Quantity:      b.Quantity,
		PayoutPerUnit: b.PayoutPerUnit.Int64(),
		TotalPayout:   b.TotalPayout.Int64(),
		PlatformFee:   b.PlatformFee.Int64(),
		GSTAmount:     b.GSTAmount.Int64(),
		NetPayout:     b.NetPayout.Int64(),
		LineItems:     items,
	}
}

func toWalletDTO(w *ledger.Wallet) WalletDTO {
	return WalletDTO{
		OrganizationID: w.OrganizationID,
		Available:      w.Available.Int64(),
		Held:           w.Held.Int64(),
		CreditLimit:    w.CreditLimit.Int64(),
		CreditUtilized: w.CreditUtilized.Int64(),
		UpdatedAt:      w.UpdatedAt.Format(time.RFC3339),
	}
}

func toBulkResultDTO(r *enrollment.BulkResult) BulkResultDTO {
	dto := BulkResultDTO{
		Succeeded: r.Succeeded,
		Failed:    make([]BulkFailureDTO, len(r.Failed)),
	}
	if dto.Succeeded == nil {
		dto.Succeeded = []string{}
	}
	for i, f := range r.Failed {
		dto.Failed[i] = BulkFailureDTO{
			EnrollmentID: f.EnrollmentID,
			Error:        f.Err.Error(),
			Code:         codeFor(f.Err),
		}
	}
	return dto
}
