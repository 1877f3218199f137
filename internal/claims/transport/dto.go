package transport

import (
	"time"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/override"
	"cashback_backend/internal/claims/registry"

	"github.com/google/uuid"
)

// OverrideRequest is a seller command issued through the admin API.
type OverrideRequest struct {
	Identity  string `json:"identity" validate:"required,identity"`
	Action    string `json:"action" validate:"required,oneof=confirm cancel"`
	ProductID *int64 `json:"productId" validate:"omitempty,gt=0"`
	Amount    *int64 `json:"amount" validate:"omitempty,gt=0"`
}

// Command converts the request to an override command.
func (r OverrideRequest) Command() override.Command {
	return override.Command{Action: override.Action(r.Action), ProductID: r.ProductID, Amount: r.Amount}
}

type PayoutResponse struct {
	Phone        string `json:"phone,omitempty"`
	Bank         string `json:"bank,omitempty"`
	Amount       *int64 `json:"amount,omitempty"`
	AmountSource string `json:"amountSource,omitempty"`
}

type ClaimResponse struct {
	ID              uuid.UUID             `json:"id"`
	Identity        string                `json:"identity"`
	ProductID       int64                 `json:"productId"`
	Stage           string                `json:"stage"`
	Status          string                `json:"status"`
	Pending         bool                  `json:"pending"`
	Ordered         bool                  `json:"ordered"`
	Reviewed        bool                  `json:"reviewed"`
	LabelDestroyed  bool                  `json:"labelDestroyed"`
	PayoutCollected bool                  `json:"payoutCollected"`
	PayoutConfirmed bool                  `json:"payoutConfirmed"`
	Payout          PayoutResponse        `json:"payout"`
	History         []domain.HistoryEntry `json:"history"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type ResumeResponse struct {
	ClaimID   uuid.UUID `json:"claimId"`
	ProductID int64     `json:"productId"`
	Stage     string    `json:"stage"`
}

type ClaimListResponse struct {
	Identity string          `json:"identity"`
	Claims   []ClaimResponse `json:"claims"`
	Resume   *ResumeResponse `json:"resume,omitempty"`
}

type OverrideResponse struct {
	Claim         ClaimResponse   `json:"claim"`
	Action        string          `json:"action"`
	FromStage     string          `json:"fromStage"`
	AmountApplied bool            `json:"amountApplied"`
	Resume        *ResumeResponse `json:"resume,omitempty"`
}

func ToClaimResponse(c domain.Claim) ClaimResponse {
	history := c.History.Entries
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	return ClaimResponse{
		ID:              c.ID,
		Identity:        c.Identity,
		ProductID:       c.ProductID,
		Stage:           domain.CurrentStage(c).String(),
		Status:          string(c.Status),
		Pending:         domain.IsPending(c),
		Ordered:         c.Ordered,
		Reviewed:        c.Reviewed,
		LabelDestroyed:  c.LabelDestroyed,
		PayoutCollected: c.PayoutCollected,
		PayoutConfirmed: c.PayoutConfirmed,
		Payout: PayoutResponse{
			Phone:        c.Payout.Phone,
			Bank:         c.Payout.Bank,
			Amount:       c.Payout.Amount,
			AmountSource: string(c.Payout.AmountSource),
		},
		History:   history,
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func ToResumeResponse(r *registry.Resume) *ResumeResponse {
	if r == nil {
		return nil
	}
	return &ResumeResponse{ClaimID: r.Claim.ID, ProductID: r.Claim.ProductID, Stage: r.Stage.String()}
}

func ToOverrideResponse(result override.Result) OverrideResponse {
	return OverrideResponse{
		Claim:         ToClaimResponse(result.Claim),
		Action:        string(result.Action),
		FromStage:     result.FromStage.String(),
		AmountApplied: result.AmountApplied,
		Resume:        ToResumeResponse(result.Resume),
	}
}
