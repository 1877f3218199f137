// Package domain contains the claim state machine: evidence flags, the derived
// current stage and the rules for advancing or cancelling a claim.
package domain

import (
	"fmt"
	"time"

	"cashback_backend/platform/apperr"

	"github.com/google/uuid"
)

// AmountSource records who supplied the payout amount.
type AmountSource string

const (
	AmountSourceClaimant AmountSource = "claimant"
	AmountSourceSeller   AmountSource = "seller"
)

// Payout holds the collected payout details.
type Payout struct {
	Phone        string       `json:"phone,omitempty"`
	Bank         string       `json:"bank,omitempty"`
	Amount       *int64       `json:"amount,omitempty"`
	AmountSource AmountSource `json:"amountSource,omitempty"`
}

// Claim is one product's cashback verification for one chat identity.
type Claim struct {
	ID        uuid.UUID
	Identity  string
	ProductID int64

	Ordered         bool
	Reviewed        bool
	LabelDestroyed  bool
	PayoutCollected bool
	PayoutConfirmed bool

	Payout  Payout
	Status  Status
	History History
	Version int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewClaim builds a fresh active claim with no evidence.
func NewClaim(identity string, productID int64, historyCapacity int, now time.Time) Claim {
	return Claim{
		ID:        uuid.New(),
		Identity:  identity,
		ProductID: productID,
		Status:    StatusActive,
		History:   NewHistory(historyCapacity),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CurrentStage is the first stage whose completion flag is false.
func CurrentStage(c Claim) Stage {
	switch {
	case !c.Ordered:
		return StageAwaitingOrderProof
	case !c.Reviewed:
		return StageAwaitingReviewProof
	case !c.LabelDestroyed:
		return StageAwaitingLabelProof
	case !c.PayoutCollected:
		return StageAwaitingPayoutDetails
	case !c.PayoutConfirmed:
		return StageAwaitingPayoutConfirmation
	default:
		return StageDone
	}
}

// IsPending reports whether the claim is active and not yet done.
func IsPending(c Claim) bool {
	return c.Status == StatusActive && CurrentStage(c) != StageDone
}

func (c *Claim) flag(e Evidence) *bool {
	switch e {
	case EvidenceOrder:
		return &c.Ordered
	case EvidenceReview:
		return &c.Reviewed
	case EvidenceLabel:
		return &c.LabelDestroyed
	case EvidencePayoutDetails:
		return &c.PayoutCollected
	case EvidencePayoutConfirmation:
		return &c.PayoutConfirmed
	}
	return nil
}

// Advance marks evidence as verified. It succeeds only when the claim is
// currently waiting on the stage that evidence satisfies. Repeating evidence
// whose flag is already set is a no-op that reports advanced=false. Evidence
// for a later, unreachable stage is an ordering error and leaves c unchanged.
func Advance(c *Claim, evidence Evidence) (bool, error) {
	target, ok := evidence.Stage()
	if !ok {
		return false, apperr.Validation(fmt.Sprintf("unknown evidence kind %q", evidence)).WithOp("claims.Advance")
	}
	flag := c.flag(evidence)
	if *flag {
		return false, nil
	}
	if c.Status != StatusActive {
		return false, apperr.Ordering(fmt.Sprintf("claim for product %d is %s", c.ProductID, c.Status)).WithOp("claims.Advance")
	}

	current := CurrentStage(*c)
	if current != target {
		return false, apperr.Ordering(fmt.Sprintf("claim for product %d is %s, cannot accept %s evidence", c.ProductID, current, evidence)).
			WithOp("claims.Advance").
			WithDetails(map[string]any{"productId": c.ProductID, "currentStage": current.String(), "evidence": string(evidence)})
	}

	*flag = true
	return true, nil
}

// Cancel cancels a claim that has not progressed past order proof. Once the
// order is proven only the claim's remaining flow or a payout can close it.
func Cancel(c *Claim) error {
	if c.Status != StatusActive {
		return apperr.Ordering(fmt.Sprintf("claim for product %d is already %s", c.ProductID, c.Status)).WithOp("claims.Cancel")
	}
	if stage := CurrentStage(*c); stage != StageAwaitingOrderProof {
		return apperr.Ordering(fmt.Sprintf("claim for product %d is %s and can no longer be cancelled", c.ProductID, stage)).
			WithOp("claims.Cancel").
			WithDetails(map[string]any{"productId": c.ProductID, "currentStage": stage.String()})
	}
	c.Status = StatusCancelled
	return nil
}

// MarkPaid closes a claim whose payout was confirmed.
func MarkPaid(c *Claim) error {
	if c.Status != StatusActive {
		return apperr.Ordering(fmt.Sprintf("claim for product %d is already %s", c.ProductID, c.Status)).WithOp("claims.MarkPaid")
	}
	if stage := CurrentStage(*c); stage != StageDone {
		return apperr.Ordering(fmt.Sprintf("claim for product %d is %s, payout not confirmed", c.ProductID, stage)).WithOp("claims.MarkPaid")
	}
	c.Status = StatusPaid
	return nil
}

// SupplyAmount sets the payout amount if none is recorded yet. An existing
// amount is never overwritten; the return value reports whether it was set.
func SupplyAmount(c *Claim, amount int64, source AmountSource) bool {
	if amount <= 0 || c.Payout.Amount != nil {
		return false
	}
	value := amount
	c.Payout.Amount = &value
	c.Payout.AmountSource = source
	return true
}

// CollectPayout stores the claimant's payout details and advances the
// payout-details stage in one step.
func CollectPayout(c *Claim, phone, bank string, amount *int64) (bool, error) {
	if c.PayoutCollected {
		return false, nil
	}
	if c.Status != StatusActive || CurrentStage(*c) != StageAwaitingPayoutDetails {
		return Advance(c, EvidencePayoutDetails)
	}
	c.Payout.Phone = phone
	c.Payout.Bank = bank
	if amount != nil {
		SupplyAmount(c, *amount, AmountSourceClaimant)
	}
	c.PayoutCollected = true
	return true, nil
}
