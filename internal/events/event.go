// Package events defines the claim and conversation events. The bus itself
// lives in platform/events; its types are aliased here so modules import one
// package.
package events

import (
	"cashback_backend/platform/events"
	"cashback_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Claim Events
// =============================================================================

// ClaimCreated is published when a new claim is opened for an identity.
type ClaimCreated struct {
	BaseEvent
	ClaimID   uuid.UUID `json:"claimId"`
	Identity  string    `json:"identity"`
	ProductID int64     `json:"productId"`
	Source    string    `json:"source"`
}

func (e ClaimCreated) EventName() string { return "claims.created" }

// ClaimStageChanged is published after evidence advanced a claim.
type ClaimStageChanged struct {
	BaseEvent
	ClaimID   uuid.UUID `json:"claimId"`
	Identity  string    `json:"identity"`
	ProductID int64     `json:"productId"`
	FromStage string    `json:"fromStage"`
	ToStage   string    `json:"toStage"`
	Source    string    `json:"source"`
}

func (e ClaimStageChanged) EventName() string { return "claims.stage_changed" }

// ClaimCancelled is published when a claim leaves the active set by cancellation.
type ClaimCancelled struct {
	BaseEvent
	ClaimID   uuid.UUID `json:"claimId"`
	Identity  string    `json:"identity"`
	ProductID int64     `json:"productId"`
	Source    string    `json:"source"`
}

func (e ClaimCancelled) EventName() string { return "claims.cancelled" }

// ClaimPaid is published when a claim is closed after payout.
type ClaimPaid struct {
	BaseEvent
	ClaimID   uuid.UUID `json:"claimId"`
	Identity  string    `json:"identity"`
	ProductID int64     `json:"productId"`
	Amount    *int64    `json:"amount,omitempty"`
}

func (e ClaimPaid) EventName() string { return "claims.paid" }

// =============================================================================
// Conversation Events
// =============================================================================

// EvidenceRejected is published when the classifier did not accept a batch.
type EvidenceRejected struct {
	BaseEvent
	ClaimID   uuid.UUID `json:"claimId"`
	Identity  string    `json:"identity"`
	ProductID int64     `json:"productId"`
	Stage     string    `json:"stage"`
	Reason    string    `json:"reason"`
}

func (e EvidenceRejected) EventName() string { return "conversation.evidence_rejected" }

// OverrideRejected is published when a seller command typed in chat could not be applied.
type OverrideRejected struct {
	BaseEvent
	Identity   string  `json:"identity"`
	Command    string  `json:"command"`
	Kind       string  `json:"kind"`
	Message    string  `json:"message"`
	ProductIDs []int64 `json:"productIds,omitempty"`
}

func (e OverrideRejected) EventName() string { return "conversation.override_rejected" }
