package domain

// Stage is the verification step a claim is waiting on. Stages are ordered;
// a claim's stage is derived from its evidence flags and never stored.
type Stage int

const (
	StageAwaitingOrderProof Stage = iota
	StageAwaitingReviewProof
	StageAwaitingLabelProof
	StageAwaitingPayoutDetails
	StageAwaitingPayoutConfirmation
	StageDone
)

var stageNames = map[Stage]string{
	StageAwaitingOrderProof:         "awaiting_order_proof",
	StageAwaitingReviewProof:        "awaiting_review_proof",
	StageAwaitingLabelProof:         "awaiting_label_proof",
	StageAwaitingPayoutDetails:      "awaiting_payout_details",
	StageAwaitingPayoutConfirmation: "awaiting_payout_confirmation",
	StageDone:                       "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Evidence is a kind of proof that satisfies exactly one stage.
type Evidence string

const (
	EvidenceOrder              Evidence = "order"
	EvidenceReview             Evidence = "review"
	EvidenceLabel              Evidence = "label"
	EvidencePayoutDetails      Evidence = "payout_details"
	EvidencePayoutConfirmation Evidence = "payout_confirmation"
)

var evidenceStage = map[Evidence]Stage{
	EvidenceOrder:              StageAwaitingOrderProof,
	EvidenceReview:             StageAwaitingReviewProof,
	EvidenceLabel:              StageAwaitingLabelProof,
	EvidencePayoutDetails:      StageAwaitingPayoutDetails,
	EvidencePayoutConfirmation: StageAwaitingPayoutConfirmation,
}

// Stage returns the stage this evidence satisfies.
func (e Evidence) Stage() (Stage, bool) {
	stage, ok := evidenceStage[e]
	return stage, ok
}

// EvidenceFor returns the evidence kind that completes stage.
func EvidenceFor(stage Stage) (Evidence, bool) {
	for evidence, s := range evidenceStage {
		if s == stage {
			return evidence, true
		}
	}
	return "", false
}

// Status is the lifecycle state of a claim row.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPaid      Status = "paid"
)

// IsTerminal reports whether the claim is excluded from pending queries.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusPaid
}
