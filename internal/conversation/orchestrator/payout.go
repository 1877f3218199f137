package orchestrator

import (
	"context"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/internal/events"
)

const (
	reasonPayoutIncomplete = "please send the phone number and the bank name in one message"
	reasonNotConfirmed     = `please reply "confirm" if the payout details are correct`
)

func (s *Service) collectPayout(ctx context.Context, target registry.Resume, text string) error {
	details, ok := ParsePayoutDetails(text)
	if !ok {
		s.reject(ctx, target, reasonPayoutIncomplete)
		return nil
	}

	_, collected, err := s.claims.CollectPayout(ctx, target.Claim.ID, details.Phone, details.Bank, details.Amount)
	if err != nil {
		return s.fail(ctx, target.Claim.Identity, err)
	}
	s.recordAgent(ctx, target, "payout_collected", "", false)
	if !collected {
		s.log.WithIdentity(target.Claim.Identity).Debug("payout details already collected", "claimId", target.Claim.ID)
	}
	return nil
}

func (s *Service) confirmPayout(ctx context.Context, target registry.Resume, text string) error {
	if !IsAffirmative(text) {
		s.reject(ctx, target, reasonNotConfirmed)
		return nil
	}
	if _, _, err := s.claims.Advance(ctx, target.Claim.ID, domain.EvidencePayoutConfirmation, registry.SourceClaimant); err != nil {
		return s.fail(ctx, target.Claim.Identity, err)
	}
	s.recordAgent(ctx, target, "payout_confirmed", "", false)
	return nil
}

func (s *Service) reject(ctx context.Context, target registry.Resume, reason string) {
	s.recordAgent(ctx, target, "not_matched", reason, false)
	s.publish(ctx, events.EvidenceRejected{
		BaseEvent: events.NewBaseEvent(),
		ClaimID:   target.Claim.ID,
		Identity:  target.Claim.Identity,
		ProductID: target.Claim.ProductID,
		Stage:     target.Stage.String(),
		Reason:    reason,
	})
}
