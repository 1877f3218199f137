// Package registry manages all claims of one chat identity: idempotent
// creation, pending queries, resume resolution and serialized mutations.
package registry

import (
	"context"
	"strings"
	"time"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/repository"
	"cashback_backend/internal/events"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/config"
	"cashback_backend/platform/logger"

	"github.com/google/uuid"
)

// Source names who triggered a mutation. It ends up in logs and events.
type Source string

const (
	SourceClassifier Source = "classifier"
	SourceClaimant   Source = "claimant"
	SourceOverride   Source = "override"
	SourceAdminAPI   Source = "admin_api"
)

const noPendingClaim = "no open claim to resume"

// Resume is the claim and stage a conversation should sit at.
type Resume struct {
	Claim domain.Claim
	Stage domain.Stage
}

type Service struct {
	repo            repository.Repository
	bus             events.Bus
	log             *logger.Logger
	historyCapacity int
	now             func() time.Time
}

func New(repo repository.Repository, bus events.Bus, cfg config.ClaimsConfig, log *logger.Logger) *Service {
	capacity := domain.DefaultHistoryCapacity
	if cfg != nil && cfg.GetHistoryCapacity() > 0 {
		capacity = cfg.GetHistoryCapacity()
	}
	return &Service{repo: repo, bus: bus, log: log, historyCapacity: capacity, now: time.Now}
}

// GetOrCreate returns the active claim for (identity, productID), creating it
// on first use. Repeated calls return the same claim unchanged.
func (s *Service) GetOrCreate(ctx context.Context, identity string, productID int64, source Source) (domain.Claim, bool, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return domain.Claim{}, false, apperr.Validation("identity is required")
	}
	if productID <= 0 {
		return domain.Claim{}, false, apperr.Validation("product id must be a positive integer")
	}

	fresh := domain.NewClaim(identity, productID, s.historyCapacity, s.now().UTC())
	claim, created, err := s.repo.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return domain.Claim{}, false, err
	}

	if created {
		s.log.WithIdentity(identity).Info("claim created", "claimId", claim.ID, "productId", productID, "source", source)
		s.publish(ctx, events.ClaimCreated{
			BaseEvent: events.NewBaseEvent(),
			ClaimID:   claim.ID,
			Identity:  identity,
			ProductID: productID,
			Source:    string(source),
		})
	}
	return claim, created, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Claim, error) {
	return s.repo.GetByID(ctx, id)
}

// ListActive returns the identity's active claims in creation order.
func (s *Service) ListActive(ctx context.Context, identity string) ([]domain.Claim, error) {
	return s.repo.ListByIdentity(ctx, identity, domain.StatusActive)
}

// ListAll returns every claim of the identity, including closed ones.
func (s *Service) ListAll(ctx context.Context, identity string) ([]domain.Claim, error) {
	return s.repo.ListByIdentity(ctx, identity)
}

// ListPending returns active claims that still wait on some stage.
func (s *Service) ListPending(ctx context.Context, identity string) ([]domain.Claim, error) {
	active, err := s.ListActive(ctx, identity)
	if err != nil {
		return nil, err
	}
	return FilterPending(active), nil
}

// ResolveResumeScreen returns the least progressed pending claim. It fails
// with a not-found error when nothing is pending.
func (s *Service) ResolveResumeScreen(ctx context.Context, identity string) (Resume, error) {
	pending, err := s.ListPending(ctx, identity)
	if err != nil {
		return Resume{}, err
	}
	resume, ok := ResolveResume(pending)
	if !ok {
		return Resume{}, apperr.NotFound(noPendingClaim)
	}
	return resume, nil
}

// FilterPending keeps the claims for which domain.IsPending holds.
func FilterPending(claims []domain.Claim) []domain.Claim {
	out := make([]domain.Claim, 0, len(claims))
	for _, c := range claims {
		if domain.IsPending(c) {
			out = append(out, c)
		}
	}
	return out
}

// ResolveResume picks the claim with the earliest current stage from claims,
// which must be in creation order. Ties go to the earliest created claim.
func ResolveResume(claims []domain.Claim) (Resume, bool) {
	var (
		best  Resume
		found bool
	)
	for _, c := range claims {
		if !domain.IsPending(c) {
			continue
		}
		stage := domain.CurrentStage(c)
		if !found || stage < best.Stage || (stage == best.Stage && c.CreatedAt.Before(best.Claim.CreatedAt)) {
			best = Resume{Claim: c, Stage: stage}
			found = true
		}
	}
	return best, found
}

// Advance applies verified evidence to the claim.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, evidence domain.Evidence, source Source) (domain.Claim, bool, error) {
	var advanced bool
	claim, err := s.Mutate(ctx, id, source, func(c *domain.Claim) error {
		ok, err := domain.Advance(c, evidence)
		advanced = ok
		return err
	})
	if err != nil {
		return domain.Claim{}, false, err
	}
	return claim, advanced, nil
}

// Cancel cancels the claim if it is still waiting on order proof.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, source Source) (domain.Claim, error) {
	return s.Mutate(ctx, id, source, domain.Cancel)
}

// CollectPayout stores payout details and advances the payout-details stage.
func (s *Service) CollectPayout(ctx context.Context, id uuid.UUID, phone, bank string, amount *int64) (domain.Claim, bool, error) {
	var collected bool
	claim, err := s.Mutate(ctx, id, SourceClaimant, func(c *domain.Claim) error {
		ok, err := domain.CollectPayout(c, phone, bank, amount)
		collected = ok
		return err
	})
	if err != nil {
		return domain.Claim{}, false, err
	}
	return claim, collected, nil
}

// MarkPaid closes a claim whose payout was confirmed.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, source Source) (domain.Claim, error) {
	return s.Mutate(ctx, id, source, domain.MarkPaid)
}

// RecordHistory appends an entry to the claim's bounded log.
func (s *Service) RecordHistory(ctx context.Context, id uuid.UUID, entries ...domain.HistoryEntry) (domain.Claim, error) {
	now := s.now().UTC()
	return s.repo.Update(ctx, id, func(c *domain.Claim) error {
		for _, entry := range entries {
			if entry.At.IsZero() {
				entry.At = now
			}
			c.History.Append(entry)
		}
		return nil
	})
}

// Mutate runs fn as one atomic read-modify-write of the claim and publishes
// the resulting stage or status change. A failing fn leaves the claim as it was.
func (s *Service) Mutate(ctx context.Context, id uuid.UUID, source Source, fn func(*domain.Claim) error) (domain.Claim, error) {
	var before domain.Claim
	after, err := s.repo.Update(ctx, id, func(c *domain.Claim) error {
		before = *c
		return fn(c)
	})
	if err != nil {
		return domain.Claim{}, err
	}
	s.announce(ctx, before, after, source)
	return after, nil
}

func (s *Service) announce(ctx context.Context, before, after domain.Claim, source Source) {
	from, to := domain.CurrentStage(before), domain.CurrentStage(after)
	if from != to {
		s.log.ClaimTransition(after.ID.String(), after.Identity, after.ProductID, from.String(), to.String(), string(source))
		s.publish(ctx, events.ClaimStageChanged{
			BaseEvent: events.NewBaseEvent(),
			ClaimID:   after.ID,
			Identity:  after.Identity,
			ProductID: after.ProductID,
			FromStage: from.String(),
			ToStage:   to.String(),
			Source:    string(source),
		})
	}

	if before.Status == after.Status {
		return
	}
	s.log.ClaimTransition(after.ID.String(), after.Identity, after.ProductID, string(before.Status), string(after.Status), string(source))
	switch after.Status {
	case domain.StatusCancelled:
		s.publish(ctx, events.ClaimCancelled{
			BaseEvent: events.NewBaseEvent(),
			ClaimID:   after.ID,
			Identity:  after.Identity,
			ProductID: after.ProductID,
			Source:    string(source),
		})
	case domain.StatusPaid:
		s.publish(ctx, events.ClaimPaid{
			BaseEvent: events.NewBaseEvent(),
			ClaimID:   after.ID,
			Identity:  after.Identity,
			ProductID: after.ProductID,
			Amount:    after.Payout.Amount,
		})
	}
}

// publish delivers synchronously so prompts for one identity go out in
// mutation order. Handler failures never undo a committed mutation.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishSync(ctx, event); err != nil {
		s.log.Warn("claim event handler failed", "event", event.EventName(), "error", err)
	}
}

// ProductIDs lists the product ids of claims, in order.
func ProductIDs(claims []domain.Claim) []int64 {
	ids := make([]int64, 0, len(claims))
	for _, c := range claims {
		ids = append(ids, c.ProductID)
	}
	return ids
}
