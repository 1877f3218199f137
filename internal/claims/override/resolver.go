package override

import (
	"context"
	"fmt"
	"time"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/logger"

	"github.com/google/uuid"
)

// Claims is the slice of the claim registry the resolver needs.
type Claims interface {
	ListPending(ctx context.Context, identity string) ([]domain.Claim, error)
	Mutate(ctx context.Context, id uuid.UUID, source registry.Source, fn func(*domain.Claim) error) (domain.Claim, error)
	ResolveResumeScreen(ctx context.Context, identity string) (registry.Resume, error)
}

// Result is the outcome of an applied override.
type Result struct {
	Claim         domain.Claim
	Action        Action
	FromStage     domain.Stage
	AmountApplied bool
	// Resume is where the conversation continues; nil when nothing is pending.
	Resume *registry.Resume
}

type Resolver struct {
	claims Claims
	log    *logger.Logger
	now    func() time.Time
}

func NewResolver(claims Claims, log *logger.Logger) *Resolver {
	return &Resolver{claims: claims, log: log, now: time.Now}
}

// Resolve selects the target claim for cmd and applies the forced transition.
func (r *Resolver) Resolve(ctx context.Context, identity string, cmd Command) (Result, error) {
	target, err := r.selectTarget(ctx, identity, cmd)
	if err != nil {
		return Result{}, err
	}

	result := Result{Action: cmd.Action, FromStage: domain.CurrentStage(target)}
	var updated domain.Claim
	switch cmd.Action {
	case ActionConfirm:
		updated, err = r.claims.Mutate(ctx, target.ID, registry.SourceOverride, func(c *domain.Claim) error {
			stage := domain.CurrentStage(*c)
			evidence, ok := domain.EvidenceFor(stage)
			if !ok {
				return apperr.Ordering(fmt.Sprintf("claim for product %d has nothing left to confirm", c.ProductID))
			}
			if _, err := domain.Advance(c, evidence); err != nil {
				return err
			}
			if stage == domain.StageAwaitingOrderProof && cmd.Amount != nil {
				result.AmountApplied = domain.SupplyAmount(c, *cmd.Amount, domain.AmountSourceSeller)
			}
			c.History.Append(domain.HistoryEntry{
				At:      r.now().UTC(),
				Role:    domain.RoleSeller,
				Text:    cmd.String(),
				Stage:   stage.String(),
				Outcome: "confirmed",
			})
			return nil
		})
	case ActionCancel:
		updated, err = r.claims.Mutate(ctx, target.ID, registry.SourceOverride, func(c *domain.Claim) error {
			if err := domain.Cancel(c); err != nil {
				return err
			}
			c.History.Append(domain.HistoryEntry{
				At:      r.now().UTC(),
				Role:    domain.RoleSeller,
				Text:    cmd.String(),
				Stage:   domain.CurrentStage(*c).String(),
				Outcome: "cancelled",
			})
			return nil
		})
	default:
		return Result{}, apperr.Validation(fmt.Sprintf("unknown override action %q", cmd.Action))
	}
	if err != nil {
		return Result{}, err
	}
	result.Claim = updated

	r.log.WithIdentity(identity).Info("override applied",
		"action", cmd.Action,
		"productId", updated.ProductID,
		"from", result.FromStage.String(),
		"to", domain.CurrentStage(updated).String(),
		"status", updated.Status,
		"amountApplied", result.AmountApplied,
	)

	resume, err := r.claims.ResolveResumeScreen(ctx, identity)
	switch {
	case err == nil:
		result.Resume = &resume
	case apperr.Is(err, apperr.KindNotFound):
	default:
		return result, err
	}
	return result, nil
}

func (r *Resolver) selectTarget(ctx context.Context, identity string, cmd Command) (domain.Claim, error) {
	pending, err := r.claims.ListPending(ctx, identity)
	if err != nil {
		return domain.Claim{}, err
	}
	if cmd.Action == ActionCancel {
		cancellable := make([]domain.Claim, 0, len(pending))
		for _, c := range pending {
			if domain.CurrentStage(c) == domain.StageAwaitingOrderProof {
				cancellable = append(cancellable, c)
			}
		}
		pending = cancellable
	}

	if len(pending) == 0 {
		return domain.Claim{}, apperr.NotFound(fmt.Sprintf("nothing to %s", cmd.Action)).WithOp("override.Resolve")
	}

	if cmd.ProductID != nil {
		for _, c := range pending {
			if c.ProductID == *cmd.ProductID {
				return c, nil
			}
		}
		return domain.Claim{}, apperr.NotFound(fmt.Sprintf("no claim for product %d to %s", *cmd.ProductID, cmd.Action)).
			WithOp("override.Resolve").
			WithDetails(map[string]any{"productIds": registry.ProductIDs(pending)})
	}

	if len(pending) > 1 {
		return domain.Claim{}, apperr.Ambiguous("product id required").
			WithOp("override.Resolve").
			WithDetails(map[string]any{"productIds": registry.ProductIDs(pending)})
	}
	return pending[0], nil
}
