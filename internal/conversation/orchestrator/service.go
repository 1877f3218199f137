// Package orchestrator connects the chat gateway to the claim engine: inbound
// units go through the debounce buffer, flushed batches are classified against
// the claim the conversation sits at, and seller commands go to the override
// resolver.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"cashback_backend/internal/chat"
	"cashback_backend/internal/claims/classifier"
	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/override"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/internal/conversation/debounce"
	"cashback_backend/internal/events"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/logger"

	"github.com/google/uuid"
)

// Claims is the slice of the claim registry the orchestrator drives.
type Claims interface {
	GetOrCreate(ctx context.Context, identity string, productID int64, source registry.Source) (domain.Claim, bool, error)
	ResolveResumeScreen(ctx context.Context, identity string) (registry.Resume, error)
	Advance(ctx context.Context, id uuid.UUID, evidence domain.Evidence, source registry.Source) (domain.Claim, bool, error)
	CollectPayout(ctx context.Context, id uuid.UUID, phone, bank string, amount *int64) (domain.Claim, bool, error)
	RecordHistory(ctx context.Context, id uuid.UUID, entries ...domain.HistoryEntry) (domain.Claim, error)
}

// Overrides applies seller commands.
type Overrides interface {
	Resolve(ctx context.Context, identity string, cmd override.Command) (override.Result, error)
}

// Buffer is the debounce buffer.
type Buffer interface {
	Add(ctx context.Context, key chat.Key, unit chat.Unit, onFlush debounce.FlushFunc) error
	Flush(ctx context.Context, key chat.Key, onFlush debounce.FlushFunc) (bool, error)
	PendingKeys(ctx context.Context) ([]chat.Key, error)
}

// Prompter renders outbound chat text.
type Prompter interface {
	PromptStage(ctx context.Context, identity string, productID int64, stage domain.Stage) error
	ReportError(ctx context.Context, identity string, err error) error
}

type Service struct {
	claims     Claims
	overrides  Overrides
	buffer     Buffer
	classifier classifier.Classifier
	prompter   Prompter
	bus        events.Bus
	log        *logger.Logger
}

func New(claims Claims, overrides Overrides, buffer Buffer, c classifier.Classifier, prompter Prompter, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		claims:     claims,
		overrides:  overrides,
		buffer:     buffer,
		classifier: c,
		prompter:   prompter,
		bus:        bus,
		log:        log,
	}
}

// HandleInbound routes one message from the gateway. Messages the seller typed
// into the claimant's chat are treated as override commands; everything else
// is buffered until the claimant goes quiet.
func (s *Service) HandleInbound(ctx context.Context, msg chat.InboundMessage) error {
	if msg.Key.IsZero() {
		return apperr.Validation("inbound message has no chat key")
	}
	if msg.FromMe {
		return s.handleSellerMessage(ctx, msg)
	}

	return s.buffer.Add(ctx, msg.Key, msg.Unit, s.HandleFlush)
}

func (s *Service) handleSellerMessage(ctx context.Context, msg chat.InboundMessage) error {
	cmd, ok := override.ParseCommand(msg.Unit.Text)
	if !ok {
		return nil
	}
	identity := msg.Key.String()

	result, err := s.overrides.Resolve(ctx, identity, cmd)
	if err != nil {
		rejected := events.OverrideRejected{
			BaseEvent: events.NewBaseEvent(),
			Identity:  identity,
			Command:   cmd.String(),
			Kind:      apperr.GetKind(err).String(),
			Message:   errorMessage(err),
		}
		if details, ok := apperr.DetailsOf(err).(map[string]any); ok {
			rejected.ProductIDs, _ = details["productIds"].([]int64)
		}
		s.publish(ctx, rejected)
		return nil
	}

	s.log.WithIdentity(identity).Info("seller command applied from chat",
		"command", cmd.String(),
		"productId", result.Claim.ProductID,
		"amountApplied", result.AmountApplied,
	)
	return nil
}

// HandleFlush is the debounce callback. It runs once per flushed batch.
func (s *Service) HandleFlush(ctx context.Context, fc debounce.FlushContext) error {
	identity := fc.Key.String()
	text := chat.MergeText(fc.Units)
	media, hasMedia := chat.FirstMedia(fc.Units)

	target, err := s.target(ctx, identity, &text, hasMedia)
	if err != nil {
		return s.fail(ctx, identity, err)
	}
	if target == nil {
		return nil
	}

	claimID := target.Claim.ID
	if _, err := s.claims.RecordHistory(ctx, claimID, domain.HistoryEntry{
		Role:  domain.RoleClaimant,
		Text:  historyText(text, hasMedia),
		Stage: target.Stage.String(),
	}); err != nil {
		return s.fail(ctx, identity, err)
	}

	switch target.Stage {
	case domain.StageAwaitingPayoutDetails:
		return s.collectPayout(ctx, *target, text)
	case domain.StageAwaitingPayoutConfirmation:
		return s.confirmPayout(ctx, *target, text)
	case domain.StageDone:
		return s.prompter.PromptStage(ctx, identity, target.Claim.ProductID, target.Stage)
	default:
		return s.classify(ctx, *target, classifier.Task{
			Stage:     target.Stage,
			ProductID: target.Claim.ProductID,
			Text:      text,
			MediaRef:  media.MediaRef,
		})
	}
}

// target picks the claim a batch is about. An explicit product selection wins
// over the resume screen and is cut from text. A nil target with a nil error
// means the batch was fully handled.
func (s *Service) target(ctx context.Context, identity string, text *string, hasMedia bool) (*registry.Resume, error) {
	productID, rest, selected := ParseSelection(*text)
	if !selected {
		resume, err := s.claims.ResolveResumeScreen(ctx, identity)
		if err != nil {
			return nil, err
		}
		return &resume, nil
	}

	claim, created, err := s.claims.GetOrCreate(ctx, identity, productID, registry.SourceClaimant)
	if err != nil {
		return nil, err
	}
	*text = rest
	stage := domain.CurrentStage(claim)

	if strings.TrimSpace(rest) == "" && !hasMedia {
		// A fresh claim was already announced with its first prompt.
		if created {
			return nil, nil
		}
		return nil, s.prompter.PromptStage(ctx, identity, productID, stage)
	}
	return &registry.Resume{Claim: claim, Stage: stage}, nil
}

func (s *Service) classify(ctx context.Context, target registry.Resume, task classifier.Task) error {
	identity := target.Claim.Identity
	outcome := s.classifier.Classify(ctx, task)

	switch o := outcome.(type) {
	case classifier.Matched:
		evidence, _ := domain.EvidenceFor(target.Stage)
		s.recordAgent(ctx, target, "matched", "", false)
		if _, _, err := s.claims.Advance(ctx, target.Claim.ID, evidence, registry.SourceClassifier); err != nil {
			return s.fail(ctx, identity, err)
		}
		return nil
	case classifier.NotMatched:
		s.reject(ctx, target, o.Reason)
		return nil
	case classifier.Failed:
		s.recordAgent(ctx, target, "failed", errorText(o.Err), true)
		return s.fail(ctx, identity, apperr.Upstream("classification failed", o.Err))
	default:
		return s.fail(ctx, identity, apperr.Internal("unknown classification outcome"))
	}
}

func (s *Service) recordAgent(ctx context.Context, target registry.Resume, outcome, text string, failed bool) {
	_, err := s.claims.RecordHistory(ctx, target.Claim.ID, domain.HistoryEntry{
		Role:    domain.RoleAgent,
		Text:    text,
		Stage:   target.Stage.String(),
		Outcome: outcome,
		Failed:  failed,
	})
	if err != nil {
		s.log.WithIdentity(target.Claim.Identity).Warn("record agent history failed", "claimId", target.Claim.ID, "error", err)
	}
}

// fail reports err to the claimant. Expected conditions end there; store and
// internal failures are also returned so the caller logs them.
func (s *Service) fail(ctx context.Context, identity string, err error) error {
	reportErr := s.prompter.ReportError(ctx, identity, err)
	switch apperr.GetKind(err) {
	case apperr.KindNotFound, apperr.KindValidation, apperr.KindOrdering, apperr.KindAmbiguous, apperr.KindUpstream:
		return reportErr
	default:
		return errors.Join(err, reportErr)
	}
}

// Drain force-flushes every conversation that still has a stored batch. Units
// buffered while a pass runs are picked up by the next one.
func (s *Service) Drain(ctx context.Context) error {
	var errs []error
	flushed := 0
	for pass := 0; pass < maxDrainPasses; pass++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		keys, err := s.buffer.PendingKeys(ctx)
		if err != nil {
			errs = append(errs, err)
			break
		}
		if len(keys) == 0 {
			break
		}
		for _, key := range keys {
			ok, err := s.buffer.Flush(ctx, key, s.HandleFlush)
			if err != nil {
				errs = append(errs, err)
			}
			if ok {
				flushed++
			}
		}
	}
	s.log.Info("conversation buffers drained", "flushed", flushed)
	return errors.Join(errs...)
}

const maxDrainPasses = 3

// publish delivers synchronously so the claimant sees replies in order.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if err := s.bus.PublishSync(ctx, event); err != nil {
		s.log.Warn("conversation event handler failed", "event", event.EventName(), "error", err)
	}
}

func historyText(text string, hasMedia bool) string {
	if !hasMedia {
		return text
	}
	if text == "" {
		return "[image]"
	}
	return text + " [image]"
}

func errorMessage(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
