// Package notification turns claim and conversation events into outbound chat
// messages. It is also the single place where typed errors become user text.
package notification

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/internal/events"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/logger"
)

// Notifier delivers text to a chat identity. It owns no delivery guarantees
// beyond what its implementation provides.
type Notifier interface {
	Notify(ctx context.Context, identity string, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, identity string, text string) error

func (f NotifierFunc) Notify(ctx context.Context, identity string, text string) error {
	return f(ctx, identity, text)
}

// Resumer computes where a conversation continues.
type Resumer interface {
	ResolveResumeScreen(ctx context.Context, identity string) (registry.Resume, error)
}

// Module handles all notification-related event subscriptions.
type Module struct {
	notifier Notifier
	resumer  Resumer
	catalog  *Catalog
	operator string
	log      *logger.Logger
}

// New creates a new notification module.
func New(notifier Notifier, resumer Resumer, catalog *Catalog, log *logger.Logger) *Module {
	return &Module{notifier: notifier, resumer: resumer, catalog: catalog, log: log}
}

// SetOperatorIdentity sets the chat identity that receives rejected seller
// commands. Without one, rejections are only logged.
func (m *Module) SetOperatorIdentity(identity string) { m.operator = identity }

// RegisterHandlers subscribes the module to the events it renders.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.ClaimCreated{}.EventName(), m)
	bus.Subscribe(events.ClaimStageChanged{}.EventName(), m)
	bus.Subscribe(events.ClaimCancelled{}.EventName(), m)
	bus.Subscribe(events.ClaimPaid{}.EventName(), m)
	bus.Subscribe(events.EvidenceRejected{}.EventName(), m)
	bus.Subscribe(events.OverrideRejected{}.EventName(), m)
}

func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.ClaimCreated:
		return m.handleClaimCreated(ctx, e)
	case events.ClaimStageChanged:
		return m.PromptResume(ctx, e.Identity)
	case events.ClaimCancelled:
		return m.handleClaimCancelled(ctx, e)
	case events.ClaimPaid:
		return m.handleClaimPaid(ctx, e)
	case events.EvidenceRejected:
		return m.handleEvidenceRejected(ctx, e)
	case events.OverrideRejected:
		return m.handleOverrideRejected(ctx, e)
	default:
		m.log.Debug("notification: unhandled event", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleClaimCreated(ctx context.Context, e events.ClaimCreated) error {
	opened, err := m.catalog.Message("claim_opened", TemplateData{ProductID: e.ProductID})
	if err != nil {
		return err
	}
	prompt, err := m.resumePrompt(ctx, e.Identity)
	if err != nil {
		return m.ReportError(ctx, e.Identity, err)
	}
	return m.send(ctx, e.Identity, opened, prompt)
}

func (m *Module) handleClaimCancelled(ctx context.Context, e events.ClaimCancelled) error {
	cancelled, err := m.catalog.Message("claim_cancelled", TemplateData{ProductID: e.ProductID})
	if err != nil {
		return err
	}
	prompt, err := m.resumePrompt(ctx, e.Identity)
	if err != nil {
		return m.ReportError(ctx, e.Identity, err)
	}
	return m.send(ctx, e.Identity, cancelled, prompt)
}

func (m *Module) handleClaimPaid(ctx context.Context, e events.ClaimPaid) error {
	data := TemplateData{ProductID: e.ProductID}
	if e.Amount != nil {
		data.Amount = strconv.FormatInt(*e.Amount, 10)
	}
	paid, err := m.catalog.Message("claim_paid", data)
	if err != nil {
		return err
	}
	return m.send(ctx, e.Identity, paid)
}

func (m *Module) handleEvidenceRejected(ctx context.Context, e events.EvidenceRejected) error {
	rejected, err := m.catalog.Message("evidence_rejected", TemplateData{ProductID: e.ProductID, Reason: e.Reason})
	if err != nil {
		return err
	}
	again, err := m.catalog.Stage(e.Stage, TemplateData{ProductID: e.ProductID})
	if err != nil {
		return err
	}
	return m.send(ctx, e.Identity, rejected, again)
}

func (m *Module) handleOverrideRejected(ctx context.Context, e events.OverrideRejected) error {
	m.log.WithIdentity(e.Identity).Warn("override rejected",
		"command", e.Command,
		"kind", e.Kind,
		"reason", e.Message,
		"productIds", e.ProductIDs,
	)
	if m.operator == "" {
		return nil
	}
	text, err := m.catalog.Message("override_rejected", TemplateData{
		Command:    e.Command,
		Reason:     e.Message,
		Kind:       e.Kind,
		ProductIDs: joinIDs(e.ProductIDs),
	})
	if err != nil {
		return err
	}
	return m.send(ctx, m.operator, text)
}

// PromptResume sends the prompt for the identity's resume screen, or the
// all-done message when nothing is pending.
func (m *Module) PromptResume(ctx context.Context, identity string) error {
	prompt, err := m.resumePrompt(ctx, identity)
	if err != nil {
		return m.ReportError(ctx, identity, err)
	}
	return m.send(ctx, identity, prompt)
}

// PromptStage sends the prompt for one claim's stage, regardless of which
// claim the resume screen would pick.
func (m *Module) PromptStage(ctx context.Context, identity string, productID int64, stage domain.Stage) error {
	text, err := m.catalog.Stage(stage.String(), TemplateData{ProductID: productID})
	if err != nil {
		return err
	}
	return m.send(ctx, identity, text)
}

func (m *Module) resumePrompt(ctx context.Context, identity string) (string, error) {
	resume, err := m.resumer.ResolveResumeScreen(ctx, identity)
	if apperr.Is(err, apperr.KindNotFound) {
		return m.catalog.Message("all_done", TemplateData{})
	}
	if err != nil {
		return "", err
	}
	return m.catalog.Stage(resume.Stage.String(), TemplateData{ProductID: resume.Claim.ProductID})
}

// ReportError converts err to chat text and sends it to identity.
func (m *Module) ReportError(ctx context.Context, identity string, err error) error {
	if err == nil {
		return nil
	}
	kind := apperr.GetKind(err)
	m.log.WithIdentity(identity).Warn("reporting error to claimant", "kind", kind.String(), "error", err)

	data := TemplateData{Kind: kind.String()}
	if details, ok := apperr.DetailsOf(err).(map[string]any); ok {
		if ids, ok := details["productIds"].([]int64); ok {
			data.ProductIDs = joinIDs(ids)
		}
		if id, ok := details["productId"].(int64); ok {
			data.ProductID = id
		}
	}
	return m.send(ctx, identity, m.catalog.Error(kind.String(), data))
}

func (m *Module) send(ctx context.Context, identity string, parts ...string) error {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if err := m.notifier.Notify(ctx, identity, strings.Join(kept, "\n\n")); err != nil {
		return fmt.Errorf("notify %s: %w", identity, err)
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, "#"+strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}
