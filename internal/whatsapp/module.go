package whatsapp

import (
	apphttp "cashback_backend/internal/http"
	"cashback_backend/platform/httpkit"
	"cashback_backend/platform/validator"
)

// WebhookSecretHeader carries the shared secret configured on the gateway.
const WebhookSecretHeader = "X-Webhook-Secret"

// Module mounts the inbound webhook.
type Module struct {
	handler *Handler
	secret  string
}

func NewModule(receiver *Receiver, val *validator.Validator, secret string) *Module {
	return &Module{handler: NewHandler(receiver, val), secret: secret}
}

func (m *Module) Name() string {
	return "whatsapp"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	if ctx.WebhookRateLimiter != nil {
		group.Use(ctx.WebhookRateLimiter.RateLimit())
	}
	group.Use(httpkit.SharedSecret(WebhookSecretHeader, m.secret))
	group.POST("/whatsapp", m.handler.HandleWebhook)
}

var _ apphttp.Module = (*Module)(nil)
