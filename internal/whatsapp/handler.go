package whatsapp

import (
	"net/http"

	"cashback_backend/platform/httpkit"
	"cashback_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler serves the gateway webhook.
type Handler struct {
	receiver *Receiver
	val      *validator.Validator
}

func NewHandler(receiver *Receiver, val *validator.Validator) *Handler {
	return &Handler{receiver: receiver, val: val}
}

// HandleWebhook accepts one message event.
// POST /api/v1/webhook/whatsapp
func (h *Handler) HandleWebhook(c *gin.Context) {
	var payload WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := h.val.Struct(payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	accepted, err := h.receiver.Receive(c.Request.Context(), payload)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"accepted": accepted})
}
