package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cashback_backend/internal/adapters/storage"
	"cashback_backend/internal/claims/domain"
	"cashback_backend/platform/apperr"
	"cashback_backend/platform/logger"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const systemPrompt = `You verify evidence for a cashback claim on a marketplace product.
Answer with a single JSON object: {"matched": true|false, "reason": "<short reason when not matched>"}.
Only set matched to true when the message clearly shows the requested evidence for the given product.`

var stageInstructions = map[domain.Stage]string{
	domain.StageAwaitingOrderProof:  "Requested evidence: a screenshot of the order confirmation or order list showing product %d as ordered.",
	domain.StageAwaitingReviewProof: "Requested evidence: a screenshot of a published review for product %d.",
	domain.StageAwaitingLabelProof:  "Requested evidence: a photo of the product %d packaging where the barcode label is cut or destroyed.",
}

type verdict struct {
	Matched *bool  `json:"matched"`
	Reason  string `json:"reason"`
}

// LLM classifies batches with a vision-capable language model.
type LLM struct {
	llm     model.LLM
	media   storage.MediaStore
	timeout time.Duration
	log     *logger.Logger
}

func NewLLM(llm model.LLM, media storage.MediaStore, timeout time.Duration, log *logger.Logger) *LLM {
	return &LLM{llm: llm, media: media, timeout: timeout, log: log}
}

// Supports reports whether stage is decided by the model.
func Supports(stage domain.Stage) bool {
	_, ok := stageInstructions[stage]
	return ok
}

func (c *LLM) Classify(ctx context.Context, task Task) Outcome {
	instruction, ok := stageInstructions[task.Stage]
	if !ok {
		return Failed{Err: apperr.Validation(fmt.Sprintf("stage %s is not classified", task.Stage))}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := []*genai.Part{genai.NewPartFromText(fmt.Sprintf(instruction, task.ProductID))}
	if text := strings.TrimSpace(task.Text); text != "" {
		parts = append(parts, genai.NewPartFromText("Claimant message: "+text))
	}
	if task.MediaRef != "" {
		if c.media == nil {
			return Failed{Err: apperr.Internal("media store not configured")}
		}
		obj, err := c.media.Fetch(ctx, task.MediaRef)
		if err != nil {
			return Failed{Err: apperr.Upstream("load attachment", err)}
		}
		parts = append(parts, genai.NewPartFromBytes(obj.Data, obj.ContentType))
	}

	temperature := float32(0)
	req := &model.LLMRequest{
		Model:    c.llm.Name(),
		Contents: []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       &temperature,
			ResponseMIMEType:  "application/json",
		},
	}

	started := time.Now()
	text, err := c.generate(ctx, req)
	if err != nil {
		c.log.Warn("classifier call failed", "stage", task.Stage.String(), "productId", task.ProductID, "error", err)
		return Failed{Err: apperr.Upstream("classifier call failed", err)}
	}

	outcome := parseVerdict(text)
	c.log.Debug("classifier verdict",
		"stage", task.Stage.String(),
		"productId", task.ProductID,
		"outcome", Describe(outcome),
		"latencyMs", time.Since(started).Milliseconds(),
	)
	return outcome
}

func (c *LLM) generate(ctx context.Context, req *model.LLMRequest) (string, error) {
	var b strings.Builder
	for resp, err := range c.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", err
		}
		if resp == nil || resp.Content == nil {
			continue
		}
		for _, part := range resp.Content.Parts {
			if part != nil {
				b.WriteString(part.Text)
			}
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("empty model response")
	}
	return b.String(), nil
}

func parseVerdict(text string) Outcome {
	raw := strings.TrimSpace(text)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Failed{Err: apperr.Upstream("unreadable classifier verdict", err)}
	}
	if v.Matched == nil {
		return Failed{Err: apperr.Upstream("classifier verdict without matched field", nil)}
	}
	if *v.Matched {
		return Matched{}
	}
	reason := strings.TrimSpace(v.Reason)
	if reason == "" {
		reason = "evidence not recognised"
	}
	return NotMatched{Reason: reason}
}

// Describe renders an outcome for logs and history.
func Describe(o Outcome) string {
	switch v := o.(type) {
	case Matched:
		return "matched"
	case NotMatched:
		return "not_matched: " + v.Reason
	case Failed:
		return "failed: " + errString(v.Err)
	default:
		return "unknown"
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

var _ Classifier = (*LLM)(nil)
