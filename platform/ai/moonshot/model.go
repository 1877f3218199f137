// Package moonshot adapts Moonshot's OpenAI-compatible chat completions API
// to the ADK model.LLM interface, including image parts for vision models.
package moonshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	defaultBaseURL = "https://api.moonshot.ai/v1"
	defaultModel   = "kimi-k2-turbo-preview"
)

// Config for Kimi
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// KimiModel implements model.LLM on top of the chat completions endpoint.
type KimiModel struct {
	config Config
	client *http.Client
}

func NewModel(cfg Config) *KimiModel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &KimiModel{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (m *KimiModel) Name() string {
	return m.config.Model
}

// GenerateContent sends one non-streaming completion request. The stream
// flag is ignored; a single response is always yielded.
func (m *KimiModel) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (m *KimiModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("kimi: nil request")
	}

	body := chatRequest{
		Model:    m.config.Model,
		Messages: buildMessages(req),
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			t := float64(*req.Config.Temperature)
			body.Temperature = &t
		}
		if req.Config.ResponseMIMEType == "application/json" {
			body.ResponseFormat = &responseFormat{Type: "json_object"}
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("kimi: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(m.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("kimi: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("kimi: read response: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("kimi: decode response (status %d): %w", resp.StatusCode, err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("kimi api error (status %d): %s", resp.StatusCode, result.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("kimi api error: status %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("kimi api error: empty choices")
	}

	return &model.LLMResponse{
		Content: genai.NewContentFromText(result.Choices[0].Message.Content, genai.RoleModel),
	}, nil
}

func buildMessages(req *model.LLMRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Contents)+1)
	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := joinText(req.Config.SystemInstruction); text != "" {
			messages = append(messages, chatMessage{Role: "system", Content: text})
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		role := "user"
		if content.Role == genai.RoleModel {
			role = "assistant"
		}

		parts := convertParts(content)
		switch {
		case len(parts) == 0:
			continue
		case len(parts) == 1 && parts[0].Type == "text":
			messages = append(messages, chatMessage{Role: role, Content: parts[0].Text})
		default:
			messages = append(messages, chatMessage{Role: role, Content: parts})
		}
	}
	return messages
}

func convertParts(content *genai.Content) []contentPart {
	parts := make([]contentPart, 0, len(content.Parts))
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if blob := part.InlineData; blob != nil && strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: "data:" + blob.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(blob.Data)},
			})
			continue
		}
		if file := part.FileData; file != nil && file.FileURI != "" {
			parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: file.FileURI}})
			continue
		}
		if strings.TrimSpace(part.Text) != "" {
			parts = append(parts, contentPart{Type: "text", Text: part.Text})
		}
	}
	return parts
}

func joinText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

var _ model.LLM = (*KimiModel)(nil)
