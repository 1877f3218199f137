// Package whatsapp talks to the GOWA WhatsApp gateway: outbound text messages,
// inbound webhook payloads and media downloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cashback_backend/internal/chat"
	"cashback_backend/platform/config"
	"cashback_backend/platform/logger"
	"cashback_backend/platform/phone"

	"golang.org/x/time/rate"
)

// Channel is the chat.Key channel for messages carried by this gateway.
const Channel = "whatsapp"

const maxMediaBytes = 16 << 20

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// NewClient returns nil when the gateway is not configured; a nil client
// drops outbound messages.
func NewClient(cfg config.WhatsAppConfig, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	perSecond := cfg.GetWhatsAppSendRate()
	if perSecond <= 0 {
		perSecond = 5
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		log:      log,
	}
}

// Notify delivers text to the participant of identity.
func (c *Client) Notify(ctx context.Context, identity string, text string) error {
	key, err := chat.ParseKey(identity)
	if err != nil {
		return err
	}
	if key.Channel != Channel {
		return fmt.Errorf("whatsapp cannot deliver to channel %q", key.Channel)
	}
	return c.SendMessage(ctx, key.Participant, text)
}

func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("whatsapp send throttled: %w", err)
	}

	normalized := phone.Digits(phoneNumber)
	body, err := json.Marshal(gowaRequest{Phone: normalized, Message: message})
	if err != nil {
		return fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/send/message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("whatsapp sent via gowa", "phone", normalized)
	return nil
}

// Media is an attachment downloaded from the gateway.
type Media struct {
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// DownloadMedia fetches an attachment the gateway stored under mediaPath.
// The caller closes Body.
func (c *Client) DownloadMedia(ctx context.Context, mediaPath string) (Media, error) {
	if c == nil {
		return Media{}, fmt.Errorf("whatsapp gateway not configured")
	}

	url := mediaPath
	if !strings.HasPrefix(mediaPath, "http://") && !strings.HasPrefix(mediaPath, "https://") {
		url = c.baseURL + "/" + strings.TrimLeft(mediaPath, "/")
	}
	req, err := c.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Media{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Media{}, fmt.Errorf("whatsapp media request failed: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		_ = resp.Body.Close()
		return Media{}, fmt.Errorf("whatsapp media returned %d", resp.StatusCode)
	}
	if resp.ContentLength > maxMediaBytes {
		_ = resp.Body.Close()
		return Media{}, fmt.Errorf("whatsapp media too large: %d bytes", resp.ContentLength)
	}

	return Media{
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}
	return req, nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
