package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cashback_backend/platform/logger"
)

type testConfig struct {
	url string
}

func (c testConfig) GetWhatsAppURL() string              { return c.url }
func (c testConfig) GetWhatsAppKey() string              { return "user:pass" }
func (c testConfig) GetWhatsAppDeviceID() string         { return "device-1" }
func (c testConfig) GetWhatsAppWebhookSecret() string    { return "" }
func (c testConfig) GetWhatsAppSendRate() float64        { return 1000 }
func (c testConfig) GetWhatsAppOperatorIdentity() string { return "" }

func TestNewClientWithoutURL(t *testing.T) {
	if NewClient(testConfig{}, logger.Nop()) != nil {
		t.Fatal("expected nil client when gateway is not configured")
	}
	var c *Client
	if err := c.SendMessage(context.Background(), "0612345678", "hi"); err != nil {
		t.Fatalf("expected nil client to drop messages, got %v", err)
	}
}

func TestNotifySendsToParticipant(t *testing.T) {
	var got gowaRequest
	var auth, device string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		device = r.Header.Get("X-Device-Id")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(testConfig{url: server.URL + "/"}, logger.Nop())
	if err := c.Notify(context.Background(), "whatsapp|31612345678", "Please send your order screenshot"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.Phone != "31612345678" || got.Message != "Please send your order screenshot" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if !strings.HasPrefix(auth, "Basic ") || device != "device-1" {
		t.Fatalf("unexpected headers auth=%q device=%q", auth, device)
	}
}

func TestNotifyRejectsForeignChannel(t *testing.T) {
	c := NewClient(testConfig{url: "http://gateway.invalid"}, logger.Nop())
	if err := c.Notify(context.Background(), "telegram|42", "hi"); err == nil {
		t.Fatal("expected error for non-whatsapp identity")
	}
}

func TestSendMessageReportsGatewayError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "device offline")
	}))
	defer server.Close()

	c := NewClient(testConfig{url: server.URL}, logger.Nop())
	err := c.SendMessage(context.Background(), "31612345678", "hi")
	if err == nil || !strings.Contains(err.Error(), "device offline") {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestDownloadMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/statics/media/a.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = io.WriteString(w, "jpeg")
	}))
	defer server.Close()

	c := NewClient(testConfig{url: server.URL}, logger.Nop())
	media, err := c.DownloadMedia(context.Background(), "statics/media/a.jpg")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer media.Body.Close()
	data, _ := io.ReadAll(media.Body)
	if string(data) != "jpeg" || media.ContentType != "image/jpeg" {
		t.Fatalf("unexpected media %q %q", data, media.ContentType)
	}

	if _, err := c.DownloadMedia(context.Background(), "missing.jpg"); err == nil {
		t.Fatal("expected error for missing media")
	}
}

func TestWebhookPayloadConversion(t *testing.T) {
	payload := WebhookPayload{
		ChatID:    "31612345678@s.whatsapp.net",
		Timestamp: "2026-03-01T10:00:00Z",
		Message:   WebhookMessage{ID: "ABC", Text: "my order"},
		Image:     &WebhookMedia{MediaPath: "statics/a.jpg", Caption: "see photo"},
	}

	key := payload.Key()
	if key.String() != "whatsapp|31612345678" {
		t.Fatalf("unexpected key %s", key)
	}
	unit := payload.Unit("media/key.jpg", "image/jpeg", time.Now())
	if unit.Text != "my order see photo" || unit.MessageID != "ABC" || !unit.HasMedia() {
		t.Fatalf("unexpected unit %+v", unit)
	}
	if !unit.ArrivedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected arrival %s", unit.ArrivedAt)
	}
	if (WebhookPayload{ChatID: "123@g.us"}).IsGroup() != true {
		t.Fatal("expected group chat detection")
	}
}
