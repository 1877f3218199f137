package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ALLOW_ALL", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetQuietPeriod() != 5*time.Second {
		t.Fatalf("expected default quiet period 5s, got %s", cfg.GetQuietPeriod())
	}
	if cfg.GetImmediateThreshold() != 200 {
		t.Fatalf("expected default immediate threshold 200, got %d", cfg.GetImmediateThreshold())
	}
	if cfg.GetAccumulationTTL() != 10*time.Minute {
		t.Fatalf("expected default accumulation ttl 10m, got %s", cfg.GetAccumulationTTL())
	}
	if cfg.GetHistoryCapacity() != 10 {
		t.Fatalf("expected default history capacity 10, got %d", cfg.GetHistoryCapacity())
	}
}

func TestLoadRejectsTTLShorterThanQuietPeriod(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("QUIET_PERIOD", "30s")
	t.Setenv("ACCUMULATION_TTL", "10s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when accumulation ttl is shorter than the quiet period")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_ACCESS_SECRET")
	}
}

func TestLoadWebhookSettings(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("WEBHOOK_RATE_LIMIT", "2.5")
	t.Setenv("WEBHOOK_BURST", "7")
	t.Setenv("WHATSAPP_OPERATOR_IDENTITY", "whatsapp|31600000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetWebhookRateLimit() != 2.5 || cfg.GetWebhookBurst() != 7 {
		t.Fatalf("unexpected webhook limits: %v/%d", cfg.GetWebhookRateLimit(), cfg.GetWebhookBurst())
	}
	if cfg.GetWhatsAppOperatorIdentity() != "whatsapp|31600000000" {
		t.Fatalf("unexpected operator identity %q", cfg.GetWhatsAppOperatorIdentity())
	}
}

func TestLoadRejectsInvalidWebhookLimits(t *testing.T) {
	tests := []struct {
		name  string
		rate  string
		burst string
	}{
		{name: "zero rate", rate: "0", burst: "10"},
		{name: "garbage rate", rate: "fast", burst: "10"},
		{name: "negative burst", rate: "5", burst: "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_ACCESS_SECRET", "secret")
			t.Setenv("WEBHOOK_RATE_LIMIT", tt.rate)
			t.Setenv("WEBHOOK_BURST", tt.burst)

			if _, err := Load(); err == nil {
				t.Fatal("expected an error for invalid webhook limits")
			}
		})
	}
}

func TestLoadRejectsWildcardCORSWithCredentials(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when credentials are allowed for every origin")
	}
}
