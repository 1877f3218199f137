package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cashback_backend/platform/apperr"
	"cashback_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newAdminEngine() *gin.Engine {
	engine := gin.New()
	engine.GET("/admin", AuthRequired(jwtSecret("secret")), RequireRole("seller"), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.String(http.StatusOK, id.Subject())
	})
	return engine
}

func TestAuthRequired(t *testing.T) {
	engine := newAdminEngine()
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing token", want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "op", "type": "access", "roles": []string{"seller"}, "exp": exp}), want: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "op", "type": "refresh", "roles": []string{"seller"}, "exp": exp}), want: http.StatusUnauthorized},
		{name: "missing role", header: "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "op", "type": "access", "roles": []string{"viewer"}, "exp": exp}), want: http.StatusForbidden},
		{name: "seller", header: "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "op", "type": "access", "roles": []string{"seller"}, "exp": exp}), want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusOK && rec.Body.String() != "op" {
				t.Fatalf("expected subject in body, got %q", rec.Body.String())
			}
		})
	}
}

func TestSharedSecret(t *testing.T) {
	engine := gin.New()
	engine.POST("/hook", SharedSecret("X-Webhook-Secret", "s3cret"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for header, want := range map[string]int{"": http.StatusUnauthorized, "nope": http.StatusUnauthorized, "s3cret": http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		req.Header.Set("X-Webhook-Secret", header)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("secret %q: expected %d, got %d", header, want, rec.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0, 2, nil)
	engine := gin.New()
	engine.GET("/", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("expected burst of two then 429, got %v", codes)
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	engine := gin.New()
	engine.GET("/", func(c *gin.Context) {
		err := apperr.Ambiguous("product id required").WithDetails(map[string]any{"productIds": []int64{1, 2}})
		HandleError(c, err)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusConflict || body.Kind != "ambiguous" || body.Error != "product id required" {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestRequestLoggerPropagatesRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestLogger(logger.Nop()))
	var seen any
	engine.GET("/", func(c *gin.Context) {
		seen = c.Request.Context().Value(logger.RequestIDKey)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Header().Get(RequestIDHeader) != "req-42" || seen != "req-42" {
		t.Fatalf("expected caller request id to be kept, header=%q ctx=%v", rec.Header().Get(RequestIDHeader), seen)
	}

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if generated := rec.Header().Get(RequestIDHeader); generated == "" || generated == "req-42" {
		t.Fatalf("expected a generated request id, got %q", generated)
	}
}
