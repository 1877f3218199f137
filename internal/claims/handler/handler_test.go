package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/internal/claims/override"
	"cashback_backend/internal/claims/registry"
	"cashback_backend/internal/claims/repository"
	"cashback_backend/internal/claims/transport"
	"cashback_backend/platform/httpkit"
	"cashback_backend/platform/logger"
	"cashback_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const identity = "whatsapp|31612345678"

type historyCap int

func (c historyCap) GetHistoryCapacity() int { return int(c) }

func newTestServer(t *testing.T) (*gin.Engine, *registry.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := registry.New(repository.NewMemory(), nil, historyCap(10), logger.Nop())
	h := New(reg, override.NewResolver(reg, logger.Nop()), validator.New(), logger.Nop())

	engine := gin.New()
	admin := engine.Group("/admin", func(c *gin.Context) {
		c.Set(httpkit.ContextSubjectKey, "operator-1")
		c.Set(httpkit.ContextRolesKey, []string{"seller"})
	})
	admin.POST("/claims/override", h.Override)
	admin.GET("/claims/:identity", h.ListClaims)
	admin.POST("/claims/:id/paid", h.MarkPaid)
	return engine, reg
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func create(t *testing.T, reg *registry.Service, productID int64) domain.Claim {
	t.Helper()
	claim, _, err := reg.GetOrCreate(context.Background(), identity, productID, registry.SourceClaimant)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return claim
}

func TestOverrideAmbiguousListsProducts(t *testing.T) {
	engine, reg := newTestServer(t)
	create(t, reg, 100)
	create(t, reg, 200)

	rec := do(engine, http.MethodPost, "/admin/claims/override", map[string]any{"identity": identity, "action": "confirm"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Kind    string `json:"kind"`
		Details struct {
			ProductIDs []int64 `json:"productIds"`
		} `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Kind != "ambiguous" || len(body.Details.ProductIDs) != 2 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestOverrideConfirmWithAmount(t *testing.T) {
	engine, reg := newTestServer(t)
	create(t, reg, 100)
	create(t, reg, 200)

	rec := do(engine, http.MethodPost, "/admin/claims/override", map[string]any{
		"identity": identity, "action": "confirm", "productId": 100, "amount": 1500,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.OverrideResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.AmountApplied || resp.Claim.Stage != domain.StageAwaitingReviewProof.String() || resp.FromStage != domain.StageAwaitingOrderProof.String() {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Resume == nil || resp.Resume.ProductID != 200 {
		t.Fatalf("expected resume on claim 200, got %+v", resp.Resume)
	}
}

func TestOverrideRejectsInvalidRequest(t *testing.T) {
	engine, _ := newTestServer(t)

	for _, body := range []map[string]any{
		{"identity": "31612345678", "action": "confirm"},
		{"identity": identity, "action": "refund"},
		{"identity": identity, "action": "confirm", "productId": -1},
	} {
		if rec := do(engine, http.MethodPost, "/admin/claims/override", body); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", body, rec.Code)
		}
	}
}

func TestListClaimsIncludesResume(t *testing.T) {
	engine, reg := newTestServer(t)
	create(t, reg, 100)

	rec := do(engine, http.MethodGet, "/admin/claims/"+url.PathEscape(identity), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp transport.ClaimListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Claims) != 1 || resp.Resume == nil || resp.Resume.ProductID != 100 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestMarkPaidRequiresConfirmedPayout(t *testing.T) {
	engine, reg := newTestServer(t)
	claim := create(t, reg, 100)

	if rec := do(engine, http.MethodPost, "/admin/claims/"+claim.ID.String()+"/paid", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before payout is confirmed, got %d", rec.Code)
	}

	for _, e := range []domain.Evidence{domain.EvidenceOrder, domain.EvidenceReview, domain.EvidenceLabel, domain.EvidencePayoutDetails, domain.EvidencePayoutConfirmation} {
		if _, _, err := reg.Advance(context.Background(), claim.ID, e, registry.SourceClassifier); err != nil {
			t.Fatalf("advance %s: %v", e, err)
		}
	}

	rec := do(engine, http.MethodPost, "/admin/claims/"+claim.ID.String()+"/paid", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(engine, http.MethodPost, "/admin/claims/not-a-uuid/paid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad id, got %d", rec.Code)
	}
}
