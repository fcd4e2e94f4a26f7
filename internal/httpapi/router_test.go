package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nertexqq/giftwatch/internal/dispatch"
	"github.com/nertexqq/giftwatch/internal/enrich"
	"github.com/nertexqq/giftwatch/internal/marketplace"
	"github.com/nertexqq/giftwatch/internal/wshub"
)

func newTestRouter() *Router {
	return New(10, enrich.NewFloorCache(time.Minute), wshub.NewHub(), nil)
}

func TestHealthEndpointReturnsOK(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRecentEndpointReturnsLedgerEntriesMostRecentFirst(t *testing.T) {
	r := newTestRouter()
	r.Ledger().Record(dispatch.NewGiftEvent{CompositeID: "portals_1", Marketplace: "portals"})
	r.Ledger().Record(dispatch.NewGiftEvent{CompositeID: "portals_2", Marketplace: "portals"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/recent", nil)
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []dispatch.NewGiftEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 || got[0].CompositeID != "portals_2" {
		t.Fatalf("expected most recent entry first, got %+v", got)
	}
}

func TestFloorEndpointReturns404WhenNotCached(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/floor?marketplace=portals&scope=gift&collection=PlushPepe", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestFloorEndpointReturnsCachedValue(t *testing.T) {
	cache := enrich.NewFloorCache(time.Minute)
	cache.Set(marketplace.Portals, enrich.ScopeGift, "PlushPepe", "", decimal.NewFromFloat(12.5))
	r := New(10, cache, wshub.NewHub(), nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/floor?marketplace=portals&scope=gift&collection=PlushPepe", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFloorEndpointRejectsMissingParams(t *testing.T) {
	r := newTestRouter()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/floor?marketplace=portals", nil)
	r.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
