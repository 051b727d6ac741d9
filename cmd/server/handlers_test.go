package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/market"
	"github.com/root-daemon/saveme/internal/observability"
	"github.com/root-daemon/saveme/internal/pricefeed"
	"github.com/root-daemon/saveme/internal/storage/memory"
	"github.com/root-daemon/saveme/internal/stream"
)

var testMetrics = observability.NewMetrics("saveme_test")

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := market.DefaultConfig(100)
	cfg.AutoRugPull = false
	cfg.Rand = rand.New(rand.NewSource(1))
	sim := market.New(cfg)
	sim.Start(nil)

	// Upstream always fails: the feed serves its fallback quotes.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(upstream.Close)

	return &Server{
		sim:     sim,
		hub:     stream.NewHub(nil),
		feed:    pricefeed.NewFeed(pricefeed.NewClient("", pricefeed.WithEndpoint(upstream.URL))),
		stores:  &allStores{tokenStore: memory.NewTokenStore(), candleStore: memory.NewCandleStore()},
		metrics: testMetrics,
		logger:  log.New(io.Discard, "", 0),

		sessionID:    "test-session",
		tickInterval: time.Second,
		startedAt:    time.Now(),
		lastPhase:    domain.RugPullIdle,
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(t, srv.routes(), http.MethodGet, "/status", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Status != "running" || resp.SessionID != "test-session" {
		t.Errorf("Unexpected status payload: %+v", resp)
	}
	if resp.Price <= 0 {
		t.Errorf("Price %f not positive", resp.Price)
	}
}

func TestHandleMarket(t *testing.T) {
	srv := newTestServer(t)
	srv.sim.Tick()

	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/market", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code %d", rec.Code)
	}

	var resp MarketResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Agents) != 5 {
		t.Errorf("Expected 5 agents, got %d", len(resp.Agents))
	}
	if len(resp.Candles) == 0 {
		t.Error("No candles in market response")
	}
	if resp.Phase != domain.RugPullIdle {
		t.Errorf("Phase %s, want idle", resp.Phase)
	}
}

func TestHandleTokens_CreateAndGet(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	payload := tokenPayload{
		Address: "addr1", Name: "Save Me", Symbol: "SAVE",
		Decimals: 9, Supply: "1000000000", Creator: "creator1",
	}

	rec := doJSON(t, h, http.MethodPost, "/api/tokens", payload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Create: status %d, body %s", rec.Code, rec.Body.String())
	}

	// Duplicate address conflicts.
	rec = doJSON(t, h, http.MethodPost, "/api/tokens", payload)
	if rec.Code != http.StatusConflict {
		t.Errorf("Duplicate create: status %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/tokens/addr1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Get: status %d", rec.Code)
	}
	var got tokenPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Symbol != "SAVE" || got.CreatedAtMs == 0 {
		t.Errorf("Token payload mismatch: %+v", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/tokens/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Missing token: status %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPatch, "/api/tokens/addr1", map[string]string{"image_url": "https://img/x.png"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("Patch image: status %d, want 204", rec.Code)
	}
}

func TestHandleTokens_InvalidInput(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv.routes(), http.MethodPost, "/api/tokens", tokenPayload{Name: "no address"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status %d, want 400", rec.Code)
	}
}

func TestHandlePrices_Fallback(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/prices", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code %d", rec.Code)
	}

	var resp struct {
		Data []domain.Quote `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(resp.Data) != 4 || resp.Data[0].Symbol != "BTC" {
		t.Errorf("Expected fallback quotes, got %+v", resp.Data)
	}
}

func TestHandleRugPull(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/rugpull", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Trigger: status %d", rec.Code)
	}
	srv.mu.Lock()
	manual := srv.manualTrigger
	srv.mu.Unlock()
	if !manual {
		t.Error("Manual trigger flag not set")
	}

	// A second trigger while the sequence runs is refused.
	rec = doJSON(t, h, http.MethodPost, "/api/rugpull", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Second trigger: status %d, want 409", rec.Code)
	}
}

func TestHandleToggleAgent(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/agents/toggle", map[string]string{"agent_id": "whale1"})
	if rec.Code != http.StatusNoContent {
		t.Errorf("Toggle: status %d, want 204", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/agents/toggle", map[string]string{"agent_id": "nobody"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Unknown agent: status %d, want 404", rec.Code)
	}
}

func TestHandleCandles_ArchiveRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 3; i++ {
		res := srv.sim.Tick()
		srv.mu.Lock()
		srv.pending = append(srv.pending, res.Candle)
		srv.mu.Unlock()
	}
	srv.flushArchive(t.Context())

	rec := doJSON(t, srv.routes(), http.MethodGet, "/api/candles", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code %d", rec.Code)
	}

	var resp struct {
		Session string          `json:"session"`
		Data    []candlePayload `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Session != "test-session" {
		t.Errorf("Session %s", resp.Session)
	}
	if len(resp.Data) != 3 {
		t.Errorf("Expected 3 archived candles, got %d", len(resp.Data))
	}
}
