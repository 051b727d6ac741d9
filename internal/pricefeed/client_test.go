package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const listingsBody = `{
	"data": [
		{"id": 1, "symbol": "BTC", "name": "Bitcoin",
		 "quote": {"USD": {"price": 67123.5, "percent_change_24h": 3.1}}},
		{"id": 2, "symbol": "ETH", "name": "Ethereum",
		 "quote": {"USD": {"price": 3456.7, "percent_change_24h": -1.2}}}
	]
}`

func TestClient_Listings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(apiKeyHeader); got != "test-key" {
			t.Errorf("API key header: got %q", got)
		}
		w.Write([]byte(listingsBody))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithEndpoint(srv.URL))
	quotes, err := client.Listings(context.Background())
	if err != nil {
		t.Fatalf("Listings failed: %v", err)
	}

	if len(quotes) != 2 {
		t.Fatalf("Expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Symbol != "BTC" || quotes[0].PriceUSD != 67123.5 {
		t.Errorf("BTC quote mismatch: %+v", quotes[0])
	}
	if quotes[1].PercentChange24h != -1.2 {
		t.Errorf("ETH 24h change: got %f", quotes[1].PercentChange24h)
	}
}

func TestClient_ListingsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient("", WithEndpoint(srv.URL))
	if _, err := client.Listings(context.Background()); err == nil {
		t.Fatal("Expected error on non-200 response")
	}
}

func TestFeed_FallbackOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	feed := NewFeed(NewClient("", WithEndpoint(srv.URL)))
	quotes := feed.Quotes(context.Background())

	if len(quotes) != 4 {
		t.Fatalf("Expected 4 fallback quotes, got %d", len(quotes))
	}
	if quotes[0].Symbol != "BTC" || quotes[0].PriceUSD != 45000 {
		t.Errorf("Fallback BTC quote mismatch: %+v", quotes[0])
	}
}

func TestFeed_CachesWithinTTL(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(listingsBody))
	}))
	defer srv.Close()

	clock := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	feed := NewFeed(NewClient("k", WithEndpoint(srv.URL)),
		WithClock(func() time.Time { return clock }))

	feed.Quotes(context.Background())
	feed.Quotes(context.Background())
	if calls != 1 {
		t.Errorf("Expected 1 upstream call within TTL, got %d", calls)
	}

	clock = clock.Add(2 * DefaultTTL)
	feed.Quotes(context.Background())
	if calls != 2 {
		t.Errorf("Expected refresh after TTL, got %d calls", calls)
	}
}
