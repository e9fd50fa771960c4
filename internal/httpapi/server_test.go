package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"quotefeed/internal/domain"
	"quotefeed/internal/feed"
	"quotefeed/internal/store"
)

// stubGateway serves fixed closes for every symbol.
type stubGateway struct {
	closes []float64
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) LatestBars(_ context.Context, symbol string) ([]domain.Bar, error) {
	bars := make([]domain.Bar, 0, len(g.closes))
	ts := time.Now().Add(-time.Duration(len(g.closes)) * time.Minute)
	for i, c := range g.closes {
		bars = append(bars, domain.Bar{
			Symbol:    symbol,
			Timestamp: ts.Add(time.Duration(i) * time.Minute),
			Close:     c,
			Volume:    1000,
		})
	}
	return bars, nil
}

func newTestServer(t *testing.T) (*Server, *feed.Feed, *httptest.Server) {
	t.Helper()

	f := feed.NewFeed(&stubGateway{closes: []float64{170, 175}}, time.Minute, nil, nil)
	t.Cleanup(f.Close)

	s := NewServer(f, nil, nil)
	t.Cleanup(s.Close)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	return s, f, ts
}

// waitForPrice polls the feed cache until the symbol has a sample.
func waitForPrice(t *testing.T, f *feed.Feed, symbol string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := f.CurrentPrice(symbol); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no cached sample for %s", symbol)
}

func TestQuoteNotFound(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/quote/AAPL")
	if err != nil {
		t.Fatalf("GET quote: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestWatchThenQuote(t *testing.T) {
	_, f, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/watch/aapl", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST watch: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST watch status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// Symbols are canonicalized to upper case at the API boundary.
	waitForPrice(t, f, "AAPL")

	resp, err = http.Get(ts.URL + "/api/quote/AAPL")
	if err != nil {
		t.Fatalf("GET quote: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET quote status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var sample domain.Sample
	if err := json.NewDecoder(resp.Body).Decode(&sample); err != nil {
		t.Fatalf("decoding quote: %v", err)
	}
	if sample.Price != 175 {
		t.Errorf("quote Price = %v, want 175", sample.Price)
	}
	if sample.Origin != domain.OriginLive {
		t.Errorf("quote Origin = %q, want %q", sample.Origin, domain.OriginLive)
	}
}

func TestWatchIdempotent(t *testing.T) {
	_, f, ts := newTestServer(t)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/watch/MSFT", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST watch #%d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("POST watch #%d status = %d, want %d", i, resp.StatusCode, http.StatusNoContent)
		}
	}

	if n := f.SubscriberCount("MSFT"); n != 1 {
		t.Errorf("SubscriberCount = %d after duplicate watch, want 1", n)
	}
}

func TestUnwatchTearsDown(t *testing.T) {
	_, f, ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/watch/AAPL", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST watch: %v", err)
	}
	resp.Body.Close()
	waitForPrice(t, f, "AAPL")

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/watch/AAPL", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE watch: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE watch status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// The server held the only subscription, so the loop and cache go away.
	if _, ok := f.CurrentPrice("AAPL"); ok {
		t.Error("CurrentPrice still cached after unwatch")
	}

	// Removing again is a 404.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/watch/AAPL", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE watch (again): %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestListEndpoints(t *testing.T) {
	_, f, ts := newTestServer(t)

	for _, sym := range []string{"AAPL", "MSFT"} {
		req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/watch/"+sym, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("POST watch %s: %v", sym, err)
		}
		resp.Body.Close()
		waitForPrice(t, f, sym)
	}

	resp, err := http.Get(ts.URL + "/api/symbols")
	if err != nil {
		t.Fatalf("GET symbols: %v", err)
	}
	var syms SymbolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&syms); err != nil {
		t.Fatalf("decoding symbols: %v", err)
	}
	resp.Body.Close()
	if len(syms.Symbols) != 2 || syms.Symbols[0] != "AAPL" || syms.Symbols[1] != "MSFT" {
		t.Errorf("symbols = %v, want [AAPL MSFT]", syms.Symbols)
	}

	resp, err = http.Get(ts.URL + "/api/quotes")
	if err != nil {
		t.Fatalf("GET quotes: %v", err)
	}
	var quotes QuotesResponse
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		t.Fatalf("decoding quotes: %v", err)
	}
	resp.Body.Close()
	if len(quotes.Quotes) != 2 {
		t.Errorf("quotes count = %d, want 2", len(quotes.Quotes))
	}

	resp, err = http.Get(ts.URL + "/api/watch")
	if err != nil {
		t.Fatalf("GET watch: %v", err)
	}
	var watches WatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&watches); err != nil {
		t.Fatalf("decoding watches: %v", err)
	}
	resp.Body.Close()
	if len(watches.Symbols) != 2 {
		t.Errorf("watch count = %d, want 2", len(watches.Symbols))
	}
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	samples, err := store.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer samples.Close()

	f := feed.NewFeed(&stubGateway{closes: []float64{170, 175}}, time.Minute, samples, nil)
	defer f.Close()

	s := NewServer(f, samples, nil)
	defer s.Close()
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	// Seed history directly through the store.
	now := time.Now()
	for i := 0; i < 3; i++ {
		sm := domain.Sample{
			Symbol:    "AAPL",
			Price:     170 + float64(i),
			Timestamp: now.Add(time.Duration(i-3) * time.Minute).UnixMilli(),
			Origin:    domain.OriginLive,
		}
		if err := samples.Record(context.Background(), sm); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	resp, err := http.Get(ts.URL + "/api/history/AAPL")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET history status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var hist HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if hist.Symbol != "AAPL" {
		t.Errorf("history Symbol = %q, want %q", hist.Symbol, "AAPL")
	}
	if len(hist.Samples) != 3 {
		t.Fatalf("history returned %d samples, want 3", len(hist.Samples))
	}
	if hist.Samples[0].Price != 170 {
		t.Errorf("first history Price = %v, want 170", hist.Samples[0].Price)
	}
}

func TestHistoryBadWindow(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/history/AAPL?start=notanumber")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
