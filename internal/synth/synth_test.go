package synth

import (
	"sync"
	"testing"
	"time"

	"quotefeed/internal/domain"
)

func TestBasePriceKnownSymbol(t *testing.T) {
	if got := BasePrice("AAPL"); got != 175.0 {
		t.Errorf("BasePrice(AAPL) = %v, want 175.0", got)
	}
}

func TestBasePriceUnknownSymbol(t *testing.T) {
	if got := BasePrice("ZZZZ"); got != 100.0 {
		t.Errorf("BasePrice(ZZZZ) = %v, want 100.0", got)
	}
}

func TestGenerateBounds(t *testing.T) {
	// Unknown symbol: base 100, so price must lie in [98, 102].
	for i := 0; i < 1000; i++ {
		s := Generate("ZZZZ")
		if s.Price < 98.0 || s.Price > 102.0 {
			t.Fatalf("Generate(ZZZZ).Price = %v, want within [98, 102]", s.Price)
		}
		if s.Volume < 1_000_000 || s.Volume > 11_000_000 {
			t.Fatalf("Generate(ZZZZ).Volume = %d, want within [1000000, 11000000]", s.Volume)
		}
	}
}

func TestGenerateFields(t *testing.T) {
	before := time.Now().UnixMilli()
	s := Generate("AAPL")
	after := time.Now().UnixMilli()

	if s.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", s.Symbol, "AAPL")
	}
	if s.Origin != domain.OriginSynthetic {
		t.Errorf("Origin = %q, want %q", s.Origin, domain.OriginSynthetic)
	}
	if s.Timestamp < before || s.Timestamp > after {
		t.Errorf("Timestamp = %d, want within [%d, %d]", s.Timestamp, before, after)
	}

	// Change must be self-consistent with price and base.
	base := BasePrice("AAPL")
	if got, want := s.Change, s.Price-base; absDiff(got, want) > 1e-9 {
		t.Errorf("Change = %v, want %v", got, want)
	}
	wantPct := (s.Price - base) / base * 100
	if absDiff(s.ChangePct, wantPct) > 1e-9 {
		t.Errorf("ChangePct = %v, want %v", s.ChangePct, wantPct)
	}
}

func TestGenerateConcurrent(t *testing.T) {
	// Generate is documented as safe for concurrent use; hammer it from
	// multiple goroutines so the race detector can verify.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Generate("ZZZZ")
			}
		}()
	}
	wg.Wait()
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
