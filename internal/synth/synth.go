// Package synth fabricates plausible price samples for symbols whose real
// market data is unavailable. Generated samples are always tagged
// domain.OriginSynthetic so they can never masquerade as live data.
package synth

import (
	"math/rand/v2"
	"time"

	"quotefeed/internal/domain"
)

// maxDrift bounds the price perturbation to ±2% of the base price.
const maxDrift = 0.02

// Volume bounds for generated samples.
const (
	minVolume = 1_000_000
	maxVolume = 11_000_000
)

// defaultBasePrice is used for symbols not present in the base table.
const defaultBasePrice = 100.0

// basePrices maps well-known symbols to a stable base price so repeated
// fallbacks for the same symbol stay in a consistent band.
var basePrices = map[string]float64{
	"AAPL":   175.0,
	"GOOGL":  140.0,
	"MSFT":   400.0,
	"AMZN":   180.0,
	"TSLA":   250.0,
	"META":   500.0,
	"NVDA":   120.0,
	"BTC":    65000.0,
	"ETH":    3500.0,
	"SOL":    150.0,
	"EURUSD": 1.08,
	"GBPUSD": 1.27,
	"USDJPY": 150.0,
}

// BasePrice returns the deterministic base price for a symbol, defaulting to
// 100 for unknown symbols.
func BasePrice(symbol string) float64 {
	if base, ok := basePrices[symbol]; ok {
		return base
	}
	return defaultBasePrice
}

// Generate produces a synthetic sample for the symbol: the base price plus a
// bounded pseudo-random perturbation, with change and changePercent computed
// against the base. It never fails and holds no shared state, so it is safe
// to call from any number of goroutines.
func Generate(symbol string) domain.Sample {
	base := BasePrice(symbol)

	// Uniform drift in [-maxDrift, +maxDrift].
	drift := (rand.Float64()*2 - 1) * maxDrift
	price := base * (1 + drift)
	change := price - base

	volume := uint64(minVolume + rand.Int64N(maxVolume-minVolume+1))

	return domain.Sample{
		Symbol:    symbol,
		Price:     price,
		Change:    change,
		ChangePct: drift * 100,
		Volume:    volume,
		Timestamp: time.Now().UnixMilli(),
		Origin:    domain.OriginSynthetic,
	}
}
