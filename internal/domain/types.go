// Package domain defines the core data types shared across the quotefeed
// system: OHLCV bars as returned by upstream market-data providers, and the
// price samples the feed produces and delivers to consumers.
package domain

import "time"

// Origin tags a Sample with the source that produced it, so downstream code
// can distinguish real market data from fabricated fallback data.
type Origin string

const (
	// OriginLive marks a sample derived from upstream market data.
	OriginLive Origin = "live"

	// OriginSynthetic marks a sample fabricated by the synthetic generator
	// because the upstream provider was unavailable or returned too little
	// history. Synthetic data must never be presented as real.
	OriginSynthetic Origin = "synthetic"
)

// Bar is a single OHLCV price record for a fixed time bucket.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count"`
	VWAP       float64   `json:"vwap"`
}

// Sample is one price point produced by the feed: the latest close price for
// a symbol plus its delta against the previous close. Timestamp is epoch
// milliseconds.
type Sample struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change    float64 `json:"change"`
	ChangePct float64 `json:"change_pct"`
	Volume    uint64  `json:"volume"`
	Timestamp int64   `json:"timestamp"`
	Origin    Origin  `json:"origin"`
}

// Time returns the sample timestamp as a time.Time.
func (s Sample) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}
