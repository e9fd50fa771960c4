package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"quotefeed/internal/domain"
	"quotefeed/internal/util"
)

// Compile-time interface check.
var _ BarGateway = (*AlpacaGateway)(nil)

// AlpacaGateway fetches minute bars from the Alpaca market-data API. Calls
// are throttled through a shared token-bucket limiter so many symbol loops
// cannot exceed the account's request budget.
type AlpacaGateway struct {
	client  *marketdata.Client
	limiter *util.RateLimiter
}

// NewAlpacaGateway creates an AlpacaGateway with the given credentials and
// rate limit. An empty dataURL uses the SDK default endpoint.
func NewAlpacaGateway(apiKey, apiSecret, dataURL string, rateLimitPerMin, burst int) *AlpacaGateway {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaGateway{
		client:  marketdata.NewClient(opts),
		limiter: util.NewRateLimiter(rateLimitPerMin, burst),
	}
}

// Name returns the gateway identifier.
func (g *AlpacaGateway) Name() string { return "alpaca" }

// Transient-failure retry policy for a single fetch.
const (
	fetchAttempts  = 3
	fetchBaseDelay = 500 * time.Millisecond
)

// LatestBars fetches minute bars for the symbol covering the previous
// calendar day through now. The window is wide enough to always contain the
// freshest closed bar plus the history needed to compute a delta.
func (g *AlpacaGateway) LatestBars(ctx context.Context, symbol string) ([]domain.Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := time.Now()
	var alpacaBars []marketdata.Bar
	err := util.Retry(ctx, fetchAttempts, fetchBaseDelay, func() error {
		var err error
		alpacaBars, err = g.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneMin,
			Start:     now.AddDate(0, 0, -1),
			End:       now,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ab.Timestamp,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars, nil
}
