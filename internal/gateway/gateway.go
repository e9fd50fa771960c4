// Package gateway abstracts the upstream market-data provider behind a small
// request/response interface. The feed treats the gateway as a black box that
// may fail or rate-limit; every failure mode is recovered downstream.
package gateway

import (
	"context"

	"quotefeed/internal/domain"
)

// BarGateway fetches the most recent minute bars for a symbol, covering the
// previous calendar day through now. Implementations return the bars in
// chronological order; at least two bars are needed downstream to compute a
// price delta.
type BarGateway interface {
	// Name returns the gateway identifier (e.g. "alpaca").
	Name() string

	// LatestBars returns recent minute bars for the symbol, oldest first.
	LatestBars(ctx context.Context, symbol string) ([]domain.Bar, error)
}
