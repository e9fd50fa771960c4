// Package httpapi exposes the quote feed over an HTTP JSON API: current
// cached quotes, recorded history, and server-held watch subscriptions that
// keep symbols polling.
package httpapi

import (
	"quotefeed/internal/domain"
)

// QuotesResponse lists the cached sample for every active symbol.
type QuotesResponse struct {
	Quotes []domain.Sample `json:"quotes"`
}

// SymbolsResponse lists symbols with an active poll loop.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// HistoryResponse holds recorded samples for one symbol.
type HistoryResponse struct {
	Symbol  string          `json:"symbol"`
	Samples []domain.Sample `json:"samples"`
}

// WatchResponse lists the symbols held warm by the server.
type WatchResponse struct {
	Symbols []string `json:"symbols"`
}
