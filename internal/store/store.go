// Package store persists the price samples produced by the feed: a SQLite
// history for queries over recent samples, and Parquet archives for long-term
// per-day storage.
package store

import (
	"context"
	"time"

	"quotefeed/internal/domain"
)

// SampleStore persists and retrieves price samples.
type SampleStore interface {
	// Record appends a single sample to storage.
	Record(ctx context.Context, sample domain.Sample) error

	// ReadSamples returns samples for the symbol within [start, end],
	// ordered by timestamp ascending.
	ReadSamples(ctx context.Context, symbol string, start, end time.Time) ([]domain.Sample, error)

	// ListSymbols returns all distinct symbols with recorded samples.
	ListSymbols(ctx context.Context) ([]string, error)
}
