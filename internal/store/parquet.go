package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"quotefeed/internal/domain"
)

// ParquetArchive writes per-day, per-symbol sample archives as Parquet files
// on disk. Layout: <dataDir>/archive/<SYMBOL>/<YYYY-MM-DD>.parquet
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates a ParquetArchive rooted at the given directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// SampleRecord is the Parquet schema for archived samples.
type SampleRecord struct {
	Symbol    string  `parquet:"symbol"`
	Price     float64 `parquet:"price"`
	Change    float64 `parquet:"change"`
	ChangePct float64 `parquet:"change_pct"`
	Volume    int64   `parquet:"volume"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Origin    string  `parquet:"origin"`
}

// WriteDay archives samples for one symbol and calendar day. Existing
// records in the target file are merged and deduplicated by timestamp, with
// incoming records winning.
func (a *ParquetArchive) WriteDay(symbol string, day time.Time, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	incoming := make([]SampleRecord, 0, len(samples))
	for _, s := range samples {
		incoming = append(incoming, SampleRecord{
			Symbol:    s.Symbol,
			Price:     s.Price,
			Change:    s.Change,
			ChangePct: s.ChangePct,
			Volume:    int64(s.Volume),
			Timestamp: s.Timestamp,
			Origin:    string(s.Origin),
		})
	}

	path := a.dayPath(symbol, day)
	existing, _ := parquet.ReadFile[SampleRecord](path)
	merged := mergeSampleRecords(existing, incoming)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, merged); err != nil {
		return fmt.Errorf("writing archive for %s/%s: %w", symbol, day.Format("2006-01-02"), err)
	}
	return nil
}

// ReadDay returns the archived samples for one symbol and calendar day,
// sorted by timestamp. A missing archive file yields no samples and no error.
func (a *ParquetArchive) ReadDay(symbol string, day time.Time) ([]domain.Sample, error) {
	records, err := parquet.ReadFile[SampleRecord](a.dayPath(symbol, day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	samples := make([]domain.Sample, 0, len(records))
	for _, r := range records {
		samples = append(samples, domain.Sample{
			Symbol:    r.Symbol,
			Price:     r.Price,
			Change:    r.Change,
			ChangePct: r.ChangePct,
			Volume:    uint64(r.Volume),
			Timestamp: r.Timestamp,
			Origin:    domain.Origin(r.Origin),
		})
	}
	return samples, nil
}

// dayPath returns the filesystem path for one symbol's daily archive file.
func (a *ParquetArchive) dayPath(symbol string, day time.Time) string {
	date := day.Format("2006-01-02")
	return filepath.Join(a.DataDir, "archive", strings.ToUpper(symbol), date+".parquet")
}

// mergeSampleRecords deduplicates records by timestamp, preferring incoming
// records over existing ones. Results are sorted by timestamp.
func mergeSampleRecords(existing, incoming []SampleRecord) []SampleRecord {
	seen := make(map[int64]SampleRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]SampleRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
