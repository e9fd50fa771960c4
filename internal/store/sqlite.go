package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"quotefeed/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SampleStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT    NOT NULL,
	price      REAL    NOT NULL,
	change     REAL    NOT NULL,
	change_pct REAL    NOT NULL,
	volume     INTEGER NOT NULL,
	ts         INTEGER NOT NULL,
	origin     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_symbol_ts ON samples(symbol, ts);
`

// SQLiteStore implements SampleStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends a single sample to the samples table.
func (s *SQLiteStore) Record(ctx context.Context, sample domain.Sample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (symbol, price, change, change_pct, volume, ts, origin)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sample.Symbol, sample.Price, sample.Change, sample.ChangePct,
		int64(sample.Volume), sample.Timestamp, string(sample.Origin),
	)
	if err != nil {
		return fmt.Errorf("inserting sample for %s: %w", sample.Symbol, err)
	}
	return nil
}

// ReadSamples returns samples for the symbol within [start, end], ordered by
// timestamp ascending.
func (s *SQLiteStore) ReadSamples(ctx context.Context, symbol string, start, end time.Time) ([]domain.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, price, change, change_pct, volume, ts, origin
		 FROM samples
		 WHERE symbol = ? AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC`,
		symbol, start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying samples for %s: %w", symbol, err)
	}
	defer rows.Close()

	var samples []domain.Sample
	for rows.Next() {
		var sm domain.Sample
		var volume int64
		var origin string
		if err := rows.Scan(&sm.Symbol, &sm.Price, &sm.Change, &sm.ChangePct, &volume, &sm.Timestamp, &origin); err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		sm.Volume = uint64(volume)
		sm.Origin = domain.Origin(origin)
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// ListSymbols returns all distinct symbols with recorded samples, sorted.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM samples ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scanning symbol row: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
