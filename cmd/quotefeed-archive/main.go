// One-shot tool: archive recorded samples from the SQLite history into
// per-day Parquet files.
//
// Usage:
//
//	go run cmd/quotefeed-archive/main.go [YYYY-MM-DD]
//
// With no argument the previous calendar day is archived.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"quotefeed/internal/config"
	"quotefeed/internal/store"
	"quotefeed/internal/util"
)

func main() {
	cfgPath := "config/quotefeed.yaml"
	if p := os.Getenv("QUOTEFEED_CONFIG"); p != "" {
		cfgPath = p
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfgPath = ""
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, "text")
	util.SetDefault(logger)

	day := time.Now().AddDate(0, 0, -1)
	if len(os.Args) > 1 {
		day, err = time.Parse("2006-01-02", os.Args[1])
		if err != nil {
			log.Fatalf("invalid date %q (want YYYY-MM-DD): %v", os.Args[1], err)
		}
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)

	samples, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening sample store: %v", err)
	}
	defer samples.Close()

	archive := store.NewParquetArchive(cfg.Storage.DataDir)
	ctx := context.Background()

	symbols, err := samples.ListSymbols(ctx)
	if err != nil {
		log.Fatalf("listing symbols: %v", err)
	}

	wrote := 0
	for _, sym := range symbols {
		recs, err := samples.ReadSamples(ctx, sym, start, end)
		if err != nil {
			log.Fatalf("reading samples for %s: %v", sym, err)
		}
		if len(recs) == 0 {
			continue
		}
		if err := archive.WriteDay(sym, start, recs); err != nil {
			log.Fatalf("archiving %s: %v", sym, err)
		}
		logger.Info("archived", "symbol", sym, "date", start.Format("2006-01-02"), "samples", len(recs))
		wrote++
	}

	if wrote == 0 {
		logger.Info("no samples to archive", "date", start.Format("2006-01-02"))
	} else {
		logger.Info("archive complete", "date", start.Format("2006-01-02"), "symbols", wrote)
	}
}
