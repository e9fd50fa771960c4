package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quotefeed/internal/config"
	"quotefeed/internal/feed"
	"quotefeed/internal/gateway"
	"quotefeed/internal/httpapi"
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
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	samples, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Error("opening sample store", "path", cfg.Storage.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer samples.Close()

	if cfg.Alpaca.APIKey == "" {
		logger.Warn("no alpaca credentials configured, all quotes will be synthetic")
	}
	gw := gateway.NewAlpacaGateway(
		cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL,
		cfg.Feed.RateLimitPerMin, cfg.Feed.RateLimitBurst,
	)

	f := feed.NewFeed(gw, cfg.Feed.PollInterval(), samples, logger)
	defer f.Close()

	api := httpapi.NewServer(f, samples, logger)
	defer api.Close()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("quotefeed-server listening", "addr", addr,
			"gateway", gw.Name(), "poll_interval", cfg.Feed.PollInterval())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}
}
