package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"quotefeed/internal/domain"
	"quotefeed/internal/feed"
	"quotefeed/internal/store"
)

// defaultHistoryWindow bounds history queries when no start is given.
const defaultHistoryWindow = 24 * time.Hour

// Server serves the quotefeed HTTP API.
type Server struct {
	feed    *feed.Feed
	samples store.SampleStore
	log     *slog.Logger

	// Server-held subscriptions keyed by symbol. Each keeps its symbol's
	// poll loop alive so the dashboard backend always has warm data.
	watchMu sync.Mutex
	watches map[string]func()
}

// NewServer creates a Server backed by the given feed and sample store. The
// sample store may be nil, in which case history endpoints report no data.
func NewServer(f *feed.Feed, samples store.SampleStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		feed:    f,
		samples: samples,
		log:     log.With("component", "httpapi"),
		watches: make(map[string]func()),
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/quote/{symbol}", s.handleQuote)
	mux.HandleFunc("GET /api/quotes", s.handleQuotes)
	mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/history/{symbol}", s.handleHistory)
	mux.HandleFunc("GET /api/stream/{symbol}", s.handleStream)
	mux.HandleFunc("GET /api/watch", s.handleListWatches)
	mux.HandleFunc("POST /api/watch/{symbol}", s.handleAddWatch)
	mux.HandleFunc("DELETE /api/watch/{symbol}", s.handleRemoveWatch)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

// Close releases every server-held watch subscription.
func (s *Server) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for sym, unsub := range s.watches {
		unsub()
		delete(s.watches, sym)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	sample, ok := s.feed.CurrentPrice(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "no data for "+symbol)
		return
	}
	writeJSON(w, sample)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, QuotesResponse{Quotes: s.feed.Snapshot()})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SymbolsResponse{Symbols: s.feed.Symbols()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	end := time.Now()
	start := end.Add(-defaultHistoryWindow)
	if v := r.URL.Query().Get("start"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start: "+v)
			return
		}
		start = time.UnixMilli(ms)
	}
	if v := r.URL.Query().Get("end"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end: "+v)
			return
		}
		end = time.UnixMilli(ms)
	}

	if s.samples == nil {
		writeJSON(w, HistoryResponse{Symbol: symbol, Samples: nil})
		return
	}

	samples, err := s.samples.ReadSamples(r.Context(), symbol, start, end)
	if err != nil {
		s.log.Error("reading history", "symbol", symbol, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	writeJSON(w, HistoryResponse{Symbol: symbol, Samples: samples})
}

func (s *Server) handleListWatches(w http.ResponseWriter, r *http.Request) {
	s.watchMu.Lock()
	symbols := make([]string, 0, len(s.watches))
	for sym := range s.watches {
		symbols = append(symbols, sym)
	}
	s.watchMu.Unlock()
	sort.Strings(symbols)
	writeJSON(w, WatchResponse{Symbols: symbols})
}

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if _, exists := s.watches[symbol]; exists {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The server acts as one more feed consumer; samples flow to the
	// recorder through the feed itself, so the callback has nothing to do.
	unsub, err := s.feed.Subscribe(symbol, func(domain.Sample) {})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.watches[symbol] = unsub
	s.log.Info("watch added", "symbol", symbol)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveWatch(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(r.PathValue("symbol"))

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	unsub, exists := s.watches[symbol]
	if !exists {
		writeError(w, http.StatusNotFound, "not watching "+symbol)
		return
	}
	unsub()
	delete(s.watches, symbol)
	w.WriteHeader(http.StatusNoContent)
}
