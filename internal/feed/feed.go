// Package feed implements the live quote distribution service: one polling
// loop per observed symbol, a last-value cache, and fan-out of each produced
// sample to every subscriber of that symbol.
//
// The feed deduplicates upstream work across consumers: no matter how many
// callbacks are subscribed to a symbol, exactly one loop polls the gateway
// for it. When the gateway fails or returns too little history, the loop
// substitutes a synthetic sample so subscribers receive a value on every
// tick. The gateway is retried on every tick regardless; fallback never
// latches.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"quotefeed/internal/domain"
	"quotefeed/internal/gateway"
	"quotefeed/internal/synth"
)

// DefaultPollInterval is used when the feed is constructed with a
// non-positive interval.
const DefaultPollInterval = 30 * time.Second

// ErrEmptySymbol is returned by Subscribe for an empty symbol.
var ErrEmptySymbol = errors.New("feed: empty symbol")

// Recorder receives every sample the feed produces. Recording failures are
// logged by the feed and never surfaced to subscribers.
type Recorder interface {
	Record(ctx context.Context, sample domain.Sample) error
}

// Feed owns the per-symbol subscriber sets, poll loops, and last-value
// cache. Construct one per process (or per test) with NewFeed; there is no
// package-level instance.
type Feed struct {
	gw       gateway.BarGateway
	interval time.Duration
	recorder Recorder // optional
	log      *slog.Logger

	mu      sync.Mutex
	symbols map[string]*symbolState
}

// symbolState exists exactly while its symbol has at least one subscriber.
// The poll loop goroutine is its sole cache writer; subscriber-set mutation
// happens under Feed.mu.
type symbolState struct {
	cancel context.CancelFunc
	subs   map[int]func(domain.Sample)
	nextID int
	last   *domain.Sample
}

// NewFeed creates a Feed polling through the given gateway at the given
// interval. A non-positive interval falls back to DefaultPollInterval. The
// recorder may be nil.
func NewFeed(gw gateway.BarGateway, interval time.Duration, recorder Recorder, log *slog.Logger) *Feed {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		gw:       gw,
		interval: interval,
		recorder: recorder,
		log:      log.With("component", "feed"),
		symbols:  make(map[string]*symbolState),
	}
}

// Subscribe registers onUpdate for the symbol and returns an unsubscribe
// function. The first subscription to a symbol starts its poll loop with an
// immediate fetch; a later subscription is handed the cached sample right
// away so late joiners never wait for the next poll boundary. Calling the
// returned function more than once is a no-op.
func (f *Feed) Subscribe(symbol string, onUpdate func(domain.Sample)) (func(), error) {
	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	f.mu.Lock()
	st, ok := f.symbols[symbol]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		st = &symbolState{
			cancel: cancel,
			subs:   make(map[int]func(domain.Sample)),
		}
		f.symbols[symbol] = st
		go f.run(ctx, symbol, st)
		f.log.Debug("poll loop started", "symbol", symbol)
	}
	id := st.nextID
	st.nextID++
	st.subs[id] = onUpdate
	var cached *domain.Sample
	if st.last != nil {
		c := *st.last
		cached = &c
	}
	f.mu.Unlock()

	// Late joiner: hand over the cached sample without waiting for the next
	// tick. Delivered outside the lock so a slow callback cannot block
	// subscribe/unsubscribe.
	if cached != nil {
		f.deliver(onUpdate, *cached)
	}

	var once sync.Once
	return func() {
		once.Do(func() { f.unsubscribe(symbol, id) })
	}, nil
}

// unsubscribe removes one callback; when the symbol's subscriber set becomes
// empty its loop is cancelled and its cache entry evicted, so a later
// re-subscription rebuilds everything from scratch.
func (f *Feed) unsubscribe(symbol string, id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.symbols[symbol]
	if !ok {
		return
	}
	delete(st.subs, id)
	if len(st.subs) == 0 {
		st.cancel()
		delete(f.symbols, symbol)
		f.log.Debug("poll loop stopped", "symbol", symbol)
	}
}

// CurrentPrice returns the most recent sample for the symbol if the feed
// currently holds one. It is a pure cache read: no fetch, no subscription.
func (f *Feed) CurrentPrice(symbol string) (domain.Sample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.symbols[symbol]
	if !ok || st.last == nil {
		return domain.Sample{}, false
	}
	return *st.last, true
}

// Snapshot returns the cached sample for every symbol that has one.
func (f *Feed) Snapshot() []domain.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]domain.Sample, 0, len(f.symbols))
	for _, st := range f.symbols {
		if st.last != nil {
			out = append(out, *st.last)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns the sorted list of symbols with an active poll loop.
func (f *Feed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.symbols))
	for sym := range f.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// SubscriberCount returns the number of callbacks registered for a symbol.
func (f *Feed) SubscriberCount(symbol string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.symbols[symbol]
	if !ok {
		return 0
	}
	return len(st.subs)
}

// Close cancels every poll loop and drops all subscriptions and cache
// entries. Callbacks registered at close time are never invoked again.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for sym, st := range f.symbols {
		st.cancel()
		delete(f.symbols, sym)
	}
}

// ---------------------------------------------------------------------------
// Poll loop
// ---------------------------------------------------------------------------

// run is the per-symbol poll loop: one immediate tick, then one tick per
// interval until cancelled. Ticks are sequential; a new fetch never starts
// before the previous tick's notification phase completes.
func (f *Feed) run(ctx context.Context, symbol string, st *symbolState) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.tick(ctx, symbol, st)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.tick(ctx, symbol, st)
		}
	}
}

// tick produces one sample, updates the cache, and fans it out. The fetch
// happens before any lock is taken so a slow upstream call never blocks
// subscribe/unsubscribe.
func (f *Feed) tick(ctx context.Context, symbol string, st *symbolState) {
	sample := f.produce(ctx, symbol)

	f.mu.Lock()
	// The symbol may have been torn down (or torn down and recreated) while
	// the fetch was in flight; a stale loop must not write its cache.
	if cur, active := f.symbols[symbol]; !active || cur != st {
		f.mu.Unlock()
		return
	}
	st.last = &sample
	subs := make([]func(domain.Sample), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	// Fan out to a snapshot of the subscriber set. Delivery order across
	// subscribers is unspecified; a panicking callback is isolated.
	for _, fn := range subs {
		f.deliver(fn, sample)
	}

	if f.recorder != nil {
		if err := f.recorder.Record(ctx, sample); err != nil && ctx.Err() == nil {
			f.log.Warn("recording sample failed", "symbol", symbol, "err", err)
		}
	}
}

// produce fetches the latest bars and derives a sample, falling back to the
// synthetic generator when the gateway fails or returns fewer than two bars.
// It never fails; subscribers get a value on every tick, real or synthetic.
func (f *Feed) produce(ctx context.Context, symbol string) domain.Sample {
	bars, err := f.gw.LatestBars(ctx, symbol)
	if err != nil {
		if ctx.Err() == nil {
			f.log.Warn("upstream fetch failed, falling back to synthetic", "symbol", symbol, "err", err)
		}
		return synth.Generate(symbol)
	}
	if len(bars) < 2 {
		f.log.Debug("insufficient bar history, falling back to synthetic", "symbol", symbol, "bars", len(bars))
		return synth.Generate(symbol)
	}

	latest := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	change := latest.Close - prev.Close
	var changePct float64
	if prev.Close != 0 {
		changePct = change / prev.Close * 100
	}

	return domain.Sample{
		Symbol:    symbol,
		Price:     latest.Close,
		Change:    change,
		ChangePct: changePct,
		Volume:    uint64(latest.Volume),
		Timestamp: latest.Timestamp.UnixMilli(),
		Origin:    domain.OriginLive,
	}
}

// deliver invokes one subscriber callback, containing any panic so the
// remaining subscribers of the same tick still receive the sample.
func (f *Feed) deliver(fn func(domain.Sample), sample domain.Sample) {
	defer func() {
		if r := recover(); r != nil {
			f.log.Error("subscriber callback panicked", "symbol", sample.Symbol, "panic", r)
		}
	}()
	fn(sample)
}
