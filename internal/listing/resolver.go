package listing

import (
	"context"
	"sync"
	"time"

	"github.com/jtlacci/hip3-dashboard/internal/hyperliquid"
	"github.com/jtlacci/hip3-dashboard/internal/store"
	"go.uber.org/zap"
)

const (
	// First hourly candle over the asset's whole possible lifetime.
	candleInterval = "1h"
	epochStartMs   = 0
	farFutureMs    = 9_999_999_999_999

	keyPrefix = "hip3:listing:"

	DefaultWorkers    = 12
	DefaultCandleGate = 6
)

// CandleSource is the slice of the exchange client the resolver needs.
type CandleSource interface {
	CandleSnapshot(ctx context.Context, coin, interval string, startTimeMs, endTimeMs int64) ([]hyperliquid.Candle, error)
}

// Request pairs an asset with the fallback timestamp used when it has no
// candle history (zero-volume markets still need some age signal).
type Request struct {
	Asset       string
	FallbackISO string
}

// entry is the cached resolution for one asset. A stored entry with a nil
// timestamp marks "unresolved"; it is never re-fetched within the process.
type entry struct {
	ListedAtMs *int64 `json:"listed_at_ms"`
}

func (e entry) timestamp() *time.Time {
	if e.ListedAtMs == nil {
		return nil
	}
	ts := time.UnixMilli(*e.ListedAtMs).UTC()
	return &ts
}

// Resolver looks up per-asset listing dates. Listing dates never change once
// a market trades, so results live in the injected cache for the process
// lifetime and only cache misses incur network work. Misses run on a bounded
// worker pool; the candle calls inside are throttled separately by a counting
// gate so parallel resolutions cannot trip the upstream rate limiter.
type Resolver struct {
	source  CandleSource
	cache   *store.Cache
	logger  *zap.SugaredLogger
	workers int
	gate    chan struct{}
}

func NewResolver(source CandleSource, cache *store.Cache, logger *zap.SugaredLogger, workers, candleGate int) *Resolver {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if candleGate <= 0 {
		candleGate = DefaultCandleGate
	}
	return &Resolver{
		source:  source,
		cache:   cache,
		logger:  logger,
		workers: workers,
		gate:    make(chan struct{}, candleGate),
	}
}

// ResolveAll returns the listing date (nil when unresolved) for every
// requested asset. The call blocks until all uncached assets have been
// resolved; every outcome, "unresolved" included, is written back to the
// cache. Duplicate requests for the same brand-new asset may resolve it more
// than once, which is harmless since writes are idempotent.
func (r *Resolver) ResolveAll(ctx context.Context, reqs []Request) map[string]*time.Time {
	results := make(map[string]*time.Time, len(reqs))
	var toFetch []Request

	for _, req := range reqs {
		var e entry
		err := r.cache.Get(ctx, keyPrefix+req.Asset, &e)
		if err == nil {
			results[req.Asset] = e.timestamp()
			continue
		}
		if err != store.ErrCacheMiss && r.logger != nil {
			r.logger.Warnw("Listing cache read failed", "asset", req.Asset, "error", err)
		}
		toFetch = append(toFetch, req)
	}

	if len(toFetch) == 0 {
		return results
	}

	type outcome struct {
		asset string
		ts    *time.Time
	}

	workers := r.workers
	if workers > len(toFetch) {
		workers = len(toFetch)
	}

	work := make(chan Request)
	out := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for req := range work {
				ts := r.resolve(ctx, req.Asset, req.FallbackISO)
				r.writeBack(ctx, req.Asset, ts)
				out <- outcome{asset: req.Asset, ts: ts}
			}
		}()
	}

	go func() {
		for _, req := range toFetch {
			work <- req
		}
		close(work)
		wg.Wait()
		close(out)
	}()

	for o := range out {
		results[o.asset] = o.ts
	}
	return results
}

// resolve finds the listing date for one asset: the open time of its first
// hourly candle, else the parsed fallback timestamp, else nil.
func (r *Resolver) resolve(ctx context.Context, asset, fallbackISO string) *time.Time {
	r.gate <- struct{}{}
	candles, err := r.source.CandleSnapshot(ctx, asset, candleInterval, epochStartMs, farFutureMs)
	<-r.gate

	if err == nil && len(candles) > 0 {
		ts := time.UnixMilli(candles[0].OpenTimeMs).UTC()
		return &ts
	}
	if err != nil && r.logger != nil {
		r.logger.Debugw("Candle lookup failed, trying fallback", "asset", asset, "error", err)
	}

	if fallbackISO != "" {
		if ts, ok := parseFallback(fallbackISO); ok {
			return &ts
		}
	}
	return nil
}

func (r *Resolver) writeBack(ctx context.Context, asset string, ts *time.Time) {
	var e entry
	if ts != nil {
		ms := ts.UnixMilli()
		e.ListedAtMs = &ms
	}
	if err := r.cache.Set(ctx, keyPrefix+asset, e, 0); err != nil && r.logger != nil {
		r.logger.Warnw("Listing cache write failed", "asset", asset, "error", err)
	}
}

// parseFallback parses an ISO-8601 timestamp, truncated to 26 characters to
// tolerate variable sub-second precision, and forces UTC.
func parseFallback(iso string) (time.Time, bool) {
	if len(iso) > 26 {
		iso = iso[:26]
	}
	layouts := []string{
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05.999999",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, iso); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
