package listing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jtlacci/hip3-dashboard/internal/hyperliquid"
	"github.com/jtlacci/hip3-dashboard/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCandles struct {
	calls   atomic.Int64
	candles map[string][]hyperliquid.Candle
	err     error
}

func (f *fakeCandles) CandleSnapshot(ctx context.Context, coin, interval string, startTimeMs, endTimeMs int64) ([]hyperliquid.Candle, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[coin], nil
}

func newTestResolver(t *testing.T, source CandleSource) (*Resolver, *store.Cache) {
	t.Helper()
	cache := store.NewMemoryCache(zap.NewNop().Sugar(), nil)
	return NewResolver(source, cache, zap.NewNop().Sugar(), 4, 2), cache
}

func TestResolveAllUsesFirstCandleOpenTime(t *testing.T) {
	source := &fakeCandles{candles: map[string][]hyperliquid.Candle{
		"vntls:SPACEX": {
			{OpenTimeMs: 1_700_000_000_000},
			{OpenTimeMs: 1_700_003_600_000},
		},
	}}
	r, _ := newTestResolver(t, source)

	dates := r.ResolveAll(context.Background(), []Request{{Asset: "vntls:SPACEX"}})

	ts := dates["vntls:SPACEX"]
	require.NotNil(t, ts)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).UTC(), *ts)
	assert.Equal(t, time.UTC, ts.Location())
}

func TestResolveAllFallsBackToMetadataTimestamp(t *testing.T) {
	source := &fakeCandles{} // no candles for anyone
	r, _ := newTestResolver(t, source)

	dates := r.ResolveAll(context.Background(), []Request{
		{Asset: "flx:GOLD", FallbackISO: "2024-03-15T08:30:00.123456789Z"},
	})

	ts := dates["flx:GOLD"]
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 30, 0, 123456000, time.UTC), *ts)
}

func TestResolveAllDateOnlyFallback(t *testing.T) {
	source := &fakeCandles{err: errors.New("boom")}
	r, _ := newTestResolver(t, source)

	dates := r.ResolveAll(context.Background(), []Request{
		{Asset: "flx:GOLD", FallbackISO: "2024-03-15"},
	})

	ts := dates["flx:GOLD"]
	require.NotNil(t, ts)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *ts)
}

func TestResolveAllUnresolvedIsCachedAndNotRefetched(t *testing.T) {
	source := &fakeCandles{err: errors.New("boom")}
	r, _ := newTestResolver(t, source)

	reqs := []Request{{Asset: "flx:GOLD", FallbackISO: "not a timestamp"}}

	dates := r.ResolveAll(context.Background(), reqs)
	assert.Nil(t, dates["flx:GOLD"])
	assert.Equal(t, int64(1), source.calls.Load())

	// Second pass hits the cached "unresolved" marker, no network.
	dates = r.ResolveAll(context.Background(), reqs)
	assert.Nil(t, dates["flx:GOLD"])
	assert.Contains(t, dates, "flx:GOLD")
	assert.Equal(t, int64(1), source.calls.Load())
}

func TestResolveAllCacheHitSkipsNetwork(t *testing.T) {
	source := &fakeCandles{candles: map[string][]hyperliquid.Candle{
		"vntls:SPACEX": {{OpenTimeMs: 1_700_000_000_000}},
	}}
	r, _ := newTestResolver(t, source)

	reqs := []Request{{Asset: "vntls:SPACEX"}}
	first := r.ResolveAll(context.Background(), reqs)
	second := r.ResolveAll(context.Background(), reqs)

	assert.Equal(t, int64(1), source.calls.Load())
	require.NotNil(t, second["vntls:SPACEX"])
	assert.Equal(t, *first["vntls:SPACEX"], *second["vntls:SPACEX"])
}

func TestResolveAllManyAssets(t *testing.T) {
	candles := make(map[string][]hyperliquid.Candle)
	reqs := make([]Request, 0, 50)
	for i := 0; i < 50; i++ {
		asset := "dex:" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		candles[asset] = []hyperliquid.Candle{{OpenTimeMs: int64(1_700_000_000_000 + i)}}
		reqs = append(reqs, Request{Asset: asset})
	}
	r, _ := newTestResolver(t, &fakeCandles{candles: candles})

	dates := r.ResolveAll(context.Background(), reqs)
	require.Len(t, dates, len(candles))
	for asset := range candles {
		require.NotNil(t, dates[asset], asset)
	}
}

func TestParseFallbackTruncatesPrecision(t *testing.T) {
	// 26-char truncation keeps microseconds and drops the rest.
	ts, ok := parseFallback("2024-03-15T08:30:00.123456789+00:00")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 30, 0, 123456000, time.UTC), ts)

	ts, ok = parseFallback("2024-03-15 08:30:00.5")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 30, 0, 500000000, time.UTC), ts)

	_, ok = parseFallback("yesterday")
	assert.False(t, ok)
}
