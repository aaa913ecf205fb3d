package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, zap.NewNop().Sugar(),
		WithRetryBaseDelay(time.Millisecond),
	)
	return c, srv
}

func TestPostRetriesRateLimitThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	})

	dexes, err := c.PerpDexs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dexes)
	assert.Equal(t, int64(3), calls.Load())
}

func TestPostNonRateLimitErrorFailsImmediately(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`upstream exploded`))
	})

	_, err := c.PerpDexs(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "perpDexs", reqErr.Op)
	assert.Equal(t, http.StatusInternalServerError, reqErr.StatusCode)
	assert.Contains(t, reqErr.Body, "upstream exploded")
}

func TestPostExhaustedBudgetMakesOneFinalAttempt(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.PerpDexs(context.Background())
	require.Error(t, err)

	// Four budgeted attempts plus the unguarded final one.
	assert.Equal(t, int64(5), calls.Load())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusTooManyRequests, reqErr.StatusCode)
}

func TestPostFinalAttemptCanSucceed(t *testing.T) {
	var calls atomic.Int64
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 4 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	})

	dexes, err := c.PerpDexs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dexes)
	assert.Equal(t, int64(5), calls.Load())
}

func TestPostCancelledContextAbortsBackoff(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c.baseDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.PerpDexs(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPerpDexsFiltersNullEntries(t *testing.T) {
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[null, {"name": "vntls", "fullName": "Ventuals", "deployer": "0xabc"}, null]`))
	})

	dexes, err := c.PerpDexs(context.Background())
	require.NoError(t, err)
	require.Len(t, dexes, 1)
	assert.Equal(t, "vntls", dexes[0].Name)
	assert.Equal(t, "Ventuals", dexes[0].FullName)
}

func TestMetaAndAssetCtxsSendsDex(t *testing.T) {
	var gotPayload map[string]any
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`[{"universe": [{"name": "vntls:SPACEX", "maxLeverage": 3}]}, [{"markPx": "100.5"}]]`))
	})

	out, err := c.MetaAndAssetCtxs(context.Background(), "vntls")
	require.NoError(t, err)

	assert.Equal(t, "metaAndAssetCtxs", gotPayload["type"])
	assert.Equal(t, "vntls", gotPayload["dex"])

	require.Len(t, out.Universe, 1)
	assert.Equal(t, "vntls:SPACEX", out.Universe[0].Name)
	require.NotNil(t, out.Universe[0].MaxLeverage)
	assert.Equal(t, int64(3), *out.Universe[0].MaxLeverage)

	require.Len(t, out.AssetCtxs, 1)
	assert.Equal(t, "100.5", out.AssetCtxs[0].MarkPx)
}

func TestCandleSnapshotPayloadShape(t *testing.T) {
	var gotPayload map[string]any
	c, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`[{"t": 1700000000000, "T": 1700003600000, "s": "vntls:SPACEX", "i": "1h", "o": "1", "c": "2", "h": "3", "l": "0.5", "v": "10", "n": 42}]`))
	})

	candles, err := c.CandleSnapshot(context.Background(), "vntls:SPACEX", "1h", 0, 9_999_999_999_999)
	require.NoError(t, err)

	assert.Equal(t, "candleSnapshot", gotPayload["type"])
	req := gotPayload["req"].(map[string]any)
	assert.Equal(t, "vntls:SPACEX", req["coin"])
	assert.Equal(t, "1h", req["interval"])

	require.Len(t, candles, 1)
	assert.Equal(t, int64(1700000000000), candles[0].OpenTimeMs)
	assert.Equal(t, int64(42), candles[0].Trades)
}

func TestRequestErrorTruncatesLongBody(t *testing.T) {
	err := &RequestError{
		Op:         "perpDexs",
		StatusCode: 502,
		Body:       strings.Repeat("x", 500),
	}
	msg := err.Error()
	assert.Contains(t, msg, "[truncated]")
	assert.Less(t, len(msg), 300)
}
