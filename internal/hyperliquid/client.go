package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jtlacci/hip3-dashboard/internal/metrics"
	"go.uber.org/zap"
)

const DefaultAPIURL = "https://api.hyperliquid.xyz/info"

// RequestError is returned for non-recoverable upstream HTTP statuses,
// including a final 429 once the retry budget is spent.
type RequestError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "...[truncated]"
	}
	return fmt.Sprintf("exchange API error: op=%s status=%d body=%s", e.Op, e.StatusCode, body)
}

// Client issues JSON POST requests against the exchange info endpoint.
// Every operation is a single JSON document of the form {"type": <op>, ...}.
type Client struct {
	apiURL      string
	httpClient  *http.Client
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
	retryBudget int
	baseDelay   time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithRetryBudget(n int) Option {
	return func(c *Client) { c.retryBudget = n }
}

func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func NewClient(apiURL string, logger *zap.SugaredLogger, opts ...Option) *Client {
	c := &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:      logger,
		retryBudget: 4,
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends one operation payload. Rate-limit responses are retried with an
// exponentially doubling delay up to the retry budget; any other non-2xx
// status fails immediately. Once the budget is spent, one final attempt is
// made with no rate-limit handling and its outcome propagates as-is.
func (c *Client) post(ctx context.Context, payload map[string]any) (json.RawMessage, error) {
	op, _ := payload["type"].(string)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}

	delay := c.baseDelay
	for attempt := 0; attempt < c.retryBudget; attempt++ {
		raw, status, err := c.do(ctx, op, body)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests {
			if c.metrics != nil {
				c.metrics.RecordRateLimitRetry(ctx, op)
			}
			c.logger.Debugw("Rate limited by upstream, backing off",
				"op", op,
				"attempt", attempt+1,
				"delay", delay,
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
			continue
		}
		if status < 200 || status >= 300 {
			return nil, &RequestError{Op: op, StatusCode: status, Body: string(raw)}
		}
		return raw, nil
	}

	// Last chance, no more catching.
	raw, status, err := c.do(ctx, op, body)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &RequestError{Op: op, StatusCode: status, Body: string(raw)}
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, op string, body []byte) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s response body: %w", op, err)
	}

	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(ctx, op, resp.StatusCode)
	}
	return data, resp.StatusCode, nil
}

// PerpDexs lists the builder-deployed perp DEXes. The upstream pads deleted
// slots with nulls; those are filtered out here.
func (c *Client) PerpDexs(ctx context.Context) ([]PerpDex, error) {
	raw, err := c.post(ctx, map[string]any{"type": "perpDexs"})
	if err != nil {
		return nil, err
	}

	var entries []*PerpDex
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode perpDexs response: %w", err)
	}

	dexes := make([]PerpDex, 0, len(entries))
	for _, d := range entries {
		if d != nil {
			dexes = append(dexes, *d)
		}
	}
	return dexes, nil
}

// MetaAndAssetCtxs fetches combined asset metadata and pricing contexts for
// one DEX. The two arrays in the response are positionally aligned.
func (c *Client) MetaAndAssetCtxs(ctx context.Context, dex string) (*MetaAndAssetCtxs, error) {
	raw, err := c.post(ctx, map[string]any{"type": "metaAndAssetCtxs", "dex": dex})
	if err != nil {
		return nil, err
	}

	var out MetaAndAssetCtxs
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode metaAndAssetCtxs response for %q: %w", dex, err)
	}
	return &out, nil
}

// CandleSnapshot returns historical candles for a coin over [startTimeMs, endTimeMs].
func (c *Client) CandleSnapshot(ctx context.Context, coin, interval string, startTimeMs, endTimeMs int64) ([]Candle, error) {
	raw, err := c.post(ctx, map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      coin,
			"interval":  interval,
			"startTime": startTimeMs,
			"endTime":   endTimeMs,
		},
	})
	if err != nil {
		return nil, err
	}

	var candles []Candle
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, fmt.Errorf("failed to decode candleSnapshot response for %q: %w", coin, err)
	}
	return candles, nil
}
