// Package quoteclient implements the equity tick sources: polled HTTP quote
// snapshots (last price only) and historical candle fetches against a
// Finnhub-shaped JSON API. Retry and endpoint rotation are the networking
// collaborator's concern; a failed request here is one skipped poll cycle.
package quoteclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"chartfeed/internal/domain"
	"chartfeed/internal/ports"
)

// resolutions maps chart timeframes onto API candle resolutions. Timeframes
// without a native resolution fetch the nearest finer one; the caller
// re-buckets via batch aggregation.
var resolutions = map[domain.Timeframe]string{
	domain.TF1m:  "1",
	domain.TF5m:  "5",
	domain.TF15m: "15",
	domain.TF30m: "30",
	domain.TF1h:  "60",
	domain.TF4h:  "60",
	domain.TF1d:  "D",
	domain.TF1w:  "W",
	domain.TF1M:  "M",
	domain.TF3M:  "M",
	domain.TF1y:  "M",
}

// Client implements ports.QuoteSource and ports.HistorySource for equities.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  ports.Logger
}

// Config holds configuration for the quote API adapter.
type Config struct {
	BaseURL string // e.g. "https://finnhub.io/api/v1"
	Token   string
	Logger  ports.Logger
	// Timeout is the transport-level ceiling; per-request deadlines come from
	// the caller's context.
	Timeout time.Duration
}

// New creates a new quote API adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for quote client", ports.ErrConfigurationError)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: quote API base URL is required", ports.ErrConfigurationError)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  cfg.Logger,
	}, nil
}

// quotePayload is the /quote response shape.
type quotePayload struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
	Time      int64   `json:"t"` // seconds epoch
}

// candlePayload is the /stock/candle response shape (column-oriented).
type candlePayload struct {
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
	Time   []int64   `json:"t"` // seconds epoch
	Status string    `json:"s"`
}

// FetchQuote performs one pull cycle: at most one last-price tick. The quote
// endpoint supplies no per-tick trade volume, so the raw tick carries only
// time and close; day-level open/high/low from the snapshot must not widen an
// intraday bucket.
func (c *Client) FetchQuote(ctx context.Context, symbol string) (domain.RawTick, error) {
	op := "FetchQuote"
	var payload quotePayload
	params := url.Values{"symbol": {symbol}}
	if err := c.get(ctx, "/quote", params, &payload); err != nil {
		return domain.RawTick{}, c.handleError(ctx, err, op)
	}
	if payload.Current <= 0 || payload.Time <= 0 {
		return domain.RawTick{}, c.handleError(ctx, fmt.Errorf("empty quote for symbol %s", symbol), op)
	}
	return domain.RawTick{
		Time:  payload.Time,
		Close: payload.Current,
	}, nil
}

// FetchHistory retrieves up to limit historical candles ascending by time.
func (c *Client) FetchHistory(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	op := "FetchHistory"
	resolution, ok := resolutions[tf]
	if !ok {
		return nil, fmt.Errorf("%w: no candle resolution for timeframe %q", ports.ErrInvalidRequest, tf)
	}

	to := time.Now()
	from := to.Add(-time.Duration(limit) * tf.Duration())
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {fmt.Sprintf("%d", from.Unix())},
		"to":         {fmt.Sprintf("%d", to.Unix())},
	}

	var payload candlePayload
	if err := c.get(ctx, "/stock/candle", params, &payload); err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	if payload.Status != "ok" {
		return nil, c.handleError(ctx, fmt.Errorf("candle response status %q for symbol %s", payload.Status, symbol), op)
	}

	n := len(payload.Time)
	if len(payload.Open) != n || len(payload.High) != n || len(payload.Low) != n || len(payload.Close) != n {
		return nil, c.handleError(ctx, errors.New("mismatched candle column lengths"), op)
	}

	candles := make([]domain.Candle, 0, n)
	for i := 0; i < n; i++ {
		volume := 0.0
		if i < len(payload.Volume) {
			volume = payload.Volume[i]
		}
		candles = append(candles, domain.Candle{
			BucketStart: payload.Time[i] * 1000,
			Open:        payload.Open[i],
			High:        payload.High[i],
			Low:         payload.Low[i],
			Close:       payload.Close[i],
			Volume:      volume,
		})
	}
	return candles, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.token != "" {
		params.Set("token", c.token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP 429", ports.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// handleError wraps transport failures in standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case errors.Is(err, ports.ErrRateLimited):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrSourceUnavailable, err)
	}

	c.logger.Warn(ctx, operation+" failed", fields)
	return finalErr
}
