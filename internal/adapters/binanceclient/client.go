// Package binanceclient implements the crypto tick sources (push kline
// stream and historical candle fetch) on the go-binance library.
package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"chartfeed/internal/domain"
	"chartfeed/internal/ports"
)

// nativeIntervals maps chart timeframes onto Binance kline intervals. The
// multi-month timeframes have no native interval; their pipelines subscribe
// the fallback stream and re-bucket history from monthly candles.
var nativeIntervals = map[domain.Timeframe]string{
	domain.TF1m:  "1m",
	domain.TF5m:  "5m",
	domain.TF15m: "15m",
	domain.TF30m: "30m",
	domain.TF1h:  "1h",
	domain.TF4h:  "4h",
	domain.TF1d:  "1d",
	domain.TF1w:  "1w",
	domain.TF1M:  "1M",
}

const (
	fallbackStreamInterval  = "1m"
	fallbackHistoryInterval = "1M"
)

// Client implements ports.StreamSource and ports.HistorySource for crypto
// symbols using Binance spot market data.
type Client struct {
	spot                 *binance.Client
	logger               ports.Logger
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

// Config holds configuration specific to the Binance adapter. API keys are
// optional: market data endpoints are public.
type Config struct {
	APIKey               string
	SecretKey            string
	Logger               ports.Logger
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
}

// New creates a new Binance market-data adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%w: logger is required for Binance client", ports.ErrConfigurationError)
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	return &Client{
		spot:                 binance.NewClient(cfg.APIKey, cfg.SecretKey),
		logger:               cfg.Logger,
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		var mappedErr error
		switch apiErr.Code {
		case -1003:
			mappedErr = ports.ErrRateLimited
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1120, -1121:
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrSourceUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	var finalErr error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		finalErr = fmt.Errorf("%s canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrSourceUnavailable, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// StreamTicks subscribes a kline WebSocket stream for the symbol and delivers
// normalizer-ready raw ticks to the handler. When the timeframe has a native
// Binance interval, each event carries the running OHLC aggregate of the
// chart bucket; otherwise the stream falls back to 1m klines downgraded to
// last-price ticks so the engine's conservative merge does the bucketing.
func (c *Client) StreamTicks(ctx context.Context, symbol string, tf domain.Timeframe, handler func(raw domain.RawTick), errHandler func(err error)) (doneCh chan struct{}, stopCh chan struct{}, err error) {
	op := "StreamTicks"
	wsCtx, cancelWs := context.WithCancel(ctx)

	streamInterval, native := nativeIntervals[tf]
	if !native {
		streamInterval = fallbackStreamInterval
	}

	binanceHandler := func(event *binance.WsKlineEvent) {
		raw, err := translateWsKline(event, native)
		if err != nil {
			c.logger.Error(wsCtx, err, op+": failed to translate WebSocket kline event")
			return
		}
		handler(raw)
	}
	binanceErrHandler := func(err error) {
		errHandler(c.handleError(wsCtx, err, op+" WebSocket"))
	}

	// Reconnection loop: resubscribe with exponential delay until the context
	// is cancelled or attempts are exhausted.
	go func() {
		defer cancelWs()

		attempt := 0
		for {
			select {
			case <-wsCtx.Done():
				return
			default:
			}

			c.logger.Info(wsCtx, op+": connecting WebSocket", map[string]interface{}{
				"symbol":   symbol,
				"interval": streamInterval,
				"attempt":  attempt + 1,
			})
			innerDoneCh, innerStopCh, connectErr := binance.WsKlineServe(symbol, streamInterval, binanceHandler, binanceErrHandler)
			if connectErr != nil {
				c.handleError(wsCtx, connectErr, op+" connection attempt")
				attempt++
				if attempt >= c.maxReconnectAttempts {
					c.logger.Error(wsCtx, connectErr, op+": max reconnection attempts exceeded, giving up", map[string]interface{}{
						"symbol":      symbol,
						"maxAttempts": c.maxReconnectAttempts,
					})
					return
				}
				delay := c.reconnectDelay * time.Duration(1<<uint(attempt-1))
				select {
				case <-time.After(delay):
					continue
				case <-wsCtx.Done():
					return
				}
			}

			c.logger.Info(wsCtx, op+": WebSocket connected", map[string]interface{}{"symbol": symbol, "interval": streamInterval})
			attempt = 0

			select {
			case <-innerDoneCh:
				c.logger.Warn(wsCtx, op+": WebSocket closed unexpectedly, reconnecting", map[string]interface{}{"symbol": symbol})
			case <-wsCtx.Done():
				select {
				case innerStopCh <- struct{}{}:
				default:
				}
				return
			}
		}
	}()

	doneCh = make(chan struct{})
	stopCh = make(chan struct{})

	go func() {
		select {
		case <-stopCh:
			cancelWs()
		case <-wsCtx.Done():
		}
	}()
	go func() {
		<-wsCtx.Done()
		close(doneCh)
	}()

	return doneCh, stopCh, nil
}

// FetchHistory retrieves historical candles for the symbol. Timeframes
// without a native interval return monthly candles for the caller to
// re-bucket via batch aggregation.
func (c *Client) FetchHistory(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	op := "FetchHistory"
	fetchInterval, native := nativeIntervals[tf]
	if !native {
		fetchInterval = fallbackHistoryInterval
	}

	klines, err := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval(fetchInterval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := translateKline(k)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("translating historical kline: %w", err), op)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// --- Translation Helpers ---

func translateWsKline(event *binance.WsKlineEvent, native bool) (domain.RawTick, error) {
	if event == nil {
		return domain.RawTick{}, errors.New("received nil kline event")
	}
	k := event.Kline
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.RawTick{}, fmt.Errorf("parsing close price %q: %w", k.Close, err)
	}
	if !native {
		// Sub-bucket kline: only the last price is safe to merge.
		return domain.RawTick{Time: event.Time, Close: cls}, nil
	}

	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.RawTick{}, fmt.Errorf("parsing open price %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.RawTick{}, fmt.Errorf("parsing high price %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.RawTick{}, fmt.Errorf("parsing low price %q: %w", k.Low, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return domain.RawTick{}, fmt.Errorf("parsing volume %q: %w", k.Volume, err)
	}

	return domain.RawTick{
		Time:   k.StartTime,
		Open:   &open,
		High:   &high,
		Low:    &low,
		Close:  cls,
		Volume: vol,
	}, nil
}

func translateKline(k *binance.Kline) (domain.Candle, error) {
	if k == nil {
		return domain.Candle{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open price %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high price %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low price %q: %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close price %q: %w", k.Close, err)
	}
	vol, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing volume %q: %w", k.Volume, err)
	}

	return domain.Candle{
		BucketStart: k.OpenTime,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       cls,
		Volume:      vol,
	}, nil
}
