package quoteclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartfeed/internal/domain"
	"chartfeed/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Logger:  &mockLogger{},
		Timeout: time.Second,
	})
	require.NoError(t, err)
	return client, srv
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{BaseURL: "http://example.com"})
	require.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = New(Config{Logger: &mockLogger{}})
	require.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestFetchQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Write([]byte(`{"c":189.5,"h":191.2,"l":188.1,"o":190.0,"pc":188.9,"t":1700000000}`))
	})

	raw, err := client.FetchQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	// The snapshot's day-level O/H/L are deliberately not forwarded: they
	// must not widen an intraday bucket.
	assert.Equal(t, int64(1700000000), raw.Time)
	assert.Equal(t, 189.5, raw.Close)
	assert.Nil(t, raw.Open)
	assert.Nil(t, raw.High)
	assert.Nil(t, raw.Low)
	assert.Equal(t, 0.0, raw.Volume)
}

func TestFetchQuoteEmptyResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"c":0,"t":0}`))
	})

	_, err := client.FetchQuote(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestFetchQuoteRateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrRateLimited)
}

func TestFetchQuoteServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestFetchQuoteTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.FetchQuote(ctx, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrTimeout)
}

func TestFetchHistory(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock/candle", r.URL.Path)
		assert.Equal(t, "60", r.URL.Query().Get("resolution"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))
		w.Write([]byte(`{
			"s":"ok",
			"t":[1700000000,1700003600],
			"o":[100,101],
			"h":[102,103],
			"l":[99,100],
			"c":[101,102],
			"v":[1000,1200]
		}`))
	})

	candles, err := client.FetchHistory(context.Background(), "AAPL", domain.TF1h, 2)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, int64(1700000000000), candles[0].BucketStart)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 103.0, candles[1].High)
	assert.Equal(t, 1200.0, candles[1].Volume)
}

func TestFetchHistoryNoData(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"no_data"}`))
	})

	_, err := client.FetchHistory(context.Background(), "AAPL", domain.TF1h, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrSourceUnavailable)
}

func TestFetchHistoryMismatchedColumns(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"ok","t":[1700000000,1700003600],"o":[100],"h":[102],"l":[99],"c":[101]}`))
	})

	_, err := client.FetchHistory(context.Background(), "AAPL", domain.TF1h, 10)
	require.Error(t, err)
}

func TestFetchHistoryMissingVolumeDefaultsToZero(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"ok","t":[1700000000],"o":[100],"h":[102],"l":[99],"c":[101]}`))
	})

	candles, err := client.FetchHistory(context.Background(), "AAPL", domain.TF1h, 10)
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 0.0, candles[0].Volume)
}
