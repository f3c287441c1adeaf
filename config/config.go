package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chartfeed/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Chart selection
	Symbol     string
	AssetClass domain.AssetClass
	Timeframe  domain.Timeframe

	// Ingestion
	PollInterval   time.Duration // equity pull cadence, measured from request start
	RequestTimeout time.Duration // per-request deadline for pull cycles
	HistoryLimit   int           // candles fetched to seed the working set

	// Quote API (equities)
	QuoteBaseURL string
	QuoteAPIKey  string

	// Binance API (crypto; public market data needs no keys)
	BinanceAPIKey    string
	BinanceSecretKey string

	// Candle cache
	DBPath string

	// Session calendar. Empty means the built-in NYSE calendar.
	CalendarPath string

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	// Connection settings
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int

	// Reference line anchoring
	RefAnchorGap time.Duration // session gap beyond which the anchor flips to prior close
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Chart selection
	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}

	assetStr := strings.ToUpper(getEnv("ASSET_CLASS", string(domain.AssetCrypto)))
	switch domain.AssetClass(assetStr) {
	case domain.AssetCrypto, domain.AssetEquity:
		cfg.AssetClass = domain.AssetClass(assetStr)
	default:
		errs = append(errs, fmt.Sprintf("invalid ASSET_CLASS %q (want CRYPTO or EQUITY)", assetStr))
	}

	cfg.Timeframe, err = domain.ParseTimeframe(getEnv("TIMEFRAME", "1h"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEFRAME: %v", err))
	}

	// Ingestion
	pollSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 5)
	if pollSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollSeconds) * time.Second

	requestTimeoutSeconds := getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)
	if requestTimeoutSeconds <= 0 {
		errs = append(errs, "REQUEST_TIMEOUT_SECONDS must be positive")
	}
	cfg.RequestTimeout = time.Duration(requestTimeoutSeconds) * time.Second

	cfg.HistoryLimit, err = getEnvAsIntRequired("HISTORY_LIMIT", 300)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HISTORY_LIMIT: %v", err))
	} else if cfg.HistoryLimit <= 0 {
		errs = append(errs, "HISTORY_LIMIT must be positive")
	}

	// Quote API
	cfg.QuoteBaseURL = getEnv("QUOTE_BASE_URL", "https://finnhub.io/api/v1")
	cfg.QuoteAPIKey = getEnv("QUOTE_API_KEY", "")
	if cfg.AssetClass == domain.AssetEquity && cfg.QuoteAPIKey == "" {
		errs = append(errs, "QUOTE_API_KEY must be set for EQUITY symbols")
	}

	// Binance API (optional, market data endpoints are public)
	cfg.BinanceAPIKey = getEnv("BINANCE_API_KEY", "")
	cfg.BinanceSecretKey = getEnv("BINANCE_API_SECRET", "")

	// Candle cache
	cfg.DBPath = getEnv("DB_PATH", "./data/chartfeed.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Session calendar
	cfg.CalendarPath = getEnv("CALENDAR_PATH", "")

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")
	cfg.LogFile = getEnv("LOG_FILE", "")
	cfg.LogMaxSizeMB = getEnvAsInt("LOG_MAX_SIZE_MB", 50)
	cfg.LogMaxBackups = getEnvAsInt("LOG_MAX_BACKUPS", 3)

	// Connection settings
	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.MaxReconnectAttempts = getEnvAsInt("MAX_RECONNECT_ATTEMPTS", 10)
	if cfg.MaxReconnectAttempts < 0 {
		errs = append(errs, "MAX_RECONNECT_ATTEMPTS cannot be negative")
	}

	// Reference line anchoring
	anchorGapMinutes := getEnvAsInt("REF_ANCHOR_GAP_MINUTES", 120)
	if anchorGapMinutes < 0 {
		errs = append(errs, "REF_ANCHOR_GAP_MINUTES cannot be negative")
	}
	cfg.RefAnchorGap = time.Duration(anchorGapMinutes) * time.Minute

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
