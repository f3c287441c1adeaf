package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"chartfeed/config"
	"chartfeed/internal/adapters/binanceclient"
	"chartfeed/internal/adapters/logger"
	"chartfeed/internal/adapters/quoteclient"
	"chartfeed/internal/adapters/sqlite"
	"chartfeed/internal/domain"
	"chartfeed/internal/ports"
	"chartfeed/internal/utils"
)

// backfill fetches candle history for the configured symbol and stores it in
// the local cache, optionally exporting a CSV copy.
func main() {
	csvPath := flag.String("csv", "", "also export the fetched candles to this CSV file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{Level: cfg.LogLevel})
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize History Source
	var history ports.HistorySource
	switch cfg.AssetClass {
	case domain.AssetCrypto:
		history, err = binanceclient.New(binanceclient.Config{
			APIKey:               cfg.BinanceAPIKey,
			SecretKey:            cfg.BinanceSecretKey,
			Logger:               appLogger,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
	case domain.AssetEquity:
		history, err = quoteclient.New(quoteclient.Config{
			BaseURL: cfg.QuoteBaseURL,
			Token:   cfg.QuoteAPIKey,
			Logger:  appLogger,
			Timeout: cfg.RequestTimeout,
		})
	}
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize history source")
		log.Fatalf("FATAL: Failed to initialize history source: %v", err)
	}

	// 4. Initialize Candle Cache
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize candle cache")
		log.Fatalf("FATAL: Failed to initialize candle cache: %v", err)
	}
	defer repo.Close()

	// 5. Fetch and Store
	ctx := context.Background()
	fmt.Printf("Fetching %d %s candles for %s...\n", cfg.HistoryLimit, cfg.Timeframe, cfg.Symbol)
	candles, err := history.FetchHistory(ctx, cfg.Symbol, cfg.Timeframe, cfg.HistoryLimit)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching history")
		log.Fatalf("Error fetching history: %v", err)
	}
	appLogger.Info(ctx, "Fetched candles", map[string]interface{}{"count": len(candles)})

	if err := repo.UpsertCandles(ctx, cfg.Symbol, cfg.Timeframe, candles); err != nil {
		appLogger.Error(ctx, err, "Error caching candles")
		log.Fatalf("Error caching candles: %v", err)
	}
	appLogger.Info(ctx, "Cached candles", map[string]interface{}{"db": cfg.DBPath})

	if *csvPath != "" {
		if err := utils.WriteCandlesToCSV(cfg.Symbol, cfg.Timeframe, candles, *csvPath); err != nil {
			appLogger.Error(ctx, err, "Error writing CSV")
			log.Fatalf("Error writing CSV: %v", err)
		}
		appLogger.Info(ctx, "Saved CSV export", map[string]interface{}{"filename": *csvPath})
	}
}
