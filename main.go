package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"chartfeed/config"
	"chartfeed/internal/adapters/binanceclient"
	"chartfeed/internal/adapters/logger"
	"chartfeed/internal/adapters/quoteclient"
	"chartfeed/internal/adapters/sqlite"
	"chartfeed/internal/app"
	"chartfeed/internal/domain"
	"chartfeed/internal/marketcal"
	"chartfeed/internal/ports"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	// 3. Initialize Session Calendar
	calCfg := marketcal.DefaultNYSE()
	if cfg.CalendarPath != "" {
		calCfg, err = marketcal.LoadConfig(cfg.CalendarPath)
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to load calendar config")
			log.Fatalf("FATAL: Failed to load calendar config: %v", err)
		}
	}
	cal, err := marketcal.New(calCfg)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize session calendar")
		log.Fatalf("FATAL: Failed to initialize session calendar: %v", err)
	}
	appLogger.Info(context.Background(), "Session calendar initialized", map[string]interface{}{"zone": cal.Location().String()})

	// 4. Initialize Candle Cache (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize candle cache")
		log.Fatalf("FATAL: Failed to initialize candle cache: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing candle cache")
		}
	}()

	// 5. Initialize Tick Source Adapters
	var (
		stream  ports.StreamSource
		quotes  ports.QuoteSource
		history ports.HistorySource
	)
	switch cfg.AssetClass {
	case domain.AssetCrypto:
		binanceClient, err := binanceclient.New(binanceclient.Config{
			APIKey:               cfg.BinanceAPIKey,
			SecretKey:            cfg.BinanceSecretKey,
			Logger:               appLogger,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
			log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
		}
		stream = binanceClient
		history = binanceClient
		appLogger.Info(context.Background(), "Binance client initialized")
	case domain.AssetEquity:
		quoteClient, err := quoteclient.New(quoteclient.Config{
			BaseURL: cfg.QuoteBaseURL,
			Token:   cfg.QuoteAPIKey,
			Logger:  appLogger,
			Timeout: cfg.RequestTimeout,
		})
		if err != nil {
			appLogger.Error(context.Background(), err, "FATAL: Failed to initialize quote client")
			log.Fatalf("FATAL: Failed to initialize quote client: %v", err)
		}
		quotes = quoteClient
		history = quoteClient
		appLogger.Info(context.Background(), "Quote client initialized")
	}

	// 6. Initialize Application Service
	chartService, err := app.NewChartService(cfg, appLogger, cal, stream, quotes, history, repo)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize chart service")
		log.Fatalf("FATAL: Failed to initialize chart service: %v", err)
	}

	// 7. Run the Service
	if err := chartService.Run(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Chart service exited with error")
		log.Fatalf("FATAL: Chart service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
