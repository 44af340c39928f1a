package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"time"

	"cryptoSignalBot/config"
	"cryptoSignalBot/internal/adapters/binanceclient"
	"cryptoSignalBot/internal/adapters/logger"
	"cryptoSignalBot/internal/adapters/sentimenthttp"
	"cryptoSignalBot/internal/adapters/sqlite"
	"cryptoSignalBot/internal/adapters/telegram"
	"cryptoSignalBot/internal/app"
	"cryptoSignalBot/internal/domain"
	"cryptoSignalBot/internal/execution"
	"cryptoSignalBot/internal/risk"
	"cryptoSignalBot/internal/signal"
	"cryptoSignalBot/internal/strategy"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()
	appLogger.Info(context.Background(), "Database repository initialized")

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger,
		RequestsPerSecond: cfg.Trading.Execution.RequestsPerSecond,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	// 5. Initialize Sentiment Provider
	sentimentClient, err := sentimenthttp.New(sentimenthttp.Config{
		BaseURL: cfg.SentimentURL,
		Timeout: cfg.SentimentTimeout,
		Logger:  appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize sentiment client")
		log.Fatalf("FATAL: Failed to initialize sentiment client: %v", err)
	}

	// 6. Initialize Signal Source
	source, err := signal.NewMarketSource(signal.Config{
		Exchange:  binanceClient,
		Sentiment: sentimentClient,
		Logger:    appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize signal source")
		log.Fatalf("FATAL: Failed to initialize signal source: %v", err)
	}

	// 7. Initialize Strategy Evaluator
	evaluator, err := strategy.New(strategy.Config{
		DefaultThresholds: cfg.Trading.DefaultThresholds,
		Scorer:            strategy.BlendedScorer(cfg.Trading.MomentumWeight),
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize strategy evaluator")
		log.Fatalf("FATAL: Failed to initialize strategy evaluator: %v", err)
	}
	appLogger.Info(context.Background(), "Strategy evaluator initialized")

	// 8. Initialize Risk Manager
	sizer, err := risk.NewFactorSizer(cfg.Trading.BaseQuantity, cfg.Trading.RiskFactors)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize position sizer")
		log.Fatalf("FATAL: Failed to initialize position sizer: %v", err)
	}
	riskManager, err := risk.NewManager(risk.Config{
		MaxPositions: cfg.Trading.MaxPositions,
		Symbols:      cfg.Trading.Symbols,
		Sizer:        sizer,
		Repo:         repo,
		Logger:       appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize risk manager")
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}
	appLogger.Info(context.Background(), "Risk manager initialized")

	// 9. Initialize Notifier (Telegram Adapter)
	notifier, err := telegram.New(telegram.Config{
		Token:  cfg.TelegramToken,
		ChatID: cfg.TelegramChatID,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Telegram notifier")
		log.Fatalf("FATAL: Failed to initialize Telegram notifier: %v", err)
	}
	appLogger.Info(context.Background(), "Telegram notifier initialized")

	// 10. Initialize Execution Client with circuit breaker
	breaker := execution.NewCircuitBreaker(cfg.Trading.Execution.FailureThreshold, cfg.Trading.Execution.Cooldown)
	breaker.OnStateChange = func(from, to execution.CircuitState) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLogger.Warn(ctx, "Circuit breaker state changed", map[string]interface{}{"from": from, "to": to})
		if to == execution.CircuitOpen {
			if err := notifier.Notify(ctx, domain.Event{Kind: domain.EventCircuitTripped, Time: time.Now().UTC()}); err != nil {
				appLogger.Warn(ctx, "Could not deliver circuit breaker notification", map[string]interface{}{"error": err.Error()})
			}
		}
	}
	executor, err := execution.NewClient(execution.Config{
		Exchange: binanceClient,
		Breaker:  breaker,
		Logger:   appLogger,
		Policy: execution.RetryPolicy{
			MaxAttempts: cfg.Trading.Execution.MaxAttempts,
			BackoffMin:  cfg.Trading.Execution.BackoffMin,
			BackoffMax:  cfg.Trading.Execution.BackoffMax,
		},
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize execution client")
		log.Fatalf("FATAL: Failed to initialize execution client: %v", err)
	}
	appLogger.Info(context.Background(), "Execution client initialized")

	// 11. Initialize Application Service
	tradingService, err := app.NewTradingService(app.Config{
		Cfg:       cfg,
		Logger:    appLogger,
		Exchange:  binanceClient,
		Source:    source,
		Evaluator: evaluator,
		Risk:      riskManager,
		Executor:  executor,
		Notifier:  notifier,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	// 12. Start the Service
	// Use context.Background() as the base context for the application run
	if err := tradingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}
