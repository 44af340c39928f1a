package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cryptoSignalBot/internal/adapters/logger" // Import the logger package for LogLevel
	"cryptoSignalBot/internal/domain"
)

// Config holds all application configuration. It is loaded once at startup,
// validated, and passed explicitly to every component; nothing reads the
// environment after this point.
type Config struct {
	// Exchange API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Telegram notifications
	TelegramToken  string
	TelegramChatID int64

	// Sentiment score service
	SentimentURL     string
	SentimentTimeout time.Duration

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Trading surface, loaded from the YAML config file
	Trading TradingConfig
}

// TradingConfig is the validated trading surface: symbols, thresholds,
// limits, and pipeline timing.
type TradingConfig struct {
	Symbols           []domain.SymbolConfig
	DefaultThresholds domain.Thresholds
	MaxPositions      int
	BaseQuantity      float64
	RiskFactors       map[domain.RiskLevel]float64
	CycleInterval     time.Duration
	MaxConcurrent     int
	MomentumWeight    float64
	Execution         ExecutionConfig
}

// ExecutionConfig holds the retry and circuit-breaker parameters of the
// execution client.
type ExecutionConfig struct {
	MaxAttempts       int
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	FailureThreshold  int
	Cooldown          time.Duration
	RequestsPerSecond float64
}

// --- YAML file shape ---

type yamlThresholds struct {
	Buy  float64 `yaml:"buy"`
	Sell float64 `yaml:"sell"`
}

type yamlSymbol struct {
	Name      string `yaml:"name"`
	RiskLevel string `yaml:"risk_level"`
	Enabled   bool   `yaml:"enabled"`
}

type yamlFile struct {
	Trading struct {
		Symbols              []yamlSymbol       `yaml:"symbols"`
		MaxPositions         int                `yaml:"max_positions"`
		BaseQuantity         float64            `yaml:"base_quantity"`
		RiskFactors          map[string]float64 `yaml:"risk_factors"`
		CycleIntervalSeconds int                `yaml:"cycle_interval_seconds"`
		MaxConcurrent        int                `yaml:"max_concurrent"`
	} `yaml:"trading"`
	Strategy struct {
		Thresholds     map[string]yamlThresholds `yaml:"thresholds"`
		MomentumWeight float64                   `yaml:"momentum_weight"`
	} `yaml:"strategy"`
	Execution struct {
		MaxAttempts       int     `yaml:"max_attempts"`
		BackoffMinMs      int     `yaml:"backoff_min_ms"`
		BackoffMaxMs      int     `yaml:"backoff_max_ms"`
		FailureThreshold  int     `yaml:"failure_threshold"`
		CooldownSeconds   int     `yaml:"cooldown_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"execution"`
}

// LoadConfig loads configuration from environment variables (.env file) and
// the YAML trading config referenced by CONFIG_PATH.
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Exchange API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Telegram
	cfg.TelegramToken = getEnv("TELEGRAM_TOKEN", "")
	if cfg.TelegramToken == "" {
		errs = append(errs, "TELEGRAM_TOKEN must be set")
	}
	chatID, err := getEnvAsInt64Required("TELEGRAM_CHAT_ID", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
	} else if chatID == 0 {
		errs = append(errs, "TELEGRAM_CHAT_ID must be set")
	}
	cfg.TelegramChatID = chatID

	// Sentiment service
	cfg.SentimentURL = getEnv("SENTIMENT_URL", "")
	if cfg.SentimentURL == "" {
		errs = append(errs, "SENTIMENT_URL must be set")
	}
	sentimentTimeoutSeconds := getEnvAsInt("SENTIMENT_TIMEOUT_SECONDS", 5)
	if sentimentTimeoutSeconds <= 0 {
		errs = append(errs, "SENTIMENT_TIMEOUT_SECONDS must be positive")
	}
	cfg.SentimentTimeout = time.Duration(sentimentTimeoutSeconds) * time.Second

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/trading_bot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Trading surface
	configPath := getEnv("CONFIG_PATH", "./config.yaml")
	trading, tradingErrs := loadTradingConfig(configPath)
	errs = append(errs, tradingErrs...)
	if trading != nil {
		cfg.Trading = *trading
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// loadTradingConfig parses and validates the YAML trading config. All
// problems are reported together so a broken file surfaces every mistake in
// one run.
func loadTradingConfig(path string) (*TradingConfig, []string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, []string{fmt.Sprintf("cannot read trading config '%s': %v", path, err)}
	}

	var file yamlFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, []string{fmt.Sprintf("cannot parse trading config '%s': %v", path, err)}
	}

	var errs []string
	tc := &TradingConfig{}

	// Default thresholds are required; per-symbol entries override them.
	defaults, haveDefaults := file.Strategy.Thresholds["default"]
	if !haveDefaults {
		errs = append(errs, "strategy.thresholds.default must be set")
	} else if msg := validateThresholds("default", defaults); msg != "" {
		errs = append(errs, msg)
	}
	tc.DefaultThresholds = domain.Thresholds{Buy: defaults.Buy, Sell: defaults.Sell}

	if len(file.Trading.Symbols) == 0 {
		errs = append(errs, "trading.symbols must list at least one symbol")
	}

	known := make(map[string]bool, len(file.Trading.Symbols))
	for _, ys := range file.Trading.Symbols {
		if ys.Name == "" {
			errs = append(errs, "trading.symbols entries must have a name")
			continue
		}
		if known[ys.Name] {
			errs = append(errs, fmt.Sprintf("symbol %s listed more than once", ys.Name))
			continue
		}
		known[ys.Name] = true

		level := domain.RiskLevel(ys.RiskLevel)
		if !level.IsValid() {
			errs = append(errs, fmt.Sprintf("symbol %s has unknown risk_level '%s'", ys.Name, ys.RiskLevel))
		}

		th := tc.DefaultThresholds
		if override, ok := file.Strategy.Thresholds[ys.Name]; ok {
			if msg := validateThresholds(ys.Name, override); msg != "" {
				errs = append(errs, msg)
			}
			th = domain.Thresholds{Buy: override.Buy, Sell: override.Sell}
		}

		tc.Symbols = append(tc.Symbols, domain.SymbolConfig{
			Symbol:     ys.Name,
			RiskLevel:  level,
			Enabled:    ys.Enabled,
			Thresholds: th,
		})
	}

	// Threshold entries for symbols that aren't traded are a configuration
	// mistake, not a silent default.
	for name := range file.Strategy.Thresholds {
		if name != "default" && !known[name] {
			errs = append(errs, fmt.Sprintf("strategy.thresholds has entry for unknown symbol %s", name))
		}
	}

	tc.MaxPositions = file.Trading.MaxPositions
	if tc.MaxPositions <= 0 {
		errs = append(errs, "trading.max_positions must be positive")
	}

	tc.BaseQuantity = file.Trading.BaseQuantity
	if tc.BaseQuantity <= 0 {
		errs = append(errs, "trading.base_quantity must be positive")
	}

	tc.RiskFactors = make(map[domain.RiskLevel]float64, len(file.Trading.RiskFactors))
	for name, factor := range file.Trading.RiskFactors {
		level := domain.RiskLevel(name)
		if !level.IsValid() {
			errs = append(errs, fmt.Sprintf("trading.risk_factors has unknown risk level '%s'", name))
			continue
		}
		if factor <= 0 {
			errs = append(errs, fmt.Sprintf("trading.risk_factors.%s must be positive", name))
		}
		tc.RiskFactors[level] = factor
	}

	if file.Trading.CycleIntervalSeconds <= 0 {
		errs = append(errs, "trading.cycle_interval_seconds must be positive")
	}
	tc.CycleInterval = time.Duration(file.Trading.CycleIntervalSeconds) * time.Second

	tc.MaxConcurrent = file.Trading.MaxConcurrent
	if tc.MaxConcurrent <= 0 {
		tc.MaxConcurrent = 4 // Sensible default for a handful of symbols
	}

	tc.MomentumWeight = file.Strategy.MomentumWeight
	if tc.MomentumWeight < 0 || tc.MomentumWeight > 1 {
		errs = append(errs, "strategy.momentum_weight must be within [0,1]")
	}

	// Execution parameters
	ex := &tc.Execution
	ex.MaxAttempts = file.Execution.MaxAttempts
	if ex.MaxAttempts <= 0 {
		errs = append(errs, "execution.max_attempts must be positive")
	}
	if file.Execution.BackoffMinMs <= 0 {
		errs = append(errs, "execution.backoff_min_ms must be positive")
	}
	ex.BackoffMin = time.Duration(file.Execution.BackoffMinMs) * time.Millisecond
	if file.Execution.BackoffMaxMs < file.Execution.BackoffMinMs {
		errs = append(errs, "execution.backoff_max_ms must be >= execution.backoff_min_ms")
	}
	ex.BackoffMax = time.Duration(file.Execution.BackoffMaxMs) * time.Millisecond
	ex.FailureThreshold = file.Execution.FailureThreshold
	if ex.FailureThreshold <= 0 {
		errs = append(errs, "execution.failure_threshold must be positive")
	}
	if file.Execution.CooldownSeconds <= 0 {
		errs = append(errs, "execution.cooldown_seconds must be positive")
	}
	ex.Cooldown = time.Duration(file.Execution.CooldownSeconds) * time.Second
	ex.RequestsPerSecond = file.Execution.RequestsPerSecond
	if ex.RequestsPerSecond <= 0 {
		ex.RequestsPerSecond = 5 // Conservative default well under exchange limits
	}

	return tc, errs
}

func validateThresholds(name string, th yamlThresholds) string {
	if th.Buy < 0 || th.Buy > 1 || th.Sell < 0 || th.Sell > 1 {
		return fmt.Sprintf("thresholds for %s must be within [0,1]", name)
	}
	if th.Buy <= th.Sell {
		return fmt.Sprintf("buy threshold for %s must be greater than sell threshold", name)
	}
	return ""
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

func getEnvAsInt64Required(key string, defaultValue int64) (int64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
