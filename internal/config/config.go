// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Arbitrage  ArbitrageConfig  `mapstructure:"arbitrage"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	TUIMode     bool   `mapstructure:"-"` // set at runtime, not from config file
}

// VenueConfig describes one exchange connection.
type VenueConfig struct {
	Name           string        `mapstructure:"name"`
	WebSocketURL   string        `mapstructure:"websocket_url"`
	RESTBaseURL    string        `mapstructure:"rest_base_url"`
	Symbols        []string      `mapstructure:"symbols"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	StaleTimeout   time.Duration `mapstructure:"stale_timeout"`
	TakerFeeBps    float64       `mapstructure:"taker_fee_bps"`
}

// MarketDataConfig holds per-venue adapter configuration and connection
// quality parameters shared by all adapters.
type MarketDataConfig struct {
	Venues             []VenueConfig `mapstructure:"venues"`
	MaxReconnects      int           `mapstructure:"max_reconnects"` // 0 = infinite
	InitialBackoff     time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff"`
	QualityWindow      time.Duration `mapstructure:"quality_window"`
	QualityEWMAAlpha   float64       `mapstructure:"quality_ewma_alpha"`
	MaxPriceDeviation  float64       `mapstructure:"max_price_deviation_pct"`
	MinVolumeThreshold float64       `mapstructure:"min_volume_threshold"`
}

// DispatchConfig controls the sharded worker pool that runs detector batches.
type DispatchConfig struct {
	WorkerCount     int           `mapstructure:"worker_count"`
	ShardCount      int           `mapstructure:"shard_count"`
	QueueDepth      int           `mapstructure:"queue_depth"`
	BatchSize       int           `mapstructure:"batch_size"`
	TargetLatency   time.Duration `mapstructure:"target_latency"`
	PinWorkerCores  bool          `mapstructure:"pin_worker_cores"`
	WorkerCoreStart int           `mapstructure:"worker_core_start"`
}

// ArbitrageConfig holds arbitrage detection configuration.
type ArbitrageConfig struct {
	Pairs           []string      `mapstructure:"pairs"`
	TradeSizes      []float64     `mapstructure:"trade_sizes"`
	MinProfitBps    float64       `mapstructure:"min_profit_bps"`
	MinProfitUSD    float64       `mapstructure:"min_profit_usd"`
	TriangularDepth int           `mapstructure:"triangular_depth"`
	OpportunityTTL  time.Duration `mapstructure:"opportunity_ttl"`
}

// TradeSizesDecimal returns trade sizes as decimal.Decimal slice.
func (c *ArbitrageConfig) TradeSizesDecimal() []decimal.Decimal {
	result := make([]decimal.Decimal, len(c.TradeSizes))
	for i, s := range c.TradeSizes {
		result[i] = decimal.NewFromFloat(s)
	}
	return result
}

// MinProfitBpsDecimal returns min profit bps as decimal.Decimal.
func (c *ArbitrageConfig) MinProfitBpsDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitBps)
}

// MinProfitUSDDecimal returns min profit USD as decimal.Decimal.
func (c *ArbitrageConfig) MinProfitUSDDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinProfitUSD)
}

// RiskConfig holds dynamic risk controller thresholds.
type RiskConfig struct {
	MaxPositionUSD              float64       `mapstructure:"max_position_usd"`
	MaxDailyLossUSD             float64       `mapstructure:"max_daily_loss_usd"`
	VolatilityWindow            time.Duration `mapstructure:"volatility_window"`
	HighVolatilityThresh        float64       `mapstructure:"high_volatility_threshold"`
	CircuitMaxRequests          uint32        `mapstructure:"circuit_max_requests"`
	CircuitInterval             time.Duration `mapstructure:"circuit_interval"`
	CircuitTimeout              time.Duration `mapstructure:"circuit_timeout"`
	CircuitFailureRatio         float64       `mapstructure:"circuit_failure_ratio"`
	ConsecutiveFailureThreshold uint32        `mapstructure:"consecutive_failure_threshold"`
	MinProfitThresholdBps       float64       `mapstructure:"min_profit_threshold_bps"`
	CautionRegimeMultiplier     float64       `mapstructure:"caution_regime_multiplier"`
	ExtremeRegimeMultiplier     float64       `mapstructure:"extreme_regime_multiplier"`
	CalmRegimeMultiplier        float64       `mapstructure:"calm_regime_multiplier"`
}

// ExecutionConfig configures the execution engine and slippage predictor.
type ExecutionConfig struct {
	PredictorBaseURL             string        `mapstructure:"predictor_base_url"`
	PredictorTimeout             time.Duration `mapstructure:"predictor_timeout"`
	MaxOrderChunks               int           `mapstructure:"max_order_chunks"`
	ChunkDelay                   time.Duration `mapstructure:"chunk_delay"`
	ChunkDeadline                time.Duration `mapstructure:"chunk_deadline"`
	MaxSlippageBps               float64       `mapstructure:"max_slippage_bps"`
	EnableSlippageCompensation   bool          `mapstructure:"enable_slippage_compensation"`
	EnableOrderSplitting         bool          `mapstructure:"enable_order_splitting"`
	MinOrderValueForCompensation float64       `mapstructure:"min_order_value_for_compensation"`
	MinPredictionConfidence      float64       `mapstructure:"min_prediction_confidence"`
}

// LimitsConfig bounds the number of venues/symbols/concurrent opportunities
// the system will track. Defaults match the reference implementation's
// system_limits.
type LimitsConfig struct {
	MaxSupportedExchanges      int `mapstructure:"max_supported_exchanges"`
	MaxSupportedSymbols        int `mapstructure:"max_supported_symbols"`
	MaxSymbolsPerExchange      int `mapstructure:"max_symbols_per_exchange"`
	MaxConcurrentOpportunities int `mapstructure:"max_concurrent_opportunities"`
	MaxOrderBatchSize          int `mapstructure:"max_order_batch_size"`
	ViolationHistorySize       int `mapstructure:"violation_history_size"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	// Bind env vars to config keys
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ARB_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ARB_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ARB_LOG_LEVEL", "LOG_LEVEL")

	// Market data
	v.BindEnv("market_data.max_reconnects", "ARB_MD_MAX_RECONNECTS")
	v.BindEnv("market_data.quality_window", "ARB_MD_QUALITY_WINDOW")

	// Dispatch
	v.BindEnv("dispatch.worker_count", "ARB_DISPATCH_WORKERS")
	v.BindEnv("dispatch.shard_count", "ARB_DISPATCH_SHARDS")

	// Arbitrage
	v.BindEnv("arbitrage.pairs", "ARB_PAIRS")
	v.BindEnv("arbitrage.min_profit_bps", "ARB_MIN_PROFIT_BPS")
	v.BindEnv("arbitrage.min_profit_usd", "ARB_MIN_PROFIT_USD")

	// Risk
	v.BindEnv("risk.max_position_usd", "ARB_RISK_MAX_POSITION_USD")
	v.BindEnv("risk.max_daily_loss_usd", "ARB_RISK_MAX_DAILY_LOSS_USD")

	// Execution
	v.BindEnv("execution.predictor_base_url", "ARB_PREDICTOR_URL")

	// Limits
	v.BindEnv("limits.max_supported_exchanges", "ARB_MAX_EXCHANGES")
	v.BindEnv("limits.max_supported_symbols", "ARB_MAX_SYMBOLS")
	v.BindEnv("limits.max_symbols_per_exchange", "ARB_MAX_SYMBOLS_PER_EXCHANGE")
	v.BindEnv("limits.max_concurrent_opportunities", "ARB_MAX_CONCURRENT_OPPORTUNITIES")
	v.BindEnv("limits.max_order_batch_size", "ARB_MAX_ORDER_BATCH_SIZE")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ARB_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ARB_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ARB_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "arb-core")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Market data defaults
	v.SetDefault("market_data.max_reconnects", 0) // infinite
	v.SetDefault("market_data.initial_backoff", "1s")
	v.SetDefault("market_data.max_backoff", "30s")
	v.SetDefault("market_data.quality_window", "60s")
	v.SetDefault("market_data.quality_ewma_alpha", 0.2)
	v.SetDefault("market_data.max_price_deviation_pct", 5.0)
	v.SetDefault("market_data.min_volume_threshold", 0.0001)
	// Symbols are canonical "BASE/QUOTE" — each venue adapter translates to
	// its own wire spelling (BTCUSDT, BTC-USDT, BTC_USDT, btcusdt).
	v.SetDefault("market_data.venues", []map[string]any{
		{
			"name":             "binance",
			"websocket_url":    "wss://stream.binance.com:9443",
			"rest_base_url":    "https://api.binance.com",
			"symbols":          []string{"BTC/USDT", "ETH/USDT"},
			"rate_limit_rps":   10,
			"rate_limit_burst": 20,
			"stale_timeout":    "5s",
		},
		{
			"name":             "bybit",
			"websocket_url":    "wss://stream.bybit.com/v5/public/spot",
			"rest_base_url":    "https://api.bybit.com",
			"symbols":          []string{"BTC/USDT", "ETH/USDT"},
			"rate_limit_rps":   10,
			"rate_limit_burst": 20,
			"stale_timeout":    "5s",
		},
	})

	// Dispatch defaults
	v.SetDefault("dispatch.worker_count", 4)
	v.SetDefault("dispatch.shard_count", 4)
	v.SetDefault("dispatch.queue_depth", 10000)
	v.SetDefault("dispatch.batch_size", 64)
	v.SetDefault("dispatch.target_latency", "100us")
	v.SetDefault("dispatch.pin_worker_cores", false)
	v.SetDefault("dispatch.worker_core_start", 0)

	// Arbitrage defaults
	v.SetDefault("arbitrage.pairs", []string{"BTC/USDT", "ETH/USDT"})
	v.SetDefault("arbitrage.trade_sizes", []float64{0.01, 0.1, 1.0})
	v.SetDefault("arbitrage.min_profit_bps", 10)
	v.SetDefault("arbitrage.min_profit_usd", 5)
	v.SetDefault("arbitrage.triangular_depth", 3)
	v.SetDefault("arbitrage.opportunity_ttl", "2s")

	// Risk defaults
	v.SetDefault("risk.max_position_usd", 10000)
	v.SetDefault("risk.max_daily_loss_usd", 500)
	v.SetDefault("risk.volatility_window", "5m")
	v.SetDefault("risk.high_volatility_threshold", 0.03)
	v.SetDefault("risk.circuit_max_requests", 5)
	v.SetDefault("risk.circuit_interval", "60s")
	v.SetDefault("risk.circuit_timeout", "30s")
	v.SetDefault("risk.circuit_failure_ratio", 0.6)
	v.SetDefault("risk.consecutive_failure_threshold", 5)
	v.SetDefault("risk.min_profit_threshold_bps", 10)
	v.SetDefault("risk.caution_regime_multiplier", 1.5)
	v.SetDefault("risk.extreme_regime_multiplier", 2.5)
	v.SetDefault("risk.calm_regime_multiplier", 0.75)

	// Execution defaults
	v.SetDefault("execution.predictor_base_url", "http://localhost:8090")
	v.SetDefault("execution.predictor_timeout", "500ms")
	v.SetDefault("execution.max_order_chunks", 4)
	v.SetDefault("execution.chunk_delay", "50ms")
	v.SetDefault("execution.chunk_deadline", "2s")
	v.SetDefault("execution.max_slippage_bps", 25)
	v.SetDefault("execution.enable_slippage_compensation", true)
	v.SetDefault("execution.enable_order_splitting", true)
	v.SetDefault("execution.min_order_value_for_compensation", 1000)
	v.SetDefault("execution.min_prediction_confidence", 0.6)

	// Limits defaults (matches the reference implementation's system_limits)
	v.SetDefault("limits.max_supported_exchanges", 20)
	v.SetDefault("limits.max_supported_symbols", 50)
	v.SetDefault("limits.max_symbols_per_exchange", 20)
	v.SetDefault("limits.max_concurrent_opportunities", 100)
	v.SetDefault("limits.max_order_batch_size", 500)
	v.SetDefault("limits.violation_history_size", 1000)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "arb-core")
	v.SetDefault("telemetry.prometheus_port", 9090)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.MarketData.Venues) == 0 {
		return fmt.Errorf("market_data.venues cannot be empty")
	}
	for _, venue := range c.MarketData.Venues {
		if venue.Name == "" {
			return fmt.Errorf("market_data.venues: venue name cannot be empty")
		}
		if venue.WebSocketURL == "" {
			return fmt.Errorf("market_data.venues[%s]: websocket_url is required", venue.Name)
		}
		if len(venue.Symbols) == 0 {
			return fmt.Errorf("market_data.venues[%s]: symbols cannot be empty", venue.Name)
		}
	}
	if c.Limits.MaxSupportedExchanges <= 0 {
		return fmt.Errorf("limits.max_supported_exchanges must be positive")
	}
	if c.Limits.MaxSupportedSymbols <= 0 {
		return fmt.Errorf("limits.max_supported_symbols must be positive")
	}
	if len(c.MarketData.Venues) > c.Limits.MaxSupportedExchanges {
		return fmt.Errorf("configured venues (%d) exceed limits.max_supported_exchanges (%d)",
			len(c.MarketData.Venues), c.Limits.MaxSupportedExchanges)
	}
	if c.Limits.MaxSymbolsPerExchange > 0 {
		for _, venue := range c.MarketData.Venues {
			if len(venue.Symbols) > c.Limits.MaxSymbolsPerExchange {
				return fmt.Errorf("market_data.venues[%s]: %d symbols exceed limits.max_symbols_per_exchange (%d)",
					venue.Name, len(venue.Symbols), c.Limits.MaxSymbolsPerExchange)
			}
		}
	}
	return nil
}
