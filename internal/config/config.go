// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBSCAN_* environment variables.
type Config struct {
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Detector   DetectorConfig   `toml:"detector"`
	Risk       RiskConfig       `toml:"risk"`
	Executor   ExecutorConfig   `toml:"executor"`
	Scan       ScanConfig       `toml:"scan"`
	Feed       FeedConfig       `toml:"feed"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials and chain endpoints.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	RPCURL           string `toml:"rpc_url"`
	UsdcAddress      string `toml:"usdc_address"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost  string `toml:"clob_host"`
	GammaHost string `toml:"gamma_host"`
	WsHost    string `toml:"ws_host"`
	ChainID   int    `toml:"chain_id"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for scan-report
// archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// DetectorConfig holds detection strategy parameters.
type DetectorConfig struct {
	MinProfitPct float64  `toml:"min_profit_pct"`
	BatchSize    int      `toml:"batch_size"`
	BatchPause   duration `toml:"batch_pause"`
	Category     string   `toml:"category"`
	Strategies   []string `toml:"strategies"`
}

// RiskConfig holds the risk evaluator limits.
type RiskConfig struct {
	Enabled          bool    `toml:"enabled"`
	DailyLossLimit   float64 `toml:"daily_loss_limit"`
	MaxPositionSize  float64 `toml:"max_position_size"`
	MinPositionSize  float64 `toml:"min_position_size"`
	MaxOpenPositions int     `toml:"max_open_positions"`
}

// ExecutorConfig holds order execution parameters.
type ExecutorConfig struct {
	MaxSlippage float64 `toml:"max_slippage"`
}

// ScanConfig holds the controller loop parameters.
type ScanConfig struct {
	Interval          duration `toml:"interval"`
	OpportunityMaxAge duration `toml:"opportunity_max_age"`
	FetchRetries      int      `toml:"fetch_retries"`
	RetryBackoff      duration `toml:"retry_backoff"`
}

// FeedConfig holds the market-data websocket feed parameters.
type FeedConfig struct {
	Enabled       bool     `toml:"enabled"`
	ReconnectWait duration `toml:"reconnect_wait"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// knownStrategies enumerates the detection strategies that can be enabled.
var knownStrategies = map[string]bool{
	"price_imbalance": true,
	"cross_market":    true,
	"mean_reversion":  true,
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			RPCURL:      "https://polygon-rpc.com",
			UsdcAddress: "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		},
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:   137,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "arbscan",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbscan-reports",
			ForcePathStyle: true,
		},
		Detector: DetectorConfig{
			MinProfitPct: 1.0,
			BatchSize:    20,
			BatchPause:   duration{100 * time.Millisecond},
			Strategies:   []string{"price_imbalance", "cross_market", "mean_reversion"},
		},
		Risk: RiskConfig{
			Enabled:          true,
			DailyLossLimit:   100,
			MaxPositionSize:  50,
			MinPositionSize:  1,
			MaxOpenPositions: 10,
		},
		Executor: ExecutorConfig{
			MaxSlippage: 0.02,
		},
		Scan: ScanConfig{
			Interval:          duration{30 * time.Second},
			OpportunityMaxAge: duration{60 * time.Second},
			FetchRetries:      3,
			RetryBackoff:      duration{time.Second},
		},
		Feed: FeedConfig{
			Enabled:       false,
			ReconnectWait: duration{5 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "execution", "emergency_stop", "error"},
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, trade, monitor)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet credentials are only required when trading.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for trade mode")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Wallet.RPCURL == "" {
			errs = append(errs, "wallet: rpc_url must not be empty for trade mode")
		}
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Detector
	if c.Detector.MinProfitPct < 0 {
		errs = append(errs, "detector: min_profit_pct must be >= 0")
	}
	if c.Detector.BatchSize < 1 {
		errs = append(errs, "detector: batch_size must be >= 1")
	}
	if len(c.Detector.Strategies) == 0 {
		errs = append(errs, "detector: at least one strategy must be enabled")
	}
	for _, name := range c.Detector.Strategies {
		if !knownStrategies[name] {
			errs = append(errs, fmt.Sprintf("detector: unknown strategy %q (valid: price_imbalance, cross_market, mean_reversion)", name))
		}
	}

	// Risk
	if c.Risk.Enabled {
		if c.Risk.DailyLossLimit <= 0 {
			errs = append(errs, "risk: daily_loss_limit must be > 0 when enabled")
		}
		if c.Risk.MaxPositionSize <= 0 {
			errs = append(errs, "risk: max_position_size must be > 0 when enabled")
		}
		if c.Risk.MinPositionSize < 0 {
			errs = append(errs, "risk: min_position_size must be >= 0")
		}
		if c.Risk.MinPositionSize > c.Risk.MaxPositionSize {
			errs = append(errs, "risk: min_position_size must not exceed max_position_size")
		}
		if c.Risk.MaxOpenPositions < 1 {
			errs = append(errs, "risk: max_open_positions must be >= 1")
		}
	}

	// Executor
	if c.Executor.MaxSlippage < 0 || c.Executor.MaxSlippage >= 1 {
		errs = append(errs, fmt.Sprintf("executor: max_slippage must be in [0, 1), got %g", c.Executor.MaxSlippage))
	}

	// Scan loop
	if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be positive")
	}
	if c.Scan.OpportunityMaxAge.Duration <= 0 {
		errs = append(errs, "scan: opportunity_max_age must be positive")
	}
	if c.Scan.FetchRetries < 1 {
		errs = append(errs, "scan: fetch_retries must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
