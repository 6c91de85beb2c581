package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Solana RPC settings
	RPCUrl string

	// Jupiter settings
	JupiterBaseURL   string
	JupiterTokensURL string
	JupiterAPIKey    string

	// Raiku JIT settings
	RaikuJITEndpoint    string
	RaikuStatusEndpoint string
	UseMockRaiku        bool

	// Swap settings
	DefaultSlippageBps            int
	MaxSlippageBps                int
	ComputeUnitPriceMicroLamports uint64

	// Timing
	QuoteDebounce      time.Duration
	QuoteTimeout       time.Duration
	StatusPollInterval time.Duration
	TransactionTimeout time.Duration

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server settings
	APIAddr string
	APIKey  string
	DevMode bool

	// Redis settings
	RedisAddr string

	// ClickHouse settings (empty addr disables the archive)
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Wallet
	WalletPrivateKey string

	LogLevel string
}

func Load() *Config {
	return &Config{
		// RPC
		RPCUrl: getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),

		// Jupiter
		JupiterBaseURL:   getEnv("JUPITER_BASE_URL", "https://quote-api.jup.ag/v6"),
		JupiterTokensURL: getEnv("JUPITER_TOKENS_URL", "https://tokens.jup.ag"),
		JupiterAPIKey:    getEnv("JUPITER_API_KEY", ""),

		// Raiku
		RaikuJITEndpoint:    getEnv("RAIKU_JIT_ENDPOINT", "https://api.raiku.io/v1/jit"),
		RaikuStatusEndpoint: getEnv("RAIKU_STATUS_ENDPOINT", "https://api.raiku.io/v1/status"),
		UseMockRaiku:        !strings.EqualFold(os.Getenv("USE_MOCK_RAIKU"), "false"),

		// Swap
		DefaultSlippageBps:            getIntEnv("DEFAULT_SLIPPAGE_BPS", 50),
		MaxSlippageBps:                getIntEnv("MAX_SLIPPAGE_BPS", 5000),
		ComputeUnitPriceMicroLamports: getUint64Env("COMPUTE_UNIT_PRICE_MICRO_LAMPORTS", 100000),

		// Timing
		QuoteDebounce:      getDurationEnv("QUOTE_DEBOUNCE", 500*time.Millisecond),
		QuoteTimeout:       getDurationEnv("QUOTE_TIMEOUT", 10*time.Second),
		StatusPollInterval: getDurationEnv("STATUS_POLL_INTERVAL", 500*time.Millisecond),
		TransactionTimeout: getDurationEnv("TRANSACTION_TIMEOUT", 60*time.Second),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "solana"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports the first setting that would make the services misbehave.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCUrl) == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if strings.TrimSpace(c.JupiterBaseURL) == "" {
		return fmt.Errorf("JUPITER_BASE_URL is required")
	}
	if !c.UseMockRaiku {
		if strings.TrimSpace(c.RaikuJITEndpoint) == "" || strings.TrimSpace(c.RaikuStatusEndpoint) == "" {
			return fmt.Errorf("RAIKU_JIT_ENDPOINT and RAIKU_STATUS_ENDPOINT are required when USE_MOCK_RAIKU=false")
		}
	}
	if c.MaxSlippageBps <= 0 {
		return fmt.Errorf("MAX_SLIPPAGE_BPS must be positive, got %d", c.MaxSlippageBps)
	}
	if c.DefaultSlippageBps <= 0 || c.DefaultSlippageBps > c.MaxSlippageBps {
		return fmt.Errorf("DEFAULT_SLIPPAGE_BPS must be in (0, %d], got %d", c.MaxSlippageBps, c.DefaultSlippageBps)
	}
	if c.QuoteDebounce <= 0 {
		return fmt.Errorf("QUOTE_DEBOUNCE must be positive")
	}
	if c.StatusPollInterval <= 0 {
		return fmt.Errorf("STATUS_POLL_INTERVAL must be positive")
	}
	if c.QuoteTimeout <= 0 || c.TransactionTimeout <= 0 {
		return fmt.Errorf("QUOTE_TIMEOUT and TRANSACTION_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getUint64Env falls back to defaultVal for negative or malformed values.
func getUint64Env(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseUint(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
