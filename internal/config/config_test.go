package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{
		"SOLANA_RPC_URL", "JUPITER_BASE_URL", "USE_MOCK_RAIKU", "DEFAULT_SLIPPAGE_BPS",
		"STATUS_POLL_INTERVAL", "QUOTE_DEBOUNCE", "API_ADDR", "CLICKHOUSE_ADDR",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.RPCUrl)
	assert.Equal(t, "https://quote-api.jup.ag/v6", cfg.JupiterBaseURL)
	assert.Equal(t, "https://api.raiku.io/v1/jit", cfg.RaikuJITEndpoint)
	assert.Equal(t, "https://api.raiku.io/v1/status", cfg.RaikuStatusEndpoint)
	assert.True(t, cfg.UseMockRaiku)
	assert.Equal(t, 50, cfg.DefaultSlippageBps)
	assert.Equal(t, 5000, cfg.MaxSlippageBps)
	assert.Equal(t, uint64(100000), cfg.ComputeUnitPriceMicroLamports)
	assert.Equal(t, 500*time.Millisecond, cfg.StatusPollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.QuoteDebounce)
	assert.Equal(t, 10*time.Second, cfg.QuoteTimeout)
	assert.Equal(t, 60*time.Second, cfg.TransactionTimeout)
	assert.Equal(t, ":8090", cfg.APIAddr)
	assert.Empty(t, cfg.ClickHouseAddr)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("USE_MOCK_RAIKU", "FALSE")
	t.Setenv("DEFAULT_SLIPPAGE_BPS", "100")
	t.Setenv("STATUS_POLL_INTERVAL", "250ms")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()

	assert.False(t, cfg.UseMockRaiku)
	assert.Equal(t, 100, cfg.DefaultSlippageBps)
	assert.Equal(t, 250*time.Millisecond, cfg.StatusPollInterval)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 3, cfg.MaxRetries, "unparsable values fall back to the default")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"missing rpc", func(c *Config) { c.RPCUrl = " " }, "SOLANA_RPC_URL"},
		{"slippage above max", func(c *Config) { c.DefaultSlippageBps = 6000 }, "DEFAULT_SLIPPAGE_BPS"},
		{"zero slippage", func(c *Config) { c.DefaultSlippageBps = 0 }, "DEFAULT_SLIPPAGE_BPS"},
		{"zero poll interval", func(c *Config) { c.StatusPollInterval = 0 }, "STATUS_POLL_INTERVAL"},
		{"production raiku without endpoints", func(c *Config) {
			c.UseMockRaiku = false
			c.RaikuStatusEndpoint = ""
		}, "RAIKU_STATUS_ENDPOINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_ComputeUnitPrice(t *testing.T) {
	t.Setenv("COMPUTE_UNIT_PRICE_MICRO_LAMPORTS", "250000")
	assert.Equal(t, uint64(250000), Load().ComputeUnitPriceMicroLamports)

	for _, bad := range []string{"-5", "lots", "1.5"} {
		t.Setenv("COMPUTE_UNIT_PRICE_MICRO_LAMPORTS", bad)
		assert.Equal(t, uint64(100000), Load().ComputeUnitPriceMicroLamports, bad)
	}
}
