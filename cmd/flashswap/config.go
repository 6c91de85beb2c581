package main

import (
	"errors"
	"fmt"

	"github.com/aman-zulfiqar/flash-swap/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadConfig starts from the environment and overlays the optional
// .flashswap.yaml file and command-line flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Load()

	v := viper.New()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".flashswap")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if f := cmd.Flags().Lookup("slippage-bps"); f != nil && f.Changed {
		if err := v.BindPFlag("slippage_bps", f); err != nil {
			return nil, err
		}
	}

	applyOverrides(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("rpc_url", &cfg.RPCUrl)
	str("jupiter_base_url", &cfg.JupiterBaseURL)
	str("jupiter_tokens_url", &cfg.JupiterTokensURL)
	str("jupiter_api_key", &cfg.JupiterAPIKey)
	str("raiku_jit_endpoint", &cfg.RaikuJITEndpoint)
	str("raiku_status_endpoint", &cfg.RaikuStatusEndpoint)
	str("redis_addr", &cfg.RedisAddr)
	str("clickhouse_addr", &cfg.ClickHouseAddr)
	str("wallet_private_key", &cfg.WalletPrivateKey)

	if v.IsSet("use_mock_raiku") {
		cfg.UseMockRaiku = v.GetBool("use_mock_raiku")
	}
	if v.IsSet("slippage_bps") {
		cfg.DefaultSlippageBps = v.GetInt("slippage_bps")
	}
	if v.IsSet("compute_unit_price_micro_lamports") {
		cfg.ComputeUnitPriceMicroLamports = v.GetUint64("compute_unit_price_micro_lamports")
	}
	if v.IsSet("transaction_timeout") {
		cfg.TransactionTimeout = v.GetDuration("transaction_timeout")
	}
}
