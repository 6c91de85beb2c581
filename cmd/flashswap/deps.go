package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/config"
	"github.com/aman-zulfiqar/flash-swap/internal/history"
	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func newJupiter(cfg *config.Config) *jupiter.Client {
	jup := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey)
	jup.TokensURL = cfg.JupiterTokensURL
	return jup
}

func newProvider(cfg *config.Config, logger *logrus.Logger) raiku.Provider {
	if cfg.UseMockRaiku {
		return raiku.NewMock(raiku.MockConfig{Clock: clock.New(), Logger: logger, SimulateNetwork: true})
	}
	return raiku.NewClient(cfg.RaikuJITEndpoint, cfg.RaikuStatusEndpoint, cfg.HTTPTimeout)
}

func closeProvider(p raiku.Provider) {
	if m, ok := p.(*raiku.Mock); ok {
		m.Close()
	}
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

// openHistory collects every reachable history sink. Missing sinks are logged
// and skipped; the returned func closes whatever was opened.
func openHistory(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (history.Recorder, func()) {
	var (
		sinks   history.MultiRecorder
		closers []func() error
	)

	if client, err := connectRedis(ctx, cfg); err != nil {
		logger.WithError(err).Info("swap history in redis disabled")
	} else if store, err := history.NewRedisStore(client, logger); err == nil {
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
	}

	if cfg.ClickHouseAddr != "" {
		store, err := history.NewClickHouseStore(ctx, history.ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
			Logger:   logger,
		})
		if err != nil {
			logger.WithError(err).Warn("swap archive in clickhouse disabled")
		} else if err := store.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("swap archive schema unavailable")
			_ = store.Close()
		} else {
			sinks = append(sinks, store)
			closers = append(closers, store.Close)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	if len(sinks) == 0 {
		return nil, closeAll
	}
	return sinks, closeAll
}

// resolveToken accepts a popular symbol or any mint Jupiter knows.
func resolveToken(ctx context.Context, jup *jupiter.Client, s string) (*tokens.Token, error) {
	if t, ok := tokens.Resolve(s); ok {
		return &t, nil
	}
	if _, err := solana.PublicKeyFromBase58(strings.TrimSpace(s)); err != nil {
		return nil, fmt.Errorf("unknown token %q (use a symbol from `flashswap tokens` or a mint address)", s)
	}
	t, err := jup.TokenInfo(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("look up mint %s: %w", s, err)
	}
	return t, nil
}

// parsePairArgs reads "<amount> <from> <to>", allowing "<amount> <from> to <to>".
func parsePairArgs(args []string) (amount, from, to string, err error) {
	if len(args) == 4 && strings.EqualFold(args[2], "to") {
		args = []string{args[0], args[1], args[3]}
	}
	if len(args) != 3 {
		return "", "", "", fmt.Errorf("expected <amount> <from-token> <to-token>")
	}
	return strings.TrimSpace(args[0]), args[1], args[2], nil
}
