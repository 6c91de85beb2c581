package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/config"
	"github.com/aman-zulfiqar/flash-swap/internal/flags"
	"github.com/aman-zulfiqar/flash-swap/internal/history"
	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/server"
	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// loadEnv reads .env from the project root, if present.
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	envPath := filepath.Join(filepath.Dir(filename), "../..", ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	jup := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey)
	jup.TokensURL = cfg.JupiterTokensURL

	h := &server.Handlers{
		Jupiter: jup,
		DevMode: cfg.DevMode,
		Logger:  logger,
	}

	if cfg.UseMockRaiku {
		mock := raiku.NewMock(raiku.MockConfig{Clock: clock.New(), Logger: logger, SimulateNetwork: true})
		defer mock.Close()
		h.Raiku = mock
		logger.Info("using mock raiku provider")
	} else {
		h.Raiku = raiku.NewClient(cfg.RaikuJITEndpoint, cfg.RaikuStatusEndpoint, cfg.HTTPTimeout)
		logger.WithField("endpoint", cfg.RaikuJITEndpoint).Info("using raiku provider")
	}

	// Redis is optional: without it flags fall back to defaults and history is off.
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rclient.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	err := rclient.Ping(pingCtx).Err()
	pingCancel()
	if err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis unavailable, flags and swap history disabled")
	} else {
		flagStore, err := flags.NewStore(rclient, flags.WithLogger(logger))
		if err != nil {
			logger.WithError(err).Fatal("failed to create flags store")
		}
		h.Flags = flagStore

		recent, err := history.NewRedisStore(rclient, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create swap history store")
		}
		h.History = recent
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("shutdown did not complete")
	}
}
