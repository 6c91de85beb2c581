package history

import (
	"context"
	"fmt"

	"github.com/aman-zulfiqar/flash-swap/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"
)

const swapTable = "swap_transactions"

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore archives every finished swap.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ` + swapTable + ` (
			id               String,
			tracking_id      String,
			signature        String,
			status           LowCardinality(String),
			error            String,
			wallet           String,
			input_mint       String,
			input_symbol     LowCardinality(String),
			output_mint      String,
			output_symbol    LowCardinality(String),
			amount_in        String,
			amount_out       String,
			slippage_bps     UInt16,
			price_impact_pct Float64,
			latency_ms       Nullable(Int64),
			started_at       DateTime64(3),
			finished_at      DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (finished_at, id)
	`
	if err := c.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", swapTable, err)
	}
	return nil
}

func (c *ClickHouseStore) Record(ctx context.Context, rec *models.SwapRecord) error {
	query := `
		INSERT INTO ` + swapTable + ` (
			id, tracking_id, signature, status, error, wallet,
			input_mint, input_symbol, output_mint, output_symbol,
			amount_in, amount_out, slippage_bps, price_impact_pct,
			latency_ms, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		rec.ID,
		rec.TrackingID,
		rec.Signature,
		rec.Status,
		rec.Error,
		rec.Wallet,
		rec.InputMint,
		rec.InputSymbol,
		rec.OutputMint,
		rec.OutputSymbol,
		rec.AmountIn,
		rec.AmountOut,
		uint16(rec.SlippageBps),
		rec.PriceImpactPct,
		rec.LatencyMs,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert swap: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
