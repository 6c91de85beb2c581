package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func sampleRecord(status string) *models.SwapRecord {
	latency := int64(31)
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &models.SwapRecord{
		ID:             uuid.NewString(),
		TrackingID:     "raiku_abc",
		Signature:      "5sig",
		Status:         status,
		Wallet:         "Wallet1111",
		InputMint:      "So11111111111111111111111111111111111111112",
		InputSymbol:    "SOL",
		OutputMint:     "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		OutputSymbol:   "USDC",
		AmountIn:       "1.5",
		AmountOut:      "225.123456",
		SlippageBps:    50,
		PriceImpactPct: 0.0012,
		LatencyMs:      &latency,
		StartedAt:      now.Add(-time.Second),
		FinishedAt:     now,
	}
}

type recorderFunc func(ctx context.Context, rec *models.SwapRecord) error

func (f recorderFunc) Record(ctx context.Context, rec *models.SwapRecord) error { return f(ctx, rec) }

func TestMultiRecorder(t *testing.T) {
	var got []string
	ok := recorderFunc(func(_ context.Context, rec *models.SwapRecord) error {
		got = append(got, rec.ID)
		return nil
	})
	bad := recorderFunc(func(context.Context, *models.SwapRecord) error {
		return errors.New("clickhouse down")
	})

	rec := sampleRecord("confirmed")
	err := MultiRecorder{ok, nil, bad, ok}.Record(context.Background(), rec)
	assert.EqualError(t, err, "clickhouse down")
	assert.Equal(t, []string{rec.ID, rec.ID}, got)

	assert.NoError(t, MultiRecorder{}.Record(context.Background(), rec))
}

func TestRedisStore_RecordAndRecent(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < recentLimit+5; i++ {
		rec := sampleRecord("confirmed")
		rec.TrackingID = fmt.Sprintf("raiku_%d", i)
		require.NoError(t, store.Record(ctx, rec))
	}

	n, err := client.LLen(ctx, recentKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(recentLimit), n)

	recent, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, fmt.Sprintf("raiku_%d", recentLimit+4), recent[0].TrackingID)
	assert.Equal(t, "SOL/USDC", recent[0].Pair())
	require.NotNil(t, recent[0].LatencyMs)
	assert.Equal(t, int64(31), *recent[0].LatencyMs)

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, recentLimit)
}

func TestRedisStore_SkipsMalformedEntries(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRecord("failed")))
	require.NoError(t, client.LPush(ctx, recentKey, "{not json").Err())

	recent, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].Succeeded())
}

func TestRedisStore_Subscribe(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewRedisStore(client, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.Subscribe(ctx)
	require.NoError(t, err)

	rec := sampleRecord("confirmed")
	require.NoError(t, store.Record(context.Background(), rec))

	select {
	case got := <-ch:
		assert.Equal(t, rec.ID, got.ID)
		assert.True(t, rec.FinishedAt.Equal(got.FinishedAt))
	case <-time.After(3 * time.Second):
		t.Fatal("no live swap received")
	}

	cancel()
	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(3 * time.Second):
		t.Fatal("live channel not closed after cancel")
	}
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil, nil)
	assert.Error(t, err)
}

func TestClickHouseStore(t *testing.T) {
	addr := os.Getenv("CLICKHOUSE_TEST_ADDR")
	if addr == "" {
		t.Skip("CLICKHOUSE_TEST_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewClickHouseStore(ctx, ClickHouseConfig{Addr: addr, Username: "default"})
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.Record(ctx, sampleRecord("confirmed")))

	failed := sampleRecord("failed")
	failed.LatencyMs = nil
	failed.Signature = ""
	require.NoError(t, store.Record(ctx, failed))
	require.NoError(t, store.Ping(ctx))
}
