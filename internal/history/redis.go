package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/flash-swap/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	recentKey   = "swaps:recent"
	liveChannel = "swaps:live"
	recentLimit = 100
)

// RedisStore keeps the latest swaps in a capped list and fans them out over pub/sub.
type RedisStore struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewRedisStore(client *redis.Client, logger *logrus.Logger) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisStore{client: client, logger: logger}, nil
}

func (r *RedisStore) Record(ctx context.Context, rec *models.SwapRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal swap record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, recentLimit-1)
	pipe.Publish(ctx, liveChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record swap: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *RedisStore) Recent(ctx context.Context, limit int64) ([]*models.SwapRecord, error) {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}

	vals, err := r.client.LRange(ctx, recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get recent swaps: %w", err)
	}

	out := make([]*models.SwapRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.SwapRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			r.logger.WithError(err).Warn("skipping malformed swap record")
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Subscribe streams records published after the call. The channel closes when
// ctx is done.
func (r *RedisStore) Subscribe(ctx context.Context) (<-chan *models.SwapRecord, error) {
	pubsub := r.client.Subscribe(ctx, liveChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", liveChannel, err)
	}

	out := make(chan *models.SwapRecord, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec models.SwapRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					r.logger.WithError(err).Warn("skipping malformed live swap")
					continue
				}
				select {
				case out <- &rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
