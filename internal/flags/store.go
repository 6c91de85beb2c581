package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	indexKey    = "flashswap:flags:index"
	valuePrefix = "flashswap:flags:"
)

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

type Store struct {
	client redis.Cmdable
	clock  clock.Clock
	logger *logrus.Logger
}

type Option func(*Store)

func WithClock(c clock.Clock) Option { return func(s *Store) { s.clock = c } }

func WithLogger(l *logrus.Logger) Option { return func(s *Store) { s.logger = l } }

func NewStore(client redis.Cmdable, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	s := &Store{client: client, clock: clock.New(), logger: logrus.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("invalid flag key")
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, UpdatedAt: s.clock.Now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, flagKey(key), b, 0)
	pipe.SAdd(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("upsert flag: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"key": key, "value": value}).Info("flag updated")
	return flag, nil
}

func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	val, err := s.client.Get(ctx, flagKey(key)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get flag: %w", err)
	}

	var f Flag
	if err := json.Unmarshal([]byte(val), &f); err != nil {
		return nil, fmt.Errorf("unmarshal flag: %w", err)
	}
	return &f, nil
}

// Enabled returns the stored value of key, falling back to its default from
// Defaults (false for unknown keys) when unset or unreadable.
func (s *Store) Enabled(ctx context.Context, key string) bool {
	def := Defaults[key]
	f, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def
	}
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("flag lookup failed, using default")
		return def
	}
	return f.Value
}

// List returns every indexed flag ordered by key. Index entries whose value is
// gone are pruned from the index; unreadable values are skipped.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags index: %w", err)
	}
	sort.Strings(keys)

	names := make([]string, 0, len(keys))
	valueKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		if ValidateKey(k) != nil {
			s.logger.WithField("key", k).Warn("skipping malformed flag index entry")
			continue
		}
		names = append(names, k)
		valueKeys = append(valueKeys, flagKey(k))
	}
	flags := make([]*Flag, 0, len(names))
	if len(names) == 0 {
		return flags, nil
	}

	vals, err := s.client.MGet(ctx, valueKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget flags: %w", err)
	}

	var stale []interface{}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, names[i])
			continue
		}
		var f Flag
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			s.logger.WithError(err).WithField("key", names[i]).Warn("skipping unreadable flag")
			continue
		}
		flags = append(flags, &f)
	}

	if len(stale) > 0 {
		if err := s.client.SRem(ctx, indexKey, stale...).Err(); err != nil {
			s.logger.WithError(err).Warn("prune flag index failed")
		} else {
			s.logger.WithField("keys", stale).Debug("pruned flag index")
		}
	}
	return flags, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, flagKey(key))
	pipe.SRem(ctx, indexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete flag: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"key": key, "existed": del.Val() > 0}).Info("flag deleted")
	return nil
}

func flagKey(key string) string {
	return valuePrefix + key
}
