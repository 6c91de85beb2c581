// Package history persists swap outcomes: a capped recent list and live feed in
// Redis, and an append-only archive in ClickHouse.
package history

import (
	"context"
	"errors"
	"io"

	"github.com/aman-zulfiqar/flash-swap/internal/models"
)

// Recorder stores the outcome of a finished swap attempt.
type Recorder interface {
	Record(ctx context.Context, rec *models.SwapRecord) error
}

// Store is a Recorder backed by a connection that must be closed.
type Store interface {
	Recorder
	Ping(ctx context.Context) error
	io.Closer
}

// MultiRecorder writes to every recorder and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, rec *models.SwapRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*ClickHouseStore)(nil)
)
