package flags

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// Runtime switches consulted by the API.
const (
	SwapSubmitEnabled = "swap.submit.enabled"
	QuoteProxyEnabled = "quote.proxy.enabled"
)

// Defaults apply when a known flag has never been set or Redis is unreachable.
var Defaults = map[string]bool{
	SwapSubmitEnabled: true,
	QuoteProxyEnabled: true,
}

type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Checker answers whether a flag is on.
type Checker interface {
	Enabled(ctx context.Context, key string) bool
}
