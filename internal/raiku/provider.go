// Package raiku talks to the Raiku JIT blockspace service: submit a signed
// transaction for pre-confirmation, then poll its status until finality.
package raiku

import "context"

// Provider is implemented by the in-memory Mock and the HTTP Client; the binaries
// pick one from configuration.
type Provider interface {
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error)
	// Status must be safe to call repeatedly; a status never moves backwards.
	Status(ctx context.Context, preConfirmationID string) (*TransactionStatus, error)
	// EstimateLatency returns the expected pre-confirmation latency in milliseconds.
	EstimateLatency(ctx context.Context) (int64, error)
}

var (
	_ Provider = (*Mock)(nil)
	_ Provider = (*Client)(nil)
)
