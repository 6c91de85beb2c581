package swap

import (
	"encoding/json"

	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
)

// Status is the lifecycle stage of the current submission attempt.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusSigning      Status = "signing"
	StatusSubmitting   Status = "submitting"
	StatusPreConfirmed Status = "pre_confirmed"
	StatusConfirmed    Status = "confirmed"
	StatusFailed       Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// InFlight reports whether an attempt is between submit and a terminal state.
func (s Status) InFlight() bool {
	switch s {
	case StatusSigning, StatusSubmitting, StatusPreConfirmed:
		return true
	}
	return false
}

// quoteKey is the input tuple a quote was fetched for.
type quoteKey struct {
	inputMint   string
	outputMint  string
	amount      uint64
	slippageBps int
}

// Quote is a priced route for one input tuple. Treat as read-only.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
	SlippageBps    int
	RoutePlan      []jupiter.RoutePlanStep

	// Raw is the aggregator's quote body, sent back verbatim to build the transaction.
	Raw json.RawMessage

	key quoteKey
}

// Route lists the AMM labels of each hop in order.
func (q *Quote) Route() []string {
	out := make([]string, 0, len(q.RoutePlan))
	for _, step := range q.RoutePlan {
		label := step.SwapInfo.Label
		if label == "" {
			label = step.SwapInfo.AmmKey
		}
		out = append(out, label)
	}
	return out
}

type Input struct {
	InputToken   *tokens.Token
	OutputToken  *tokens.Token
	InputAmount  string
	OutputAmount string
	SlippageBps  int
	Quote        *Quote
	QuoteLoading bool
}

type Transaction struct {
	Status     Status
	TrackingID string
	Signature  string
	Error      string
	LatencyMs  *int64
}

// Snapshot is a consistent copy of the orchestrator state.
type Snapshot struct {
	Input       Input
	Transaction Transaction
}

func (t Transaction) clone() Transaction {
	if t.LatencyMs != nil {
		v := *t.LatencyMs
		t.LatencyMs = &v
	}
	return t
}

func int64Ptr(v int64) *int64 { return &v }
