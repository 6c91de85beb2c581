// ============================================================================
// models/swap.go
// ============================================================================
package models

import "time"

// SwapRecord is the persisted outcome of one submission attempt.
type SwapRecord struct {
	ID             string    `json:"id"`
	TrackingID     string    `json:"tracking_id,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	Status         string    `json:"status"` // "confirmed" or "failed"
	Error          string    `json:"error,omitempty"`
	Wallet         string    `json:"wallet"`
	InputMint      string    `json:"input_mint"`
	InputSymbol    string    `json:"input_symbol"`
	OutputMint     string    `json:"output_mint"`
	OutputSymbol   string    `json:"output_symbol"`
	AmountIn       string    `json:"amount_in"`
	AmountOut      string    `json:"amount_out"`
	SlippageBps    int       `json:"slippage_bps"`
	PriceImpactPct float64   `json:"price_impact_pct"`
	LatencyMs      *int64    `json:"latency_ms,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

func (r *SwapRecord) Pair() string {
	return r.InputSymbol + "/" + r.OutputSymbol
}

func (r *SwapRecord) Succeeded() bool {
	return r.Status == "confirmed"
}
