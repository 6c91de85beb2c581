package raiku

// Status is the inclusion stage reported for a pre-confirmation.
type Status string

const (
	StatusPending      Status = "pending"
	StatusPreConfirmed Status = "pre_confirmed"
	StatusConfirmed    Status = "confirmed"
	StatusFinalized    Status = "finalized"
	StatusFailed       Status = "failed"
)

// rank orders statuses so the mock can refuse regressions. failed outranks everything.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPreConfirmed:
		return 1
	case StatusConfirmed:
		return 2
	case StatusFinalized:
		return 3
	case StatusFailed:
		return 4
	default:
		return -1
	}
}

func (s Status) Valid() bool { return s.rank() >= 0 }

// Priority is the JIT priority hint.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityTurbo  Priority = "turbo"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityTurbo:
		return true
	}
	return false
}

type SubmitRequest struct {
	Transaction   string   `json:"transaction"` // base64, signed
	PriorityLevel Priority `json:"priorityLevel,omitempty"`
	MaxRetries    *int     `json:"maxRetries,omitempty"`
	SkipPreflight *bool    `json:"skipPreflight,omitempty"`
}

type SubmitResponse struct {
	Success            bool   `json:"success"`
	PreConfirmationID  string `json:"preConfirmationId"`
	EstimatedSlot      uint64 `json:"estimatedSlot"`
	EstimatedLatencyMs int64  `json:"estimatedLatencyMs"`
	BlockspaceReserved bool   `json:"blockspaceReserved"`
	Signature          string `json:"signature,omitempty"`
	Error              string `json:"error,omitempty"`
}

type TransactionStatus struct {
	PreConfirmationID  string  `json:"preConfirmationId"`
	Status             Status  `json:"status"`
	Signature          string  `json:"signature,omitempty"`
	Slot               *uint64 `json:"slot,omitempty"`
	ConfirmationTimeMs *int64  `json:"confirmationTimeMs,omitempty"`
	Error              string  `json:"error,omitempty"`
}

type LatencyResponse struct {
	EstimatedMs int64 `json:"estimatedMs"`
}
