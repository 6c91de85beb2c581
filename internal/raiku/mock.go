package raiku

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
)

const (
	idPrefix   = "raiku_"
	idAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	idLength   = 32

	slotDuration = 400 * time.Millisecond

	preConfirmAfter = 50 * time.Millisecond
	confirmAfterMin = 400 * time.Millisecond
	confirmJitter   = 200 * time.Millisecond
	finalizeAfter   = 2000 * time.Millisecond
	finalizeJitter  = 500 * time.Millisecond

	defaultRetention = 10 * time.Minute
)

// ErrNotFound is the status error reported for an unknown pre-confirmation id.
const ErrNotFound = "Pre-confirmation ID not found"

// Mock simulates the Raiku JIT service in memory. A submitted transaction walks
// pending -> pre_confirmed -> confirmed -> finalized on clock timers, so tests can
// drive it with a mock clock.
type Mock struct {
	clock     clock.Clock
	logger    *logrus.Logger
	simulate  bool
	retention time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	txs map[string]*mockTx
	// settled keeps the terminal status of expired records so a late lookup
	// still sees the final outcome.
	settled map[string]TransactionStatus
	closed  bool
}

type mockTx struct {
	status TransactionStatus
	timers []*clock.Timer
}

type MockConfig struct {
	Clock  clock.Clock
	Logger *logrus.Logger
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64
	// SimulateNetwork adds small artificial delays to every call.
	SimulateNetwork bool
	// Retention is how long a finalized or failed record keeps its stage timers
	// before it is compacted to its terminal status.
	Retention time.Duration
}

func NewMock(cfg MockConfig) *Mock {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Seed == 0 {
		cfg.Seed = cfg.Clock.Now().UnixNano()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}

	return &Mock{
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		simulate:  cfg.SimulateNetwork,
		retention: cfg.Retention,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		txs:       make(map[string]*mockTx),
		settled:   make(map[string]TransactionStatus),
	}
}

func (m *Mock) Submit(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	if err := m.delay(ctx, 20, 50); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Transaction) == "" {
		return &SubmitResponse{Error: "transaction is required"}, nil
	}
	if req.PriorityLevel != "" && !req.PriorityLevel.Valid() {
		return &SubmitResponse{Error: fmt.Sprintf("invalid priority level %q", req.PriorityLevel)}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("raiku mock closed")
	}

	id := m.newIDLocked()
	now := m.clock.Now()
	resp := &SubmitResponse{
		Success:            true,
		PreConfirmationID:  id,
		EstimatedSlot:      slotAt(now) + 2,
		EstimatedLatencyMs: m.intnLocked(20, 50),
		BlockspaceReserved: true,
	}

	tx := &mockTx{status: TransactionStatus{PreConfirmationID: id, Status: StatusPending}}
	m.txs[id] = tx

	confirmAt := confirmAfterMin + time.Duration(m.rng.Int63n(int64(confirmJitter)))
	finalizeAt := finalizeAfter + time.Duration(m.rng.Int63n(int64(finalizeJitter)))
	tx.timers = append(tx.timers,
		m.clock.AfterFunc(preConfirmAfter, func() { m.preConfirm(id) }),
		m.clock.AfterFunc(confirmAt, func() { m.confirm(id) }),
		m.clock.AfterFunc(finalizeAt, func() { m.finalize(id) }),
	)

	m.logger.WithFields(logrus.Fields{
		"id":       id,
		"priority": req.PriorityLevel,
		"slot":     resp.EstimatedSlot,
	}).Debug("mock JIT submission accepted")

	return resp, nil
}

func (m *Mock) Status(ctx context.Context, id string) (*TransactionStatus, error) {
	if err := m.delay(ctx, 5, 15); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tx, ok := m.txs[id]; ok {
		return copyStatus(tx.status), nil
	}
	if st, ok := m.settled[id]; ok {
		return copyStatus(st), nil
	}
	return &TransactionStatus{PreConfirmationID: id, Status: StatusFailed, Error: ErrNotFound}, nil
}

func (m *Mock) EstimateLatency(ctx context.Context) (int64, error) {
	if err := m.delay(ctx, 5, 10); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.intnLocked(25, 45), nil
}

// Fail forces a transaction that has not been confirmed yet into the failed
// state. It reports false for unknown ids and for confirmed, finalized or
// already failed transactions.
func (m *Mock) Fail(id, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.status.Status.rank() >= StatusConfirmed.rank() {
		return false
	}
	for _, t := range tx.timers {
		t.Stop()
	}
	tx.timers = nil
	tx.status.Status = StatusFailed
	tx.status.Error = reason
	m.scheduleExpiryLocked(id, tx)
	return true
}

// Close stops every pending stage timer.
func (m *Mock) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, tx := range m.txs {
		for _, t := range tx.timers {
			t.Stop()
		}
	}
}

func (m *Mock) preConfirm(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.status.Status.rank() >= StatusPreConfirmed.rank() {
		return
	}
	ms := m.intnLocked(20, 50)
	tx.status.Status = StatusPreConfirmed
	tx.status.ConfirmationTimeMs = &ms
}

func (m *Mock) confirm(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.status.Status.rank() >= StatusConfirmed.rank() {
		return
	}
	sig := make([]byte, 64)
	m.rng.Read(sig)
	slot := slotAt(m.clock.Now())

	tx.status.Status = StatusConfirmed
	tx.status.Signature = base58.Encode(sig)
	tx.status.Slot = &slot
}

func (m *Mock) finalize(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok || tx.status.Status != StatusConfirmed {
		return
	}
	tx.status.Status = StatusFinalized
	m.scheduleExpiryLocked(id, tx)
}

func (m *Mock) scheduleExpiryLocked(id string, tx *mockTx) {
	if m.closed {
		return
	}
	tx.timers = append(tx.timers, m.clock.AfterFunc(m.retention, func() { m.expire(id) }))
}

// expire drops the record's timers and keeps only its terminal status.
func (m *Mock) expire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[id]
	if !ok {
		return
	}
	m.settled[id] = *copyStatus(tx.status)
	delete(m.txs, id)
}

func (m *Mock) delay(ctx context.Context, minMs, maxMs int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !m.simulate {
		return nil
	}
	m.mu.Lock()
	d := time.Duration(m.intnLocked(minMs, maxMs)) * time.Millisecond
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.clock.After(d):
		return nil
	}
}

func (m *Mock) newIDLocked() string {
	var b strings.Builder
	b.WriteString(idPrefix)
	for i := 0; i < idLength; i++ {
		b.WriteByte(idAlphabet[m.rng.Intn(len(idAlphabet))])
	}
	return b.String()
}

// intnLocked returns a value in [min, max).
func (m *Mock) intnLocked(min, max int64) int64 {
	return min + m.rng.Int63n(max-min)
}

func slotAt(t time.Time) uint64 {
	return uint64(t.UnixMilli() / slotDuration.Milliseconds())
}

func copyStatus(s TransactionStatus) *TransactionStatus {
	out := s
	if s.Slot != nil {
		v := *s.Slot
		out.Slot = &v
	}
	if s.ConfirmationTimeMs != nil {
		v := *s.ConfirmationTimeMs
		out.ConfirmationTimeMs = &v
	}
	return &out
}
