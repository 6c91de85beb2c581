package swap

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/models"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/wallet"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testPollInterval = 100 * time.Millisecond

var testBlockhash = solana.Hash(solana.NewWallet().PublicKey())

func quoteResponse(in, out string) *jupiter.QuoteResponse {
	raw := fmt.Sprintf(`{"inAmount":%q,"outAmount":%q,"priceImpactPct":"0.0012","slippageBps":50,"routePlan":[{"swapInfo":{"ammKey":"amm1","label":"Orca"},"percent":100}]}`, in, out)
	var resp jupiter.QuoteResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		panic(err)
	}
	resp.Raw = json.RawMessage(raw)
	return &resp
}

type fakeQuotes struct {
	mu       sync.Mutex
	requests []jupiter.QuoteRequest
	returned int
	swaps    []jupiter.SwapRequest

	quoteFn func(req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	swapFn  func(req jupiter.SwapRequest) (string, error)
}

func (f *fakeQuotes) Quote(_ context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.quoteFn
	f.mu.Unlock()

	resp, err := fn(req)

	f.mu.Lock()
	f.returned++
	f.mu.Unlock()
	return resp, err
}

func (f *fakeQuotes) SwapTransaction(_ context.Context, req jupiter.SwapRequest) (string, error) {
	f.mu.Lock()
	f.swaps = append(f.swaps, req)
	fn := f.swapFn
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeQuotes) Requests() []jupiter.QuoteRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]jupiter.QuoteRequest(nil), f.requests...)
}

func (f *fakeQuotes) Returned() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.returned
}

// unsignedSwap builds a base64 transaction paying from payer, shaped like the
// payload Jupiter returns.
func unsignedSwap(t *testing.T, payer solana.PublicKey) string {
	t.Helper()

	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], 5000)
	ix := solana.NewInstruction(solana.SystemProgramID, []*solana.AccountMeta{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: solana.NewWallet().PublicKey(), IsWritable: true},
	}, data)

	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(payer))
	require.NoError(t, err)
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	out, err := wallet.EncodeTransaction(tx)
	require.NoError(t, err)
	return out
}

type fixedBlockhash struct{}

func (fixedBlockhash) GetLatestBlockhash(context.Context, string) (solana.Hash, error) {
	return testBlockhash, nil
}

type rejectingSigner struct{ pub solana.PublicKey }

func (s rejectingSigner) PublicKey() solana.PublicKey { return s.pub }

func (s rejectingSigner) SignTransaction(context.Context, *solana.Transaction) error {
	return fmt.Errorf("user rejected the request")
}

// fakeProvider is a scripted submission provider.
type fakeProvider struct {
	mu        sync.Mutex
	submits   []raiku.SubmitRequest
	submitFn  func(n int) (*raiku.SubmitResponse, error)
	statusFn  func(id string, n int) (*raiku.TransactionStatus, error)
	statusCnt map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		submitFn: func(n int) (*raiku.SubmitResponse, error) {
			return &raiku.SubmitResponse{
				Success:            true,
				PreConfirmationID:  fmt.Sprintf("raiku_%d", n+1),
				EstimatedLatencyMs: 30,
				BlockspaceReserved: true,
			}, nil
		},
		statusFn: func(id string, _ int) (*raiku.TransactionStatus, error) {
			return &raiku.TransactionStatus{PreConfirmationID: id, Status: raiku.StatusPending}, nil
		},
		statusCnt: map[string]int{},
	}
}

func (p *fakeProvider) Submit(_ context.Context, req raiku.SubmitRequest) (*raiku.SubmitResponse, error) {
	p.mu.Lock()
	n := len(p.submits)
	p.submits = append(p.submits, req)
	fn := p.submitFn
	p.mu.Unlock()
	return fn(n)
}

func (p *fakeProvider) Status(_ context.Context, id string) (*raiku.TransactionStatus, error) {
	p.mu.Lock()
	n := p.statusCnt[id]
	p.statusCnt[id] = n + 1
	fn := p.statusFn
	p.mu.Unlock()
	return fn(id, n)
}

func (p *fakeProvider) EstimateLatency(context.Context) (int64, error) { return 30, nil }

func (p *fakeProvider) StatusCalls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCnt[id]
}

// spyProvider counts calls made to a real provider.
type spyProvider struct {
	raiku.Provider

	mu       sync.Mutex
	submits  []raiku.SubmitRequest
	statuses int
}

func (s *spyProvider) Submit(ctx context.Context, req raiku.SubmitRequest) (*raiku.SubmitResponse, error) {
	s.mu.Lock()
	s.submits = append(s.submits, req)
	s.mu.Unlock()
	return s.Provider.Submit(ctx, req)
}

func (s *spyProvider) Status(ctx context.Context, id string) (*raiku.TransactionStatus, error) {
	s.mu.Lock()
	s.statuses++
	s.mu.Unlock()
	return s.Provider.Status(ctx, id)
}

func (s *spyProvider) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*models.SwapRecord
}

func (r *fakeRecorder) Record(_ context.Context, rec *models.SwapRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeRecorder) Records() []*models.SwapRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.SwapRecord(nil), r.records...)
}

type harness struct {
	t        *testing.T
	clk      *clock.Mock
	quotes   *fakeQuotes
	wallet   *wallet.Wallet
	recorder *fakeRecorder
	orch     *Orchestrator

	mu    sync.Mutex
	snaps []Snapshot
}

func newHarness(t *testing.T, provider raiku.Provider, opts ...func(*Config)) *harness {
	t.Helper()

	priv, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	w := wallet.FromPrivateKey(priv)

	h := &harness{
		t:        t,
		clk:      clock.NewMock(),
		wallet:   w,
		recorder: &fakeRecorder{},
	}
	payload := unsignedSwap(t, w.PublicKey())
	h.quotes = &fakeQuotes{
		quoteFn: func(req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
			return quoteResponse(req.Amount, "225123456"), nil
		},
		swapFn: func(jupiter.SwapRequest) (string, error) { return payload, nil },
	}

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	cfg := Config{
		Quotes:       h.quotes,
		Submitter:    provider,
		Signer:       w,
		Blockhash:    fixedBlockhash{},
		Recorder:     h.recorder,
		Clock:        h.clk,
		Logger:       logger,
		PollInterval: testPollInterval,
		OnChange: func(s Snapshot) {
			h.mu.Lock()
			h.snaps = append(h.snaps, s)
			h.mu.Unlock()
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	h.orch, err = New(cfg)
	require.NoError(t, err)
	t.Cleanup(h.orch.Close)
	return h
}

func (h *harness) snapshotCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snaps)
}

// statuses lists transaction statuses in the order they were observed, with
// consecutive duplicates collapsed.
func (h *harness) statuses() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Status
	for _, s := range h.snaps {
		st := s.Transaction.Status
		if len(out) == 0 || out[len(out)-1] != st {
			out = append(out, st)
		}
	}
	return out
}

// quoteFor sets an amount and waits for the debounced quote to land.
func (h *harness) quoteFor(amount string) Snapshot {
	h.t.Helper()
	h.orch.SetInputAmount(amount)
	h.clk.Add(DefaultDebounce)
	var snap Snapshot
	require.Eventually(h.t, func() bool {
		snap = h.orch.Snapshot()
		return snap.Input.Quote != nil
	}, time.Second, 2*time.Millisecond)
	return snap
}

// waitStatus advances virtual time one poll interval at a time until want is reached.
func (h *harness) waitStatus(want Status) Snapshot {
	h.t.Helper()
	var snap Snapshot
	require.Eventually(h.t, func() bool {
		snap = h.orch.Snapshot()
		if snap.Transaction.Status == want {
			return true
		}
		h.clk.Add(10 * time.Millisecond)
		return false
	}, 5*time.Second, 2*time.Millisecond, "waiting for %s", want)
	return snap
}
