// Package swap owns the swap input state, the debounced quote refresh and the
// submit -> track -> resolve state machine for one in-flight transaction.
package swap

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/models"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"

	"github.com/benbjohnson/clock"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultDebounce     = 500 * time.Millisecond
	DefaultQuoteTimeout = 10 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// QuoteProvider prices a swap and builds its unsigned transaction.
type QuoteProvider interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
	SwapTransaction(ctx context.Context, req jupiter.SwapRequest) (string, error)
}

// Signer signs a transaction whose fee payer is PublicKey.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error)
}

// Recorder receives the outcome of every attempt that reaches a terminal state.
type Recorder interface {
	Record(ctx context.Context, rec *models.SwapRecord) error
}

type Config struct {
	Quotes    QuoteProvider
	Submitter raiku.Provider
	Signer    Signer          // optional; Submit is a no-op without one
	Blockhash BlockhashSource // optional; keeps the payload's blockhash when nil
	Recorder  Recorder        // optional

	// OnChange is called after every state change with a fresh snapshot. It runs
	// outside the state lock but must not call back into the Orchestrator.
	OnChange func(Snapshot)

	Clock  clock.Clock
	Logger *logrus.Logger

	Debounce                      time.Duration
	QuoteTimeout                  time.Duration
	PollInterval                  time.Duration
	DefaultSlippageBps            int
	ComputeUnitPriceMicroLamports uint64
}

type Orchestrator struct {
	quotes    QuoteProvider
	submitter raiku.Provider
	signer    Signer
	blockhash BlockhashSource
	recorder  Recorder
	onChange  func(Snapshot)
	clock     clock.Clock
	logger    *logrus.Logger

	debounceWindow time.Duration
	quoteTimeout   time.Duration
	pollInterval   time.Duration
	cuPrice        uint64

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	notifyMu    sync.Mutex
	input       Input
	quoteGen    uint64
	debounce    *clock.Timer
	quoteCancel context.CancelFunc
	tx          Transaction
	txGen       uint64
	pollCancel  context.CancelFunc
	attempt     *attempt
	closed      bool
}

func New(cfg Config) (*Orchestrator, error) {
	if cfg.Quotes == nil {
		return nil, fmt.Errorf("quote provider is required")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("submission provider is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = DefaultQuoteTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.DefaultSlippageBps <= 0 {
		cfg.DefaultSlippageBps = tokens.SlippagePresets[0]
	}

	ctx, cancel := context.WithCancel(context.Background())
	in, out := tokens.SOL, tokens.USDC

	return &Orchestrator{
		quotes:         cfg.Quotes,
		submitter:      cfg.Submitter,
		signer:         cfg.Signer,
		blockhash:      cfg.Blockhash,
		recorder:       cfg.Recorder,
		onChange:       cfg.OnChange,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		debounceWindow: cfg.Debounce,
		quoteTimeout:   cfg.QuoteTimeout,
		pollInterval:   cfg.PollInterval,
		cuPrice:        cfg.ComputeUnitPriceMicroLamports,
		ctx:            ctx,
		cancel:         cancel,
		input: Input{
			InputToken:  &in,
			OutputToken: &out,
			SlippageBps: cfg.DefaultSlippageBps,
		},
		tx: Transaction{Status: StatusIdle},
	}, nil
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{Input: o.input, Transaction: o.tx.clone()}
}

func (o *Orchestrator) SetInputToken(t *tokens.Token) {
	o.mutate(func(in *Input) {
		in.InputToken = t
		in.OutputAmount = ""
	})
}

func (o *Orchestrator) SetOutputToken(t *tokens.Token) {
	o.mutate(func(in *Input) {
		in.OutputToken = t
		in.OutputAmount = ""
	})
}

func (o *Orchestrator) SetInputAmount(amount string) {
	o.mutate(func(in *Input) {
		in.InputAmount = amount
		in.OutputAmount = ""
	})
}

func (o *Orchestrator) SetSlippageBps(bps int) {
	o.mutate(func(in *Input) {
		in.SlippageBps = bps
		in.OutputAmount = ""
	})
}

// SwitchTokens swaps both sides, moving the derived output amount into the input.
func (o *Orchestrator) SwitchTokens() {
	o.mutate(func(in *Input) {
		in.InputToken, in.OutputToken = in.OutputToken, in.InputToken
		in.InputAmount, in.OutputAmount = in.OutputAmount, in.InputAmount
	})
}

// mutate applies an input change, drops the current quote and re-arms the debounce.
func (o *Orchestrator) mutate(apply func(in *Input)) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}

	apply(&o.input)
	o.input.Quote = nil
	o.input.QuoteLoading = false
	o.quoteGen++
	o.stopQuoteLocked()

	if req, key, ok := o.quoteRequestLocked(); ok {
		gen := o.quoteGen
		o.debounce = o.clock.AfterFunc(o.debounceWindow, func() {
			o.fetchQuote(gen, req, key)
		})
	}

	o.unlockAndNotify()
}

func (o *Orchestrator) stopQuoteLocked() {
	if o.debounce != nil {
		o.debounce.Stop()
		o.debounce = nil
	}
	if o.quoteCancel != nil {
		o.quoteCancel()
		o.quoteCancel = nil
	}
}

// quoteRequestLocked builds the request for the current inputs. ok is false when
// the inputs are incomplete and no quote should be fetched.
func (o *Orchestrator) quoteRequestLocked() (jupiter.QuoteRequest, quoteKey, bool) {
	in := o.input
	if in.InputToken == nil || in.OutputToken == nil {
		return jupiter.QuoteRequest{}, quoteKey{}, false
	}
	if in.InputToken.Address == in.OutputToken.Address {
		return jupiter.QuoteRequest{}, quoteKey{}, false
	}
	if in.SlippageBps <= 0 || in.SlippageBps > tokens.MaxBps {
		return jupiter.QuoteRequest{}, quoteKey{}, false
	}
	amount, err := tokens.ToBaseUnits(in.InputAmount, in.InputToken.Decimals)
	if err != nil {
		return jupiter.QuoteRequest{}, quoteKey{}, false
	}

	bps := uint16(in.SlippageBps)
	req := jupiter.QuoteRequest{
		InputMint:   in.InputToken.Address,
		OutputMint:  in.OutputToken.Address,
		Amount:      strconv.FormatUint(amount, 10),
		SlippageBps: &bps,
	}
	key := quoteKey{
		inputMint:   in.InputToken.Address,
		outputMint:  in.OutputToken.Address,
		amount:      amount,
		slippageBps: in.SlippageBps,
	}
	return req, key, true
}

func (o *Orchestrator) fetchQuote(gen uint64, req jupiter.QuoteRequest, key quoteKey) {
	o.mu.Lock()
	if o.closed || gen != o.quoteGen {
		o.mu.Unlock()
		return
	}
	ctx, cancel := o.clock.WithTimeout(o.ctx, o.quoteTimeout)
	defer cancel()
	o.quoteCancel = cancel
	o.debounce = nil
	o.input.QuoteLoading = true
	o.unlockAndNotify()

	resp, err := o.quotes.Quote(ctx, req)

	var q *Quote
	if err == nil {
		q, err = newQuote(resp, key)
	}

	o.mu.Lock()
	if o.closed || gen != o.quoteGen {
		o.mu.Unlock()
		o.logger.WithFields(logrus.Fields{
			"amount": req.Amount,
			"pair":   req.InputMint + "/" + req.OutputMint,
		}).Debug("discarding stale quote response")
		return
	}

	o.quoteCancel = nil
	o.input.QuoteLoading = false
	if err != nil {
		o.input.Quote = nil
		o.input.OutputAmount = ""
		o.unlockAndNotify()
		o.logger.WithError(err).WithFields(logrus.Fields{
			"input_mint":  req.InputMint,
			"output_mint": req.OutputMint,
			"amount":      req.Amount,
		}).Warn("quote fetch failed")
		return
	}

	o.input.Quote = q
	o.input.OutputAmount = tokens.FormatBaseUnits(q.OutAmount, o.input.OutputToken.Decimals)
	o.unlockAndNotify()
}

func newQuote(resp *jupiter.QuoteResponse, key quoteKey) (*Quote, error) {
	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}
	out, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid outAmount %q: %w", resp.OutAmount, err)
	}
	in := key.amount
	if resp.InAmount != "" {
		if in, err = strconv.ParseUint(resp.InAmount, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid inAmount %q: %w", resp.InAmount, err)
		}
	}
	var impact float64
	if resp.PriceImpactPct != "" {
		if impact, err = resp.PriceImpactPct.Float64(); err != nil {
			return nil, fmt.Errorf("invalid priceImpactPct %q: %w", resp.PriceImpactPct, err)
		}
	}

	return &Quote{
		InputMint:      key.inputMint,
		OutputMint:     key.outputMint,
		InAmount:       in,
		OutAmount:      out,
		PriceImpactPct: impact,
		SlippageBps:    key.slippageBps,
		RoutePlan:      resp.RoutePlan,
		Raw:            resp.Raw,
		key:            key,
	}, nil
}

// Close stops the debounce timer and any polling. Later calls are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	o.stopQuoteLocked()
	o.stopPollingLocked()
	o.txGen++
	o.cancel()
}

// unlockAndNotify releases mu and delivers a snapshot to OnChange. notifyMu is
// taken before mu is released so callbacks observe changes in order.
func (o *Orchestrator) unlockAndNotify() {
	if o.onChange == nil {
		o.mu.Unlock()
		return
	}
	snap := o.snapshotLocked()
	o.notifyMu.Lock()
	o.mu.Unlock()
	defer o.notifyMu.Unlock()
	o.onChange(snap)
}
