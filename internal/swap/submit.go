package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/models"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/wallet"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	blockhashCommitment = "confirmed"
	recordTimeout       = 5 * time.Second

	errSubmissionFailed  = "JIT submission failed"
	errTransactionFailed = "Transaction failed"
)

// attempt remembers what was submitted so the outcome can be recorded.
type attempt struct {
	quote     *Quote
	input     Input
	wallet    string
	startedAt time.Time
}

// Submit starts a new attempt for the current quote. It returns false without
// side effects when no signer is configured, there is no quote, or the quote no
// longer matches the inputs. Any attempt still being tracked is abandoned.
// Signing and submission run on the caller's goroutine; polling continues in
// the background.
func (o *Orchestrator) Submit(ctx context.Context) bool {
	o.mu.Lock()
	if o.closed || o.signer == nil || o.input.Quote == nil {
		o.mu.Unlock()
		return false
	}
	if _, key, ok := o.quoteRequestLocked(); !ok || key != o.input.Quote.key {
		o.mu.Unlock()
		return false
	}

	o.stopPollingLocked()
	o.txGen++
	gen := o.txGen
	a := &attempt{
		quote:     o.input.Quote,
		input:     o.input,
		wallet:    o.signer.PublicKey().String(),
		startedAt: o.clock.Now(),
	}
	o.attempt = a
	o.tx = Transaction{Status: StatusSigning}
	o.unlockAndNotify()

	o.logger.WithFields(logrus.Fields{
		"pair":   a.input.InputToken.Symbol + "/" + a.input.OutputToken.Symbol,
		"amount": a.input.InputAmount,
		"wallet": a.wallet,
	}).Info("swap submission started")

	signed, err := o.buildAndSign(ctx, a)
	if err != nil {
		o.fail(gen, err.Error(), "")
		return true
	}

	if !o.transition(gen, func(tx *Transaction) bool {
		tx.Status = StatusSubmitting
		return true
	}) {
		return true
	}

	resp, err := o.submitter.Submit(ctx, raiku.SubmitRequest{
		Transaction:   signed,
		PriorityLevel: raiku.PriorityTurbo,
	})
	if err != nil {
		o.fail(gen, err.Error(), "")
		return true
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = errSubmissionFailed
		}
		o.fail(gen, msg, "")
		return true
	}

	o.mu.Lock()
	if gen != o.txGen {
		o.mu.Unlock()
		return true
	}
	o.tx.TrackingID = resp.PreConfirmationID
	o.tx.LatencyMs = int64Ptr(resp.EstimatedLatencyMs)
	pollCtx, cancel := context.WithCancel(o.ctx)
	o.pollCancel = cancel
	go o.poll(pollCtx, gen, resp.PreConfirmationID)
	o.unlockAndNotify()

	o.logger.WithFields(logrus.Fields{
		"tracking_id":          resp.PreConfirmationID,
		"estimated_slot":       resp.EstimatedSlot,
		"estimated_latency_ms": resp.EstimatedLatencyMs,
	}).Info("transaction submitted for pre-confirmation")
	return true
}

// buildAndSign fetches the unsigned swap transaction, refreshes its blockhash and
// signs it. The result is the base64 wire form.
func (o *Orchestrator) buildAndSign(ctx context.Context, a *attempt) (string, error) {
	payload, err := o.quotes.SwapTransaction(ctx, jupiter.SwapRequest{
		QuoteResponse:                 a.quote.Raw,
		UserPublicKey:                 a.wallet,
		ComputeUnitPriceMicroLamports: o.cuPrice,
	})
	if err != nil {
		return "", err
	}

	tx, err := wallet.DecodeTransaction(payload)
	if err != nil {
		return "", err
	}

	if o.blockhash != nil {
		hash, err := o.blockhash.GetLatestBlockhash(ctx, blockhashCommitment)
		if err != nil {
			return "", fmt.Errorf("failed to get latest blockhash: %w", err)
		}
		tx.Message.RecentBlockhash = hash
	}

	if err := o.signer.SignTransaction(ctx, tx); err != nil {
		return "", err
	}
	return wallet.EncodeTransaction(tx)
}

// Reset abandons the current attempt and returns to idle.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.stopPollingLocked()
	o.txGen++
	o.attempt = nil
	o.tx = Transaction{Status: StatusIdle}
	o.unlockAndNotify()
}

func (o *Orchestrator) stopPollingLocked() {
	if o.pollCancel != nil {
		o.pollCancel()
		o.pollCancel = nil
	}
}

// transition applies fn if gen is still the current attempt and the attempt is
// not terminal. fn reports whether it changed anything.
func (o *Orchestrator) transition(gen uint64, fn func(tx *Transaction) bool) bool {
	o.mu.Lock()
	if gen != o.txGen || o.tx.Status.Terminal() {
		o.mu.Unlock()
		return false
	}
	if !fn(&o.tx) {
		o.mu.Unlock()
		return true
	}
	o.unlockAndNotify()
	return true
}

func (o *Orchestrator) fail(gen uint64, msg, trackingID string) {
	o.mu.Lock()
	if gen != o.txGen || o.tx.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	o.stopPollingLocked()
	o.tx.Status = StatusFailed
	o.tx.Error = msg
	if trackingID != "" {
		o.tx.TrackingID = trackingID
	}
	rec := o.recordLocked()
	o.unlockAndNotify()

	o.logger.WithFields(logrus.Fields{
		"tracking_id": trackingID,
		"error":       msg,
	}).Warn("swap failed")
	o.record(rec)
}

// poll asks the provider for the attempt's status right away and then on every
// tick until a terminal status or cancellation.
func (o *Orchestrator) poll(ctx context.Context, gen uint64, id string) {
	ticker := o.clock.Ticker(o.pollInterval)
	defer ticker.Stop()

	for {
		if o.pollOnce(ctx, gen, id) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce returns true once polling should stop.
func (o *Orchestrator) pollOnce(ctx context.Context, gen uint64, id string) bool {
	if ctx.Err() != nil {
		return true
	}
	st, err := o.submitter.Status(ctx, id)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		o.logger.WithError(err).WithField("tracking_id", id).Warn("status poll failed")
		return false
	}

	switch st.Status {
	case raiku.StatusPending:
		return false

	case raiku.StatusPreConfirmed:
		o.transition(gen, func(tx *Transaction) bool {
			if tx.Status != StatusSubmitting {
				return false
			}
			tx.Status = StatusPreConfirmed
			if st.ConfirmationTimeMs != nil {
				tx.LatencyMs = int64Ptr(*st.ConfirmationTimeMs)
			}
			return true
		})
		return false

	case raiku.StatusConfirmed, raiku.StatusFinalized:
		o.confirm(gen, st)
		return true

	case raiku.StatusFailed:
		msg := st.Error
		if msg == "" {
			msg = errTransactionFailed
		}
		o.fail(gen, msg, id)
		return true

	default:
		o.logger.WithFields(logrus.Fields{
			"tracking_id": id,
			"status":      st.Status,
		}).Warn("unknown status from submission provider")
		return false
	}
}

func (o *Orchestrator) confirm(gen uint64, st *raiku.TransactionStatus) {
	o.mu.Lock()
	if gen != o.txGen || o.tx.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	o.stopPollingLocked()
	o.tx.Status = StatusConfirmed
	o.tx.Signature = st.Signature
	if st.ConfirmationTimeMs != nil {
		o.tx.LatencyMs = int64Ptr(*st.ConfirmationTimeMs)
	}
	rec := o.recordLocked()
	o.unlockAndNotify()

	o.logger.WithFields(logrus.Fields{
		"tracking_id": st.PreConfirmationID,
		"signature":   st.Signature,
		"status":      st.Status,
	}).Info("swap confirmed")
	o.record(rec)
}

func (o *Orchestrator) recordLocked() *models.SwapRecord {
	a := o.attempt
	if o.recorder == nil || a == nil {
		return nil
	}
	rec := &models.SwapRecord{
		ID:             uuid.NewString(),
		TrackingID:     o.tx.TrackingID,
		Signature:      o.tx.Signature,
		Status:         string(o.tx.Status),
		Error:          o.tx.Error,
		Wallet:         a.wallet,
		InputMint:      a.input.InputToken.Address,
		InputSymbol:    a.input.InputToken.Symbol,
		OutputMint:     a.input.OutputToken.Address,
		OutputSymbol:   a.input.OutputToken.Symbol,
		AmountIn:       a.input.InputAmount,
		AmountOut:      a.input.OutputAmount,
		SlippageBps:    a.quote.SlippageBps,
		PriceImpactPct: a.quote.PriceImpactPct,
		StartedAt:      a.startedAt,
		FinishedAt:     o.clock.Now(),
	}
	if o.tx.LatencyMs != nil {
		rec.LatencyMs = int64Ptr(*o.tx.LatencyMs)
	}
	return rec
}

func (o *Orchestrator) record(rec *models.SwapRecord) {
	if rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := o.recorder.Record(ctx, rec); err != nil {
		o.logger.WithError(err).WithField("tracking_id", rec.TrackingID).Warn("failed to record swap")
	}
}
