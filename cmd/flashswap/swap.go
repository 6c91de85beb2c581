package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/models"
	"github.com/aman-zulfiqar/flash-swap/internal/rpc"
	"github.com/aman-zulfiqar/flash-swap/internal/swap"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
	"github.com/aman-zulfiqar/flash-swap/internal/wallet"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const solscanTxURL = "https://solscan.io/tx/"

var swapYes bool

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <from-token> <to-token>",
	Short: "Quote, sign and submit a swap",
	Long: `Quote a swap on Jupiter, sign it with WALLET_PRIVATE_KEY and submit it
through Raiku JIT, then follow it until it is confirmed or fails.

Examples:
  flashswap swap 1.5 SOL USDC
  flashswap swap 250 USDC to JUP --slippage-bps 100 --yes`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.Flags().BoolVarP(&swapYes, "yes", "y", false, "Skip confirmation prompt")
}

// swapOutput is the --json result of a swap.
type swapOutput struct {
	Quote      quoteOutput `json:"quote"`
	Status     swap.Status `json:"status"`
	TrackingID string      `json:"tracking_id,omitempty"`
	Signature  string      `json:"signature,omitempty"`
	Error      string      `json:"error,omitempty"`
	LatencyMs  *int64      `json:"latency_ms,omitempty"`
}

// signalingRecorder reports when a record has been written so the process does
// not exit before history is flushed.
type signalingRecorder struct {
	inner swap.Recorder
	done  chan struct{}
}

func (r *signalingRecorder) Record(ctx context.Context, rec *models.SwapRecord) error {
	defer func() {
		select {
		case r.done <- struct{}{}:
		default:
		}
	}()
	return r.inner.Record(ctx, rec)
}

func runSwap(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	asJSON := jsonOutput(cmd)

	if asJSON && !swapYes {
		return errors.New("--json needs --yes, there is no interactive confirmation")
	}
	if strings.TrimSpace(cfg.WalletPrivateKey) == "" {
		return errors.New("WALLET_PRIVATE_KEY is required to sign swaps")
	}
	w, err := wallet.New(cfg.WalletPrivateKey)
	if err != nil {
		return err
	}

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCUrl,
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		Logger:       logger,
	})

	provider := newProvider(cfg, logger)
	defer closeProvider(provider)

	var recorder *signalingRecorder
	sink, closeHistory := openHistory(cmd.Context(), cfg, logger)
	defer closeHistory()

	jup := newJupiter(cfg)
	sess := newSession()
	swapCfg := swap.Config{
		Quotes:                        jup,
		Submitter:                     provider,
		Signer:                        w,
		Blockhash:                     rpcClient,
		OnChange:                      sess.observe,
		Logger:                        logger,
		Debounce:                      cfg.QuoteDebounce,
		QuoteTimeout:                  cfg.QuoteTimeout,
		PollInterval:                  cfg.StatusPollInterval,
		DefaultSlippageBps:            cfg.DefaultSlippageBps,
		ComputeUnitPriceMicroLamports: cfg.ComputeUnitPriceMicroLamports,
	}
	if sink != nil {
		recorder = &signalingRecorder{inner: sink, done: make(chan struct{}, 1)}
		swapCfg.Recorder = recorder
	}
	orch, err := swap.New(swapCfg)
	if err != nil {
		return err
	}
	defer orch.Close()
	sess.orch = orch

	snap, err := fetchQuote(cmd, cfg, sess, jup, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !asJSON {
		if err := printQuote(cmd, snap); err != nil {
			return err
		}
		fmt.Fprintf(out, "  Wallet:         %s\n", color.CyanString(w.Address()))
		balCtx, balCancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
		lamports, err := rpcClient.GetBalance(balCtx, w.PublicKey(), "")
		balCancel()
		if err != nil {
			logger.WithError(err).Debug("wallet balance lookup failed")
		} else {
			fmt.Fprintf(out, "  Balance:        %s SOL\n", tokens.FormatBaseUnits(lamports, tokens.SOL.Decimals))
		}
		if !swapYes && !confirmSwap(cmd.InOrStdin(), out) {
			fmt.Fprintln(out, "\nSwap cancelled.")
			return nil
		}
		sess.setOnStatus(func(s swap.Snapshot) { printStage(out, s.Transaction) })
	}

	if !orch.Submit(cmd.Context()) {
		return errors.New("the quote went stale before submission, run the swap again")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.TransactionTimeout)
	defer cancel()
	final, err := sess.waitSettled(ctx)
	if err != nil {
		orch.Reset()
		if final.Transaction.TrackingID != "" {
			return fmt.Errorf("transaction %s did not settle within %s; check later with `flashswap status %s`",
				final.Transaction.TrackingID, cfg.TransactionTimeout, final.Transaction.TrackingID)
		}
		return fmt.Errorf("transaction did not settle within %s", cfg.TransactionTimeout)
	}

	if recorder != nil {
		select {
		case <-recorder.done:
		case <-time.After(6 * time.Second):
			logger.Warn("timed out waiting for swap history")
		}
	}

	tx := final.Transaction
	if asJSON {
		data, err := json.MarshalIndent(swapOutput{
			Quote:      newQuoteOutput(snap),
			Status:     tx.Status,
			TrackingID: tx.TrackingID,
			Signature:  tx.Signature,
			Error:      tx.Error,
			LatencyMs:  tx.LatencyMs,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		printOutcome(out, tx)
	}

	if tx.Status == swap.StatusFailed {
		return fmt.Errorf("swap failed: %s", tx.Error)
	}
	return nil
}

func confirmSwap(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "\nProceed with swap? (y/N): ")
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func printStage(w io.Writer, tx swap.Transaction) {
	switch tx.Status {
	case swap.StatusSigning:
		fmt.Fprintln(w, color.HiBlackString("  > signing transaction"))
	case swap.StatusSubmitting:
		fmt.Fprintln(w, color.HiBlackString("  > submitting via Raiku JIT"))
	case swap.StatusPreConfirmed:
		msg := "  > pre-confirmed"
		if tx.LatencyMs != nil {
			msg += fmt.Sprintf(" in %dms", *tx.LatencyMs)
		}
		fmt.Fprintln(w, color.YellowString(msg))
	}
}

func printOutcome(w io.Writer, tx swap.Transaction) {
	fmt.Fprintln(w)
	switch tx.Status {
	case swap.StatusConfirmed:
		fmt.Fprintln(w, color.GreenString("Swap confirmed"))
		if tx.LatencyMs != nil {
			fmt.Fprintf(w, "  Latency:      %dms\n", *tx.LatencyMs)
		}
		fmt.Fprintf(w, "  Tracking ID:  %s\n", tx.TrackingID)
		if tx.Signature != "" {
			fmt.Fprintf(w, "  Signature:    %s\n", tx.Signature)
			fmt.Fprintf(w, "  Explorer:     %s\n", color.CyanString(solscanTxURL+tx.Signature))
		}
	case swap.StatusFailed:
		fmt.Fprintln(w, color.RedString("Swap failed: %s", tx.Error))
		if tx.TrackingID != "" {
			fmt.Fprintf(w, "  Tracking ID:  %s\n", tx.TrackingID)
		}
	}
	fmt.Fprintln(w)
}
