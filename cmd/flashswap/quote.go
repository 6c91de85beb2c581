package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/config"
	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/swap"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <from-token> <to-token>",
	Short: "Price a swap without submitting it",
	Long: `Fetch the best Jupiter route for a swap and show the expected output.

Tokens are popular symbols (SOL, USDC, USDT, BONK, JUP) or mint addresses.

Examples:
  flashswap quote 1.5 SOL USDC
  flashswap quote 100 USDC to BONK --slippage-bps 100`,
	Args: cobra.RangeArgs(3, 4),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

// quoteOutput is the --json shape shared by quote and swap.
type quoteOutput struct {
	InputMint      string   `json:"input_mint"`
	InputSymbol    string   `json:"input_symbol"`
	OutputMint     string   `json:"output_mint"`
	OutputSymbol   string   `json:"output_symbol"`
	AmountIn       string   `json:"amount_in"`
	AmountOut      string   `json:"amount_out"`
	MinimumOut     string   `json:"minimum_out"`
	Rate           string   `json:"rate"`
	PriceImpactPct float64  `json:"price_impact_pct"`
	SlippageBps    int      `json:"slippage_bps"`
	Route          []string `json:"route"`
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	provider := newProvider(cfg, logger)
	defer closeProvider(provider)

	jup := newJupiter(cfg)
	sess := newSession()
	orch, err := swap.New(swap.Config{
		Quotes:             jup,
		Submitter:          provider,
		OnChange:           sess.observe,
		Logger:             logger,
		Debounce:           cfg.QuoteDebounce,
		QuoteTimeout:       cfg.QuoteTimeout,
		DefaultSlippageBps: cfg.DefaultSlippageBps,
	})
	if err != nil {
		return err
	}
	defer orch.Close()
	sess.orch = orch

	snap, err := fetchQuote(cmd, cfg, sess, jup, args)
	if err != nil {
		return err
	}
	return printQuote(cmd, snap)
}

// fetchQuote feeds the pair into the orchestrator and waits for the debounced
// quote, with a spinner on interactive output.
func fetchQuote(cmd *cobra.Command, cfg *config.Config, sess *session, jup *jupiter.Client, args []string) (swap.Snapshot, error) {
	amount, from, to, err := parsePairArgs(args)
	if err != nil {
		return swap.Snapshot{}, err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QuoteDebounce+cfg.QuoteTimeout+2*time.Second)
	defer cancel()

	in, err := resolveToken(ctx, jup, from)
	if err != nil {
		return swap.Snapshot{}, err
	}
	out, err := resolveToken(ctx, jup, to)
	if err != nil {
		return swap.Snapshot{}, err
	}
	if in.Address == out.Address {
		return swap.Snapshot{}, fmt.Errorf("cannot swap %s for itself", in.Symbol)
	}
	if _, err := tokens.ToBaseUnits(amount, in.Decimals); err != nil {
		return swap.Snapshot{}, fmt.Errorf("invalid amount %q for %s: %w", amount, in.Symbol, err)
	}

	if !jsonOutput(cmd) && tokens.IsHighSlippage(cfg.DefaultSlippageBps) {
		color.Yellow("Warning: high slippage tolerance (%s). You may receive much less than quoted.", tokens.FormatSlippage(cfg.DefaultSlippageBps))
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = cmd.ErrOrStderr()
	if !jsonOutput(cmd) {
		s.Suffix = fmt.Sprintf(" Fetching quote for %s %s -> %s...", amount, in.Symbol, out.Symbol)
		s.Start()
	}

	sess.orch.SetInputToken(in)
	sess.orch.SetOutputToken(out)
	sess.orch.SetSlippageBps(cfg.DefaultSlippageBps)
	sess.orch.SetInputAmount(amount)

	snap, err := sess.waitQuote(ctx)
	if !jsonOutput(cmd) {
		s.Stop()
	}
	return snap, err
}

func newQuoteOutput(snap swap.Snapshot) quoteOutput {
	in, out, q := snap.Input.InputToken, snap.Input.OutputToken, snap.Input.Quote

	amountIn, _ := decimal.NewFromString(snap.Input.InputAmount)
	amountOut, _ := decimal.NewFromString(snap.Input.OutputAmount)
	rate := decimal.Zero
	if !amountIn.IsZero() {
		rate = amountOut.DivRound(amountIn, out.Decimals)
	}
	// minimum received after the slippage tolerance
	minOut := amountOut.Mul(decimal.New(int64(10000-q.SlippageBps), -4)).RoundDown(out.Decimals)

	return quoteOutput{
		InputMint:      in.Address,
		InputSymbol:    in.Symbol,
		OutputMint:     out.Address,
		OutputSymbol:   out.Symbol,
		AmountIn:       snap.Input.InputAmount,
		AmountOut:      snap.Input.OutputAmount,
		MinimumOut:     minOut.StringFixed(out.Decimals),
		Rate:           rate.String(),
		PriceImpactPct: q.PriceImpactPct,
		SlippageBps:    q.SlippageBps,
		Route:          q.Route(),
	}
}

func printQuote(cmd *cobra.Command, snap swap.Snapshot) error {
	out := newQuoteOutput(snap)
	w := cmd.OutOrStdout()

	if jsonOutput(cmd) {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, color.GreenString("                     SWAP QUOTE"))
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "\n  From:           %s %s\n", out.AmountIn, color.YellowString(out.InputSymbol))
	fmt.Fprintf(w, "  To:             ~%s %s\n", out.AmountOut, color.YellowString(out.OutputSymbol))
	fmt.Fprintf(w, "  Minimum:        %s %s\n", out.MinimumOut, out.OutputSymbol)
	fmt.Fprintf(w, "  Rate:           1 %s = %s %s\n", out.InputSymbol, out.Rate, out.OutputSymbol)
	fmt.Fprintf(w, "  Price Impact:   %s\n", formatImpact(out.PriceImpactPct))
	fmt.Fprintf(w, "  Slippage:       %s\n", tokens.FormatSlippage(out.SlippageBps))
	if len(out.Route) > 0 {
		fmt.Fprintf(w, "  Route:          %s\n", strings.Join(out.Route, " -> "))
	}
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	return nil
}

// formatImpact colors the aggregator's price impact, already in percent.
func formatImpact(pct float64) string {
	s := fmt.Sprintf("%.2f%%", pct)
	switch {
	case pct > 5:
		return color.RedString(s)
	case pct > 1:
		return color.YellowString(s)
	default:
		return color.GreenString(s)
	}
}
