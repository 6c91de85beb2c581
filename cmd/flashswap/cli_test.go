package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/swap"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestParsePairArgs(t *testing.T) {
	amount, from, to, err := parsePairArgs([]string{"1.5", "SOL", "USDC"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1.5", "SOL", "USDC"}, []string{amount, from, to})

	amount, from, to, err = parsePairArgs([]string{"2", "usdc", "TO", "bonk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "usdc", "bonk"}, []string{amount, from, to})

	_, _, _, err = parsePairArgs([]string{"2", "usdc", "into", "bonk"})
	assert.Error(t, err)
	_, _, _, err = parsePairArgs([]string{"2", "usdc"})
	assert.Error(t, err)
}

func TestResolveToken_Popular(t *testing.T) {
	jup := jupiter.NewClient("http://127.0.0.1:1", "")

	tok, err := resolveToken(context.Background(), jup, "sol")
	require.NoError(t, err)
	assert.Equal(t, tokens.SOL, *tok)

	tok, err = resolveToken(context.Background(), jup, tokens.MintUSDC)
	require.NoError(t, err)
	assert.Equal(t, "USDC", tok.Symbol)

	_, err = resolveToken(context.Background(), jup, "not-a-token")
	assert.ErrorContains(t, err, "unknown token")
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().Int("slippage-bps", 0, "")
	return cmd
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashswap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
slippage_bps: 300
jupiter_base_url: http://localhost:9999
use_mock_raiku: true
transaction_timeout: 90s
`), 0o600))

	cmd := newConfigCmd()
	require.NoError(t, cmd.Flags().Set("config", path))
	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.DefaultSlippageBps)
	assert.Equal(t, "http://localhost:9999", cfg.JupiterBaseURL)
	assert.True(t, cfg.UseMockRaiku)
	assert.Equal(t, 90*time.Second, cfg.TransactionTimeout)

	cmd = newConfigCmd()
	require.NoError(t, cmd.Flags().Set("config", path))
	require.NoError(t, cmd.Flags().Set("slippage-bps", "100"))
	cfg, err = loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.DefaultSlippageBps, "flag wins over file")
}

func TestLoadConfig_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flashswap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slippage_bps: 9000\n"), 0o600))
	cmd := newConfigCmd()
	require.NoError(t, cmd.Flags().Set("config", path))
	_, err := loadConfig(cmd)
	assert.ErrorContains(t, err, "DEFAULT_SLIPPAGE_BPS")
}

type stubQuotes struct {
	resp *jupiter.QuoteResponse
	err  error
}

func (s stubQuotes) Quote(context.Context, jupiter.QuoteRequest) (*jupiter.QuoteResponse, error) {
	return s.resp, s.err
}

func (s stubQuotes) SwapTransaction(context.Context, jupiter.SwapRequest) (string, error) {
	return "", errors.New("not used")
}

func startSession(t *testing.T, quotes swap.QuoteProvider) *session {
	t.Helper()
	mock := raiku.NewMock(raiku.MockConfig{Clock: clock.New()})
	t.Cleanup(mock.Close)

	sess := newSession()
	orch, err := swap.New(swap.Config{
		Quotes:    quotes,
		Submitter: mock,
		OnChange:  sess.observe,
		Debounce:  time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(orch.Close)
	sess.orch = orch
	return sess
}

func TestSession_WaitQuote(t *testing.T) {
	sess := startSession(t, stubQuotes{resp: &jupiter.QuoteResponse{
		InAmount:       "1500000000",
		OutAmount:      "225123456",
		PriceImpactPct: "0.12",
		RoutePlan: []jupiter.RoutePlanStep{
			{SwapInfo: jupiter.SwapInfo{Label: "Whirlpool"}},
			{SwapInfo: jupiter.SwapInfo{Label: "Raydium"}},
		},
	}})
	sess.orch.SetSlippageBps(100)
	sess.orch.SetInputAmount("1.5")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := sess.waitQuote(ctx)
	require.NoError(t, err)
	assert.Equal(t, "225.123456", snap.Input.OutputAmount)

	out := newQuoteOutput(snap)
	assert.Equal(t, "SOL", out.InputSymbol)
	assert.Equal(t, "USDC", out.OutputSymbol)
	assert.Equal(t, "150.082304", out.Rate)
	assert.Equal(t, "222.872221", out.MinimumOut)
	assert.Equal(t, []string{"Whirlpool", "Raydium"}, out.Route)
	assert.Equal(t, 100, out.SlippageBps)
}

func TestSession_WaitQuoteFailure(t *testing.T) {
	sess := startSession(t, stubQuotes{err: errors.New("jupiter http 500")})
	sess.orch.SetInputAmount("1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := sess.waitQuote(ctx)
	assert.ErrorIs(t, err, errQuoteFailed)
}

func TestSession_WaitTimesOut(t *testing.T) {
	sess := startSession(t, stubQuotes{})
	// incomplete input never issues a request
	sess.orch.SetInputAmount("0")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sess.waitQuote(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPrintOutcome(t *testing.T) {
	latency := int64(42)
	var buf bytes.Buffer
	printOutcome(&buf, swap.Transaction{
		Status:     swap.StatusConfirmed,
		TrackingID: "raiku_x",
		Signature:  "5abc",
		LatencyMs:  &latency,
	})
	assert.Contains(t, buf.String(), "Swap confirmed")
	assert.Contains(t, buf.String(), "42ms")
	assert.Contains(t, buf.String(), "https://solscan.io/tx/5abc")

	buf.Reset()
	printOutcome(&buf, swap.Transaction{Status: swap.StatusFailed, Error: "Transaction failed"})
	assert.Contains(t, buf.String(), "Swap failed: Transaction failed")
	assert.NotContains(t, buf.String(), "Tracking ID")
}

func TestConfirmSwap(t *testing.T) {
	var out bytes.Buffer
	assert.True(t, confirmSwap(bytes.NewBufferString("y\n"), &out))
	assert.True(t, confirmSwap(bytes.NewBufferString(" YES \n"), &out))
	assert.False(t, confirmSwap(bytes.NewBufferString("\n"), &out))
	assert.False(t, confirmSwap(bytes.NewBufferString(""), &out))
}

func TestWatchTransaction_StopsWhenSettled(t *testing.T) {
	mock := raiku.NewMock(raiku.MockConfig{Clock: clock.New()})
	t.Cleanup(mock.Close)

	resp, err := mock.Submit(context.Background(), raiku.SubmitRequest{Transaction: "AQID"})
	require.NoError(t, err)
	require.True(t, mock.Fail(resp.PreConfirmationID, "blockhash expired"))

	var buf bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, watchTransaction(ctx, &buf, mock, resp.PreConfirmationID, 10*time.Millisecond))
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "blockhash expired")
	assert.NoError(t, ctx.Err(), "returned before the deadline")
}
