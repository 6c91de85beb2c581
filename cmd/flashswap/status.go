package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	watchStatus   bool
	watchInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <tracking-id>",
	Short: "Check the JIT status of a submitted transaction",
	Long: `Look up a transaction by the Raiku pre-confirmation id printed by "swap".

The built-in mock provider only knows transactions submitted by the same
process; point RAIKU_STATUS_ENDPOINT at a running flashswap API (or Raiku
itself) and set USE_MOCK_RAIKU=false to check from another shell.

Examples:
  flashswap status raiku_AbC...
  flashswap status raiku_AbC... --watch --interval 1s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Poll until the transaction settles")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Polling interval when watching")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	id := strings.TrimSpace(args[0])

	provider := newProvider(cfg, logger)
	defer closeProvider(provider)

	if watchStatus {
		if jsonOutput(cmd) {
			return errors.New("watch mode is not supported with JSON output")
		}
		return watchTransaction(cmd.Context(), cmd.OutOrStdout(), provider, id, watchInterval)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = cmd.ErrOrStderr()
	if !jsonOutput(cmd) {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
	defer cancel()
	st, err := provider.Status(ctx, id)
	if !jsonOutput(cmd) {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if jsonOutput(cmd) {
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printStatus(cmd.OutOrStdout(), st)
	return nil
}

// watchTransaction polls immediately and then every interval until the status
// is final or ctx ends.
func watchTransaction(ctx context.Context, w io.Writer, p raiku.Provider, id string, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	fmt.Fprintf(w, "\nWatching %s every %s. Press Ctrl+C to stop.\n", color.CyanString(id), interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last raiku.Status
	for {
		st, err := p.Status(ctx, id)
		switch {
		case err != nil:
			fmt.Fprintln(w, color.RedString("Error: %v", err))
		case st.Status != last:
			last = st.Status
			printStatus(w, st)
			if settled(st.Status) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func settled(s raiku.Status) bool {
	return s == raiku.StatusFinalized || s == raiku.StatusFailed
}

func printStatus(w io.Writer, st *raiku.TransactionStatus) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(w, color.GreenString("                     TRANSACTION STATUS"))
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintf(w, "\n  Tracking ID:   %s\n", color.CyanString(st.PreConfirmationID))
	fmt.Fprintf(w, "  Status:        %s\n", coloredStatus(st.Status))
	if st.Slot != nil {
		fmt.Fprintf(w, "  Slot:          %d\n", *st.Slot)
	}
	if st.ConfirmationTimeMs != nil {
		fmt.Fprintf(w, "  Confirmed in:  %dms\n", *st.ConfirmationTimeMs)
	}
	if st.Signature != "" {
		fmt.Fprintf(w, "  Signature:     %s\n", color.HiBlackString(st.Signature))
		fmt.Fprintf(w, "  Explorer:      %s\n", solscanTxURL+st.Signature)
	}
	if st.Error != "" {
		fmt.Fprintf(w, "  Error:         %s\n", color.RedString(st.Error))
	}
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 70))
}

func coloredStatus(s raiku.Status) string {
	label := strings.ToUpper(string(s))
	switch s {
	case raiku.StatusConfirmed, raiku.StatusFinalized:
		return color.GreenString(label)
	case raiku.StatusPending, raiku.StatusPreConfirmed:
		return color.YellowString(label)
	case raiku.StatusFailed:
		return color.RedString(label)
	default:
		return label
	}
}
