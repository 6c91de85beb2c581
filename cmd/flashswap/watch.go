package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/aman-zulfiqar/flash-swap/internal/history"
	"github.com/aman-zulfiqar/flash-swap/internal/models"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var watchRecent int64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream finished swaps from Redis as they happen",
	Long: `Print the most recent swaps recorded in Redis, then follow the live feed
until interrupted. Requires REDIS_ADDR to point at the same Redis the swaps
were recorded in.

Examples:
  flashswap watch
  flashswap watch --recent 20 --json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Int64Var(&watchRecent, "recent", 5, "Show this many recorded swaps before following")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	ctx := cmd.Context()

	client, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := history.NewRedisStore(client, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	live, err := store.Subscribe(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	asJSON := jsonOutput(cmd)

	if watchRecent > 0 {
		recent, err := store.Recent(ctx, watchRecent)
		if err != nil {
			return err
		}
		// oldest first so the feed reads top to bottom
		for i := len(recent) - 1; i >= 0; i-- {
			printRecord(out, recent[i], asJSON)
		}
	}

	if !asJSON {
		fmt.Fprintln(out, color.HiBlackString("-- following live swaps, Ctrl+C to stop --"))
	}
	for rec := range live {
		printRecord(out, rec, asJSON)
	}
	return nil
}

func printRecord(w io.Writer, rec *models.SwapRecord, asJSON bool) {
	if asJSON {
		data, err := json.Marshal(rec)
		if err == nil {
			fmt.Fprintln(w, string(data))
		}
		return
	}

	status := color.GreenString("%-9s", rec.Status)
	if !rec.Succeeded() {
		status = color.RedString("%-9s", rec.Status)
	}
	line := fmt.Sprintf("%s  %s  %s %s -> %s %s",
		rec.FinishedAt.Local().Format("15:04:05"),
		status,
		rec.AmountIn, rec.InputSymbol,
		rec.AmountOut, rec.OutputSymbol,
	)
	if rec.LatencyMs != nil {
		line += fmt.Sprintf("  %dms", *rec.LatencyMs)
	}
	if rec.Signature != "" {
		line += "  " + color.HiBlackString(solscanTxURL+rec.Signature)
	}
	if rec.Error != "" {
		line += "  " + color.RedString(rec.Error)
	}
	fmt.Fprintln(w, line)
}
