package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var tokensCmd = &cobra.Command{
	Use:   "tokens [query]",
	Short: "List popular tokens or search Jupiter's verified list",
	Long: `Without a query, list the popular tokens that can be used by symbol.
With a query, search Jupiter's verified token list by symbol or name.

Examples:
  flashswap tokens
  flashswap tokens wif`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)
}

func runTokens(cmd *cobra.Command, args []string) error {
	list := tokens.Popular()

	if len(args) == 1 {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = cmd.ErrOrStderr()
		if !jsonOutput(cmd) {
			s.Suffix = " Searching tokens..."
			s.Start()
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.HTTPTimeout)
		defer cancel()
		list, err = newJupiter(cfg).SearchTokens(ctx, args[0])
		if !jsonOutput(cmd) {
			s.Stop()
		}
		if err != nil {
			return fmt.Errorf("token search failed: %w", err)
		}
	}

	if jsonOutput(cmd) {
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	printTokens(cmd.OutOrStdout(), list)
	return nil
}

func printTokens(w io.Writer, list []tokens.Token) {
	if len(list) == 0 {
		fmt.Fprintln(w, color.YellowString("No tokens found."))
		return
	}
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 80))
	fmt.Fprintf(w, "  %-8s %-24s %-8s %s\n", "SYMBOL", "NAME", "DECIMALS", "MINT")
	fmt.Fprintln(w, strings.Repeat("=", 80))
	for _, t := range list {
		fmt.Fprintf(w, "  %-8s %-24s %-8d %s\n", color.YellowString("%-8s", t.Symbol), truncate(t.Name, 24), t.Decimals, color.HiBlackString(t.Address))
	}
	fmt.Fprintln(w)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
