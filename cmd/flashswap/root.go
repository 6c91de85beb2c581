package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flashswap",
	Short: "Swap Solana tokens through Jupiter with JIT block inclusion",
	Long: `flashswap quotes a token swap on Jupiter, signs it with your local keypair
and submits it through the Raiku JIT service, following the transaction
until it is confirmed or fails.

Examples:
  flashswap quote 1.5 SOL USDC
  flashswap swap 1.5 SOL to USDC --slippage-bps 100
  flashswap tokens bonk
  flashswap status raiku_AbC... --watch
  flashswap watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default .flashswap.yaml in $HOME or the working directory)")
	rootCmd.PersistentFlags().Int("slippage-bps", 0, "Slippage tolerance in basis points (default from config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// newLogger keeps library logs quiet unless --verbose is set.
func newLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.ErrorLevel)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "\n%s %v\n\n", color.RedString("Error:"), err)
}
