package main

import (
	"github.com/spf13/cobra"

	"github.com/devlongs/swapdesk/internal/config"
	"github.com/devlongs/swapdesk/internal/output"
)

var (
	cfgPath string
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "swapdesk",
	Short: "Swap and provide liquidity on a concentrated liquidity pool",
	Long: `swapdesk submits swaps and liquidity positions to a pool through its
manager contract, previews swap outputs with the quoter and follows the
pool's Mint and Swap events.

Examples:
  swapdesk status
  swapdesk quote 0.5
  swapdesk swap 0.5 --yes
  swapdesk swap 2500 --reverse
  swapdesk add-liquidity --lower 4545 --current 5000 --upper 5500 --amount0 1 --amount1 5000
  swapdesk events --follow`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Logging.Level = "debug"
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		output.Setup(loaded.Logging)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a config file (default ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
