package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devlongs/swapdesk/internal/contracts"
	"github.com/devlongs/swapdesk/internal/quote"
	"github.com/devlongs/swapdesk/pkg/units"
)

var quoteReverse bool

var quoteCmd = &cobra.Command{
	Use:   "quote <amount>",
	Short: "Preview the output of a swap",
	Long: `Preview how much of the output token a swap of <amount> returns.
By default token0 is sold for token1; --reverse sells token1.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().BoolVarP(&quoteReverse, "reverse", "r", false, "Sell token1 for token0")
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	amount := args[0]
	if units.IsZero(amount) {
		return fmt.Errorf("amount must be positive")
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	zeroForOne := !quoteReverse
	pool := a.contracts.Pool

	done := make(chan quote.Snapshot, 1)
	engine := quote.NewEngine(contracts.NewQuoter(a.contracts.Quoter, a.client), quote.Config{
		Debounce:  cfg.Quote.Debounce,
		Timeout:   cfg.Quote.Timeout,
		Decimals0: pool.Token0.Decimals,
		Decimals1: pool.Token1.Decimals,
		OnChange: func(s quote.Snapshot) {
			if !s.Loading && s.Pair.Output != "" {
				select {
				case done <- s:
				default:
				}
			}
		},
	})
	defer engine.Close()
	engine.SetDirection(zeroForOne)

	snap, err := withSpinner("Fetching quote...", func() (quote.Snapshot, error) {
		if err := engine.RequestQuote(pool.Address, amount, zeroForOne); err != nil {
			return quote.Snapshot{}, err
		}
		select {
		case s := <-done:
			return s, nil
		case <-ctx.Done():
			return quote.Snapshot{}, ctx.Err()
		}
	})
	if err != nil {
		return err
	}

	if snap.Pair.Output == quote.FailedOutput {
		color.Red("Quote failed, run with --verbose for the cause")
		return nil
	}

	fmt.Printf("  %s %s -> %s %s\n",
		snap.Pair.Input, color.YellowString(pool.TokenIn(zeroForOne).Symbol),
		snap.Pair.Output, color.YellowString(pool.TokenOut(zeroForOne).Symbol))
	return nil
}
