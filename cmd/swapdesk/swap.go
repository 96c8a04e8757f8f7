package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devlongs/swapdesk/internal/executor"
)

var (
	swapReverse bool
	noConfirm   bool
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount>",
	Short: "Swap tokens through the manager",
	Long: `Sell <amount> of the input token. token0 is the input unless --reverse
is given. Missing allowances are approved before the swap is sent.

Examples:
  swapdesk swap 0.5
  swapdesk swap 2500 --reverse --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)
	swapCmd.Flags().BoolVarP(&swapReverse, "reverse", "r", false, "Sell token1 for token0")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
}

func runSwap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	amount := args[0]
	zeroForOne := !swapReverse

	a, err := newApp(ctx, cfg, !noConfirm)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	a.printer.Status(s.Status)

	tokenIn := s.Pool.TokenIn(zeroForOne)
	fmt.Printf("  Selling %s %s for %s\n", amount, color.YellowString(tokenIn.Symbol), color.YellowString(s.Pool.TokenOut(zeroForOne).Symbol))

	svc := a.exchange(s)
	run := func() (*executor.Result, error) { return svc.Swap(ctx, amount, zeroForOne) }

	res, err := execute(run)
	if err != nil {
		return err
	}

	color.Green("\nSwap succeeded!")
	printResult(res)
	return nil
}

// execute shows a spinner unless signatures are confirmed interactively
func execute(run func() (*executor.Result, error)) (*executor.Result, error) {
	if noConfirm {
		return withSpinner("Waiting for confirmations...", run)
	}
	return run()
}
