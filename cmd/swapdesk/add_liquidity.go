package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devlongs/swapdesk/internal/executor"
	"github.com/devlongs/swapdesk/internal/exchange"
	"github.com/devlongs/swapdesk/pkg/units"
)

var (
	posLower, posCurrent, posUpper float64
	posAmount0, posAmount1         string
)

var addLiquidityCmd = &cobra.Command{
	Use:   "add-liquidity",
	Short: "Mint a liquidity position",
	Long: `Mint a liquidity position in the pool. Without price flags the default
position of 1 token0 and 5000 token1 over 4545-5500 at a price of 5000 is used.`,
	Args: cobra.NoArgs,
	RunE: runAddLiquidity,
}

func init() {
	rootCmd.AddCommand(addLiquidityCmd)
	addLiquidityCmd.Flags().Float64Var(&posLower, "lower", 0, "Lower price of the range")
	addLiquidityCmd.Flags().Float64Var(&posCurrent, "current", 0, "Current pool price")
	addLiquidityCmd.Flags().Float64Var(&posUpper, "upper", 0, "Upper price of the range")
	addLiquidityCmd.Flags().StringVar(&posAmount0, "amount0", "1", "Maximum amount of token0")
	addLiquidityCmd.Flags().StringVar(&posAmount1, "amount1", "5000", "Maximum amount of token1")
	addLiquidityCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
}

func runAddLiquidity(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

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

	position := exchange.DefaultPosition()
	if posLower != 0 || posCurrent != 0 || posUpper != 0 {
		amount0, err := units.ParseUnits(posAmount0, s.Pool.Token0.Decimals)
		if err != nil {
			return fmt.Errorf("invalid --amount0: %w", err)
		}
		amount1, err := units.ParseUnits(posAmount1, s.Pool.Token1.Decimals)
		if err != nil {
			return fmt.Errorf("invalid --amount1: %w", err)
		}
		position, err = exchange.PositionFromPrices(posLower, posCurrent, posUpper, amount0, amount1)
		if err != nil {
			return err
		}
	}

	fmt.Printf("  Range [%d, %d], liquidity %s\n", position.LowerTick, position.UpperTick, position.Liquidity)
	fmt.Printf("  Deposit up to %s %s and %s %s\n",
		units.FormatUnits(position.Amount0, s.Pool.Token0.Decimals), color.YellowString(s.Pool.Token0.Symbol),
		units.FormatUnits(position.Amount1, s.Pool.Token1.Decimals), color.YellowString(s.Pool.Token1.Symbol))

	svc := a.exchange(s)
	res, err := execute(func() (*executor.Result, error) { return svc.AddLiquidity(ctx, position) })
	if err != nil {
		return err
	}

	color.Green("\nLiquidity added!")
	printResult(res)
	return nil
}
