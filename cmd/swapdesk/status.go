package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/devlongs/swapdesk/pkg/units"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the wallet connection and token balances",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.wallet.Installed() {
		a.printer.Status(a.model.Status())
		return nil
	}

	s, err := a.session(ctx)
	if err != nil {
		return err
	}
	a.printer.Status(s.Status)

	bal0, err := s.Token0.BalanceOf(ctx, s.Status.Account)
	if err != nil {
		return err
	}
	bal1, err := s.Token1.BalanceOf(ctx, s.Status.Account)
	if err != nil {
		return err
	}

	fmt.Printf("  %-6s %s\n", color.YellowString(s.Pool.Token0.Symbol), units.FormatUnits(bal0, s.Pool.Token0.Decimals))
	fmt.Printf("  %-6s %s\n", color.YellowString(s.Pool.Token1.Symbol), units.FormatUnits(bal1, s.Pool.Token1.Decimals))
	return nil
}
