package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/fatih/color"

	"github.com/devlongs/swapdesk/internal/config"
	"github.com/devlongs/swapdesk/internal/eth"
	"github.com/devlongs/swapdesk/internal/executor"
	"github.com/devlongs/swapdesk/internal/exchange"
	"github.com/devlongs/swapdesk/internal/notify"
	"github.com/devlongs/swapdesk/internal/output"
	"github.com/devlongs/swapdesk/internal/session"
	"github.com/devlongs/swapdesk/internal/wallet"
)

var stdin = bufio.NewReader(os.Stdin)

// app holds the collaborators shared by the commands
type app struct {
	cfg       *config.Config
	client    *eth.Client
	wallet    *wallet.KeyWallet
	model     *wallet.Model
	contracts session.Contracts
	printer   *output.Printer
}

// newApp dials the node and probes the wallet. With confirm set, every
// signature is confirmed interactively.
func newApp(ctx context.Context, cfg *config.Config, confirm bool) (*app, error) {
	client, err := eth.NewClient(cfg.RPC)
	if err != nil {
		return nil, err
	}

	var prompt wallet.Prompt
	if confirm {
		prompt = confirmTransaction
	}

	a := &app{
		cfg:       cfg,
		client:    client,
		wallet:    wallet.NewKeyWallet(cfg.Wallet, client, prompt),
		model:     wallet.NewModel(),
		contracts: session.ContractsFromConfig(cfg.Contracts),
	}
	a.printer = output.NewPrinter(os.Stdout, a.contracts.Pool)

	if _, err := a.model.Probe(ctx, a.wallet); err != nil {
		client.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) Close() {
	a.client.Close()
}

// session connects the wallet and binds the contracts
func (a *app) session(ctx context.Context) (*session.Session, error) {
	status, err := a.model.Connect(ctx, a.wallet)
	if err != nil {
		return nil, err
	}
	return session.Open(ctx, status, a.contracts, a.client, a.wallet)
}

// exchange builds the exchange service of s
func (a *app) exchange(s *session.Session) *exchange.Service {
	exec := executor.New(
		s.Status.Account,
		a.client,
		notify.FromConfig(a.cfg.Notify, os.Stdout),
		a.cfg.Executor,
	)
	return exchange.NewService(s.Pool, s.Status.Account, s.Manager, s.Token0, s.Token1, exec)
}

// withSpinner runs fn while a spinner shows suffix
func withSpinner[T any](suffix string, fn func() (T, error)) (T, error) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()
	return fn()
}

// confirmTransaction asks the operator before a transaction is signed
func confirmTransaction(tx *ethtypes.Transaction) (bool, error) {
	to := "contract creation"
	if tx.To() != nil {
		to = tx.To().Hex()
	}
	fmt.Printf("\nSign transaction to %s (nonce %d, gas %d)? (y/N): ", color.CyanString(to), tx.Nonce(), tx.Gas())
	return readYes()
}

func readYes() (bool, error) {
	response, err := stdin.ReadString('\n')
	if err != nil {
		return false, err
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

func printResult(res *executor.Result) {
	for _, step := range res.Steps {
		switch step.Kind {
		case executor.StepApprove:
			fmt.Printf("  approve %s  %s\n", output.ShortAddress(step.Token.Hex()), color.CyanString(step.TxHash.Hex()))
		case executor.StepAction:
			fmt.Printf("  action             %s\n", color.CyanString(step.TxHash.Hex()))
		}
	}
	if res.Receipt != nil {
		fmt.Printf("  block %s, gas used %d\n", res.Receipt.BlockNumber, res.Receipt.GasUsed)
	}
}
