// Package executor runs token-spending actions behind the allowance checks
// and approvals they need.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/devlongs/swapdesk/internal/config"
	"github.com/devlongs/swapdesk/internal/contracts"
	"github.com/devlongs/swapdesk/pkg/types"
)

// Notification event types
const (
	EventActionSucceeded = "action_succeeded"
	EventActionFailed    = "action_failed"
)

// Token is the part of a token binding the executor needs
type Token interface {
	Address() common.Address
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (*ethtypes.Transaction, error)
}

// Confirmer waits until a transaction is mined successfully
type Confirmer interface {
	WaitForConfirmation(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error)
}

// Notifier surfaces the outcome of an action
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Action submits the gated transaction
type Action func(ctx context.Context) (*ethtypes.Transaction, error)

// Requirement is an amount of token the action will spend
type Requirement struct {
	Token  Token
	Amount *big.Int
}

// StepKind names a pipeline step
type StepKind string

const (
	StepApprove StepKind = "approve"
	StepAction  StepKind = "action"
)

// StepResult is the confirmed outcome of one step
type StepResult struct {
	Kind    StepKind
	Token   common.Address // zero for the action step
	Amount  *big.Int       // approved amount, nil for the action step
	TxHash  common.Hash
	Receipt *ethtypes.Receipt
}

// Result describes a completed run. Steps lists approvals before the action.
type Result struct {
	ID      uuid.UUID
	Steps   []StepResult
	Receipt *ethtypes.Receipt
}

// Executor runs gated actions on behalf of one owner
type Executor struct {
	owner     common.Address
	confirmer Confirmer
	notifier  Notifier
	policy    string
	timeout   time.Duration
}

// New creates an executor. notifier may be nil.
func New(owner common.Address, confirmer Confirmer, notifier Notifier, cfg config.ExecutorConfig) *Executor {
	policy := cfg.ApprovalPolicy
	if policy == "" {
		policy = config.ApprovalMax
	}
	return &Executor{
		owner:     owner,
		confirmer: confirmer,
		notifier:  notifier,
		policy:    policy,
		timeout:   cfg.ConfirmTimeout,
	}
}

// Execute makes sure spender may spend every required amount, approving where
// the allowance is short, then submits action and waits for it. The first
// failing step aborts the run. The returned error wraps one of the errors of
// the types package.
func (e *Executor) Execute(ctx context.Context, label string, spender common.Address, reqs []Requirement, action Action) (*Result, error) {
	res := &Result{ID: uuid.New()}
	logger := log.With().
		Str("action", label).
		Str("id", res.ID.String()).
		Str("spender", spender.Hex()).
		Logger()

	start := time.Now()
	err := e.run(ctx, logger, spender, reqs, action, res)
	if err != nil {
		kind := types.Classify(err)
		logger.Error().Err(err).Str("kind", kind.Error()).Msg("Action failed")
		e.notify(ctx, EventActionFailed, label+" failed", kind.Error())
		return res, fmt.Errorf("%s: %w: %w", label, kind, err)
	}

	logger.Info().
		Str("txHash", res.Receipt.TxHash.Hex()).
		Int("approvals", len(res.Steps)-1).
		Dur("duration", time.Since(start)).
		Msg("Action confirmed")
	e.notify(ctx, EventActionSucceeded, label+" confirmed", res.Receipt.TxHash.Hex())
	return res, nil
}

func (e *Executor) run(ctx context.Context, logger zerolog.Logger, spender common.Address, reqs []Requirement, action Action, res *Result) error {
	pending := make([]Requirement, 0, len(reqs))
	for _, r := range reqs {
		if r.Token == nil || r.Amount == nil || r.Amount.Sign() <= 0 {
			continue
		}
		pending = append(pending, r)
	}

	short, err := e.shortfalls(ctx, spender, pending)
	if err != nil {
		return err
	}

	approvals, err := e.approve(ctx, logger, spender, short)
	if err != nil {
		return err
	}
	res.Steps = append(res.Steps, approvals...)

	tx, err := action(ctx)
	if err != nil {
		return fmt.Errorf("failed to submit action: %w", err)
	}
	if tx == nil {
		return fmt.Errorf("action returned no transaction: %w", types.ErrRemoteCall)
	}
	logger.Debug().Str("txHash", tx.Hash().Hex()).Msg("Action submitted")

	receipt, err := e.confirm(ctx, tx)
	if err != nil {
		return err
	}
	res.Steps = append(res.Steps, StepResult{Kind: StepAction, TxHash: tx.Hash(), Receipt: receipt})
	res.Receipt = receipt
	return nil
}

// shortfalls reads every allowance concurrently and returns the requirements
// they do not cover, in input order
func (e *Executor) shortfalls(ctx context.Context, spender common.Address, reqs []Requirement) ([]Requirement, error) {
	allowances := make([]*big.Int, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			allowance, err := r.Token.Allowance(gctx, e.owner, spender)
			if err != nil {
				return fmt.Errorf("failed to read allowance: %w", err)
			}
			if allowance == nil {
				return fmt.Errorf("no allowance returned for %s: %w", r.Token.Address().Hex(), types.ErrRemoteCall)
			}
			allowances[i] = allowance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var short []Requirement
	for i, r := range reqs {
		if allowances[i].Cmp(r.Amount) < 0 {
			short = append(short, r)
		}
	}
	return short, nil
}

// approve submits the approvals one by one, keeping the signer's nonces in
// order, and waits for their confirmations concurrently
func (e *Executor) approve(ctx context.Context, logger zerolog.Logger, spender common.Address, short []Requirement) ([]StepResult, error) {
	if len(short) == 0 {
		return nil, nil
	}

	steps := make([]StepResult, len(short))
	txs := make([]*ethtypes.Transaction, len(short))
	for i, r := range short {
		amount := e.approvalAmount(r.Amount)
		tx, err := r.Token.Approve(ctx, spender, amount)
		if err != nil {
			return nil, fmt.Errorf("failed to approve %s: %w", r.Token.Address().Hex(), err)
		}
		if tx == nil {
			return nil, fmt.Errorf("approval of %s returned no transaction: %w", r.Token.Address().Hex(), types.ErrRemoteCall)
		}
		logger.Info().
			Str("token", r.Token.Address().Hex()).
			Str("amount", amount.String()).
			Str("txHash", tx.Hash().Hex()).
			Msg("Approval submitted")

		txs[i] = tx
		steps[i] = StepResult{Kind: StepApprove, Token: r.Token.Address(), Amount: amount, TxHash: tx.Hash()}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range txs {
		i := i
		g.Go(func() error {
			receipt, err := e.confirm(gctx, txs[i])
			if err != nil {
				return fmt.Errorf("approval of %s: %w", steps[i].Token.Hex(), err)
			}
			steps[i].Receipt = receipt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return steps, nil
}

func (e *Executor) approvalAmount(required *big.Int) *big.Int {
	if e.policy == config.ApprovalExact {
		return new(big.Int).Set(required)
	}
	return new(big.Int).Set(contracts.MaxAllowance)
}

func (e *Executor) confirm(ctx context.Context, tx *ethtypes.Transaction) (*ethtypes.Receipt, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	receipt, err := e.confirmer.WaitForConfirmation(ctx, tx)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("no receipt for %s: %w", tx.Hash().Hex(), types.ErrRemoteCall)
	}
	return receipt, nil
}

func (e *Executor) notify(ctx context.Context, event, title, message string) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, event, title, message); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("Failed to send notification")
	}
}
