// Package quote turns candidate swap inputs into previewed output amounts.
package quote

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/pkg/types"
	"github.com/devlongs/swapdesk/pkg/units"
)

// FailedOutput is the previewed output after a failed quote. An unset
// output is the empty string.
const FailedOutput = "0"

// Quoter computes the output of a swap without executing it
type Quoter interface {
	Quote(ctx context.Context, req types.QuoteRequest) (*big.Int, error)
}

// Config tunes an Engine
type Config struct {
	// Debounce collapses requests made within the window into the last one
	Debounce time.Duration
	// Timeout bounds a single remote quote; zero waits forever
	Timeout time.Duration
	// Decimals of token0 and token1
	Decimals0 uint8
	Decimals1 uint8
	// OnChange receives a snapshot after every state change
	OnChange func(Snapshot)
}

// Request is a quote request in display units
type Request struct {
	Pool       common.Address
	Amount     string
	ZeroForOne bool
}

// AmountPair is the swap form: Input is edited by the user, Output is derived
type AmountPair struct {
	Input  string
	Output string
}

// Snapshot is the read-only state of the engine
type Snapshot struct {
	Pair       AmountPair
	ZeroForOne bool
	Loading    bool
}

// Engine is a debounced, last-request-wins quote previewer. Amounts are kept
// per token so flipping the direction swaps the sides of the pair.
type Engine struct {
	quoter Quoter
	cfg    Config

	mu         sync.Mutex
	amount0    string
	amount1    string
	zeroForOne bool
	loading    bool
	scheduled  uint64 // latest accepted request
	issued     uint64 // latest request sent to the quoter
	timer      *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine quoting token0 for token1 by default
func NewEngine(quoter Quoter, cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		quoter:     quoter,
		cfg:        cfg,
		zeroForOne: true,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RequestQuote sets the input amount and schedules a quote for it. A request
// for the other direction flips the engine first, so the amount always lands
// on the input side. Zero or empty amounts never reach the quoter and leave
// the output untouched. The error reports only an amount that cannot be parsed.
func (e *Engine) RequestQuote(pool common.Address, amount string, zeroForOne bool) error {
	req := Request{Pool: pool, Amount: amount, ZeroForOne: zeroForOne}

	zero := units.IsZero(amount)
	var amountIn *big.Int
	if !zero {
		var err error
		amountIn, err = units.ParseUnits(amount, e.decimalsIn(zeroForOne))
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", amount, err)
		}
		if amountIn.Sign() < 0 {
			return fmt.Errorf("invalid amount %q: negative", amount)
		}
	}

	e.mu.Lock()
	if zeroForOne != e.zeroForOne {
		e.flip(zeroForOne)
	}
	if zeroForOne {
		e.amount0 = amount
	} else {
		e.amount1 = amount
	}

	e.scheduled++
	id := e.scheduled
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	if zero {
		// Nothing in flight can match the input any more.
		e.issued = id
		e.loading = false
		e.mu.Unlock()
		e.changed()
		return nil
	}

	if e.cfg.Debounce <= 0 {
		e.mu.Unlock()
		e.issue(id, req, amountIn)
		return nil
	}

	e.timer = time.AfterFunc(e.cfg.Debounce, func() { e.issue(id, req, amountIn) })
	e.mu.Unlock()
	e.changed()
	return nil
}

// SetDirection flips which token is the input. Pending and in-flight
// requests for the old direction are discarded.
func (e *Engine) SetDirection(zeroForOne bool) {
	e.mu.Lock()
	if e.zeroForOne == zeroForOne {
		e.mu.Unlock()
		return
	}
	e.flip(zeroForOne)
	e.mu.Unlock()

	e.changed()
}

// flip switches the input token and invalidates everything scheduled or in
// flight. Callers hold e.mu.
func (e *Engine) flip(zeroForOne bool) {
	e.zeroForOne = zeroForOne
	e.scheduled++
	e.issued = e.scheduled
	e.loading = false
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Snapshot returns the current state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Close discards pending requests and waits for in-flight quotes to return
func (e *Engine) Close() {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.scheduled++
	e.issued = e.scheduled
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

// issue sends request id to the quoter unless a later request superseded it
func (e *Engine) issue(id uint64, req Request, amountIn *big.Int) {
	e.mu.Lock()
	if id != e.scheduled || e.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}
	e.issued = id
	e.loading = true
	e.wg.Add(1)
	e.mu.Unlock()

	e.changed()

	go func() {
		defer e.wg.Done()
		e.resolve(id, req, amountIn)
	}()
}

func (e *Engine) resolve(id uint64, req Request, amountIn *big.Int) {
	ctx := e.ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	out, err := e.quoter.Quote(ctx, types.QuoteRequest{
		Pool:       req.Pool,
		AmountIn:   amountIn,
		ZeroForOne: req.ZeroForOne,
	})

	e.mu.Lock()
	if id != e.issued || req.ZeroForOne != e.zeroForOne {
		e.mu.Unlock()
		log.Debug().Uint64("request", id).Msg("Dropping superseded quote")
		return
	}

	output := FailedOutput
	if err != nil {
		log.Warn().
			Err(err).
			Str("amount", req.Amount).
			Bool("zeroForOne", req.ZeroForOne).
			Msg("Quote failed")
	} else {
		output = units.FormatUnits(out, e.decimalsIn(!req.ZeroForOne))
	}

	// The output side is the token that is not the input.
	if req.ZeroForOne {
		e.amount1 = output
	} else {
		e.amount0 = output
	}
	e.loading = false
	e.mu.Unlock()

	e.changed()
}

func (e *Engine) decimalsIn(zeroForOne bool) uint8 {
	if zeroForOne {
		return e.cfg.Decimals0
	}
	return e.cfg.Decimals1
}

func (e *Engine) snapshot() Snapshot {
	pair := AmountPair{Input: e.amount1, Output: e.amount0}
	if e.zeroForOne {
		pair = AmountPair{Input: e.amount0, Output: e.amount1}
	}
	return Snapshot{Pair: pair, ZeroForOne: e.zeroForOne, Loading: e.loading}
}

func (e *Engine) changed() {
	if e.cfg.OnChange == nil {
		return
	}
	e.cfg.OnChange(e.Snapshot())
}
