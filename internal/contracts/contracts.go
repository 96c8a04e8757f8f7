// Package contracts binds the ERC20 tokens, the pool manager and the quoter
// the client talks to.
package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	swaptypes "github.com/devlongs/swapdesk/pkg/types"
)

const erc20ABIJSON = `[
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const managerABIJSON = `[
{"inputs":[{"name":"poolAddress","type":"address"},{"name":"lowerTick","type":"int24"},{"name":"upperTick","type":"int24"},{"name":"liquidity","type":"uint128"},{"name":"data","type":"bytes"}],"name":"mint","outputs":[],"stateMutability":"nonpayable","type":"function"},
{"inputs":[{"name":"poolAddress","type":"address"},{"name":"zeroForOne","type":"bool"},{"name":"amountSpecified","type":"uint256"},{"name":"data","type":"bytes"}],"name":"swap","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const quoterABIJSON = `[
{"inputs":[{"components":[{"name":"pool","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"zeroForOne","type":"bool"}],"name":"params","type":"tuple"}],"name":"quote","outputs":[{"name":"amountOut","type":"uint256"},{"name":"sqrtPriceX96After","type":"uint160"},{"name":"tickAfter","type":"int24"}],"stateMutability":"nonpayable","type":"function"}
]`

var (
	ERC20ABI   = mustParseABI(erc20ABIJSON)
	ManagerABI = mustParseABI(managerABIJSON)
	QuoterABI  = mustParseABI(quoterABIJSON)
)

// MaxAllowance is the largest approvable amount, 2^256-1
var MaxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("contracts: invalid ABI: %v", err))
	}
	return parsed
}

// transactOpts returns a copy of opts bound to ctx
func transactOpts(ctx context.Context, opts *bind.TransactOpts) (*bind.TransactOpts, error) {
	if opts == nil {
		return nil, swaptypes.ErrNotConnected
	}
	bound := *opts
	bound.Context = ctx
	return &bound, nil
}

// ERC20 is a binding to a token contract
type ERC20 struct {
	address  common.Address
	contract *bind.BoundContract
	opts     *bind.TransactOpts
}

// NewERC20 binds the token at address. opts may be nil for read-only use.
func NewERC20(address common.Address, backend bind.ContractBackend, opts *bind.TransactOpts) *ERC20 {
	return &ERC20{
		address:  address,
		contract: bind.NewBoundContract(address, ERC20ABI, backend, backend, backend),
		opts:     opts,
	}
}

// Address returns the token address
func (t *ERC20) Address() common.Address {
	return t.address
}

// Allowance returns how much spender may still transfer on behalf of owner
func (t *ERC20) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", owner, spender); err != nil {
		return nil, fmt.Errorf("allowance(%s, %s) on %s: %w", owner.Hex(), spender.Hex(), t.address.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// BalanceOf returns the token balance of account
func (t *ERC20) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var out []interface{}
	if err := t.contract.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("balanceOf(%s) on %s: %w", account.Hex(), t.address.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// Approve submits an approve(spender, amount) transaction
func (t *ERC20) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	opts, err := transactOpts(ctx, t.opts)
	if err != nil {
		return nil, err
	}
	tx, err := t.contract.Transact(opts, "approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("approve %s on %s: %w", spender.Hex(), t.address.Hex(), err)
	}
	return tx, nil
}

// MintParams are the arguments of the manager's mint call
type MintParams struct {
	Pool      common.Address
	LowerTick int32
	UpperTick int32
	Liquidity *big.Int
	Data      []byte
}

// SwapParams are the arguments of the manager's swap call
type SwapParams struct {
	Pool       common.Address
	ZeroForOne bool
	Amount     *big.Int
	Data       []byte
}

// Manager is a binding to the pool manager contract
type Manager struct {
	address  common.Address
	contract *bind.BoundContract
	opts     *bind.TransactOpts
}

// NewManager binds the manager at address
func NewManager(address common.Address, backend bind.ContractBackend, opts *bind.TransactOpts) *Manager {
	return &Manager{
		address:  address,
		contract: bind.NewBoundContract(address, ManagerABI, backend, backend, backend),
		opts:     opts,
	}
}

// Address returns the manager address, the spender of all gated actions
func (m *Manager) Address() common.Address {
	return m.address
}

// Mint submits a mint transaction
func (m *Manager) Mint(ctx context.Context, p MintParams) (*types.Transaction, error) {
	opts, err := transactOpts(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	tx, err := m.contract.Transact(opts, "mint",
		p.Pool, big.NewInt(int64(p.LowerTick)), big.NewInt(int64(p.UpperTick)), p.Liquidity, p.Data)
	if err != nil {
		return nil, fmt.Errorf("mint on %s: %w", p.Pool.Hex(), err)
	}
	return tx, nil
}

// Swap submits a swap transaction
func (m *Manager) Swap(ctx context.Context, p SwapParams) (*types.Transaction, error) {
	opts, err := transactOpts(ctx, m.opts)
	if err != nil {
		return nil, err
	}
	tx, err := m.contract.Transact(opts, "swap", p.Pool, p.ZeroForOne, p.Amount, p.Data)
	if err != nil {
		return nil, fmt.Errorf("swap on %s: %w", p.Pool.Hex(), err)
	}
	return tx, nil
}

// quoteParams mirrors the quoter's QuoteParams tuple
type quoteParams struct {
	Pool       common.Address
	AmountIn   *big.Int
	ZeroForOne bool
}

// Quoter is a binding to the quoter contract
type Quoter struct {
	contract *bind.BoundContract
}

// NewQuoter binds the quoter at address
func NewQuoter(address common.Address, backend bind.ContractBackend) *Quoter {
	return &Quoter{
		contract: bind.NewBoundContract(address, QuoterABI, backend, backend, backend),
	}
}

// Quote simulates a swap and returns the output amount
func (q *Quoter) Quote(ctx context.Context, req swaptypes.QuoteRequest) (*big.Int, error) {
	var out []interface{}
	params := quoteParams{Pool: req.Pool, AmountIn: req.AmountIn, ZeroForOne: req.ZeroForOne}
	if err := q.contract.Call(&bind.CallOpts{Context: ctx}, &out, "quote", params); err != nil {
		return nil, fmt.Errorf("quote: %w", err)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

var extraArgs = abi.Arguments{
	{Type: mustNewType("address")},
	{Type: mustNewType("address")},
	{Type: mustNewType("address")},
}

func mustNewType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// EncodeExtra encodes the callback data the manager forwards to the pool:
// abi.encode(token0, token1, payer)
func EncodeExtra(token0, token1, payer common.Address) ([]byte, error) {
	return extraArgs.Pack(token0, token1, payer)
}
