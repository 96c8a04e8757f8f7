// Package exchange composes swaps and liquidity provision from the contract
// bindings and the allowance-gated executor.
package exchange

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/contracts"
	"github.com/devlongs/swapdesk/internal/executor"
	"github.com/devlongs/swapdesk/pkg/types"
	"github.com/devlongs/swapdesk/pkg/units"
	"github.com/devlongs/swapdesk/pkg/univ3math"
)

// Manager is the pool manager contract
type Manager interface {
	Address() common.Address
	Mint(ctx context.Context, p contracts.MintParams) (*ethtypes.Transaction, error)
	Swap(ctx context.Context, p contracts.SwapParams) (*ethtypes.Transaction, error)
}

// Gate runs an action behind its allowance checks
type Gate interface {
	Execute(ctx context.Context, label string, spender common.Address, reqs []executor.Requirement, action executor.Action) (*executor.Result, error)
}

// Position is a liquidity range and the amounts it takes
type Position struct {
	LowerTick int32
	UpperTick int32
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// DefaultPosition is 1 WETH and 5000 USDC over the 4545-5500 range at 5000
func DefaultPosition() Position {
	liquidity, _ := new(big.Int).SetString("1517882343751509868544", 10)
	amount0, _ := new(big.Int).SetString("998976618347425280", 10)
	amount1, _ := new(big.Int).SetString("5000000000000000000000", 10)
	return Position{
		LowerTick: 84222,
		UpperTick: 86129,
		Liquidity: liquidity,
		Amount0:   amount0,
		Amount1:   amount1,
	}
}

// PositionFromPrices sizes the largest position over [lower, upper] at the
// current price that fits within amount0 and amount1
func PositionFromPrices(lower, current, upper float64, amount0, amount1 *big.Int) (Position, error) {
	if !(lower < current && current < upper) {
		return Position{}, fmt.Errorf("current price %g must lie inside (%g, %g)", current, lower, upper)
	}
	if lower <= 0 {
		return Position{}, fmt.Errorf("lower price must be positive, got %g", lower)
	}

	sqrtLow := univ3math.PriceToSqrtP(lower)
	sqrtCur := univ3math.PriceToSqrtP(current)
	sqrtUpp := univ3math.PriceToSqrtP(upper)

	liquidity := univ3math.MinBig(
		univ3math.Liquidity0(amount0, sqrtCur, sqrtUpp),
		univ3math.Liquidity1(amount1, sqrtCur, sqrtLow),
	)

	return Position{
		LowerTick: univ3math.PriceToTick(lower),
		UpperTick: univ3math.PriceToTick(upper),
		Liquidity: liquidity,
		Amount0:   univ3math.CalcAmount0(liquidity, sqrtUpp, sqrtCur),
		Amount1:   univ3math.CalcAmount1(liquidity, sqrtLow, sqrtCur),
	}, nil
}

// Service submits exchange operations for one account
type Service struct {
	pool    types.Pool
	account common.Address
	manager Manager
	token0  executor.Token
	token1  executor.Token
	gate    Gate
}

// NewService creates a service for account on pool
func NewService(pool types.Pool, account common.Address, manager Manager, token0, token1 executor.Token, gate Gate) *Service {
	return &Service{
		pool:    pool,
		account: account,
		manager: manager,
		token0:  token0,
		token1:  token1,
		gate:    gate,
	}
}

// Swap sells amountIn of the input token; token0 is the input when zeroForOne
func (s *Service) Swap(ctx context.Context, amountIn string, zeroForOne bool) (*executor.Result, error) {
	tokenIn := s.pool.TokenIn(zeroForOne)
	amount, err := units.ParseUnits(amountIn, tokenIn.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid swap amount: %w", err)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("swap amount must be positive, got %s", amountIn)
	}

	extra, err := s.extra()
	if err != nil {
		return nil, err
	}

	gated := s.token1
	if zeroForOne {
		gated = s.token0
	}

	log.Info().
		Str("tokenIn", tokenIn.Symbol).
		Str("amountIn", amountIn).
		Bool("zeroForOne", zeroForOne).
		Msg("Submitting swap")

	return s.gate.Execute(ctx, "swap", s.manager.Address(),
		[]executor.Requirement{{Token: gated, Amount: amount}},
		func(ctx context.Context) (*ethtypes.Transaction, error) {
			return s.manager.Swap(ctx, contracts.SwapParams{
				Pool:       s.pool.Address,
				ZeroForOne: zeroForOne,
				Amount:     amount,
				Data:       extra,
			})
		})
}

// AddLiquidity mints position, approving both tokens as needed
func (s *Service) AddLiquidity(ctx context.Context, p Position) (*executor.Result, error) {
	if p.LowerTick >= p.UpperTick {
		return nil, fmt.Errorf("lower tick %d must be below upper tick %d", p.LowerTick, p.UpperTick)
	}
	if p.LowerTick < univ3math.MinTick || p.UpperTick > univ3math.MaxTick {
		return nil, fmt.Errorf("tick range [%d, %d] out of bounds", p.LowerTick, p.UpperTick)
	}
	if p.Liquidity == nil || p.Liquidity.Sign() <= 0 {
		return nil, fmt.Errorf("liquidity must be positive")
	}

	extra, err := s.extra()
	if err != nil {
		return nil, err
	}

	log.Info().
		Int32("lowerTick", p.LowerTick).
		Int32("upperTick", p.UpperTick).
		Str("liquidity", p.Liquidity.String()).
		Msg("Submitting mint")

	return s.gate.Execute(ctx, "add liquidity", s.manager.Address(),
		[]executor.Requirement{
			{Token: s.token0, Amount: p.Amount0},
			{Token: s.token1, Amount: p.Amount1},
		},
		func(ctx context.Context) (*ethtypes.Transaction, error) {
			return s.manager.Mint(ctx, contracts.MintParams{
				Pool:      s.pool.Address,
				LowerTick: p.LowerTick,
				UpperTick: p.UpperTick,
				Liquidity: p.Liquidity,
				Data:      extra,
			})
		})
}

func (s *Service) extra() ([]byte, error) {
	extra, err := contracts.EncodeExtra(s.pool.Token0.Address, s.pool.Token1.Address, s.account)
	if err != nil {
		return nil, fmt.Errorf("failed to encode callback data: %w", err)
	}
	return extra, nil
}
