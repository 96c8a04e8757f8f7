package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Token represents an ERC20 token
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Pool represents the concentrated liquidity pool the client trades against
type Pool struct {
	Address common.Address
	Token0  Token
	Token1  Token
}

// TokenIn returns the token spent by a swap in the given direction
func (p Pool) TokenIn(zeroForOne bool) Token {
	if zeroForOne {
		return p.Token0
	}
	return p.Token1
}

// TokenOut returns the token received by a swap in the given direction
func (p Pool) TokenOut(zeroForOne bool) Token {
	if zeroForOne {
		return p.Token1
	}
	return p.Token0
}

// EventKind is the name of a pool event
type EventKind string

const (
	EventMint    EventKind = "Mint"
	EventSwap    EventKind = "Swap"
	EventBurn    EventKind = "Burn"
	EventCollect EventKind = "Collect"
	EventUnknown EventKind = "Unknown"
)

// EventKey identifies an on-chain event occurrence
type EventKey struct {
	BlockNumber uint64
	LogIndex    uint
}

// ChainEvent is a decoded pool event. Values are never mutated after construction.
type ChainEvent struct {
	Kind        EventKind
	BlockNumber uint64
	LogIndex    uint
	TxHash      common.Hash
	Pool        common.Address
	// Removed is set when the log was reverted by a chain reorganisation
	Removed bool

	Mint *MintArgs
	Swap *SwapArgs
}

// Key returns the identity key of the event
func (e ChainEvent) Key() EventKey {
	return EventKey{BlockNumber: e.BlockNumber, LogIndex: e.LogIndex}
}

// MintArgs holds the payload of a Mint event
type MintArgs struct {
	Sender    common.Address
	Owner     common.Address
	LowerTick int32
	UpperTick int32
	Amount    *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// SwapArgs holds the payload of a Swap event. Amounts are signed from the pool's view.
type SwapArgs struct {
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// QuoteRequest is the remote quote call payload
type QuoteRequest struct {
	Pool       common.Address
	AmountIn   *big.Int
	ZeroForOne bool
}
