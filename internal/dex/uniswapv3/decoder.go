package uniswapv3

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/devlongs/swapdesk/pkg/types"
)

// Uniswap V3 style Swap event signature
// event Swap(address indexed sender, address indexed recipient, int256 amount0, int256 amount1, uint160 sqrtPriceX96, uint128 liquidity, int24 tick)
var SwapEventSignature = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")

// Mint event signature
// event Mint(address sender, address indexed owner, int24 indexed lowerTick, int24 indexed upperTick, uint128 amount, uint256 amount0, uint256 amount1)
var MintEventSignature = crypto.Keccak256Hash([]byte("Mint(address,address,int24,int24,uint128,uint256,uint256)"))

// Pool events that are recognised but carry no decoded payload
var (
	BurnEventSignature    = crypto.Keccak256Hash([]byte("Burn(address,int24,int24,uint128,uint256,uint256)"))
	CollectEventSignature = crypto.Keccak256Hash([]byte("Collect(address,address,int24,int24,uint128,uint128)"))
)

// two256 is used to convert two's complement words
var two256 = new(big.Int).Lsh(big.NewInt(1), 256)

// DecodeLog decodes a pool log into a ChainEvent. Logs with an unrecognised
// topic decode to EventUnknown so the caller can still track their identity.
func DecodeLog(log ethtypes.Log) (types.ChainEvent, error) {
	event := types.ChainEvent{
		Kind:        types.EventUnknown,
		BlockNumber: log.BlockNumber,
		LogIndex:    log.Index,
		TxHash:      log.TxHash,
		Pool:        log.Address,
		Removed:     log.Removed,
	}

	if len(log.Topics) == 0 {
		return event, nil
	}

	switch log.Topics[0] {
	case SwapEventSignature:
		args, err := decodeSwap(log)
		if err != nil {
			return event, err
		}
		event.Kind = types.EventSwap
		event.Swap = args
	case MintEventSignature:
		args, err := decodeMint(log)
		if err != nil {
			return event, err
		}
		event.Kind = types.EventMint
		event.Mint = args
	case BurnEventSignature:
		event.Kind = types.EventBurn
	case CollectEventSignature:
		event.Kind = types.EventCollect
	}

	return event, nil
}

// decodeSwap decodes the indexed and data fields of a Swap log
func decodeSwap(log ethtypes.Log) (*types.SwapArgs, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("invalid swap log: expected 3 topics, got %d", len(log.Topics))
	}

	// amount0 (int256), amount1 (int256), sqrtPriceX96 (uint160), liquidity (uint128), tick (int24)
	if len(log.Data) < 160 {
		return nil, fmt.Errorf("invalid swap log data length: expected 160 bytes, got %d", len(log.Data))
	}

	return &types.SwapArgs{
		Sender:       common.HexToAddress(log.Topics[1].Hex()),
		Recipient:    common.HexToAddress(log.Topics[2].Hex()),
		Amount0:      signed(log.Data[0:32]),
		Amount1:      signed(log.Data[32:64]),
		SqrtPriceX96: new(big.Int).SetBytes(log.Data[64:96]),
		Liquidity:    new(big.Int).SetBytes(log.Data[96:128]),
		Tick:         int32(signed(log.Data[128:160]).Int64()),
	}, nil
}

// decodeMint decodes the indexed and data fields of a Mint log
func decodeMint(log ethtypes.Log) (*types.MintArgs, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("invalid mint log: expected 4 topics, got %d", len(log.Topics))
	}

	// sender (address), amount (uint128), amount0 (uint256), amount1 (uint256)
	if len(log.Data) < 128 {
		return nil, fmt.Errorf("invalid mint log data length: expected 128 bytes, got %d", len(log.Data))
	}

	return &types.MintArgs{
		Sender:    common.BytesToAddress(log.Data[12:32]),
		Owner:     common.HexToAddress(log.Topics[1].Hex()),
		LowerTick: int32(signed(log.Topics[2].Bytes()).Int64()),
		UpperTick: int32(signed(log.Topics[3].Bytes()).Int64()),
		Amount:    new(big.Int).SetBytes(log.Data[32:64]),
		Amount0:   new(big.Int).SetBytes(log.Data[64:96]),
		Amount1:   new(big.Int).SetBytes(log.Data[96:128]),
	}, nil
}

// signed interprets a 32 byte word as a two's complement integer
func signed(word []byte) *big.Int {
	v := new(big.Int).SetBytes(word)
	if len(word) > 0 && word[0]&0x80 != 0 {
		v.Sub(v, two256)
	}
	return v
}

// ParseEventsABI returns the ABI of the decoded pool events
func ParseEventsABI() (abi.ABI, error) {
	const eventsABI = `[
{"anonymous":false,"inputs":[{"indexed":false,"name":"sender","type":"address"},{"indexed":true,"name":"owner","type":"address"},{"indexed":true,"name":"lowerTick","type":"int24"},{"indexed":true,"name":"upperTick","type":"int24"},{"indexed":false,"name":"amount","type":"uint128"},{"indexed":false,"name":"amount0","type":"uint256"},{"indexed":false,"name":"amount1","type":"uint256"}],"name":"Mint","type":"event"},
{"anonymous":false,"inputs":[{"indexed":true,"name":"sender","type":"address"},{"indexed":true,"name":"recipient","type":"address"},{"indexed":false,"name":"amount0","type":"int256"},{"indexed":false,"name":"amount1","type":"int256"},{"indexed":false,"name":"sqrtPriceX96","type":"uint160"},{"indexed":false,"name":"liquidity","type":"uint128"},{"indexed":false,"name":"tick","type":"int24"}],"name":"Swap","type":"event"}
]`

	return abi.JSON(strings.NewReader(eventsABI))
}
