package uniswapv3

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/swapdesk/pkg/types"
)

var (
	pool   = common.HexToAddress("0x9A676e781A523b5d0C0e43731313A708CB607508")
	sender = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	owner  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

// word encodes v as a 32 byte two's complement word
func word(v *big.Int) []byte {
	if v.Sign() < 0 {
		v = new(big.Int).Add(v, two256)
	}
	return common.LeftPadBytes(v.Bytes(), 32)
}

func TestSignaturesMatchABI(t *testing.T) {
	parsed, err := ParseEventsABI()
	require.NoError(t, err)

	assert.Equal(t, SwapEventSignature, parsed.Events["Swap"].ID)
	assert.Equal(t, MintEventSignature, parsed.Events["Mint"].ID)
}

func TestDecodeSwap(t *testing.T) {
	amount0 := big.NewInt(-8396714242162444)
	amount1, _ := new(big.Int).SetString("42000000000000000000", 10)
	sqrtP, _ := new(big.Int).SetString("5604469350942327889444743441197", 10)

	var data []byte
	data = append(data, word(amount0)...)
	data = append(data, word(amount1)...)
	data = append(data, word(sqrtP)...)
	data = append(data, word(big.NewInt(1517882343751))...)
	data = append(data, word(big.NewInt(85184))...)

	log := ethtypes.Log{
		Address:     pool,
		Topics:      []common.Hash{SwapEventSignature, common.BytesToHash(sender.Bytes()), common.BytesToHash(owner.Bytes())},
		Data:        data,
		BlockNumber: 12,
		Index:       3,
	}

	event, err := DecodeLog(log)
	require.NoError(t, err)

	assert.Equal(t, types.EventSwap, event.Kind)
	assert.Equal(t, types.EventKey{BlockNumber: 12, LogIndex: 3}, event.Key())
	require.NotNil(t, event.Swap)
	assert.Equal(t, sender, event.Swap.Sender)
	assert.Equal(t, owner, event.Swap.Recipient)
	assert.Equal(t, amount0.String(), event.Swap.Amount0.String())
	assert.Equal(t, amount1.String(), event.Swap.Amount1.String())
	assert.Equal(t, sqrtP.String(), event.Swap.SqrtPriceX96.String())
	assert.Equal(t, int32(85184), event.Swap.Tick)
}

func TestDecodeMint(t *testing.T) {
	liquidity, _ := new(big.Int).SetString("1517882343751509868544", 10)

	var data []byte
	data = append(data, common.LeftPadBytes(sender.Bytes(), 32)...)
	data = append(data, word(liquidity)...)
	data = append(data, word(big.NewInt(998976618347425280))...)
	data = append(data, word(big.NewInt(5000))...)

	log := ethtypes.Log{
		Address: pool,
		Topics: []common.Hash{
			MintEventSignature,
			common.BytesToHash(owner.Bytes()),
			common.BytesToHash(word(big.NewInt(84222))),
			common.BytesToHash(word(big.NewInt(-86129))),
		},
		Data:        data,
		BlockNumber: 5,
		Index:       1,
	}

	event, err := DecodeLog(log)
	require.NoError(t, err)

	assert.Equal(t, types.EventMint, event.Kind)
	require.NotNil(t, event.Mint)
	assert.Equal(t, sender, event.Mint.Sender)
	assert.Equal(t, owner, event.Mint.Owner)
	assert.Equal(t, int32(84222), event.Mint.LowerTick)
	assert.Equal(t, int32(-86129), event.Mint.UpperTick)
	assert.Equal(t, liquidity.String(), event.Mint.Amount.String())
	assert.Equal(t, "998976618347425280", event.Mint.Amount0.String())
}

func TestDecodeRejectsShortData(t *testing.T) {
	log := ethtypes.Log{
		Topics: []common.Hash{SwapEventSignature, {}, {}},
		Data:   make([]byte, 64),
	}

	_, err := DecodeLog(log)
	assert.Error(t, err)
}

func TestDecodeOtherKinds(t *testing.T) {
	burn, err := DecodeLog(ethtypes.Log{Topics: []common.Hash{BurnEventSignature}, BlockNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, types.EventBurn, burn.Kind)

	unknown, err := DecodeLog(ethtypes.Log{Topics: []common.Hash{common.HexToHash("0xdead")}, Removed: true})
	require.NoError(t, err)
	assert.Equal(t, types.EventUnknown, unknown.Kind)
	assert.True(t, unknown.Removed)
}
