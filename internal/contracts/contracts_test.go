package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swaptypes "github.com/devlongs/swapdesk/pkg/types"
)

func TestMethodSelectors(t *testing.T) {
	assert.Equal(t, "dd62ed3e", common.Bytes2Hex(ERC20ABI.Methods["allowance"].ID))
	assert.Equal(t, "095ea7b3", common.Bytes2Hex(ERC20ABI.Methods["approve"].ID))
	assert.Equal(t, "int24", ManagerABI.Methods["mint"].Inputs[1].Type.String())
	assert.Len(t, QuoterABI.Methods["quote"].Outputs, 3)
}

func TestMaxAllowance(t *testing.T) {
	assert.Equal(t, 256, MaxAllowance.BitLen())
	assert.Equal(t, 0, new(big.Int).Add(MaxAllowance, big.NewInt(1)).Cmp(new(big.Int).Lsh(big.NewInt(1), 256)))
}

func TestEncodeExtra(t *testing.T) {
	token0 := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token1 := common.HexToAddress("0x2222222222222222222222222222222222222222")
	payer := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := EncodeExtra(token0, token1, payer)
	require.NoError(t, err)
	require.Len(t, data, 96)

	// every address sits right-aligned in its own 32 byte word
	assert.Equal(t, make([]byte, 12), data[0:12])
	assert.Equal(t, token0.Bytes(), data[12:32])
	assert.Equal(t, token1.Bytes(), data[44:64])
	assert.Equal(t, payer.Bytes(), data[76:96])
}

func TestQuoteParamsPack(t *testing.T) {
	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	params := quoteParams{Pool: pool, AmountIn: big.NewInt(1e18), ZeroForOne: true}

	data, err := QuoterABI.Pack("quote", params)
	require.NoError(t, err)
	require.Len(t, data, 4+3*32)

	assert.Equal(t, pool.Bytes(), data[4+12:4+32])
	assert.Equal(t, big.NewInt(1e18), new(big.Int).SetBytes(data[36:68]))
	assert.Equal(t, byte(1), data[99])
}

func TestTransactRequiresSigner(t *testing.T) {
	token := &ERC20{address: common.HexToAddress("0x01")}

	_, err := token.Approve(context.Background(), common.Address{}, big.NewInt(1))
	assert.ErrorIs(t, err, swaptypes.ErrNotConnected)
}

type ctxKey struct{}

func TestTransactOptsCopiesContext(t *testing.T) {
	base := &bind.TransactOpts{From: common.HexToAddress("0x05")}
	ctx := context.WithValue(context.Background(), ctxKey{}, "x")

	opts, err := transactOpts(ctx, base)
	require.NoError(t, err)

	assert.Equal(t, ctx, opts.Context)
	assert.Nil(t, base.Context)
	assert.Equal(t, base.From, opts.From)
}
