package output

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/devlongs/swapdesk/internal/wallet"
	"github.com/devlongs/swapdesk/pkg/types"
)

var pool = types.Pool{
	Token0: types.Token{Symbol: "WETH", Decimals: 18},
	Token1: types.Token{Symbol: "USDC", Decimals: 18},
}

func init() {
	color.NoColor = true
}

func TestRenderEvent(t *testing.T) {
	amount0, _ := new(big.Int).SetString("998976618347425280", 10)
	amount1, _ := new(big.Int).SetString("5000000000000000000000", 10)

	mint := types.ChainEvent{Kind: types.EventMint, Mint: &types.MintArgs{
		LowerTick: 84222,
		UpperTick: 86129,
		Amount0:   amount0,
		Amount1:   amount1,
	}}
	assert.Equal(t, "Mint [range: [84222 - 86129], amounts: [0.99897661834742528, 5000.0]]", RenderEvent(mint, pool))

	swap := types.ChainEvent{Kind: types.EventSwap, Swap: &types.SwapArgs{
		Amount0: big.NewInt(-8396714242162444),
		Amount1: new(big.Int).Mul(big.NewInt(42), big.NewInt(1e18)),
	}}
	assert.Equal(t, "Swap [amount0: -0.008396714242162444, amount1: 42.0]", RenderEvent(swap, pool))

	assert.Empty(t, RenderEvent(types.ChainEvent{Kind: types.EventBurn}, pool))
}

func TestPrinterCountsShownEvents(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, pool)

	p.Events([]types.ChainEvent{
		{Kind: types.EventSwap, Swap: &types.SwapArgs{Amount0: big.NewInt(1), Amount1: big.NewInt(-1)}},
		{Kind: types.EventCollect},
		{Kind: types.EventMint, Mint: &types.MintArgs{Amount0: big.NewInt(0), Amount1: big.NewInt(0)}},
	})

	stats := p.GetStats()
	assert.Equal(t, uint64(1), stats.Swaps)
	assert.Equal(t, uint64(1), stats.Mints)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestRenderStatus(t *testing.T) {
	s := wallet.Status{
		State:   wallet.StateConnected,
		Account: common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		ChainID: 31337,
	}
	assert.Equal(t, "Connected to Anvil as 0xf39F...2266", RenderStatus(s))

	s.ChainID = 1
	assert.Equal(t, "Connected to Mainnet as 0xf39F...2266", RenderStatus(s))

	s.ChainID = 5
	assert.Contains(t, RenderStatus(s), "unknown chain")

	assert.Equal(t, "Wallet is not connected.", RenderStatus(wallet.Status{State: wallet.StateNotConnected}))
	assert.Equal(t, "No wallet key is configured.", RenderStatus(wallet.Status{State: wallet.StateNotInstalled}))
}
