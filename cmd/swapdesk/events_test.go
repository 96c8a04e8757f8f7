package main

import (
	"bytes"
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/swapdesk/internal/events"
	"github.com/devlongs/swapdesk/internal/output"
	"github.com/devlongs/swapdesk/pkg/types"
)

var testPool = types.Pool{
	Token0: types.Token{Symbol: "WETH", Decimals: 0},
	Token1: types.Token{Symbol: "USDC", Decimals: 0},
}

func swapAt(block uint64, amount0 int64) types.ChainEvent {
	return types.ChainEvent{
		Kind:        types.EventSwap,
		BlockNumber: block,
		Swap:        &types.SwapArgs{Amount0: big.NewInt(amount0), Amount1: big.NewInt(-amount0)},
	}
}

// scriptedFeed merges history on Start and lets the test deliver live events
type scriptedFeed struct {
	store   *events.Store
	epoch   uint64
	history []types.ChainEvent
	// during runs inside Start, after the history is merged
	during func()
}

func (f *scriptedFeed) Start(context.Context) error {
	f.store.Apply(f.epoch, events.ActionSet, f.history...)
	if f.during != nil {
		f.during()
	}
	return nil
}

func (f *scriptedFeed) Close() {}

func lines(buf *bytes.Buffer) []string {
	return strings.Split(strings.TrimSpace(buf.String()), "\n")
}

func init() {
	color.NoColor = true
}

func TestLedgerViewPrintsBackfillThenLive(t *testing.T) {
	var buf bytes.Buffer
	store := events.NewStore(nil)
	epoch := store.Epoch()

	view := newLedgerView(store, epoch, output.NewPrinter(&buf, testPool))
	feed := &scriptedFeed{store: store, epoch: epoch, history: []types.ChainEvent{swapAt(1, 10), swapAt(2, 20)}}
	view.feed = feed

	// A live event that lands before the backfill is printed is shown with it.
	feed.during = func() {
		live := swapAt(3, 30)
		store.Apply(epoch, events.ActionAdd, live)
		view.Event(live)
	}

	require.NoError(t, view.Start(context.Background()))
	assert.Equal(t, []string{
		"Swap [amount0: 30.0, amount1: -30.0]",
		"Swap [amount0: 20.0, amount1: -20.0]",
		"Swap [amount0: 10.0, amount1: -10.0]",
	}, lines(&buf))

	live := swapAt(4, 40)
	store.Apply(epoch, events.ActionAdd, live)
	view.Event(live)
	view.Event(swapAt(2, 20))

	assert.Len(t, lines(&buf), 4)
	assert.Equal(t, "Swap [amount0: 40.0, amount1: -40.0]", lines(&buf)[3])
}

func TestLedgerViewSkipsResetLedger(t *testing.T) {
	var buf bytes.Buffer
	store := events.NewStore(nil)
	epoch := store.Epoch()

	view := newLedgerView(store, epoch, output.NewPrinter(&buf, testPool))
	view.feed = &scriptedFeed{
		store:   store,
		epoch:   epoch,
		history: []types.ChainEvent{swapAt(1, 10)},
		during:  func() { store.Reset() },
	}

	require.NoError(t, view.Start(context.Background()))
	assert.Empty(t, buf.String())
}
