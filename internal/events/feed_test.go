package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlongs/swapdesk/internal/decoder"
	"github.com/devlongs/swapdesk/internal/dex/uniswapv3"
	"github.com/devlongs/swapdesk/pkg/types"
)

var testPool = common.HexToAddress("0x9A676e781A523b5d0C0e43731313A708CB607508")

func swapLog(block uint64, idx uint) ethtypes.Log {
	return ethtypes.Log{
		Address:     testPool,
		Topics:      []common.Hash{uniswapv3.SwapEventSignature, {}, {}},
		Data:        make([]byte, 160),
		BlockNumber: block,
		Index:       idx,
	}
}

// fakeFilterer serves history from a slice and live logs from a channel.
// Each subscription forwards live logs until it is told to fail.
type fakeFilterer struct {
	mu      sync.Mutex
	history []ethtypes.Log
	subs    int
	queries []uint64
	calls   []string

	subscribeDelay time.Duration
	subscribeErr   error

	live chan ethtypes.Log
	fail chan error
}

func newFakeFilterer(history ...ethtypes.Log) *fakeFilterer {
	return &fakeFilterer{
		history: history,
		live:    make(chan ethtypes.Log),
		fail:    make(chan error),
	}
}

func (f *fakeFilterer) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := q.FromBlock.Uint64()
	f.queries = append(f.queries, from)
	f.calls = append(f.calls, "filter")

	var out []ethtypes.Log
	for _, l := range f.history {
		if l.BlockNumber >= from {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeFilterer) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, ch chan<- ethtypes.Log) (ethereum.Subscription, error) {
	f.mu.Lock()
	delay, subErr := f.subscribeDelay, f.subscribeErr
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	f.calls = append(f.calls, "subscribe")
	f.subs++
	f.mu.Unlock()

	if subErr != nil {
		return nil, subErr
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		for {
			select {
			case l := <-f.live:
				select {
				case ch <- l:
				case <-quit:
					return nil
				}
			case err := <-f.fail:
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (f *fakeFilterer) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs
}

func (f *fakeFilterer) callOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFilterer) addHistory(l ethtypes.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, l)
}

func TestFeedLiveEventRacingBackfillAppearsOnce(t *testing.T) {
	filterer := newFakeFilterer(swapLog(1, 0), swapLog(2, 0))
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{Backoff: 10 * time.Millisecond})
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, feed.Start(ctx))
	assert.Equal(t, 2, store.Len())

	filterer.live <- swapLog(2, 0)
	filterer.live <- swapLog(3, 0)

	require.Eventually(t, func() bool { return store.Len() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []types.EventKey{{BlockNumber: 3, LogIndex: 0}, {BlockNumber: 2, LogIndex: 0}, {BlockNumber: 1, LogIndex: 0}}, keys(store.Events(DisplayKinds)))
}

func TestFeedSubscribesOnce(t *testing.T) {
	filterer := newFakeFilterer()
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})
	defer feed.Close()

	var mu sync.Mutex
	var fired []types.EventKey
	onEvent := func(e types.ChainEvent) {
		mu.Lock()
		fired = append(fired, e.Key())
		mu.Unlock()
	}

	require.NoError(t, feed.SubscribeLive(context.Background(), onEvent))
	assert.ErrorIs(t, feed.SubscribeLive(context.Background(), onEvent), ErrAlreadySubscribed)

	// Every matching event fires, not only the first one.
	filterer.live <- swapLog(5, 0)
	filterer.live <- swapLog(6, 0)
	filterer.live <- swapLog(7, 0)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, filterer.subscriptions())
}

func TestFeedResubscribesAndBackfillsGap(t *testing.T) {
	filterer := newFakeFilterer()
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{Backoff: 10 * time.Millisecond})
	defer feed.Close()

	require.NoError(t, feed.SubscribeLive(context.Background(), nil))

	filterer.live <- swapLog(2, 0)
	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

	// Block 3 is produced while the connection is down.
	filterer.addHistory(swapLog(3, 0))
	filterer.fail <- errors.New("connection reset")

	require.Eventually(t, func() bool { return store.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, filterer.subscriptions())
	assert.Equal(t, []types.EventKey{{BlockNumber: 3, LogIndex: 0}, {BlockNumber: 2, LogIndex: 0}}, keys(store.Events(nil)))

	filterer.mu.Lock()
	assert.Equal(t, []uint64{2}, filterer.queries)
	filterer.mu.Unlock()
}

func TestFeedDropsRemovedLogs(t *testing.T) {
	filterer := newFakeFilterer(swapLog(1, 0), swapLog(2, 0))
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})
	defer feed.Close()

	require.NoError(t, feed.Start(context.Background()))

	removed := swapLog(2, 0)
	removed.Removed = true
	filterer.live <- removed

	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFeedAfterResetDoesNotWrite(t *testing.T) {
	filterer := newFakeFilterer()
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})
	defer feed.Close()

	require.NoError(t, feed.SubscribeLive(context.Background(), nil))
	store.Reset()

	filterer.live <- swapLog(4, 0)
	filterer.live <- swapLog(5, 0)

	assert.Never(t, func() bool { return store.Len() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestFeedClosesWithContext(t *testing.T) {
	filterer := newFakeFilterer()
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, feed.SubscribeLive(ctx, nil))
	cancel()

	require.Eventually(t, func() bool {
		select {
		case <-feed.done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, feed.SubscribeLive(context.Background(), nil))
}

func TestFeedSubscribesBeforeBackfill(t *testing.T) {
	filterer := newFakeFilterer(swapLog(1, 0))
	filterer.subscribeDelay = 20 * time.Millisecond
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})
	defer feed.Close()

	require.NoError(t, feed.Start(context.Background()))
	assert.Equal(t, []string{"subscribe", "filter"}, filterer.callOrder())

	// A log mined after the backfill arrives on the open subscription.
	filterer.live <- swapLog(2, 0)
	require.Eventually(t, func() bool { return store.Len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, filterer.subscriptions())
}

func TestFeedStartFailsWhenSubscribeFails(t *testing.T) {
	filterer := newFakeFilterer(swapLog(1, 0))
	filterer.subscribeErr = errors.New("notifications not supported")
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})
	defer feed.Close()

	err := feed.Start(context.Background())
	assert.ErrorContains(t, err, "notifications not supported")
	assert.Equal(t, []string{"subscribe"}, filterer.callOrder())
	assert.Zero(t, store.Len())

	// Nothing was registered, so a retry may subscribe again.
	filterer.mu.Lock()
	filterer.subscribeErr = nil
	filterer.mu.Unlock()
	require.NoError(t, feed.SubscribeLive(context.Background(), nil))
}

func TestFeedKeepsUndisplayedKinds(t *testing.T) {
	burn := ethtypes.Log{
		Address:     testPool,
		Topics:      []common.Hash{uniswapv3.BurnEventSignature},
		BlockNumber: 3,
		Index:       1,
	}
	filterer := newFakeFilterer(swapLog(2, 0), burn)
	store := NewStore(nil)
	feed := NewFeed(filterer, decoder.NewDecoder(testPool), store, store.Epoch(), FeedOptions{})
	defer feed.Close()

	require.NoError(t, feed.Start(context.Background()))

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, []types.EventKey{{BlockNumber: 2, LogIndex: 0}}, keys(store.Events(DisplayKinds)))
}
