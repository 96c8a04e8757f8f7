package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/decoder"
	"github.com/devlongs/swapdesk/pkg/types"
)

// ErrAlreadySubscribed is returned when a feed is asked to subscribe twice
var ErrAlreadySubscribed = errors.New("live subscription already established")

const defaultBackoff = 30 * time.Second

// FeedOptions tunes a Feed
type FeedOptions struct {
	// FromBlock is the first block of the historical backfill
	FromBlock uint64
	// Backoff caps the wait between resubscription attempts
	Backoff time.Duration
	// OnEvent is called for every live event merged by Start
	OnEvent func(types.ChainEvent)
}

// Feed connects one session's pool events to a Store. It owns at most one
// live subscription, established once and torn down by Close.
type Feed struct {
	filterer ethereum.LogFilterer
	decoder  *decoder.Decoder
	store    *Store
	epoch    uint64
	opts     FeedOptions

	mu        sync.Mutex
	sub       event.Subscription
	lastBlock uint64
	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed creates a feed writing into store under epoch
func NewFeed(filterer ethereum.LogFilterer, dec *decoder.Decoder, store *Store, epoch uint64, opts FeedOptions) *Feed {
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	return &Feed{
		filterer:  filterer,
		decoder:   dec,
		store:     store,
		epoch:     epoch,
		opts:      opts,
		lastBlock: opts.FromBlock,
		done:      make(chan struct{}),
	}
}

// Start subscribes to live events and then loads the history. Merges commute,
// so a live event racing the backfill is recorded exactly once.
func (f *Feed) Start(ctx context.Context) error {
	if err := f.SubscribeLive(ctx, f.opts.OnEvent); err != nil {
		return err
	}
	if _, err := f.LoadHistorical(ctx); err != nil {
		return err
	}
	return nil
}

// LoadHistorical fetches every Mint and Swap event of the pool from the
// configured start block to the chain head and merges them as a set.
func (f *Feed) LoadHistorical(ctx context.Context) ([]types.ChainEvent, error) {
	start := time.Now()

	events, err := f.fetch(ctx, f.opts.FromBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to load historical events: %w", err)
	}

	f.store.Apply(f.epoch, ActionSet, events...)

	log.Info().
		Str("pool", f.decoder.Pool().Hex()).
		Uint64("fromBlock", f.opts.FromBlock).
		Int("events", len(events)).
		Dur("duration", time.Since(start)).
		Msg("Loaded historical events")

	return events, nil
}

// SubscribeLive registers for future pool events. Each event is merged into
// the store and then passed to onEvent. The first subscription is opened
// before SubscribeLive returns and its error is returned. Later drops are
// re-established with backoff and the missed range is backfilled.
func (f *Feed) SubscribeLive(ctx context.Context, onEvent func(types.ChainEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sub != nil {
		return ErrAlreadySubscribed
	}
	select {
	case <-f.done:
		return errors.New("feed is closed")
	default:
	}

	logs := make(chan ethtypes.Log)
	first, err := f.filterer.SubscribeFilterLogs(ctx, f.decoder.LiveQuery(), logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to pool events: %w", err)
	}

	f.sub = event.ResubscribeErr(f.opts.Backoff, func(subCtx context.Context, lastErr error) (event.Subscription, error) {
		if first != nil {
			sub := first
			first = nil
			return f.watch(ctx, sub, logs, lastErr, onEvent), nil
		}
		return f.subscribe(ctx, subCtx, lastErr, onEvent)
	})

	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		}
	}()

	log.Debug().Str("pool", f.decoder.Pool().Hex()).Msg("Live event subscription established")
	return nil
}

// Close tears the live subscription down. It is safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)

		f.mu.Lock()
		sub := f.sub
		f.mu.Unlock()

		if sub != nil {
			sub.Unsubscribe()
		}
	})
}

// subscribe opens one transport subscription. subCtx only covers the
// subscribe call itself; ctx lives as long as the session.
func (f *Feed) subscribe(ctx, subCtx context.Context, lastErr error, onEvent func(types.ChainEvent)) (event.Subscription, error) {
	logs := make(chan ethtypes.Log)

	sub, err := f.filterer.SubscribeFilterLogs(subCtx, f.decoder.LiveQuery(), logs)
	if err != nil {
		log.Warn().Err(err).Str("pool", f.decoder.Pool().Hex()).Msg("Failed to subscribe to pool events")
		return nil, err
	}
	return f.watch(ctx, sub, logs, lastErr, onEvent), nil
}

// watch merges the logs of sub until it fails or is unsubscribed. A non-nil
// lastErr means sub replaces a dropped subscription.
func (f *Feed) watch(ctx context.Context, sub ethereum.Subscription, logs <-chan ethtypes.Log, lastErr error, onEvent func(types.ChainEvent)) event.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()

		if lastErr != nil {
			log.Warn().Err(lastErr).Msg("Live subscription dropped, resubscribed")
			f.backfillGap(ctx, onEvent)
		}

		for {
			select {
			case l := <-logs:
				f.handle(l, onEvent)
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	})
}

// backfillGap merges the events emitted while the subscription was down
func (f *Feed) backfillGap(ctx context.Context, onEvent func(types.ChainEvent)) {
	f.mu.Lock()
	from := f.lastBlock
	f.mu.Unlock()

	events, err := f.fetch(ctx, from)
	if err != nil {
		log.Error().Err(err).Uint64("fromBlock", from).Msg("Failed to backfill events after resubscription")
		return
	}
	if !f.store.Apply(f.epoch, ActionAdd, events...) {
		return
	}

	log.Info().Uint64("fromBlock", from).Int("events", len(events)).Msg("Backfilled missed events")
	if onEvent != nil {
		for _, ev := range events {
			onEvent(ev)
		}
	}
}

func (f *Feed) handle(l ethtypes.Log, onEvent func(types.ChainEvent)) {
	ev, err := f.decoder.DecodeLog(l)
	if err != nil {
		log.Warn().Err(err).Str("txHash", l.TxHash.Hex()).Msg("Failed to decode live event")
		return
	}

	if ev.Removed {
		if f.store.Remove(f.epoch, ev.Key()) {
			log.Info().
				Uint64("block", ev.BlockNumber).
				Uint("logIndex", ev.LogIndex).
				Msg("Dropped event reverted by reorg")
		}
		return
	}

	f.seen(ev.BlockNumber)
	if !f.store.Apply(f.epoch, ActionAdd, ev) {
		return
	}
	if onEvent != nil {
		onEvent(ev)
	}
}

// fetch queries and decodes the pool's events from fromBlock to the head
func (f *Feed) fetch(ctx context.Context, fromBlock uint64) ([]types.ChainEvent, error) {
	logs, err := f.filterer.FilterLogs(ctx, f.decoder.Query(fromBlock, nil))
	if err != nil {
		return nil, err
	}

	events := make([]types.ChainEvent, 0, len(logs))
	for _, ev := range f.decoder.DecodeLogs(logs) {
		if ev.Removed {
			continue
		}
		f.seen(ev.BlockNumber)
		events = append(events, ev)
	}
	return events, nil
}

func (f *Feed) seen(block uint64) {
	f.mu.Lock()
	if block > f.lastBlock {
		f.lastBlock = block
	}
	f.mu.Unlock()
}
