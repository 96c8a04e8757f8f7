package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/internal/events"
	"github.com/devlongs/swapdesk/internal/wallet"
)

// Feed is a session-scoped event source
type Feed interface {
	Start(ctx context.Context) error
	Close()
}

// FeedFactory creates the feed of a connected session writing under epoch
type FeedFactory func(status wallet.Status, epoch uint64) Feed

// Manager runs exactly one feed per connected session. Leaving a session
// closes its feed and empties the store before anything else happens.
type Manager struct {
	model   *wallet.Model
	store   *events.Store
	factory FeedFactory

	mu          sync.Mutex
	ctx         context.Context
	feed        Feed
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewManager creates a manager for the sessions of model
func NewManager(model *wallet.Model, store *events.Store, factory FeedFactory) *Manager {
	return &Manager{model: model, store: store, factory: factory}
}

// Run starts following status changes. A session already connected is
// started immediately. Feeds stop when ctx is done or Close is called.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	m.unsubscribe = m.model.Subscribe(m.onChange)

	if status := m.model.Status(); status.Connected() {
		m.begin(status)
	}
}

// Close stops following status changes and tears the current session down
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.end()
	m.wg.Wait()
}

func (m *Manager) onChange(prev, next wallet.Status) {
	if prev == next {
		return
	}
	if prev.Connected() {
		m.end()
	}
	if next.Connected() {
		m.begin(next)
	}
}

// begin starts a fresh epoch and the feed for status
func (m *Manager) begin(status wallet.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return
	}

	epoch := m.store.Reset()
	ctx, cancel := context.WithCancel(m.ctx)
	feed := m.factory(status, epoch)
	m.feed = feed
	m.cancel = cancel

	log.Info().
		Str("account", status.Account.Hex()).
		Uint64("chainId", status.ChainID).
		Uint64("epoch", epoch).
		Msg("Session started")

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := feed.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Uint64("epoch", epoch).Msg("Event feed failed to start")
		}
	}()
}

// end closes the running feed and empties the store
func (m *Manager) end() {
	m.mu.Lock()
	feed, cancel := m.feed, m.cancel
	m.feed, m.cancel = nil, nil
	m.mu.Unlock()

	if feed == nil {
		return
	}

	cancel()
	feed.Close()
	epoch := m.store.Reset()

	log.Info().Uint64("epoch", epoch).Msg("Session ended")
}
