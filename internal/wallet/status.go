// Package wallet models the connection status of the signing wallet and
// provides a key-backed wallet implementation.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// ErrInvalidTransition is returned when an event does not apply to the current state
var ErrInvalidTransition = errors.New("invalid wallet status transition")

// State is the coarse wallet connection state
type State int

const (
	StateNotInstalled State = iota
	StateNotConnected
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateNotInstalled:
		return "not installed"
	case StateNotConnected:
		return "not connected"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Status is the connection status; Account and ChainID are set only when connected
type Status struct {
	State   State
	Account common.Address
	ChainID uint64
}

// Connected reports whether the status carries an account
func (s Status) Connected() bool {
	return s.State == StateConnected
}

func (s Status) String() string {
	if s.State != StateConnected {
		return s.State.String()
	}
	return fmt.Sprintf("connected(%s, %d)", s.Account.Hex(), s.ChainID)
}

// ChainReader reports the chain id of the node the wallet signs for
type ChainReader interface {
	CurrentChainID(ctx context.Context) (uint64, error)
}

// Connector grants account access
type Connector interface {
	ChainReader
	// RequestAccount asks for account access; it may prompt the user
	RequestAccount(ctx context.Context) (common.Address, error)
}

// Wallet is the collaborator probed at startup
type Wallet interface {
	Connector
	Installed() bool
	// Accounts returns the accounts already granted, without prompting
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Listener observes status changes
type Listener func(prev, next Status)

// Model owns the wallet status. Listeners run synchronously, in subscription
// order, on the goroutine that caused the change and must not call back into
// the model's mutators.
type Model struct {
	mu        sync.Mutex
	status    Status
	listeners map[int]Listener
	nextID    int

	// emit serialises change notification so listeners observe transitions in order
	emit sync.Mutex
}

// NewModel creates a model in the NotConnected state
func NewModel() *Model {
	return &Model{
		status:    Status{State: StateNotConnected},
		listeners: make(map[int]Listener),
	}
}

// Status returns the current status
func (m *Model) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers a listener and returns a function that removes it
func (m *Model) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Probe determines the initial status from w. A missing wallet is terminal;
// a wallet that has already granted access is connected right away.
func (m *Model) Probe(ctx context.Context, w Wallet) (Status, error) {
	if m.Status().State == StateNotInstalled {
		return m.Status(), fmt.Errorf("%w: wallet is not installed", ErrInvalidTransition)
	}

	if w == nil || !w.Installed() {
		m.set(func(Status) (Status, error) { return Status{State: StateNotInstalled}, nil })
		return m.Status(), nil
	}

	accounts, err := w.Accounts(ctx)
	if err != nil {
		return m.Status(), fmt.Errorf("failed to read granted accounts: %w", err)
	}
	if len(accounts) == 0 {
		return m.Status(), nil
	}

	chainID, err := w.CurrentChainID(ctx)
	if err != nil {
		return m.Status(), fmt.Errorf("failed to read chain id: %w", err)
	}

	return m.set(func(cur Status) (Status, error) {
		if cur.State == StateNotInstalled {
			return cur, ErrInvalidTransition
		}
		return Status{State: StateConnected, Account: accounts[0], ChainID: chainID}, nil
	})
}

// Connect requests account access from c. Connecting an already connected
// model is a no-op.
func (m *Model) Connect(ctx context.Context, c Connector) (Status, error) {
	switch cur := m.Status(); cur.State {
	case StateNotInstalled:
		return cur, fmt.Errorf("%w: wallet is not installed", ErrInvalidTransition)
	case StateConnected:
		return cur, nil
	}

	account, err := c.RequestAccount(ctx)
	if err != nil {
		return m.Status(), fmt.Errorf("failed to request account: %w", err)
	}
	chainID, err := c.CurrentChainID(ctx)
	if err != nil {
		return m.Status(), fmt.Errorf("failed to read chain id: %w", err)
	}

	return m.set(func(cur Status) (Status, error) {
		if cur.State == StateNotInstalled {
			return cur, ErrInvalidTransition
		}
		return Status{State: StateConnected, Account: account, ChainID: chainID}, nil
	})
}

// Disconnect drops account access
func (m *Model) Disconnect() (Status, error) {
	return m.set(func(cur Status) (Status, error) {
		if cur.State != StateConnected {
			return cur, fmt.Errorf("%w: disconnect while %s", ErrInvalidTransition, cur.State)
		}
		return Status{State: StateNotConnected}, nil
	})
}

// AccountChanged switches the connected account. The zero address means the
// wallet revoked access.
func (m *Model) AccountChanged(account common.Address) (Status, error) {
	return m.set(func(cur Status) (Status, error) {
		if cur.State != StateConnected {
			return cur, fmt.Errorf("%w: account change while %s", ErrInvalidTransition, cur.State)
		}
		if account == (common.Address{}) {
			return Status{State: StateNotConnected}, nil
		}
		return Status{State: StateConnected, Account: account, ChainID: cur.ChainID}, nil
	})
}

// ChainChanged switches the connected chain. It is ignored while not connected.
func (m *Model) ChainChanged(chainID uint64) (Status, error) {
	return m.set(func(cur Status) (Status, error) {
		switch cur.State {
		case StateNotInstalled:
			return cur, fmt.Errorf("%w: chain change while %s", ErrInvalidTransition, cur.State)
		case StateNotConnected:
			return cur, nil
		}
		return Status{State: StateConnected, Account: cur.Account, ChainID: chainID}, nil
	})
}

// WatchChain polls reader every interval and reports chain id changes until
// ctx is done.
func (m *Model) WatchChain(ctx context.Context, reader ChainReader, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := m.Status()
			if !cur.Connected() {
				continue
			}

			chainID, err := reader.CurrentChainID(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to poll chain id")
				continue
			}
			if chainID != cur.ChainID {
				log.Info().
					Uint64("from", cur.ChainID).
					Uint64("to", chainID).
					Msg("Chain changed")
				if _, err := m.ChainChanged(chainID); err != nil {
					log.Warn().Err(err).Msg("Failed to apply chain change")
				}
			}
		}
	}
}

// set applies transition and notifies listeners when the status changed
func (m *Model) set(transition func(Status) (Status, error)) (Status, error) {
	m.emit.Lock()
	defer m.emit.Unlock()

	m.mu.Lock()
	prev := m.status
	next, err := transition(prev)
	if err != nil || next == prev {
		m.mu.Unlock()
		return prev, err
	}
	m.status = next

	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	log.Debug().Str("from", prev.String()).Str("to", next.String()).Msg("Wallet status changed")

	for _, l := range listeners {
		l(prev, next)
	}
	return next, nil
}
