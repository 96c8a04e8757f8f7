// Package events reconciles historical and live pool events into one ordered,
// duplicate-free ledger.
package events

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/devlongs/swapdesk/pkg/types"
)

// Action tells how a merge was triggered
type Action int

const (
	// ActionSet merges a historical backfill
	ActionSet Action = iota
	// ActionAdd merges live events
	ActionAdd
)

func (a Action) String() string {
	if a == ActionSet {
		return "set"
	}
	return "add"
}

// Filter selects event kinds; a nil Filter selects everything
type Filter map[types.EventKind]bool

// DisplayKinds are the only kinds ever rendered
var DisplayKinds = Filter{types.EventMint: true, types.EventSwap: true}

// Merge returns incoming and ledger combined, sorted by block number then log
// index (both descending), with duplicate keys removed. The first occurrence
// in sort order wins, so incoming events replace equal keys already present.
// Neither input is modified.
func Merge(ledger, incoming []types.ChainEvent) []types.ChainEvent {
	all := make([]types.ChainEvent, 0, len(incoming)+len(ledger))
	all = append(all, incoming...)
	all = append(all, ledger...)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].BlockNumber != all[j].BlockNumber {
			return all[i].BlockNumber > all[j].BlockNumber
		}
		return all[i].LogIndex > all[j].LogIndex
	})

	out := all[:0]
	for i, ev := range all {
		if i > 0 && ev.Key() == all[i-1].Key() {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Store owns the event ledger of one connected session at a time. Every
// Reset starts a new epoch; writes tagged with an older epoch are dropped so
// a torn down feed cannot leak events into the next session.
type Store struct {
	mu       sync.RWMutex
	ledger   []types.ChainEvent
	epoch    uint64
	onChange func()
}

// NewStore creates an empty store. onChange, if set, runs after every
// applied mutation, outside the lock.
func NewStore(onChange func()) *Store {
	return &Store{onChange: onChange}
}

// Epoch returns the current epoch
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Reset empties the ledger and starts a new epoch, which it returns
func (s *Store) Reset() uint64 {
	s.mu.Lock()
	s.ledger = nil
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	log.Debug().Uint64("epoch", epoch).Msg("Event ledger reset")
	s.changed()
	return epoch
}

// Apply merges events into the ledger. It reports false when epoch is stale.
func (s *Store) Apply(epoch uint64, action Action, events ...types.ChainEvent) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		log.Debug().
			Uint64("epoch", epoch).
			Str("action", action.String()).
			Int("events", len(events)).
			Msg("Dropping merge from a stale session")
		return false
	}
	before := len(s.ledger)
	s.ledger = Merge(s.ledger, events)
	after := len(s.ledger)
	s.mu.Unlock()

	log.Debug().
		Str("action", action.String()).
		Int("incoming", len(events)).
		Int("added", after-before).
		Int("ledger", after).
		Msg("Merged events")

	s.changed()
	return true
}

// Remove drops the event with key from the ledger, used when a log is
// reverted by a reorganisation. It reports whether an event was removed.
func (s *Store) Remove(epoch uint64, key types.EventKey) bool {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	removed := false
	kept := make([]types.ChainEvent, 0, len(s.ledger))
	for _, ev := range s.ledger {
		if ev.Key() == key {
			removed = true
			continue
		}
		kept = append(kept, ev)
	}
	s.ledger = kept
	s.mu.Unlock()

	if removed {
		s.changed()
	}
	return removed
}

// Events returns a copy of the ledger restricted to the kinds in filter
func (s *Store) Events(filter Filter) []types.ChainEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ChainEvent, 0, len(s.ledger))
	for _, ev := range s.ledger {
		if filter != nil && !filter[ev.Kind] {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Len returns the number of events in the ledger, of every kind
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledger)
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
