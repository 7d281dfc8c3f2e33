// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package conversation keeps per-conversation turn histories in memory.
//
// The store is bounded by the number of distinct conversation ids. When an
// append creates an id beyond capacity, the id inserted earliest is evicted.
// Eviction follows insertion order, not recency of use.
package conversation

import (
	"container/list"
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/evidence-engine/pkg/types"
)

// DefaultCapacity is the number of conversations kept when none is configured.
const DefaultCapacity = 100

// DefaultHistoryWindow is the number of recent turns fed into a prompt.
const DefaultHistoryWindow = 5

// idPrefix marks conversation identifiers minted by NewID.
const idPrefix = "conv_"

// NewID returns a fresh conversation identifier. The suffix is a UUIDv7, which
// is time-ordered and unique across process restarts.
func NewID() string {
	return idPrefix + uuid.Must(uuid.NewV7()).String()
}

// EvictFunc is called with the id of each conversation removed by the
// capacity bound. It runs with the store lock held and must not call back
// into the store.
type EvictFunc func(id string)

type entry struct {
	id    string
	turns []types.Turn
}

// Store maps conversation ids to turn histories. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	capacity int
	order    *list.List // of *entry, oldest insertion at front
	byID     map[string]*list.Element
	onEvict  EvictFunc

	locksMu sync.Mutex
	locks   map[string]*idLock
}

// idLock is a one-slot semaphore so waiters can give up on ctx.
type idLock struct {
	sem  chan struct{}
	refs int
}

// NewStore returns an empty store bounded by cfg.Capacity.
func NewStore(cfg types.ConversationConfig) *Store {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		order:    list.New(),
		byID:     make(map[string]*list.Element),
		locks:    make(map[string]*idLock),
	}
}

// OnEvict registers fn to observe capacity evictions.
func (s *Store) OnEvict(fn EvictFunc) {
	s.mu.Lock()
	s.onEvict = fn
	s.mu.Unlock()
}

// Capacity reports the configured bound.
func (s *Store) Capacity() int { return s.capacity }

// Get returns a copy of the full history for id, or an empty slice.
func (s *Store) Get(id string) []types.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.byID[id]
	if !ok {
		return []types.Turn{}
	}
	return append([]types.Turn(nil), el.Value.(*entry).turns...)
}

// RecentWindow returns a copy of the last n turns for id in original order.
// n <= 0 yields an empty slice.
func (s *Store) RecentWindow(id string, n int) []types.Turn {
	if n <= 0 {
		return []types.Turn{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	el, ok := s.byID[id]
	if !ok {
		return []types.Turn{}
	}
	turns := el.Value.(*entry).turns
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]types.Turn(nil), turns...)
}

// Append adds turns to the history of id, creating it on first use. Creating
// an id beyond capacity evicts the earliest-inserted id.
func (s *Store) Append(id string, turns ...types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.byID[id]; ok {
		e := el.Value.(*entry)
		e.turns = append(e.turns, turns...)
		return
	}

	e := &entry{id: id, turns: append([]types.Turn(nil), turns...)}
	s.byID[id] = s.order.PushBack(e)

	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		victim := oldest.Value.(*entry).id
		s.order.Remove(oldest)
		delete(s.byID, victim)
		if s.onEvict != nil {
			s.onEvict(victim)
		}
	}
}

// Delete removes id. It reports whether the id was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	el, ok := s.byID[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.byID, id)
	return true
}

// Has reports whether id has a history.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of conversations held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.order.Len()
}

// Lock acquires exclusive access to id for a read-generate-append sequence
// and returns the function that releases it. It gives up with ctx.Err() when
// ctx ends before the lock is free. Lock state is dropped once no caller
// holds or waits on it.
func (s *Store) Lock(ctx context.Context, id string) (unlock func(), err error) {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{sem: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		s.release(id, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			s.release(id, l)
		})
	}, nil
}

func (s *Store) release(id string, l *idLock) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

// lockCount reports held or awaited id locks.
func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}
