// Package pending holds proposed actions awaiting human confirmation.
// Entries are keyed by short opaque tickets and expire on a wall-clock TTL;
// expired entries are swept opportunistically on access rather than by a
// background timer, which is adequate because the store stays small and
// short-lived.
package pending

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kumar-shivang/work-tracker/pkg/types"
)

// DefaultTTL is how long a proposed action stays resolvable when the caller
// does not specify a TTL.
const DefaultTTL = 5 * time.Minute

type entry struct {
	record    types.ActionRecord
	expiresAt time.Time
}

// Store is a concurrency-safe TTL ticket store. Remove is the single point
// of truth for "has this ticket already been resolved": confirm and cancel
// racing on the same id are linearized by the mutex, so exactly one of them
// receives the record.
type Store struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// New creates a store with the default TTL.
func New() *Store {
	return NewWithTTL(DefaultTTL)
}

// NewWithTTL creates a store whose unspecified-TTL entries live for ttl.
func NewWithTTL(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		entries:    make(map[string]entry),
		defaultTTL: ttl,
		now:        time.Now,
		newID:      func() string { return uuid.NewString()[:8] },
	}
}

// Put stores a proposed action with the store's default TTL and returns its
// ticket id.
func (s *Store) Put(record types.ActionRecord) string {
	return s.PutWithTTL(record, s.defaultTTL)
}

// PutWithTTL stores a proposed action with an explicit TTL. A zero or
// negative TTL produces an entry that is already expired and resolvable by
// nothing.
func (s *Store) PutWithTTL(record types.ActionRecord, ttl time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	// Short ids can collide; overwriting a live entry would resurrect a
	// ticket that may already have been handed out, so draw again.
	id := s.newID()
	for {
		if _, taken := s.entries[id]; !taken {
			break
		}
		id = s.newID()
	}
	s.entries[id] = entry{record: record, expiresAt: s.now().Add(ttl)}
	return id
}

// Get returns the record for id without consuming it, or false when the id
// is absent or expired.
func (s *Store) Get(id string) (types.ActionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	e, ok := s.entries[id]
	if !ok || !e.expiresAt.After(s.now()) {
		return types.ActionRecord{}, false
	}
	return e.record, true
}

// Remove atomically consumes and returns the record for id. Once an id has
// been removed (consumed, cancelled, or expired) it is never resolvable
// again: at most one execution per ticket. Absence is not an error; callers
// treat it as "nothing to do".
func (s *Store) Remove(id string) (types.ActionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return types.ActionRecord{}, false
	}
	delete(s.entries, id)
	// The deadline check lives here, not only in the sweep, so a dead
	// ticket cannot be resurrected between sweeps.
	if !e.expiresAt.After(s.now()) {
		return types.ActionRecord{}, false
	}
	return e.record, true
}

// Len reports the number of live (unswept) entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

// sweepLocked drops expired entries. Caller must hold mu.
func (s *Store) sweepLocked() {
	now := s.now()
	for id, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, id)
		}
	}
}
