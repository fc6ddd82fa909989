// Package cache holds the latest reported values per point type together
// with their update and poll timestamps.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"avaneesh/dnp3-cache/pkg/types"
)

// PollDecision is the outcome of BeginPoll
type PollDecision int

const (
	// DecisionFresh means the cached values are young enough to serve
	DecisionFresh PollDecision = iota
	// DecisionBackoff means a recent poll failed and no data has arrived since
	DecisionBackoff
	// DecisionStarted means the entry was reset and the caller owns a new poll
	DecisionStarted
	// DecisionJoined means a poll is already in flight; the caller waits and
	// re-polls only after claiming the cycle with ClaimPoll
	DecisionJoined
)

// String returns string representation of PollDecision
func (d PollDecision) String() string {
	switch d {
	case DecisionFresh:
		return "fresh"
	case DecisionBackoff:
		return "backoff"
	case DecisionStarted:
		return "started"
	case DecisionJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of one entry
type Snapshot struct {
	PointType       types.GroupVariation `json:"-"`
	Values          types.IndexValueMap  `json:"values"`
	LastUpdated     time.Time            `json:"last_updated"`
	LastPollAttempt time.Time            `json:"last_poll_attempt"`
}

// Populated reports whether a report has been processed since the last reset
func (s Snapshot) Populated() bool {
	return !s.LastUpdated.IsZero()
}

type entry struct {
	values          types.IndexValueMap
	lastUpdated     time.Time
	lastPollAttempt time.Time
	updated         chan struct{} // closed and replaced on every write
	polling         int           // callers currently inside a poll cycle
	owned           bool          // one of them is re-issuing polls
}

func (e *entry) snapshot(gv types.GroupVariation) Snapshot {
	return Snapshot{
		PointType:       gv,
		Values:          e.values.Clone(),
		LastUpdated:     e.lastUpdated,
		LastPollAttempt: e.lastPollAttempt,
	}
}

func (e *entry) notify() {
	close(e.updated)
	e.updated = make(chan struct{})
}

// Store maps point types to their latest values.
// A single mutex guards every entry.
type Store struct {
	mu        sync.Mutex
	entries   map[types.GroupVariation]*entry
	observers []Observer
	now       func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithObserver registers an observer at construction
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observers = append(s.observers, o)
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[types.GroupVariation]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's clock reading
func (s *Store) Now() time.Time {
	return s.now()
}

// Subscribe registers an observer for subsequent writes
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// entryLocked returns the entry for gv, creating it. Caller holds s.mu.
func (s *Store) entryLocked(gv types.GroupVariation) *entry {
	e, ok := s.entries[gv]
	if !ok {
		e = &entry{
			values:  make(types.IndexValueMap),
			updated: make(chan struct{}),
		}
		s.entries[gv] = e
	}
	return e
}

// Ingest merges a delivered report and stamps the entry as updated.
// Indices absent from values keep their previous value.
func (s *Store) Ingest(gv types.GroupVariation, values types.IndexValueMap, src Source) time.Time {
	s.mu.Lock()
	e := s.entryLocked(gv)
	e.values.Merge(values)
	now := s.now()
	if now.Before(e.lastUpdated) {
		now = e.lastUpdated
	}
	e.lastUpdated = now
	e.notify()
	observers := s.observers
	s.mu.Unlock()

	s.publish(observers, Update{PointType: gv, Values: values.Clone(), Source: src, At: now})
	return now
}

// ApplyLocal writes a locally known value without marking the entry fresh
func (s *Store) ApplyLocal(gv types.GroupVariation, index uint16, v types.PointValue) {
	s.mu.Lock()
	e := s.entryLocked(gv)
	e.values[index] = v
	e.notify()
	now := s.now()
	observers := s.observers
	s.mu.Unlock()

	s.publish(observers, Update{
		PointType: gv,
		Values:    types.IndexValueMap{index: v},
		Source:    SourceLocal,
		At:        now,
	})
}

func (s *Store) publish(observers []Observer, u Update) {
	for _, o := range observers {
		o.OnUpdate(u)
	}
}

// BeginPoll decides how a read of gv proceeds. On DecisionFresh the
// returned snapshot holds the cached values. On DecisionStarted the entry
// has been cleared so a concurrent reader never sees stale values as fresh,
// and the caller owns the cycle. A cycle whose owner has left is taken over
// by the next reader. Every DecisionStarted or DecisionJoined must be paired
// with EndPoll.
func (s *Store) BeginPoll(gv types.GroupVariation, maxAge time.Duration) (PollDecision, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e := s.entryLocked(gv)

	if !e.lastUpdated.IsZero() && now.Sub(e.lastUpdated) < maxAge {
		return DecisionFresh, e.snapshot(gv)
	}
	if e.polling > 0 && e.owned {
		e.polling++
		return DecisionJoined, e.snapshot(gv)
	}
	if e.polling == 0 && e.lastUpdated.IsZero() && !e.lastPollAttempt.IsZero() && now.Sub(e.lastPollAttempt) < maxAge {
		return DecisionBackoff, e.snapshot(gv)
	}

	e.values = make(types.IndexValueMap)
	e.lastUpdated = time.Time{}
	e.polling++
	e.owned = true
	return DecisionStarted, e.snapshot(gv)
}

// ClaimPoll makes a joined reader the owner of a cycle whose owner has
// left. It reports whether the caller now owns the cycle.
func (s *Store) ClaimPoll(gv types.GroupVariation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(gv)
	if e.owned || e.polling == 0 {
		return false
	}
	e.owned = true
	return true
}

// EndPoll closes a caller's part in a poll cycle. An owner releases the
// cycle so a remaining reader can claim it. A failed cycle records the
// attempt time so later readers back off instead of polling again
// immediately.
func (s *Store) EndPoll(gv types.GroupVariation, owner, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(gv)
	if e.polling > 0 {
		e.polling--
	}
	if owner {
		e.owned = false
	}
	if !ok {
		e.lastPollAttempt = s.now()
	}
}

// WaitForUpdate blocks until the entry for gv is populated, timeout
// elapses, or ctx is done. It reports whether the entry is populated.
func (s *Store) WaitForUpdate(ctx context.Context, gv types.GroupVariation, timeout time.Duration) (bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		e := s.entryLocked(gv)
		populated := !e.lastUpdated.IsZero()
		updated := e.updated
		s.mu.Unlock()

		if populated {
			return true, nil
		}

		select {
		case <-updated:
		case <-timer.C:
			return s.populated(gv), nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

func (s *Store) populated(gv types.GroupVariation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[gv]
	return ok && !e.lastUpdated.IsZero()
}

// Invalidate clears an entry so the next read polls
func (s *Store) Invalidate(gv types.GroupVariation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[gv]; ok {
		e.values = make(types.IndexValueMap)
		e.lastUpdated = time.Time{}
	}
}

// InvalidateAll clears every entry
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		e.values = make(types.IndexValueMap)
		e.lastUpdated = time.Time{}
	}
}

// Peek returns a copy of the entry for gv without side effects
func (s *Store) Peek(gv types.GroupVariation) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[gv]
	if !ok {
		return Snapshot{PointType: gv, Values: types.IndexValueMap{}}, false
	}
	return e.snapshot(gv), true
}

// Snapshots returns a copy of every entry ordered by point type
func (s *Store) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.entries))
	for gv, e := range s.entries {
		out = append(out, e.snapshot(gv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PointType < out[j].PointType })
	return out
}
