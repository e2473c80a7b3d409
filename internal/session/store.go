// Package session holds the per-recording mutable state: the computed-
// channel store and the result integrator that feeds it.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recwave/recwave/internal/channel"
)

// ChangeKind tags store notifications.
type ChangeKind string

const (
	// ChangeAdded means a new computed channel was inserted.
	ChangeAdded ChangeKind = "added"
	// ChangeReplaced means an existing computed channel was replaced
	// wholesale.
	ChangeReplaced ChangeKind = "replaced"
	// ChangeRemoved means a computed channel was deleted.
	ChangeRemoved ChangeKind = "removed"
)

// ChangeEvent is delivered to subscribers after each mutation. Channels is
// a snapshot (deep clones, creation order); mutating it cannot corrupt the
// store.
type ChangeEvent struct {
	Kind     ChangeKind
	ID       string
	Channels []*channel.ComputedChannel
}

// Store is the in-memory registry of computed channels for one recording.
//
// All mutations are serialised by an internal mutex and emit exactly one
// notification each. Subscribers receive snapshots, never live references.
// Listeners run on the mutating goroutine and must not call back into the
// store.
//
// Invariants:
//   - ids are unique across base channels and computed channels combined
//   - every computed channel's sample count equals the recording's N
type Store struct {
	rec *channel.Recording
	log *slog.Logger

	mu      sync.Mutex
	order   []string
	byID    map[string]*channel.ComputedChannel
	subs    map[int]func(ChangeEvent)
	nextSub int
}

// NewStore creates an empty store bound to a recording.
func NewStore(rec *channel.Recording, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		rec:  rec,
		log:  log,
		byID: make(map[string]*channel.ComputedChannel),
		subs: make(map[int]func(ChangeEvent)),
	}
}

// Add inserts a new computed channel. Fails if the id collides with an
// existing computed or base channel, or if the sample count disagrees with
// the recording.
func (s *Store) Add(ch *channel.ComputedChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ch); err != nil {
		return err
	}
	if _, exists := s.byID[ch.ID]; exists {
		return fmt.Errorf("computed channel %q already exists", ch.ID)
	}
	if s.rec.Has(ch.ID) {
		return fmt.Errorf("id %q collides with a base channel", ch.ID)
	}

	s.byID[ch.ID] = ch.Clone()
	s.order = append(s.order, ch.ID)
	s.log.Info("computed channel added", "id", ch.ID, "label", ch.Label, "samples", ch.SampleCount())
	s.notify(ChangeEvent{Kind: ChangeAdded, ID: ch.ID, Channels: s.snapshot()})
	return nil
}

// Replace swaps the computed channel with the given id wholesale, keeping
// its creation-order position. Fails if the id is absent.
func (s *Store) Replace(id string, ch *channel.ComputedChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ch); err != nil {
		return err
	}
	if _, exists := s.byID[id]; !exists {
		return fmt.Errorf("computed channel %q not found", id)
	}
	if ch.ID != id {
		return fmt.Errorf("replacement id %q does not match %q", ch.ID, id)
	}

	s.byID[id] = ch.Clone()
	s.log.Info("computed channel replaced", "id", id, "label", ch.Label)
	s.notify(ChangeEvent{Kind: ChangeReplaced, ID: id, Channels: s.snapshot()})
	return nil
}

// Remove deletes a computed channel. Fails if the id is absent.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; !exists {
		return fmt.Errorf("computed channel %q not found", id)
	}
	delete(s.byID, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.log.Info("computed channel removed", "id", id)
	s.notify(ChangeEvent{Kind: ChangeRemoved, ID: id, Channels: s.snapshot()})
	return nil
}

// Get returns a clone of the computed channel with the given id, or nil.
func (s *Store) Get(id string) *channel.ComputedChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.byID[id]; ok {
		return ch.Clone()
	}
	return nil
}

// Has reports whether a computed channel with the given id exists.
func (s *Store) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// List returns a snapshot of all computed channels in creation order.
func (s *Store) List() []*channel.ComputedChannel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Subscribe registers a listener for change events and returns an
// unsubscribe function. Unsubscribing twice is a no-op.
func (s *Store) Subscribe(listener func(ChangeEvent)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// check enforces the store invariants shared by Add and Replace.
// Caller holds s.mu.
func (s *Store) check(ch *channel.ComputedChannel) error {
	if ch == nil || ch.ID == "" {
		return errors.New("computed channel must have an id")
	}
	if ch.SampleCount() != s.rec.SampleCount() {
		return &LengthMismatchError{Expected: s.rec.SampleCount(), Got: ch.SampleCount()}
	}
	return nil
}

// snapshot clones the current contents in creation order. Caller holds s.mu.
func (s *Store) snapshot() []*channel.ComputedChannel {
	out := make([]*channel.ComputedChannel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// notify delivers one event to every subscriber. Caller holds s.mu, which
// serialises notifications in mutation order.
func (s *Store) notify(ev ChangeEvent) {
	for _, listener := range s.subs {
		listener(ev)
	}
}
