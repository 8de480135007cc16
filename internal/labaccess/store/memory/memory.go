// Package memory is an in-memory store.Store for tests and dev runs.  Every
// unit of work runs under one mutex against a copy of the state; the copy
// replaces the live state only when the unit succeeds.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

type state struct {
	users      map[int64]store.UserRecord
	cards      map[string]store.CardRecord
	readers    map[string]store.ReaderRecord
	occupancy  map[int64]store.OccupancyRecord
	doors      map[int64]store.DoorStateRecord
	tasks      map[int64]store.TaskRecord
	events     []store.AccessEventRecord
	labEntries []store.LabEntryRecord
	scores     []store.ScoreHistoryRecord
	snapshots  []store.SnapshotRecord

	nextCardID   int64
	nextReaderID int64
	nextEventID  int64
	nextEntryID  int64
	nextScoreID  int64
}

func newState() *state {
	return &state{
		users:     make(map[int64]store.UserRecord),
		cards:     make(map[string]store.CardRecord),
		readers:   make(map[string]store.ReaderRecord),
		occupancy: make(map[int64]store.OccupancyRecord),
		doors:     make(map[int64]store.DoorStateRecord),
		tasks:     make(map[int64]store.TaskRecord),
	}
}

// clone copies the containers.  Records are values whose pointer fields are
// never mutated in place, so a shallow element copy is enough.
func (s *state) clone() *state {
	c := *s
	c.users = maps.Clone(s.users)
	c.cards = maps.Clone(s.cards)
	c.readers = maps.Clone(s.readers)
	c.occupancy = maps.Clone(s.occupancy)
	c.doors = maps.Clone(s.doors)
	c.tasks = maps.Clone(s.tasks)
	c.events = slices.Clone(s.events)
	c.labEntries = slices.Clone(s.labEntries)
	c.scores = slices.Clone(s.scores)
	c.snapshots = slices.Clone(s.snapshots)
	return &c
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) Do(ctx context.Context, fn store.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) View(ctx context.Context, fn store.TxFn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(ctx, &tx{st: s.st.clone()})
}

// Events returns a copy of all recorded access events.  Test-only helper.
func (s *Store) Events() []store.AccessEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.events)
}

// Scores returns a copy of every ledger row in insertion order.  Test-only
// helper.
func (s *Store) Scores() []store.ScoreHistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.scores)
}

// LabEntries returns a copy of every session row.  Test-only helper.
func (s *Store) LabEntries() []store.LabEntryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.labEntries)
}
