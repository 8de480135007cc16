package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyInside is returned when an occupancy insert loses the race
	// against another writer for the same user.
	ErrAlreadyInside = errors.New("user already has an occupancy record")

	// ErrNotInside is returned when an occupancy delete finds no row.
	ErrNotInside = errors.New("user has no occupancy record")

	// ErrReaderConflict is returned when a reader is re-provisioned with a
	// different room or location.  Readers are immutable apart from active.
	ErrReaderConflict = errors.New("reader already provisioned with different placement")
)

// Tx is the set of operations available inside one atomic unit of work.
type Tx interface {
	UserStore
	CardStore
	ReaderStore
	OccupancyStore
	AccessEventStore
	LabEntryStore
	DoorStore
	LedgerStore
	SnapshotStore
	TaskStore
}

// TxFn is a unit of work.  Returning an error rolls back everything it wrote.
type TxFn func(ctx context.Context, tx Tx) error

// Store is the durable store shared by the request path and the
// reconciliation workers.
type Store interface {
	// Do runs fn as a single atomic unit.
	Do(ctx context.Context, fn TxFn) error

	// View runs fn for reads.  Writes made inside View are discarded.
	View(ctx context.Context, fn TxFn) error
}
