package store

import (
	"context"
	"time"
)

// OccupancyRecord asserts that a user is inside a room right now.  There is
// at most one per user; its existence is the "inside" predicate.
type OccupancyRecord struct {
	UserID    int64
	RoomID    int64
	CardUID   string
	EntryTime time.Time
}

type OccupancyStore interface {
	// Occupancy returns ErrNotFound when the user is not inside.
	Occupancy(ctx context.Context, userID int64) (OccupancyRecord, error)

	// InsertOccupancy returns ErrAlreadyInside if a row exists for the user.
	InsertOccupancy(ctx context.Context, rec OccupancyRecord) error

	// DeleteOccupancy returns ErrNotInside if no row exists for the user.
	DeleteOccupancy(ctx context.Context, userID int64) error

	// OccupanciesEnteredBefore lists rows whose entry time is before cutoff,
	// oldest first.
	OccupanciesEnteredBefore(ctx context.Context, cutoff time.Time) ([]OccupancyRecord, error)

	ListOccupancies(ctx context.Context) ([]OccupancyRecord, error)
}
