package store

import (
	"context"
	"time"
)

// DoorStateRecord is the open-command latch for a room.  It is polled by
// door hardware; it is not a log.
type DoorStateRecord struct {
	RoomID        int64
	IsOpen        bool
	LastUpdatedAt time.Time
}

type DoorStore interface {
	// SetDoorOpen creates the row on first write for a room and updates it
	// afterwards.
	SetDoorOpen(ctx context.Context, roomID int64, open bool, now time.Time) error

	DoorState(ctx context.Context, roomID int64) (DoorStateRecord, error)
}
