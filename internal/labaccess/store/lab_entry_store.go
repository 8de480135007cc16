package store

import (
	"context"
	"time"
)

// LabEntryRecord is one session in the historical log.  ExitTime and
// DurationMinutes stay nil while the session is open.
type LabEntryRecord struct {
	ID              int64
	UserID          int64
	RoomID          int64
	CardID          *int64
	EntryTime       time.Time
	ExitTime        *time.Time
	DurationMinutes *int64
	Notes           string
}

type LabEntryStore interface {
	OpenLabEntry(ctx context.Context, rec LabEntryRecord) (int64, error)

	// CloseLabEntries completes every open session for the user and
	// returns how many were closed.
	CloseLabEntries(ctx context.Context, userID int64, exitTime time.Time, notes string) (int64, error)

	LabEntries(ctx context.Context, userID int64) ([]LabEntryRecord, error)
}
