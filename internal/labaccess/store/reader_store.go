package store

import (
	"context"
	"time"
)

// Location is the side of the door a reader is mounted on.
type Location string

const (
	LocationInside  Location = "inside"
	LocationOutside Location = "outside"
)

func (l Location) Valid() bool {
	return l == LocationInside || l == LocationOutside
}

type ReaderRecord struct {
	ID         int64
	ReaderUID  string
	RoomID     int64
	Location   Location
	Active     bool
	LastSeenAt *time.Time
}

type ReaderStore interface {
	ReaderByUID(ctx context.Context, readerUID string) (ReaderRecord, error)

	// InsertReader provisions a reader.  Re-provisioning with identical
	// placement is a no-op; anything else is ErrReaderConflict.
	InsertReader(ctx context.Context, rec ReaderRecord, now time.Time) (ReaderRecord, error)

	SetReaderActive(ctx context.Context, readerUID string, active bool, now time.Time) error
	MarkReaderSeen(ctx context.Context, readerID int64, t time.Time) error
}
