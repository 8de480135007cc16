package store

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionEntry Direction = "entry"
	DirectionExit  Direction = "exit"
)

// AccessEventRecord captures a single processed scan for the audit log.
// Room, card and user are nil when the scan could not resolve them.
type AccessEventRecord struct {
	ID         int64
	ScanID     string
	RoomID     *int64
	CardID     *int64
	UserID     *int64
	Direction  Direction
	Authorized bool
	DenyReason string
	OccurredAt time.Time
	RawPayload string
}

// AccessEventStore persists scan outcomes as an append-only audit log.
type AccessEventStore interface {
	RecordEvent(ctx context.Context, rec AccessEventRecord) error
	AccessEvents(ctx context.Context, userID int64) ([]AccessEventRecord, error)
}
