package store

import (
	"context"
	"time"
)

type CardRecord struct {
	ID           int64
	CardUID      string
	OwnerUserID  *int64
	Active       bool
	RegisteredBy *int64
	LastUsedAt   *time.Time
	RevokedAt    *time.Time
}

type CardStore interface {
	CardByUID(ctx context.Context, cardUID string) (CardRecord, error)

	// UpsertCard inserts the card or, when cardUID already exists,
	// reassigns its owner and reactivates it.
	UpsertCard(ctx context.Context, rec CardRecord, now time.Time) (CardRecord, error)

	RevokeCard(ctx context.Context, cardUID string, now time.Time) error
	TouchCard(ctx context.Context, cardID int64, usedAt time.Time) error
}
