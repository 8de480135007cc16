package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UserRecord is the slice of the user row this engine reads and writes.
// TotalScore is written only by the scoring ledger.
type UserRecord struct {
	ID         int64
	Name       string
	TotalScore decimal.Decimal
	Active     bool
	DeletedAt  *time.Time
}

type UserStore interface {
	UserByID(ctx context.Context, userID int64) (UserRecord, error)
	UpsertUser(ctx context.Context, rec UserRecord, now time.Time) error

	// ListScoredUsers returns every user that has not been deleted.
	ListScoredUsers(ctx context.Context) ([]UserRecord, error)

	SetTotalScore(ctx context.Context, userID int64, total decimal.Decimal, now time.Time) error
}
