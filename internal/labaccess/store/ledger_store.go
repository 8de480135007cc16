package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ScoreCategory string

const (
	CategoryTaskScore       ScoreCategory = "TaskScore"
	CategoryDeadlinePenalty ScoreCategory = "DeadlinePenalty"
	CategoryAdjustment      ScoreCategory = "Adjustment"
)

// ScoreHistoryRecord is one append-only ledger row.
type ScoreHistoryRecord struct {
	ID            int64
	UserID        int64
	PointsChanged decimal.Decimal
	Reason        string
	Category      ScoreCategory
	ReferenceType string
	ReferenceID   *int64
	CreatedAt     time.Time
	CreatedBy     *int64
}

// ScoreRef identifies ledger rows by what they refer to, for idempotency
// checks.
type ScoreRef struct {
	ReferenceType string
	ReferenceID   int64
	Category      ScoreCategory
}

type LedgerStore interface {
	AppendScore(ctx context.Context, rec ScoreHistoryRecord) error

	// HasScoreBetween reports whether a row matching ref was created in
	// [from, to).
	HasScoreBetween(ctx context.Context, ref ScoreRef, from, to time.Time) (bool, error)

	// ScoreHistory lists a user's rows, newest first.
	ScoreHistory(ctx context.Context, userID int64) ([]ScoreHistoryRecord, error)

	// SumScoreSince sums pointsChanged for rows created strictly after since.
	// A zero since sums everything.
	SumScoreSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error)
}

// SnapshotRecord captures a user's total at a monthly reset.
type SnapshotRecord struct {
	UserID       int64
	UserName     string
	TotalScore   decimal.Decimal
	Period       string
	SnapshotDate time.Time
}

type SnapshotStore interface {
	HasSnapshotForPeriod(ctx context.Context, period string) (bool, error)
	InsertSnapshot(ctx context.Context, rec SnapshotRecord) error
	Snapshots(ctx context.Context, period string) ([]SnapshotRecord, error)

	// LatestSnapshotDate returns the zero time when the user was never reset.
	LatestSnapshotDate(ctx context.Context, userID int64) (time.Time, error)
}
