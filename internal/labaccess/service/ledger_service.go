package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/juju/clock"
	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

var ErrInvalidCategory = errors.New("score category must be between 0 and 3")

// ReferenceTask is the reference type of ledger rows tied to a task.
const ReferenceTask = "Task"

var categoryPoints = []decimal.Decimal{
	decimal.Zero,
	decimal.New(25, -2),
	decimal.New(100, -2),
	decimal.New(150, -2),
}

// GetPointsByCategory maps a task's score category to the points it earns.
func GetPointsByCategory(category int) (decimal.Decimal, error) {
	if category < 0 || category >= len(categoryPoints) {
		return decimal.Zero, ErrInvalidCategory
	}
	return categoryPoints[category], nil
}

// ScoreEntry is one signed change to a user's score.  Category together
// with the reference is what idempotency checks match on; Reason is only
// for people.
type ScoreEntry struct {
	UserID        int64
	Points        decimal.Decimal
	Reason        string
	Category      store.ScoreCategory
	ReferenceType string
	ReferenceID   *int64
	CreatedBy     *int64
}

// LedgerService is the only writer of a user's running total.  Every ledger
// row is appended in the same unit of work that moves the total, stamped
// with the same instant.
type LedgerService struct {
	store   store.Store
	clock   clock.Clock
	logger  *log.Logger
	metrics *Metrics
}

func NewLedgerService(st store.Store, clk clock.Clock, logger *log.Logger, m *Metrics) *LedgerService {
	return &LedgerService{store: st, clock: clk, logger: logger, metrics: m}
}

// AddScore applies e in its own unit of work.  Zero points is a no-op and a
// missing user is logged and skipped.
func (l *LedgerService) AddScore(ctx context.Context, e ScoreEntry) error {
	if e.Points.IsZero() {
		return nil
	}
	var applied bool
	err := l.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		applied, err = l.apply(ctx, tx, e, l.clock.Now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("AddScore: %w", err)
	}
	if applied {
		l.metrics.scoreEntry(string(e.Category))
	}
	return nil
}

// apply does the read-modify-write of the total and the ledger append
// inside the caller's unit.  It reports whether anything was written.
func (l *LedgerService) apply(ctx context.Context, tx store.Tx, e ScoreEntry, now time.Time) (bool, error) {
	if e.Points.IsZero() {
		return false, nil
	}
	user, err := tx.UserByID(ctx, e.UserID)
	if errors.Is(err, store.ErrNotFound) {
		l.logger.Printf("warn: score for unknown user %d skipped (%s)", e.UserID, e.Reason)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := tx.SetTotalScore(ctx, e.UserID, user.TotalScore.Add(e.Points), now); err != nil {
		return false, err
	}
	if err := tx.AppendScore(ctx, store.ScoreHistoryRecord{
		UserID:        e.UserID,
		PointsChanged: e.Points,
		Reason:        e.Reason,
		Category:      e.Category,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		CreatedAt:     now,
		CreatedBy:     e.CreatedBy,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// ScoreHistory lists a user's ledger rows, newest first.
func (l *LedgerService) ScoreHistory(ctx context.Context, userID int64) ([]store.ScoreHistoryRecord, error) {
	var out []store.ScoreHistoryRecord
	err := l.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		var err error
		out, err = tx.ScoreHistory(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ScoreHistory: %w", err)
	}
	return out, nil
}

// LedgerCheck compares a user's running total with the ledger rows written
// since their last monthly reset.
type LedgerCheck struct {
	UserID     int64
	TotalScore decimal.Decimal
	LedgerSum  decimal.Decimal
	Since      time.Time // zero when the user was never reset
	Consistent bool
}

func (l *LedgerService) CheckLedger(ctx context.Context, userID int64) (LedgerCheck, error) {
	check := LedgerCheck{UserID: userID}
	err := l.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		user, err := tx.UserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownUser
		}
		if err != nil {
			return err
		}
		check.TotalScore = user.TotalScore

		if check.Since, err = tx.LatestSnapshotDate(ctx, userID); err != nil {
			return err
		}
		check.LedgerSum, err = tx.SumScoreSince(ctx, userID, check.Since)
		return err
	})
	if err != nil {
		return LedgerCheck{}, fmt.Errorf("CheckLedger: %w", err)
	}
	check.Consistent = check.TotalScore.Equal(check.LedgerSum)
	return check, nil
}
