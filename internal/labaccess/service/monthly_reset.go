package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

const periodLayout = "2006-01"

// MonthlyReset snapshots every user's total for the month that just ended
// and zeroes it.  It only acts during the first hour of the first day of a
// month; a snapshot already present for the period makes the pass a no-op.
type MonthlyReset struct {
	config MonthlyResetConfig
}

func (w *MonthlyReset) Name() string { return "monthly_reset" }

// ResetResult describes one ResetPeriod call.
type ResetResult struct {
	Period  string
	Users   int
	Skipped bool
}

func (w *MonthlyReset) RunOnce(ctx context.Context) error {
	local := w.config.Clock.Now().In(w.config.Location)
	if local.Day() != 1 || local.Hour() != 0 {
		return nil
	}
	res, err := w.ResetPeriod(ctx, PreviousPeriod(local))
	if err != nil {
		return err
	}
	if !res.Skipped {
		w.config.Logger.Printf("monthly reset: period=%s users=%d", res.Period, res.Users)
	}
	return nil
}

// ResetPeriod writes the snapshots for period and zeroes every total in one
// unit of work.  Either every non-deleted user is reset or none is.
func (w *MonthlyReset) ResetPeriod(ctx context.Context, period string) (ResetResult, error) {
	res := ResetResult{Period: period}
	err := w.config.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		res.Users, res.Skipped = 0, false
		exists, err := tx.HasSnapshotForPeriod(ctx, period)
		if err != nil {
			return err
		}
		if exists {
			res.Skipped = true
			return nil
		}

		users, err := tx.ListScoredUsers(ctx)
		if err != nil {
			return err
		}
		now := w.config.Clock.Now().UTC()
		for _, u := range users {
			if err := tx.InsertSnapshot(ctx, store.SnapshotRecord{
				UserID:       u.ID,
				UserName:     u.Name,
				TotalScore:   u.TotalScore,
				Period:       period,
				SnapshotDate: now,
			}); err != nil {
				return err
			}
			if err := tx.SetTotalScore(ctx, u.ID, decimal.Zero, now); err != nil {
				return err
			}
		}
		res.Users = len(users)
		return nil
	})
	if err != nil {
		return ResetResult{}, fmt.Errorf("monthly reset %s: %w", period, err)
	}
	return res, nil
}

// PreviousPeriod is the "YYYY-MM" of the month before t, in t's location.
func PreviousPeriod(t time.Time) string {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, -1, 0).Format(periodLayout)
}
