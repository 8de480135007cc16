package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func TestLedgerStore_AppendAndHistory(t *testing.T) {
	st, _ := newTestStore(t)
	seedUser(t, st, 1, "Ada")
	ctx := context.Background()

	rows := []store.ScoreHistoryRecord{
		{UserID: 1, PointsChanged: decimal.RequireFromString("1.50"), Reason: "Task Score", Category: store.CategoryTaskScore, ReferenceType: "Task", ReferenceID: int64p(9), CreatedAt: testNow},
		{UserID: 1, PointsChanged: decimal.RequireFromString("-0.1"), Reason: "Deadline Penalty: report", Category: store.CategoryDeadlinePenalty, ReferenceType: "Task", ReferenceID: int64p(9), CreatedAt: testNow.Add(time.Hour)},
		{UserID: 1, PointsChanged: decimal.RequireFromString("2"), Reason: "bonus", Category: store.CategoryAdjustment, CreatedAt: testNow.Add(2 * time.Hour), CreatedBy: int64p(99)},
	}
	err := st.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, r := range rows {
			if err := tx.AppendScore(ctx, r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("AppendScore: %v", err)
	}

	var (
		history []store.ScoreHistoryRecord
		sum     decimal.Decimal
	)
	err = st.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if history, err = tx.ScoreHistory(ctx, 1); err != nil {
			return err
		}
		sum, err = tx.SumScoreSince(ctx, 1, time.Time{})
		return err
	})
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}

	if len(history) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(history))
	}
	if history[0].Category != store.CategoryAdjustment {
		t.Errorf("expected newest first, got %s", history[0].Category)
	}
	if history[0].CreatedBy == nil || *history[0].CreatedBy != 99 {
		t.Errorf("expected created_by=99, got %v", history[0].CreatedBy)
	}
	if history[2].ReferenceID == nil || *history[2].ReferenceID != 9 {
		t.Errorf("expected reference_id=9, got %v", history[2].ReferenceID)
	}
	if !sum.Equal(decimal.RequireFromString("3.4")) {
		t.Errorf("expected sum 3.4, got %s", sum)
	}
}

func TestLedgerStore_HasScoreBetween(t *testing.T) {
	st, _ := newTestStore(t)
	seedUser(t, st, 1, "Ada")
	ctx := context.Background()

	err := st.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.AppendScore(ctx, store.ScoreHistoryRecord{
			UserID: 1, PointsChanged: decimal.RequireFromString("-0.1"), Reason: "Deadline Penalty: x",
			Category: store.CategoryDeadlinePenalty, ReferenceType: "Task", ReferenceID: int64p(5), CreatedAt: testNow,
		})
	})
	if err != nil {
		t.Fatalf("AppendScore: %v", err)
	}

	ref := store.ScoreRef{ReferenceType: "Task", ReferenceID: 5, Category: store.CategoryDeadlinePenalty}
	dayStart := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		ref      store.ScoreRef
		from, to time.Time
		want     bool
	}{
		{"same day", ref, dayStart, dayStart.AddDate(0, 0, 1), true},
		{"next day", ref, dayStart.AddDate(0, 0, 1), dayStart.AddDate(0, 0, 2), false},
		{"other task", store.ScoreRef{ReferenceType: "Task", ReferenceID: 6, Category: store.CategoryDeadlinePenalty}, dayStart, dayStart.AddDate(0, 0, 1), false},
		{"other category", store.ScoreRef{ReferenceType: "Task", ReferenceID: 5, Category: store.CategoryTaskScore}, dayStart, dayStart.AddDate(0, 0, 1), false},
	}
	for _, tc := range cases {
		var got bool
		err := st.View(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			got, err = tx.HasScoreBetween(ctx, tc.ref, tc.from, tc.to)
			return err
		})
		if err != nil {
			t.Fatalf("%s: HasScoreBetween: %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestLedgerStore_SetTotalScoreUnknownUser(t *testing.T) {
	st, _ := newTestStore(t)

	err := st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.SetTotalScore(ctx, 404, decimal.NewFromInt(1), testNow)
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotStore_UniquePerUserAndPeriod(t *testing.T) {
	st, _ := newTestStore(t)
	seedUser(t, st, 1, "Ada")
	ctx := context.Background()

	snap := store.SnapshotRecord{UserID: 1, UserName: "Ada", TotalScore: decimal.RequireFromString("4.25"), Period: "2026-01", SnapshotDate: testNow}
	insert := func() error {
		return st.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertSnapshot(ctx, snap)
		})
	}

	if err := insert(); err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if err := insert(); err == nil {
		t.Fatal("expected unique violation on second snapshot for the same period")
	}

	var (
		has    bool
		snaps  []store.SnapshotRecord
		latest time.Time
	)
	err := st.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if has, err = tx.HasSnapshotForPeriod(ctx, "2026-01"); err != nil {
			return err
		}
		if snaps, err = tx.Snapshots(ctx, "2026-01"); err != nil {
			return err
		}
		latest, err = tx.LatestSnapshotDate(ctx, 1)
		return err
	})
	if err != nil {
		t.Fatalf("read snapshots: %v", err)
	}
	if !has {
		t.Error("expected HasSnapshotForPeriod=true")
	}
	if len(snaps) != 1 || !snaps[0].TotalScore.Equal(decimal.RequireFromString("4.25")) {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}
	if !latest.Equal(testNow) {
		t.Errorf("expected latest snapshot %v, got %v", testNow, latest)
	}
}
