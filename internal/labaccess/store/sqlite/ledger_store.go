package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) AppendScore(ctx context.Context, rec store.ScoreHistoryRecord) error {
	var refType any
	if rec.ReferenceType != "" {
		refType = rec.ReferenceType
	}
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO score_history(
  user_id, points_changed, reason, category,
  reference_type, reference_id, created_at_ms, created_by
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
		rec.UserID, rec.PointsChanged.String(), rec.Reason, string(rec.Category),
		refType, nullInt(rec.ReferenceID), toMs(rec.CreatedAt), nullInt(rec.CreatedBy),
	); err != nil {
		return fmt.Errorf("AppendScore: %w", err)
	}
	return nil
}

func (s *txStore) HasScoreBetween(ctx context.Context, ref store.ScoreRef, from, to time.Time) (bool, error) {
	var one int
	err := s.tx.QueryRowContext(ctx, `
SELECT 1
FROM score_history
WHERE reference_type = ?
  AND reference_id   = ?
  AND category       = ?
  AND created_at_ms >= ?
  AND created_at_ms  < ?
LIMIT 1;
`, ref.ReferenceType, ref.ReferenceID, string(ref.Category), toMs(from), toMs(to)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("HasScoreBetween: %w", err)
	}
	return true, nil
}

func (s *txStore) ScoreHistory(ctx context.Context, userID int64) ([]store.ScoreHistoryRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
SELECT score_id, user_id, points_changed, reason, category,
       reference_type, reference_id, created_at_ms, created_by
FROM score_history
WHERE user_id = ?
ORDER BY created_at_ms DESC, score_id DESC;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("ScoreHistory: %w", err)
	}
	defer rows.Close()

	var out []store.ScoreHistoryRecord
	for rows.Next() {
		var (
			rec       store.ScoreHistoryRecord
			points    string
			category  string
			refType   sql.NullString
			refID     sql.NullInt64
			createdMs int64
			createdBy sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &points, &rec.Reason, &category,
			&refType, &refID, &createdMs, &createdBy); err != nil {
			return nil, fmt.Errorf("ScoreHistory scan: %w", err)
		}
		if rec.PointsChanged, err = decimal.NewFromString(points); err != nil {
			return nil, fmt.Errorf("ScoreHistory parse points %q: %w", points, err)
		}
		rec.Category = store.ScoreCategory(category)
		rec.ReferenceType = refType.String
		rec.ReferenceID = intPtr(refID)
		rec.CreatedAt = fromMs(createdMs)
		rec.CreatedBy = intPtr(createdBy)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SumScoreSince adds up points in Go: the column is decimal TEXT and SQLite
// would sum it as a float.
func (s *txStore) SumScoreSince(ctx context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	sinceMs := int64(-1)
	if !since.IsZero() {
		sinceMs = toMs(since)
	}
	rows, err := s.tx.QueryContext(ctx, `
SELECT points_changed
FROM score_history
WHERE user_id = ? AND created_at_ms > ?;
`, userID, sinceMs)
	if err != nil {
		return decimal.Zero, fmt.Errorf("SumScoreSince: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var points string
		if err := rows.Scan(&points); err != nil {
			return decimal.Zero, fmt.Errorf("SumScoreSince scan: %w", err)
		}
		d, err := decimal.NewFromString(points)
		if err != nil {
			return decimal.Zero, fmt.Errorf("SumScoreSince parse %q: %w", points, err)
		}
		sum = sum.Add(d)
	}
	return sum, rows.Err()
}

func (s *txStore) HasSnapshotForPeriod(ctx context.Context, period string) (bool, error) {
	var one int
	err := s.tx.QueryRowContext(ctx, `
SELECT 1 FROM monthly_score_snapshots WHERE period = ? LIMIT 1;
`, period).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("HasSnapshotForPeriod: %w", err)
	}
	return true, nil
}

func (s *txStore) InsertSnapshot(ctx context.Context, rec store.SnapshotRecord) error {
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO monthly_score_snapshots(user_id, user_name, total_score, period, snapshot_at_ms)
VALUES (?, ?, ?, ?, ?);
`, rec.UserID, rec.UserName, rec.TotalScore.String(), rec.Period, toMs(rec.SnapshotDate)); err != nil {
		return fmt.Errorf("InsertSnapshot: %w", err)
	}
	return nil
}

func (s *txStore) Snapshots(ctx context.Context, period string) ([]store.SnapshotRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
SELECT user_id, user_name, total_score, period, snapshot_at_ms
FROM monthly_score_snapshots
WHERE period = ?
ORDER BY user_id;
`, period)
	if err != nil {
		return nil, fmt.Errorf("Snapshots: %w", err)
	}
	defer rows.Close()

	var out []store.SnapshotRecord
	for rows.Next() {
		var (
			rec   store.SnapshotRecord
			total string
			atMs  int64
		)
		if err := rows.Scan(&rec.UserID, &rec.UserName, &total, &rec.Period, &atMs); err != nil {
			return nil, fmt.Errorf("Snapshots scan: %w", err)
		}
		if rec.TotalScore, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("Snapshots parse total %q: %w", total, err)
		}
		rec.SnapshotDate = fromMs(atMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *txStore) LatestSnapshotDate(ctx context.Context, userID int64) (time.Time, error) {
	var latest sql.NullInt64
	if err := s.tx.QueryRowContext(ctx, `
SELECT MAX(snapshot_at_ms) FROM monthly_score_snapshots WHERE user_id = ?;
`, userID).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("LatestSnapshotDate: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return fromMs(latest.Int64), nil
}
