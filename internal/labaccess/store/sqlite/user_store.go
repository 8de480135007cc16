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

func (s *txStore) UserByID(ctx context.Context, userID int64) (store.UserRecord, error) {
	var (
		rec     store.UserRecord
		total   string
		active  int
		deleted sql.NullInt64
	)
	err := s.tx.QueryRowContext(ctx, `
SELECT user_id, name, total_score, active, deleted_at_ms
FROM users
WHERE user_id = ?;
`, userID).Scan(&rec.ID, &rec.Name, &total, &active, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UserRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("UserByID: %w", err)
	}

	rec.TotalScore, err = decimal.NewFromString(total)
	if err != nil {
		return store.UserRecord{}, fmt.Errorf("UserByID parse total_score %q: %w", total, err)
	}
	rec.Active = active == 1
	rec.DeletedAt = timePtr(deleted)
	return rec, nil
}

func (s *txStore) UpsertUser(ctx context.Context, rec store.UserRecord, now time.Time) error {
	nowMs := toMs(now)
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO users(user_id, name, total_score, active, deleted_at_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  name = excluded.name,
  active = excluded.active,
  deleted_at_ms = excluded.deleted_at_ms,
  updated_at_ms = excluded.updated_at_ms;
`, rec.ID, rec.Name, rec.TotalScore.String(), boolInt(rec.Active), nullMs(rec.DeletedAt), nowMs, nowMs); err != nil {
		return fmt.Errorf("UpsertUser: %w", err)
	}
	return nil
}

func (s *txStore) ListScoredUsers(ctx context.Context) ([]store.UserRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
SELECT user_id, name, total_score, active
FROM users
WHERE deleted_at_ms IS NULL
ORDER BY user_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListScoredUsers: %w", err)
	}
	defer rows.Close()

	var out []store.UserRecord
	for rows.Next() {
		var (
			rec    store.UserRecord
			total  string
			active int
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &total, &active); err != nil {
			return nil, fmt.Errorf("ListScoredUsers scan: %w", err)
		}
		if rec.TotalScore, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("ListScoredUsers parse total_score %q: %w", total, err)
		}
		rec.Active = active == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *txStore) SetTotalScore(ctx context.Context, userID int64, total decimal.Decimal, now time.Time) error {
	res, err := s.tx.ExecContext(ctx, `
UPDATE users
SET total_score = ?,
    updated_at_ms = ?
WHERE user_id = ?;
`, total.String(), toMs(now), userID)
	if err != nil {
		return fmt.Errorf("SetTotalScore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
