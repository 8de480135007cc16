package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

const taskColumns = `task_id, title, assignee_user_id, due_at_ms, status, score_category, score_processed`

func scanTask(sc interface{ Scan(...any) error }) (store.TaskRecord, error) {
	var (
		rec       store.TaskRecord
		assignee  sql.NullInt64
		due       sql.NullInt64
		status    string
		category  sql.NullInt64
		processed int
	)
	if err := sc.Scan(&rec.ID, &rec.Title, &assignee, &due, &status, &category, &processed); err != nil {
		return store.TaskRecord{}, err
	}
	rec.AssigneeUserID = intPtr(assignee)
	rec.DueAt = timePtr(due)
	rec.Status = store.TaskStatus(status)
	if category.Valid {
		c := int(category.Int64)
		rec.ScoreCategory = &c
	}
	rec.ScoreProcessed = processed == 1
	return rec, nil
}

func (s *txStore) TaskByID(ctx context.Context, taskID int64) (store.TaskRecord, error) {
	rec, err := scanTask(s.tx.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE task_id = ?;`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return store.TaskRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.TaskRecord{}, fmt.Errorf("TaskByID: %w", err)
	}
	return rec, nil
}

func (s *txStore) UpsertTask(ctx context.Context, rec store.TaskRecord, now time.Time) error {
	var category any
	if rec.ScoreCategory != nil {
		category = *rec.ScoreCategory
	}
	nowMs := toMs(now)
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO tasks(task_id, title, assignee_user_id, due_at_ms, status, score_category, score_processed, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
  title            = excluded.title,
  assignee_user_id = excluded.assignee_user_id,
  due_at_ms        = excluded.due_at_ms,
  status           = excluded.status,
  score_category   = excluded.score_category,
  score_processed  = excluded.score_processed,
  updated_at_ms    = excluded.updated_at_ms;
`, rec.ID, rec.Title, nullInt(rec.AssigneeUserID), nullMs(rec.DueAt), string(rec.Status),
		category, boolInt(rec.ScoreProcessed), nowMs, nowMs); err != nil {
		return fmt.Errorf("UpsertTask: %w", err)
	}
	return nil
}

func (s *txStore) OverdueTasks(ctx context.Context, now time.Time) ([]store.TaskRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
SELECT `+taskColumns+`
FROM tasks
WHERE due_at_ms IS NOT NULL
  AND due_at_ms < ?
  AND status NOT IN ('done', 'cancelled')
ORDER BY due_at_ms, task_id;
`, toMs(now))
	if err != nil {
		return nil, fmt.Errorf("OverdueTasks: %w", err)
	}
	defer rows.Close()

	var out []store.TaskRecord
	for rows.Next() {
		rec, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("OverdueTasks scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *txStore) MarkTaskScoreProcessed(ctx context.Context, taskID int64, now time.Time) error {
	res, err := s.tx.ExecContext(ctx, `
UPDATE tasks
SET score_processed = 1,
    updated_at_ms   = ?
WHERE task_id = ?;
`, toMs(now), taskID)
	if err != nil {
		return fmt.Errorf("MarkTaskScoreProcessed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
