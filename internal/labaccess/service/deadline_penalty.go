package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

// DeadlinePenalty charges the assignee of every overdue task once per
// calendar day.  A task overdue for a week accrues seven penalties.  Days
// on which the worker did not run are not back-filled.
type DeadlinePenalty struct {
	config DeadlinePenaltyConfig
}

func (w *DeadlinePenalty) Name() string { return "deadline_penalty" }

func (w *DeadlinePenalty) RunOnce(ctx context.Context) error {
	now := w.config.Clock.Now().UTC()
	dayStart, dayEnd := calendarDay(now, w.config.Location)

	var overdue []store.TaskRecord
	err := w.config.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		overdue, err = tx.OverdueTasks(ctx, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("deadline penalty: list overdue: %w", err)
	}

	var charged, failed int
	for _, task := range overdue {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if task.AssigneeUserID == nil {
			continue
		}
		ok, err := w.charge(ctx, task.ID, now, dayStart, dayEnd)
		if err != nil {
			failed++
			w.config.Logger.Printf("warn: deadline penalty task=%d: %v", task.ID, err)
			continue
		}
		if ok {
			charged++
			w.config.Metrics.scoreEntry(string(store.CategoryDeadlinePenalty))
		}
	}
	if charged > 0 {
		w.config.Logger.Printf("deadline penalty: charged %d of %d overdue tasks", charged, len(overdue))
	}
	if failed > 0 {
		return fmt.Errorf("deadline penalty: %d of %d tasks failed", failed, len(overdue))
	}
	return nil
}

// charge applies today's penalty for one task.  The existence check and the
// ledger write share a unit of work.
func (w *DeadlinePenalty) charge(ctx context.Context, taskID int64, now, dayStart, dayEnd time.Time) (bool, error) {
	var applied bool
	err := w.config.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		applied = false
		task, err := tx.TaskByID(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !isOverdue(task, now) || task.AssigneeUserID == nil {
			return nil
		}

		ref := store.ScoreRef{
			ReferenceType: ReferenceTask,
			ReferenceID:   task.ID,
			Category:      store.CategoryDeadlinePenalty,
		}
		done, err := tx.HasScoreBetween(ctx, ref, dayStart, dayEnd)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		applied, err = w.config.Ledger.apply(ctx, tx, ScoreEntry{
			UserID:        *task.AssigneeUserID,
			Points:        w.config.Penalty,
			Reason:        "Deadline Penalty: " + task.Title,
			Category:      store.CategoryDeadlinePenalty,
			ReferenceType: ReferenceTask,
			ReferenceID:   &task.ID,
		}, now)
		return err
	})
	return applied, err
}

func isOverdue(task store.TaskRecord, now time.Time) bool {
	if task.DueAt == nil || !task.DueAt.Before(now) {
		return false
	}
	return task.Status != store.TaskDone && task.Status != store.TaskCancelled
}

// calendarDay returns the UTC bounds of the day containing t in loc.
func calendarDay(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}
