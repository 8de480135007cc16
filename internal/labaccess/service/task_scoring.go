package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

var (
	ErrUnknownTask        = errors.New("unknown task")
	ErrTaskNotDone        = errors.New("task is not done")
	ErrTaskUnassigned     = errors.New("task has no assignee")
	ErrTaskNotCategorized = errors.New("task has no score category")
)

// TaskAward describes the outcome of AwardTaskScore.
type TaskAward struct {
	TaskID           int64
	UserID           int64
	Points           decimal.Decimal
	AlreadyProcessed bool
}

// AwardTaskScore credits the assignee of a finished task with the points of
// its score category.  The task's processed flag is set in the same unit as
// the ledger write, so a task is credited at most once.
func (l *LedgerService) AwardTaskScore(ctx context.Context, taskID int64, awardedBy *int64) (TaskAward, error) {
	award := TaskAward{TaskID: taskID}
	var applied bool
	err := l.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		applied = false
		task, err := tx.TaskByID(ctx, taskID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownTask
		}
		if err != nil {
			return err
		}
		if task.Status != store.TaskDone {
			return ErrTaskNotDone
		}
		if task.AssigneeUserID == nil {
			return ErrTaskUnassigned
		}
		award.UserID = *task.AssigneeUserID
		if task.ScoreProcessed {
			award.AlreadyProcessed = true
			return nil
		}
		if task.ScoreCategory == nil {
			return ErrTaskNotCategorized
		}
		if award.Points, err = GetPointsByCategory(*task.ScoreCategory); err != nil {
			return err
		}

		now := l.clock.Now().UTC()
		applied, err = l.apply(ctx, tx, ScoreEntry{
			UserID:        award.UserID,
			Points:        award.Points,
			Reason:        "Task Score: " + task.Title,
			Category:      store.CategoryTaskScore,
			ReferenceType: ReferenceTask,
			ReferenceID:   &task.ID,
			CreatedBy:     awardedBy,
		}, now)
		if err != nil {
			return err
		}
		return tx.MarkTaskScoreProcessed(ctx, taskID, now)
	})
	if err != nil {
		return TaskAward{}, fmt.Errorf("AwardTaskScore: %w", err)
	}
	if applied {
		l.metrics.scoreEntry(string(store.CategoryTaskScore))
	}
	return award, nil
}
