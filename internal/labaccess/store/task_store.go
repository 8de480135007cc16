package store

import (
	"context"
	"time"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// TaskRecord is the part of a task the scoring paths read.  Tasks are owned
// by an external collaborator.
type TaskRecord struct {
	ID             int64
	Title          string
	AssigneeUserID *int64
	DueAt          *time.Time
	Status         TaskStatus
	ScoreCategory  *int
	ScoreProcessed bool
}

type TaskStore interface {
	TaskByID(ctx context.Context, taskID int64) (TaskRecord, error)
	UpsertTask(ctx context.Context, rec TaskRecord, now time.Time) error

	// OverdueTasks lists tasks due before now that are neither done nor
	// cancelled.
	OverdueTasks(ctx context.Context, now time.Time) ([]TaskRecord, error)

	MarkTaskScoreProcessed(ctx context.Context, taskID int64, now time.Time) error
}
