package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SeedDevOptions describes the fixtures loaded into a dev database.  It is
// normally read from a YAML file with LoadSeedFile.
type SeedDevOptions struct {
	Users   []SeedUser   `yaml:"users"`
	Readers []SeedReader `yaml:"readers"`
	Cards   []SeedCard   `yaml:"cards"`
	Tasks   []SeedTask   `yaml:"tasks"`
}

type SeedUser struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type SeedReader struct {
	UID      string `yaml:"uid"`
	RoomID   int64  `yaml:"room_id"`
	Location string `yaml:"location"`
}

type SeedCard struct {
	UID    string `yaml:"uid"`
	UserID int64  `yaml:"user_id"`
}

type SeedTask struct {
	ID            int64     `yaml:"id"`
	Title         string    `yaml:"title"`
	AssigneeID    int64     `yaml:"assignee_id"`
	Due           time.Time `yaml:"due"`
	Status        string    `yaml:"status"`
	ScoreCategory *int      `yaml:"score_category"`
}

// DefaultSeed is used when no seed file is configured: one airlock room
// with an outside and an inside reader and one registered card.
func DefaultSeed() SeedDevOptions {
	return SeedDevOptions{
		Users: []SeedUser{{ID: 1, Name: "Dev User"}},
		Readers: []SeedReader{
			{UID: "reader-101-out", RoomID: 101, Location: "outside"},
			{UID: "reader-101-in", RoomID: 101, Location: "inside"},
		},
		Cards: []SeedCard{{UID: "AABBCCDD", UserID: 1}},
	}
}

func LoadSeedFile(path string) (SeedDevOptions, error) {
	var opt SeedDevOptions
	b, err := os.ReadFile(path)
	if err != nil {
		return opt, fmt.Errorf("read seed file: %w", err)
	}
	if err := yaml.Unmarshal(b, &opt); err != nil {
		return opt, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return opt, nil
}

// SeedDev upserts the fixtures.  Existing rows keep their runtime state
// (scores, last-seen stamps); only identity columns are refreshed.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range opt.Users {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO users(user_id, name, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  name = excluded.name,
  updated_at_ms = excluded.updated_at_ms;
`, u.ID, u.Name, now, now); err != nil {
			return fmt.Errorf("seed user %d: %w", u.ID, err)
		}
	}

	for _, r := range opt.Readers {
		uid := strings.TrimSpace(r.UID)
		if uid == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO rfid_readers(reader_uid, room_id, location, active, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT(reader_uid) DO UPDATE SET
  active = 1,
  updated_at_ms = excluded.updated_at_ms;
`, uid, r.RoomID, strings.ToLower(r.Location), now, now); err != nil {
			return fmt.Errorf("seed reader %s: %w", uid, err)
		}
	}

	for _, c := range opt.Cards {
		uid := strings.TrimSpace(c.UID)
		if uid == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO rfid_cards(card_uid, owner_user_id, active, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?)
ON CONFLICT(card_uid) DO UPDATE SET
  owner_user_id = excluded.owner_user_id,
  active = 1,
  revoked_at_ms = NULL,
  updated_at_ms = excluded.updated_at_ms;
`, uid, c.UserID, now, now); err != nil {
			return fmt.Errorf("seed card %s: %w", uid, err)
		}
	}

	for _, t := range opt.Tasks {
		status := t.Status
		if status == "" {
			status = "todo"
		}
		var due, assignee, category any
		if !t.Due.IsZero() {
			due = t.Due.UTC().UnixMilli()
		}
		if t.AssigneeID != 0 {
			assignee = t.AssigneeID
		}
		if t.ScoreCategory != nil {
			category = *t.ScoreCategory
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO tasks(task_id, title, assignee_user_id, due_at_ms, status, score_category, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
  title = excluded.title,
  assignee_user_id = excluded.assignee_user_id,
  due_at_ms = excluded.due_at_ms,
  status = excluded.status,
  score_category = excluded.score_category,
  updated_at_ms = excluded.updated_at_ms;
`, t.ID, t.Title, assignee, due, status, category, now, now); err != nil {
			return fmt.Errorf("seed task %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}
	return nil
}
