package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

type tx struct {
	st *state
}

var _ store.Tx = (*tx)(nil)

// ── users ────────────────────────────────────────────────────────────────────

func (t *tx) UserByID(_ context.Context, userID int64) (store.UserRecord, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return u, nil
}

func (t *tx) UpsertUser(_ context.Context, rec store.UserRecord, _ time.Time) error {
	if prev, ok := t.st.users[rec.ID]; ok {
		rec.TotalScore = prev.TotalScore
	}
	t.st.users[rec.ID] = rec
	return nil
}

func (t *tx) ListScoredUsers(_ context.Context) ([]store.UserRecord, error) {
	var out []store.UserRecord
	for _, u := range t.st.users {
		if u.DeletedAt == nil {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b store.UserRecord) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) SetTotalScore(_ context.Context, userID int64, total decimal.Decimal, _ time.Time) error {
	u, ok := t.st.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	u.TotalScore = total
	t.st.users[userID] = u
	return nil
}

// ── cards ────────────────────────────────────────────────────────────────────

func (t *tx) CardByUID(_ context.Context, cardUID string) (store.CardRecord, error) {
	c, ok := t.st.cards[cardUID]
	if !ok {
		return store.CardRecord{}, store.ErrNotFound
	}
	return c, nil
}

func (t *tx) UpsertCard(_ context.Context, rec store.CardRecord, _ time.Time) (store.CardRecord, error) {
	c, ok := t.st.cards[rec.CardUID]
	if !ok {
		t.st.nextCardID++
		c = store.CardRecord{ID: t.st.nextCardID, CardUID: rec.CardUID}
	}
	c.OwnerUserID = rec.OwnerUserID
	c.RegisteredBy = rec.RegisteredBy
	c.Active = true
	c.RevokedAt = nil
	t.st.cards[rec.CardUID] = c
	return c, nil
}

func (t *tx) RevokeCard(_ context.Context, cardUID string, now time.Time) error {
	c, ok := t.st.cards[cardUID]
	if !ok {
		return store.ErrNotFound
	}
	c.Active = false
	if c.RevokedAt == nil {
		c.RevokedAt = &now
	}
	t.st.cards[cardUID] = c
	return nil
}

func (t *tx) TouchCard(_ context.Context, cardID int64, usedAt time.Time) error {
	for uid, c := range t.st.cards {
		if c.ID == cardID {
			c.LastUsedAt = &usedAt
			t.st.cards[uid] = c
			return nil
		}
	}
	return nil
}

// ── readers ──────────────────────────────────────────────────────────────────

func (t *tx) ReaderByUID(_ context.Context, readerUID string) (store.ReaderRecord, error) {
	r, ok := t.st.readers[readerUID]
	if !ok {
		return store.ReaderRecord{}, store.ErrNotFound
	}
	return r, nil
}

func (t *tx) InsertReader(_ context.Context, rec store.ReaderRecord, _ time.Time) (store.ReaderRecord, error) {
	if prev, ok := t.st.readers[rec.ReaderUID]; ok {
		if prev.RoomID != rec.RoomID || prev.Location != rec.Location {
			return prev, store.ErrReaderConflict
		}
		return prev, nil
	}
	t.st.nextReaderID++
	rec.ID = t.st.nextReaderID
	rec.LastSeenAt = nil
	t.st.readers[rec.ReaderUID] = rec
	return rec, nil
}

func (t *tx) SetReaderActive(_ context.Context, readerUID string, active bool, _ time.Time) error {
	r, ok := t.st.readers[readerUID]
	if !ok {
		return store.ErrNotFound
	}
	r.Active = active
	t.st.readers[readerUID] = r
	return nil
}

func (t *tx) MarkReaderSeen(_ context.Context, readerID int64, seen time.Time) error {
	for uid, r := range t.st.readers {
		if r.ID == readerID {
			r.LastSeenAt = &seen
			t.st.readers[uid] = r
			return nil
		}
	}
	return nil
}

// ── occupancy ────────────────────────────────────────────────────────────────

func (t *tx) Occupancy(_ context.Context, userID int64) (store.OccupancyRecord, error) {
	o, ok := t.st.occupancy[userID]
	if !ok {
		return store.OccupancyRecord{}, store.ErrNotFound
	}
	return o, nil
}

func (t *tx) InsertOccupancy(_ context.Context, rec store.OccupancyRecord) error {
	if _, ok := t.st.occupancy[rec.UserID]; ok {
		return store.ErrAlreadyInside
	}
	t.st.occupancy[rec.UserID] = rec
	return nil
}

func (t *tx) DeleteOccupancy(_ context.Context, userID int64) error {
	if _, ok := t.st.occupancy[userID]; !ok {
		return store.ErrNotInside
	}
	delete(t.st.occupancy, userID)
	return nil
}

func (t *tx) OccupanciesEnteredBefore(_ context.Context, cutoff time.Time) ([]store.OccupancyRecord, error) {
	var out []store.OccupancyRecord
	for _, o := range t.st.occupancy {
		if o.EntryTime.Before(cutoff) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b store.OccupancyRecord) int {
		return cmp.Or(a.EntryTime.Compare(b.EntryTime), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}

func (t *tx) ListOccupancies(_ context.Context) ([]store.OccupancyRecord, error) {
	out := make([]store.OccupancyRecord, 0, len(t.st.occupancy))
	for _, o := range t.st.occupancy {
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b store.OccupancyRecord) int {
		return cmp.Or(cmp.Compare(a.RoomID, b.RoomID), a.EntryTime.Compare(b.EntryTime), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}

// ── access events ────────────────────────────────────────────────────────────

func (t *tx) RecordEvent(_ context.Context, rec store.AccessEventRecord) error {
	t.st.nextEventID++
	rec.ID = t.st.nextEventID
	t.st.events = append(t.st.events, rec)
	return nil
}

func (t *tx) AccessEvents(_ context.Context, userID int64) ([]store.AccessEventRecord, error) {
	var out []store.AccessEventRecord
	for _, e := range t.st.events {
		if e.UserID != nil && *e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ── lab entries ──────────────────────────────────────────────────────────────

func (t *tx) OpenLabEntry(_ context.Context, rec store.LabEntryRecord) (int64, error) {
	t.st.nextEntryID++
	rec.ID = t.st.nextEntryID
	rec.ExitTime = nil
	rec.DurationMinutes = nil
	t.st.labEntries = append(t.st.labEntries, rec)
	return rec.ID, nil
}

func (t *tx) CloseLabEntries(_ context.Context, userID int64, exitTime time.Time, notes string) (int64, error) {
	var closed int64
	for i, e := range t.st.labEntries {
		if e.UserID != userID || e.ExitTime != nil {
			continue
		}
		exit := exitTime
		minutes := max(int64(exit.Sub(e.EntryTime)/time.Minute), 0)
		e.ExitTime = &exit
		e.DurationMinutes = &minutes
		if notes != "" {
			e.Notes = notes
		}
		t.st.labEntries[i] = e
		closed++
	}
	return closed, nil
}

func (t *tx) LabEntries(_ context.Context, userID int64) ([]store.LabEntryRecord, error) {
	var out []store.LabEntryRecord
	for _, e := range t.st.labEntries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ── doors ────────────────────────────────────────────────────────────────────

func (t *tx) SetDoorOpen(_ context.Context, roomID int64, open bool, now time.Time) error {
	t.st.doors[roomID] = store.DoorStateRecord{RoomID: roomID, IsOpen: open, LastUpdatedAt: now}
	return nil
}

func (t *tx) DoorState(_ context.Context, roomID int64) (store.DoorStateRecord, error) {
	d, ok := t.st.doors[roomID]
	if !ok {
		return store.DoorStateRecord{}, store.ErrNotFound
	}
	return d, nil
}

// ── ledger ───────────────────────────────────────────────────────────────────

func (t *tx) AppendScore(_ context.Context, rec store.ScoreHistoryRecord) error {
	t.st.nextScoreID++
	rec.ID = t.st.nextScoreID
	t.st.scores = append(t.st.scores, rec)
	return nil
}

func (t *tx) HasScoreBetween(_ context.Context, ref store.ScoreRef, from, to time.Time) (bool, error) {
	for _, s := range t.st.scores {
		if s.ReferenceType != ref.ReferenceType || s.Category != ref.Category {
			continue
		}
		if s.ReferenceID == nil || *s.ReferenceID != ref.ReferenceID {
			continue
		}
		if !s.CreatedAt.Before(from) && s.CreatedAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) ScoreHistory(_ context.Context, userID int64) ([]store.ScoreHistoryRecord, error) {
	var out []store.ScoreHistoryRecord
	for _, s := range t.st.scores {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b store.ScoreHistoryRecord) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})
	return out, nil
}

func (t *tx) SumScoreSince(_ context.Context, userID int64, since time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, s := range t.st.scores {
		if s.UserID == userID && (since.IsZero() || s.CreatedAt.After(since)) {
			sum = sum.Add(s.PointsChanged)
		}
	}
	return sum, nil
}

func (t *tx) HasSnapshotForPeriod(_ context.Context, period string) (bool, error) {
	return slices.ContainsFunc(t.st.snapshots, func(s store.SnapshotRecord) bool { return s.Period == period }), nil
}

func (t *tx) InsertSnapshot(_ context.Context, rec store.SnapshotRecord) error {
	for _, s := range t.st.snapshots {
		if s.UserID == rec.UserID && s.Period == rec.Period {
			return fmt.Errorf("InsertSnapshot: user %d already has a snapshot for %s", rec.UserID, rec.Period)
		}
	}
	t.st.snapshots = append(t.st.snapshots, rec)
	return nil
}

func (t *tx) Snapshots(_ context.Context, period string) ([]store.SnapshotRecord, error) {
	var out []store.SnapshotRecord
	for _, s := range t.st.snapshots {
		if s.Period == period {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b store.SnapshotRecord) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

func (t *tx) LatestSnapshotDate(_ context.Context, userID int64) (time.Time, error) {
	var latest time.Time
	for _, s := range t.st.snapshots {
		if s.UserID == userID && s.SnapshotDate.After(latest) {
			latest = s.SnapshotDate
		}
	}
	return latest, nil
}

// ── tasks ────────────────────────────────────────────────────────────────────

func (t *tx) TaskByID(_ context.Context, taskID int64) (store.TaskRecord, error) {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return store.TaskRecord{}, store.ErrNotFound
	}
	return task, nil
}

func (t *tx) UpsertTask(_ context.Context, rec store.TaskRecord, _ time.Time) error {
	t.st.tasks[rec.ID] = rec
	return nil
}

func (t *tx) OverdueTasks(_ context.Context, now time.Time) ([]store.TaskRecord, error) {
	var out []store.TaskRecord
	for _, task := range t.st.tasks {
		if task.DueAt == nil || !task.DueAt.Before(now) {
			continue
		}
		if task.Status == store.TaskDone || task.Status == store.TaskCancelled {
			continue
		}
		out = append(out, task)
	}
	slices.SortFunc(out, func(a, b store.TaskRecord) int {
		return cmp.Or(a.DueAt.Compare(*b.DueAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (t *tx) MarkTaskScoreProcessed(_ context.Context, taskID int64, _ time.Time) error {
	task, ok := t.st.tasks[taskID]
	if !ok {
		return store.ErrNotFound
	}
	task.ScoreProcessed = true
	t.st.tasks[taskID] = task
	return nil
}
