package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) OpenLabEntry(ctx context.Context, rec store.LabEntryRecord) (int64, error) {
	res, err := s.tx.ExecContext(ctx, `
INSERT INTO lab_entries(user_id, room_id, card_id, entry_time_ms, notes)
VALUES (?, ?, ?, ?, ?);
`, rec.UserID, rec.RoomID, nullInt(rec.CardID), toMs(rec.EntryTime), rec.Notes)
	if err != nil {
		return 0, fmt.Errorf("OpenLabEntry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("OpenLabEntry id: %w", err)
	}
	return id, nil
}

// CloseLabEntries stamps exit time and whole-minute duration on every open
// session of the user.  A negative duration (exit before entry) clamps to 0.
func (s *txStore) CloseLabEntries(ctx context.Context, userID int64, exitTime time.Time, notes string) (int64, error) {
	exitMs := toMs(exitTime)
	res, err := s.tx.ExecContext(ctx, `
UPDATE lab_entries
SET exit_time_ms     = ?,
    duration_minutes = MAX(0, (? - entry_time_ms) / 60000),
    notes            = CASE WHEN ? = '' THEN notes ELSE ? END
WHERE user_id = ? AND exit_time_ms IS NULL;
`, exitMs, exitMs, notes, notes, userID)
	if err != nil {
		return 0, fmt.Errorf("CloseLabEntries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *txStore) LabEntries(ctx context.Context, userID int64) ([]store.LabEntryRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
SELECT lab_entry_id, user_id, room_id, card_id, entry_time_ms, exit_time_ms, duration_minutes, notes
FROM lab_entries
WHERE user_id = ?
ORDER BY entry_time_ms, lab_entry_id;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("LabEntries: %w", err)
	}
	defer rows.Close()

	var out []store.LabEntryRecord
	for rows.Next() {
		var (
			rec            store.LabEntryRecord
			cardID, exitMs sql.NullInt64
			duration       sql.NullInt64
			entryMs        int64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.RoomID, &cardID, &entryMs, &exitMs, &duration, &rec.Notes); err != nil {
			return nil, fmt.Errorf("LabEntries scan: %w", err)
		}
		rec.CardID = intPtr(cardID)
		rec.EntryTime = fromMs(entryMs)
		rec.ExitTime = timePtr(exitMs)
		rec.DurationMinutes = intPtr(duration)
		out = append(out, rec)
	}
	return out, rows.Err()
}
