package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) Occupancy(ctx context.Context, userID int64) (store.OccupancyRecord, error) {
	var (
		rec     store.OccupancyRecord
		entryMs int64
	)
	err := s.tx.QueryRowContext(ctx, `
SELECT user_id, room_id, card_uid, entry_time_ms
FROM occupancy
WHERE user_id = ?;
`, userID).Scan(&rec.UserID, &rec.RoomID, &rec.CardUID, &entryMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.OccupancyRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.OccupancyRecord{}, fmt.Errorf("Occupancy: %w", err)
	}
	rec.EntryTime = fromMs(entryMs)
	return rec, nil
}

// InsertOccupancy relies on the user_id primary key: a second writer for
// the same user inserts nothing and gets ErrAlreadyInside.
func (s *txStore) InsertOccupancy(ctx context.Context, rec store.OccupancyRecord) error {
	res, err := s.tx.ExecContext(ctx, `
INSERT INTO occupancy(user_id, room_id, card_uid, entry_time_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id) DO NOTHING;
`, rec.UserID, rec.RoomID, rec.CardUID, toMs(rec.EntryTime))
	if err != nil {
		return fmt.Errorf("InsertOccupancy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("InsertOccupancy rows: %w", err)
	}
	if n == 0 {
		return store.ErrAlreadyInside
	}
	return nil
}

func (s *txStore) DeleteOccupancy(ctx context.Context, userID int64) error {
	res, err := s.tx.ExecContext(ctx, `DELETE FROM occupancy WHERE user_id = ?;`, userID)
	if err != nil {
		return fmt.Errorf("DeleteOccupancy: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteOccupancy rows: %w", err)
	}
	if n == 0 {
		return store.ErrNotInside
	}
	return nil
}

func (s *txStore) OccupanciesEnteredBefore(ctx context.Context, cutoff time.Time) ([]store.OccupancyRecord, error) {
	return s.queryOccupancies(ctx, `
SELECT user_id, room_id, card_uid, entry_time_ms
FROM occupancy
WHERE entry_time_ms < ?
ORDER BY entry_time_ms, user_id;
`, toMs(cutoff))
}

func (s *txStore) ListOccupancies(ctx context.Context) ([]store.OccupancyRecord, error) {
	return s.queryOccupancies(ctx, `
SELECT user_id, room_id, card_uid, entry_time_ms
FROM occupancy
ORDER BY room_id, entry_time_ms, user_id;
`)
}

func (s *txStore) queryOccupancies(ctx context.Context, query string, args ...any) ([]store.OccupancyRecord, error) {
	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query occupancy: %w", err)
	}
	defer rows.Close()

	var out []store.OccupancyRecord
	for rows.Next() {
		var (
			rec     store.OccupancyRecord
			entryMs int64
		)
		if err := rows.Scan(&rec.UserID, &rec.RoomID, &rec.CardUID, &entryMs); err != nil {
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}
		rec.EntryTime = fromMs(entryMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}
