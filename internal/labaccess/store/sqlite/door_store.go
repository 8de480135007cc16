package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) SetDoorOpen(ctx context.Context, roomID int64, open bool, now time.Time) error {
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO door_states(room_id, is_open, last_updated_at_ms)
VALUES (?, ?, ?)
ON CONFLICT(room_id) DO UPDATE SET
  is_open            = excluded.is_open,
  last_updated_at_ms = excluded.last_updated_at_ms;
`, roomID, boolInt(open), toMs(now)); err != nil {
		return fmt.Errorf("SetDoorOpen: %w", err)
	}
	return nil
}

func (s *txStore) DoorState(ctx context.Context, roomID int64) (store.DoorStateRecord, error) {
	var (
		rec       store.DoorStateRecord
		open      int
		updatedMs int64
	)
	err := s.tx.QueryRowContext(ctx, `
SELECT room_id, is_open, last_updated_at_ms
FROM door_states
WHERE room_id = ?;
`, roomID).Scan(&rec.RoomID, &open, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.DoorStateRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.DoorStateRecord{}, fmt.Errorf("DoorState: %w", err)
	}
	rec.IsOpen = open == 1
	rec.LastUpdatedAt = fromMs(updatedMs)
	return rec, nil
}
