package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) ReaderByUID(ctx context.Context, readerUID string) (store.ReaderRecord, error) {
	var (
		rec      store.ReaderRecord
		location string
		active   int
		lastSeen sql.NullInt64
	)
	err := s.tx.QueryRowContext(ctx, `
SELECT reader_id, reader_uid, room_id, location, active, last_seen_at_ms
FROM rfid_readers
WHERE reader_uid = ?;
`, readerUID).Scan(&rec.ID, &rec.ReaderUID, &rec.RoomID, &location, &active, &lastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ReaderRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.ReaderRecord{}, fmt.Errorf("ReaderByUID: %w", err)
	}

	rec.Location = store.Location(location)
	rec.Active = active == 1
	rec.LastSeenAt = timePtr(lastSeen)
	return rec, nil
}

func (s *txStore) InsertReader(ctx context.Context, rec store.ReaderRecord, now time.Time) (store.ReaderRecord, error) {
	existing, err := s.ReaderByUID(ctx, rec.ReaderUID)
	switch {
	case err == nil:
		if existing.RoomID != rec.RoomID || existing.Location != rec.Location {
			return existing, store.ErrReaderConflict
		}
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.ReaderRecord{}, err
	}

	nowMs := toMs(now)
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO rfid_readers(reader_uid, room_id, location, active, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?);
`, rec.ReaderUID, rec.RoomID, string(rec.Location), boolInt(rec.Active), nowMs, nowMs); err != nil {
		return store.ReaderRecord{}, fmt.Errorf("InsertReader: %w", err)
	}
	return s.ReaderByUID(ctx, rec.ReaderUID)
}

func (s *txStore) SetReaderActive(ctx context.Context, readerUID string, active bool, now time.Time) error {
	res, err := s.tx.ExecContext(ctx, `
UPDATE rfid_readers
SET active = ?,
    updated_at_ms = ?
WHERE reader_uid = ?;
`, boolInt(active), toMs(now), readerUID)
	if err != nil {
		return fmt.Errorf("SetReaderActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *txStore) MarkReaderSeen(ctx context.Context, readerID int64, t time.Time) error {
	ms := toMs(t)
	if _, err := s.tx.ExecContext(ctx, `
UPDATE rfid_readers
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE reader_id = ?;
`, ms, ms, readerID); err != nil {
		return fmt.Errorf("MarkReaderSeen: %w", err)
	}
	return nil
}
