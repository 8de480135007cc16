package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) RecordEvent(ctx context.Context, rec store.AccessEventRecord) error {
	if rec.OccurredAt.IsZero() {
		return fmt.Errorf("RecordEvent: occurred_at is required")
	}

	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO access_events(
  scan_id, room_id, card_id, user_id, direction,
  authorized, deny_reason, occurred_at_ms, raw_payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		rec.ScanID, nullInt(rec.RoomID), nullInt(rec.CardID), nullInt(rec.UserID), string(rec.Direction),
		boolInt(rec.Authorized), rec.DenyReason, toMs(rec.OccurredAt), rec.RawPayload,
	); err != nil {
		return fmt.Errorf("RecordEvent insert: %w", err)
	}
	return nil
}

func (s *txStore) AccessEvents(ctx context.Context, userID int64) ([]store.AccessEventRecord, error) {
	rows, err := s.tx.QueryContext(ctx, `
SELECT event_id, scan_id, room_id, card_id, user_id, direction,
       authorized, deny_reason, occurred_at_ms, raw_payload
FROM access_events
WHERE user_id = ?
ORDER BY occurred_at_ms, event_id;
`, userID)
	if err != nil {
		return nil, fmt.Errorf("AccessEvents: %w", err)
	}
	defer rows.Close()

	var out []store.AccessEventRecord
	for rows.Next() {
		var (
			rec                  store.AccessEventRecord
			roomID, cardID, user sql.NullInt64
			direction            string
			authorized           int
			occurredMs           int64
		)
		if err := rows.Scan(&rec.ID, &rec.ScanID, &roomID, &cardID, &user, &direction,
			&authorized, &rec.DenyReason, &occurredMs, &rec.RawPayload); err != nil {
			return nil, fmt.Errorf("AccessEvents scan: %w", err)
		}
		rec.RoomID = intPtr(roomID)
		rec.CardID = intPtr(cardID)
		rec.UserID = intPtr(user)
		rec.Direction = store.Direction(direction)
		rec.Authorized = authorized == 1
		rec.OccurredAt = fromMs(occurredMs)
		out = append(out, rec)
	}
	return out, rows.Err()
}
