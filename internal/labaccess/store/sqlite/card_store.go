package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

func (s *txStore) CardByUID(ctx context.Context, cardUID string) (store.CardRecord, error) {
	var (
		rec          store.CardRecord
		owner        sql.NullInt64
		active       int
		registeredBy sql.NullInt64
		lastUsed     sql.NullInt64
		revoked      sql.NullInt64
	)
	err := s.tx.QueryRowContext(ctx, `
SELECT card_id, card_uid, owner_user_id, active, registered_by, last_used_at_ms, revoked_at_ms
FROM rfid_cards
WHERE card_uid = ?;
`, cardUID).Scan(&rec.ID, &rec.CardUID, &owner, &active, &registeredBy, &lastUsed, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CardRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CardRecord{}, fmt.Errorf("CardByUID: %w", err)
	}

	rec.OwnerUserID = intPtr(owner)
	rec.Active = active == 1
	rec.RegisteredBy = intPtr(registeredBy)
	rec.LastUsedAt = timePtr(lastUsed)
	rec.RevokedAt = timePtr(revoked)
	return rec, nil
}

func (s *txStore) UpsertCard(ctx context.Context, rec store.CardRecord, now time.Time) (store.CardRecord, error) {
	nowMs := toMs(now)
	if _, err := s.tx.ExecContext(ctx, `
INSERT INTO rfid_cards(card_uid, owner_user_id, active, registered_by, created_at_ms, updated_at_ms)
VALUES (?, ?, 1, ?, ?, ?)
ON CONFLICT(card_uid) DO UPDATE SET
  owner_user_id = excluded.owner_user_id,
  registered_by = excluded.registered_by,
  active        = 1,
  revoked_at_ms = NULL,
  updated_at_ms = excluded.updated_at_ms;
`, rec.CardUID, nullInt(rec.OwnerUserID), nullInt(rec.RegisteredBy), nowMs, nowMs); err != nil {
		return store.CardRecord{}, fmt.Errorf("UpsertCard: %w", err)
	}
	return s.CardByUID(ctx, rec.CardUID)
}

func (s *txStore) RevokeCard(ctx context.Context, cardUID string, now time.Time) error {
	nowMs := toMs(now)
	res, err := s.tx.ExecContext(ctx, `
UPDATE rfid_cards
SET active = 0,
    revoked_at_ms = COALESCE(revoked_at_ms, ?),
    updated_at_ms = ?
WHERE card_uid = ?;
`, nowMs, nowMs, cardUID)
	if err != nil {
		return fmt.Errorf("RevokeCard: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *txStore) TouchCard(ctx context.Context, cardID int64, usedAt time.Time) error {
	ms := toMs(usedAt)
	if _, err := s.tx.ExecContext(ctx, `
UPDATE rfid_cards
SET last_used_at_ms = ?,
    updated_at_ms   = ?
WHERE card_id = ?;
`, ms, ms, cardID); err != nil {
		return fmt.Errorf("TouchCard: %w", err)
	}
	return nil
}
