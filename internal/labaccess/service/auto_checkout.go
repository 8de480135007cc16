package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

const (
	autoCheckoutNotes   = "auto checkout"
	autoCheckoutPayload = `{"source":"auto_checkout"}`
)

// AutoCheckout closes sessions whose owner never scanned out.  The session
// is closed at entry + threshold, not at the time the worker notices it.
type AutoCheckout struct {
	config AutoCheckoutConfig
}

func (w *AutoCheckout) Name() string { return "auto_checkout" }

// RunOnce closes every session older than the threshold.  Each session is
// closed in its own unit of work; a failure is logged and the pass moves on.
func (w *AutoCheckout) RunOnce(ctx context.Context) error {
	cutoff := w.config.Clock.Now().UTC().Add(-w.config.Threshold)

	var stale []store.OccupancyRecord
	err := w.config.Store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		stale, err = tx.OccupanciesEnteredBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("auto checkout: list stale: %w", err)
	}

	var failed int
	for _, o := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		closed, err := w.checkout(ctx, o.UserID, cutoff)
		if err != nil {
			failed++
			w.config.Logger.Printf("warn: auto checkout user=%d: %v", o.UserID, err)
			continue
		}
		if closed {
			w.config.Logger.Printf("auto checkout: user=%d room=%d entered=%s",
				o.UserID, o.RoomID, o.EntryTime.Format(time.RFC3339))
		}
	}
	if failed > 0 {
		return fmt.Errorf("auto checkout: %d of %d sessions failed", failed, len(stale))
	}
	return nil
}

// checkout re-reads the occupancy inside the unit, so a user who scanned
// out (or back in) since the listing is left alone.
func (w *AutoCheckout) checkout(ctx context.Context, userID int64, cutoff time.Time) (bool, error) {
	var closed bool
	err := w.config.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		closed = false
		o, err := tx.Occupancy(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !o.EntryTime.Before(cutoff) {
			return nil
		}

		exit := o.EntryTime.Add(w.config.Threshold)
		if err := tx.DeleteOccupancy(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.CloseLabEntries(ctx, userID, exit, autoCheckoutNotes); err != nil {
			return err
		}

		ev := store.AccessEventRecord{
			ScanID:     uuid.NewString(),
			RoomID:     &o.RoomID,
			UserID:     &userID,
			Direction:  store.DirectionExit,
			Authorized: true,
			OccurredAt: exit,
			RawPayload: autoCheckoutPayload,
		}
		if card, err := tx.CardByUID(ctx, o.CardUID); err == nil {
			ev.CardID = &card.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := tx.RecordEvent(ctx, ev); err != nil {
			return err
		}
		closed = true
		return nil
	})
	return closed, err
}
