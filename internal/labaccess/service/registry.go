package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/juju/clock"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
)

var (
	ErrUnknownUser      = errors.New("unknown user")
	ErrUnknownCard      = errors.New("unknown card")
	ErrUnknownReader    = errors.New("unknown reader")
	ErrInvalidLocation  = errors.New("location must be inside or outside")
	ErrInvalidRoomID    = errors.New("room_id must be positive")
	ErrInvalidReaderID  = errors.New("reader_uid is required")
	ErrInvalidCardInput = errors.New("card_uid is required")
)

// Registry provisions cards and readers.
type Registry struct {
	store store.Store
	clock clock.Clock
}

func NewRegistry(st store.Store, clk clock.Clock) *Registry {
	return &Registry{store: st, clock: clk}
}

// RegisterCard binds cardUID to userID.  Re-registering a known card moves
// it to the new owner and reactivates it.
func (r *Registry) RegisterCard(ctx context.Context, userID int64, cardUID string, registeredBy *int64) (store.CardRecord, error) {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return store.CardRecord{}, ErrInvalidCardInput
	}

	var card store.CardRecord
	err := r.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.UserByID(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnknownUser
			}
			return err
		}
		var err error
		card, err = tx.UpsertCard(ctx, store.CardRecord{
			CardUID:      cardUID,
			OwnerUserID:  &userID,
			RegisteredBy: registeredBy,
		}, r.clock.Now().UTC())
		return err
	})
	if err != nil {
		return store.CardRecord{}, fmt.Errorf("RegisterCard: %w", err)
	}
	return card, nil
}

// RevokeCard deactivates a card.  Scans with it are denied until it is
// registered again.
func (r *Registry) RevokeCard(ctx context.Context, cardUID string) error {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return ErrInvalidCardInput
	}
	err := r.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		err := tx.RevokeCard(ctx, cardUID, r.clock.Now().UTC())
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownCard
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("RevokeCard: %w", err)
	}
	return nil
}

// RegisterReader provisions a reader.  Provisioning the same placement twice
// is a no-op; a different placement returns store.ErrReaderConflict.
func (r *Registry) RegisterReader(ctx context.Context, readerUID string, roomID int64, loc store.Location) (store.ReaderRecord, error) {
	readerUID = strings.TrimSpace(readerUID)
	if readerUID == "" {
		return store.ReaderRecord{}, ErrInvalidReaderID
	}
	if roomID <= 0 {
		return store.ReaderRecord{}, ErrInvalidRoomID
	}
	if !loc.Valid() {
		return store.ReaderRecord{}, ErrInvalidLocation
	}

	var reader store.ReaderRecord
	err := r.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		reader, err = tx.InsertReader(ctx, store.ReaderRecord{
			ReaderUID: readerUID,
			RoomID:    roomID,
			Location:  loc,
			Active:    true,
		}, r.clock.Now().UTC())
		return err
	})
	if err != nil {
		return store.ReaderRecord{}, fmt.Errorf("RegisterReader: %w", err)
	}
	return reader, nil
}

func (r *Registry) SetReaderActive(ctx context.Context, readerUID string, active bool) error {
	readerUID = strings.TrimSpace(readerUID)
	if readerUID == "" {
		return ErrInvalidReaderID
	}
	err := r.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		err := tx.SetReaderActive(ctx, readerUID, active, r.clock.Now().UTC())
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownReader
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("SetReaderActive: %w", err)
	}
	return nil
}

// Occupants lists everyone currently inside, by room.
func (r *Registry) Occupants(ctx context.Context) ([]store.OccupancyRecord, error) {
	var out []store.OccupancyRecord
	err := r.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.ListOccupancies(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Occupants: %w", err)
	}
	return out, nil
}
