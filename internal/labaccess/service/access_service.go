package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/types"
)

var (
	ErrInvalidCardUID   = errors.New("card_uid is required")
	ErrInvalidReaderUID = errors.New("reader_uid is required")
)

// Deny reasons recorded on the access event and returned in ScanResult.
const (
	ReasonUnknownReader   = "unknown_reader"
	ReasonReaderInactive  = "reader_inactive"
	ReasonInvalidLocation = "invalid_reader_location"
	ReasonUnknownCard     = "unknown_card"
	ReasonCardInactive    = "card_inactive"
	ReasonCardUnassigned  = "card_unassigned"
	ReasonUnknownUser     = "unknown_user"
	ReasonUserInactive    = "user_inactive"
	ReasonSystemError     = "system_error"
)

const (
	msgSystemError = "system error"

	// scanAttempts bounds re-evaluation after losing an occupancy race.
	scanAttempts = 3
)

var denyMessages = map[string]string{
	ReasonUnknownReader:   "unknown reader",
	ReasonReaderInactive:  "reader inactive",
	ReasonInvalidLocation: "reader misconfigured",
	ReasonUnknownCard:     "card not registered",
	ReasonCardInactive:    "card inactive",
	ReasonCardUnassigned:  "card not assigned",
	ReasonUnknownUser:     "user not found",
	ReasonUserInactive:    "user inactive",
}

// AccessService turns a (card, reader) scan into a decision, an occupancy
// transition, an audit event and optionally a door pulse.
type AccessService struct {
	store   store.Store
	doors   *DoorService
	clock   clock.Clock
	logger  *log.Logger
	metrics *Metrics
}

func NewAccessService(st store.Store, doors *DoorService, clk clock.Clock, logger *log.Logger, m *Metrics) *AccessService {
	return &AccessService{store: st, doors: doors, clock: clk, logger: logger, metrics: m}
}

// scanOutcome is what one attempt decided.  pulseRoom is set when the
// unit committed an open latch that still needs releasing.
type scanOutcome struct {
	result    types.ScanResult
	pulseRoom *int64
}

// ProcessScan never fails for a well-formed request: lookup failures are
// denials and unexpected errors become a "system error" denial.  The error
// is reserved for empty identifiers, for which nothing is logged.
func (s *AccessService) ProcessScan(ctx context.Context, req types.ScanRequest) (res types.ScanResult, err error) {
	req.CardUID = strings.TrimSpace(req.CardUID)
	req.ReaderUID = strings.TrimSpace(req.ReaderUID)
	if req.CardUID == "" {
		return types.ScanResult{}, ErrInvalidCardUID
	}
	if req.ReaderUID == "" {
		return types.ScanResult{}, ErrInvalidReaderUID
	}

	scanID := uuid.NewString()
	raw, _ := json.Marshal(req)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("scan %s: panic: %v", scanID, r)
			res, err = s.systemError(ctx, scanID, string(raw)), nil
		}
	}()

	for attempt := 1; attempt <= scanAttempts; attempt++ {
		out, err := s.attempt(ctx, req, scanID, string(raw))
		if errors.Is(err, store.ErrAlreadyInside) || errors.Is(err, store.ErrNotInside) {
			s.logger.Printf("scan %s: occupancy race (attempt %d/%d): %v", scanID, attempt, scanAttempts, err)
			continue
		}
		if err != nil {
			s.logger.Printf("scan %s: %v", scanID, err)
			return s.systemError(ctx, scanID, string(raw)), nil
		}

		if out.pulseRoom != nil {
			s.doors.schedule(ctx, *out.pulseRoom)
		}
		if out.result.Authorized {
			s.metrics.scan("granted")
		} else {
			s.metrics.scan(out.result.Reason)
		}
		return out.result, nil
	}

	s.logger.Printf("scan %s: gave up after %d occupancy races", scanID, scanAttempts)
	return s.systemError(ctx, scanID, string(raw)), nil
}

// attempt runs one read-decide-write pass as a single unit of work.
func (s *AccessService) attempt(ctx context.Context, req types.ScanRequest, scanID, raw string) (scanOutcome, error) {
	var out scanOutcome
	err := s.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		out = scanOutcome{}
		now := s.clock.Now().UTC()
		ev := store.AccessEventRecord{
			ScanID:     scanID,
			Direction:  store.DirectionEntry,
			OccurredAt: now,
			RawPayload: raw,
		}
		deny := func(reason string) error {
			ev.DenyReason = reason
			out.result = s.result(false, Decision{}, "", denyMessages[reason], reason, scanID, now)
			return tx.RecordEvent(ctx, ev)
		}

		reader, err := tx.ReaderByUID(ctx, req.ReaderUID)
		if errors.Is(err, store.ErrNotFound) {
			return deny(ReasonUnknownReader)
		}
		if err != nil {
			return fmt.Errorf("lookup reader: %w", err)
		}
		if err := tx.MarkReaderSeen(ctx, reader.ID, now); err != nil {
			return fmt.Errorf("mark reader seen: %w", err)
		}
		ev.RoomID = &reader.RoomID
		if reader.Location == store.LocationInside {
			ev.Direction = store.DirectionExit
		}
		if !reader.Active {
			return deny(ReasonReaderInactive)
		}
		if !reader.Location.Valid() {
			return deny(ReasonInvalidLocation)
		}

		card, err := tx.CardByUID(ctx, req.CardUID)
		if errors.Is(err, store.ErrNotFound) {
			return deny(ReasonUnknownCard)
		}
		if err != nil {
			return fmt.Errorf("lookup card: %w", err)
		}
		ev.CardID = &card.ID
		if !card.Active || card.RevokedAt != nil {
			return deny(ReasonCardInactive)
		}
		if card.OwnerUserID == nil {
			return deny(ReasonCardUnassigned)
		}
		userID := *card.OwnerUserID
		ev.UserID = &userID

		user, err := tx.UserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return deny(ReasonUnknownUser)
		}
		if err != nil {
			return fmt.Errorf("lookup user: %w", err)
		}
		if !user.Active || user.DeletedAt != nil {
			return deny(ReasonUserInactive)
		}

		_, err = tx.Occupancy(ctx, userID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("lookup occupancy: %w", err)
		}
		d := Decide(err == nil, reader.Location)

		if d.IsEntry {
			ev.Direction = store.DirectionEntry
			if err := tx.InsertOccupancy(ctx, store.OccupancyRecord{
				UserID:    userID,
				RoomID:    reader.RoomID,
				CardUID:   card.CardUID,
				EntryTime: now,
			}); err != nil {
				return err
			}
			if _, err := tx.OpenLabEntry(ctx, store.LabEntryRecord{
				UserID:    userID,
				RoomID:    reader.RoomID,
				CardID:    &card.ID,
				EntryTime: now,
			}); err != nil {
				return fmt.Errorf("open lab entry: %w", err)
			}
		} else {
			ev.Direction = store.DirectionExit
			if err := tx.DeleteOccupancy(ctx, userID); err != nil {
				return err
			}
			if _, err := tx.CloseLabEntries(ctx, userID, now, ""); err != nil {
				return fmt.Errorf("close lab entries: %w", err)
			}
		}

		ev.Authorized = true
		if err := tx.RecordEvent(ctx, ev); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		if err := tx.TouchCard(ctx, card.ID, now); err != nil {
			return fmt.Errorf("touch card: %w", err)
		}
		if d.DoorShouldOpen {
			if err := tx.SetDoorOpen(ctx, reader.RoomID, true, now); err != nil {
				return fmt.Errorf("open door: %w", err)
			}
			roomID := reader.RoomID
			out.pulseRoom = &roomID
		}

		msg := "goodbye"
		if d.IsEntry {
			msg = "welcome"
		}
		out.result = s.result(true, d, user.Name, msg, "", scanID, now)
		return nil
	})
	return out, err
}

// systemError logs a denied event for the scan in a fresh unit of work,
// best effort, and returns the generic failure result.
func (s *AccessService) systemError(ctx context.Context, scanID, raw string) types.ScanResult {
	s.metrics.scan(ReasonSystemError)
	now := s.clock.Now().UTC()
	err := s.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.RecordEvent(ctx, store.AccessEventRecord{
			ScanID:     scanID,
			Direction:  store.DirectionEntry,
			DenyReason: ReasonSystemError,
			OccurredAt: now,
			RawPayload: raw,
		})
	})
	if err != nil {
		s.logger.Printf("warn: scan %s: record system error event: %v", scanID, err)
	}
	return s.result(false, Decision{}, "", msgSystemError, ReasonSystemError, scanID, now)
}

func (s *AccessService) result(authorized bool, d Decision, userName, msg, reason, scanID string, now time.Time) types.ScanResult {
	return types.ScanResult{
		Authorized:     authorized,
		DoorShouldOpen: d.DoorShouldOpen,
		IsEntry:        d.IsEntry,
		UserName:       userName,
		Message:        msg,
		Reason:         reason,
		ScanID:         scanID,
		ServerTime:     now.Format(time.RFC3339Nano),
	}
}
