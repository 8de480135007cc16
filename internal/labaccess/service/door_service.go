package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/types"
)

// DoorService owns the per-room open latch that door controllers poll.
//
// A pulse is fire-and-forget: the latch goes true with the scan's own unit
// of work and back to false in a second unit, either at once or after the
// configured hold.  Nothing acknowledges the pulse, and a pulse the poller
// never observes is lost.  A new pulse for a room with a pending release
// replaces it.
type DoorService struct {
	store  store.Store
	clock  clock.Clock
	hold   time.Duration
	logger *log.Logger

	mu      sync.Mutex
	gen     uint64
	pending map[int64]pendingRelease
	wg      sync.WaitGroup
}

type pendingRelease struct {
	gen   uint64
	timer clock.Timer
}

func NewDoorService(st store.Store, clk clock.Clock, hold time.Duration, logger *log.Logger) *DoorService {
	return &DoorService{
		store:   st,
		clock:   clk,
		hold:    hold,
		logger:  logger,
		pending: make(map[int64]pendingRelease),
	}
}

// GetDoorStatus reads the latch.  A room that was never pulsed reads as
// closed with no timestamp.
func (d *DoorService) GetDoorStatus(ctx context.Context, roomID int64) (types.DoorStatus, error) {
	status := types.DoorStatus{RoomID: roomID}
	err := d.store.View(ctx, func(ctx context.Context, tx store.Tx) error {
		rec, err := tx.DoorState(ctx, roomID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		status.IsOpen = rec.IsOpen
		status.LastUpdatedAt = rec.LastUpdatedAt.UTC().Format(time.RFC3339Nano)
		return nil
	})
	if err != nil {
		return types.DoorStatus{}, fmt.Errorf("GetDoorStatus: %w", err)
	}
	return status, nil
}

// SetDoorOpen writes the latch in its own unit of work.
func (d *DoorService) SetDoorOpen(ctx context.Context, roomID int64, open bool) error {
	return d.setLatch(ctx, roomID, open, d.clock.Now().UTC())
}

func (d *DoorService) setLatch(ctx context.Context, roomID int64, open bool, at time.Time) error {
	return d.store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SetDoorOpen(ctx, roomID, open, at)
	})
}

// schedule arranges the false half of a pulse whose true half has already
// committed.
func (d *DoorService) schedule(ctx context.Context, roomID int64) {
	if d.hold <= 0 {
		d.release(context.WithoutCancel(ctx), roomID, d.clock.Now().UTC())
		return
	}
	releaseAt := d.clock.Now().UTC().Add(d.hold)

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[roomID]; ok && prev.timer.Stop() {
		d.wg.Done()
	}
	d.gen++
	gen := d.gen
	d.wg.Add(1)
	timer := d.clock.AfterFunc(d.hold, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if p, ok := d.pending[roomID]; ok && p.gen == gen {
			delete(d.pending, roomID)
		}
		d.mu.Unlock()
		d.release(context.Background(), roomID, releaseAt)
	})
	d.pending[roomID] = pendingRelease{gen: gen, timer: timer}
}

// release takes its timestamp from the caller so a timer callback never
// reads the clock.
func (d *DoorService) release(ctx context.Context, roomID int64, at time.Time) {
	if err := d.setLatch(ctx, roomID, false, at); err != nil {
		d.logger.Printf("warn: door release room=%d: %v", roomID, err)
	}
}

// Close releases every held latch now and waits for in-flight releases, so
// no room is left open across a restart.
func (d *DoorService) Close() {
	d.mu.Lock()
	var rooms []int64
	for roomID, p := range d.pending {
		if p.timer.Stop() {
			rooms = append(rooms, roomID)
			d.wg.Done()
		}
	}
	clear(d.pending)
	d.mu.Unlock()

	now := d.clock.Now().UTC()
	for _, roomID := range rooms {
		d.release(context.Background(), roomID, now)
	}
	d.wg.Wait()
}
