package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/juju/clock/testclock"

	"github.com/BrandonDHaskell/labaccess/internal/labaccess/service"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store/memory"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/types"
)

func newTestRegistry(t *testing.T) (*service.Registry, *memory.Store) {
	t.Helper()
	st := memory.New()
	seedUser(t, st, 1, "Ada")
	seedUser(t, st, 2, "Grace")
	return service.NewRegistry(st, testclock.NewClock(testNow)), st
}

// ── Cards ────────────────────────────────────────────────────────────────────

func TestRegisterCard_ReassignsAndReactivates(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.RegisterCard(ctx, 1, "CAFEBABE", nil)
	if err != nil {
		t.Fatalf("RegisterCard: %v", err)
	}
	if err := reg.RevokeCard(ctx, "CAFEBABE"); err != nil {
		t.Fatalf("RevokeCard: %v", err)
	}

	second, err := reg.RegisterCard(ctx, 2, "CAFEBABE", int64p(1))
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same card row, got %d then %d", first.ID, second.ID)
	}
	if second.OwnerUserID == nil || *second.OwnerUserID != 2 {
		t.Errorf("owner = %v, want 2", second.OwnerUserID)
	}
	if !second.Active || second.RevokedAt != nil {
		t.Errorf("expected reactivated card, got %+v", second)
	}
}

func TestRegisterCard_Validation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.RegisterCard(ctx, 1, " ", nil); !errors.Is(err, service.ErrInvalidCardInput) {
		t.Errorf("expected ErrInvalidCardInput, got %v", err)
	}
	if _, err := reg.RegisterCard(ctx, 42, "CAFEBABE", nil); !errors.Is(err, service.ErrUnknownUser) {
		t.Errorf("expected ErrUnknownUser, got %v", err)
	}
	if err := reg.RevokeCard(ctx, "NOPE"); !errors.Is(err, service.ErrUnknownCard) {
		t.Errorf("expected ErrUnknownCard, got %v", err)
	}
}

func TestRevokeCard_DeniesNextScan(t *testing.T) {
	f := newLabFixture(t, 0)
	reg := service.NewRegistry(f.st, f.clk)

	if err := reg.RevokeCard(context.Background(), testCard); err != nil {
		t.Fatalf("RevokeCard: %v", err)
	}
	res, err := f.access.ProcessScan(context.Background(), types.ScanRequest{CardUID: testCard, ReaderUID: outsideReader})
	if err != nil {
		t.Fatalf("ProcessScan: %v", err)
	}
	if res.Authorized || res.Reason != service.ReasonCardInactive {
		t.Errorf("expected card_inactive denial, got %+v", res)
	}
}

// ── Readers ──────────────────────────────────────────────────────────────────

func TestRegisterReader_IdempotentAndImmutable(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first, err := reg.RegisterReader(ctx, "r-1", 7, store.LocationOutside)
	if err != nil {
		t.Fatalf("RegisterReader: %v", err)
	}
	again, err := reg.RegisterReader(ctx, "r-1", 7, store.LocationOutside)
	if err != nil {
		t.Fatalf("identical re-register: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected same reader, got %d then %d", first.ID, again.ID)
	}

	if _, err := reg.RegisterReader(ctx, "r-1", 7, store.LocationInside); !errors.Is(err, store.ErrReaderConflict) {
		t.Errorf("expected ErrReaderConflict for new location, got %v", err)
	}
	if _, err := reg.RegisterReader(ctx, "r-1", 8, store.LocationOutside); !errors.Is(err, store.ErrReaderConflict) {
		t.Errorf("expected ErrReaderConflict for new room, got %v", err)
	}
}

func TestRegisterReader_Validation(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.RegisterReader(ctx, "", 1, store.LocationInside); !errors.Is(err, service.ErrInvalidReaderID) {
		t.Errorf("expected ErrInvalidReaderID, got %v", err)
	}
	if _, err := reg.RegisterReader(ctx, "r", 0, store.LocationInside); !errors.Is(err, service.ErrInvalidRoomID) {
		t.Errorf("expected ErrInvalidRoomID, got %v", err)
	}
	if _, err := reg.RegisterReader(ctx, "r", 1, store.Location("roof")); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestSetReaderActive(t *testing.T) {
	f := newLabFixture(t, 0)
	reg := service.NewRegistry(f.st, f.clk)
	ctx := context.Background()

	if err := reg.SetReaderActive(ctx, outsideReader, false); err != nil {
		t.Fatalf("SetReaderActive: %v", err)
	}
	res, err := f.access.ProcessScan(ctx, types.ScanRequest{CardUID: testCard, ReaderUID: outsideReader})
	if err != nil {
		t.Fatalf("ProcessScan: %v", err)
	}
	if res.Reason != service.ReasonReaderInactive {
		t.Errorf("expected reader_inactive, got %+v", res)
	}

	if err := reg.SetReaderActive(ctx, "ghost", true); !errors.Is(err, service.ErrUnknownReader) {
		t.Errorf("expected ErrUnknownReader, got %v", err)
	}
}

func TestOccupants(t *testing.T) {
	f := newLabFixture(t, 0)
	reg := service.NewRegistry(f.st, f.clk)

	if _, err := f.access.ProcessScan(context.Background(), types.ScanRequest{CardUID: testCard, ReaderUID: outsideReader}); err != nil {
		t.Fatalf("ProcessScan: %v", err)
	}
	occ, err := reg.Occupants(context.Background())
	if err != nil {
		t.Fatalf("Occupants: %v", err)
	}
	if len(occ) != 1 || occ[0].UserID != testUser || occ[0].RoomID != testRoom {
		t.Errorf("unexpected occupants %+v", occ)
	}
}
