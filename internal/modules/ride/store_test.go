package ride

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"waypool/internal/types"
)

// Integration tests against a real database. Skipped unless
// WAYPOOL_TEST_DSN points at a migrated instance.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("WAYPOOL_TEST_DSN")
	if dsn == "" {
		t.Skip("WAYPOOL_TEST_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func seedRide(driverID types.ID) *Ride {
	r := &Ride{
		ID:             newID(),
		DriverID:       driverID,
		Origin:         Stop{Label: "Old Town", Point: types.Point{Lat: 10, Lng: 10}},
		Destination:    Stop{Label: "Harbor", Point: types.Point{Lat: 11, Lng: 10}},
		Date:           "2026-09-20",
		Time:           "08:30",
		DurationHours:  1.5,
		SeatsAvailable: 3,
		PricePerSeat:   120,
		IsActive:       true,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	r.RebuildIndex()
	return r
}

func TestPgStoreRoundTrip(t *testing.T) {
	store := NewPgStore(testPool(t))
	ctx := context.Background()

	r := seedRide(types.ID(fmt.Sprintf("drv-%s", newID()[:8])))
	r.Requests = []Request{{
		ID:      newID(),
		RiderID: "rider-1",
		Seats:   2,
		Status:  RequestPending,
	}}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SeatsAvailable != 3 || got.Status != StatusPending {
		t.Fatalf("unexpected ride: %+v", got)
	}
	if len(got.Requests) != 1 || got.RequestByRider("rider-1") == nil {
		t.Fatalf("embedded requests did not round-trip: %+v", got.Requests)
	}

	if _, err := store.Get(ctx, "ffffffffffffffffffffffffffffffff"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing ride: expected ErrNotFound, got %v", err)
	}
}

func TestPgStoreVersionConflict(t *testing.T) {
	store := NewPgStore(testPool(t))
	ctx := context.Background()

	r := seedRide(types.ID(fmt.Sprintf("drv-%s", newID()[:8])))
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	a, _ := store.Get(ctx, r.ID)
	b, _ := store.Get(ctx, r.ID)

	a.SeatsAvailable = 2
	if ok, err := store.Update(ctx, a); err != nil || !ok {
		t.Fatalf("first update should win: ok=%v err=%v", ok, err)
	}

	b.SeatsAvailable = 1
	if ok, err := store.Update(ctx, b); err != nil || ok {
		t.Fatalf("stale update must lose: ok=%v err=%v", ok, err)
	}

	got, _ := store.Get(ctx, r.ID)
	if got.SeatsAvailable != 2 {
		t.Fatalf("expected the winner's write, got %d seats", got.SeatsAvailable)
	}
}

func TestPgStoreStartExclusive(t *testing.T) {
	store := NewPgStore(testPool(t))
	ctx := context.Background()

	driver := types.ID(fmt.Sprintf("drv-%s", newID()[:8]))
	first := seedRide(driver)
	second := seedRide(driver)
	for _, r := range []*Ride{first, second} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	now := time.Now().UTC()
	first.Status = StatusStarted
	first.StartedAt = &now
	if ok, err := store.StartExclusive(ctx, first); err != nil || !ok {
		t.Fatalf("first start: ok=%v err=%v", ok, err)
	}

	second.Status = StatusStarted
	second.StartedAt = &now
	if _, err := store.StartExclusive(ctx, second); !errors.Is(err, ErrDriverBusy) {
		t.Fatalf("second start: expected ErrDriverBusy, got %v", err)
	}
}
