package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"waypool/internal/types"
)

// flakyWriter fails a configurable number of times before succeeding.
type flakyWriter struct {
	mu       sync.Mutex
	failures int
	upserts  int
	statuses []Status
	deletes  int
}

func (f *flakyWriter) step() error {
	if f.failures > 0 {
		f.failures--
		return errors.New("mirror unavailable")
	}
	return nil
}

func (f *flakyWriter) Upsert(_ context.Context, _ Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.step(); err != nil {
		return err
	}
	f.upserts++
	return nil
}

func (f *flakyWriter) UpdateStatus(_ context.Context, _, _ types.ID, status Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.step(); err != nil {
		return err
	}
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *flakyWriter) Delete(_ context.Context, _, _ types.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.step(); err != nil {
		return err
	}
	f.deletes++
	return nil
}

func TestProjectorRetriesTransientFailures(t *testing.T) {
	w := &flakyWriter{failures: 2}
	p := NewProjector(w, slog.Default())

	p.Upsert(context.Background(), Booking{RideID: "r1", RiderID: "u1", Seats: 2, Status: StatusPending})

	if w.upserts != 1 {
		t.Fatalf("expected 1 successful upsert after retries, got %d", w.upserts)
	}
}

func TestProjectorGivesUpAfterAttempts(t *testing.T) {
	w := &flakyWriter{failures: 10}
	p := NewProjector(w, slog.Default())

	// Must not panic or block; the failure is logged for reconciliation.
	p.UpdateStatus(context.Background(), "r1", "u1", StatusApproved)

	if len(w.statuses) != 0 {
		t.Fatalf("expected no successful writes, got %d", len(w.statuses))
	}
}

func TestProjectorDelete(t *testing.T) {
	w := &flakyWriter{}
	p := NewProjector(w, slog.Default())

	p.Delete(context.Background(), "r1", "u1")

	if w.deletes != 1 {
		t.Fatalf("expected 1 delete, got %d", w.deletes)
	}
}
