// README: Retrying projector keeping the booking mirror in step with rides.
package booking

import (
	"context"
	"log/slog"
	"time"

	"waypool/internal/types"
)

const (
	projectionAttempts = 3
	projectionBackoff  = 50 * time.Millisecond
)

// Writer is the subset of Store the projector needs; tests substitute an
// in-memory implementation.
type Writer interface {
	Upsert(ctx context.Context, b Booking) error
	UpdateStatus(ctx context.Context, rideID, riderID types.ID, status Status) error
	Delete(ctx context.Context, rideID, riderID types.ID) error
}

// Projector applies mirror updates after the ride aggregate has persisted.
// There is no two-phase commit across the two stores: a mirror write that
// still fails after retries leaves a recoverable inconsistency, which is
// logged for reconciliation and never rolled back.
type Projector struct {
	store Writer
	log   *slog.Logger
}

func NewProjector(store Writer, log *slog.Logger) *Projector {
	return &Projector{store: store, log: log}
}

func (p *Projector) Upsert(ctx context.Context, b Booking) {
	p.retry(ctx, "upsert", b.RideID, b.RiderID, func(ctx context.Context) error {
		return p.store.Upsert(ctx, b)
	})
}

func (p *Projector) UpdateStatus(ctx context.Context, rideID, riderID types.ID, status Status) {
	p.retry(ctx, "update_status", rideID, riderID, func(ctx context.Context) error {
		return p.store.UpdateStatus(ctx, rideID, riderID, status)
	})
}

func (p *Projector) Delete(ctx context.Context, rideID, riderID types.ID) {
	p.retry(ctx, "delete", rideID, riderID, func(ctx context.Context) error {
		return p.store.Delete(ctx, rideID, riderID)
	})
}

func (p *Projector) retry(ctx context.Context, op string, rideID, riderID types.ID, fn func(context.Context) error) {
	if p == nil || p.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	var err error
	for attempt := 0; attempt < projectionAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return
		}
		time.Sleep(projectionBackoff << attempt)
	}
	if p.log != nil {
		p.log.Error("booking mirror projection failed; needs reconciliation",
			"op", op,
			"ride", string(rideID),
			"rider", string(riderID),
			"err", err,
		)
	}
}
