// README: Booking mirror: the rider-facing projection of a ride request.
package booking

import (
	"time"

	"waypool/internal/types"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusCancelled       Status = "cancelled"
)

// Booking is a read-model convenience, one row per (ride, rider). The ride
// aggregate stays authoritative; this record only feeds the rider's own
// booking history and must never drive seat math.
type Booking struct {
	RideID     types.ID
	RiderID    types.ID
	Seats      int
	TotalPrice float64
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
