// README: Notification records pushed to users on booking transitions.
package notify

import (
	"time"

	"waypool/internal/types"
)

type Kind string

const (
	KindRequestFiled     Kind = "request_filed"
	KindRequestApproved  Kind = "request_approved"
	KindPaymentRequested Kind = "payment_requested"
	KindPaymentConfirmed Kind = "payment_confirmed"
	KindRequestRejected  Kind = "request_rejected"
	KindSeatCancelled    Kind = "seat_cancelled"
	KindRideStarted      Kind = "ride_started"
	KindRideCompleted    Kind = "ride_completed"
)

type Notification struct {
	ID         int64
	ReceiverID types.ID
	Kind       Kind
	Message    string
	RideID     *types.ID
	Read       bool
	CreatedAt  time.Time
}
