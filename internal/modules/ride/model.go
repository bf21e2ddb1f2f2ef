// README: Ride aggregate, embedded request/participant collections, status tables.
package ride

import (
	"time"

	"waypool/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

// AllowedTransitions encodes the forward-only ride lifecycle.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAccepted, StatusRejected, StatusStarted},
	StatusAccepted: {StatusRejected, StatusStarted},
	StatusStarted:  {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

type RequestStatus string

// Request approval is an explicit four-state machine: paid rides go
// pending -> awaiting_payment -> approved, free rides skip straight to
// approved. "approved" always means a confirmed seat.
const (
	RequestPending         RequestStatus = "pending"
	RequestAwaitingPayment RequestStatus = "awaiting_payment"
	RequestApproved        RequestStatus = "approved"
	RequestRejected        RequestStatus = "rejected"
)

type Addon string

const (
	AddonExtraLuggage Addon = "extra_luggage"
	AddonPet          Addon = "pet"
	AddonChildSeat    Addon = "child_seat"
)

// addonCharges are flat surcharges billed on top of price x seats.
var addonCharges = map[Addon]float64{
	AddonExtraLuggage: 15,
	AddonPet:          20,
	AddonChildSeat:    10,
}

// ChargesFor sums the surcharges of the known addons; unknown flags are
// ignored rather than rejected.
func ChargesFor(addons []Addon) float64 {
	var sum float64
	for _, a := range addons {
		sum += addonCharges[a]
	}
	return sum
}

type Request struct {
	ID               types.ID      `json:"id"`
	RiderID          types.ID      `json:"riderId"`
	RiderName        string        `json:"riderName"`
	RiderRating      float64       `json:"riderRating"`
	Seats            int           `json:"seats"`
	Addons           []Addon       `json:"addons,omitempty"`
	AddonCharges     float64       `json:"addonCharges"`
	FinalCost        float64       `json:"finalCost"`
	Status           RequestStatus `json:"status"`
	DriverRated      bool          `json:"driverRated"`
	RiderRatedDriver bool          `json:"riderRatedDriver"`
	CreatedAt        time.Time     `json:"createdAt"`
}

type Participant struct {
	RiderID   types.ID `json:"riderId"`
	Name      string   `json:"name"`
	Seats     int      `json:"seats"`
	FinalCost float64  `json:"finalCost"`
	Status    string   `json:"status"`
}

// ParticipantConfirmed is the informational status carried by every entry
// in the participants collection.
const ParticipantConfirmed = "confirmed"

type Stop struct {
	Label string      `json:"label"`
	Point types.Point `json:"point"`
}

// Ride is the aggregate root. Total seat capacity is never stored: it is
// derived as SeatsAvailable + sum of participant seats, so every seat
// mutation must move the counter and the participants collection in
// lockstep. Version backs optimistic concurrency at the store.
type Ride struct {
	ID            types.ID   `json:"id"`
	DriverID      types.ID   `json:"driverId"`
	Origin        Stop       `json:"origin"`
	Destination   Stop       `json:"destination"`
	Date          string     `json:"date"` // YYYY-MM-DD
	Time          string     `json:"time"` // HH:MM, 24h
	DurationHours float64    `json:"durationHours"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`

	SeatsAvailable int     `json:"seatsAvailable"`
	PricePerSeat   float64 `json:"pricePerSeat"`
	IsActive       bool    `json:"isActive"`
	Status         Status  `json:"status"`

	Requests     []Request     `json:"requests"`
	Participants []Participant `json:"participants"`

	Version   int       `json:"-"`
	CreatedAt time.Time `json:"createdAt"`

	// riderIdx maps rider -> index into Requests. The aggregate keeps at
	// most one request entry per rider, so duplicate detection is O(1).
	riderIdx map[types.ID]int
}

// RebuildIndex restores the rider index after a load or clone.
func (r *Ride) RebuildIndex() {
	r.riderIdx = make(map[types.ID]int, len(r.Requests))
	for i := range r.Requests {
		r.riderIdx[r.Requests[i].RiderID] = i
	}
}

// RequestByRider returns the rider's request entry, rejected or not.
func (r *Ride) RequestByRider(riderID types.ID) *Request {
	if r.riderIdx == nil {
		r.RebuildIndex()
	}
	i, ok := r.riderIdx[riderID]
	if !ok {
		return nil
	}
	return &r.Requests[i]
}

func (r *Ride) RequestByID(id types.ID) *Request {
	for i := range r.Requests {
		if r.Requests[i].ID == id {
			return &r.Requests[i]
		}
	}
	return nil
}

// putRequest inserts the request, replacing any previous (rejected) entry
// for the same rider so the one-entry-per-rider invariant holds.
func (r *Ride) putRequest(req Request) {
	if r.riderIdx == nil {
		r.RebuildIndex()
	}
	if i, ok := r.riderIdx[req.RiderID]; ok {
		r.Requests[i] = req
		return
	}
	r.Requests = append(r.Requests, req)
	r.riderIdx[req.RiderID] = len(r.Requests) - 1
}

func (r *Ride) removeRequest(riderID types.ID) {
	if r.riderIdx == nil {
		r.RebuildIndex()
	}
	i, ok := r.riderIdx[riderID]
	if !ok {
		return
	}
	r.Requests = append(r.Requests[:i], r.Requests[i+1:]...)
	r.RebuildIndex()
}

func (r *Ride) participantIndex(riderID types.ID) int {
	for i := range r.Participants {
		if r.Participants[i].RiderID == riderID {
			return i
		}
	}
	return -1
}

// addParticipant is idempotent: a rider already holding a seat entry is
// not inserted twice.
func (r *Ride) addParticipant(p Participant) {
	if r.participantIndex(p.RiderID) >= 0 {
		return
	}
	r.Participants = append(r.Participants, p)
}

func (r *Ride) removeParticipant(riderID types.ID) {
	i := r.participantIndex(riderID)
	if i < 0 {
		return
	}
	r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
}

// TotalCapacity derives the ride's fixed seat count from current state.
func (r *Ride) TotalCapacity() int {
	total := r.SeatsAvailable
	for i := range r.Participants {
		total += r.Participants[i].Seats
	}
	return total
}

func (r *Ride) hasApprovedRequest() bool {
	for i := range r.Requests {
		if r.Requests[i].Status == RequestApproved {
			return true
		}
	}
	return false
}

func (r *Ride) allRequestsRejected() bool {
	for i := range r.Requests {
		if r.Requests[i].Status != RequestRejected {
			return false
		}
	}
	return true
}

// DepartureAt parses the scheduled date and time as UTC.
func (r *Ride) DepartureAt() (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", r.Date+" "+r.Time, time.UTC)
}

// Clone deep-copies the aggregate so callers can mutate a working copy and
// compare-and-swap it back.
func (r *Ride) Clone() *Ride {
	cp := *r
	cp.Requests = make([]Request, len(r.Requests))
	copy(cp.Requests, r.Requests)
	for i := range cp.Requests {
		if len(r.Requests[i].Addons) > 0 {
			cp.Requests[i].Addons = append([]Addon(nil), r.Requests[i].Addons...)
		}
	}
	cp.Participants = make([]Participant, len(r.Participants))
	copy(cp.Participants, r.Participants)
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	cp.RebuildIndex()
	return &cp
}
