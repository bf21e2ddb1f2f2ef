// README: Booking state machine: every transition touching seat inventory.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"waypool/internal/geo"
	"waypool/internal/modules/booking"
	"waypool/internal/modules/notify"
	"waypool/internal/modules/pricing"
	"waypool/internal/modules/user"
	"waypool/internal/observability"
	"waypool/internal/types"
)

var (
	ErrNotFound        = errors.New("ride or request not found")
	ErrForbidden       = errors.New("caller does not own this ride or request")
	ErrConflict        = errors.New("ride state conflict")
	ErrBadRequest      = errors.New("bad request")
	ErrAlreadyApproved = errors.New("request already approved")
	ErrAlreadyRated    = errors.New("counterpart already rated for this ride")
	ErrDriverBusy      = errors.New("driver already has a started ride")
)

// casRetries bounds how often a mutation is retried when the aggregate
// version moved underneath it before ErrConflict is surfaced to the caller.
const casRetries = 3

// Green reward coefficients: kg CO2 saved per shared km, one point per kg.
const co2KgPerKm = 0.12

type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	// Update writes the whole aggregate iff the stored version still equals
	// r.Version; on success the version is advanced.
	Update(ctx context.Context, r *Ride) (bool, error)
	// StartExclusive is Update plus, in the same transaction, the check
	// that the driver has no other started ride; returns ErrDriverBusy
	// when that check fails.
	StartExclusive(ctx context.Context, r *Ride) (bool, error)
	ListOpen(ctx context.Context) ([]*Ride, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error)
}

type Pricer interface {
	Quote(ctx context.Context, distanceKm, durationMin float64, seats int) pricing.Quote
}

type Users interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
	ApplyRating(ctx context.Context, id types.ID, rating float64) error
	CreditGreenPoints(ctx context.Context, id types.ID, points int) error
}

// Mirror is the booking-projection port. Calls happen only after the
// aggregate has persisted and never fail the operation.
type Mirror interface {
	Upsert(ctx context.Context, b booking.Booking)
	UpdateStatus(ctx context.Context, rideID, riderID types.ID, status booking.Status)
	Delete(ctx context.Context, rideID, riderID types.ID)
}

// Notifier is the fire-and-forget side channel invoked after a transition
// commits; the state machine has no dependency on delivery mechanics.
type Notifier interface {
	Notify(ctx context.Context, receiverID types.ID, kind notify.Kind, message string, rideID *types.ID)
}

// GeoIndex registers open-ride origins for match-engine prefiltering.
type GeoIndex interface {
	Add(ctx context.Context, rideID types.ID, origin types.Point) error
	Remove(ctx context.Context, rideID types.ID) error
}

type Service struct {
	store    Store
	pricing  Pricer
	users    Users
	mirror   Mirror
	notifier Notifier
	geoIndex GeoIndex
	log      *slog.Logger
}

func NewService(store Store, pricing Pricer, users Users, mirror Mirror, notifier Notifier, geoIndex GeoIndex, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		pricing:  pricing,
		users:    users,
		mirror:   mirror,
		notifier: notifier,
		geoIndex: geoIndex,
		log:      log,
	}
}

type PublishRideCommand struct {
	DriverID      types.ID
	OriginLabel   string
	Origin        types.Point
	DestLabel     string
	Destination   types.Point
	Date          string
	Time          string
	DurationHours float64
	Seats         int
}

type FileRequestCommand struct {
	RideID  types.ID
	RiderID types.ID
	Seats   int
	Addons  []Addon
}

type DecideRequestCommand struct {
	RideID    types.ID
	DriverID  types.ID
	RequestID types.ID
	Approve   bool
}

type ConfirmPaymentCommand struct {
	RideID  types.ID
	RiderID types.ID
}

type CancelParticipationCommand struct {
	RideID  types.ID
	RiderID types.ID
}

type WithdrawRequestCommand struct {
	RideID  types.ID
	RiderID types.ID
}

type RepriceCommand struct {
	RideID types.ID
}

type StartRideCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type CompleteRideCommand struct {
	RideID   types.ID
	DriverID types.ID
}

const (
	RoleDriver = "driver"
	RoleRider  = "rider"
)

type RateCommand struct {
	RideID  types.ID
	RaterID types.ID
	Rating  float64
	Role    string
	// TargetID names the rated rider when Role is driver; ignored for
	// Role rider (the target is always the ride's driver).
	TargetID types.ID
}

// PublishRide creates the aggregate, prices a seat from the route estimate,
// and registers the origin in the geo index.
func (s *Service) PublishRide(ctx context.Context, cmd PublishRideCommand) (*Ride, error) {
	if cmd.DriverID == "" || cmd.Seats < 1 || cmd.DurationHours <= 0 {
		return nil, ErrBadRequest
	}
	if cmd.Origin.IsZero() || cmd.Destination.IsZero() {
		return nil, ErrBadRequest
	}
	if _, err := time.ParseInLocation("2006-01-02 15:04", cmd.Date+" "+cmd.Time, time.UTC); err != nil {
		return nil, ErrBadRequest
	}

	distance := geo.DistanceKm(cmd.Origin, cmd.Destination)
	var price float64
	if s.pricing != nil && !math.IsInf(distance, 1) {
		price = s.pricing.Quote(ctx, distance, cmd.DurationHours*60, cmd.Seats).PerRider
	}

	r := &Ride{
		ID:             newID(),
		DriverID:       cmd.DriverID,
		Origin:         Stop{Label: cmd.OriginLabel, Point: cmd.Origin},
		Destination:    Stop{Label: cmd.DestLabel, Point: cmd.Destination},
		Date:           cmd.Date,
		Time:           cmd.Time,
		DurationHours:  cmd.DurationHours,
		SeatsAvailable: cmd.Seats,
		PricePerSeat:   price,
		IsActive:       true,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	r.RebuildIndex()

	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	observability.BookingTransitions.WithLabelValues("publish", "ok").Inc()

	if s.geoIndex != nil {
		if err := s.geoIndex.Add(ctx, r.ID, r.Origin.Point); err != nil {
			s.log.Warn("geo index add failed", "ride", string(r.ID), "err", err)
		}
	}
	return r, nil
}

// FileRequest creates a pending request and its mirror booking row.
func (s *Service) FileRequest(ctx context.Context, cmd FileRequestCommand) (*Ride, error) {
	if cmd.Seats < 1 {
		return nil, ErrBadRequest
	}

	var riderName string
	var riderRating float64
	if s.users != nil {
		u, err := s.users.Get(ctx, cmd.RiderID)
		if err != nil {
			s.log.Warn("rider lookup failed, filing without snapshot", "rider", string(cmd.RiderID), "err", err)
		} else {
			riderName = u.Name
			riderRating = u.Rating
		}
	}

	var filed Request
	r, err := s.mutate(ctx, "file_request", cmd.RideID, func(r *Ride) error {
		if !r.IsActive {
			return ErrConflict
		}
		if r.DriverID == cmd.RiderID {
			return ErrConflict
		}
		if existing := r.RequestByRider(cmd.RiderID); existing != nil && existing.Status != RequestRejected {
			return ErrConflict
		}
		if cmd.Seats > r.SeatsAvailable {
			return ErrConflict
		}

		charges := ChargesFor(cmd.Addons)
		filed = Request{
			ID:           newID(),
			RiderID:      cmd.RiderID,
			RiderName:    riderName,
			RiderRating:  riderRating,
			Seats:        cmd.Seats,
			Addons:       cmd.Addons,
			AddonCharges: charges,
			FinalCost:    round2(r.PricePerSeat*float64(cmd.Seats) + charges),
			Status:       RequestPending,
			CreatedAt:    time.Now().UTC(),
		}
		r.putRequest(filed)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.project(ctx, booking.Booking{
		RideID:     r.ID,
		RiderID:    cmd.RiderID,
		Seats:      filed.Seats,
		TotalPrice: filed.FinalCost,
		Status:     booking.StatusPending,
	})
	s.notify(ctx, r.DriverID, notify.KindRequestFiled,
		fmt.Sprintf("%s requested %d seat(s) on your ride", riderName, filed.Seats), r.ID)
	return r, nil
}

// DecideRequest approves or rejects a pending request. Approval on a paid
// ride lands on awaiting_payment and reserves nothing; seats move only when
// the request reaches approved.
func (s *Service) DecideRequest(ctx context.Context, cmd DecideRequestCommand) (*Ride, error) {
	var (
		riderID    types.ID
		newStatus  RequestStatus
		finalCost  float64
		seatsAsked int
	)
	r, err := s.mutate(ctx, "decide_request", cmd.RideID, func(r *Ride) error {
		if r.DriverID != cmd.DriverID {
			return ErrForbidden
		}
		req := r.RequestByID(cmd.RequestID)
		if req == nil {
			return ErrNotFound
		}
		riderID = req.RiderID
		seatsAsked = req.Seats
		finalCost = req.FinalCost

		if cmd.Approve {
			switch req.Status {
			case RequestApproved:
				return ErrAlreadyApproved
			case RequestPending:
				// decided below
			default:
				return ErrConflict
			}
			if r.SeatsAvailable < req.Seats {
				return ErrConflict
			}
			if r.PricePerSeat > 0 {
				req.Status = RequestAwaitingPayment
			} else {
				s.approve(r, req)
			}
			newStatus = req.Status
			return nil
		}

		if req.Status == RequestRejected {
			return ErrConflict
		}
		if req.Status == RequestApproved {
			r.SeatsAvailable += req.Seats
			r.removeParticipant(req.RiderID)
		}
		req.Status = RequestRejected
		newStatus = RequestRejected
		if !r.hasApprovedRequest() && r.allRequestsRejected() && CanTransition(r.Status, StatusRejected) {
			r.Status = StatusRejected
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch newStatus {
	case RequestAwaitingPayment:
		s.projectStatus(ctx, r.ID, riderID, booking.StatusAwaitingPayment)
		s.notify(ctx, riderID, notify.KindPaymentRequested,
			fmt.Sprintf("Your request was approved; pay %.2f to confirm %d seat(s)", finalCost, seatsAsked), r.ID)
	case RequestApproved:
		s.projectStatus(ctx, r.ID, riderID, booking.StatusApproved)
		s.notify(ctx, riderID, notify.KindRequestApproved,
			"Your request was approved and your seats are confirmed", r.ID)
	case RequestRejected:
		s.projectStatus(ctx, r.ID, riderID, booking.StatusRejected)
		s.notify(ctx, riderID, notify.KindRequestRejected,
			"Your request to join the ride was rejected", r.ID)
	}
	return r, nil
}

// ConfirmPayment moves an awaiting_payment request to approved. Seats are
// re-validated: someone else may have booked while this rider was paying,
// in which case the rider gets ErrConflict and should retry another ride.
func (s *Service) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (*Ride, error) {
	r, err := s.mutate(ctx, "confirm_payment", cmd.RideID, func(r *Ride) error {
		if !r.IsActive || (r.Status != StatusPending && r.Status != StatusAccepted) {
			return ErrConflict
		}
		req := r.RequestByRider(cmd.RiderID)
		if req == nil {
			return ErrNotFound
		}
		if req.Status != RequestAwaitingPayment {
			return ErrConflict
		}
		if r.SeatsAvailable < req.Seats {
			return ErrConflict
		}
		s.approve(r, req)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.projectStatus(ctx, r.ID, cmd.RiderID, booking.StatusApproved)
	s.notify(ctx, r.DriverID, notify.KindPaymentConfirmed, "A rider completed payment for your ride", r.ID)
	s.notify(ctx, cmd.RiderID, notify.KindRequestApproved, "Payment received; your seats are confirmed", r.ID)
	return r, nil
}

// approve flips a request to approved and moves inventory in lockstep.
func (s *Service) approve(r *Ride, req *Request) {
	req.Status = RequestApproved
	r.SeatsAvailable -= req.Seats
	r.addParticipant(Participant{
		RiderID:   req.RiderID,
		Name:      req.RiderName,
		Seats:     req.Seats,
		FinalCost: req.FinalCost,
		Status:    ParticipantConfirmed,
	})
	if r.Status == StatusPending {
		r.Status = StatusAccepted
	}
}

// CancelParticipation releases a confirmed seat: the participant entry and
// the request are removed and the inventory restored.
func (s *Service) CancelParticipation(ctx context.Context, cmd CancelParticipationCommand) (*Ride, error) {
	r, err := s.mutate(ctx, "cancel_participation", cmd.RideID, func(r *Ride) error {
		i := r.participantIndex(cmd.RiderID)
		if i < 0 {
			return ErrNotFound
		}
		r.SeatsAvailable += r.Participants[i].Seats
		r.removeParticipant(cmd.RiderID)
		r.removeRequest(cmd.RiderID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.projectStatus(ctx, r.ID, cmd.RiderID, booking.StatusCancelled)
	s.notify(ctx, r.DriverID, notify.KindSeatCancelled, "A rider cancelled their seats on your ride", r.ID)
	return r, nil
}

// WithdrawRequest deletes a pending or rejected request outright; approved
// requests must go through CancelParticipation instead.
func (s *Service) WithdrawRequest(ctx context.Context, cmd WithdrawRequestCommand) (*Ride, error) {
	r, err := s.mutate(ctx, "withdraw_request", cmd.RideID, func(r *Ride) error {
		req := r.RequestByRider(cmd.RiderID)
		if req == nil {
			return ErrNotFound
		}
		if req.Status != RequestPending && req.Status != RequestRejected {
			return ErrConflict
		}
		r.removeRequest(cmd.RiderID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deleteProjection(ctx, r.ID, cmd.RiderID)
	return r, nil
}

// Reprice re-quotes the per-seat price from the current rates. Invoked by
// the recalculation job, not by riders or drivers. Only open rides are
// repriced; requests already filed keep the cost they were quoted at.
func (s *Service) Reprice(ctx context.Context, cmd RepriceCommand) (*Ride, error) {
	if s.pricing == nil {
		return nil, ErrConflict
	}
	return s.mutate(ctx, "reprice", cmd.RideID, func(r *Ride) error {
		if !r.IsActive || (r.Status != StatusPending && r.Status != StatusAccepted) {
			return ErrConflict
		}
		distance := geo.DistanceKm(r.Origin.Point, r.Destination.Point)
		if math.IsInf(distance, 1) {
			return ErrConflict
		}
		r.PricePerSeat = s.pricing.Quote(ctx, distance, r.DurationHours*60, r.TotalCapacity()).PerRider
		return nil
	})
}

// StartRide begins the trip. The one-started-ride-per-driver rule is
// enforced by the store inside the same transaction as the version check.
func (s *Service) StartRide(ctx context.Context, cmd StartRideCommand) (*Ride, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		r, err := s.store.Get(ctx, cmd.RideID)
		if err != nil {
			return nil, err
		}
		if r.DriverID != cmd.DriverID {
			return nil, ErrForbidden
		}
		if !CanTransition(r.Status, StatusStarted) {
			return nil, ErrConflict
		}
		now := time.Now().UTC()
		r.Status = StatusStarted
		r.StartedAt = &now

		ok, err := s.store.StartExclusive(ctx, r)
		if errors.Is(err, ErrDriverBusy) {
			observability.BookingTransitions.WithLabelValues("start_ride", "conflict").Inc()
			return nil, ErrConflict
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		observability.BookingTransitions.WithLabelValues("start_ride", "ok").Inc()

		for _, p := range r.Participants {
			s.notify(ctx, p.RiderID, notify.KindRideStarted, "Your ride has started", r.ID)
		}
		return r, nil
	}
	return nil, ErrConflict
}

// CompleteRide finishes the trip, closes bookings, and credits the green
// reward to the driver and every participant. The status CAS guarantees the
// credit happens exactly once.
func (s *Service) CompleteRide(ctx context.Context, cmd CompleteRideCommand) (*Ride, error) {
	r, err := s.mutate(ctx, "complete_ride", cmd.RideID, func(r *Ride) error {
		if r.DriverID != cmd.DriverID {
			return ErrForbidden
		}
		if !CanTransition(r.Status, StatusCompleted) {
			return ErrConflict
		}
		now := time.Now().UTC()
		r.Status = StatusCompleted
		r.CompletedAt = &now
		r.IsActive = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.geoIndex != nil {
		if err := s.geoIndex.Remove(ctx, r.ID); err != nil {
			s.log.Warn("geo index remove failed", "ride", string(r.ID), "err", err)
		}
	}

	if points := GreenPoints(geo.DistanceKm(r.Origin.Point, r.Destination.Point)); points > 0 && s.users != nil {
		s.credit(ctx, r.DriverID, points)
		for _, p := range r.Participants {
			s.credit(ctx, p.RiderID, points)
		}
	}

	for _, p := range r.Participants {
		s.notify(ctx, p.RiderID, notify.KindRideCompleted, "Your ride is complete. Thanks for pooling!", r.ID)
	}
	return r, nil
}

// GreenPoints converts trip distance into the CO2-saved reward.
func GreenPoints(distanceKm float64) int {
	if math.IsInf(distanceKm, 1) || distanceKm <= 0 {
		return 0
	}
	return int(math.Round(distanceKm * co2KgPerKm))
}

// RateCounterpart records a one-shot rating between driver and rider after
// completion. The once-only flags live on the request so the CAS write and
// the guard are atomic.
func (s *Service) RateCounterpart(ctx context.Context, cmd RateCommand) (*Ride, error) {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return nil, ErrBadRequest
	}
	if cmd.Role != RoleDriver && cmd.Role != RoleRider {
		return nil, ErrBadRequest
	}

	var target types.ID
	r, err := s.mutate(ctx, "rate", cmd.RideID, func(r *Ride) error {
		if r.Status != StatusCompleted {
			return ErrConflict
		}
		switch cmd.Role {
		case RoleDriver:
			if r.DriverID != cmd.RaterID {
				return ErrForbidden
			}
			req := r.RequestByRider(cmd.TargetID)
			if req == nil || req.Status != RequestApproved {
				return ErrNotFound
			}
			if req.DriverRated {
				return ErrAlreadyRated
			}
			req.DriverRated = true
			target = cmd.TargetID
		case RoleRider:
			req := r.RequestByRider(cmd.RaterID)
			if req == nil || req.Status != RequestApproved {
				return ErrForbidden
			}
			if req.RiderRatedDriver {
				return ErrAlreadyRated
			}
			req.RiderRatedDriver = true
			target = r.DriverID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.users != nil {
		if err := s.users.ApplyRating(ctx, target, cmd.Rating); err != nil {
			s.log.Error("rating apply failed; flag already set, needs reconciliation",
				"ride", string(r.ID), "target", string(target), "err", err)
		}
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	return s.store.ListByDriver(ctx, driverID)
}

// mutate runs the load -> validate -> copy-mutate -> compare-and-swap loop.
// fn sees a fresh aggregate on every attempt, so all preconditions are
// re-validated after a lost race; no partial mutation is ever observable.
func (s *Service) mutate(ctx context.Context, op string, id types.ID, fn func(r *Ride) error) (*Ride, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		r, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(r); err != nil {
			observability.BookingTransitions.WithLabelValues(op, outcome(err)).Inc()
			return nil, err
		}
		ok, err := s.store.Update(ctx, r)
		if err != nil {
			return nil, err
		}
		if ok {
			observability.BookingTransitions.WithLabelValues(op, "ok").Inc()
			return r, nil
		}
	}
	observability.BookingTransitions.WithLabelValues(op, "cas_exhausted").Inc()
	return nil, ErrConflict
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrAlreadyRated):
		return "idempotent_reject"
	default:
		return "conflict"
	}
}

func (s *Service) project(ctx context.Context, b booking.Booking) {
	if s.mirror != nil {
		s.mirror.Upsert(ctx, b)
	}
}

func (s *Service) projectStatus(ctx context.Context, rideID, riderID types.ID, status booking.Status) {
	if s.mirror != nil {
		s.mirror.UpdateStatus(ctx, rideID, riderID, status)
	}
}

func (s *Service) deleteProjection(ctx context.Context, rideID, riderID types.ID) {
	if s.mirror != nil {
		s.mirror.Delete(ctx, rideID, riderID)
	}
}

func (s *Service) notify(ctx context.Context, receiver types.ID, kind notify.Kind, msg string, rideID types.ID) {
	if s.notifier != nil {
		id := rideID
		s.notifier.Notify(ctx, receiver, kind, msg, &id)
	}
}

func (s *Service) credit(ctx context.Context, id types.ID, points int) {
	if err := s.users.CreditGreenPoints(ctx, id, points); err != nil {
		s.log.Warn("green point credit failed", "user", string(id), "err", err)
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
