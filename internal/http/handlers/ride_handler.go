// README: Ride handlers: publish, request, decide, pay, cancel, start, complete, rate.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"waypool/internal/http/middleware"
	"waypool/internal/modules/ride"
	"waypool/internal/types"
)

type RideHandler struct {
	rides *ride.Service
}

func NewRideHandler(svc *ride.Service) *RideHandler {
	return &RideHandler{rides: svc}
}

// rideResponse is the public ride shape: the aggregate plus its derived
// total capacity.
type rideResponse struct {
	*ride.Ride
	TotalCapacity int `json:"totalCapacity"`
}

func rideJSON(r *ride.Ride) rideResponse {
	return rideResponse{Ride: r, TotalCapacity: r.TotalCapacity()}
}

type publishRideReq struct {
	OriginLabel   string  `json:"origin_label"`
	OriginLat     float64 `json:"origin_lat"`
	OriginLng     float64 `json:"origin_lng"`
	DestLabel     string  `json:"dest_label"`
	DestLat       float64 `json:"dest_lat"`
	DestLng       float64 `json:"dest_lng"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	DurationHours float64 `json:"duration_hours"`
	Seats         int     `json:"seats"`
}

func (h *RideHandler) Publish(c *gin.Context) {
	var req publishRideReq
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.PublishRide(c.Request.Context(), ride.PublishRideCommand{
		DriverID:      types.ID(middleware.UID(c)),
		OriginLabel:   req.OriginLabel,
		Origin:        types.Point{Lat: req.OriginLat, Lng: req.OriginLng},
		DestLabel:     req.DestLabel,
		Destination:   types.Point{Lat: req.DestLat, Lng: req.DestLng},
		Date:          req.Date,
		Time:          req.Time,
		DurationHours: req.DurationHours,
		Seats:         req.Seats,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rideJSON(r))
}

func (h *RideHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

func (h *RideHandler) ListMine(c *gin.Context) {
	rides, err := h.rides.ListByDriver(c.Request.Context(), types.ID(middleware.UID(c)))
	if err != nil {
		writeRideError(c, err)
		return
	}
	out := make([]rideResponse, len(rides))
	for i, r := range rides {
		out[i] = rideJSON(r)
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

type fileRequestReq struct {
	Seats  int      `json:"seats"`
	Addons []string `json:"addons"`
}

func (h *RideHandler) FileRequest(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req fileRequestReq
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	addons := make([]ride.Addon, len(req.Addons))
	for i, a := range req.Addons {
		addons[i] = ride.Addon(a)
	}
	r, err := h.rides.FileRequest(c.Request.Context(), ride.FileRequestCommand{
		RideID:  types.ID(id),
		RiderID: types.ID(middleware.UID(c)),
		Seats:   req.Seats,
		Addons:  addons,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, rideJSON(r))
}

type decideRequestReq struct {
	Approve bool `json:"approve"`
}

func (h *RideHandler) DecideRequest(c *gin.Context) {
	id, reqID := c.Param("id"), c.Param("requestID")
	if !isValidID(id) || !isValidID(reqID) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return
	}
	var req decideRequestReq
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.DecideRequest(c.Request.Context(), ride.DecideRequestCommand{
		RideID:    types.ID(id),
		DriverID:  types.ID(middleware.UID(c)),
		RequestID: types.ID(reqID),
		Approve:   req.Approve,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

func (h *RideHandler) ConfirmPayment(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.ConfirmPayment(c.Request.Context(), ride.ConfirmPaymentCommand{
		RideID:  types.ID(id),
		RiderID: types.ID(middleware.UID(c)),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

func (h *RideHandler) CancelParticipation(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.CancelParticipation(c.Request.Context(), ride.CancelParticipationCommand{
		RideID:  types.ID(id),
		RiderID: types.ID(middleware.UID(c)),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

func (h *RideHandler) WithdrawRequest(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.WithdrawRequest(c.Request.Context(), ride.WithdrawRequestCommand{
		RideID:  types.ID(id),
		RiderID: types.ID(middleware.UID(c)),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

func (h *RideHandler) Start(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.StartRide(c.Request.Context(), ride.StartRideCommand{
		RideID:   types.ID(id),
		DriverID: types.ID(middleware.UID(c)),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

func (h *RideHandler) Complete(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	r, err := h.rides.CompleteRide(c.Request.Context(), ride.CompleteRideCommand{
		RideID:   types.ID(id),
		DriverID: types.ID(middleware.UID(c)),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}

type rateReq struct {
	Rating   float64 `json:"rating"`
	Role     string  `json:"role"`
	TargetID string  `json:"target_id"`
}

func (h *RideHandler) Rate(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid ride id")
		return
	}
	var req rateReq
	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.RateCounterpart(c.Request.Context(), ride.RateCommand{
		RideID:   types.ID(id),
		RaterID:  types.ID(middleware.UID(c)),
		Rating:   req.Rating,
		Role:     req.Role,
		TargetID: types.ID(req.TargetID),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rideJSON(r))
}
