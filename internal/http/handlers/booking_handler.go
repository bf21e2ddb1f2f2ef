// README: Rider-facing booking history and notification handlers.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"waypool/internal/http/middleware"
	"waypool/internal/modules/booking"
	"waypool/internal/modules/notify"
	"waypool/internal/types"
)

type BookingHandler struct {
	bookings      *booking.Store
	notifications *notify.Store
}

func NewBookingHandler(bookings *booking.Store, notifications *notify.Store) *BookingHandler {
	return &BookingHandler{bookings: bookings, notifications: notifications}
}

func (h *BookingHandler) ListMine(c *gin.Context) {
	out, err := h.bookings.ListByRider(c.Request.Context(), types.ID(middleware.UID(c)))
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out})
}

const notificationPageSize = 50

func (h *BookingHandler) ListNotifications(c *gin.Context) {
	out, err := h.notifications.ListByReceiver(c.Request.Context(), types.ID(middleware.UID(c)), notificationPageSize)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"notifications": out})
}

func (h *BookingHandler) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), id, types.ID(middleware.UID(c))); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}
