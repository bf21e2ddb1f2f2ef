// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"waypool/internal/modules/match"
	"waypool/internal/modules/ride"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID ensures IDs are hex and at most 32 chars (matches the ID generator).
func isValidID(v string) bool {
	if v == "" || len(v) > 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrConflict),
		errors.Is(err, ride.ErrAlreadyApproved),
		errors.Is(err, ride.ErrAlreadyRated),
		errors.Is(err, ride.ErrDriverBusy):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeMatchError(c *gin.Context, err error) {
	if errors.Is(err, match.ErrBadRequest) {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	writeError(c, http.StatusInternalServerError, "internal error")
}
