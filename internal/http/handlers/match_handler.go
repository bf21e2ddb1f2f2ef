// README: Match engine query handler.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"waypool/internal/http/middleware"
	"waypool/internal/modules/match"
	"waypool/internal/types"
)

type MatchHandler struct {
	matches *match.Service
}

func NewMatchHandler(svc *match.Service) *MatchHandler {
	return &MatchHandler{matches: svc}
}

// Find ranks open rides for the caller. Points arrive either as literal
// lat/lng query params or as labels for the geocoder.
func (h *MatchHandler) Find(c *gin.Context) {
	q := match.Query{
		RiderID:     types.ID(middleware.UID(c)),
		PickupLabel: c.Query("pickup"),
		DropLabel:   c.Query("drop"),
		Date:        c.Query("date"),
		Time:        c.Query("time"),
	}
	q.Pickup = pointParam(c, "pickup_lat", "pickup_lng")
	q.Drop = pointParam(c, "drop_lat", "drop_lng")
	if n, err := strconv.Atoi(c.Query("seats")); err == nil {
		q.Seats = n
	}

	res, err := h.matches.FindMatches(c.Request.Context(), q)
	if err != nil {
		writeMatchError(c, err)
		return
	}
	perfect, good, nearby := res.Counts()
	writeJSON(c, http.StatusOK, gin.H{
		"perfect": res.Perfect,
		"good":    res.Good,
		"nearby":  res.Nearby,
		"counts":  gin.H{"perfect": perfect, "good": good, "nearby": nearby},
	})
}

func pointParam(c *gin.Context, latKey, lngKey string) types.Point {
	lat, err1 := strconv.ParseFloat(c.Query(latKey), 64)
	lng, err2 := strconv.ParseFloat(c.Query(lngKey), 64)
	if err1 != nil || err2 != nil {
		return types.Point{}
	}
	return types.Point{Lat: lat, Lng: lng}
}
