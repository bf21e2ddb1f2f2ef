// README: HTTP router registration.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waypool/internal/http/handlers"
	"waypool/internal/http/middleware"
	"waypool/internal/infra"
	"waypool/internal/modules/booking"
	"waypool/internal/modules/match"
	"waypool/internal/modules/notify"
	"waypool/internal/modules/ride"
)

type RouterDeps struct {
	Rides         *ride.Service
	Matches       *match.Service
	Bookings      *booking.Store
	Notifications *notify.Store
	Verifier      infra.TokenVerifier
	Log           *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.Logging(deps.Log),
		middleware.Metrics(),
	)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	rideHandler := handlers.NewRideHandler(deps.Rides)
	api.POST("/rides", rideHandler.Publish)
	api.GET("/rides/:id", rideHandler.Get)
	api.GET("/drivers/rides", rideHandler.ListMine)
	api.POST("/rides/:id/requests", rideHandler.FileRequest)
	api.DELETE("/rides/:id/requests", rideHandler.WithdrawRequest)
	api.POST("/rides/:id/requests/:requestID/decision", rideHandler.DecideRequest)
	api.POST("/rides/:id/payment", rideHandler.ConfirmPayment)
	api.POST("/rides/:id/cancel", rideHandler.CancelParticipation)
	api.POST("/rides/:id/start", rideHandler.Start)
	api.POST("/rides/:id/complete", rideHandler.Complete)
	api.POST("/rides/:id/rate", rideHandler.Rate)

	matchHandler := handlers.NewMatchHandler(deps.Matches)
	api.GET("/matches", matchHandler.Find)

	bookingHandler := handlers.NewBookingHandler(deps.Bookings, deps.Notifications)
	api.GET("/bookings", bookingHandler.ListMine)
	api.GET("/notifications", bookingHandler.ListNotifications)
	api.POST("/notifications/:id/read", bookingHandler.MarkNotificationRead)

	return r
}
