// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"waypool/internal/config"
	httptransport "waypool/internal/http"
	"waypool/internal/infra"
	"waypool/internal/maps"
	"waypool/internal/modules/booking"
	"waypool/internal/modules/match"
	"waypool/internal/modules/notify"
	"waypool/internal/modules/pricing"
	"waypool/internal/modules/ride"
	"waypool/internal/modules/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.Level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Error("WAYPOOL_FIREBASE_PROJECT_ID is required")
		os.Exit(1)
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Error("firebase init failed", "err", err)
		os.Exit(1)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var geocoder maps.Geocoder
	if cfg.Maps.APIKey != "" {
		geocoder, err = maps.NewGoogleGeocoder(cfg.Maps.APIKey)
		if err != nil {
			log.Error("maps client init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("WAYPOOL_MAPS_API_KEY unset; label resolution disabled")
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool))
	userStore := user.NewStore(dbPool)
	notifyStore := notify.NewStore(dbPool)
	notifySvc := notify.NewService(notifyStore, log)
	bookingStore := booking.NewStore(dbPool)
	projector := booking.NewProjector(bookingStore, log)
	geoIndex := match.NewRedisGeoIndex(redisClient)

	rideStore := ride.NewPgStore(dbPool)
	rideSvc := ride.NewService(rideStore, pricingSvc, userStore, projector, notifySvc, geoIndex, log)
	matchSvc := match.NewService(rideStore, geocoder, geoIndex, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:         rideSvc,
		Matches:       matchSvc,
		Bookings:      bookingStore,
		Notifications: notifyStore,
		Verifier:      verifier,
		Log:           log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
