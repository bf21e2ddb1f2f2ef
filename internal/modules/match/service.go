// README: Match engine: resolve rider points, rank open rides into tiers.
package match

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"waypool/internal/geo"
	"waypool/internal/maps"
	"waypool/internal/modules/ride"
	"waypool/internal/observability"
	"waypool/internal/types"
)

var ErrBadRequest = errors.New("pickup and drop points could not be resolved")

// RideSource is the read side of the ride store the engine scans.
type RideSource interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
	ListOpen(ctx context.Context) ([]*ride.Ride, error)
}

// GeoPrefilter narrows the candidate set to rides whose origin lies within
// the widest bucket radius before exact scoring.
type GeoPrefilter interface {
	NearbyRideIDs(ctx context.Context, origin types.Point, radiusKm float64) ([]types.ID, error)
}

type Service struct {
	rides     RideSource
	geocoder  maps.Geocoder
	prefilter GeoPrefilter
	log       *slog.Logger
}

func NewService(rides RideSource, geocoder maps.Geocoder, prefilter GeoPrefilter, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{rides: rides, geocoder: geocoder, prefilter: prefilter, log: log}
}

// Query names the rider's trip. Each point is either literal coordinates
// or a label for the geocoder; a label wins only when the point is unset.
type Query struct {
	RiderID     types.ID
	PickupLabel string
	Pickup      types.Point
	DropLabel   string
	Drop        types.Point
	Date        string // optional, YYYY-MM-DD
	Time        string // optional, HH:MM
	Seats       int
}

func (q Query) hasTimePreference() bool {
	return q.Date != "" && q.Time != ""
}

func (s *Service) FindMatches(ctx context.Context, q Query) (*Result, error) {
	if q.Seats < 1 {
		q.Seats = 1
	}

	pickup, drop, err := s.resolvePoints(ctx, q)
	if err != nil {
		return nil, err
	}

	var preferred time.Time
	if q.hasTimePreference() {
		preferred, err = time.ParseInLocation("2006-01-02 15:04", q.Date+" "+q.Time, time.UTC)
		if err != nil {
			return nil, ErrBadRequest
		}
	}

	candidates, err := s.loadCandidates(ctx, pickup)
	if err != nil {
		return nil, err
	}
	observability.MatchQueries.Inc()

	res := &Result{}
	var kept int
	for _, r := range candidates {
		if !r.IsActive || r.Status == ride.StatusCompleted || r.SeatsAvailable < q.Seats {
			continue
		}
		if r.DriverID == q.RiderID {
			continue
		}
		if q.hasTimePreference() && r.Date != q.Date {
			continue
		}

		pickupKm := geo.DistanceKm(pickup, r.Origin.Point)
		dropKm := geo.DistanceKm(drop, r.Destination.Point)
		if math.IsInf(pickupKm, 1) || math.IsInf(dropKm, 1) {
			continue
		}

		var timeDiff *float64
		if q.hasTimePreference() {
			dep, err := r.DepartureAt()
			if err != nil {
				continue
			}
			d := math.Abs(preferred.Sub(dep).Minutes())
			if d > maxTimeDiffMin {
				continue
			}
			timeDiff = &d
		}

		bucket, ok := classify(pickupKm, dropKm, timeDiff)
		if !ok {
			continue
		}
		kept++
		c := Candidate{
			Ride:        r,
			Bucket:      bucket,
			Score:       score(pickupKm, dropKm, timeDiff),
			PickupKm:    pickupKm,
			DropKm:      dropKm,
			TimeDiffMin: timeDiff,
		}
		switch bucket {
		case BucketPerfect:
			res.Perfect = append(res.Perfect, c)
		case BucketGood:
			res.Good = append(res.Good, c)
		case BucketNearby:
			res.Nearby = append(res.Nearby, c)
		}
	}
	observability.MatchCandidates.Observe(float64(kept))

	rank(res.Perfect)
	rank(res.Good)
	rank(res.Nearby)
	return res, nil
}

// resolvePoints geocodes the pickup and drop labels in parallel; both must
// succeed. Literal coordinates bypass the geocoder.
func (s *Service) resolvePoints(ctx context.Context, q Query) (types.Point, types.Point, error) {
	pickup, drop := q.Pickup, q.Drop
	var pickupErr, dropErr error

	var wg sync.WaitGroup
	if pickup.IsZero() {
		if q.PickupLabel == "" || s.geocoder == nil {
			return types.Point{}, types.Point{}, ErrBadRequest
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			var loc maps.Location
			if loc, pickupErr = s.geocoder.Resolve(ctx, q.PickupLabel); pickupErr == nil {
				pickup = loc.Point
			}
		}()
	}
	if drop.IsZero() {
		if q.DropLabel == "" || s.geocoder == nil {
			return types.Point{}, types.Point{}, ErrBadRequest
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			var loc maps.Location
			if loc, dropErr = s.geocoder.Resolve(ctx, q.DropLabel); dropErr == nil {
				drop = loc.Point
			}
		}()
	}
	wg.Wait()

	if pickupErr != nil || dropErr != nil {
		s.log.Debug("geocode failed", "pickupErr", pickupErr, "dropErr", dropErr)
		return types.Point{}, types.Point{}, ErrBadRequest
	}
	return pickup, drop, nil
}

// loadCandidates prefers the geo index scoped to the widest bucket radius
// and falls back to a full open-ride scan when the index is unavailable.
func (s *Service) loadCandidates(ctx context.Context, pickup types.Point) ([]*ride.Ride, error) {
	if s.prefilter != nil {
		ids, err := s.prefilter.NearbyRideIDs(ctx, pickup, bucketLimits[len(bucketLimits)-1].lim.pickupKm)
		if err == nil {
			out := make([]*ride.Ride, 0, len(ids))
			for _, id := range ids {
				r, err := s.rides.Get(ctx, id)
				if err != nil {
					continue
				}
				out = append(out, r)
			}
			return out, nil
		}
		s.log.Warn("geo prefilter failed, scanning open rides", "err", err)
	}
	return s.rides.ListOpen(ctx)
}

// rank orders a bucket by score, then by the smaller pickup distance, drop
// distance, and time delta.
func rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.PickupKm != b.PickupKm {
			return a.PickupKm < b.PickupKm
		}
		if a.DropKm != b.DropKm {
			return a.DropKm < b.DropKm
		}
		return timeOrZero(a.TimeDiffMin) < timeOrZero(b.TimeDiffMin)
	})
}

func timeOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
