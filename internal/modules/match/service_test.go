package match

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"waypool/internal/maps"
	"waypool/internal/modules/ride"
	"waypool/internal/types"
)

// latDegPerKm converts a north-south offset in km to degrees of latitude.
const latDegPerKm = 1.0 / 111.1949

type stubRides struct {
	rides map[types.ID]*ride.Ride
}

func (s *stubRides) Get(_ context.Context, id types.ID) (*ride.Ride, error) {
	r, ok := s.rides[id]
	if !ok {
		return nil, ride.ErrNotFound
	}
	return r, nil
}

func (s *stubRides) ListOpen(_ context.Context) ([]*ride.Ride, error) {
	var out []*ride.Ride
	for _, r := range s.rides {
		if r.IsActive && r.Status != ride.StatusCompleted && r.SeatsAvailable >= 1 {
			out = append(out, r)
		}
	}
	return out, nil
}

type stubGeocoder struct {
	points map[string]types.Point
}

func (g *stubGeocoder) Resolve(_ context.Context, label string) (maps.Location, error) {
	p, ok := g.points[label]
	if !ok {
		return maps.Location{}, maps.ErrNotFound
	}
	return maps.Location{Point: p, DisplayName: label}, nil
}

type stubPrefilter struct {
	ids []types.ID
	err error
}

func (p *stubPrefilter) NearbyRideIDs(_ context.Context, _ types.Point, _ float64) ([]types.ID, error) {
	return p.ids, p.err
}

// The reference route runs due north from (10,10): origin to destination is
// about 111 km, so offsets in km translate directly to latitude degrees.
var (
	origin = types.Point{Lat: 10, Lng: 10}
	dest   = types.Point{Lat: 11, Lng: 10}
)

func northOf(p types.Point, km float64) types.Point {
	return types.Point{Lat: p.Lat + km*latDegPerKm, Lng: p.Lng}
}

func testRide(id types.ID, seats int) *ride.Ride {
	return &ride.Ride{
		ID:             id,
		DriverID:       "driver-1",
		Origin:         ride.Stop{Label: "Old Town", Point: origin},
		Destination:    ride.Stop{Label: "Harbor", Point: dest},
		Date:           "2026-09-20",
		Time:           "09:00",
		DurationHours:  1.5,
		SeatsAvailable: seats,
		IsActive:       true,
		Status:         ride.StatusPending,
	}
}

func newMatchService(rides ...*ride.Ride) (*Service, *stubRides) {
	src := &stubRides{rides: make(map[types.ID]*ride.Ride)}
	for _, r := range rides {
		src.rides[r.ID] = r
	}
	return NewService(src, nil, nil, slog.Default()), src
}

func findOne(t *testing.T, svc *Service, q Query) *Result {
	t.Helper()
	res, err := svc.FindMatches(context.Background(), q)
	if err != nil {
		t.Fatalf("find matches: %v", err)
	}
	return res
}

func TestBucketClassification(t *testing.T) {
	svc, _ := newMatchService(testRide("ride-1", 3))

	cases := []struct {
		name     string
		pickupKm float64
		dropKm   float64
		time     string
		bucket   Bucket
		excluded bool
	}{
		{"perfect", 4, 3, "09:30", BucketPerfect, false},
		{"good", 7, 7, "10:20", BucketGood, false},
		{"nearby", 14, 14, "10:50", BucketNearby, false},
		{"pickup out of range", 20, 3, "09:30", "", true},
		{"time out of range", 4, 3, "11:10", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := findOne(t, svc, Query{
				RiderID: "rider-1",
				Pickup:  northOf(origin, tc.pickupKm),
				Drop:    northOf(dest, tc.dropKm),
				Date:    "2026-09-20",
				Time:    tc.time,
				Seats:   1,
			})
			p, g, n := res.Counts()
			if tc.excluded {
				if p+g+n != 0 {
					t.Fatalf("expected exclusion, got %d/%d/%d", p, g, n)
				}
				return
			}
			var got []Candidate
			switch tc.bucket {
			case BucketPerfect:
				got = res.Perfect
			case BucketGood:
				got = res.Good
			case BucketNearby:
				got = res.Nearby
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 candidate in %s, got %d/%d/%d", tc.bucket, p, g, n)
			}
			if got[0].Bucket != tc.bucket {
				t.Fatalf("candidate tagged %s, expected %s", got[0].Bucket, tc.bucket)
			}
		})
	}
}

func TestNoTimePreferenceSatisfiesEveryTier(t *testing.T) {
	svc, _ := newMatchService(testRide("ride-1", 3))

	res := findOne(t, svc, Query{
		RiderID: "rider-1",
		Pickup:  northOf(origin, 4),
		Drop:    northOf(dest, 3),
		Seats:   1,
	})
	if len(res.Perfect) != 1 {
		t.Fatalf("expected perfect match without time preference, got %+v", res)
	}
	if res.Perfect[0].TimeDiffMin != nil {
		t.Fatalf("time diff should be absent without a preference")
	}
}

func TestRankingPrefersCloserPickup(t *testing.T) {
	near := testRide("ride-near", 3)
	far := testRide("ride-far", 3)
	far.Origin.Point = northOf(origin, 3) // 3 km further from the rider
	svc, _ := newMatchService(near, far)

	res := findOne(t, svc, Query{
		RiderID: "rider-1",
		Pickup:  origin,
		Drop:    dest,
		Seats:   1,
	})
	if len(res.Perfect) != 2 {
		t.Fatalf("expected both rides in perfect, got %d", len(res.Perfect))
	}
	if res.Perfect[0].Ride.ID != "ride-near" {
		t.Fatalf("closer pickup should rank first, got %s", res.Perfect[0].Ride.ID)
	}
	if res.Perfect[0].Score <= res.Perfect[1].Score {
		t.Fatalf("scores not descending: %v then %v", res.Perfect[0].Score, res.Perfect[1].Score)
	}
}

func TestFiltersSeatOwnershipAndDate(t *testing.T) {
	full := testRide("ride-full", 1)
	otherDay := testRide("ride-other-day", 3)
	otherDay.Date = "2026-09-21"
	own := testRide("ride-own", 3)
	own.DriverID = "rider-1"
	svc, _ := newMatchService(full, otherDay, own)

	res := findOne(t, svc, Query{
		RiderID: "rider-1",
		Pickup:  origin,
		Drop:    dest,
		Date:    "2026-09-20",
		Time:    "09:00",
		Seats:   2,
	})
	p, g, n := res.Counts()
	if p+g+n != 0 {
		t.Fatalf("expected everything filtered out, got %d/%d/%d", p, g, n)
	}

	// Without the time preference the other-day ride qualifies.
	res = findOne(t, svc, Query{RiderID: "rider-1", Pickup: origin, Drop: dest, Seats: 2})
	if len(res.Perfect) != 1 || res.Perfect[0].Ride.ID != "ride-other-day" {
		t.Fatalf("expected only the other-day ride, got %+v", res)
	}
}

func TestGeocoderResolution(t *testing.T) {
	src := &stubRides{rides: map[types.ID]*ride.Ride{"ride-1": testRide("ride-1", 3)}}
	gc := &stubGeocoder{points: map[string]types.Point{
		"Old Town": northOf(origin, 1),
		"Harbor":   northOf(dest, 1),
	}}
	svc := NewService(src, gc, nil, slog.Default())

	res := findOne(t, svc, Query{
		RiderID:     "rider-1",
		PickupLabel: "Old Town",
		DropLabel:   "Harbor",
		Seats:       1,
	})
	if len(res.Perfect) != 1 {
		t.Fatalf("expected a perfect match via labels, got %+v", res)
	}

	if _, err := svc.FindMatches(context.Background(), Query{
		RiderID:     "rider-1",
		PickupLabel: "Nowhere",
		DropLabel:   "Harbor",
	}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unresolvable label: expected ErrBadRequest, got %v", err)
	}

	if _, err := svc.FindMatches(context.Background(), Query{RiderID: "rider-1"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("no points at all: expected ErrBadRequest, got %v", err)
	}
}

func TestPrefilterNarrowsAndFallsBack(t *testing.T) {
	inRange := testRide("ride-1", 3)
	alsoOpen := testRide("ride-2", 3)
	src := &stubRides{rides: map[types.ID]*ride.Ride{"ride-1": inRange, "ride-2": alsoOpen}}

	svc := NewService(src, nil, &stubPrefilter{ids: []types.ID{"ride-1"}}, slog.Default())
	res := findOne(t, svc, Query{RiderID: "rider-1", Pickup: origin, Drop: dest, Seats: 1})
	if len(res.Perfect) != 1 || res.Perfect[0].Ride.ID != "ride-1" {
		t.Fatalf("prefilter should limit candidates to ride-1, got %+v", res)
	}

	svc = NewService(src, nil, &stubPrefilter{err: errors.New("redis down")}, slog.Default())
	res = findOne(t, svc, Query{RiderID: "rider-1", Pickup: origin, Drop: dest, Seats: 1})
	if len(res.Perfect) != 2 {
		t.Fatalf("prefilter failure should fall back to the full scan, got %d", len(res.Perfect))
	}
}
