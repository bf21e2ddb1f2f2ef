package pricing

import (
	"testing"
)

func TestComputeQuote(t *testing.T) {
	tests := []struct {
		name          string
		distanceKm    float64
		durationMin   float64
		seats         int
		wantPerRider  float64
		wantTripTotal float64
		wantFloored   bool
	}{
		{
			// fuel 2/12*105=17.5, wear 10, time 30 -> operating 57.5
			// profit 11.5, fee 6.9 -> total 75.9; 75.9/4=18.98 < 50 -> floor
			name:          "short city hop hits the minimum fare",
			distanceKm:    2,
			durationMin:   10,
			seats:         4,
			wantPerRider:  50,
			wantTripTotal: 75.9,
			wantFloored:   true,
		},
		{
			// fuel 1050, wear 600, time 450 -> operating 2100
			// profit 420, fee 252 -> total 2772
			name:          "single seat medium trip",
			distanceKm:    120,
			durationMin:   150,
			seats:         1,
			wantPerRider:  2772,
			wantTripTotal: 2772,
		},
		{
			// exactly at the threshold keeps the 20% margin
			// operating 8075, profit 1615, fee 969 -> total 10659
			name:          "threshold distance keeps standard margin",
			distanceKm:    500,
			durationMin:   400,
			seats:         2,
			wantPerRider:  5329.5,
			wantTripTotal: 10659,
		},
		{
			// past the threshold margin drops to 10%
			// operating 9690, profit 969, fee 1065.9 -> total 11724.9
			name:          "long haul gets reduced margin",
			distanceKm:    600,
			durationMin:   480,
			seats:         3,
			wantPerRider:  3908.3,
			wantTripTotal: 11724.9,
		},
		{
			name:          "zero seats clamps to one",
			distanceKm:    120,
			durationMin:   150,
			seats:         0,
			wantPerRider:  2772,
			wantTripTotal: 2772,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeQuote(DefaultRates, tt.distanceKm, tt.durationMin, tt.seats)
			if got.PerRider != tt.wantPerRider {
				t.Errorf("PerRider = %v, want %v", got.PerRider, tt.wantPerRider)
			}
			if got.TripTotal != tt.wantTripTotal {
				t.Errorf("TripTotal = %v, want %v", got.TripTotal, tt.wantTripTotal)
			}
			if got.FloorApplied != tt.wantFloored {
				t.Errorf("FloorApplied = %v, want %v", got.FloorApplied, tt.wantFloored)
			}
		})
	}
}

// TestComputeQuote_FloorLeavesTripTotal pins down the documented asymmetry:
// flooring adjusts the billed per-rider amount only, the trip total keeps
// its raw value.
func TestComputeQuote_FloorLeavesTripTotal(t *testing.T) {
	q := ComputeQuote(DefaultRates, 2, 10, 4)
	if !q.FloorApplied {
		t.Fatal("expected floor to apply")
	}
	if q.PerRider != DefaultRates.MinFarePerRider {
		t.Fatalf("PerRider = %v, want %v", q.PerRider, DefaultRates.MinFarePerRider)
	}
	if q.TripTotal >= q.PerRider*4 {
		t.Fatalf("trip total %v should not be re-derived from the floored per-rider price", q.TripTotal)
	}
}
