// README: Pricing service computes deterministic per-rider fares.
package pricing

import (
	"context"
	"math"
)

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

// Quote prices a trip from its distance, duration, and seat count using the
// effective rates. Seat count is clamped to at least 1.
func (s *Service) Quote(ctx context.Context, distanceKm, durationMin float64, seats int) Quote {
	rates := DefaultRates
	if s.store != nil {
		if r, ok, err := s.store.GetRates(ctx); err == nil && ok {
			rates = r
		}
	}
	return ComputeQuote(rates, distanceKm, durationMin, seats)
}

// ComputeQuote is the pure fare formula: fuel + wear + driver time form the
// operating cost; margin is 20% (10% beyond the long-trip threshold so long
// hauls are not over-charged); the platform fee is 10% on top. The per-rider
// figure is floored at the minimum fare and the floored figure is what gets
// billed; the trip total keeps its raw value.
func ComputeQuote(rates Rates, distanceKm, durationMin float64, seats int) Quote {
	if seats < 1 {
		seats = 1
	}

	fuel := distanceKm / rates.VehicleKmPerLiter * rates.FuelPricePerLiter
	wear := distanceKm * rates.WearCostPerKm
	driverTime := durationMin * rates.DriverRatePerMin
	operating := fuel + wear + driverTime

	margin := rates.MarginRate
	if distanceKm > rates.LongTripKm {
		margin = rates.LongTripMarginRate
	}
	profit := operating * margin
	fee := (operating + profit) * rates.PlatformFeeRate
	total := operating + profit + fee

	perRider := round2(total / float64(seats))
	floored := false
	if perRider < rates.MinFarePerRider {
		perRider = rates.MinFarePerRider
		floored = true
	}

	return Quote{
		OperatingCost: round2(operating),
		Profit:        round2(profit),
		PlatformFee:   round2(fee),
		TripTotal:     round2(total),
		PerRider:      perRider,
		FloorApplied:  floored,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
