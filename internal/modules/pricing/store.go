// README: Pricing rate overrides backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetRates returns the deployment rate override row, if one exists.
func (s *Store) GetRates(ctx context.Context) (Rates, bool, error) {
	row := s.db.QueryRow(ctx, `
		SELECT fuel_price_per_liter, vehicle_km_per_liter, wear_cost_per_km,
		       driver_rate_per_min, long_trip_km, margin_rate,
		       long_trip_margin_rate, platform_fee_rate, min_fare_per_rider
		FROM pricing_rates
		ORDER BY updated_at DESC
		LIMIT 1`,
	)

	var r Rates
	err := row.Scan(
		&r.FuelPricePerLiter, &r.VehicleKmPerLiter, &r.WearCostPerKm,
		&r.DriverRatePerMin, &r.LongTripKm, &r.MarginRate,
		&r.LongTripMarginRate, &r.PlatformFeeRate, &r.MinFarePerRider,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rates{}, false, nil
	}
	if err != nil {
		return Rates{}, false, err
	}
	return r, true, nil
}
