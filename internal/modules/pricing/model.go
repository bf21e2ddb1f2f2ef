// README: Cost-based fare model definitions.
package pricing

// Rates holds the per-deployment cost coefficients. Amounts are in the
// platform currency; distances in km, durations in minutes.
type Rates struct {
	FuelPricePerLiter  float64
	VehicleKmPerLiter  float64
	WearCostPerKm      float64
	DriverRatePerMin   float64
	LongTripKm         float64
	MarginRate         float64
	LongTripMarginRate float64
	PlatformFeeRate    float64
	MinFarePerRider    float64
}

// DefaultRates applies when no override row exists in the rates table.
var DefaultRates = Rates{
	FuelPricePerLiter:  105,
	VehicleKmPerLiter:  12,
	WearCostPerKm:      5,
	DriverRatePerMin:   3,
	LongTripKm:         500,
	MarginRate:         0.20,
	LongTripMarginRate: 0.10,
	PlatformFeeRate:    0.10,
	MinFarePerRider:    50,
}

// Quote is a priced trip. PerRider is the billed per-seat amount with the
// minimum-fare floor applied; TripTotal is the raw trip cost and is not
// re-derived from the floored per-rider figure.
type Quote struct {
	OperatingCost float64 `json:"operatingCost"`
	Profit        float64 `json:"profit"`
	PlatformFee   float64 `json:"platformFee"`
	TripTotal     float64 `json:"tripTotal"`
	PerRider      float64 `json:"perRider"`
	FloorApplied  bool    `json:"floorApplied"`
}
