package service

import (
	"math"

	"taptapgo/internal/domain"
)

// maxFare is the largest total that survives rounding to int64 exactly.
const maxFare = 1 << 53

// EstimateFare prices a ride from its metrics and a tariff. It has no side
// effects: the same arguments always produce the same breakdown.
func EstimateFare(distanceKm, durationMin float64, vehicleType domain.VehicleType, tariff domain.Tariff) (domain.FareBreakdown, error) {
	if !finite(distanceKm) || distanceKm < 0 {
		return domain.FareBreakdown{}, invalidInput("distance_km must be a finite number >= 0")
	}
	if !finite(durationMin) || durationMin < 0 {
		return domain.FareBreakdown{}, invalidInput("duration_min must be a finite number >= 0")
	}
	rate, ok := tariff.RateFor(vehicleType)
	if !ok {
		return domain.FareBreakdown{}, invalidInput("unknown vehicle_type %q", vehicleType)
	}
	if err := tariff.Validate(); err != nil {
		return domain.FareBreakdown{}, invalidInput("tariff: %v", err)
	}

	b := domain.FareBreakdown{
		BaseFare:        rate.BaseFare,
		DistanceFare:    rate.PricePerKm * distanceKm,
		TimeFare:        rate.PricePerMin * durationMin,
		SurgeMultiplier: tariff.SurgeMultiplier,
	}
	b.Subtotal = b.BaseFare + b.DistanceFare + b.TimeFare
	b.Total = b.Subtotal * b.SurgeMultiplier
	if !finite(b.Total) || b.Total > maxFare {
		return domain.FareBreakdown{}, invalidInput("fare total %g HTG is out of range", b.Total)
	}
	return b, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
