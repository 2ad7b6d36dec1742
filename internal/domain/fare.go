package domain

import "math"

// FareBreakdown is the itemized result of pricing a ride. Components keep
// fractional precision; Total is rounded only when persisted.
type FareBreakdown struct {
	BaseFare        float64
	DistanceFare    float64
	TimeFare        float64
	SurgeMultiplier float64
	Subtotal        float64
	Total           float64
}

// RoundedTotal returns Total rounded to the nearest whole HTG.
func (b FareBreakdown) RoundedTotal() int64 {
	return int64(math.Round(b.Total))
}

// Receipt summarizes the settlement of a completed ride.
type Receipt struct {
	RideID         string
	DriverID       string
	PassengerID    string
	VehicleType    VehicleType
	PaymentMethod  PaymentMethod
	DistanceKm     float64
	DurationMin    float64
	Breakdown      FareBreakdown
	FinalPrice     int64
	CommissionRate float64
	Commission     int64
	DriverNet      int64
	TariffVersion  int
}

// SplitCommission divides a whole-HTG amount between driver and platform.
// The driver share is rounded half away from zero and the platform keeps
// the remainder, so the two parts always add back to amount.
func SplitCommission(amount int64, commissionPct float64) (driverNet, commission int64) {
	driverNet = int64(math.Round(float64(amount) * (100 - commissionPct) / 100))
	return driverNet, amount - driverNet
}
