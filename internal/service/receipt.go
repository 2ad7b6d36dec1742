package service

import (
	"fmt"
	"strings"

	"taptapgo/internal/domain"
)

// BuildReceipt summarizes the settlement of a completed ride.
func BuildReceipt(ride *domain.Ride, breakdown domain.FareBreakdown, distanceKm, durationMin float64, driverNet, commission int64) *domain.Receipt {
	receipt := &domain.Receipt{
		RideID:         ride.ID,
		DriverID:       ride.DriverID,
		PassengerID:    ride.PassengerID,
		VehicleType:    ride.VehicleType,
		PaymentMethod:  ride.PaymentMethod,
		DistanceKm:     distanceKm,
		DurationMin:    durationMin,
		Breakdown:      breakdown,
		CommissionRate: ride.Tariff.SystemCommission,
		Commission:     commission,
		DriverNet:      driverNet,
		TariffVersion:  ride.Tariff.Version,
	}
	if ride.FinalPrice != nil {
		receipt.FinalPrice = *ride.FinalPrice
	}
	return receipt
}

// FormatReceipt renders the receipt as plain text for SMS or print.
func FormatReceipt(r *domain.Receipt) string {
	var b strings.Builder
	line := "-------------------------------------\n"

	b.WriteString("=====================================\n")
	b.WriteString("          TAPTAPGO RECEIPT\n")
	b.WriteString("=====================================\n")
	fmt.Fprintf(&b, "Ride:     %s\n", r.RideID)
	fmt.Fprintf(&b, "Vehicle:  %s\n", r.VehicleType)
	fmt.Fprintf(&b, "Distance: %.2f km\n", r.DistanceKm)
	fmt.Fprintf(&b, "Duration: %.0f min\n", r.DurationMin)
	b.WriteString(line)
	fmt.Fprintf(&b, "Base fare:     %s\n", formatHTG(r.Breakdown.BaseFare))
	fmt.Fprintf(&b, "Distance fare: %s\n", formatHTG(r.Breakdown.DistanceFare))
	fmt.Fprintf(&b, "Time fare:     %s\n", formatHTG(r.Breakdown.TimeFare))
	if r.Breakdown.SurgeMultiplier != 1 {
		fmt.Fprintf(&b, "Surge:         x%.2f\n", r.Breakdown.SurgeMultiplier)
	}
	b.WriteString(line)
	fmt.Fprintf(&b, "TOTAL:         %d HTG\n", r.FinalPrice)
	fmt.Fprintf(&b, "Payment:       %s\n", r.PaymentMethod)
	b.WriteString("=====================================\n")
	return b.String()
}

func formatHTG(amount float64) string {
	return fmt.Sprintf("%.2f HTG", amount)
}
