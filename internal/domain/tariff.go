package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// TariffScope identifies which level of the pricing hierarchy a tariff
// belongs to.
type TariffScope string

const (
	// TariffScopeDirect is the platform tariff for the direct fleet.
	TariffScopeDirect TariffScope = "direct"
	// TariffScopeAdmin is the platform default for every brand.
	TariffScopeAdmin TariffScope = "admin"
	// TariffScopeBrand is one brand's own override, keyed by admin id.
	TariffScopeBrand TariffScope = "brand"
	// TariffScopeCity is the per-city tariff, keyed by city name.
	TariffScopeCity TariffScope = "city"
)

// Valid reports whether the scope is known.
func (s TariffScope) Valid() bool {
	switch s {
	case TariffScopeDirect, TariffScopeAdmin, TariffScopeBrand, TariffScopeCity:
		return true
	}
	return false
}

// Keyed reports whether tariffs in this scope need a scope id.
func (s TariffScope) Keyed() bool {
	return s == TariffScopeBrand || s == TariffScopeCity
}

// Tariff holds the pricing parameters for one scope. Money is in HTG.
type Tariff struct {
	Scope   TariffScope
	ScopeID string

	BaseFareMoto    float64
	BaseFareCar     float64
	PricePerKmMoto  float64
	PricePerKmCar   float64
	PricePerMinMoto float64
	PricePerMinCar  float64

	SurgeMultiplier float64
	// SystemCommission is the percentage (0-100) of the fare kept by the platform.
	SystemCommission float64

	Version   int
	UpdatedAt time.Time
}

// Rate is the per-vehicle slice of a tariff.
type Rate struct {
	BaseFare    float64
	PricePerKm  float64
	PricePerMin float64
}

// DefaultTariff returns the built-in city rates used when nothing is stored.
func DefaultTariff() Tariff {
	return Tariff{
		BaseFareMoto:     50,
		BaseFareCar:      100,
		PricePerKmMoto:   25,
		PricePerKmCar:    50,
		PricePerMinMoto:  5,
		PricePerMinCar:   10,
		SurgeMultiplier:  1.0,
		SystemCommission: 15,
	}
}

// RateFor returns the rates for a vehicle type.
func (t Tariff) RateFor(v VehicleType) (Rate, bool) {
	switch v {
	case VehicleMoto:
		return Rate{BaseFare: t.BaseFareMoto, PricePerKm: t.PricePerKmMoto, PricePerMin: t.PricePerMinMoto}, true
	case VehicleCar:
		return Rate{BaseFare: t.BaseFareCar, PricePerKm: t.PricePerKmCar, PricePerMin: t.PricePerMinCar}, true
	}
	return Rate{}, false
}

// Validate checks the rate and commission bounds.
func (t Tariff) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"base_fare_moto", t.BaseFareMoto},
		{"base_fare_car", t.BaseFareCar},
		{"price_per_km_moto", t.PricePerKmMoto},
		{"price_per_km_car", t.PricePerKmCar},
		{"price_per_min_moto", t.PricePerMinMoto},
		{"price_per_min_car", t.PricePerMinCar},
		{"surge_multiplier", t.SurgeMultiplier},
		{"system_commission", t.SystemCommission},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%s must be >= 0", f.name)
		}
	}
	if t.SurgeMultiplier < 1 {
		return errors.New("surge_multiplier must be >= 1")
	}
	if t.SystemCommission > 100 {
		return errors.New("system_commission must be <= 100")
	}
	return nil
}
