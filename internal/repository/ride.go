package repository

import (
	"context"
	"time"

	"taptapgo/internal/domain"
)

// RideFilter narrows ride listings. Empty fields do not filter.
type RideFilter struct {
	Status      domain.RideStatus
	PassengerID string
	DriverID    string
	// AdminID restricts to one brand scope when ScopeSet is true; an empty
	// AdminID with ScopeSet selects the direct fleet.
	AdminID  string
	ScopeSet bool
	// OpenFor additionally includes pending unassigned rides a driver could
	// accept.
	OpenFor *OpenRideScope
	Limit   int
}

// OpenRideScope describes the pending rides visible to a driver.
type OpenRideScope struct {
	VehicleType domain.VehicleType
	AdminID     string
}

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetByIDForUpdate retrieves a ride and locks its row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error)

	// List retrieves rides matching the filter, newest first.
	List(ctx context.Context, filter RideFilter) ([]*domain.Ride, error)

	// Claim assigns driverID to a pending, unassigned ride. It returns
	// ErrConflict when the ride is no longer claimable and ErrDuplicate when
	// the driver already holds an active ride.
	Claim(ctx context.Context, rideID, driverID string, at time.Time) error

	// Transition writes the ride's new status and settlement fields if the
	// stored status still equals from. It returns ErrConflict otherwise.
	Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error

	// HasActiveRide reports whether the driver holds an accepted, arrived or
	// started ride.
	HasActiveRide(ctx context.Context, driverID string) (bool, error)

	// SaveRating stores the passenger's rating once. It returns ErrConflict
	// if the ride was already rated.
	SaveRating(ctx context.Context, rideID string, rating int, comment string) error

	// AppendEvent records a status transition in the audit trail.
	AppendEvent(ctx context.Context, event *domain.RideEvent) error
}
