package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusPending   RideStatus = "pending"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusArrived   RideStatus = "arrived"
	RideStatusStarted   RideStatus = "started"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// ParseRideStatus converts a raw status string into a RideStatus.
func ParseRideStatus(s string) (RideStatus, bool) {
	switch RideStatus(s) {
	case RideStatusPending, RideStatusAccepted, RideStatusArrived,
		RideStatusStarted, RideStatusCompleted, RideStatusCancelled:
		return RideStatus(s), true
	}
	return "", false
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// IsActive reports whether a driver is currently engaged on the ride.
func (s RideStatus) IsActive() bool {
	return s == RideStatusAccepted || s == RideStatusArrived || s == RideStatusStarted
}

// ActiveRideStatuses lists the statuses in which a ride holds its driver.
var ActiveRideStatuses = []RideStatus{RideStatusAccepted, RideStatusArrived, RideStatusStarted}

// VehicleType is the kind of vehicle a ride is requested for.
type VehicleType string

const (
	VehicleMoto VehicleType = "moto"
	VehicleCar  VehicleType = "car"
)

// Valid reports whether the vehicle type is known.
func (v VehicleType) Valid() bool {
	return v == VehicleMoto || v == VehicleCar
}

// PaymentMethod is how the passenger settles the fare.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodMonCash PaymentMethod = "moncash"
	PaymentMethodNatCash PaymentMethod = "natcash"
	PaymentMethodBank    PaymentMethod = "bank"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMonCash, PaymentMethodNatCash, PaymentMethodBank:
		return true
	}
	return false
}

// Ride represents a ride request and its lifecycle.
//
// DriverID is empty iff Status is pending, and FinalPrice is set iff Status
// is completed.
type Ride struct {
	ID          string
	PassengerID string
	DriverID    string
	AdminID     string // brand scope; empty for the direct fleet
	City        string

	PickupLat          float64
	PickupLng          float64
	PickupAddress      string
	DestinationLat     float64
	DestinationLng     float64
	DestinationAddress string

	VehicleType   VehicleType
	PaymentMethod PaymentMethod

	EstimatedDistanceKm  float64
	EstimatedDurationMin float64
	EstimatedPrice       int64
	FinalPrice           *int64

	// Tariff is the pricing snapshot frozen when the ride was created.
	Tariff Tariff

	Status          RideStatus
	CancelReason    string
	CancelledBy     Role
	CancellationFee int64

	Rating        int
	RatingComment string

	CreatedAt   time.Time
	AcceptedAt  time.Time
	ArrivedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	CancelledAt time.Time
}

// HasArrived reports whether the driver recorded arrival at pickup.
func (r *Ride) HasArrived() bool {
	return !r.ArrivedAt.IsZero()
}

// Stamp records the timestamp for entering status s.
func (r *Ride) Stamp(s RideStatus, at time.Time) {
	switch s {
	case RideStatusAccepted:
		r.AcceptedAt = at
	case RideStatusArrived:
		r.ArrivedAt = at
	case RideStatusStarted:
		r.StartedAt = at
	case RideStatusCompleted:
		r.CompletedAt = at
	case RideStatusCancelled:
		r.CancelledAt = at
	}
}

// RideEvent is one entry in a ride's status audit trail.
type RideEvent struct {
	ID        string
	RideID    string
	From      RideStatus
	To        RideStatus
	ActorRole Role
	ActorID   string
	Reason    string
	CreatedAt time.Time
}
