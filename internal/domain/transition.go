package domain

// TransitionPolicy holds the configurable parts of the ride lifecycle.
type TransitionPolicy struct {
	// AllowStartWithoutArrival lets a driver go from accepted straight to
	// started without recording arrival first.
	AllowStartWithoutArrival bool
}

var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusPending:  {RideStatusAccepted, RideStatusCancelled},
	RideStatusAccepted: {RideStatusArrived, RideStatusStarted, RideStatusCancelled},
	RideStatusArrived:  {RideStatusStarted, RideStatusCancelled},
	RideStatusStarted:  {RideStatusCompleted, RideStatusCancelled},
}

var transitionActors = map[RideStatus][]Role{
	RideStatusAccepted:  {RoleDriver},
	RideStatusArrived:   {RoleDriver},
	RideStatusStarted:   {RoleDriver},
	RideStatusCompleted: {RoleDriver},
	RideStatusCancelled: {RolePassenger, RoleDriver, RoleAdmin, RoleSuperAdmin},
}

// Allows reports whether the ride may move from its current status to next.
func (p TransitionPolicy) Allows(r *Ride, next RideStatus) bool {
	for _, s := range rideTransitions[r.Status] {
		if s != next {
			continue
		}
		if r.Status == RideStatusAccepted && next == RideStatusStarted {
			return r.HasArrived() || p.AllowStartWithoutArrival
		}
		return true
	}
	return false
}

// ActorMayEnter reports whether role is allowed to drive a ride into status s.
func ActorMayEnter(role Role, s RideStatus) bool {
	for _, r := range transitionActors[s] {
		if r == role {
			return true
		}
	}
	return false
}
