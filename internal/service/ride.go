package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taptapgo/internal/domain"
	"taptapgo/internal/logger"
	"taptapgo/internal/metrics"
	"taptapgo/internal/repository"
)

// RidePolicy holds the configurable ride rules.
type RidePolicy struct {
	Transitions domain.TransitionPolicy
	// CancellationFee is charged when a passenger cancels after a driver
	// accepted. Zero disables it.
	CancellationFee int64
}

// RideService runs the ride state machine and settles completed rides.
type RideService struct {
	tx          repository.TxManager
	repos       repository.Repositories
	pricing     *PricingService
	ledger      *Ledger
	withdrawals *WithdrawalService
	notifier    *NotificationService
	policy      RidePolicy
	now         func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(
	tx repository.TxManager,
	repos repository.Repositories,
	pricing *PricingService,
	ledger *Ledger,
	withdrawals *WithdrawalService,
	notifier *NotificationService,
	policy RidePolicy,
) *RideService {
	return &RideService{
		tx:          tx,
		repos:       repos,
		pricing:     pricing,
		ledger:      ledger,
		withdrawals: withdrawals,
		notifier:    notifier,
		policy:      policy,
		now:         time.Now,
	}
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	City               string
	PickupLat          float64
	PickupLng          float64
	PickupAddress      string
	DestinationLat     float64
	DestinationLng     float64
	DestinationAddress string
	VehicleType        domain.VehicleType
	PaymentMethod      domain.PaymentMethod // Optional: defaults to cash
	DistanceKm         float64
	DurationMin        float64
}

// CreateRide prices a ride with the tariff in effect now, freezes that
// tariff on the ride and stores it as pending.
func (s *RideService) CreateRide(ctx context.Context, actor domain.Actor, req CreateRideRequest) (*domain.Ride, error) {
	if actor.Role != domain.RolePassenger {
		return nil, forbidden("only passengers can request rides")
	}
	if err := validateCreateRequest(&req); err != nil {
		return nil, err
	}

	tariff, err := s.pricing.Resolve(ctx, actor.AdminID, req.City)
	if err != nil {
		return nil, err
	}
	breakdown, err := EstimateFare(req.DistanceKm, req.DurationMin, req.VehicleType, tariff)
	if err != nil {
		return nil, err
	}
	metrics.FareEstimated(string(req.VehicleType), "quote")

	ride := &domain.Ride{
		ID:                   uuid.New().String(),
		PassengerID:          actor.ID,
		AdminID:              actor.AdminID,
		City:                 req.City,
		PickupLat:            req.PickupLat,
		PickupLng:            req.PickupLng,
		PickupAddress:        req.PickupAddress,
		DestinationLat:       req.DestinationLat,
		DestinationLng:       req.DestinationLng,
		DestinationAddress:   req.DestinationAddress,
		VehicleType:          req.VehicleType,
		PaymentMethod:        req.PaymentMethod,
		EstimatedDistanceKm:  req.DistanceKm,
		EstimatedDurationMin: req.DurationMin,
		EstimatedPrice:       breakdown.RoundedTotal(),
		Tariff:               tariff,
		Status:               domain.RideStatusPending,
		CreatedAt:            s.now(),
	}

	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Rides.Create(ctx, ride); err != nil {
			return err
		}
		return repos.Rides.AppendEvent(ctx, s.event(ride, "", actor, ""))
	})
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("ride created",
		zap.String("ride_id", ride.ID),
		zap.Int64("estimated_price", ride.EstimatedPrice),
		zap.Int("tariff_version", tariff.Version),
	)
	s.notifier.NotifyRideStatus(ctx, ride, actor)
	return ride, nil
}

func validateCreateRequest(req *CreateRideRequest) error {
	if !isValidLatitude(req.PickupLat) || !isValidLongitude(req.PickupLng) {
		return invalidInput("invalid pickup location")
	}
	if !isValidLatitude(req.DestinationLat) || !isValidLongitude(req.DestinationLng) {
		return invalidInput("invalid destination location")
	}
	if !req.VehicleType.Valid() {
		return invalidInput("unknown vehicle_type %q", req.VehicleType)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCash
	}
	if !req.PaymentMethod.Valid() {
		return invalidInput("unknown payment_method %q", req.PaymentMethod)
	}
	req.City = strings.TrimSpace(req.City)
	return nil
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

// EstimateRequest contains the parameters for a fare quote.
type EstimateRequest struct {
	City        string
	VehicleType domain.VehicleType
	DistanceKm  float64
	DurationMin float64
}

// Quote is a fare estimate with the tariff that produced it.
type Quote struct {
	Breakdown      domain.FareBreakdown
	EstimatedPrice int64
	Tariff         domain.Tariff
}

// EstimateRide quotes a fare without creating a ride.
func (s *RideService) EstimateRide(ctx context.Context, actor domain.Actor, req EstimateRequest) (*Quote, error) {
	tariff, err := s.pricing.Resolve(ctx, actor.AdminID, strings.TrimSpace(req.City))
	if err != nil {
		return nil, err
	}
	breakdown, err := EstimateFare(req.DistanceKm, req.DurationMin, req.VehicleType, tariff)
	if err != nil {
		return nil, err
	}
	metrics.FareEstimated(string(req.VehicleType), "estimate")
	return &Quote{Breakdown: breakdown, EstimatedPrice: breakdown.RoundedTotal(), Tariff: tariff}, nil
}

// GetRide returns a ride the actor may see.
func (s *RideService) GetRide(ctx context.Context, actor domain.Actor, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}
	ride, err := s.repos.Rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, "ride")
	}
	if !canView(actor, ride) {
		return nil, forbidden("ride is not visible to this %s", actor.Role)
	}
	return ride, nil
}

func canView(actor domain.Actor, ride *domain.Ride) bool {
	switch actor.Role {
	case domain.RolePassenger:
		return ride.PassengerID == actor.ID
	case domain.RoleDriver:
		if ride.DriverID == actor.ID {
			return true
		}
		return ride.Status == domain.RideStatusPending && ride.AdminID == actor.AdminID
	case domain.RoleAdmin, domain.RoleSuperAdmin:
		return actor.ManagesScope(ride.AdminID)
	}
	return false
}

// ListRides returns the rides visible to the actor, optionally filtered by
// status. Drivers also see pending rides they could accept.
func (s *RideService) ListRides(ctx context.Context, actor domain.Actor, status domain.RideStatus, limit int) ([]*domain.Ride, error) {
	filter := repository.RideFilter{Status: status, Limit: limit}

	switch actor.Role {
	case domain.RolePassenger:
		filter.PassengerID = actor.ID
	case domain.RoleDriver:
		driver, err := s.repos.Drivers.GetByID(ctx, actor.ID)
		if err != nil {
			return nil, notFound(err, "driver")
		}
		filter.DriverID = actor.ID
		filter.OpenFor = &repository.OpenRideScope{VehicleType: driver.VehicleType, AdminID: driver.AdminID}
	case domain.RoleAdmin:
		filter.AdminID = actor.ID
		filter.ScopeSet = true
	case domain.RoleSuperAdmin:
	default:
		return nil, forbidden("unknown role")
	}

	return s.repos.Rides.List(ctx, filter)
}

// AcceptRide claims a pending ride for the calling driver. Of several
// drivers racing for the same ride exactly one wins; the others get
// ErrRideTaken.
func (s *RideService) AcceptRide(ctx context.Context, actor domain.Actor, rideID string) (*domain.Ride, error) {
	if actor.Role != domain.RoleDriver {
		return nil, forbidden("only drivers can accept rides")
	}
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}

	driver, err := s.repos.Drivers.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, notFound(err, "driver")
	}

	var ride *domain.Ride
	err = s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ride, err = repos.Rides.GetByID(ctx, rideID)
		if err != nil {
			return notFound(err, "ride")
		}
		if ride.AdminID != driver.AdminID {
			return forbidden("ride belongs to another brand")
		}
		switch {
		case ride.Status.IsTerminal():
			return ErrRideTerminal
		case ride.Status != domain.RideStatusPending:
			return ErrRideTaken
		case ride.VehicleType != driver.VehicleType:
			return invalidTransition("ride requires a %s", ride.VehicleType)
		}

		active, err := repos.Rides.HasActiveRide(ctx, actor.ID)
		if err != nil {
			return err
		}
		if active {
			return ErrDriverHasActiveRide
		}

		at := s.now()
		if err := repos.Rides.Claim(ctx, rideID, actor.ID, at); err != nil {
			switch {
			case errors.Is(err, repository.ErrConflict):
				return ErrRideTaken
			case errors.Is(err, repository.ErrDuplicate):
				return ErrDriverHasActiveRide
			}
			return err
		}
		ride.DriverID = actor.ID
		ride.Status = domain.RideStatusAccepted
		ride.Stamp(domain.RideStatusAccepted, at)

		return repos.Rides.AppendEvent(ctx, s.event(ride, domain.RideStatusPending, actor, ""))
	})
	if err != nil {
		if errors.Is(err, ErrRideTaken) {
			metrics.RideAcceptConflict()
		}
		return nil, err
	}

	metrics.RideTransition(string(domain.RideStatusPending), string(domain.RideStatusAccepted))
	logger.WithContext(ctx).Info("ride accepted",
		zap.String("ride_id", ride.ID),
		zap.String("driver_id", actor.ID),
	)
	s.notifier.NotifyRideStatus(ctx, ride, actor)
	return ride, nil
}

// StatusUpdate drives a ride to a new status. DistanceKm and DurationMin
// override the estimates when completing.
type StatusUpdate struct {
	Status      domain.RideStatus
	Reason      string
	DistanceKm  *float64
	DurationMin *float64
}

// StatusResult is the ride after a transition and its settlement, if any.
type StatusResult struct {
	Ride        *domain.Ride
	Receipt     *domain.Receipt
	AutoRetrait *domain.Retrait
}

type settlement struct {
	change      LedgerChange
	receipt     *domain.Receipt
	autoRetrait *domain.Retrait
}

// UpdateStatus applies one transition of the state machine. Completing a
// ride prices it with the frozen tariff and credits the driver; cancelling
// may credit the configured cancellation fee.
func (s *RideService) UpdateStatus(ctx context.Context, actor domain.Actor, rideID string, upd StatusUpdate) (*StatusResult, error) {
	if rideID == "" {
		return nil, invalidInput("ride id is required")
	}
	if _, ok := domain.ParseRideStatus(string(upd.Status)); !ok {
		return nil, invalidInput("unknown status %q", upd.Status)
	}
	if upd.Status == domain.RideStatusAccepted {
		ride, err := s.AcceptRide(ctx, actor, rideID)
		if err != nil {
			return nil, err
		}
		return &StatusResult{Ride: ride}, nil
	}

	var (
		ride *domain.Ride
		from domain.RideStatus
		set  settlement
	)
	err := s.tx.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ride, err = repos.Rides.GetByIDForUpdate(ctx, rideID)
		if err != nil {
			return notFound(err, "ride")
		}
		if !canView(actor, ride) {
			return forbidden("ride is not visible to this %s", actor.Role)
		}
		if ride.Status.IsTerminal() {
			return ErrRideTerminal
		}
		if upd.Status == domain.RideStatusPending || !s.policy.Transitions.Allows(ride, upd.Status) {
			return invalidTransition("%s -> %s is not allowed", ride.Status, upd.Status)
		}
		if err := authorizeTransition(actor, ride, upd.Status); err != nil {
			return err
		}

		from = ride.Status
		at := s.now()
		ride.Status = upd.Status
		ride.Stamp(upd.Status, at)

		switch upd.Status {
		case domain.RideStatusCompleted:
			set, err = s.complete(ctx, repos, ride, upd)
		case domain.RideStatusCancelled:
			set, err = s.cancel(ctx, repos, ride, from, actor, upd.Reason)
		default:
			err = s.transition(ctx, repos, ride, from)
		}
		if err != nil {
			return err
		}
		return repos.Rides.AppendEvent(ctx, s.event(ride, from, actor, upd.Reason))
	})
	if err != nil {
		return nil, s.ledger.Quarantine(ctx, s.tx, err)
	}

	metrics.RideTransition(string(from), string(ride.Status))
	logger.WithContext(ctx).Info("ride status updated",
		zap.String("ride_id", ride.ID),
		zap.String("from", string(from)),
		zap.String("to", string(ride.Status)),
	)
	s.notifier.NotifyRideStatus(ctx, ride, actor)
	s.notifier.NotifyLedgerChange(ctx, set.change)
	if set.receipt != nil {
		s.notifier.NotifyReceipt(ctx, set.receipt)
	}
	s.withdrawals.AfterAutoWithdraw(ctx, set.autoRetrait)

	return &StatusResult{Ride: ride, Receipt: set.receipt, AutoRetrait: set.autoRetrait}, nil
}

// authorizeTransition checks the role gate and ownership once the target is
// known to be a legal move.
func authorizeTransition(actor domain.Actor, ride *domain.Ride, next domain.RideStatus) error {
	if !domain.ActorMayEnter(actor.Role, next) {
		return forbidden("a %s cannot move a ride to %s", actor.Role, next)
	}
	switch actor.Role {
	case domain.RolePassenger:
		if ride.PassengerID != actor.ID {
			return forbidden("ride belongs to another passenger")
		}
	case domain.RoleDriver:
		if ride.DriverID != actor.ID {
			return forbidden("ride is not assigned to this driver")
		}
	case domain.RoleAdmin, domain.RoleSuperAdmin:
		if !actor.ManagesScope(ride.AdminID) {
			return forbidden("ride belongs to another brand")
		}
	}
	return nil
}

func (s *RideService) transition(ctx context.Context, repos repository.Repositories, ride *domain.Ride, from domain.RideStatus) error {
	if err := repos.Rides.Transition(ctx, ride, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return invalidTransition("ride changed concurrently")
		}
		return err
	}
	return nil
}

// complete finalizes the price with the tariff frozen at creation and
// credits the driver's share.
func (s *RideService) complete(ctx context.Context, repos repository.Repositories, ride *domain.Ride, upd StatusUpdate) (settlement, error) {
	distance, duration := ride.EstimatedDistanceKm, ride.EstimatedDurationMin
	if upd.DistanceKm != nil {
		distance = *upd.DistanceKm
	}
	if upd.DurationMin != nil {
		duration = *upd.DurationMin
	}

	breakdown, err := EstimateFare(distance, duration, ride.VehicleType, ride.Tariff)
	if err != nil {
		return settlement{}, err
	}
	metrics.FareEstimated(string(ride.VehicleType), "settlement")

	final := breakdown.RoundedTotal()
	ride.FinalPrice = &final
	if err := s.transition(ctx, repos, ride, domain.RideStatusStarted); err != nil {
		return settlement{}, err
	}

	driverNet, commission := domain.SplitCommission(final, ride.Tariff.SystemCommission)
	change, err := s.ledger.Credit(ctx, repos, ride.DriverID, driverNet, ride.ID)
	if err != nil {
		return settlement{}, err
	}
	auto, err := s.withdrawals.MaybeAutoWithdraw(ctx, repos, change)
	if err != nil {
		return settlement{}, err
	}

	return settlement{
		change:      change,
		receipt:     BuildReceipt(ride, breakdown, distance, duration, driverNet, commission),
		autoRetrait: auto,
	}, nil
}

// cancel records the reason and, when a passenger cancels after a driver
// committed, the cancellation fee credited to that driver.
func (s *RideService) cancel(ctx context.Context, repos repository.Repositories, ride *domain.Ride, from domain.RideStatus, actor domain.Actor, reason string) (settlement, error) {
	ride.CancelReason = strings.TrimSpace(reason)
	ride.CancelledBy = actor.Role

	charge := s.policy.CancellationFee > 0 && actor.Role == domain.RolePassenger && from != domain.RideStatusPending
	if charge {
		ride.CancellationFee = s.policy.CancellationFee
	}
	if err := s.transition(ctx, repos, ride, from); err != nil {
		return settlement{}, err
	}
	if !charge {
		return settlement{}, nil
	}

	driverNet, _ := domain.SplitCommission(ride.CancellationFee, ride.Tariff.SystemCommission)
	change, err := s.ledger.Credit(ctx, repos, ride.DriverID, driverNet, ride.ID)
	if err != nil {
		return settlement{}, err
	}
	auto, err := s.withdrawals.MaybeAutoWithdraw(ctx, repos, change)
	if err != nil {
		return settlement{}, err
	}
	return settlement{change: change, autoRetrait: auto}, nil
}

// RateRide stores the passenger's rating of a completed ride.
func (s *RideService) RateRide(ctx context.Context, actor domain.Actor, rideID string, rating int, comment string) error {
	if actor.Role != domain.RolePassenger {
		return forbidden("only passengers can rate rides")
	}
	if rating < 1 || rating > 5 {
		return invalidInput("rating must be between 1 and 5")
	}

	ride, err := s.repos.Rides.GetByID(ctx, rideID)
	if err != nil {
		return notFound(err, "ride")
	}
	if ride.PassengerID != actor.ID {
		return forbidden("ride belongs to another passenger")
	}
	if ride.Status != domain.RideStatusCompleted {
		return invalidTransition("only completed rides can be rated")
	}

	if err := s.repos.Rides.SaveRating(ctx, rideID, rating, strings.TrimSpace(comment)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAlreadyRated
		}
		return err
	}
	return nil
}

func (s *RideService) event(ride *domain.Ride, from domain.RideStatus, actor domain.Actor, reason string) *domain.RideEvent {
	return &domain.RideEvent{
		ID:        uuid.New().String(),
		RideID:    ride.ID,
		From:      from,
		To:        ride.Status,
		ActorRole: actor.Role,
		ActorID:   actor.ID,
		Reason:    reason,
		CreatedAt: s.now(),
	}
}
