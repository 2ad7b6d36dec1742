package tests

import (
	"context"
	"testing"
	"time"

	"taptapgo/internal/domain"
	"taptapgo/internal/service"
)

// Env is a fully wired service graph over the in-memory store.
type Env struct {
	Store     *Store
	Locks     *MockLockStore
	Cache     *MockTariffCache
	Publisher *RecordingPublisher

	Pricing     *service.PricingService
	Rides       *service.RideService
	Wallets     *service.WalletService
	Withdrawals *service.WithdrawalService
}

// Options tune the rules an Env is built with.
type Options struct {
	Rules           domain.WithdrawalRules
	Holding         time.Duration
	Transitions     domain.TransitionPolicy
	CancellationFee int64
}

// DefaultRules are the production withdrawal defaults.
func DefaultRules() domain.WithdrawalRules {
	return domain.WithdrawalRules{
		MontantMinimum:     200,
		SeuilAutomatique:   1000,
		DelaiEntreRetraits: 24 * time.Hour,
	}
}

// NewEnv wires the services with the default rules.
func NewEnv() *Env {
	return NewEnvWith(Options{Rules: DefaultRules()})
}

// NewEnvWith wires the services with custom rules.
func NewEnvWith(opts Options) *Env {
	e := &Env{
		Store:     NewStore(),
		Locks:     NewMockLockStore(),
		Cache:     NewMockTariffCache(),
		Publisher: &RecordingPublisher{},
	}
	repos := e.Store.Repositories()

	notifier := service.NewNotificationService(e.Publisher)
	ledger := service.NewLedger(opts.Holding, notifier)
	e.Pricing = service.NewPricingService(repos.Tariffs, e.Cache)
	e.Withdrawals = service.NewWithdrawalService(e.Store, repos, ledger, e.Locks, notifier, opts.Rules, time.UTC)
	e.Wallets = service.NewWalletService(e.Store, repos, ledger, e.Withdrawals, notifier)
	e.Rides = service.NewRideService(e.Store, repos, e.Pricing, ledger, e.Withdrawals, notifier, service.RidePolicy{
		Transitions:     opts.Transitions,
		CancellationFee: opts.CancellationFee,
	})
	return e
}

// Actors used across scenarios.
var (
	Passenger  = domain.Actor{ID: "passenger-1", Role: domain.RolePassenger}
	SuperAdmin = domain.Actor{ID: "root", Role: domain.RoleSuperAdmin}
)

// DriverActor returns the actor for a driver in the direct fleet.
func DriverActor(id string) domain.Actor {
	return domain.Actor{ID: id, Role: domain.RoleDriver}
}

// AddMonCashDriver adds a car driver of the direct fleet with MonCash payout
// details and returns its actor.
func (e *Env) AddMonCashDriver(id string) domain.Actor {
	e.Store.AddDriver(domain.Driver{
		ID:          id,
		Name:        "Driver " + id,
		Phone:       "+5093700" + id,
		VehicleType: domain.VehicleCar,
		Payout:      domain.PayoutDetails{Methode: domain.MethodeMonCash, NumeroCompte: "50937000000"},
	})
	return DriverActor(id)
}

// Fund credits a driver through a superadmin adjustment.
func (e *Env) Fund(t testing.TB, driverID string, amount int64) {
	t.Helper()
	if _, err := e.Wallets.Adjust(context.Background(), SuperAdmin, driverID, amount, "seed"); err != nil {
		t.Fatalf("fund %s with %d: %v", driverID, amount, err)
	}
}

// Balance returns the withdrawable balance of a driver.
func (e *Env) Balance(t testing.TB, driverID string) int64 {
	t.Helper()
	overview, err := e.Wallets.GetWallet(context.Background(), DriverActor(driverID))
	if err != nil {
		t.Fatalf("get wallet %s: %v", driverID, err)
	}
	return overview.Wallet.Balance
}

// CarRide is a 5 km / 10 min car ride request.
func CarRide() service.CreateRideRequest {
	return service.CreateRideRequest{
		PickupLat:      18.5392,
		PickupLng:      -72.3364,
		DestinationLat: 18.5125,
		DestinationLng: -72.2853,
		VehicleType:    domain.VehicleCar,
		DistanceKm:     5,
		DurationMin:    10,
	}
}

// CompleteRide takes a new ride from creation to completion with the given
// driver and returns the final status result.
func (e *Env) CompleteRide(t testing.TB, driver domain.Actor, req service.CreateRideRequest) *service.StatusResult {
	t.Helper()
	ctx := context.Background()

	ride, err := e.Rides.CreateRide(ctx, Passenger, req)
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	if _, err := e.Rides.AcceptRide(ctx, driver, ride.ID); err != nil {
		t.Fatalf("accept ride: %v", err)
	}
	for _, s := range []domain.RideStatus{domain.RideStatusArrived, domain.RideStatusStarted} {
		if _, err := e.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: s}); err != nil {
			t.Fatalf("move ride to %s: %v", s, err)
		}
	}
	res, err := e.Rides.UpdateStatus(ctx, driver, ride.ID, service.StatusUpdate{Status: domain.RideStatusCompleted})
	if err != nil {
		t.Fatalf("complete ride: %v", err)
	}
	return res
}
