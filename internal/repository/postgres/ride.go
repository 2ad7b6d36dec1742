package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

const rideColumns = `id, passenger_id, driver_id, admin_id, city,
	pickup_lat, pickup_lng, pickup_address, destination_lat, destination_lng, destination_address,
	vehicle_type, payment_method, estimated_distance_km, estimated_duration_min, estimated_price,
	final_price, tariff_snapshot, status, cancel_reason, cancelled_by, cancellation_fee,
	rating, rating_comment, created_at, accepted_at, arrived_at, started_at, completed_at, cancelled_at`

// tariffSnapshot is the JSON form of the tariff frozen on a ride.
type tariffSnapshot struct {
	Scope            domain.TariffScope `json:"scope"`
	ScopeID          string             `json:"scope_id,omitempty"`
	BaseFareMoto     float64            `json:"base_fare_moto"`
	BaseFareCar      float64            `json:"base_fare_car"`
	PricePerKmMoto   float64            `json:"price_per_km_moto"`
	PricePerKmCar    float64            `json:"price_per_km_car"`
	PricePerMinMoto  float64            `json:"price_per_min_moto"`
	PricePerMinCar   float64            `json:"price_per_min_car"`
	SurgeMultiplier  float64            `json:"surge_multiplier"`
	SystemCommission float64            `json:"system_commission"`
	Version          int                `json:"version"`
}

func encodeTariff(t domain.Tariff) ([]byte, error) {
	return json.Marshal(tariffSnapshot{
		Scope:            t.Scope,
		ScopeID:          t.ScopeID,
		BaseFareMoto:     t.BaseFareMoto,
		BaseFareCar:      t.BaseFareCar,
		PricePerKmMoto:   t.PricePerKmMoto,
		PricePerKmCar:    t.PricePerKmCar,
		PricePerMinMoto:  t.PricePerMinMoto,
		PricePerMinCar:   t.PricePerMinCar,
		SurgeMultiplier:  t.SurgeMultiplier,
		SystemCommission: t.SystemCommission,
		Version:          t.Version,
	})
}

func decodeTariff(data []byte) (domain.Tariff, error) {
	var s tariffSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Tariff{}, fmt.Errorf("decode tariff snapshot: %w", err)
	}
	return domain.Tariff{
		Scope:            s.Scope,
		ScopeID:          s.ScopeID,
		BaseFareMoto:     s.BaseFareMoto,
		BaseFareCar:      s.BaseFareCar,
		PricePerKmMoto:   s.PricePerKmMoto,
		PricePerKmCar:    s.PricePerKmCar,
		PricePerMinMoto:  s.PricePerMinMoto,
		PricePerMinCar:   s.PricePerMinCar,
		SurgeMultiplier:  s.SurgeMultiplier,
		SystemCommission: s.SystemCommission,
		Version:          s.Version,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var (
		driverID, adminID, city, pickupAddr, destAddr sql.NullString
		cancelReason, cancelledBy, ratingComment      sql.NullString
		finalPrice                                    sql.NullInt64
		rating                                        sql.NullInt16
		snapshot                                      []byte
		acceptedAt, arrivedAt, startedAt              sql.NullTime
		completedAt, cancelledAt                      sql.NullTime
	)

	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&driverID,
		&adminID,
		&city,
		&ride.PickupLat,
		&ride.PickupLng,
		&pickupAddr,
		&ride.DestinationLat,
		&ride.DestinationLng,
		&destAddr,
		&ride.VehicleType,
		&ride.PaymentMethod,
		&ride.EstimatedDistanceKm,
		&ride.EstimatedDurationMin,
		&ride.EstimatedPrice,
		&finalPrice,
		&snapshot,
		&ride.Status,
		&cancelReason,
		&cancelledBy,
		&ride.CancellationFee,
		&rating,
		&ratingComment,
		&ride.CreatedAt,
		&acceptedAt,
		&arrivedAt,
		&startedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.AdminID = adminID.String
	ride.City = city.String
	ride.PickupAddress = pickupAddr.String
	ride.DestinationAddress = destAddr.String
	ride.CancelReason = cancelReason.String
	ride.CancelledBy = domain.Role(cancelledBy.String)
	ride.RatingComment = ratingComment.String
	if rating.Valid {
		ride.Rating = int(rating.Int16)
	}
	if finalPrice.Valid {
		price := finalPrice.Int64
		ride.FinalPrice = &price
	}
	if ride.Tariff, err = decodeTariff(snapshot); err != nil {
		return nil, err
	}
	ride.AcceptedAt = timeOrZero(acceptedAt)
	ride.ArrivedAt = timeOrZero(arrivedAt)
	ride.StartedAt = timeOrZero(startedAt)
	ride.CompletedAt = timeOrZero(completedAt)
	ride.CancelledAt = timeOrZero(cancelledAt)

	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, passenger_id, driver_id, admin_id, city,
			pickup_lat, pickup_lng, pickup_address, destination_lat, destination_lng, destination_address,
			vehicle_type, payment_method, estimated_distance_km, estimated_duration_min, estimated_price,
			tariff_snapshot, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	snapshot, err := encodeTariff(ride.Tariff)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		ride.ID,
		ride.PassengerID,
		nullString(ride.DriverID),
		nullString(ride.AdminID),
		nullString(ride.City),
		ride.PickupLat,
		ride.PickupLng,
		nullString(ride.PickupAddress),
		ride.DestinationLat,
		ride.DestinationLng,
		nullString(ride.DestinationAddress),
		ride.VehicleType,
		ride.PaymentMethod,
		ride.EstimatedDistanceKm,
		ride.EstimatedDurationMin,
		ride.EstimatedPrice,
		snapshot,
		ride.Status,
		ride.CreatedAt,
	)
	return mapWriteError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a ride and locks its row.
func (r *RideRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1 FOR UPDATE`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// List retrieves rides matching the filter.
func (r *RideRepository) List(ctx context.Context, filter repository.RideFilter) ([]*domain.Ride, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.PassengerID != "" {
		where = append(where, "passenger_id = "+arg(filter.PassengerID))
	}
	if filter.ScopeSet {
		where = append(where, "admin_id IS NOT DISTINCT FROM "+arg(nullString(filter.AdminID)))
	}
	if filter.DriverID != "" {
		own := "driver_id = " + arg(filter.DriverID)
		if filter.OpenFor != nil {
			open := fmt.Sprintf("(status = 'pending' AND driver_id IS NULL AND vehicle_type = %s AND admin_id IS NOT DISTINCT FROM %s)",
				arg(filter.OpenFor.VehicleType), arg(nullString(filter.OpenFor.AdminID)))
			own = "(" + own + " OR " + open + ")"
		}
		where = append(where, own)
	}

	query := `SELECT ` + rideColumns + ` FROM rides`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ` + arg(limitOrDefault(filter.Limit))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Claim assigns a driver to a pending ride with a compare-and-swap update.
func (r *RideRepository) Claim(ctx context.Context, rideID, driverID string, at time.Time) error {
	query := `
		UPDATE rides
		SET driver_id = $1, status = 'accepted', accepted_at = $2
		WHERE id = $3 AND status = 'pending' AND driver_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, driverID, at, rideID)
	if err != nil {
		return mapWriteError(err)
	}
	return expectOneRow(result)
}

// Transition writes the ride's status and settlement fields conditionally.
func (r *RideRepository) Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	query := `
		UPDATE rides
		SET status = $1, final_price = $2, cancel_reason = $3, cancelled_by = $4, cancellation_fee = $5,
			arrived_at = $6, started_at = $7, completed_at = $8, cancelled_at = $9
		WHERE id = $10 AND status = $11
	`

	var finalPrice sql.NullInt64
	if ride.FinalPrice != nil {
		finalPrice = sql.NullInt64{Int64: *ride.FinalPrice, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query,
		ride.Status,
		finalPrice,
		nullString(ride.CancelReason),
		nullString(string(ride.CancelledBy)),
		ride.CancellationFee,
		nullTime(ride.ArrivedAt),
		nullTime(ride.StartedAt),
		nullTime(ride.CompletedAt),
		nullTime(ride.CancelledAt),
		ride.ID,
		from,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// HasActiveRide reports whether the driver holds an active ride.
func (r *RideRepository) HasActiveRide(ctx context.Context, driverID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM rides WHERE driver_id = $1 AND status = ANY($2))`

	statuses := make([]string, 0, len(domain.ActiveRideStatuses))
	for _, s := range domain.ActiveRideStatuses {
		statuses = append(statuses, string(s))
	}

	var exists bool
	err := r.q.QueryRowContext(ctx, query, driverID, pq.Array(statuses)).Scan(&exists)
	return exists, err
}

// SaveRating stores the passenger's rating once.
func (r *RideRepository) SaveRating(ctx context.Context, rideID string, rating int, comment string) error {
	query := `
		UPDATE rides SET rating = $1, rating_comment = $2
		WHERE id = $3 AND status = 'completed' AND rating IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, rating, nullString(comment), rideID)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// AppendEvent records a status transition.
func (r *RideRepository) AppendEvent(ctx context.Context, event *domain.RideEvent) error {
	query := `
		INSERT INTO ride_events (id, ride_id, from_status, to_status, actor_role, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		event.ID,
		event.RideID,
		event.From,
		event.To,
		event.ActorRole,
		event.ActorID,
		nullString(event.Reason),
		event.CreatedAt,
	)
	return err
}

// expectOneRow turns a zero-row conditional update into ErrConflict.
func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrConflict
	}
	return nil
}
