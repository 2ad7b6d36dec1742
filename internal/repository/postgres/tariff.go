package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
)

// TariffRepository is a PostgreSQL implementation of repository.TariffRepository.
type TariffRepository struct {
	q Querier
}

// NewTariffRepository creates a new PostgreSQL tariff repository.
func NewTariffRepository(db *sql.DB) *TariffRepository {
	return &TariffRepository{q: db}
}

// Get retrieves the tariff stored for a scope.
func (r *TariffRepository) Get(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error) {
	query := `
		SELECT scope, scope_id, base_fare_moto, base_fare_car, price_per_km_moto, price_per_km_car,
			price_per_min_moto, price_per_min_car, surge_multiplier, system_commission, version, updated_at
		FROM tariffs WHERE scope = $1 AND scope_id = $2
	`

	var t domain.Tariff
	err := r.q.QueryRowContext(ctx, query, scope, scopeID).Scan(
		&t.Scope,
		&t.ScopeID,
		&t.BaseFareMoto,
		&t.BaseFareCar,
		&t.PricePerKmMoto,
		&t.PricePerKmCar,
		&t.PricePerMinMoto,
		&t.PricePerMinCar,
		&t.SurgeMultiplier,
		&t.SystemCommission,
		&t.Version,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Upsert stores the tariff and bumps its version.
func (r *TariffRepository) Upsert(ctx context.Context, t *domain.Tariff) error {
	query := `
		INSERT INTO tariffs (scope, scope_id, base_fare_moto, base_fare_car, price_per_km_moto, price_per_km_car,
			price_per_min_moto, price_per_min_car, surge_multiplier, system_commission, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW())
		ON CONFLICT (scope, scope_id) DO UPDATE SET
			base_fare_moto = EXCLUDED.base_fare_moto,
			base_fare_car = EXCLUDED.base_fare_car,
			price_per_km_moto = EXCLUDED.price_per_km_moto,
			price_per_km_car = EXCLUDED.price_per_km_car,
			price_per_min_moto = EXCLUDED.price_per_min_moto,
			price_per_min_car = EXCLUDED.price_per_min_car,
			surge_multiplier = EXCLUDED.surge_multiplier,
			system_commission = EXCLUDED.system_commission,
			version = tariffs.version + 1,
			updated_at = NOW()
		RETURNING version, updated_at
	`

	return r.q.QueryRowContext(ctx, query,
		t.Scope,
		t.ScopeID,
		t.BaseFareMoto,
		t.BaseFareCar,
		t.PricePerKmMoto,
		t.PricePerKmCar,
		t.PricePerMinMoto,
		t.PricePerMinCar,
		t.SurgeMultiplier,
		t.SystemCommission,
	).Scan(&t.Version, &t.UpdatedAt)
}
