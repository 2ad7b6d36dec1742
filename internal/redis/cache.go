package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"taptapgo/internal/domain"
)

// TariffCacheTTL bounds how stale a cached tariff can be on another instance.
const TariffCacheTTL = 5 * time.Minute

const tariffCachePrefix = "cache:tariff:"

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client redis.Cmdable
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client redis.Cmdable) *CacheStore {
	return &CacheStore{client: client}
}

// CachedTariff is the cached form of a stored tariff.
type CachedTariff struct {
	Scope            string    `json:"scope"`
	ScopeID          string    `json:"scope_id"`
	BaseFareMoto     float64   `json:"base_fare_moto"`
	BaseFareCar      float64   `json:"base_fare_car"`
	PricePerKmMoto   float64   `json:"price_per_km_moto"`
	PricePerKmCar    float64   `json:"price_per_km_car"`
	PricePerMinMoto  float64   `json:"price_per_min_moto"`
	PricePerMinCar   float64   `json:"price_per_min_car"`
	SurgeMultiplier  float64   `json:"surge_multiplier"`
	SystemCommission float64   `json:"system_commission"`
	Version          int       `json:"version"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func tariffKey(scope domain.TariffScope, scopeID string) string {
	return tariffCachePrefix + string(scope) + ":" + scopeID
}

// GetTariff retrieves a tariff from cache. A miss returns nil, nil.
func (s *CacheStore) GetTariff(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error) {
	data, err := s.client.Get(ctx, tariffKey(scope, scopeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var c CachedTariff
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &domain.Tariff{
		Scope:            domain.TariffScope(c.Scope),
		ScopeID:          c.ScopeID,
		BaseFareMoto:     c.BaseFareMoto,
		BaseFareCar:      c.BaseFareCar,
		PricePerKmMoto:   c.PricePerKmMoto,
		PricePerKmCar:    c.PricePerKmCar,
		PricePerMinMoto:  c.PricePerMinMoto,
		PricePerMinCar:   c.PricePerMinCar,
		SurgeMultiplier:  c.SurgeMultiplier,
		SystemCommission: c.SystemCommission,
		Version:          c.Version,
		UpdatedAt:        c.UpdatedAt,
	}, nil
}

// SetTariff stores a tariff in cache.
func (s *CacheStore) SetTariff(ctx context.Context, t *domain.Tariff) error {
	data, err := json.Marshal(CachedTariff{
		Scope:            string(t.Scope),
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
		UpdatedAt:        t.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tariffKey(t.Scope, t.ScopeID), data, TariffCacheTTL).Err()
}

// InvalidateTariff removes a tariff from cache.
func (s *CacheStore) InvalidateTariff(ctx context.Context, scope domain.TariffScope, scopeID string) error {
	return s.client.Del(ctx, tariffKey(scope, scopeID)).Err()
}
