package redis

import (
	"context"
	"time"

	"taptapgo/internal/domain"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireWalletLock(ctx context.Context, driverID string, ttl time.Duration) (*Lock, error)
	ReleaseWalletLock(ctx context.Context, lock *Lock) error
}

// TariffCacheInterface defines the interface for tariff caching.
type TariffCacheInterface interface {
	GetTariff(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error)
	SetTariff(ctx context.Context, t *domain.Tariff) error
	InvalidateTariff(ctx context.Context, scope domain.TariffScope, scopeID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface   = (*LockStore)(nil)
	_ TariffCacheInterface = (*CacheStore)(nil)
)
