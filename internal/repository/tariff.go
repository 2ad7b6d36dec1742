package repository

import (
	"context"

	"taptapgo/internal/domain"
)

// TariffRepository defines the persistence operations for tariffs.
type TariffRepository interface {
	// Get retrieves the tariff stored for a scope.
	Get(ctx context.Context, scope domain.TariffScope, scopeID string) (*domain.Tariff, error)

	// Upsert stores the tariff, bumping its version. Version and UpdatedAt
	// are written back into t.
	Upsert(ctx context.Context, t *domain.Tariff) error
}
