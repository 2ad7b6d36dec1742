package repository

import (
	"context"

	"taptapgo/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// UpdatePayout replaces the driver's payout details.
	UpdatePayout(ctx context.Context, id string, payout domain.PayoutDetails) error
}
