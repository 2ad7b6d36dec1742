package repository

import (
	"context"
	"time"

	"taptapgo/internal/domain"
)

// RetraitFilter narrows the admin withdrawal queue.
type RetraitFilter struct {
	Statut     domain.StatutRetrait
	Methode    domain.MethodeRetrait
	MinMontant int64
	// AdminID restricts to drivers of one brand when ScopeSet is true.
	AdminID  string
	ScopeSet bool
	Limit    int
}

// RetraitRepository defines the persistence operations for withdrawals.
type RetraitRepository interface {
	// Create persists a new withdrawal.
	Create(ctx context.Context, r *domain.Retrait) error

	// GetByID retrieves a withdrawal by ID.
	GetByID(ctx context.Context, id string) (*domain.Retrait, error)

	// GetByIDForUpdate retrieves a withdrawal and locks its row.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Retrait, error)

	// UpdateStatut writes the new status if the stored one still equals
	// from. It returns ErrConflict otherwise.
	UpdateStatut(ctx context.Context, r *domain.Retrait, from domain.StatutRetrait) error

	// LatestActive returns the driver's most recent non-cancelled
	// withdrawal, or nil if there is none.
	LatestActive(ctx context.Context, driverID string) (*domain.Retrait, error)

	// ListByDriver returns the driver's withdrawals, newest first.
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Retrait, error)

	// List returns withdrawals joined with driver name and phone.
	List(ctx context.Context, filter RetraitFilter) ([]*domain.Retrait, error)

	// Stats aggregates pending withdrawals and those processed since dayStart.
	Stats(ctx context.Context, filter RetraitFilter, dayStart time.Time) (domain.RetraitStats, error)
}
