package repository

import (
	"context"
	"time"

	"taptapgo/internal/domain"
)

// WalletRepository defines the persistence operations for the driver ledger.
type WalletRepository interface {
	// Lock creates the driver's wallet row if needed and locks it until the
	// surrounding transaction ends. All ledger writes for a driver happen
	// under this lock.
	Lock(ctx context.Context, driverID string) (*domain.WalletState, error)

	// GetState reads the wallet row without locking. A missing row yields a
	// zero state.
	GetState(ctx context.Context, driverID string) (*domain.WalletState, error)

	// Freeze marks the wallet as failing integrity checks.
	Freeze(ctx context.Context, driverID, reason string, at time.Time) error

	// Append writes a ledger entry.
	Append(ctx context.Context, tx *domain.WalletTransaction) error

	// Totals aggregates the driver's ledger. Credits created after
	// holdingSince are reported as Holding.
	Totals(ctx context.Context, driverID string, holdingSince time.Time) (domain.LedgerTotals, error)

	// ListTransactions returns the driver's entries, newest first.
	ListTransactions(ctx context.Context, driverID string, limit int) ([]*domain.WalletTransaction, error)
}
