package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
)

// WalletRepository is a PostgreSQL implementation of repository.WalletRepository.
type WalletRepository struct {
	q Querier
}

// NewWalletRepository creates a new PostgreSQL wallet repository.
func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{q: db}
}

// Lock ensures the wallet row exists and locks it with SELECT ... FOR UPDATE.
// Outside a transaction the lock is released immediately.
func (r *WalletRepository) Lock(ctx context.Context, driverID string) (*domain.WalletState, error) {
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO wallets (driver_id) VALUES ($1) ON CONFLICT (driver_id) DO NOTHING`,
		driverID,
	); err != nil {
		return nil, err
	}

	query := `SELECT driver_id, frozen, frozen_reason, frozen_at FROM wallets WHERE driver_id = $1 FOR UPDATE`
	return r.scanState(r.q.QueryRowContext(ctx, query, driverID))
}

// GetState reads the wallet row without locking.
func (r *WalletRepository) GetState(ctx context.Context, driverID string) (*domain.WalletState, error) {
	query := `SELECT driver_id, frozen, frozen_reason, frozen_at FROM wallets WHERE driver_id = $1`
	state, err := r.scanState(r.q.QueryRowContext(ctx, query, driverID))
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.WalletState{DriverID: driverID}, nil
	}
	return state, err
}

func (r *WalletRepository) scanState(row *sql.Row) (*domain.WalletState, error) {
	var state domain.WalletState
	var reason sql.NullString
	var frozenAt sql.NullTime

	if err := row.Scan(&state.DriverID, &state.Frozen, &reason, &frozenAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	state.FrozenReason = reason.String
	state.FrozenAt = timeOrZero(frozenAt)
	return &state, nil
}

// Freeze marks the wallet as failing integrity checks.
func (r *WalletRepository) Freeze(ctx context.Context, driverID, reason string, at time.Time) error {
	query := `
		INSERT INTO wallets (driver_id, frozen, frozen_reason, frozen_at) VALUES ($1, TRUE, $2, $3)
		ON CONFLICT (driver_id) DO UPDATE SET frozen = TRUE, frozen_reason = $2, frozen_at = $3
	`
	_, err := r.q.ExecContext(ctx, query, driverID, reason, at)
	return err
}

// Append writes a ledger entry.
func (r *WalletRepository) Append(ctx context.Context, tx *domain.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (id, driver_id, type, amount, ride_id, retrait_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		tx.ID,
		tx.DriverID,
		tx.Type,
		tx.Amount,
		nullString(tx.RideID),
		nullString(tx.RetraitID),
		nullString(tx.Note),
		tx.CreatedAt,
	)
	return mapWriteError(err)
}

// Totals aggregates the driver's ledger in a single pass.
func (r *WalletRepository) Totals(ctx context.Context, driverID string, holdingSince time.Time) (domain.LedgerTotals, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'ride_credit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'adjustment'), 0),
			COALESCE(SUM(-amount) FILTER (WHERE type = 'withdrawal_debit'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal_refund'), 0),
			COALESCE(SUM(amount) FILTER (WHERE type = 'ride_credit' AND created_at > $2), 0),
			COUNT(*) FILTER (WHERE
				(type IN ('ride_credit', 'withdrawal_refund') AND amount <= 0) OR
				(type = 'withdrawal_debit' AND amount >= 0) OR
				(type = 'adjustment' AND amount = 0))
		FROM wallet_transactions WHERE driver_id = $1
	`

	var t domain.LedgerTotals
	err := r.q.QueryRowContext(ctx, query, driverID, holdingSince).Scan(
		&t.Credits,
		&t.Adjustments,
		&t.Debits,
		&t.Refunds,
		&t.Holding,
		&t.Anomalies,
	)
	return t, err
}

// ListTransactions returns the driver's entries, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, driverID string, limit int) ([]*domain.WalletTransaction, error) {
	query := `
		SELECT id, driver_id, type, amount, ride_id, retrait_id, note, created_at
		FROM wallet_transactions WHERE driver_id = $1
		ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, driverID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*domain.WalletTransaction
	for rows.Next() {
		var tx domain.WalletTransaction
		var rideID, retraitID, note sql.NullString
		if err := rows.Scan(
			&tx.ID,
			&tx.DriverID,
			&tx.Type,
			&tx.Amount,
			&rideID,
			&retraitID,
			&note,
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		tx.RideID = rideID.String
		tx.RetraitID = retraitID.String
		tx.Note = note.String
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}
