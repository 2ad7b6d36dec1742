package postgres

import (
	"context"
	"database/sql"
	"errors"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, admin_id, vehicle_type,
			payout_methode, numero_compte, bank_name, bank_account_name, bank_account_number
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	var adminID, methode, numero, bankName, bankAccountName, bankAccountNumber sql.NullString

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&adminID,
		&driver.VehicleType,
		&methode,
		&numero,
		&bankName,
		&bankAccountName,
		&bankAccountNumber,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	driver.AdminID = adminID.String
	driver.Payout = domain.PayoutDetails{
		Methode:           domain.MethodeRetrait(methode.String),
		NumeroCompte:      numero.String,
		BankName:          bankName.String,
		BankAccountName:   bankAccountName.String,
		BankAccountNumber: bankAccountNumber.String,
	}

	return &driver, nil
}

// UpdatePayout replaces the driver's payout details.
func (r *DriverRepository) UpdatePayout(ctx context.Context, id string, payout domain.PayoutDetails) error {
	query := `
		UPDATE drivers
		SET payout_methode = $1, numero_compte = $2, bank_name = $3, bank_account_name = $4, bank_account_number = $5
		WHERE id = $6
	`

	result, err := r.q.ExecContext(ctx, query,
		nullString(string(payout.Methode)),
		nullString(payout.NumeroCompte),
		nullString(payout.BankName),
		nullString(payout.BankAccountName),
		nullString(payout.BankAccountNumber),
		id,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
