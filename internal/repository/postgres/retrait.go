package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
)

// RetraitRepository is a PostgreSQL implementation of repository.RetraitRepository.
type RetraitRepository struct {
	q Querier
}

// NewRetraitRepository creates a new PostgreSQL withdrawal repository.
func NewRetraitRepository(db *sql.DB) *RetraitRepository {
	return &RetraitRepository{q: db}
}

const retraitColumns = `r.id, r.chauffeur_id, r.montant, r.frais, r.montant_net, r.methode,
	r.numero_compte, r.bank_name, r.bank_account_name, r.bank_account_number,
	r.type_retrait, r.statut, r.date_demande, r.date_traitement, r.traite_par, r.motif_annulation`

func scanRetrait(row rowScanner, extra ...any) (*domain.Retrait, error) {
	var r domain.Retrait
	var (
		numero, bankName, bankAccountName, bankAccountNumber sql.NullString
		traitePar, motif                                     sql.NullString
		dateTraitement                                       sql.NullTime
	)

	dest := []any{
		&r.ID,
		&r.ChauffeurID,
		&r.Montant,
		&r.Frais,
		&r.MontantNet,
		&r.Methode,
		&numero,
		&bankName,
		&bankAccountName,
		&bankAccountNumber,
		&r.Type,
		&r.Statut,
		&r.DateDemande,
		&dateTraitement,
		&traitePar,
		&motif,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	r.NumeroCompte = numero.String
	r.BankName = bankName.String
	r.BankAccountName = bankAccountName.String
	r.BankAccountNumber = bankAccountNumber.String
	r.DateTraitement = timeOrZero(dateTraitement)
	r.TraitePar = traitePar.String
	r.MotifAnnulation = motif.String
	return &r, nil
}

// Create persists a new withdrawal.
func (s *RetraitRepository) Create(ctx context.Context, r *domain.Retrait) error {
	query := `
		INSERT INTO retraits (id, chauffeur_id, montant, frais, montant_net, methode,
			numero_compte, bank_name, bank_account_name, bank_account_number,
			type_retrait, statut, date_demande)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.q.ExecContext(ctx, query,
		r.ID,
		r.ChauffeurID,
		r.Montant,
		r.Frais,
		r.MontantNet,
		r.Methode,
		nullString(r.NumeroCompte),
		nullString(r.BankName),
		nullString(r.BankAccountName),
		nullString(r.BankAccountNumber),
		r.Type,
		r.Statut,
		r.DateDemande,
	)
	return mapWriteError(err)
}

// GetByID retrieves a withdrawal by ID.
func (s *RetraitRepository) GetByID(ctx context.Context, id string) (*domain.Retrait, error) {
	query := `SELECT ` + retraitColumns + ` FROM retraits r WHERE r.id = $1`
	return scanRetrait(s.q.QueryRowContext(ctx, query, id))
}

// GetByIDForUpdate retrieves a withdrawal and locks its row.
func (s *RetraitRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Retrait, error) {
	query := `SELECT ` + retraitColumns + ` FROM retraits r WHERE r.id = $1 FOR UPDATE`
	return scanRetrait(s.q.QueryRowContext(ctx, query, id))
}

// UpdateStatut writes the new status if the stored one still equals from.
func (s *RetraitRepository) UpdateStatut(ctx context.Context, r *domain.Retrait, from domain.StatutRetrait) error {
	query := `
		UPDATE retraits
		SET statut = $1, date_traitement = $2, traite_par = $3, motif_annulation = $4
		WHERE id = $5 AND statut = $6
	`

	result, err := s.q.ExecContext(ctx, query,
		r.Statut,
		nullTime(r.DateTraitement),
		nullString(r.TraitePar),
		nullString(r.MotifAnnulation),
		r.ID,
		from,
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// LatestActive returns the driver's most recent non-cancelled withdrawal.
func (s *RetraitRepository) LatestActive(ctx context.Context, driverID string) (*domain.Retrait, error) {
	query := `
		SELECT ` + retraitColumns + ` FROM retraits r
		WHERE r.chauffeur_id = $1 AND r.statut <> 'annule'
		ORDER BY GREATEST(r.date_demande, COALESCE(r.date_traitement, r.date_demande)) DESC
		LIMIT 1
	`

	r, err := scanRetrait(s.q.QueryRowContext(ctx, query, driverID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// ListByDriver returns the driver's withdrawals, newest first.
func (s *RetraitRepository) ListByDriver(ctx context.Context, driverID string, limit int) ([]*domain.Retrait, error) {
	query := `
		SELECT ` + retraitColumns + ` FROM retraits r
		WHERE r.chauffeur_id = $1
		ORDER BY r.date_demande DESC LIMIT $2
	`

	rows, err := s.q.QueryContext(ctx, query, driverID, limitOrDefault(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retraits []*domain.Retrait
	for rows.Next() {
		r, err := scanRetrait(rows)
		if err != nil {
			return nil, err
		}
		retraits = append(retraits, r)
	}
	return retraits, rows.Err()
}

// List returns withdrawals joined with the driver's name and phone.
func (s *RetraitRepository) List(ctx context.Context, filter repository.RetraitFilter) ([]*domain.Retrait, error) {
	where, args := retraitConditions(filter, true)
	args = append(args, limitOrDefault(filter.Limit))

	query := `
		SELECT ` + retraitColumns + `, COALESCE(d.name, ''), COALESCE(d.phone, '')
		FROM retraits r LEFT JOIN drivers d ON d.id = r.chauffeur_id` +
		where + fmt.Sprintf(` ORDER BY r.date_demande DESC LIMIT $%d`, len(args))

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var retraits []*domain.Retrait
	for rows.Next() {
		var nom, phone string
		r, err := scanRetrait(rows, &nom, &phone)
		if err != nil {
			return nil, err
		}
		r.ChauffeurNom = nom
		r.ChauffeurPhone = phone
		retraits = append(retraits, r)
	}
	return retraits, rows.Err()
}

// Stats aggregates the pending queue and withdrawals processed since dayStart.
// Only the scope of the filter applies; status and amount filters do not.
func (s *RetraitRepository) Stats(ctx context.Context, filter repository.RetraitFilter, dayStart time.Time) (domain.RetraitStats, error) {
	where, args := retraitConditions(filter, false)
	args = append(args, dayStart)
	day := fmt.Sprintf("$%d", len(args))

	query := `
		SELECT
			COUNT(*) FILTER (WHERE r.statut = 'en_attente'),
			COALESCE(SUM(r.montant) FILTER (WHERE r.statut = 'en_attente'), 0),
			COUNT(*) FILTER (WHERE r.statut = 'traite' AND r.date_traitement >= ` + day + `),
			COALESCE(SUM(r.montant) FILTER (WHERE r.statut = 'traite' AND r.date_traitement >= ` + day + `), 0)
		FROM retraits r LEFT JOIN drivers d ON d.id = r.chauffeur_id` + where

	var stats domain.RetraitStats
	err := s.q.QueryRowContext(ctx, query, args...).Scan(
		&stats.EnAttenteCount,
		&stats.EnAttenteTotal,
		&stats.TraitesAujourdhuiCount,
		&stats.TraitesAujourdhuiTotal,
	)
	return stats, err
}

func retraitConditions(filter repository.RetraitFilter, withValues bool) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if withValues {
		if filter.Statut != "" {
			where = append(where, "r.statut = "+arg(filter.Statut))
		}
		if filter.Methode != "" {
			where = append(where, "r.methode = "+arg(filter.Methode))
		}
		if filter.MinMontant > 0 {
			where = append(where, "r.montant >= "+arg(filter.MinMontant))
		}
	}
	if filter.ScopeSet {
		where = append(where, "d.admin_id IS NOT DISTINCT FROM "+arg(nullString(filter.AdminID)))
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}
