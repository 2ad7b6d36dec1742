package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taptapgo/internal/domain"
	"taptapgo/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// ──────────────────────────────────────────────
// TRANSACTIONS
// ──────────────────────────────────────────────

func TestTxManager_CommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallets (driver_id)")).
		WithArgs("driver-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE driver_id = $1 FOR UPDATE")).
		WithArgs("driver-1").
		WillReturnRows(sqlmock.NewRows([]string{"driver_id", "frozen", "frozen_reason", "frozen_at"}).
			AddRow("driver-1", false, nil, nil))
	mock.ExpectCommit()

	err := NewTxManager(db).WithinTx(context.Background(), func(repos repository.Repositories) error {
		state, err := repos.Wallets.Lock(context.Background(), "driver-1")
		if err != nil {
			return err
		}
		assert.False(t, state.Frozen)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := NewTxManager(db).WithinTx(context.Background(), func(repos repository.Repositories) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ──────────────────────────────────────────────
// RIDES
// ──────────────────────────────────────────────

func TestRideRepository_ClaimConflictWhenAlreadyTaken(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND status = 'pending' AND driver_id IS NULL")).
		WithArgs("driver-2", sqlmock.AnyArg(), "ride-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Claim(context.Background(), "ride-1", "driver-2", time.Now())

	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRideRepository_ClaimDuplicateActiveRide(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE rides")).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Claim(context.Background(), "ride-1", "driver-1", time.Now())

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestRideRepository_TransitionIsConditionalOnStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepository(db)

	price := int64(500)
	ride := &domain.Ride{
		ID:          "ride-1",
		Status:      domain.RideStatusCompleted,
		FinalPrice:  &price,
		CompletedAt: time.Now(),
	}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $10 AND status = $11")).
		WithArgs("completed", int64(500), nil, nil, int64(0), nil, nil, sqlmock.AnyArg(), nil, "ride-1", "started").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Transition(context.Background(), ride, domain.RideStatusStarted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRideRepository_GetByIDDecodesSnapshot(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepository(db)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	columns := []string{
		"id", "passenger_id", "driver_id", "admin_id", "city",
		"pickup_lat", "pickup_lng", "pickup_address", "destination_lat", "destination_lng", "destination_address",
		"vehicle_type", "payment_method", "estimated_distance_km", "estimated_duration_min", "estimated_price",
		"final_price", "tariff_snapshot", "status", "cancel_reason", "cancelled_by", "cancellation_fee",
		"rating", "rating_comment", "created_at", "accepted_at", "arrived_at", "started_at", "completed_at", "cancelled_at",
	}
	snapshot := []byte(`{"scope":"city","scope_id":"Port-au-Prince","base_fare_moto":50,"base_fare_car":100,` +
		`"price_per_km_moto":25,"price_per_km_car":50,"price_per_min_moto":5,"price_per_min_car":10,` +
		`"surge_multiplier":1.5,"system_commission":15,"version":3}`)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rides WHERE id = $1")).
		WithArgs("ride-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"ride-1", "passenger-1", nil, nil, "Port-au-Prince",
			18.54, -72.33, "Champ de Mars", 18.51, -72.29, "Pétion-Ville",
			"car", "cash", 5.0, 15.0, int64(750),
			nil, snapshot, "pending", nil, nil, int64(0),
			nil, nil, created, nil, nil, nil, nil, nil,
		))

	ride, err := repo.GetByID(context.Background(), "ride-1")
	require.NoError(t, err)

	assert.Equal(t, domain.RideStatusPending, ride.Status)
	assert.Empty(t, ride.DriverID)
	assert.Nil(t, ride.FinalPrice)
	assert.Equal(t, 1.5, ride.Tariff.SurgeMultiplier)
	assert.Equal(t, 3, ride.Tariff.Version)
	assert.Equal(t, domain.VehicleCar, ride.VehicleType)
	assert.True(t, ride.AcceptedAt.IsZero())
}

func TestRideRepository_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRideRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM rides WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

// ──────────────────────────────────────────────
// WALLET
// ──────────────────────────────────────────────

func TestWalletRepository_Totals(t *testing.T) {
	db, mock := newMock(t)
	repo := NewWalletRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallet_transactions WHERE driver_id = $1")).
		WithArgs("driver-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"credits", "adjustments", "debits", "refunds", "holding", "anomalies"}).
			AddRow(int64(1700), int64(0), int64(500), int64(0), int64(0), int64(0)))

	totals, err := repo.Totals(context.Background(), "driver-1", time.Now())
	require.NoError(t, err)

	w := totals.Wallet("driver-1")
	assert.Equal(t, int64(1200), w.Balance)
	assert.Equal(t, int64(1700), w.TotalGagne)
	assert.Equal(t, int64(500), w.TotalRetire)
}

func TestWalletRepository_GetStateMissingRowIsZero(t *testing.T) {
	db, mock := newMock(t)
	repo := NewWalletRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wallets WHERE driver_id = $1")).
		WithArgs("driver-9").
		WillReturnError(sql.ErrNoRows)

	state, err := repo.GetState(context.Background(), "driver-9")
	require.NoError(t, err)
	assert.Equal(t, "driver-9", state.DriverID)
	assert.False(t, state.Frozen)
}

func TestWalletRepository_AppendDuplicateRideCredit(t *testing.T) {
	db, mock := newMock(t)
	repo := NewWalletRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO wallet_transactions")).
		WillReturnError(&pq.Error{Code: uniqueViolation})

	err := repo.Append(context.Background(), &domain.WalletTransaction{
		ID:       "tx-1",
		DriverID: "driver-1",
		Type:     domain.TxRideCredit,
		Amount:   425,
		RideID:   "ride-1",
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

// ──────────────────────────────────────────────
// RETRAITS
// ──────────────────────────────────────────────

func TestRetraitRepository_LatestActiveNoneIsNil(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRetraitRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("r.statut <> 'annule'")).
		WithArgs("driver-1").
		WillReturnError(sql.ErrNoRows)

	r, err := repo.LatestActive(context.Background(), "driver-1")
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestRetraitRepository_UpdateStatutConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRetraitRepository(db)

	r := &domain.Retrait{ID: "ret-1", Statut: domain.StatutTraite, DateTraitement: time.Now(), TraitePar: "admin-1"}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $5 AND statut = $6")).
		WithArgs("traite", sqlmock.AnyArg(), "admin-1", nil, "ret-1", "en_attente").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatut(context.Background(), r, domain.StatutEnAttente)
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestRetraitRepository_ListAppliesFiltersAndScope(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRetraitRepository(db)

	columns := []string{
		"id", "chauffeur_id", "montant", "frais", "montant_net", "methode",
		"numero_compte", "bank_name", "bank_account_name", "bank_account_number",
		"type_retrait", "statut", "date_demande", "date_traitement", "traite_par", "motif_annulation",
		"nom", "phone",
	}
	demande := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.statut = $1 AND r.methode = $2 AND r.montant >= $3 AND d.admin_id IS NOT DISTINCT FROM $4")).
		WithArgs("en_attente", "moncash", int64(1000), "admin-1", 100).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"ret-1", "driver-1", int64(1500), int64(0), int64(1500), "moncash",
			"50937000000", nil, nil, nil,
			"manuel", "en_attente", demande, nil, nil, nil,
			"Jean Pierre", "50937000000",
		))

	list, err := repo.List(context.Background(), repository.RetraitFilter{
		Statut:     domain.StatutEnAttente,
		Methode:    domain.MethodeMonCash,
		MinMontant: 1000,
		AdminID:    "admin-1",
		ScopeSet:   true,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Jean Pierre", list[0].ChauffeurNom)
	assert.Equal(t, int64(1500), list[0].Montant)
	assert.True(t, list[0].DateTraitement.IsZero())
}

// ──────────────────────────────────────────────
// DRIVERS & TARIFFS
// ──────────────────────────────────────────────

func TestDriverRepository_GetByIDMapsNullPayout(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDriverRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM drivers WHERE id = $1")).
		WithArgs("driver-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "phone", "admin_id", "vehicle_type",
			"payout_methode", "numero_compte", "bank_name", "bank_account_name", "bank_account_number",
		}).AddRow("driver-1", "Jean", "50937000000", nil, "car", nil, nil, nil, nil, nil))

	driver, err := repo.GetByID(context.Background(), "driver-1")
	require.NoError(t, err)
	assert.Empty(t, driver.AdminID)
	assert.Equal(t, domain.VehicleCar, driver.VehicleType)
	assert.False(t, driver.Payout.Complete())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverRepository_UpdatePayoutNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDriverRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE drivers")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePayout(context.Background(), "ghost", domain.PayoutDetails{
		Methode:      domain.MethodeMonCash,
		NumeroCompte: "50937000000",
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTariffRepository_UpsertReturnsVersion(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTariffRepository(db)
	updatedAt := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (scope, scope_id) DO UPDATE")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "updated_at"}).AddRow(3, updatedAt))

	tariff := domain.DefaultTariff()
	tariff.Scope, tariff.ScopeID = domain.TariffScopeCity, "Jacmel"
	require.NoError(t, repo.Upsert(context.Background(), &tariff))
	assert.Equal(t, 3, tariff.Version)
	assert.Equal(t, updatedAt, tariff.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTariffRepository_GetMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewTariffRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tariffs WHERE scope = $1 AND scope_id = $2")).
		WithArgs(domain.TariffScopeDirect, "").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), domain.TariffScopeDirect, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
