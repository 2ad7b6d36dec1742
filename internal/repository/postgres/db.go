package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"taptapgo/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier              = (*sql.DB)(nil)
	_ Querier              = (*sql.Tx)(nil)
	_ repository.TxManager = (*TxManager)(nil)
)

const uniqueViolation = "23505"

// NewRepositories binds every repository to the connection pool.
func NewRepositories(db *sql.DB) repository.Repositories {
	return bind(db)
}

func bind(q Querier) repository.Repositories {
	return repository.Repositories{
		Rides:    &RideRepository{q: q},
		Drivers:  &DriverRepository{q: q},
		Tariffs:  &TariffRepository{q: q},
		Wallets:  &WalletRepository{q: q},
		Retraits: &RetraitRepository{q: q},
	}
}

// TxManager opens transactions and hands out transaction-scoped repositories.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx runs fn in a READ COMMITTED transaction. Row locks taken by the
// repositories (FOR UPDATE) serialize concurrent writers.
func (m *TxManager) WithinTx(ctx context.Context, fn func(repos repository.Repositories) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(bind(tx)); err != nil {
		return err
	}
	return tx.Commit()
}

// mapWriteError converts driver errors into repository errors.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func timeOrZero(t sql.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
