package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/fleet-ledger/internal/ledger"
)

// querier is the subset shared by *sql.DB and *sql.Tx, so every repo runs
// unchanged inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ledger.Store on MySQL.
type Store struct {
	db *sql.DB // nil when bound to a transaction

	*UserRepo
	*VehicleRepo
	*JourneyRepo
	*ExpenseRepo
	*SalaryRepo
	*EmiRepo
	*TokenRepo
}

var _ ledger.Store = (*Store)(nil)

func bind(q querier) *Store {
	return &Store{
		UserRepo:    &UserRepo{q: q},
		VehicleRepo: &VehicleRepo{q: q},
		JourneyRepo: &JourneyRepo{q: q},
		ExpenseRepo: &ExpenseRepo{q: q},
		SalaryRepo:  &SalaryRepo{q: q},
		EmiRepo:     &EmiRepo{q: q},
		TokenRepo:   &TokenRepo{q: q},
	}
}

// NewStore returns a Store backed by the connection pool.
func NewStore(db *sql.DB) *Store {
	s := bind(db)
	s.db = db
	return s
}

// WithinTx runs fn inside a single database transaction.  The transaction
// commits when fn returns nil and rolls back otherwise.  Calling WithinTx
// on a transaction-bound store joins the running transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ledger.Store) error) (err error) {
	if s.db == nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(bind(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
