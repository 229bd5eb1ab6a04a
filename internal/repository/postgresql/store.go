package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"vehicle_parking/internal/repository"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type pgStore struct {
	db   *sql.DB
	conn dbtx
	inTx bool
}

func NewStore(db *sql.DB) repository.Store {
	return &pgStore{db: db, conn: db}
}

func (s *pgStore) Users() repository.UserRepository {
	return &pgUserRepository{db: s.conn}
}

func (s *pgStore) Plots() repository.PlotRepository {
	return &pgPlotRepository{db: s.conn}
}

func (s *pgStore) Slots() repository.SlotRepository {
	return &pgSlotRepository{db: s.conn}
}

func (s *pgStore) Reservations() repository.ReservationRepository {
	return &pgReservationRepository{db: s.conn}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&pgStore{db: s.db, conn: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
