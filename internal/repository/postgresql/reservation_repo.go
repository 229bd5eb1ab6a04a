package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
)

type pgReservationRepository struct {
	db dbtx
}

const reservationColumns = `id, user_id, plot_id, slot_id, status, price, start_time, end_time, created_at, updated_at`

func (r *pgReservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	query := `INSERT INTO reservations (user_id, plot_id, slot_id, status, price, start_time, created_at, updated_at)
	           VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	           RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		res.UserID, res.PlotID, res.SlotID, res.Status, res.Price, res.StartTime,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "reservations_one_active_per_slot" {
			return nil, fmt.Errorf("%w: slot %d already has an active reservation", repository.ErrDuplicateEntry, res.SlotID.Int64)
		}
		return nil, fmt.Errorf("ReservationRepository.Create: %w", err)
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}

func (r *pgReservationRepository) FindByID(ctx context.Context, id int) (*domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("ReservationRepository.FindByID: %w", err)
	}
	return res, nil
}

func (r *pgReservationRepository) FindByUserID(ctx context.Context, userID int) ([]domain.Reservation, error) {
	return r.find(ctx, "ReservationRepository.FindByUserID",
		`SELECT `+reservationColumns+` FROM reservations WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (r *pgReservationRepository) FindByPlotID(ctx context.Context, plotID int) ([]domain.Reservation, error) {
	return r.find(ctx, "ReservationRepository.FindByPlotID",
		`SELECT `+reservationColumns+` FROM reservations WHERE plot_id = $1 ORDER BY created_at DESC, id DESC`, plotID)
}

func (r *pgReservationRepository) FindAll(ctx context.Context) ([]domain.Reservation, error) {
	return r.find(ctx, "ReservationRepository.FindAll",
		`SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC, id DESC`)
}

func (r *pgReservationRepository) FindActiveBySlotID(ctx context.Context, slotID int) ([]domain.Reservation, error) {
	return r.find(ctx, "ReservationRepository.FindActiveBySlotID",
		`SELECT `+reservationColumns+` FROM reservations WHERE slot_id = $1 AND status = $2 ORDER BY id`, slotID, domain.ReservationActive)
}

func (r *pgReservationRepository) Transition(ctx context.Context, id int, to domain.ReservationStatus, endTime time.Time) (*domain.Reservation, error) {
	query := `UPDATE reservations SET status = $1, end_time = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $3 AND status = $4
	           RETURNING ` + reservationColumns
	res, err := scanReservation(r.db.QueryRowContext(ctx, query, to, endTime, id, domain.ReservationActive))
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ReservationRepository.Transition: %w", err)
	}
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: reservation %d is %s", repository.ErrConflict, id, current.Status)
}

func (r *pgReservationRepository) SumRevenue(ctx context.Context) (float64, error) {
	var total float64
	query := `SELECT COALESCE(SUM(price), 0) FROM reservations WHERE status IN ($1, $2)`
	if err := r.db.QueryRowContext(ctx, query, domain.ReservationActive, domain.ReservationCompleted).Scan(&total); err != nil {
		return 0, fmt.Errorf("ReservationRepository.SumRevenue: %w", err)
	}
	return total, nil
}

func (r *pgReservationRepository) find(ctx context.Context, op, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%s (scanning row): %w", op, err)
		}
		reservations = append(reservations, *res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows error): %w", op, err)
	}
	return reservations, nil
}

func scanReservation(row rowScanner) (*domain.Reservation, error) {
	res := &domain.Reservation{}
	if err := row.Scan(&res.ID, &res.UserID, &res.PlotID, &res.SlotID, &res.Status, &res.Price,
		&res.StartTime, &res.EndTime, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.StartTime = res.StartTime.In(time.UTC)
	if res.EndTime.Valid {
		res.EndTime.Time = res.EndTime.Time.In(time.UTC)
	}
	res.CreatedAt = res.CreatedAt.In(time.UTC)
	res.UpdatedAt = res.UpdatedAt.In(time.UTC)
	return res, nil
}
