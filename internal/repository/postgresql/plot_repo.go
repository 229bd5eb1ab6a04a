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

type pgPlotRepository struct {
	db dbtx
}

const plotColumns = `id, name, address, pin_code, price_per_unit, num_units, created_by, created_at, updated_at`

func (r *pgPlotRepository) Create(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
	query := `INSERT INTO plots (name, address, pin_code, price_per_unit, num_units, created_by)
	           VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		plot.Name, plot.Address, plot.PinCode, plot.PricePerUnit, plot.NumUnits, plot.CreatedBy,
	).Scan(&plot.ID, &plot.CreatedAt, &plot.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("PlotRepository.Create: %w", err)
	}
	plot.CreatedAt = plot.CreatedAt.In(time.UTC)
	plot.UpdatedAt = plot.UpdatedAt.In(time.UTC)
	return plot, nil
}

func (r *pgPlotRepository) FindByID(ctx context.Context, id int) (*domain.Plot, error) {
	plot, err := scanPlot(r.db.QueryRowContext(ctx, `SELECT `+plotColumns+` FROM plots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PlotRepository.FindByID: %w", err)
	}
	return plot, nil
}

func (r *pgPlotRepository) FindAll(ctx context.Context) ([]domain.Plot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+plotColumns+` FROM plots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("PlotRepository.FindAll: %w", err)
	}
	defer rows.Close()

	var plots []domain.Plot
	for rows.Next() {
		plot, err := scanPlot(rows)
		if err != nil {
			return nil, fmt.Errorf("PlotRepository.FindAll (scanning row): %w", err)
		}
		plots = append(plots, *plot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("PlotRepository.FindAll (rows error): %w", err)
	}
	return plots, nil
}

func (r *pgPlotRepository) Update(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
	query := `UPDATE plots SET name = $1, address = $2, pin_code = $3, price_per_unit = $4, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $5 RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query, plot.Name, plot.Address, plot.PinCode, plot.PricePerUnit, plot.ID).Scan(&plot.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PlotRepository.Update: %w", err)
	}
	plot.UpdatedAt = plot.UpdatedAt.In(time.UTC)
	return plot, nil
}

func (r *pgPlotRepository) SyncUnitCount(ctx context.Context, id int) error {
	query := `UPDATE plots SET num_units = (SELECT COUNT(*) FROM slots WHERE plot_id = $1), updated_at = CURRENT_TIMESTAMP
	           WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("PlotRepository.SyncUnitCount: %w", err)
	}
	return expectOneRow(result, "PlotRepository.SyncUnitCount")
}

func (r *pgPlotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM plots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("PlotRepository.Delete: %w", err)
	}
	return expectOneRow(result, "PlotRepository.Delete")
}

func scanPlot(row rowScanner) (*domain.Plot, error) {
	plot := &domain.Plot{}
	if err := row.Scan(&plot.ID, &plot.Name, &plot.Address, &plot.PinCode, &plot.PricePerUnit,
		&plot.NumUnits, &plot.CreatedBy, &plot.CreatedAt, &plot.UpdatedAt); err != nil {
		return nil, err
	}
	plot.CreatedAt = plot.CreatedAt.In(time.UTC)
	plot.UpdatedAt = plot.UpdatedAt.In(time.UTC)
	return plot, nil
}

func expectOneRow(result sql.Result, op string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s (checking rows affected): %w", op, err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
