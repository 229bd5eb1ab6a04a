package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
)

type pgSlotRepository struct {
	db dbtx
}

const slotColumns = `id, plot_id, slot_number, status, occupied_by, created_at, updated_at`

func (r *pgSlotRepository) CreateBatch(ctx context.Context, plotID, firstNumber, count int) ([]domain.Slot, error) {
	if count <= 0 {
		return nil, nil
	}
	query := `INSERT INTO slots (plot_id, slot_number, status)
	           SELECT $1, n, $2 FROM generate_series($3::int, $4::int) AS n
	           RETURNING ` + slotColumns
	rows, err := r.db.QueryContext(ctx, query, plotID, domain.SlotVacant, firstNumber, firstNumber+count-1)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "slots_plot_id_slot_number_key" {
			return nil, fmt.Errorf("%w: slot numbers %d..%d overlap in plot %d", repository.ErrDuplicateEntry, firstNumber, firstNumber+count-1, plotID)
		}
		return nil, fmt.Errorf("SlotRepository.CreateBatch: %w", err)
	}
	slots, err := collectSlots(rows, "SlotRepository.CreateBatch")
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "slots_plot_id_slot_number_key" {
			return nil, fmt.Errorf("%w: slot numbers %d..%d overlap in plot %d", repository.ErrDuplicateEntry, firstNumber, firstNumber+count-1, plotID)
		}
		return nil, err
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

func (r *pgSlotRepository) FindByID(ctx context.Context, id int) (*domain.Slot, error) {
	slot, err := scanSlot(r.db.QueryRowContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SlotRepository.FindByID: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) FindByPlotID(ctx context.Context, plotID int) ([]domain.Slot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+slotColumns+` FROM slots WHERE plot_id = $1 ORDER BY id`, plotID)
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.FindByPlotID: %w", err)
	}
	return collectSlots(rows, "SlotRepository.FindByPlotID")
}

// AllocateVacant locks the first vacant slot by id, skipping rows held by
// concurrent allocations, and marks it occupied in the same statement.
func (r *pgSlotRepository) AllocateVacant(ctx context.Context, plotID, userID int) (*domain.Slot, error) {
	query := `UPDATE slots SET status = $1, occupied_by = $2, updated_at = CURRENT_TIMESTAMP
	           WHERE id = (
	               SELECT id FROM slots
	               WHERE plot_id = $3 AND status = $4
	               ORDER BY id
	               LIMIT 1
	               FOR UPDATE SKIP LOCKED
	           ) AND status = $4
	           RETURNING ` + slotColumns
	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, domain.SlotOccupied, userID, plotID, domain.SlotVacant))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("SlotRepository.AllocateVacant: %w", err)
	}
	return slot, nil
}

func (r *pgSlotRepository) Release(ctx context.Context, id int) (*domain.Slot, error) {
	query := `UPDATE slots SET status = $1, occupied_by = NULL, updated_at = CURRENT_TIMESTAMP
	           WHERE id = $2 AND status = $3
	           RETURNING ` + slotColumns
	slot, err := scanSlot(r.db.QueryRowContext(ctx, query, domain.SlotVacant, id, domain.SlotOccupied))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("SlotRepository.Release: %w", err)
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: slot %d is already vacant", repository.ErrConflict, id)
}

func (r *pgSlotRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE id = $1 AND status = $2`, id, domain.SlotVacant)
	if err != nil {
		return fmt.Errorf("SlotRepository.Delete: %w", err)
	}
	err = expectOneRow(result, "SlotRepository.Delete")
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: slot %d is occupied", repository.ErrConflict, id)
}

func (r *pgSlotRepository) DeleteVacantByPlotID(ctx context.Context, plotID int) (int, error) {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM slots WHERE plot_id = $1 AND status = $2`, plotID, domain.SlotVacant); err != nil {
		return 0, fmt.Errorf("SlotRepository.DeleteVacantByPlotID: %w", err)
	}
	var remaining int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM slots WHERE plot_id = $1`, plotID).Scan(&remaining); err != nil {
		return 0, fmt.Errorf("SlotRepository.DeleteVacantByPlotID (counting): %w", err)
	}
	return remaining, nil
}

func (r *pgSlotRepository) CountByPlot(ctx context.Context, plotID int) (domain.Occupancy, error) {
	var occ domain.Occupancy
	query := `SELECT COUNT(*) FILTER (WHERE status = $2), COUNT(*) FILTER (WHERE status = $3)
	           FROM slots WHERE plot_id = $1`
	if err := r.db.QueryRowContext(ctx, query, plotID, domain.SlotOccupied, domain.SlotVacant).Scan(&occ.Occupied, &occ.Vacant); err != nil {
		return occ, fmt.Errorf("SlotRepository.CountByPlot: %w", err)
	}
	return occ, nil
}

func (r *pgSlotRepository) CountAll(ctx context.Context) ([]domain.PlotOccupancy, error) {
	query := `SELECT p.id,
	                 COUNT(s.id) FILTER (WHERE s.status = $1),
	                 COUNT(s.id) FILTER (WHERE s.status = $2)
	           FROM plots p LEFT JOIN slots s ON s.plot_id = p.id
	           GROUP BY p.id ORDER BY p.id`
	rows, err := r.db.QueryContext(ctx, query, domain.SlotOccupied, domain.SlotVacant)
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.CountAll: %w", err)
	}
	defer rows.Close()

	var result []domain.PlotOccupancy
	for rows.Next() {
		var po domain.PlotOccupancy
		if err := rows.Scan(&po.PlotID, &po.Occupied, &po.Vacant); err != nil {
			return nil, fmt.Errorf("SlotRepository.CountAll (scanning row): %w", err)
		}
		result = append(result, po)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SlotRepository.CountAll (rows error): %w", err)
	}
	return result, nil
}

func (r *pgSlotRepository) NextSlotNumber(ctx context.Context, plotID int) (int, error) {
	var next int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(slot_number), 0) + 1 FROM slots WHERE plot_id = $1`, plotID).Scan(&next); err != nil {
		return 0, fmt.Errorf("SlotRepository.NextSlotNumber: %w", err)
	}
	return next, nil
}

func scanSlot(row rowScanner) (*domain.Slot, error) {
	slot := &domain.Slot{}
	if err := row.Scan(&slot.ID, &slot.PlotID, &slot.SlotNumber, &slot.Status, &slot.OccupiedBy, &slot.CreatedAt, &slot.UpdatedAt); err != nil {
		return nil, err
	}
	slot.CreatedAt = slot.CreatedAt.In(time.UTC)
	slot.UpdatedAt = slot.UpdatedAt.In(time.UTC)
	return slot, nil
}

func collectSlots(rows *sql.Rows, op string) ([]domain.Slot, error) {
	defer rows.Close()
	var slots []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s (scanning row): %w", op, err)
		}
		slots = append(slots, *slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows error): %w", op, err)
	}
	return slots, nil
}
