package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
)

type PlotService struct {
	store     repository.Store
	allocator *SlotAllocator
	logger    *zap.Logger
}

func NewPlotService(store repository.Store, allocator *SlotAllocator, logger *zap.Logger) *PlotService {
	return &PlotService{store: store, allocator: allocator, logger: logger}
}

// --- Plot ---

// CreatePlot stores the plot together with one vacant slot per unit, numbered
// from 1.
func (s *PlotService) CreatePlot(ctx context.Context, actor domain.Actor, dto domain.CreatePlotDTO) (*domain.Plot, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: only admins can create plots", ErrUnauthorized)
	}
	if dto.NumUnits <= 0 {
		return nil, fmt.Errorf("%w: num_units must be positive", ErrValidation)
	}
	if dto.PricePerUnit < 0 {
		return nil, fmt.Errorf("%w: price_per_unit must not be negative", ErrValidation)
	}

	var created *domain.Plot
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plot, err := tx.Plots().Create(ctx, &domain.Plot{
			Name:         dto.Name,
			Address:      dto.Address,
			PinCode:      dto.PinCode,
			PricePerUnit: dto.PricePerUnit,
			NumUnits:     dto.NumUnits,
			CreatedBy:    actor.UserID,
		})
		if err != nil {
			return fmt.Errorf("PlotService.CreatePlot: %w", err)
		}
		if _, err := tx.Slots().CreateBatch(ctx, plot.ID, 1, dto.NumUnits); err != nil {
			return fmt.Errorf("PlotService.CreatePlot (creating slots): %w", err)
		}
		created = plot
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("plot created", zap.Int("plot_id", created.ID), zap.Int("num_units", created.NumUnits))
	return created, nil
}

func (s *PlotService) GetPlot(ctx context.Context, id int) (*domain.Plot, error) {
	plot, err := s.store.Plots().FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "PlotService.GetPlot", "plot", id)
	}
	return plot, nil
}

func (s *PlotService) ListPlots(ctx context.Context) ([]domain.Plot, error) {
	plots, err := s.store.Plots().FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("PlotService.ListPlots: %w", err)
	}
	return plots, nil
}

// UpdatePlot changes descriptive fields and the price of future bookings.
// Existing reservations keep the price they were booked at.
func (s *PlotService) UpdatePlot(ctx context.Context, actor domain.Actor, id int, dto domain.UpdatePlotDTO) (*domain.Plot, error) {
	if dto.PricePerUnit != nil && *dto.PricePerUnit < 0 {
		return nil, fmt.Errorf("%w: price_per_unit must not be negative", ErrValidation)
	}
	var updated *domain.Plot
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plot, err := tx.Plots().FindByID(ctx, id)
		if err != nil {
			return notFound(err, "PlotService.UpdatePlot", "plot", id)
		}
		if !actor.CanAccess(plot.CreatedBy) {
			return fmt.Errorf("%w: plot %d", ErrUnauthorized, id)
		}
		if dto.Name != "" {
			plot.Name = dto.Name
		}
		if dto.Address != "" {
			plot.Address = dto.Address
		}
		if dto.PinCode != "" {
			plot.PinCode = dto.PinCode
		}
		if dto.PricePerUnit != nil {
			plot.PricePerUnit = *dto.PricePerUnit
		}
		updated, err = tx.Plots().Update(ctx, plot)
		if err != nil {
			return notFound(err, "PlotService.UpdatePlot", "plot", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePlot removes a plot whose slots are all vacant, together with its
// slots. The check is repeated after the vacant slots are deleted so a
// reservation racing with the delete still blocks it.
func (s *PlotService) DeletePlot(ctx context.Context, actor domain.Actor, id int) error {
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plot, err := tx.Plots().FindByID(ctx, id)
		if err != nil {
			return notFound(err, "PlotService.DeletePlot", "plot", id)
		}
		if !actor.CanAccess(plot.CreatedBy) {
			return fmt.Errorf("%w: plot %d", ErrUnauthorized, id)
		}

		vacant, err := s.allocator.IsPlotFullyVacant(ctx, tx, id)
		if err != nil {
			return err
		}
		if !vacant {
			return fmt.Errorf("%w: plot %d has occupied slots", ErrInvalidState, id)
		}

		remaining, err := tx.Slots().DeleteVacantByPlotID(ctx, id)
		if err != nil {
			return fmt.Errorf("PlotService.DeletePlot: %w", err)
		}
		if remaining > 0 {
			return fmt.Errorf("%w: plot %d has occupied slots", ErrInvalidState, id)
		}
		if err := tx.Plots().Delete(ctx, id); err != nil {
			return notFound(err, "PlotService.DeletePlot", "plot", id)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("plot deleted", zap.Int("plot_id", id), zap.Int("actor_id", actor.UserID))
	return nil
}

// --- Slot ---

func (s *PlotService) ListSlots(ctx context.Context, plotID int) ([]domain.Slot, error) {
	if _, err := s.store.Plots().FindByID(ctx, plotID); err != nil {
		return nil, notFound(err, "PlotService.ListSlots", "plot", plotID)
	}
	slots, err := s.store.Slots().FindByPlotID(ctx, plotID)
	if err != nil {
		return nil, fmt.Errorf("PlotService.ListSlots: %w", err)
	}
	return slots, nil
}

func (s *PlotService) GetSlot(ctx context.Context, slotID int) (*domain.Slot, error) {
	slot, err := s.store.Slots().FindByID(ctx, slotID)
	if err != nil {
		return nil, notFound(err, "PlotService.GetSlot", "slot", slotID)
	}
	return slot, nil
}

// AddSlots appends count vacant slots numbered after the plot's highest slot
// number and keeps num_units in step.
func (s *PlotService) AddSlots(ctx context.Context, actor domain.Actor, plotID, count int) ([]domain.Slot, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrValidation)
	}
	var created []domain.Slot
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plot, err := tx.Plots().FindByID(ctx, plotID)
		if err != nil {
			return notFound(err, "PlotService.AddSlots", "plot", plotID)
		}
		if !actor.CanAccess(plot.CreatedBy) {
			return fmt.Errorf("%w: plot %d", ErrUnauthorized, plotID)
		}
		next, err := tx.Slots().NextSlotNumber(ctx, plotID)
		if err != nil {
			return fmt.Errorf("PlotService.AddSlots: %w", err)
		}
		created, err = tx.Slots().CreateBatch(ctx, plotID, next, count)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return fmt.Errorf("%w: %v", ErrInvalidState, err)
			}
			return fmt.Errorf("PlotService.AddSlots: %w", err)
		}
		if err := tx.Plots().SyncUnitCount(ctx, plotID); err != nil {
			return fmt.Errorf("PlotService.AddSlots (syncing unit count): %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeleteSlot removes a vacant slot and shrinks the plot's num_units.
func (s *PlotService) DeleteSlot(ctx context.Context, actor domain.Actor, slotID int) error {
	return s.store.WithTx(ctx, func(tx repository.Store) error {
		slot, err := tx.Slots().FindByID(ctx, slotID)
		if err != nil {
			return notFound(err, "PlotService.DeleteSlot", "slot", slotID)
		}
		plot, err := tx.Plots().FindByID(ctx, slot.PlotID)
		if err != nil {
			return notFound(err, "PlotService.DeleteSlot", "plot", slot.PlotID)
		}
		if !actor.CanAccess(plot.CreatedBy) {
			return fmt.Errorf("%w: plot %d", ErrUnauthorized, plot.ID)
		}
		if err := tx.Slots().Delete(ctx, slotID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: slot %d is occupied", ErrInvalidState, slotID)
			}
			return notFound(err, "PlotService.DeleteSlot", "slot", slotID)
		}
		if err := tx.Plots().SyncUnitCount(ctx, plot.ID); err != nil {
			return fmt.Errorf("PlotService.DeleteSlot (syncing unit count): %w", err)
		}
		return nil
	})
}
