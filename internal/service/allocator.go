package service

import (
	"context"
	"errors"
	"fmt"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
)

// SlotAllocator holds and releases single slots of a plot. It operates on
// whatever store it is handed, normally the transactional view of the caller.
type SlotAllocator struct{}

func NewSlotAllocator() *SlotAllocator {
	return &SlotAllocator{}
}

// Allocate marks the first vacant slot of the plot, in insertion order, as
// occupied by userID.
func (a *SlotAllocator) Allocate(ctx context.Context, store repository.Store, plotID, userID int) (*domain.Slot, error) {
	slot, err := store.Slots().AllocateVacant(ctx, plotID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w in plot %d", ErrNoVacancy, plotID)
		}
		return nil, fmt.Errorf("SlotAllocator.Allocate: %w", err)
	}
	return slot, nil
}

// Release returns an occupied slot to vacant. Releasing a vacant slot is an
// ErrInvalidState, never a silent no-op.
func (a *SlotAllocator) Release(ctx context.Context, store repository.Store, slotID int) (*domain.Slot, error) {
	slot, err := store.Slots().Release(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: slot %d is already vacant", ErrInvalidState, slotID)
		}
		return nil, notFound(err, "SlotAllocator.Release", "slot", slotID)
	}
	return slot, nil
}

func (a *SlotAllocator) IsPlotFullyVacant(ctx context.Context, store repository.Store, plotID int) (bool, error) {
	occ, err := store.Slots().CountByPlot(ctx, plotID)
	if err != nil {
		return false, fmt.Errorf("SlotAllocator.IsPlotFullyVacant: %w", err)
	}
	return occ.Occupied == 0, nil
}
