package repository

import (
	"context"
	"errors"
	"time"

	"vehicle_parking/internal/domain"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

// ErrConflict is returned when a conditional update matched no row because the
// record was not in the expected state.
var ErrConflict = errors.New("record is not in the expected state")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id int) (*domain.User, error)
	FindAll(ctx context.Context) ([]domain.User, error)
}

type PlotRepository interface {
	Create(ctx context.Context, plot *domain.Plot) (*domain.Plot, error)
	FindByID(ctx context.Context, id int) (*domain.Plot, error)
	FindAll(ctx context.Context) ([]domain.Plot, error)
	Update(ctx context.Context, plot *domain.Plot) (*domain.Plot, error)
	// SyncUnitCount sets num_units to the number of slot rows of the plot.
	SyncUnitCount(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

type SlotRepository interface {
	// CreateBatch inserts count vacant slots numbered firstNumber, firstNumber+1, ...
	CreateBatch(ctx context.Context, plotID, firstNumber, count int) ([]domain.Slot, error)
	FindByID(ctx context.Context, id int) (*domain.Slot, error)
	// FindByPlotID returns the slots of a plot in stored (insertion) order.
	FindByPlotID(ctx context.Context, plotID int) ([]domain.Slot, error)
	// AllocateVacant atomically flips the first vacant slot of the plot, in
	// stored order, to occupied. Returns ErrNotFound when none is vacant.
	AllocateVacant(ctx context.Context, plotID, userID int) (*domain.Slot, error)
	// Release flips an occupied slot back to vacant. Returns ErrConflict when
	// the slot exists but is already vacant.
	Release(ctx context.Context, id int) (*domain.Slot, error)
	// Delete removes a vacant slot. Returns ErrConflict when it is occupied.
	Delete(ctx context.Context, id int) error
	// DeleteVacantByPlotID removes every vacant slot of the plot and returns
	// the number of slots left behind.
	DeleteVacantByPlotID(ctx context.Context, plotID int) (remaining int, err error)
	CountByPlot(ctx context.Context, plotID int) (domain.Occupancy, error)
	CountAll(ctx context.Context) ([]domain.PlotOccupancy, error)
	NextSlotNumber(ctx context.Context, plotID int) (int, error)
}

type ReservationRepository interface {
	Create(ctx context.Context, reservation *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id int) (*domain.Reservation, error)
	FindByUserID(ctx context.Context, userID int) ([]domain.Reservation, error)
	FindByPlotID(ctx context.Context, plotID int) ([]domain.Reservation, error)
	FindAll(ctx context.Context) ([]domain.Reservation, error)
	FindActiveBySlotID(ctx context.Context, slotID int) ([]domain.Reservation, error)
	// Transition moves an active reservation to a terminal status. Returns
	// ErrConflict when the reservation is no longer active.
	Transition(ctx context.Context, id int, to domain.ReservationStatus, endTime time.Time) (*domain.Reservation, error)
	// SumRevenue sums the booking price of active and completed reservations.
	SumRevenue(ctx context.Context) (float64, error)
}

// Store groups the repositories over one connection or transaction.
type Store interface {
	Users() UserRepository
	Plots() PlotRepository
	Slots() SlotRepository
	Reservations() ReservationRepository
	// WithTx runs fn against a transactional view of the store. fn's error
	// rolls everything back; nil commits.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
