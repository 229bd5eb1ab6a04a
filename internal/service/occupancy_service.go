package service

import (
	"context"
	"fmt"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
)

// OccupancyService derives occupancy and revenue from slot and reservation
// rows on every call. Nothing here is cached, so it never drifts from the
// slot statuses.
type OccupancyService struct {
	store repository.Store
}

func NewOccupancyService(store repository.Store) *OccupancyService {
	return &OccupancyService{store: store}
}

// OccupancySummary sums occupied and vacant slots over all plots.
func (s *OccupancyService) OccupancySummary(ctx context.Context) (domain.Occupancy, error) {
	perPlot, err := s.PerPlot(ctx)
	if err != nil {
		return domain.Occupancy{}, err
	}
	var total domain.Occupancy
	for _, p := range perPlot {
		total.Occupied += p.Occupied
		total.Vacant += p.Vacant
	}
	return total, nil
}

func (s *OccupancyService) PerPlot(ctx context.Context) ([]domain.PlotOccupancy, error) {
	perPlot, err := s.store.Slots().CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("OccupancyService.PerPlot: %w", err)
	}
	return perPlot, nil
}

func (s *OccupancyService) PlotOccupancy(ctx context.Context, plotID int) (*domain.PlotOccupancy, error) {
	if _, err := s.store.Plots().FindByID(ctx, plotID); err != nil {
		return nil, notFound(err, "OccupancyService.PlotOccupancy", "plot", plotID)
	}
	occ, err := s.store.Slots().CountByPlot(ctx, plotID)
	if err != nil {
		return nil, fmt.Errorf("OccupancyService.PlotOccupancy: %w", err)
	}
	return &domain.PlotOccupancy{PlotID: plotID, Occupancy: occ}, nil
}

// TotalRevenue sums the flat booking price of active and completed
// reservations. Cancelled reservations earn nothing.
func (s *OccupancyService) TotalRevenue(ctx context.Context) (float64, error) {
	total, err := s.store.Reservations().SumRevenue(ctx)
	if err != nil {
		return 0, fmt.Errorf("OccupancyService.TotalRevenue: %w", err)
	}
	return total, nil
}

// AppStats is the admin dashboard summary.
func (s *OccupancyService) AppStats(ctx context.Context) (*domain.AppStats, error) {
	var stats domain.AppStats
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		view := NewOccupancyService(tx)
		occ, err := view.OccupancySummary(ctx)
		if err != nil {
			return err
		}
		revenue, err := view.TotalRevenue(ctx)
		if err != nil {
			return err
		}
		stats = domain.AppStats{NetRevenue: revenue, Occupied: occ.Occupied, Vacant: occ.Vacant}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
