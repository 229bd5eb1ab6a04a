package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/guregu/null.v4"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/events"
	"vehicle_parking/internal/metrics"
	"vehicle_parking/internal/repository"
)

type ReservationService struct {
	store     repository.Store
	allocator *SlotAllocator
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func NewReservationService(
	store repository.Store,
	allocator *SlotAllocator,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReservationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ReservationService{
		store:     store,
		allocator: allocator,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create books the first vacant slot of plotID for userID. Only admins may
// book on behalf of another user. The allocation and the reservation row are
// written in one transaction, so a failed insert leaves the slot vacant.
func (s *ReservationService) Create(ctx context.Context, actor domain.Actor, plotID, userID int) (*domain.Reservation, error) {
	if !actor.CanAccess(userID) {
		return nil, fmt.Errorf("%w: cannot book for user %d", ErrUnauthorized, userID)
	}

	var created *domain.Reservation
	var slot *domain.Slot
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		plot, err := tx.Plots().FindByID(ctx, plotID)
		if err != nil {
			return notFound(err, "ReservationService.Create", "plot", plotID)
		}
		if userID != actor.UserID {
			if _, err := tx.Users().FindByID(ctx, userID); err != nil {
				return notFound(err, "ReservationService.Create", "user", userID)
			}
		}

		slot, err = s.allocator.Allocate(ctx, tx, plot.ID, userID)
		if err != nil {
			return err
		}

		created, err = tx.Reservations().Create(ctx, &domain.Reservation{
			UserID:    userID,
			PlotID:    plot.ID,
			SlotID:    null.IntFrom(int64(slot.ID)),
			Status:    domain.ReservationActive,
			Price:     plot.PricePerUnit,
			StartTime: s.now(),
		})
		if err != nil {
			return fmt.Errorf("ReservationService.Create (persisting reservation): %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoVacancy) {
			s.metrics.ObserveReservation("no_vacancy")
		}
		return nil, err
	}

	s.metrics.ObserveReservation("created")
	s.logger.Info("reservation created",
		zap.Int("reservation_id", created.ID),
		zap.Int("user_id", userID),
		zap.Int("plot_id", plotID),
		zap.Int("slot_id", slot.ID))
	s.publish(ctx, domain.EventReservationCreated, created, slot.Status)
	return created, nil
}

// Complete ends an active reservation normally and frees its slot.
func (s *ReservationService) Complete(ctx context.Context, actor domain.Actor, reservationID int) (*domain.Reservation, error) {
	return s.finish(ctx, actor, reservationID, domain.ReservationCompleted)
}

// Cancel ends an active reservation early and frees its slot.
func (s *ReservationService) Cancel(ctx context.Context, actor domain.Actor, reservationID int) (*domain.Reservation, error) {
	return s.finish(ctx, actor, reservationID, domain.ReservationCancelled)
}

func (s *ReservationService) finish(ctx context.Context, actor domain.Actor, reservationID int, to domain.ReservationStatus) (*domain.Reservation, error) {
	var updated *domain.Reservation
	var slot *domain.Slot
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		res, err := tx.Reservations().FindByID(ctx, reservationID)
		if err != nil {
			return notFound(err, "ReservationService.finish", "reservation", reservationID)
		}
		if !actor.CanAccess(res.UserID) {
			return fmt.Errorf("%w: reservation %d belongs to another user", ErrUnauthorized, reservationID)
		}
		if res.Status.Terminal() {
			return fmt.Errorf("%w: reservation %d is already %s", ErrInvalidState, reservationID, res.Status)
		}

		updated, err = tx.Reservations().Transition(ctx, reservationID, to, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("%w: reservation %d is no longer active", ErrInvalidState, reservationID)
			}
			return notFound(err, "ReservationService.finish", "reservation", reservationID)
		}

		slot, err = s.allocator.Release(ctx, tx, int(updated.SlotID.Int64))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveReservation(string(to))
	s.logger.Info("reservation finished",
		zap.Int("reservation_id", updated.ID),
		zap.String("status", string(to)),
		zap.Int64("slot_id", updated.SlotID.Int64),
		zap.Int("actor_id", actor.UserID))

	eventType := domain.EventReservationCompleted
	if to == domain.ReservationCancelled {
		eventType = domain.EventReservationCancelled
	}
	s.publish(ctx, eventType, updated, slot.Status)
	return updated, nil
}

func (s *ReservationService) GetByID(ctx context.Context, actor domain.Actor, reservationID int) (*domain.Reservation, error) {
	res, err := s.store.Reservations().FindByID(ctx, reservationID)
	if err != nil {
		return nil, notFound(err, "ReservationService.GetByID", "reservation", reservationID)
	}
	if !actor.CanAccess(res.UserID) {
		return nil, fmt.Errorf("%w: reservation %d belongs to another user", ErrUnauthorized, reservationID)
	}
	return res, nil
}

// GetActiveBySlot returns the reservation currently holding a slot. Only
// admins and the plot's creator may look it up.
func (s *ReservationService) GetActiveBySlot(ctx context.Context, actor domain.Actor, slotID int) (*domain.Reservation, error) {
	slot, err := s.store.Slots().FindByID(ctx, slotID)
	if err != nil {
		return nil, notFound(err, "ReservationService.GetActiveBySlot", "slot", slotID)
	}
	plot, err := s.store.Plots().FindByID(ctx, slot.PlotID)
	if err != nil {
		return nil, notFound(err, "ReservationService.GetActiveBySlot", "plot", slot.PlotID)
	}
	if !actor.CanAccess(plot.CreatedBy) {
		return nil, fmt.Errorf("%w: reservations of plot %d", ErrUnauthorized, plot.ID)
	}
	active, err := s.store.Reservations().FindActiveBySlotID(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("ReservationService.GetActiveBySlot: %w", err)
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: slot %d has no active reservation", ErrNotFound, slotID)
	}
	return &active[0], nil
}

func (s *ReservationService) ListByUser(ctx context.Context, actor domain.Actor, userID int) ([]domain.Reservation, error) {
	if !actor.CanAccess(userID) {
		return nil, fmt.Errorf("%w: reservations of user %d", ErrUnauthorized, userID)
	}
	reservations, err := s.store.Reservations().FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ReservationService.ListByUser: %w", err)
	}
	return reservations, nil
}

// ListByPlot is limited to admins and the plot's creator.
func (s *ReservationService) ListByPlot(ctx context.Context, actor domain.Actor, plotID int) ([]domain.Reservation, error) {
	plot, err := s.store.Plots().FindByID(ctx, plotID)
	if err != nil {
		return nil, notFound(err, "ReservationService.ListByPlot", "plot", plotID)
	}
	if !actor.CanAccess(plot.CreatedBy) {
		return nil, fmt.Errorf("%w: reservations of plot %d", ErrUnauthorized, plotID)
	}
	reservations, err := s.store.Reservations().FindByPlotID(ctx, plotID)
	if err != nil {
		return nil, fmt.Errorf("ReservationService.ListByPlot: %w", err)
	}
	return reservations, nil
}

func (s *ReservationService) ListAll(ctx context.Context, actor domain.Actor) ([]domain.Reservation, error) {
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%w: listing all reservations requires admin", ErrUnauthorized)
	}
	reservations, err := s.store.Reservations().FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReservationService.ListAll: %w", err)
	}
	return reservations, nil
}

// publish runs after commit. A failed publish never undoes the transition.
func (s *ReservationService) publish(ctx context.Context, eventType domain.ReservationEventType, res *domain.Reservation, slotStatus domain.SlotStatus) {
	event := domain.ReservationEvent{
		Type:          eventType,
		ReservationID: res.ID,
		UserID:        res.UserID,
		PlotID:        res.PlotID,
		SlotID:        int(res.SlotID.Int64),
		SlotStatus:    slotStatus,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish reservation event",
			zap.String("type", string(eventType)),
			zap.Int("reservation_id", res.ID),
			zap.Error(err))
	}
}

// Views inlines plot and user details. Lookups are shared across the batch.
func (s *ReservationService) Views(ctx context.Context, reservations ...domain.Reservation) ([]domain.ReservationView, error) {
	plots := make(map[int]*domain.ReservationPlot)
	users := make(map[int]*domain.ReservationUser)
	views := make([]domain.ReservationView, 0, len(reservations))
	for _, res := range reservations {
		plot, ok := plots[res.PlotID]
		if !ok {
			p, err := s.store.Plots().FindByID(ctx, res.PlotID)
			switch {
			case err == nil:
				plot = &domain.ReservationPlot{ID: p.ID, Name: p.Name, Address: p.Address, PinCode: p.PinCode, PricePerUnit: p.PricePerUnit}
			case !errors.Is(err, repository.ErrNotFound):
				return nil, fmt.Errorf("ReservationService.Views (plot %d): %w", res.PlotID, err)
			}
			plots[res.PlotID] = plot
		}
		user, ok := users[res.UserID]
		if !ok {
			u, err := s.store.Users().FindByID(ctx, res.UserID)
			switch {
			case err == nil:
				user = &domain.ReservationUser{ID: u.ID, FullName: u.FullName, Email: u.Email}
			case !errors.Is(err, repository.ErrNotFound):
				return nil, fmt.Errorf("ReservationService.Views (user %d): %w", res.UserID, err)
			}
			users[res.UserID] = user
		}
		views = append(views, domain.ReservationView{Reservation: res, Plot: plot, User: user})
	}
	return views, nil
}
