package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
	"vehicle_parking/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []domain.ReservationEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.ReservationEventType
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store        repository.Store
	reservations *ReservationService
	plots        *PlotService
	occupancy    *OccupancyService
	publisher    *recordingPublisher

	admin domain.Actor
	alice domain.Actor
	bob   domain.Actor
	carol domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore())
}

func newFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: store, publisher: &recordingPublisher{}}

	mkUser := func(name, role string) domain.Actor {
		u, err := store.Users().Create(ctx, &domain.User{FullName: name, Email: name + "@example.com", Password: "hash", Role: role})
		require.NoError(t, err)
		return domain.Actor{UserID: u.ID, Role: role}
	}
	f.admin = mkUser("admin", domain.RoleAdmin)
	f.alice = mkUser("alice", domain.RoleUser)
	f.bob = mkUser("bob", domain.RoleUser)
	f.carol = mkUser("carol", domain.RoleUser)

	allocator := NewSlotAllocator()
	f.reservations = NewReservationService(store, allocator, f.publisher, nil, zap.NewNop())
	f.plots = NewPlotService(store, allocator, zap.NewNop())
	f.occupancy = NewOccupancyService(store)
	return f
}

func (f *fixture) createPlot(t *testing.T, units int, price float64) *domain.Plot {
	t.Helper()
	plot, err := f.plots.CreatePlot(context.Background(), f.admin, domain.CreatePlotDTO{
		Name: "Central", Address: "1 Main St", PinCode: "560001", PricePerUnit: price, NumUnits: units,
	})
	require.NoError(t, err)
	return plot
}

// assertConsistent checks that occupied+vacant equals num_units and that each
// occupied slot has exactly one active reservation.
func (f *fixture) assertConsistent(t *testing.T, plotID int) {
	t.Helper()
	ctx := context.Background()
	plot, err := f.store.Plots().FindByID(ctx, plotID)
	require.NoError(t, err)
	slots, err := f.store.Slots().FindByPlotID(ctx, plotID)
	require.NoError(t, err)
	occ, err := f.store.Slots().CountByPlot(ctx, plotID)
	require.NoError(t, err)
	assert.Equal(t, plot.NumUnits, occ.Total())
	assert.Equal(t, len(slots), occ.Total())
	for _, slot := range slots {
		active, err := f.store.Reservations().FindActiveBySlotID(ctx, slot.ID)
		require.NoError(t, err)
		if slot.Status == domain.SlotOccupied {
			assert.Len(t, active, 1, "slot %d", slot.ID)
		} else {
			assert.Empty(t, active, "slot %d", slot.ID)
		}
	}
}

func TestReservationLifecycle_TwoSlotScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 50)

	resA, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationActive, resA.Status)
	assert.Equal(t, 50.0, resA.Price)
	f.assertConsistent(t, plot.ID)

	resB, err := f.reservations.Create(ctx, f.bob, plot.ID, f.bob.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, resA.SlotID, resB.SlotID)

	_, err = f.reservations.Create(ctx, f.carol, plot.ID, f.carol.UserID)
	assert.ErrorIs(t, err, ErrNoVacancy)

	carolRes, err := f.reservations.ListByUser(ctx, f.carol, f.carol.UserID)
	require.NoError(t, err)
	assert.Empty(t, carolRes, "failed booking persists nothing")

	cancelled, err := f.reservations.Cancel(ctx, f.alice, resA.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)
	assert.True(t, cancelled.EndTime.Valid)

	slot, err := f.store.Slots().FindByID(ctx, int(resA.SlotID.Int64))
	require.NoError(t, err)
	assert.Equal(t, domain.SlotVacant, slot.Status)
	assert.False(t, slot.OccupiedBy.Valid)

	resC, err := f.reservations.Create(ctx, f.carol, plot.ID, f.carol.UserID)
	require.NoError(t, err)
	assert.Equal(t, resA.SlotID, resC.SlotID, "carol gets the slot alice vacated")
	f.assertConsistent(t, plot.ID)

	assert.Equal(t, []domain.ReservationEventType{
		domain.EventReservationCreated,
		domain.EventReservationCreated,
		domain.EventReservationCancelled,
		domain.EventReservationCreated,
	}, f.publisher.types())
}

func TestReservationLifecycle_UnknownPlot(t *testing.T) {
	f := newFixture(t)
	_, err := f.reservations.Create(context.Background(), f.alice, 999, f.alice.UserID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationLifecycle_NonOwnerCannotCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 1, 10)

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)

	_, err = f.reservations.Cancel(ctx, f.bob, res.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.reservations.Complete(ctx, f.bob, res.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.reservations.GetByID(ctx, f.alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationActive, got.Status)
	slot, err := f.store.Slots().FindByID(ctx, int(res.SlotID.Int64))
	require.NoError(t, err)
	assert.Equal(t, domain.SlotOccupied, slot.Status)

	_, err = f.reservations.GetByID(ctx, f.bob, res.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	done, err := f.reservations.Complete(ctx, f.admin, res.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationCompleted, done.Status)
}

func TestReservationLifecycle_TerminalIsFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 1, 10)

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)
	_, err = f.reservations.Complete(ctx, f.alice, res.ID)
	require.NoError(t, err)

	// Bob takes the freed slot; a second complete must not release it.
	resB, err := f.reservations.Create(ctx, f.bob, plot.ID, f.bob.UserID)
	require.NoError(t, err)
	require.Equal(t, res.SlotID, resB.SlotID)

	_, err = f.reservations.Complete(ctx, f.alice, res.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.reservations.Cancel(ctx, f.alice, res.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	slot, err := f.store.Slots().FindByID(ctx, int(resB.SlotID.Int64))
	require.NoError(t, err)
	assert.Equal(t, domain.SlotOccupied, slot.Status)
	f.assertConsistent(t, plot.ID)

	_, err = f.reservations.Cancel(ctx, f.alice, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationLifecycle_BookingOnBehalf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 10)

	_, err := f.reservations.Create(ctx, f.alice, plot.ID, f.bob.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	res, err := f.reservations.Create(ctx, f.admin, plot.ID, f.bob.UserID)
	require.NoError(t, err)
	assert.Equal(t, f.bob.UserID, res.UserID)

	_, err = f.reservations.Create(ctx, f.admin, plot.ID, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
	f.assertConsistent(t, plot.ID)
}

type failingReservations struct {
	repository.ReservationRepository
}

func (failingReservations) Create(context.Context, *domain.Reservation) (*domain.Reservation, error) {
	return nil, errors.New("disk full")
}

// failingStore breaks reservation inserts, inside transactions too.
type failingStore struct {
	repository.Store
}

func (s failingStore) Reservations() repository.ReservationRepository {
	return failingReservations{s.Store.Reservations()}
}

func (s failingStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(failingStore{tx})
	})
}

func TestReservationLifecycle_FailedInsertLeavesSlotVacant(t *testing.T) {
	base := memory.NewStore()
	f := newFixtureWithStore(t, base)
	plot := f.createPlot(t, 1, 10)

	broken := NewReservationService(failingStore{base}, NewSlotAllocator(), nil, nil, zap.NewNop())
	_, err := broken.Create(context.Background(), f.alice, plot.ID, f.alice.UserID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	occ, err := f.occupancy.PlotOccupancy(context.Background(), plot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Occupancy{Occupied: 0, Vacant: 1}, occ.Occupancy)
}

func TestReservationLifecycle_ConcurrentCreateNeverDoubleBooks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 3, 10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		slots     = map[int]int{}
		noVacancy int
	)
	actors := []domain.Actor{f.alice, f.bob, f.carol, f.admin}
	for i := 0; i < 12; i++ {
		actor := actors[i%len(actors)]
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reservations.Create(ctx, actor, plot.ID, actor.UserID)
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrNoVacancy) {
				noVacancy++
				return
			}
			if assert.NoError(t, err) {
				slots[int(res.SlotID.Int64)]++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, slots, 3)
	for id, n := range slots {
		assert.Equal(t, 1, n, "slot %d", id)
	}
	assert.Equal(t, 9, noVacancy)
	f.assertConsistent(t, plot.ID)
}

func TestReservationLifecycle_Listing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 3, 10)

	_, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)
	_, err = f.reservations.Create(ctx, f.bob, plot.ID, f.bob.UserID)
	require.NoError(t, err)

	_, err = f.reservations.ListByUser(ctx, f.bob, f.alice.UserID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	byPlot, err := f.reservations.ListByPlot(ctx, f.admin, plot.ID)
	require.NoError(t, err)
	assert.Len(t, byPlot, 2)
	_, err = f.reservations.ListByPlot(ctx, f.alice, plot.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	all, err := f.reservations.ListAll(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = f.reservations.ListAll(ctx, f.alice)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSlotAllocator_ReleaseVacantIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 1, 10)
	allocator := NewSlotAllocator()

	slot, err := allocator.Allocate(ctx, f.store, plot.ID, f.alice.UserID)
	require.NoError(t, err)

	vacant, err := allocator.IsPlotFullyVacant(ctx, f.store, plot.ID)
	require.NoError(t, err)
	assert.False(t, vacant)

	_, err = allocator.Release(ctx, f.store, slot.ID)
	require.NoError(t, err)
	_, err = allocator.Release(ctx, f.store, slot.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = allocator.Release(ctx, f.store, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	vacant, err = allocator.IsPlotFullyVacant(ctx, f.store, plot.ID)
	require.NoError(t, err)
	assert.True(t, vacant)
}

func TestOccupancy_SummaryAndRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.createPlot(t, 2, 30)
	b := f.createPlot(t, 3, 20)

	r1, err := f.reservations.Create(ctx, f.alice, a.ID, f.alice.UserID)
	require.NoError(t, err)
	r2, err := f.reservations.Create(ctx, f.bob, b.ID, f.bob.UserID)
	require.NoError(t, err)
	_, err = f.reservations.Create(ctx, f.carol, b.ID, f.carol.UserID)
	require.NoError(t, err)

	_, err = f.reservations.Complete(ctx, f.alice, r1.ID)
	require.NoError(t, err)
	_, err = f.reservations.Cancel(ctx, f.bob, r2.ID)
	require.NoError(t, err)

	summary, err := f.occupancy.OccupancySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Occupancy{Occupied: 1, Vacant: 4}, summary)

	revenue, err := f.occupancy.TotalRevenue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, revenue, 1e-9, "completed 30 + active 20, cancelled earns nothing")

	stats, err := f.occupancy.AppStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &domain.AppStats{NetRevenue: 50, Occupied: 1, Vacant: 4}, stats)

	_, err = f.occupancy.PlotOccupancy(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlotService_DeleteGatedOnVacancy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 10)

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)

	err = f.plots.DeletePlot(ctx, f.admin, plot.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	slots, err := f.plots.ListSlots(ctx, plot.ID)
	require.NoError(t, err)
	assert.Len(t, slots, 2, "rejected delete keeps every slot")

	_, err = f.reservations.Cancel(ctx, f.alice, res.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.plots.DeletePlot(ctx, f.alice, plot.ID), ErrUnauthorized)
	require.NoError(t, f.plots.DeletePlot(ctx, f.admin, plot.ID))

	_, err = f.plots.GetPlot(ctx, plot.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	remaining, err := f.store.Slots().FindByPlotID(ctx, plot.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPlotService_SlotManagementKeepsUnitCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 10)

	added, err := f.plots.AddSlots(ctx, f.admin, plot.ID, 2)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, 3, added[0].SlotNumber)

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)

	assert.ErrorIs(t, f.plots.DeleteSlot(ctx, f.admin, int(res.SlotID.Int64)), ErrInvalidState)
	assert.ErrorIs(t, f.plots.DeleteSlot(ctx, f.alice, added[1].ID), ErrUnauthorized)
	require.NoError(t, f.plots.DeleteSlot(ctx, f.admin, added[1].ID))
	assert.ErrorIs(t, f.plots.DeleteSlot(ctx, f.admin, added[1].ID), ErrNotFound)

	got, err := f.plots.GetPlot(ctx, plot.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.NumUnits)
	f.assertConsistent(t, plot.ID)

	_, err = f.plots.AddSlots(ctx, f.admin, plot.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPlotService_CreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.plots.CreatePlot(ctx, f.alice, domain.CreatePlotDTO{Name: "X", Address: "Y", PinCode: "123456", NumUnits: 1})
	assert.ErrorIs(t, err, ErrUnauthorized)

	plot := f.createPlot(t, 4, 10)
	slots, err := f.plots.ListSlots(ctx, plot.ID)
	require.NoError(t, err)
	require.Len(t, slots, 4)
	for i, slot := range slots {
		assert.Equal(t, i+1, slot.SlotNumber)
		assert.Equal(t, domain.SlotVacant, slot.Status)
	}

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)

	price := 15.0
	updated, err := f.plots.UpdatePlot(ctx, f.admin, plot.ID, domain.UpdatePlotDTO{Name: "North", PricePerUnit: &price})
	require.NoError(t, err)
	assert.Equal(t, "North", updated.Name)
	assert.Equal(t, "1 Main St", updated.Address)
	assert.Equal(t, 15.0, updated.PricePerUnit)

	kept, err := f.reservations.GetByID(ctx, f.alice, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, kept.Price, "booked price is not repriced")

	_, err = f.plots.UpdatePlot(ctx, f.bob, plot.ID, domain.UpdatePlotDTO{Name: "Mine"})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_RegisterLoginValidate(t *testing.T) {
	store := memory.NewStore()
	auth := NewAuthService(store.Users(), "test-secret", time.Hour)
	ctx := context.Background()

	user, err := auth.Register(ctx, domain.RegisterUserDTO{FullName: "Asha Rao", Email: " Asha@Example.com ", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.Password)

	_, err = auth.Register(ctx, domain.RegisterUserDTO{FullName: "Asha Rao", Email: "asha@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, err = auth.Login(ctx, domain.LoginUserDTO{Email: "asha@example.com", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = auth.Login(ctx, domain.LoginUserDTO{Email: "nobody@example.com", Password: "whatever1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	resp, err := auth.Login(ctx, domain.LoginUserDTO{Email: "ASHA@example.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	_, claims, err := auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	actor, err := ActorFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UserID: user.ID, Role: domain.RoleUser}, actor)
	assert.Equal(t, "asha@example.com", claims["email"])

	me, err := auth.CurrentUser(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", me.FullName)

	_, err = auth.ListUsers(ctx, actor)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthService_RejectsBadTokens(t *testing.T) {
	store := memory.NewStore()
	auth := NewAuthService(store.Users(), "test-secret", time.Hour)
	ctx := context.Background()

	_, err := auth.CreateAdmin(ctx, domain.RegisterUserDTO{FullName: "Root Admin", Email: "root@example.com", Password: "rootpass1"})
	require.NoError(t, err)
	resp, err := auth.Login(ctx, domain.LoginUserDTO{Email: "root@example.com", Password: "rootpass1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)

	_, _, err = auth.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewAuthService(store.Users(), "other-secret", time.Hour)
	_, _, err = other.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	auth.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, _, err = auth.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	users, err := auth.ListUsers(ctx, domain.Actor{UserID: resp.User.ID, Role: domain.RoleAdmin})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestPlotService_DeleteSlotKeepsReservationHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 50)

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)
	_, err = f.reservations.Complete(ctx, f.alice, res.ID)
	require.NoError(t, err)
	slotID := int(res.SlotID.Int64)

	require.NoError(t, f.plots.DeleteSlot(ctx, f.admin, slotID))

	revenue, err := f.occupancy.TotalRevenue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, revenue, 1e-9)

	history, err := f.reservations.ListByUser(ctx, f.alice, f.alice.UserID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.ID, history[0].ID)
	assert.Equal(t, domain.ReservationCompleted, history[0].Status)
	assert.False(t, history[0].SlotID.Valid, "the deleted slot is no longer referenced")

	got, err := f.plots.GetPlot(ctx, plot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NumUnits)
	f.assertConsistent(t, plot.ID)

	// The remaining slot is still bookable.
	next, err := f.reservations.Create(ctx, f.bob, plot.ID, f.bob.UserID)
	require.NoError(t, err)
	assert.NotEqual(t, slotID, int(next.SlotID.Int64))
}

func TestReservationService_GetActiveBySlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 10)

	res, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)
	slotID := int(res.SlotID.Int64)

	got, err := f.reservations.GetActiveBySlot(ctx, f.admin, slotID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)

	_, err = f.reservations.GetActiveBySlot(ctx, f.alice, slotID)
	assert.ErrorIs(t, err, ErrUnauthorized, "only admins and the plot creator")

	_, err = f.reservations.Cancel(ctx, f.alice, res.ID)
	require.NoError(t, err)
	_, err = f.reservations.GetActiveBySlot(ctx, f.admin, slotID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.reservations.GetActiveBySlot(ctx, f.admin, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReservationService_ViewsInlinePlotAndUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plot := f.createPlot(t, 2, 10)

	r1, err := f.reservations.Create(ctx, f.alice, plot.ID, f.alice.UserID)
	require.NoError(t, err)
	r2, err := f.reservations.Create(ctx, f.bob, plot.ID, f.bob.UserID)
	require.NoError(t, err)

	views, err := f.reservations.Views(ctx, *r1, *r2)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, r1.ID, views[0].ID)
	assert.Equal(t, "Central", views[0].Plot.Name)
	assert.Equal(t, "560001", views[0].Plot.PinCode)
	assert.Equal(t, "alice@example.com", views[0].User.Email)
	assert.Equal(t, "bob", views[1].User.FullName)
	assert.Same(t, views[0].Plot, views[1].Plot, "plot is looked up once per batch")

	empty, err := f.reservations.Views(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
