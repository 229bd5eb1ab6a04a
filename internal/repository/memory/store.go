// Package memory is an in-process implementation of repository.Store. It backs
// STORAGE=memory deployments and the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/guregu/null.v4"

	"vehicle_parking/internal/domain"
	"vehicle_parking/internal/repository"
)

type tables struct {
	users        map[int]domain.User
	plots        map[int]domain.Plot
	slots        map[int]domain.Slot
	reservations map[int]domain.Reservation

	nextUserID        int
	nextPlotID        int
	nextSlotID        int
	nextReservationID int
}

func newTables() *tables {
	return &tables{
		users:        make(map[int]domain.User),
		plots:        make(map[int]domain.Plot),
		slots:        make(map[int]domain.Slot),
		reservations: make(map[int]domain.Reservation),
	}
}

func (t *tables) clone() *tables {
	c := *t
	c.users = make(map[int]domain.User, len(t.users))
	for k, v := range t.users {
		c.users[k] = v
	}
	c.plots = make(map[int]domain.Plot, len(t.plots))
	for k, v := range t.plots {
		c.plots[k] = v
	}
	c.slots = make(map[int]domain.Slot, len(t.slots))
	for k, v := range t.slots {
		c.slots[k] = v
	}
	c.reservations = make(map[int]domain.Reservation, len(t.reservations))
	for k, v := range t.reservations {
		c.reservations[k] = v
	}
	return &c
}

type database struct {
	// mu is held for a single statement outside a transaction, or for the
	// whole of a transaction. It makes every transaction serializable.
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

// Store is safe for concurrent use.
type Store struct {
	db   *database
	inTx bool
}

func NewStore() *Store {
	return &Store{db: &database{data: newTables(), now: func() time.Time { return time.Now().UTC() }}}
}

func (s *Store) Users() repository.UserRepository               { return &userRepository{s} }
func (s *Store) Plots() repository.PlotRepository               { return &plotRepository{s} }
func (s *Store) Slots() repository.SlotRepository               { return &slotRepository{s} }
func (s *Store) Reservations() repository.ReservationRepository { return &reservationRepository{s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	snapshot := s.db.data.clone()
	if err := fn(&Store{db: s.db, inTx: true}); err != nil {
		s.db.data = snapshot
		return err
	}
	return nil
}

// exec runs fn with exclusive access to the tables.
func (s *Store) exec(fn func(t *tables) error) error {
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	return fn(s.db.data)
}

func (s *Store) now() time.Time {
	return s.db.now()
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	err := r.s.exec(func(t *tables) error {
		for _, u := range t.users {
			if strings.EqualFold(u.Email, user.Email) {
				return duplicate("email '" + user.Email + "' is already registered")
			}
		}
		t.nextUserID++
		now := r.s.now()
		user.ID = t.nextUserID
		user.CreatedAt, user.UpdatedAt = now, now
		t.users[user.ID] = *user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	var found *domain.User
	err := r.s.exec(func(t *tables) error {
		for _, u := range t.users {
			if strings.EqualFold(u.Email, email) {
				u := u
				found = &u
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return found, err
}

func (r *userRepository) FindByID(_ context.Context, id int) (*domain.User, error) {
	var found *domain.User
	err := r.s.exec(func(t *tables) error {
		u, ok := t.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = &u
		return nil
	})
	return found, err
}

func (r *userRepository) FindAll(_ context.Context) ([]domain.User, error) {
	var users []domain.User
	_ = r.s.exec(func(t *tables) error {
		for _, u := range t.users {
			users = append(users, u)
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

type plotRepository struct{ s *Store }

func (r *plotRepository) Create(_ context.Context, plot *domain.Plot) (*domain.Plot, error) {
	_ = r.s.exec(func(t *tables) error {
		t.nextPlotID++
		now := r.s.now()
		plot.ID = t.nextPlotID
		plot.CreatedAt, plot.UpdatedAt = now, now
		t.plots[plot.ID] = *plot
		return nil
	})
	return plot, nil
}

func (r *plotRepository) FindByID(_ context.Context, id int) (*domain.Plot, error) {
	var found *domain.Plot
	err := r.s.exec(func(t *tables) error {
		p, ok := t.plots[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = &p
		return nil
	})
	return found, err
}

func (r *plotRepository) FindAll(_ context.Context) ([]domain.Plot, error) {
	var plots []domain.Plot
	_ = r.s.exec(func(t *tables) error {
		for _, p := range t.plots {
			plots = append(plots, p)
		}
		return nil
	})
	sort.Slice(plots, func(i, j int) bool { return plots[i].ID < plots[j].ID })
	return plots, nil
}

func (r *plotRepository) Update(_ context.Context, plot *domain.Plot) (*domain.Plot, error) {
	var updated *domain.Plot
	err := r.s.exec(func(t *tables) error {
		p, ok := t.plots[plot.ID]
		if !ok {
			return repository.ErrNotFound
		}
		p.Name = plot.Name
		p.Address = plot.Address
		p.PinCode = plot.PinCode
		p.PricePerUnit = plot.PricePerUnit
		p.UpdatedAt = r.s.now()
		t.plots[p.ID] = p
		updated = &p
		return nil
	})
	return updated, err
}

func (r *plotRepository) SyncUnitCount(_ context.Context, id int) error {
	return r.s.exec(func(t *tables) error {
		p, ok := t.plots[id]
		if !ok {
			return repository.ErrNotFound
		}
		n := 0
		for _, slot := range t.slots {
			if slot.PlotID == id {
				n++
			}
		}
		p.NumUnits = n
		p.UpdatedAt = r.s.now()
		t.plots[id] = p
		return nil
	})
}

func (r *plotRepository) Delete(_ context.Context, id int) error {
	return r.s.exec(func(t *tables) error {
		if _, ok := t.plots[id]; !ok {
			return repository.ErrNotFound
		}
		delete(t.plots, id)
		for sid, slot := range t.slots {
			if slot.PlotID == id {
				delete(t.slots, sid)
			}
		}
		for rid, res := range t.reservations {
			if res.PlotID == id {
				delete(t.reservations, rid)
			}
		}
		return nil
	})
}

type slotRepository struct{ s *Store }

func (r *slotRepository) CreateBatch(_ context.Context, plotID, firstNumber, count int) ([]domain.Slot, error) {
	if count <= 0 {
		return nil, nil
	}
	var created []domain.Slot
	err := r.s.exec(func(t *tables) error {
		if _, ok := t.plots[plotID]; !ok {
			return repository.ErrNotFound
		}
		last := firstNumber + count - 1
		for _, slot := range t.slots {
			if slot.PlotID == plotID && slot.SlotNumber >= firstNumber && slot.SlotNumber <= last {
				return duplicate("slot numbers overlap")
			}
		}
		now := r.s.now()
		for n := firstNumber; n <= last; n++ {
			t.nextSlotID++
			slot := domain.Slot{
				ID:         t.nextSlotID,
				PlotID:     plotID,
				SlotNumber: n,
				Status:     domain.SlotVacant,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			t.slots[slot.ID] = slot
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *slotRepository) FindByID(_ context.Context, id int) (*domain.Slot, error) {
	var found *domain.Slot
	err := r.s.exec(func(t *tables) error {
		slot, ok := t.slots[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = &slot
		return nil
	})
	return found, err
}

func (r *slotRepository) FindByPlotID(_ context.Context, plotID int) ([]domain.Slot, error) {
	var slots []domain.Slot
	_ = r.s.exec(func(t *tables) error {
		slots = slotsOf(t, plotID)
		return nil
	})
	return slots, nil
}

func (r *slotRepository) AllocateVacant(_ context.Context, plotID, userID int) (*domain.Slot, error) {
	var allocated *domain.Slot
	err := r.s.exec(func(t *tables) error {
		for _, slot := range slotsOf(t, plotID) {
			if slot.Status != domain.SlotVacant {
				continue
			}
			slot.Status = domain.SlotOccupied
			slot.OccupiedBy.SetValid(int64(userID))
			slot.UpdatedAt = r.s.now()
			t.slots[slot.ID] = slot
			allocated = &slot
			return nil
		}
		return repository.ErrNotFound
	})
	return allocated, err
}

func (r *slotRepository) Release(_ context.Context, id int) (*domain.Slot, error) {
	var released *domain.Slot
	err := r.s.exec(func(t *tables) error {
		slot, ok := t.slots[id]
		if !ok {
			return repository.ErrNotFound
		}
		if slot.Status != domain.SlotOccupied {
			return conflict("slot is already vacant")
		}
		slot.Status = domain.SlotVacant
		slot.OccupiedBy.Valid = false
		slot.OccupiedBy.Int64 = 0
		slot.UpdatedAt = r.s.now()
		t.slots[id] = slot
		released = &slot
		return nil
	})
	return released, err
}

func (r *slotRepository) Delete(_ context.Context, id int) error {
	return r.s.exec(func(t *tables) error {
		slot, ok := t.slots[id]
		if !ok {
			return repository.ErrNotFound
		}
		if slot.Status != domain.SlotVacant {
			return conflict("slot is occupied")
		}
		deleteSlot(t, id)
		return nil
	})
}

func (r *slotRepository) DeleteVacantByPlotID(_ context.Context, plotID int) (int, error) {
	remaining := 0
	_ = r.s.exec(func(t *tables) error {
		for _, slot := range slotsOf(t, plotID) {
			if slot.Status == domain.SlotVacant {
				deleteSlot(t, slot.ID)
			} else {
				remaining++
			}
		}
		return nil
	})
	return remaining, nil
}

func (r *slotRepository) CountByPlot(_ context.Context, plotID int) (domain.Occupancy, error) {
	var occ domain.Occupancy
	_ = r.s.exec(func(t *tables) error {
		occ = count(slotsOf(t, plotID))
		return nil
	})
	return occ, nil
}

func (r *slotRepository) CountAll(_ context.Context) ([]domain.PlotOccupancy, error) {
	var result []domain.PlotOccupancy
	_ = r.s.exec(func(t *tables) error {
		ids := make([]int, 0, len(t.plots))
		for id := range t.plots {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			result = append(result, domain.PlotOccupancy{PlotID: id, Occupancy: count(slotsOf(t, id))})
		}
		return nil
	})
	return result, nil
}

func (r *slotRepository) NextSlotNumber(_ context.Context, plotID int) (int, error) {
	next := 1
	_ = r.s.exec(func(t *tables) error {
		for _, slot := range t.slots {
			if slot.PlotID == plotID && slot.SlotNumber >= next {
				next = slot.SlotNumber + 1
			}
		}
		return nil
	})
	return next, nil
}

type reservationRepository struct{ s *Store }

func (r *reservationRepository) Create(_ context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	err := r.s.exec(func(t *tables) error {
		if _, ok := t.slots[int(res.SlotID.Int64)]; !ok || !res.SlotID.Valid {
			return repository.ErrNotFound
		}
		if res.Status == domain.ReservationActive {
			for _, other := range t.reservations {
				if other.SlotID == res.SlotID && other.Status == domain.ReservationActive {
					return duplicate("slot already has an active reservation")
				}
			}
		}
		t.nextReservationID++
		now := r.s.now()
		res.ID = t.nextReservationID
		res.CreatedAt, res.UpdatedAt = now, now
		t.reservations[res.ID] = *res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *reservationRepository) FindByID(_ context.Context, id int) (*domain.Reservation, error) {
	var found *domain.Reservation
	err := r.s.exec(func(t *tables) error {
		res, ok := t.reservations[id]
		if !ok {
			return repository.ErrNotFound
		}
		found = &res
		return nil
	})
	return found, err
}

func (r *reservationRepository) FindByUserID(_ context.Context, userID int) ([]domain.Reservation, error) {
	return r.filter(func(res domain.Reservation) bool { return res.UserID == userID }, true), nil
}

func (r *reservationRepository) FindByPlotID(_ context.Context, plotID int) ([]domain.Reservation, error) {
	return r.filter(func(res domain.Reservation) bool { return res.PlotID == plotID }, true), nil
}

func (r *reservationRepository) FindAll(_ context.Context) ([]domain.Reservation, error) {
	return r.filter(func(domain.Reservation) bool { return true }, true), nil
}

func (r *reservationRepository) FindActiveBySlotID(_ context.Context, slotID int) ([]domain.Reservation, error) {
	return r.filter(func(res domain.Reservation) bool {
		return res.SlotID.Valid && int(res.SlotID.Int64) == slotID && res.Status == domain.ReservationActive
	}, false), nil
}

func (r *reservationRepository) Transition(_ context.Context, id int, to domain.ReservationStatus, endTime time.Time) (*domain.Reservation, error) {
	var updated *domain.Reservation
	err := r.s.exec(func(t *tables) error {
		res, ok := t.reservations[id]
		if !ok {
			return repository.ErrNotFound
		}
		if res.Status != domain.ReservationActive {
			return conflict("reservation is " + string(res.Status))
		}
		res.Status = to
		res.EndTime.SetValid(endTime.UTC())
		res.UpdatedAt = r.s.now()
		t.reservations[id] = res
		updated = &res
		return nil
	})
	return updated, err
}

func (r *reservationRepository) SumRevenue(_ context.Context) (float64, error) {
	var total float64
	_ = r.s.exec(func(t *tables) error {
		for _, res := range t.reservations {
			if res.Status == domain.ReservationActive || res.Status == domain.ReservationCompleted {
				total += res.Price
			}
		}
		return nil
	})
	return total, nil
}

// filter returns matching reservations newest first, or by ascending id when
// newestFirst is false.
func (r *reservationRepository) filter(match func(domain.Reservation) bool, newestFirst bool) []domain.Reservation {
	var out []domain.Reservation
	_ = r.s.exec(func(t *tables) error {
		for _, res := range t.reservations {
			if match(res) {
				out = append(out, res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func slotsOf(t *tables, plotID int) []domain.Slot {
	var slots []domain.Slot
	for _, slot := range t.slots {
		if slot.PlotID == plotID {
			slots = append(slots, slot)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots
}

// deleteSlot detaches the slot's reservations instead of dropping them.
func deleteSlot(t *tables, id int) {
	delete(t.slots, id)
	for rid, res := range t.reservations {
		if res.SlotID.Valid && int(res.SlotID.Int64) == id {
			res.SlotID = null.Int{}
			t.reservations[rid] = res
		}
	}
}

func count(slots []domain.Slot) domain.Occupancy {
	var occ domain.Occupancy
	for _, slot := range slots {
		if slot.Status == domain.SlotOccupied {
			occ.Occupied++
		} else {
			occ.Vacant++
		}
	}
	return occ
}
