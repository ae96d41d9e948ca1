package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a Store held in process memory behind one mutex. It backs
// STORAGE_DRIVER=memory and the service tests.
type MemoryStore struct {
	mu sync.RWMutex

	vets     map[uuid.UUID]Vet
	owners   map[uuid.UUID]Owner
	pets     map[uuid.UUID]Pet
	hours    map[uuid.UUID]WorkingHour
	timeOff  map[uuid.UUID]TimeOff
	bookings map[uuid.UUID]Booking
	events   []EventLog
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vets:     make(map[uuid.UUID]Vet),
		owners:   make(map[uuid.UUID]Owner),
		pets:     make(map[uuid.UUID]Pet),
		hours:    make(map[uuid.UUID]WorkingHour),
		timeOff:  make(map[uuid.UUID]TimeOff),
		bookings: make(map[uuid.UUID]Booking),
	}
}

// Profiles are owned by other services; these setters stand in for them.

func (m *MemoryStore) PutVet(v Vet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vets[v.ID] = v
}

func (m *MemoryStore) PutOwner(o Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
}

func (m *MemoryStore) PutPet(p Pet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pets[p.ID] = p
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) GetVetByID(ctx context.Context, id uuid.UUID) (*Vet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vets[id]
	if !ok {
		return nil, ErrVetNotFound
	}
	return &v, nil
}

func (m *MemoryStore) GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pets[id]
	if !ok {
		return nil, ErrPetNotFound
	}
	return &p, nil
}

func (m *MemoryStore) GetOwnerByID(ctx context.Context, id uuid.UUID) (*Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[id]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	return &o, nil
}

func (m *MemoryStore) ListWorkingHours(ctx context.Context, vetID uuid.UUID) ([]WorkingHour, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []WorkingHour{}
	for _, wh := range m.hours {
		if wh.VetID == vetID {
			result = append(result, wh)
		}
	}
	sortWorkingHours(result)
	return result, nil
}

func (m *MemoryStore) ListActiveWorkingHoursForDay(ctx context.Context, vetID uuid.UUID, day Weekday) ([]WorkingHour, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []WorkingHour
	for _, wh := range m.hours {
		if wh.VetID == vetID && wh.Day == day && wh.IsActive {
			result = append(result, wh)
		}
	}
	sortWorkingHours(result)
	return result, nil
}

func (m *MemoryStore) GetWorkingHour(ctx context.Context, id uuid.UUID) (*WorkingHour, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wh, ok := m.hours[id]
	if !ok {
		return nil, ErrWorkingHourNotFound
	}
	return &wh, nil
}

func (m *MemoryStore) CreateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vets[wh.VetID]; !ok {
		return nil, ErrVetNotFound
	}
	if wh.ID == uuid.Nil {
		wh.ID = uuid.New()
	}
	wh.CreatedAt = time.Now().UTC()
	m.hours[wh.ID] = wh
	return &wh, nil
}

func (m *MemoryStore) DeleteWorkingHour(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hours[id]; !ok {
		return ErrWorkingHourNotFound
	}
	delete(m.hours, id)
	return nil
}

func (m *MemoryStore) ListTimeOff(ctx context.Context, vetID uuid.UUID) ([]TimeOff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []TimeOff{}
	for _, t := range m.timeOff {
		if t.VetID == vetID {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (m *MemoryStore) ListTimeOffBetween(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]TimeOff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := Interval{Start: from, End: to}
	var result []TimeOff
	for _, t := range m.timeOff {
		if t.VetID == vetID && Overlaps(t.Interval(), window) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result, nil
}

func (m *MemoryStore) GetTimeOff(ctx context.Context, id uuid.UUID) (*TimeOff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.timeOff[id]
	if !ok {
		return nil, ErrTimeOffNotFound
	}
	return &t, nil
}

func (m *MemoryStore) CreateTimeOff(ctx context.Context, t TimeOff) (*TimeOff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vets[t.VetID]; !ok {
		return nil, ErrVetNotFound
	}
	for _, b := range m.bookings {
		if b.VetID == t.VetID && b.Status.Active() && Overlaps(b.Interval(), t.Interval()) {
			return nil, ErrOverlap
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	m.timeOff[t.ID] = t
	return &t, nil
}

func (m *MemoryStore) DeleteTimeOff(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timeOff[id]; !ok {
		return ErrTimeOffNotFound
	}
	delete(m.timeOff, id)
	return nil
}

func (m *MemoryStore) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (m *MemoryStore) ListBookingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Booking, error) {
	return m.listBookings(func(b Booking) bool { return b.OwnerID == ownerID }), nil
}

func (m *MemoryStore) ListBookingsByVet(ctx context.Context, vetID uuid.UUID) ([]Booking, error) {
	return m.listBookings(func(b Booking) bool { return b.VetID == vetID }), nil
}

func (m *MemoryStore) ListActiveBookingsBetween(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error) {
	window := Interval{Start: from, End: to}
	return m.listBookings(func(b Booking) bool {
		return b.VetID == vetID && b.Status.Active() && Overlaps(b.Interval(), window)
	}), nil
}

func (m *MemoryStore) listBookings(match func(Booking) bool) []Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Booking{}
	for _, b := range m.bookings {
		if match(b) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartAt.Before(result[j].StartAt) })
	return result
}

// CreateBooking re-checks overlap with bookings and time off under the write
// lock, standing in for the commit-time checks of PgStore.
func (m *MemoryStore) CreateBooking(ctx context.Context, b Booking) (*Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vets[b.VetID]; !ok {
		return nil, ErrVetNotFound
	}
	if _, ok := m.pets[b.PetID]; !ok {
		return nil, ErrPetNotFound
	}
	if b.Status.Active() {
		for _, existing := range m.bookings {
			if existing.VetID == b.VetID && existing.Status.Active() && Overlaps(existing.Interval(), b.Interval()) {
				return nil, ErrOverlap
			}
		}
		for _, off := range m.timeOff {
			if off.VetID == b.VetID && Overlaps(off.Interval(), b.Interval()) {
				return nil, ErrTimeOffOverlap
			}
		}
	}

	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	m.bookings[b.ID] = b
	return &b, nil
}

func (m *MemoryStore) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if b.Status != from {
		return nil, ErrStatusChanged
	}

	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	m.bookings[id] = b
	return &b, nil
}

func (m *MemoryStore) InsertEvent(ctx context.Context, ev EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	m.events = append(m.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryStore) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]EventLog(nil), m.events...)
}

var dayOrder = map[Weekday]int{
	Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3, Friday: 4, Saturday: 5, Sunday: 6,
}

func sortWorkingHours(hours []WorkingHour) {
	sort.Slice(hours, func(i, j int) bool {
		if hours[i].Day != hours[j].Day {
			return dayOrder[hours[i].Day] < dayOrder[hours[j].Day]
		}
		return hours[i].StartTime < hours[j].StartTime
	})
}
