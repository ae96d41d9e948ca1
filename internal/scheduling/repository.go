package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProfileStore answers existence and ownership questions about profiles owned
// by other services.
type ProfileStore interface {
	GetVetByID(ctx context.Context, id uuid.UUID) (*Vet, error)
	GetPetByID(ctx context.Context, id uuid.UUID) (*Pet, error)
	GetOwnerByID(ctx context.Context, id uuid.UUID) (*Owner, error)
}

type WorkingHourStore interface {
	ListWorkingHours(ctx context.Context, vetID uuid.UUID) ([]WorkingHour, error)
	ListActiveWorkingHoursForDay(ctx context.Context, vetID uuid.UUID, day Weekday) ([]WorkingHour, error)
	GetWorkingHour(ctx context.Context, id uuid.UUID) (*WorkingHour, error)
	CreateWorkingHour(ctx context.Context, wh WorkingHour) (*WorkingHour, error)
	DeleteWorkingHour(ctx context.Context, id uuid.UUID) error
}

type TimeOffStore interface {
	ListTimeOff(ctx context.Context, vetID uuid.UUID) ([]TimeOff, error)
	// ListTimeOffBetween returns entries overlapping [from, to).
	ListTimeOffBetween(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]TimeOff, error)
	GetTimeOff(ctx context.Context, id uuid.UUID) (*TimeOff, error)

	// CreateTimeOff inserts t atomically, re-checking for active bookings at
	// commit time. Returns ErrOverlap when one intersects t.
	CreateTimeOff(ctx context.Context, t TimeOff) (*TimeOff, error)
	DeleteTimeOff(ctx context.Context, id uuid.UUID) error
}

type BookingStore interface {
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	ListBookingsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Booking, error)
	ListBookingsByVet(ctx context.Context, vetID uuid.UUID) ([]Booking, error)

	// ListActiveBookingsBetween returns pending and confirmed bookings
	// overlapping [from, to).
	ListActiveBookingsBetween(ctx context.Context, vetID uuid.UUID, from, to time.Time) ([]Booking, error)

	// CreateBooking inserts b atomically, re-checking overlap with active
	// bookings and time off at commit time. Returns ErrOverlap when the slot
	// is taken and ErrTimeOffOverlap when the vet is away.
	CreateBooking(ctx context.Context, b Booking) (*Booking, error)

	// UpdateBookingStatus moves a booking from -> to only if its stored status
	// is still from. Returns ErrStatusChanged otherwise.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus) (*Booking, error)
}

type EventStore interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Store is everything the scheduling services need from persistence.
type Store interface {
	ProfileStore
	WorkingHourStore
	TimeOffStore
	BookingStore
	EventStore
	Ping(ctx context.Context) error
}

// Locker serialises booking creation per vet so that check-then-insert is
// effectively atomic.
type Locker interface {
	WithVetLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error
}
