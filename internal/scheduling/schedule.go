package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/tanishqsrivastavaa/petique-app/internal/redis"
)

type WorkingHourInput struct {
	Day       Weekday
	StartTime TimeOfDay
	EndTime   TimeOfDay
	IsActive  *bool
}

type TimeOffInput struct {
	StartAt time.Time
	EndAt   time.Time
	Reason  *string
}

// Availability is the answer to a single-slot check.
type Availability struct {
	Available bool           `json:"available"`
	Reason    ConflictReason `json:"reason,omitempty"`
}

// ScheduleService manages a vet's working hours and time off and answers
// availability queries. Schedule edits take the same per-vet lock as booking
// creation so they cannot strand an active booking.
type ScheduleService struct {
	store    Store
	resolver *Resolver
	locker   Locker
	logger   zerolog.Logger
}

func NewScheduleService(store Store, locker Locker, logger zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		store:    store,
		resolver: NewResolver(store, store, store),
		locker:   locker,
		logger:   logger.With().Str("component", "schedule_service").Logger(),
	}
}

func (s *ScheduleService) ListWorkingHours(ctx context.Context, vetID uuid.UUID) ([]WorkingHour, error) {
	if err := s.ensureVet(ctx, vetID); err != nil {
		return nil, err
	}
	hours, err := s.store.ListWorkingHours(ctx, vetID)
	if err != nil {
		return nil, fmt.Errorf("list working hours: %w", err)
	}
	return hours, nil
}

func (s *ScheduleService) AddWorkingHour(ctx context.Context, actor Actor, in WorkingHourInput) (*WorkingHour, error) {
	vetID, err := requireVet(actor)
	if err != nil {
		return nil, err
	}

	var fields []string
	if !in.Day.Valid() {
		fields = append(fields, "day must be one of mon..sun")
	}
	if in.StartTime < 0 || in.EndTime > secondsPerDay {
		fields = append(fields, "times must fall within a single day")
	}
	if in.StartTime >= in.EndTime {
		fields = append(fields, "end_time must be after start_time")
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields...)
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	wh, err := s.store.CreateWorkingHour(ctx, WorkingHour{
		ID:        uuid.New(),
		VetID:     vetID,
		Day:       in.Day,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		IsActive:  active,
	})
	if err != nil {
		return nil, fmt.Errorf("create working hour: %w", err)
	}

	s.logger.Info().
		Str("vet_id", vetID.String()).
		Str("day", string(wh.Day)).
		Str("start", wh.StartTime.String()).
		Str("end", wh.EndTime.String()).
		Msg("working hour added")

	return wh, nil
}

// RemoveWorkingHour deletes one of the vet's working hours. It is refused with
// a booking_conflict when an active booking would no longer be covered by the
// remaining windows.
func (s *ScheduleService) RemoveWorkingHour(ctx context.Context, actor Actor, id uuid.UUID) error {
	vetID, err := requireVet(actor)
	if err != nil {
		return err
	}

	wh, err := s.store.GetWorkingHour(ctx, id)
	if err != nil {
		if errors.Is(err, ErrWorkingHourNotFound) {
			return &NotFoundError{Resource: "working hour", Err: err}
		}
		return fmt.Errorf("load working hour: %w", err)
	}
	if wh.VetID != vetID {
		return &PermissionError{Message: "working hour belongs to another vet"}
	}

	err = s.withLock(ctx, vetID, func(lockCtx context.Context) error {
		if wh.IsActive {
			stranded, err := s.strandedByRemoval(lockCtx, *wh)
			if err != nil {
				return err
			}
			if stranded {
				return &ConflictError{Reason: ReasonBookingConflict}
			}
		}

		if err := s.store.DeleteWorkingHour(lockCtx, id); err != nil {
			if errors.Is(err, ErrWorkingHourNotFound) {
				return &NotFoundError{Resource: "working hour", Err: err}
			}
			return fmt.Errorf("delete working hour: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("vet_id", vetID.String()).Str("working_hour_id", id.String()).Msg("working hour removed")
	return nil
}

// strandedByRemoval reports whether dropping removed leaves an active booking on
// that weekday outside every remaining window.
func (s *ScheduleService) strandedByRemoval(ctx context.Context, removed WorkingHour) (bool, error) {
	rows, err := s.store.ListActiveWorkingHoursForDay(ctx, removed.VetID, removed.Day)
	if err != nil {
		return false, fmt.Errorf("load working hours: %w", err)
	}
	bookings, err := s.store.ListBookingsByVet(ctx, removed.VetID)
	if err != nil {
		return false, fmt.Errorf("load bookings: %w", err)
	}

	for _, b := range bookings {
		if !b.Status.Active() || WeekdayOf(b.StartAt) != removed.Day {
			continue
		}
		if !removed.Window(b.StartAt).Contains(b.Interval()) {
			// the booking never depended on the removed window
			continue
		}

		var remaining []Interval
		for _, wh := range rows {
			if wh.ID != removed.ID && wh.IsActive {
				remaining = append(remaining, wh.Window(b.StartAt))
			}
		}
		covered := false
		for _, w := range Merge(remaining) {
			if w.Contains(b.Interval()) {
				covered = true
				break
			}
		}
		if !covered {
			return true, nil
		}
	}
	return false, nil
}

func (s *ScheduleService) ListTimeOff(ctx context.Context, vetID uuid.UUID) ([]TimeOff, error) {
	if err := s.ensureVet(ctx, vetID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListTimeOff(ctx, vetID)
	if err != nil {
		return nil, fmt.Errorf("list time off: %w", err)
	}
	return entries, nil
}

// AddTimeOff records an absence for the calling vet. Time off over an active
// booking is refused with a booking_conflict; the booking must be cancelled
// first.
func (s *ScheduleService) AddTimeOff(ctx context.Context, actor Actor, in TimeOffInput) (*TimeOff, error) {
	vetID, err := requireVet(actor)
	if err != nil {
		return nil, err
	}

	var fields []string
	if in.StartAt.IsZero() {
		fields = append(fields, "start_at is required")
	}
	if in.EndAt.IsZero() {
		fields = append(fields, "end_at is required")
	}
	if !in.StartAt.IsZero() && !in.EndAt.IsZero() && !in.StartAt.Before(in.EndAt) {
		fields = append(fields, "end_at must be after start_at")
	}
	if len(fields) > 0 {
		return nil, NewValidationError(fields...)
	}

	start, end := in.StartAt.UTC(), in.EndAt.UTC()

	var created *TimeOff
	err = s.withLock(ctx, vetID, func(lockCtx context.Context) error {
		booked, err := s.store.ListActiveBookingsBetween(lockCtx, vetID, start, end)
		if err != nil {
			return fmt.Errorf("load bookings: %w", err)
		}
		for _, b := range booked {
			if b.Status.Active() && Overlaps(b.Interval(), Interval{Start: start, End: end}) {
				return &ConflictError{Reason: ReasonBookingConflict}
			}
		}

		t, err := s.store.CreateTimeOff(lockCtx, TimeOff{
			ID:      uuid.New(),
			VetID:   vetID,
			StartAt: start,
			EndAt:   end,
			Reason:  in.Reason,
		})
		if err != nil {
			if errors.Is(err, ErrOverlap) {
				return &ConflictError{Reason: ReasonBookingConflict}
			}
			return fmt.Errorf("create time off: %w", err)
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("vet_id", vetID.String()).
		Time("start_at", created.StartAt).
		Time("end_at", created.EndAt).
		Msg("time off added")

	return created, nil
}

func (s *ScheduleService) RemoveTimeOff(ctx context.Context, actor Actor, id uuid.UUID) error {
	vetID, err := requireVet(actor)
	if err != nil {
		return err
	}

	t, err := s.store.GetTimeOff(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTimeOffNotFound) {
			return &NotFoundError{Resource: "time off", Err: err}
		}
		return fmt.Errorf("load time off: %w", err)
	}
	if t.VetID != vetID {
		return &PermissionError{Message: "time off belongs to another vet"}
	}

	if err := s.store.DeleteTimeOff(ctx, id); err != nil {
		if errors.Is(err, ErrTimeOffNotFound) {
			return &NotFoundError{Resource: "time off", Err: err}
		}
		return fmt.Errorf("delete time off: %w", err)
	}

	s.logger.Info().Str("vet_id", vetID.String()).Str("time_off_id", id.String()).Msg("time off removed")
	return nil
}

func (s *ScheduleService) CheckSlot(ctx context.Context, vetID uuid.UUID, start, end time.Time) (Availability, error) {
	if err := s.ensureVet(ctx, vetID); err != nil {
		return Availability{}, err
	}
	free, reason, err := s.resolver.IsSlotFree(ctx, vetID, start, end)
	if err != nil {
		return Availability{}, err
	}
	return Availability{Available: free, Reason: reason}, nil
}

func (s *ScheduleService) FreeSlots(ctx context.Context, vetID uuid.UUID, date time.Time, slotDuration time.Duration) ([]Interval, error) {
	if err := s.ensureVet(ctx, vetID); err != nil {
		return nil, err
	}
	return s.resolver.ListFreeSlots(ctx, vetID, date, slotDuration)
}

func (s *ScheduleService) ensureVet(ctx context.Context, vetID uuid.UUID) error {
	if _, err := s.store.GetVetByID(ctx, vetID); err != nil {
		if errors.Is(err, ErrVetNotFound) {
			return &NotFoundError{Resource: "vet", Err: err}
		}
		return fmt.Errorf("load vet: %w", err)
	}
	return nil
}

func (s *ScheduleService) withLock(ctx context.Context, vetID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithVetLock(ctx, vetID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrVetBusy
	}
	return err
}
