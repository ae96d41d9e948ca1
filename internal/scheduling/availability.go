package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tanishqsrivastavaa/petique-app/internal/metrics"
)

// Resolver answers availability questions for a vet by combining recurring
// working hours, ad-hoc time off and active bookings. It holds no state
// between calls.
type Resolver struct {
	hours    WorkingHourStore
	timeOff  TimeOffStore
	bookings BookingStore
}

func NewResolver(hours WorkingHourStore, timeOff TimeOffStore, bookings BookingStore) *Resolver {
	return &Resolver{
		hours:    hours,
		timeOff:  timeOff,
		bookings: bookings,
	}
}

// IsSlotFree fails closed: an unavailable slot is reported through the reason
// code, not an error. Errors are reserved for invalid input and store failures.
func (r *Resolver) IsSlotFree(ctx context.Context, vetID uuid.UUID, start, end time.Time) (bool, ConflictReason, error) {
	began := time.Now()
	defer func() { metrics.ObserveAvailabilityCheck(time.Since(began)) }()

	slot := Interval{Start: start.UTC(), End: end.UTC()}
	if !slot.Valid() {
		return false, ReasonNone, NewValidationError("end_at must be after start_at")
	}

	windows, err := r.windowsFor(ctx, vetID, slot.Start)
	if err != nil {
		return false, ReasonNone, err
	}
	contained := false
	for _, w := range windows {
		if w.Contains(slot) {
			contained = true
			break
		}
	}
	if !contained {
		return false, ReasonOutsideHours, nil
	}

	offs, err := r.timeOff.ListTimeOffBetween(ctx, vetID, slot.Start, slot.End)
	if err != nil {
		return false, ReasonNone, fmt.Errorf("load time off: %w", err)
	}
	for _, off := range offs {
		if Overlaps(off.Interval(), slot) {
			return false, ReasonTimeOff, nil
		}
	}

	booked, err := r.bookings.ListActiveBookingsBetween(ctx, vetID, slot.Start, slot.End)
	if err != nil {
		return false, ReasonNone, fmt.Errorf("load bookings: %w", err)
	}
	for _, b := range booked {
		if b.Status.Active() && Overlaps(b.Interval(), slot) {
			return false, ReasonBookingConflict, nil
		}
	}

	return true, ReasonNone, nil
}

// ListFreeSlots subtracts time off and active bookings from the vet's working
// windows on date. With slotDuration > 0 the remainder is cut into fixed-length
// slots, otherwise the free intervals are returned as they are.
func (r *Resolver) ListFreeSlots(ctx context.Context, vetID uuid.UUID, date time.Time, slotDuration time.Duration) ([]Interval, error) {
	if slotDuration < 0 {
		return nil, NewValidationError("slot duration must not be negative")
	}

	dayStart := TimeOfDay(0).On(date)
	dayEnd := dayStart.Add(24 * time.Hour)

	windows, err := r.windowsFor(ctx, vetID, dayStart)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return []Interval{}, nil
	}

	offs, err := r.timeOff.ListTimeOffBetween(ctx, vetID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load time off: %w", err)
	}
	booked, err := r.bookings.ListActiveBookingsBetween(ctx, vetID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	busy := make([]Interval, 0, len(offs)+len(booked))
	for _, off := range offs {
		busy = append(busy, off.Interval())
	}
	for _, b := range booked {
		if b.Status.Active() {
			busy = append(busy, b.Interval())
		}
	}

	free := Bucket(Subtract(windows, busy), slotDuration)
	if free == nil {
		free = []Interval{}
	}
	return free, nil
}

// windowsFor returns the merged active working windows on day's civil date.
// Overlapping rows for the same day are tolerated by merging them.
func (r *Resolver) windowsFor(ctx context.Context, vetID uuid.UUID, day time.Time) ([]Interval, error) {
	rows, err := r.hours.ListActiveWorkingHoursForDay(ctx, vetID, WeekdayOf(day))
	if err != nil {
		return nil, fmt.Errorf("load working hours: %w", err)
	}

	windows := make([]Interval, 0, len(rows))
	for _, wh := range rows {
		if !wh.IsActive || wh.StartTime >= wh.EndTime {
			continue
		}
		windows = append(windows, wh.Window(day))
	}
	return Merge(windows), nil
}
