package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tanishqsrivastavaa/petique-app/internal/metrics"
	redisclient "github.com/tanishqsrivastavaa/petique-app/internal/redis"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
)

type CreateBookingInput struct {
	PetID   uuid.UUID
	VetID   uuid.UUID
	StartAt time.Time
	EndAt   time.Time
	Reason  *string
}

type BookingService struct {
	store    Store
	resolver *Resolver
	locker   Locker
	logger   zerolog.Logger
}

func NewBookingService(store Store, locker Locker, logger zerolog.Logger) *BookingService {
	return &BookingService{
		store:    store,
		resolver: NewResolver(store, store, store),
		locker:   locker,
		logger:   logger.With().Str("component", "booking_service").Logger(),
	}
}

// CreateBooking reserves [StartAt, EndAt) with the vet for one of the owner's
// pets. The availability check and the insert run under the per-vet lock, and
// the store re-checks overlap at commit time.
func (s *BookingService) CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*Booking, error) {
	created, err := s.createBooking(ctx, actor, in)
	metrics.IncBookingCreate(createOutcome(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("booking_id", created.ID.String()).
		Str("vet_id", created.VetID.String()).
		Time("start_at", created.StartAt).
		Time("end_at", created.EndAt).
		Msg("booking created")

	return created, nil
}

func (s *BookingService) createBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*Booking, error) {
	if actor.Role != RoleOwner {
		return nil, &PermissionError{Message: "only owners can create bookings"}
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	start, end := in.StartAt.UTC(), in.EndAt.UTC()

	pet, err := s.store.GetPetByID(ctx, in.PetID)
	if err != nil {
		if errors.Is(err, ErrPetNotFound) {
			return nil, &NotFoundError{Resource: "pet", Err: err}
		}
		return nil, fmt.Errorf("load pet: %w", err)
	}
	if pet.OwnerID != actor.UserID {
		return nil, &PermissionError{Message: "pet does not belong to the caller"}
	}

	vet, err := s.store.GetVetByID(ctx, in.VetID)
	if err != nil {
		if errors.Is(err, ErrVetNotFound) {
			return nil, &NotFoundError{Resource: "vet", Err: err}
		}
		return nil, fmt.Errorf("load vet: %w", err)
	}
	if !vet.IsActive {
		return nil, &NotFoundError{Resource: "vet", Err: ErrVetNotFound}
	}

	var created *Booking

	err = s.locker.WithVetLock(ctx, vet.ID, func(lockCtx context.Context) error {
		free, reason, err := s.resolver.IsSlotFree(lockCtx, vet.ID, start, end)
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		if !free {
			return &ConflictError{Reason: reason}
		}

		b, err := s.store.CreateBooking(lockCtx, Booking{
			ID:      uuid.New(),
			VetID:   vet.ID,
			PetID:   pet.ID,
			OwnerID: actor.UserID,
			StartAt: start,
			EndAt:   end,
			Status:  StatusPending,
			Reason:  in.Reason,
		})
		if err != nil {
			switch {
			case errors.Is(err, ErrOverlap):
				return &ConflictError{Reason: ReasonBookingConflict}
			case errors.Is(err, ErrTimeOffOverlap):
				return &ConflictError{Reason: ReasonTimeOff}
			}
			return fmt.Errorf("insert booking: %w", err)
		}
		created = b

		s.logEvent(lockCtx, b.ID, EventBookingCreated, map[string]any{
			"vet_id":   b.VetID.String(),
			"pet_id":   b.PetID.String(),
			"owner_id": b.OwnerID.String(),
			"start_at": b.StartAt,
			"end_at":   b.EndAt,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrVetBusy
		}
		return nil, err
	}

	return created, nil
}

func validateCreate(in CreateBookingInput) error {
	var fields []string
	if in.PetID == uuid.Nil {
		fields = append(fields, "pet_id is required")
	}
	if in.VetID == uuid.Nil {
		fields = append(fields, "vet_id is required")
	}
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
		return NewValidationError(fields...)
	}
	return nil
}

func createOutcome(err error) string {
	if err == nil {
		return "created"
	}
	if reason, ok := ConflictReasonOf(err); ok {
		return string(reason)
	}
	switch {
	case errors.Is(err, ErrVetBusy):
		return "busy"
	case IsValidation(err):
		return "invalid"
	case IsNotFound(err):
		return "not_found"
	case IsPermission(err):
		return "forbidden"
	}
	return "error"
}

// UpdateStatus moves a booking along the lifecycle on behalf of actor. The
// write is a compare-and-set on the status the decision was made against.
func (s *BookingService) UpdateStatus(ctx context.Context, actor Actor, id uuid.UUID, to BookingStatus) (*Booking, error) {
	if !to.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown status %q", to))
	}

	b, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from := b.Status

	if err := CheckTransition(actor.Role, from, to); err != nil {
		metrics.IncBookingTransition(string(from), string(to), "rejected")
		return nil, err
	}

	updated, err := s.store.UpdateBookingStatus(ctx, id, from, to)
	if err != nil {
		switch {
		case errors.Is(err, ErrStatusChanged):
			metrics.IncBookingTransition(string(from), string(to), "rejected")
			return nil, &StateTransitionError{From: from, To: to}
		case errors.Is(err, ErrBookingNotFound):
			return nil, &NotFoundError{Resource: "booking", Err: err}
		}
		metrics.IncBookingTransition(string(from), string(to), "error")
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	metrics.IncBookingTransition(string(from), string(to), "ok")

	s.logEvent(ctx, updated.ID, EventBookingStatusChanged, map[string]any{
		"from":  from,
		"to":    to,
		"actor": actor.UserID.String(),
		"role":  actor.Role,
	})

	s.logger.Info().
		Str("booking_id", updated.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("role", string(actor.Role)).
		Msg("booking status changed")

	return updated, nil
}

// GetBooking returns a booking visible to actor. Vets also get the pet and
// owner summaries.
func (s *BookingService) GetBooking(ctx context.Context, actor Actor, id uuid.UUID) (*BookingDetail, error) {
	b, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	detail := &BookingDetail{Booking: *b}

	pet, err := s.store.GetPetByID(ctx, b.PetID)
	if err != nil && !errors.Is(err, ErrPetNotFound) {
		return nil, fmt.Errorf("load pet: %w", err)
	}
	detail.Pet = pet

	if actor.Role == RoleVet {
		owner, err := s.store.GetOwnerByID(ctx, b.OwnerID)
		if err != nil && !errors.Is(err, ErrOwnerNotFound) {
			return nil, fmt.Errorf("load owner: %w", err)
		}
		detail.Owner = owner
	}

	return detail, nil
}

func (s *BookingService) ListOwnerBookings(ctx context.Context, actor Actor) ([]Booking, error) {
	if actor.Role != RoleOwner {
		return nil, &PermissionError{Message: "owner role required"}
	}
	bookings, err := s.store.ListBookingsByOwner(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by owner: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) ListVetBookings(ctx context.Context, actor Actor) ([]Booking, error) {
	vetID, err := requireVet(actor)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.ListBookingsByVet(ctx, vetID)
	if err != nil {
		return nil, fmt.Errorf("list bookings by vet: %w", err)
	}
	return bookings, nil
}

// loadOwned fetches a booking and checks that actor is its owner or its vet.
func (s *BookingService) loadOwned(ctx context.Context, actor Actor, id uuid.UUID) (*Booking, error) {
	b, err := s.store.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, &NotFoundError{Resource: "booking", Err: err}
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	switch actor.Role {
	case RoleOwner:
		if b.OwnerID == actor.UserID {
			return b, nil
		}
	case RoleVet:
		if actor.VetID != nil && *actor.VetID == b.VetID {
			return b, nil
		}
	}
	return nil, &PermissionError{Message: "booking belongs to another account"}
}

func requireVet(actor Actor) (uuid.UUID, error) {
	if actor.Role != RoleVet || actor.VetID == nil {
		return uuid.Nil, &PermissionError{Message: "vet role required"}
	}
	return *actor.VetID, nil
}

// logEvent records an audit row. Failures are logged and never fail the caller.
func (s *BookingService) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	id := bookingID
	ev := EventLog{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().Err(err).
			Str("event", eventType).
			Str("booking_id", bookingID.String()).
			Msg("insert event log")
	}
}
