package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *MemoryStore
	bookings *BookingService
	schedule *ScheduleService

	vet      Vet
	vetActor Actor
	owner    Actor
	pet      Pet
}

// newFixture seeds one active vet working mon 09:00-17:00 and one owner with
// one pet.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := NewMemoryStore()
	locker := NewLocalLocker(time.Second)
	logger := zerolog.Nop()

	vet := Vet{ID: uuid.New(), FullName: "Dr. Ada Hart", Specialty: SpecialtyGeneralPractice, IsActive: true}
	store.PutVet(vet)

	ownerID := uuid.New()
	store.PutOwner(Owner{ID: ownerID, FullName: "Sam Reed", Email: "sam@example.com"})

	pet := Pet{ID: uuid.New(), OwnerID: ownerID, Name: "Biscuit", Species: "dog"}
	store.PutPet(pet)

	_, err := store.CreateWorkingHour(context.Background(), WorkingHour{
		VetID:     vet.ID,
		Day:       Monday,
		StartTime: NewTimeOfDay(9, 0),
		EndTime:   NewTimeOfDay(17, 0),
		IsActive:  true,
	})
	require.NoError(t, err)

	vetID := vet.ID
	return &fixture{
		store:    store,
		bookings: NewBookingService(store, locker, logger),
		schedule: NewScheduleService(store, locker, logger),
		vet:      vet,
		vetActor: Actor{UserID: uuid.New(), Role: RoleVet, VetID: &vetID},
		owner:    Actor{UserID: ownerID, Role: RoleOwner},
		pet:      pet,
	}
}

// at returns the given wall time on monday plus dayOffset days.
func at(dayOffset, hour, minute int) time.Time {
	return monday.AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func (f *fixture) book(t *testing.T, start, end time.Time) (*Booking, error) {
	t.Helper()
	return f.bookings.CreateBooking(context.Background(), f.owner, CreateBookingInput{
		PetID:   f.pet.ID,
		VetID:   f.vet.ID,
		StartAt: start,
		EndAt:   end,
	})
}

func (f *fixture) addTimeOff(t *testing.T, start, end time.Time) {
	t.Helper()
	_, err := f.store.CreateTimeOff(context.Background(), TimeOff{VetID: f.vet.ID, StartAt: start, EndAt: end})
	require.NoError(t, err)
}
