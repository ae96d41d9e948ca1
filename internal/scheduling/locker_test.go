package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	vetID := uuid.New()

	t.Run("BusyAfterWait", func(t *testing.T) {
		l := NewLocalLocker(50 * time.Millisecond)
		held := make(chan struct{})
		done := make(chan struct{})

		go func() {
			_ = l.WithVetLock(ctx, vetID, func(ctx context.Context) error {
				close(held)
				<-done
				return nil
			})
		}()
		<-held

		err := l.WithVetLock(ctx, vetID, func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrVetBusy)

		// other vets are not blocked
		err = l.WithVetLock(ctx, uuid.New(), func(ctx context.Context) error { return nil })
		assert.NoError(t, err)

		close(done)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		l := NewLocalLocker(0)
		held := make(chan struct{})
		done := make(chan struct{})
		go func() {
			_ = l.WithVetLock(ctx, vetID, func(ctx context.Context) error {
				close(held)
				<-done
				return nil
			})
		}()
		<-held

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err := l.WithVetLock(cctx, vetID, func(ctx context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrVetBusy)
		close(done)
	})

	t.Run("SlotsReclaimed", func(t *testing.T) {
		l := NewLocalLocker(0)
		for i := 0; i < 5; i++ {
			require.NoError(t, l.WithVetLock(ctx, uuid.New(), func(ctx context.Context) error { return nil }))
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		assert.Empty(t, l.slots)
	})
}

func TestMemoryStoreCompareAndSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b, err := f.book(t, at(0, 10, 0), at(0, 10, 30))
	require.NoError(t, err)

	_, err = f.store.UpdateBookingStatus(ctx, b.ID, StatusConfirmed, StatusCompleted)
	assert.ErrorIs(t, err, ErrStatusChanged)

	_, err = f.store.UpdateBookingStatus(ctx, uuid.New(), StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.store.CreateBooking(ctx, Booking{
		VetID: f.vet.ID, PetID: f.pet.ID, OwnerID: f.owner.UserID,
		StartAt: at(0, 10, 15), EndAt: at(0, 10, 45), Status: StatusPending,
	})
	assert.ErrorIs(t, err, ErrOverlap)
}
