package database

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvax/vaxbook/internal/domain"
)

func newBookingFixture(t *testing.T) (*BookingRepo, *SlotRepo, context.Context, uuid.UUID, uuid.UUID, *domain.User) {
	t.Helper()

	pool := testPool(t)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	bookings := NewBookingRepo(pool, clock)
	slots := NewSlotRepo(pool, clock)
	ctx := context.Background()

	centerID := uuid.New()
	user := createTestUser(t, pool, domain.RolePatient, nil)
	slotID := createTestSlot(t, pool, centerID, "2026-03-15", "09:00")
	return bookings, slots, ctx, centerID, slotID, user
}

func createReq(user *domain.User, slotID uuid.UUID) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		UserID:      user.ID,
		SlotID:      slotID,
		PatientName: "Linh Tran",
		VaccineName: "MMR",
		DoseNumber:  1,
	}
}

func TestBookingRepo_CreateBooksSlot(t *testing.T) {
	bookings, slots, ctx, centerID, slotID, user := newBookingFixture(t)

	b, err := bookings.Create(ctx, createReq(user, slotID), "VB-TEST0001")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.PaymentUnpaid, b.PaymentStatus)
	assert.Equal(t, centerID, b.CenterID)
	assert.Equal(t, "2026-03-15", b.SlotDate)
	assert.Equal(t, "09:00", b.SlotTime)

	slot, err := slots.GetByID(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, slot.Booked)
	assert.False(t, slot.TempReserved)

	// The slot is gone for everyone else.
	_, err = bookings.Create(ctx, createReq(user, slotID), "VB-TEST0002")
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
}

func TestBookingRepo_CreateRespectsForeignHold(t *testing.T) {
	bookings, slots, ctx, _, slotID, user := newBookingFixture(t)

	other := createTestUser(t, slots.pool, domain.RolePatient, nil)
	_, _, err := slots.TryHold(ctx, slotID, other.ID, 10*time.Minute)
	require.NoError(t, err)

	_, err = bookings.Create(ctx, createReq(user, slotID), "VB-TEST0003")
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
}

// Exactly one of many concurrent creates for the same slot wins; the row lock
// linearizes them.
func TestBookingRepo_ConcurrentCreateSingleWinner(t *testing.T) {
	bookings, _, ctx, _, slotID, user := newBookingFixture(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		lost      int
	)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			code := "VB-RACE000" + string(rune('0'+n))
			_, err := bookings.Create(ctx, createReq(user, slotID), code)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrSlotUnavailable):
				lost++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, lost)
}

func TestBookingRepo_StatusTransitions(t *testing.T) {
	bookings, slots, ctx, _, slotID, user := newBookingFixture(t)

	b, err := bookings.Create(ctx, createReq(user, slotID), "VB-TEST0004")
	require.NoError(t, err)

	// pending -> confirmed, idempotent re-confirm.
	b2, err := bookings.CheckIn(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, b2.Status)
	b2, err = bookings.CheckIn(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, b2.Status)

	// confirmed -> completed marks payment paid and records the batch.
	b3, err := bookings.Complete(ctx, b.ID, "BATCH-42")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, b3.Status)
	assert.Equal(t, domain.PaymentPaid, b3.PaymentStatus)
	assert.Equal(t, "BATCH-42", b3.BatchNumber)

	// Terminal states reject every further transition.
	_, err = bookings.CheckIn(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	_, err = bookings.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	// The completed slot stays booked.
	slot, err := slots.GetByID(ctx, slotID)
	require.NoError(t, err)
	assert.True(t, slot.Booked)
}

func TestBookingRepo_NoShowFreesSlot(t *testing.T) {
	bookings, slots, ctx, _, slotID, user := newBookingFixture(t)

	b, err := bookings.Create(ctx, createReq(user, slotID), "VB-TEST0005")
	require.NoError(t, err)

	b2, err := bookings.MarkNoShow(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingNoShow, b2.Status)

	slot, err := slots.GetByID(ctx, slotID)
	require.NoError(t, err)
	assert.False(t, slot.Booked)
	assert.False(t, slot.TempReserved)

	// The freed slot is immediately bookable again.
	_, err = bookings.Create(ctx, createReq(user, slotID), "VB-TEST0006")
	require.NoError(t, err)
}

func TestBookingRepo_CancelRefundsAndFrees(t *testing.T) {
	bookings, slots, ctx, _, slotID, user := newBookingFixture(t)

	b, err := bookings.Create(ctx, createReq(user, slotID), "VB-TEST0007")
	require.NoError(t, err)

	b2, err := bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, b2.Status)
	assert.Equal(t, domain.PaymentRefunded, b2.PaymentStatus)

	slot, err := slots.GetByID(ctx, slotID)
	require.NoError(t, err)
	assert.False(t, slot.Booked)
}
