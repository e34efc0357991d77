package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_Terminal(t *testing.T) {
	assert.False(t, BookingPending.Terminal())
	assert.False(t, BookingConfirmed.Terminal())
	assert.True(t, BookingCompleted.Terminal())
	assert.True(t, BookingCancelled.Terminal())
	assert.True(t, BookingNoShow.Terminal())
}

func TestTimeSlot_StartTime(t *testing.T) {
	slot := TimeSlot{Date: "2026-03-15", Time: "09:30"}
	start, err := slot.StartTime()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC), start)
}

func TestTimeSlot_Claimable(t *testing.T) {
	me := uuid.New()
	other := uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	tests := []struct {
		name string
		slot TimeSlot
		want bool
	}{
		{"free and active", TimeSlot{Active: true}, true},
		{"inactive", TimeSlot{Active: false}, false},
		{"already booked", TimeSlot{Active: true, Booked: true}, false},
		{"held by me", TimeSlot{Active: true, TempReserved: true, ReservedBy: &me, ReservedUntil: &future}, true},
		{"held by other, live", TimeSlot{Active: true, TempReserved: true, ReservedBy: &other, ReservedUntil: &future}, false},
		{"held by other, expired", TimeSlot{Active: true, TempReserved: true, ReservedBy: &other, ReservedUntil: &past}, true},
		{"hold flag without owner", TimeSlot{Active: true, TempReserved: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.slot.Claimable(me, now))
		})
	}
}
