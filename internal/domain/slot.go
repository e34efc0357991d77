package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TimeSlot is a bookable (center, date, time) unit of appointment capacity.
// At most one of {booked, validly-held-by-someone-else} is true at a time.
type TimeSlot struct {
	ID            uuid.UUID  `db:"id"`
	CenterID      uuid.UUID  `db:"center_id"`
	Date          string     `db:"slot_date"` // YYYY-MM-DD
	Time          string     `db:"slot_time"` // HH:MM
	Active        bool       `db:"active"`
	Booked        bool       `db:"booked"`
	BookedBy      *uuid.UUID `db:"booked_by"`
	TempReserved  bool       `db:"temp_reserved"`
	ReservedBy    *uuid.UUID `db:"reserved_by"`
	ReservedUntil *time.Time `db:"reserved_until"`
}

// StartTime combines Date and Time into the slot's scheduled start, in UTC.
func (s *TimeSlot) StartTime() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", s.Date+" "+s.Time)
}

// Claimable reports whether userID may take the slot at the given instant:
// active, not booked, and either unreserved, reserved by userID, or holding
// an expired reservation. Hold expiry is purely a timestamp comparison;
// expired holds are reclaimed lazily by the next contending request.
func (s *TimeSlot) Claimable(userID uuid.UUID, now time.Time) bool {
	if !s.Active || s.Booked {
		return false
	}
	if !s.TempReserved || s.ReservedBy == nil {
		return true
	}
	if *s.ReservedBy == userID {
		return true
	}
	return s.ReservedUntil == nil || !s.ReservedUntil.After(now)
}

// SlotRef locates a slot's viewer group for fan-out.
type SlotRef struct {
	CenterID uuid.UUID
	Date     string
}

// SlotView is the caller-facing projection of a slot. It never exposes who
// holds a foreign reservation.
type SlotView struct {
	ID         uuid.UUID `json:"slotId"`
	Time       string    `json:"time"`
	IsHeldByMe bool      `json:"isHeldByMe"`
}

// SlotRepository is the slot ledger. All mutations are serialized per slot by
// a row-level lock; contention across different slots never blocks.
type SlotRepository interface {
	// TryHold places a soft reservation for userID, clearing any other hold
	// the same user has system-wide first. Returns the reservation deadline
	// and, when another hold was displaced, where it lived so its viewers
	// can be signalled too. Fails with ErrSlotUnavailable when the slot is
	// not claimable.
	TryHold(ctx context.Context, slotID, userID uuid.UUID, ttl time.Duration) (time.Time, *SlotRef, error)

	// Release clears the hold iff it is owned by userID, else ErrNotHeldByYou.
	Release(ctx context.Context, slotID, userID uuid.UUID) error

	// Query returns all free-or-self-held slots for a center and date in time
	// order. userID may be uuid.Nil for unauthenticated callers.
	Query(ctx context.Context, centerID uuid.UUID, date string, userID uuid.UUID) ([]SlotView, error)

	// GetByID loads a slot row without locking it.
	GetByID(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error)
}
