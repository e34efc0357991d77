package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingNoShow    BookingStatus = "no_show"
)

// Terminal reports whether the status admits no further transitions.
// no_show is terminal for the booking even though it frees the slot.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingNoShow
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Booking is the durable, auditable appointment record. Bookings are never
// physically deleted; terminal statuses are the end of the history.
type Booking struct {
	ID            int64         `db:"id"`
	Code          string        `db:"code"`
	UserID        uuid.UUID     `db:"user_id"`
	PatientName   string        `db:"patient_name"`
	GuardianName  string        `db:"guardian_name"`
	VaccineName   string        `db:"vaccine_name"`
	DoseNumber    int           `db:"dose_number"`
	CenterID      uuid.UUID     `db:"center_id"`
	SlotID        uuid.UUID     `db:"slot_id"`
	SlotDate      string        `db:"slot_date"`
	SlotTime      string        `db:"slot_time"`
	Status        BookingStatus `db:"status"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	BatchNumber   string        `db:"batch_number"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// CreateBookingRequest carries the details needed to convert a slot into a
// confirmed appointment.
type CreateBookingRequest struct {
	UserID       uuid.UUID
	SlotID       uuid.UUID
	PatientName  string
	GuardianName string
	VaccineName  string
	DoseNumber   int
}

// BookingRepository persists bookings. The Create and status-transition
// methods run inside a single transaction that row-locks the referenced
// TimeSlot, so exactly one non-terminal booking can reference a slot at any
// instant. Partial state is never observable: any failure rolls back in full.
type BookingRepository interface {
	// Create inserts a pending booking with the given code and atomically
	// flips the slot to booked, clearing any hold. ErrSlotUnavailable when
	// the slot is inactive, booked, or validly held by a different user.
	Create(ctx context.Context, req CreateBookingRequest, code string) (*Booking, error)

	GetByID(ctx context.Context, id int64) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Booking, error)

	// CheckIn transitions pending -> confirmed. Confirming an already
	// confirmed booking is a no-op success; terminal states fail with
	// ErrAlreadyTerminal.
	CheckIn(ctx context.Context, id int64) (*Booking, error)

	// Complete transitions any non-terminal status to completed and marks
	// payment paid, recording the administered batch.
	Complete(ctx context.Context, id int64, batchNumber string) (*Booking, error)

	// MarkNoShow transitions a non-terminal booking to no_show and frees the
	// underlying slot in the same transaction.
	MarkNoShow(ctx context.Context, id int64) (*Booking, error)

	// Cancel transitions pending|confirmed to cancelled, marks payment
	// refunded and frees the slot. Ownership and the cancellation window are
	// checked by the caller; Cancel re-checks status under the row lock.
	Cancel(ctx context.Context, id int64) (*Booking, error)
}
