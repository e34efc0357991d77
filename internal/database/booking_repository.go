package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
)

// bookingColumns must match the Scan order in scanBooking.
const bookingColumns = `b.id, b.code, b.user_id, b.patient_name, b.guardian_name, b.vaccine_name, b.dose_number,
	b.center_id, b.slot_id, s.slot_date, s.slot_time, b.status, b.payment_status, b.batch_number, b.created_at, b.updated_at`

const bookingFrom = ` FROM bookings b JOIN time_slots s ON s.id = b.slot_id `

// BookingRepo implements domain.BookingRepository backed by PostgreSQL.
type BookingRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

func NewBookingRepo(pool *pgxpool.Pool, clock clockwork.Clock) *BookingRepo {
	return &BookingRepo{pool: pool, clock: clock}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.Code, &b.UserID, &b.PatientName, &b.GuardianName, &b.VaccineName, &b.DoseNumber,
		&b.CenterID, &b.SlotID, &b.SlotDate, &b.SlotTime, &b.Status, &b.PaymentStatus, &b.BatchNumber,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepo) Create(ctx context.Context, req domain.CreateBookingRequest, code string) (*domain.Booking, error) {
	now := r.clock.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	slot, err := lockSlot(ctx, tx, req.SlotID)
	if err != nil {
		return nil, err
	}

	// The row lock linearizes all claims on this slot: a concurrent create
	// blocks here until the first commits, then fails this check.
	if !slot.Claimable(req.UserID, now) {
		return nil, domain.ErrSlotUnavailable
	}

	booking := &domain.Booking{
		Code:          code,
		UserID:        req.UserID,
		PatientName:   req.PatientName,
		GuardianName:  req.GuardianName,
		VaccineName:   req.VaccineName,
		DoseNumber:    req.DoseNumber,
		CenterID:      slot.CenterID,
		SlotID:        slot.ID,
		SlotDate:      slot.Date,
		SlotTime:      slot.Time,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bookings (code, user_id, patient_name, guardian_name, vaccine_name, dose_number, center_id, slot_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		RETURNING id, created_at, updated_at
	`, code, req.UserID, req.PatientName, req.GuardianName, req.VaccineName, req.DoseNumber,
		slot.CenterID, slot.ID, now).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert booking: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE time_slots
		SET booked = TRUE, booked_by = $1, temp_reserved = FALSE, reserved_by = NULL, reserved_until = NULL
		WHERE id = $2
	`, req.UserID, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark slot booked: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return booking, nil
}

func (r *BookingRepo) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+bookingFrom+`WHERE b.id = $1`, id))
}

func (r *BookingRepo) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+bookingFrom+`WHERE b.code = $1`, code))
}

func (r *BookingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+bookingFrom+`WHERE b.user_id = $1 ORDER BY b.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// lockBooking loads a booking row under FOR UPDATE OF b within tx.
func lockBooking(ctx context.Context, tx pgx.Tx, id int64) (*domain.Booking, error) {
	return scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingColumns+bookingFrom+`WHERE b.id = $1 FOR UPDATE OF b`, id))
}

// transition runs fn against the locked booking inside one transaction.
// fn mutates the booking and returns the statements to apply; any error rolls
// back in full so partial state is never observable.
func (r *BookingRepo) transition(ctx context.Context, id int64, fn func(tx pgx.Tx, b *domain.Booking) error) (*domain.Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	booking, err := lockBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(tx, booking); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return booking, nil
}

// freeSlot releases a booked slot back to the pool, clearing any stray hold.
func freeSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE time_slots
		SET booked = FALSE, booked_by = NULL, temp_reserved = FALSE, reserved_by = NULL, reserved_until = NULL
		WHERE id = $1
	`, slotID)
	if err != nil {
		return fmt.Errorf("failed to free slot: %w", err)
	}
	return nil
}

func (r *BookingRepo) updateStatus(ctx context.Context, tx pgx.Tx, b *domain.Booking, status domain.BookingStatus, payment domain.PaymentStatus, batch string) error {
	now := r.clock.Now().UTC()
	_, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = $1, payment_status = $2, batch_number = $3, updated_at = $4
		WHERE id = $5
	`, status, payment, batch, now, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	b.Status = status
	b.PaymentStatus = payment
	b.BatchNumber = batch
	b.UpdatedAt = now
	return nil
}

func (r *BookingRepo) CheckIn(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.transition(ctx, id, func(tx pgx.Tx, b *domain.Booking) error {
		if b.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		if b.Status == domain.BookingConfirmed {
			// Re-confirming is a no-op success.
			return nil
		}
		return r.updateStatus(ctx, tx, b, domain.BookingConfirmed, b.PaymentStatus, b.BatchNumber)
	})
}

func (r *BookingRepo) Complete(ctx context.Context, id int64, batchNumber string) (*domain.Booking, error) {
	return r.transition(ctx, id, func(tx pgx.Tx, b *domain.Booking) error {
		if b.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		return r.updateStatus(ctx, tx, b, domain.BookingCompleted, domain.PaymentPaid, batchNumber)
	})
}

func (r *BookingRepo) MarkNoShow(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.transition(ctx, id, func(tx pgx.Tx, b *domain.Booking) error {
		if b.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		if err := r.updateStatus(ctx, tx, b, domain.BookingNoShow, b.PaymentStatus, b.BatchNumber); err != nil {
			return err
		}
		// The slot becomes bookable again in the same transaction.
		return freeSlot(ctx, tx, b.SlotID)
	})
}

func (r *BookingRepo) Cancel(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.transition(ctx, id, func(tx pgx.Tx, b *domain.Booking) error {
		if b.Status.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		if err := r.updateStatus(ctx, tx, b, domain.BookingCancelled, domain.PaymentRefunded, b.BatchNumber); err != nil {
			return err
		}
		return freeSlot(ctx, tx, b.SlotID)
	})
}
