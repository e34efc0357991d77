// Package booking orchestrates the appointment lifecycle on top of the
// slot ledger and the booking repository. The repositories own atomicity;
// this service owns everything that happens after commit: notification
// rows, realtime fan-out and external bus events. All post-commit effects
// are best-effort and never fail the operation that produced them.
package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/logging"
	"github.com/openvax/vaxbook/internal/metrics"
)

const (
	codePrefix   = "VB-"
	codeLength   = 8
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
)

// Service exposes every booking operation the HTTP and QR surfaces need.
// notifier and events may be nil; the core flow works without them.
type Service struct {
	bookings      domain.BookingRepository
	slots         domain.SlotRepository
	notifications domain.NotificationRepository
	notifier      domain.Notifier
	events        domain.EventPublisher
	clock         clockwork.Clock
	holdTTL       time.Duration
	cancelWindow  time.Duration
}

func NewService(
	bookings domain.BookingRepository,
	slots domain.SlotRepository,
	notifications domain.NotificationRepository,
	notifier domain.Notifier,
	events domain.EventPublisher,
	clock clockwork.Clock,
	holdTTL, cancelWindow time.Duration,
) *Service {
	return &Service{
		bookings:      bookings,
		slots:         slots,
		notifications: notifications,
		notifier:      notifier,
		events:        events,
		clock:         clock,
		holdTTL:       holdTTL,
		cancelWindow:  cancelWindow,
	}
}

// newBookingCode returns a human-quotable code like VB-7K3MQ2XA. The
// alphabet avoids 0/1/8/9 lookalikes.
func newBookingCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating booking code: %w", err)
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return codePrefix + string(out), nil
}

// QuerySlots lists free-or-self-held slots for a center and date. userID is
// uuid.Nil for unauthenticated browsing.
func (s *Service) QuerySlots(ctx context.Context, centerID uuid.UUID, date string, userID uuid.UUID) ([]domain.SlotView, error) {
	return s.slots.Query(ctx, centerID, date, userID)
}

// Hold places a soft reservation and tells everyone watching the center
// that availability changed. Taking a hold may displace the user's previous
// one; that slot's viewers get a signal too, since it just became claimable.
func (s *Service) Hold(ctx context.Context, slotID, userID uuid.UUID) (time.Time, error) {
	deadline, displaced, err := s.slots.TryHold(ctx, slotID, userID, s.holdTTL)
	if err != nil {
		return time.Time{}, err
	}
	s.broadcastSlot(ctx, slotID)
	if displaced != nil && s.notifier != nil {
		s.notifier.BroadcastSlotUpdate(displaced.CenterID, displaced.Date)
	}
	return deadline, nil
}

// Release drops the caller's hold, if they own it.
func (s *Service) Release(ctx context.Context, slotID, userID uuid.UUID) error {
	if err := s.slots.Release(ctx, slotID, userID); err != nil {
		return err
	}
	s.broadcastSlot(ctx, slotID)
	return nil
}

// Create converts a slot into a pending booking. The repository enforces
// claimability under the slot row lock; this layer generates the booking
// code and fans the result out.
func (s *Service) Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.Booking, error) {
	code, err := newBookingCode()
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.Create(ctx, req, code)
	if err != nil {
		return nil, err
	}
	metrics.BookingsCreated.Inc()

	s.notifyUser(ctx, booking, domain.NotificationSuccess,
		"Booking created",
		fmt.Sprintf("Appointment %s booked for %s at %s.", booking.Code, booking.SlotDate, booking.SlotTime))
	s.broadcastToStaff(booking, domain.FrameBookingCreated)
	if s.notifier != nil {
		s.notifier.BroadcastSlotUpdate(booking.CenterID, booking.SlotDate)
	}
	s.publish(ctx, "booking.created", booking)

	return booking, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return s.bookings.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	return s.bookings.GetByCode(ctx, code)
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// CheckIn confirms the patient's arrival. Idempotent for an already
// confirmed booking.
func (s *Service) CheckIn(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.bookings.CheckIn(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(domain.BookingConfirmed)).Inc()

	s.notifyUser(ctx, booking, domain.NotificationInfo,
		"Checked in",
		fmt.Sprintf("You are checked in for appointment %s.", booking.Code))
	s.pushToUser(booking, domain.FrameCheckedIn)
	s.broadcastToStaff(booking, domain.FrameCheckedIn)
	s.publish(ctx, "booking.checked_in", booking)
	return booking, nil
}

// Complete records the administered dose and settles payment.
func (s *Service) Complete(ctx context.Context, id int64, batchNumber string) (*domain.Booking, error) {
	booking, err := s.bookings.Complete(ctx, id, batchNumber)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(domain.BookingCompleted)).Inc()

	s.notifyUser(ctx, booking, domain.NotificationSuccess,
		"Vaccination completed",
		fmt.Sprintf("Dose %d administered, batch %s.", booking.DoseNumber, batchNumber))
	s.pushToUser(booking, domain.FrameInjectionCompleted)
	s.broadcastToStaff(booking, domain.FrameInjectionCompleted)
	s.publish(ctx, "booking.completed", booking)
	return booking, nil
}

// MarkNoShow closes the booking and returns its slot to the pool.
func (s *Service) MarkNoShow(ctx context.Context, id int64) (*domain.Booking, error) {
	booking, err := s.bookings.MarkNoShow(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(domain.BookingNoShow)).Inc()

	s.notifyUser(ctx, booking, domain.NotificationWarning,
		"Missed appointment",
		fmt.Sprintf("Appointment %s was marked as missed.", booking.Code))
	s.pushToUser(booking, domain.FrameMarkedNoShow)
	s.broadcastToStaff(booking, domain.FrameMarkedNoShow)
	if s.notifier != nil {
		s.notifier.BroadcastSlotUpdate(booking.CenterID, booking.SlotDate)
	}
	s.publish(ctx, "booking.no_show", booking)
	return booking, nil
}

// Cancel lets the owner withdraw a booking while the slot is still at
// least the cancellation window away. Ownership and the window are checked
// here; the repository re-checks status under the row lock.
func (s *Service) Cancel(ctx context.Context, id int64, userID uuid.UUID) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrNotBookingOwner
	}

	slot := domain.TimeSlot{Date: booking.SlotDate, Time: booking.SlotTime}
	start, err := slot.StartTime()
	if err != nil {
		return nil, fmt.Errorf("parsing slot start: %w", err)
	}
	// The start must be strictly more than the window away; exactly on the
	// boundary counts as closed.
	if start.Sub(s.clock.Now().UTC()) <= s.cancelWindow {
		return nil, domain.ErrCancellationWindowClosed
	}

	booking, err = s.bookings.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.BookingTransitions.WithLabelValues(string(domain.BookingCancelled)).Inc()

	s.notifyUser(ctx, booking, domain.NotificationInfo,
		"Booking cancelled",
		fmt.Sprintf("Appointment %s was cancelled and refunded.", booking.Code))
	s.pushToUser(booking, domain.FrameBookingCancelled)
	s.broadcastToStaff(booking, domain.FrameBookingCancelled)
	if s.notifier != nil {
		s.notifier.BroadcastSlotUpdate(booking.CenterID, booking.SlotDate)
	}
	s.publish(ctx, "booking.cancelled", booking)
	return booking, nil
}

// notifyUser writes the durable notification row, then pushes it live. The
// row is the source of truth; the frame is a hint that it exists.
func (s *Service) notifyUser(ctx context.Context, b *domain.Booking, kind domain.NotificationKind, title, body string) {
	if s.notifications == nil {
		return
	}
	row, err := s.notifications.Create(ctx, domain.Notification{
		UserID: b.UserID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	})
	if err != nil {
		logging.WithBooking(b.ID).Error("failed to store notification", "error", err)
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(b.UserID, domain.Frame{Type: domain.FrameNewNotification, Data: row})
	}
}

func (s *Service) pushToUser(b *domain.Booking, frameType string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(b.UserID, domain.Frame{Type: frameType, Data: bookingSummary(b)})
}

func (s *Service) broadcastToStaff(b *domain.Booking, frameType string) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToStaff(b.CenterID, domain.Frame{Type: frameType, Data: bookingSummary(b)})
}

// broadcastSlot loads the slot to resolve its center and date, then signals
// watchers. Holds and releases do not carry a booking, so the lookup is
// needed here.
func (s *Service) broadcastSlot(ctx context.Context, slotID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		slog.Warn("failed to load slot for broadcast", "slot_id", slotID.String(), "error", err)
		return
	}
	s.notifier.BroadcastSlotUpdate(slot.CenterID, slot.Date)
}

func (s *Service) publish(ctx context.Context, routingKey string, b *domain.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, routingKey, bookingSummary(b)); err != nil {
		metrics.EventPublishFailures.Inc()
		logging.WithBooking(b.ID).Error("failed to publish booking event", "routing_key", routingKey, "error", err)
	}
}

func bookingSummary(b *domain.Booking) map[string]any {
	return map[string]any{
		"bookingId":   b.ID,
		"bookingCode": b.Code,
		"patientName": b.PatientName,
		"vaccineName": b.VaccineName,
		"doseNumber":  b.DoseNumber,
		"centerId":    b.CenterID,
		"slotDate":    b.SlotDate,
		"slotTime":    b.SlotTime,
		"status":      b.Status,
	}
}
