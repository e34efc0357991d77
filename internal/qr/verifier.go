// Package qr issues and redeems signed check-in payloads for bookings.
// The signature binds the booking id and code to a server-side secret so
// a payload screenshotted on one device cannot be forged for another
// booking. Payloads are validated offline-first: the signature check
// requires no database access.
package qr

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
)

// signatureLen is the number of hex characters kept from the digest.
const signatureLen = 16

// Payload is the content encoded into a check-in QR code.
type Payload struct {
	BookingID   int64     `json:"bookingId"`
	BookingCode string    `json:"bookingCode"`
	CenterID    uuid.UUID `json:"centerId"`
	Timestamp   int64     `json:"timestamp"`
	Signature   string    `json:"signature"`
}

// Verifier signs and validates booking check-in payloads.
type Verifier struct {
	secret   string
	bookings domain.BookingRepository
	clock    clockwork.Clock
}

func NewVerifier(secret string, bookings domain.BookingRepository, clock clockwork.Clock) *Verifier {
	return &Verifier{secret: secret, bookings: bookings, clock: clock}
}

func (v *Verifier) sign(bookingID int64, bookingCode string) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(bookingID, 10)))
	h.Write([]byte(bookingCode))
	h.Write([]byte(v.secret))
	return hex.EncodeToString(h.Sum(nil))[:signatureLen]
}

// Issue builds a signed payload for a booking. Only the booking owner may
// request one, and only while the booking is still redeemable.
func (v *Verifier) Issue(ctx context.Context, bookingID int64, userID uuid.UUID) (*Payload, error) {
	b, err := v.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.ErrNotBookingOwner
	}
	if b.Status != domain.BookingPending && b.Status != domain.BookingConfirmed {
		return nil, domain.ErrAlreadyTerminal
	}
	return &Payload{
		BookingID:   b.ID,
		BookingCode: b.Code,
		CenterID:    b.CenterID,
		Timestamp:   v.clock.Now().Unix(),
		Signature:   v.sign(b.ID, b.Code),
	}, nil
}

// Verify checks the payload signature without touching the database.
func (v *Verifier) Verify(p Payload) error {
	want := v.sign(p.BookingID, p.BookingCode)
	if subtle.ConstantTimeCompare([]byte(want), []byte(p.Signature)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

// Redeem validates a scanned payload against a staff member's centre and
// returns the booking ready for check-in. The booking must belong to the
// scanning centre and must not have reached a terminal state. The caller
// performs the actual status transition so that side effects stay in one
// place.
func (v *Verifier) Redeem(ctx context.Context, p Payload, centerID uuid.UUID) (*domain.Booking, error) {
	if err := v.Verify(p); err != nil {
		return nil, err
	}
	b, err := v.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(b.Code), []byte(p.BookingCode)) != 1 {
		return nil, domain.ErrInvalidSignature
	}
	if b.CenterID != centerID {
		return nil, domain.ErrWrongCenter
	}
	if b.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}
	return b, nil
}

// Age reports how long ago the payload was issued. Staff UIs surface
// stale codes as a warning rather than rejecting them.
func (v *Verifier) Age(p Payload) time.Duration {
	return v.clock.Now().Sub(time.Unix(p.Timestamp, 0))
}
