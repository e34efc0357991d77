package domain

import "errors"

var (
	// ErrSlotUnavailable means the caller lost the race for a slot: it is
	// inactive, already booked, or validly held by another user. Clients
	// recover by reloading the slot list, not by surfacing the error verbatim.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrNotHeldByYou means a release was attempted on a hold owned by someone else.
	ErrNotHeldByYou = errors.New("slot not held by you")

	// ErrCancellationWindowClosed means the booking starts in less than the
	// cancellation window. A business-rule rejection, not a bug.
	ErrCancellationWindowClosed = errors.New("cancellation window closed")

	// ErrAlreadyTerminal means the booking is completed, cancelled or no-show
	// and can no longer change state.
	ErrAlreadyTerminal = errors.New("booking already in terminal state")

	// ErrInvalidSignature means a QR payload failed its integrity check.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrWrongCenter means staff tried to redeem a QR issued for another center.
	ErrWrongCenter = errors.New("booking belongs to a different center")

	// ErrSessionInvalid covers expired, superseded and unknown session tokens.
	// Clients must re-authenticate.
	ErrSessionInvalid = errors.New("session expired or superseded")

	// ErrInvalidCredentials covers unknown accounts and wrong passwords alike,
	// so the response does not reveal which one it was.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrNotBookingOwner = errors.New("booking belongs to another user")
)
