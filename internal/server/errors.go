package server

import (
	"errors"

	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
)

// mapDomainError translates domain sentinel errors into structured HTTP
// errors. Anything unrecognized becomes an opaque 500.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apperrors.UnauthorizedError("invalid phone or password")
	case errors.Is(err, domain.ErrSessionInvalid):
		return apperrors.UnauthorizedError("session invalid or superseded")
	case errors.Is(err, domain.ErrSlotUnavailable):
		return apperrors.ConflictError("slot is not available")
	case errors.Is(err, domain.ErrNotHeldByYou):
		return apperrors.ConflictError("slot is not held by you")
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return apperrors.ConflictError("booking is already in a final state")
	case errors.Is(err, domain.ErrCancellationWindowClosed):
		return apperrors.BusinessRuleError("cancellation window has closed")
	case errors.Is(err, domain.ErrNotBookingOwner):
		return apperrors.ForbiddenError("not your booking")
	case errors.Is(err, domain.ErrWrongCenter):
		return apperrors.ForbiddenError("booking belongs to another center")
	case errors.Is(err, domain.ErrInvalidSignature):
		return apperrors.ValidationError("invalid QR signature")
	case errors.Is(err, domain.ErrSlotNotFound):
		return apperrors.NotFoundError("slot not found")
	case errors.Is(err, domain.ErrBookingNotFound):
		return apperrors.NotFoundError("booking not found")
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NotFoundError("user not found")
	default:
		return apperrors.InternalError("internal server error", err)
	}
}
