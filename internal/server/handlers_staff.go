package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/openvax/vaxbook/internal/errors"
	"github.com/openvax/vaxbook/internal/qr"
)

// staffGuardBooking loads the booking and checks it belongs to the staff
// member's center.
func (s *Server) staffGuardBooking(c echo.Context, id int64) error {
	user := currentUser(c)
	booking, err := s.deps.Bookings.GetByID(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	if booking.CenterID != *user.CenterID {
		return apperrors.ForbiddenError("booking belongs to another center")
	}
	return nil
}

func (s *Server) handleCheckIn(c echo.Context) error {
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}
	if err := s.staffGuardBooking(c, id); err != nil {
		return err
	}

	booking, err := s.deps.Bookings.CheckIn(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, viewBooking(booking))
}

type completeRequest struct {
	BatchNumber string `json:"batchNumber"`
}

func (s *Server) handleComplete(c echo.Context) error {
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.BatchNumber == "" {
		return apperrors.ValidationError("batchNumber is required")
	}
	if err := s.staffGuardBooking(c, id); err != nil {
		return err
	}

	booking, err := s.deps.Bookings.Complete(c.Request().Context(), id, req.BatchNumber)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, viewBooking(booking))
}

func (s *Server) handleNoShow(c echo.Context) error {
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}
	if err := s.staffGuardBooking(c, id); err != nil {
		return err
	}

	booking, err := s.deps.Bookings.MarkNoShow(c.Request().Context(), id)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, viewBooking(booking))
}

// handleRedeemQR validates a scanned payload and checks the patient in.
func (s *Server) handleRedeemQR(c echo.Context) error {
	var payload qr.Payload
	if err := c.Bind(&payload); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	user := currentUser(c)

	booking, err := s.deps.Verifier.Redeem(c.Request().Context(), payload, *user.CenterID)
	if err != nil {
		return mapDomainError(err)
	}
	booking, err = s.deps.Bookings.CheckIn(c.Request().Context(), booking.ID)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, viewBooking(booking))
}
