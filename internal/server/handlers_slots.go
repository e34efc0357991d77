package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
)

// handleQuerySlots lists available slots for a center and date. With a
// logged-in caller, slots they hold are flagged; anonymous callers see
// only free capacity.
func (s *Server) handleQuerySlots(c echo.Context) error {
	centerID, err := uuid.Parse(c.Param("centerID"))
	if err != nil {
		return apperrors.ValidationError("invalid center id")
	}
	date := c.QueryParam("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return apperrors.ValidationError("date must be YYYY-MM-DD")
	}

	userID := uuid.Nil
	if user := currentUser(c); user != nil {
		userID = user.ID
	}

	slots, err := s.deps.Bookings.QuerySlots(c.Request().Context(), centerID, date, userID)
	if err != nil {
		return mapDomainError(err)
	}
	if slots == nil {
		slots = []domain.SlotView{}
	}
	return c.JSON(http.StatusOK, map[string]any{"slots": slots})
}

type holdResponse struct {
	SlotID        string    `json:"slotId"`
	ReservedUntil time.Time `json:"reservedUntil"`
}

// handleHoldSlot places a soft reservation. Any other hold the caller has
// is dropped; holding is always one slot at a time.
func (s *Server) handleHoldSlot(c echo.Context) error {
	slotID, err := uuid.Parse(c.Param("slotID"))
	if err != nil {
		return apperrors.ValidationError("invalid slot id")
	}
	user := currentUser(c)

	deadline, err := s.deps.Bookings.Hold(c.Request().Context(), slotID, user.ID)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, holdResponse{SlotID: slotID.String(), ReservedUntil: deadline})
}

func (s *Server) handleReleaseSlot(c echo.Context) error {
	slotID, err := uuid.Parse(c.Param("slotID"))
	if err != nil {
		return apperrors.ValidationError("invalid slot id")
	}
	user := currentUser(c)

	if err := s.deps.Bookings.Release(c.Request().Context(), slotID, user.ID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
