package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
)

const defaultNotificationLimit = 50

func (s *Server) handleListNotifications(c echo.Context) error {
	user := currentUser(c)

	limit := defaultNotificationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			return apperrors.ValidationError("limit must be between 1 and 200")
		}
		limit = n
	}

	notifications, err := s.deps.Notifications.ListByUser(c.Request().Context(), user.ID, limit)
	if err != nil {
		return mapDomainError(err)
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": notifications})
}

func (s *Server) handleMarkNotificationRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid notification id")
	}
	user := currentUser(c)

	if err := s.deps.Notifications.MarkRead(c.Request().Context(), id, user.ID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
