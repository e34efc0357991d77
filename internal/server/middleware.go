package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
)

const (
	userContextKey = "user"
	deviceIDHeader = "X-Device-ID"
	tokenPrefix    = "Bearer "
)

// bearerCredentials extracts the token and device id from the request.
func bearerCredentials(c echo.Context) (token, deviceID string, ok bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, tokenPrefix) {
		return "", "", false
	}
	token = strings.TrimPrefix(auth, tokenPrefix)
	deviceID = c.Request().Header.Get(deviceIDHeader)
	return token, deviceID, token != "" && deviceID != ""
}

// authenticate resolves the request's session to its user.
func (s *Server) authenticate(c echo.Context) (*domain.User, error) {
	token, deviceID, ok := bearerCredentials(c)
	if !ok {
		return nil, apperrors.UnauthorizedError("missing credentials")
	}
	session, err := s.deps.Sessions.Verify(c.Request().Context(), token, deviceID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	user, err := s.deps.Users.GetByID(c.Request().Context(), session.UserID)
	if err != nil {
		return nil, mapDomainError(err)
	}
	return user, nil
}

// requireAuth rejects requests without a valid (token, device) session.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.authenticate(c)
		if err != nil {
			return err
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// optionalAuth resolves the user when credentials are present but lets
// anonymous requests through. Invalid credentials are still rejected so a
// stale token never silently degrades to anonymous.
func (s *Server) optionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, _, ok := bearerCredentials(c); !ok {
			return next(c)
		}
		user, err := s.authenticate(c)
		if err != nil {
			return err
		}
		c.Set(userContextKey, user)
		return next(c)
	}
}

// requireStaff allows staff and admin accounts with an assigned center.
func (s *Server) requireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := currentUser(c)
		if user == nil || (user.Role != domain.RoleStaff && user.Role != domain.RoleAdmin) {
			return apperrors.ForbiddenError("staff access required")
		}
		if user.CenterID == nil {
			return apperrors.ForbiddenError("no center assigned")
		}
		return next(c)
	}
}

func currentUser(c echo.Context) *domain.User {
	user, _ := c.Get(userContextKey).(*domain.User)
	return user
}
