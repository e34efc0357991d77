package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userView  `json:"user"`
}

type userView struct {
	ID       string  `json:"id"`
	FullName string  `json:"fullName"`
	Role     string  `json:"role"`
	CenterID *string `json:"centerId,omitempty"`
}

func viewUser(u *domain.User) userView {
	v := userView{ID: u.ID.String(), FullName: u.FullName, Role: string(u.Role)}
	if u.CenterID != nil {
		id := u.CenterID.String()
		v.CenterID = &id
	}
	return v
}

// handleLogin issues a fresh session. Logging in on a new device logs the
// previous device out everywhere, including its live connection.
func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Phone == "" || req.Password == "" || req.DeviceID == "" {
		return apperrors.ValidationError("phone, password and deviceId are required")
	}

	device := domain.DeviceInfo{
		DeviceID:  req.DeviceID,
		UserAgent: c.Request().UserAgent(),
		IP:        c.RealIP(),
	}
	session, user, err := s.deps.Sessions.Login(c.Request().Context(), req.Phone, req.Password, device)
	if err != nil {
		return mapDomainError(err)
	}

	return c.JSON(http.StatusOK, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      viewUser(user),
	})
}

func (s *Server) handleLogout(c echo.Context) error {
	token, _, _ := bearerCredentials(c)
	if err := s.deps.Sessions.Logout(c.Request().Context(), token); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleLogoutAll(c echo.Context) error {
	user := currentUser(c)
	if err := s.deps.Sessions.LogoutAll(c.Request().Context(), user.ID); err != nil {
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
