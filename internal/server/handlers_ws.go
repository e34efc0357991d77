package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/metrics"
)

const authFrameTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Tokens are not cookies; cross-origin upgrades carry no ambient
	// credentials, so any origin may connect and must still authenticate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// authFrame is the first message a client must send after the upgrade.
// Patients may name a center to watch for slot availability signals.
type authFrame struct {
	Type          string `json:"type"`
	Token         string `json:"token"`
	DeviceID      string `json:"deviceId"`
	WatchCenterID string `json:"watchCenterId,omitempty"`
}

// clientFrame is any later message from the client. Only ping is
// meaningful; everything else is ignored.
type clientFrame struct {
	Type string `json:"type"`
}

// handleWebSocket upgrades the connection, authenticates it against the
// session registry and hands it to the hub. Authentication failures close
// the socket without explanation.
func (s *Server) handleWebSocket(c echo.Context) error {
	if s.deps.Hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "realtime disabled")
	}

	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejected.WithLabelValues(string(reason)).Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, "connection limit reached")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		return nil
	}

	user, watchCenter, ok := s.authenticateSocket(c, conn)
	if !ok {
		_ = conn.Close()
		s.limits.Release(ip)
		return nil
	}

	staff := user.Role == domain.RoleStaff || user.Role == domain.RoleAdmin
	centerID := watchCenter
	if staff {
		centerID = user.CenterID
	}

	if err := s.deps.Hub.Register(user.ID, staff, centerID, conn); err != nil {
		_ = conn.Close()
		s.limits.Release(ip)
		return nil
	}
	s.deps.Hub.Notify(user.ID, domain.Frame{Type: domain.FrameAuthSuccess})

	// The read loop keeps the connection's liveness fresh and detects the
	// close, whichever side initiates it.
	go func() {
		defer func() {
			s.deps.Hub.Unregister(conn)
			s.limits.Release(ip)
		}()
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame clientFrame
			if json.Unmarshal(msg, &frame) == nil && frame.Type == "ping" {
				s.deps.Hub.Touch(conn)
			}
		}
	}()

	return nil
}

// authenticateSocket reads and verifies the auth frame. Returns ok=false
// for anything but a valid token on the right device.
func (s *Server) authenticateSocket(c echo.Context, conn *websocket.Conn) (*domain.User, *uuid.UUID, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(authFrameTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, nil, false
	}

	var frame authFrame
	if err := json.Unmarshal(msg, &frame); err != nil || frame.Type != "auth" {
		return nil, nil, false
	}

	ctx := c.Request().Context()
	session, err := s.deps.Sessions.Verify(ctx, frame.Token, frame.DeviceID)
	if err != nil {
		return nil, nil, false
	}
	user, err := s.deps.Users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, false
	}

	var watchCenter *uuid.UUID
	if frame.WatchCenterID != "" {
		id, err := uuid.Parse(frame.WatchCenterID)
		if err != nil {
			return nil, nil, false
		}
		watchCenter = &id
	}
	return user, watchCenter, true
}
