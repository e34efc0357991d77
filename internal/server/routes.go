package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Auth
	s.echo.POST("/api/login", s.handleLogin)
	s.echo.POST("/api/logout", s.handleLogout, s.requireAuth)
	s.echo.POST("/api/logout-all", s.handleLogoutAll, s.requireAuth)

	// Slot browsing works without a login; holding requires one.
	s.echo.GET("/api/centers/:centerID/slots", s.handleQuerySlots, s.optionalAuth)
	s.echo.POST("/api/slots/:slotID/hold", s.handleHoldSlot, s.requireAuth)
	s.echo.POST("/api/slots/:slotID/release", s.handleReleaseSlot, s.requireAuth)

	// Bookings
	s.echo.POST("/api/bookings", s.handleCreateBooking, s.requireAuth)
	s.echo.GET("/api/bookings", s.handleListBookings, s.requireAuth)
	s.echo.PATCH("/api/bookings/:id/cancel", s.handleCancelBooking, s.requireAuth)
	s.echo.GET("/api/bookings/:id/qr", s.handleBookingQR, s.requireAuth)

	// Staff operations
	staff := s.echo.Group("/api/staff", s.requireAuth, s.requireStaff)
	staff.PATCH("/bookings/:id/check-in", s.handleCheckIn)
	staff.POST("/bookings/:id/complete", s.handleComplete)
	staff.PATCH("/bookings/:id/no-show", s.handleNoShow)
	staff.POST("/qr/redeem", s.handleRedeemQR)

	// Notifications
	s.echo.GET("/api/notifications", s.handleListNotifications, s.requireAuth)
	s.echo.PATCH("/api/notifications/:id/read", s.handleMarkNotificationRead, s.requireAuth)

	// Realtime
	s.echo.GET("/ws", s.handleWebSocket)
}
