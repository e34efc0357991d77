// Package server is the HTTP and WebSocket surface. Handlers translate
// requests into service calls and domain errors into structured HTTP
// responses; no business rule lives here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/openvax/vaxbook/internal/config"
	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
	"github.com/openvax/vaxbook/internal/qr"
	"github.com/openvax/vaxbook/internal/realtime"
)

// bookingService is the slice of the booking service the handlers use.
type bookingService interface {
	QuerySlots(ctx context.Context, centerID uuid.UUID, date string, userID uuid.UUID) ([]domain.SlotView, error)
	Hold(ctx context.Context, slotID, userID uuid.UUID) (time.Time, error)
	Release(ctx context.Context, slotID, userID uuid.UUID) error
	Create(ctx context.Context, req domain.CreateBookingRequest) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Booking, error)
	CheckIn(ctx context.Context, id int64) (*domain.Booking, error)
	Complete(ctx context.Context, id int64, batchNumber string) (*domain.Booking, error)
	MarkNoShow(ctx context.Context, id int64) (*domain.Booking, error)
	Cancel(ctx context.Context, id int64, userID uuid.UUID) (*domain.Booking, error)
}

type sessionRegistry interface {
	Login(ctx context.Context, phone, password string, device domain.DeviceInfo) (*domain.Session, *domain.User, error)
	Verify(ctx context.Context, token, deviceID string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID uuid.UUID) error
}

type checkinVerifier interface {
	Issue(ctx context.Context, bookingID int64, userID uuid.UUID) (*qr.Payload, error)
	Redeem(ctx context.Context, payload qr.Payload, centerID uuid.UUID) (*domain.Booking, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// instanceLister reports which instances have a live heartbeat, for the
// readiness payload in multi-instance deployments.
type instanceLister interface {
	GetActiveInstances(ctx context.Context) ([]string, error)
}

// Deps carries everything the server needs. Hub, redis and the verifier
// follow the optional-dependency convention: nil disables the feature.
type Deps struct {
	Sessions      sessionRegistry
	Bookings      bookingService
	Users         domain.UserRepository
	Notifications domain.NotificationRepository
	Verifier      checkinVerifier
	Hub           *realtime.Hub
	DB            pinger
	Redis         pinger
	Instances     instanceLister
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	deps      Deps
	limits    *ConnectionLimits
	startTime time.Time
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(apperrors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		deps:      deps,
		limits:    NewConnectionLimits(cfg.MaxConnections, cfg.MaxConnectionsPerIP, connectionsPerSecond, connectionBurst),
		startTime: time.Now(),
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
