package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"

	"github.com/openvax/vaxbook/internal/booking"
	"github.com/openvax/vaxbook/internal/config"
	"github.com/openvax/vaxbook/internal/coordination"
	"github.com/openvax/vaxbook/internal/database"
	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/events"
	"github.com/openvax/vaxbook/internal/logging"
	"github.com/openvax/vaxbook/internal/qr"
	"github.com/openvax/vaxbook/internal/realtime"
	"github.com/openvax/vaxbook/internal/server"
	"github.com/openvax/vaxbook/internal/session"
	"github.com/openvax/vaxbook/internal/version"
)

const instanceHeartbeat = 30 * time.Second

func setupConfig() *config.Config {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

type coordinationResult struct {
	client    *goredis.Client
	bridge    *coordination.Bridge
	instances *coordination.InstanceRegistry
}

// setupCoordination wires cross-instance fan-out when Redis is
// configured. Without it the in-process hub is the whole world.
func setupCoordination(ctx context.Context, cfg *config.Config, hub *realtime.Hub, clock clockwork.Clock) *coordinationResult {
	if cfg.RedisURL == "" {
		slog.Info("Redis not configured, running single-instance")
		return nil
	}

	client, err := coordination.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	instanceID := uuid.NewString()
	bridge := coordination.NewBridge(hub, client, instanceID)
	go bridge.Start(ctx)

	instances := coordination.NewInstanceRegistry(client, instanceID, instanceHeartbeat, version.Get().Version, clock)
	go instances.Start(ctx)

	slog.Info("Cross-instance coordination enabled", "instance_id", instanceID)
	return &coordinationResult{client: client, bridge: bridge, instances: instances}
}

func setupEvents(cfg *config.Config) *events.Publisher {
	if cfg.AMQPURL == "" {
		slog.Info("AMQP not configured, booking events disabled")
		return nil
	}

	pub, err := events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		slog.Error("Failed to connect to AMQP broker", "error", err)
		os.Exit(1)
	}
	return pub
}

// redisPinger adapts the Redis client to the readiness check.
type redisPinger struct {
	client *goredis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func runGracefulShutdown(cancel context.CancelFunc, srv *server.Server, hub *realtime.Hub, sweepStop chan struct{}, pub *events.Publisher) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(sweepStop)
		hub.Stop()
		cancel()

		if pub != nil {
			if err := pub.Close(); err != nil {
				slog.Error("Failed to close event publisher", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	pool := setupDB(cfg)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := realtime.NewHub(clock)

	coord := setupCoordination(ctx, cfg, hub, clock)
	var notifier domain.Notifier = hub
	if coord != nil {
		notifier = coord.bridge
		defer func() { _ = coord.client.Close() }()
	}

	pub := setupEvents(cfg)

	// Avoid typed-nil interfaces: only assign when actually present.
	var eventBus domain.EventPublisher
	if pub != nil {
		eventBus = pub
	}

	slotRepo := database.NewSlotRepo(pool, clock)
	bookingRepo := database.NewBookingRepo(pool, clock)
	sessionRepo := database.NewSessionRepo(pool, clock)
	userRepo := database.NewUserRepo(pool)
	notificationRepo := database.NewNotificationRepo(pool)

	verifier := qr.NewVerifier(cfg.QRSecret, bookingRepo, clock)

	registry := session.NewRegistry(sessionRepo, userRepo, notifier, clock, cfg.SessionTTL)
	sweepStop := make(chan struct{})
	go registry.RunSweeper(ctx, cfg.SweepInterval, sweepStop)

	bookingSvc := booking.NewService(bookingRepo, slotRepo, notificationRepo, notifier, eventBus, clock, cfg.HoldTTL, cfg.CancelWindow)

	deps := server.Deps{
		Sessions:      registry,
		Bookings:      bookingSvc,
		Users:         userRepo,
		Notifications: notificationRepo,
		Verifier:      verifier,
		Hub:           hub,
		DB:            pool,
	}
	if coord != nil {
		deps.Redis = redisPinger{client: coord.client}
		deps.Instances = coord.instances
	}

	srv := server.NewServer(cfg, deps)

	done := runGracefulShutdown(cancel, srv, hub, sweepStop, pub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
