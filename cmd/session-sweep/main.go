// Command session-sweep deletes expired device sessions in one shot.
// The server sweeps on its own timer; this exists for operators who
// want to run the cleanup out of band, e.g. from a cron job.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/database"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		dryRun      = flag.Bool("dry-run", false, "Count expired sessions without deleting them")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *databaseURL == "" {
		log.Fatal("Database URL required (--database or DATABASE_URL env)")
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.Connect(ctx, *databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	start := time.Now()

	if *dryRun {
		var pending int64
		err := pool.QueryRow(ctx, `SELECT count(*) FROM sessions WHERE expires_at <= NOW()`).Scan(&pending)
		if err != nil {
			log.Fatalf("Failed to count expired sessions: %v", err)
		}
		slog.Info("Dry run, nothing deleted", "expired_sessions", pending)
		return
	}

	repo := database.NewSessionRepo(pool, clockwork.NewRealClock())
	deleted, err := repo.DeleteExpired(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	slog.Info("Sweep complete",
		"deleted", deleted,
		"duration_ms", time.Since(start).Milliseconds())
}
