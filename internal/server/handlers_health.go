package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/openvax/vaxbook/internal/version"
)

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Get().Version,
		"uptime":  time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		dep  pinger
	}{
		{"postgres", s.deps.DB},
		{"redis", s.deps.Redis},
	}

	errs := make([]error, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		if check.dep == nil {
			continue
		}
		g.Go(func() error {
			errs[i] = check.dep.Ping(gctx)
			return nil
		})
	}
	_ = g.Wait()

	for i, check := range checks {
		if errs[i] != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        errs[i].Error(),
			})
		}
	}

	resp := map[string]any{"status": "ready"}
	// Listing peers is informational; a failure never flips readiness.
	if s.deps.Instances != nil {
		if active, err := s.deps.Instances.GetActiveInstances(ctx); err == nil {
			resp["instances"] = active
		}
	}
	return c.JSON(http.StatusOK, resp)
}
