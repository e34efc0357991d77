// Package session implements single-active-device login sessions. Logging
// in replaces every prior session for the account in one transaction and
// force-logs-out the superseded device's live connection. Verification
// matches the exact (token, device) pair, so a token replayed from another
// device fails even before expiry.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/logging"
	"github.com/openvax/vaxbook/internal/metrics"
)

const tokenBytes = 32

// Registry owns the session lifecycle: login, verification, logout and the
// periodic sweep of expired rows. The notifier is optional; without one,
// supersession still invalidates the old token but cannot close the old
// device's live connection.
type Registry struct {
	sessions    domain.SessionRepository
	credentials domain.CredentialChecker
	notifier    domain.Notifier
	clock       clockwork.Clock
	ttl         time.Duration
}

func NewRegistry(sessions domain.SessionRepository, credentials domain.CredentialChecker, notifier domain.Notifier, clock clockwork.Clock, ttl time.Duration) *Registry {
	return &Registry{
		sessions:    sessions,
		credentials: credentials,
		notifier:    notifier,
		clock:       clock,
		ttl:         ttl,
	}
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Login verifies credentials and installs a fresh session as the account's
// only one. Any previously logged-in device is kicked off its live
// connection and its token stops verifying immediately.
func (r *Registry) Login(ctx context.Context, phone, password string, device domain.DeviceInfo) (*domain.Session, *domain.User, error) {
	user, err := r.credentials.Check(ctx, phone, password)
	if err != nil {
		return nil, nil, err
	}

	token, err := newToken()
	if err != nil {
		return nil, nil, err
	}

	now := r.clock.Now().UTC()
	session := domain.Session{
		Token:        token,
		UserID:       user.ID,
		DeviceID:     device.DeviceID,
		UserAgent:    device.UserAgent,
		IP:           device.IP,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(r.ttl),
	}
	if err := r.sessions.Replace(ctx, session); err != nil {
		return nil, nil, fmt.Errorf("replacing session: %w", err)
	}

	metrics.SessionsCreated.Inc()
	if r.notifier != nil {
		r.notifier.Kick(user.ID)
	}

	logging.WithUser(user.ID.String()).Info("user logged in", "device_id", device.DeviceID)
	return &session, user, nil
}

// Verify resolves a (token, device) pair to its session. Activity is
// recorded best-effort; a failed touch never fails the request.
func (r *Registry) Verify(ctx context.Context, token, deviceID string) (*domain.Session, error) {
	session, err := r.sessions.Get(ctx, token, deviceID)
	if err != nil {
		return nil, err
	}
	if err := r.sessions.Touch(ctx, token); err != nil {
		logging.WithError(err).Warn("failed to touch session")
	}
	return session, nil
}

// Logout removes the single session behind the token. Idempotent.
func (r *Registry) Logout(ctx context.Context, token string) error {
	return r.sessions.Delete(ctx, token)
}

// LogoutAll removes every session for the user and closes their live
// connection. Used for "log me out everywhere" and by admin lockout.
func (r *Registry) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := r.sessions.DeleteAllForUser(ctx, userID); err != nil {
		return err
	}
	if r.notifier != nil {
		r.notifier.Kick(userID)
	}
	return nil
}

// Sweep removes expired session rows once. Expiry is already enforced at
// verification time; the sweep only keeps the table from growing.
func (r *Registry) Sweep(ctx context.Context) {
	n, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		slog.Error("session sweep failed", "error", err)
		return
	}
	if n > 0 {
		metrics.SessionsSwept.Add(float64(n))
		slog.Info("swept expired sessions", "count", n)
	}
}

// RunSweeper runs Sweep on the given interval until stop is closed.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration, stop <-chan struct{}) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.Sweep(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}
