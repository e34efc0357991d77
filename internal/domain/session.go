package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the single live login credential for an account. Creating a new
// one deletes all prior sessions for the user in the same transaction.
type Session struct {
	Token        string    `db:"token"`
	UserID       uuid.UUID `db:"user_id"`
	DeviceID     string    `db:"device_id"`
	UserAgent    string    `db:"user_agent"`
	IP           string    `db:"ip"`
	CreatedAt    time.Time `db:"created_at"`
	LastActiveAt time.Time `db:"last_active_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// DeviceInfo identifies the calling device at login time.
type DeviceInfo struct {
	DeviceID  string
	UserAgent string
	IP        string
}

// SessionRepository enforces at-most-one live session per user. Uniqueness is
// application-layer delete-then-insert inside one transaction, not a database
// constraint: the desired semantic is "last login wins", not "reject the new
// login".
type SessionRepository interface {
	// Replace deletes every session row for userID and inserts the given one.
	Replace(ctx context.Context, session Session) error

	// Get returns the session matching the exact (token, deviceID) pair if it
	// has not expired, else ErrSessionInvalid.
	Get(ctx context.Context, token, deviceID string) (*Session, error)

	// Touch bumps last_active_at. Best-effort; callers may ignore the error.
	Touch(ctx context.Context, token string) error

	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes rows past their expiry, returning how many.
	DeleteExpired(ctx context.Context) (int64, error)
}
