package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
)

// sessionColumns must match the Scan order in scanSession.
const sessionColumns = `token, user_id, device_id, user_agent, ip, created_at, last_active_at, expires_at`

// SessionRepo implements domain.SessionRepository backed by PostgreSQL.
type SessionRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

func NewSessionRepo(pool *pgxpool.Pool, clock clockwork.Clock) *SessionRepo {
	return &SessionRepo{pool: pool, clock: clock}
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.Token, &s.UserID, &s.DeviceID, &s.UserAgent, &s.IP,
		&s.CreatedAt, &s.LastActiveAt, &s.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Replace deletes every session row for the user and inserts the new one in
// the same transaction. Last login wins; there is no uniqueness constraint to
// reject the new login against.
func (r *SessionRepo) Replace(ctx context.Context, session domain.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, session.UserID)
	if err != nil {
		return fmt.Errorf("failed to delete prior sessions: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (token, user_id, device_id, user_agent, ip, created_at, last_active_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.Token, session.UserID, session.DeviceID, session.UserAgent, session.IP,
		session.CreatedAt, session.LastActiveAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, token, deviceID string) (*domain.Session, error) {
	now := r.clock.Now().UTC()
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE token = $1 AND device_id = $2 AND expires_at > $3
	`, token, deviceID, now))
}

func (r *SessionRepo) Touch(ctx context.Context, token string) error {
	now := r.clock.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET last_active_at = $1 WHERE token = $2`, now, token)
	return err
}

func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

func (r *SessionRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	now := r.clock.Now().UTC()
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
