package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/metrics"
)

// slotColumns must match the Scan order in scanSlot.
const slotColumns = `id, center_id, slot_date, slot_time, active, booked, booked_by, temp_reserved, reserved_by, reserved_until`

// SlotRepo implements domain.SlotRepository backed by PostgreSQL.
type SlotRepo struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

func NewSlotRepo(pool *pgxpool.Pool, clock clockwork.Clock) *SlotRepo {
	return &SlotRepo{pool: pool, clock: clock}
}

func scanSlot(row pgx.Row) (*domain.TimeSlot, error) {
	var s domain.TimeSlot
	err := row.Scan(
		&s.ID, &s.CenterID, &s.Date, &s.Time, &s.Active,
		&s.Booked, &s.BookedBy, &s.TempReserved, &s.ReservedBy, &s.ReservedUntil,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// lockSlot loads a slot row under FOR UPDATE within tx.
func lockSlot(ctx context.Context, tx pgx.Tx, slotID uuid.UUID) (*domain.TimeSlot, error) {
	return scanSlot(tx.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = $1 FOR UPDATE`, slotID))
}

func (r *SlotRepo) TryHold(ctx context.Context, slotID, userID uuid.UUID, ttl time.Duration) (time.Time, *domain.SlotRef, error) {
	now := r.clock.Now().UTC()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	slot, err := lockSlot(ctx, tx, slotID)
	if err != nil {
		return time.Time{}, nil, err
	}

	if !slot.Claimable(userID, now) {
		metrics.SlotHolds.WithLabelValues("lost").Inc()
		return time.Time{}, nil, domain.ErrSlotUnavailable
	}

	// A user may hold at most one slot system-wide; drop any other hold
	// first, keeping its location so the caller can signal those viewers.
	var displaced *domain.SlotRef
	var ref domain.SlotRef
	err = tx.QueryRow(ctx, `
		UPDATE time_slots
		SET temp_reserved = FALSE, reserved_by = NULL, reserved_until = NULL
		WHERE reserved_by = $1 AND id <> $2
		RETURNING center_id, slot_date
	`, userID, slotID).Scan(&ref.CenterID, &ref.Date)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return time.Time{}, nil, fmt.Errorf("failed to clear previous hold: %w", err)
	default:
		displaced = &ref
	}

	deadline := now.Add(ttl)
	_, err = tx.Exec(ctx, `
		UPDATE time_slots
		SET temp_reserved = TRUE, reserved_by = $1, reserved_until = $2
		WHERE id = $3
	`, userID, deadline, slotID)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to place hold: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return time.Time{}, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.SlotHolds.WithLabelValues("acquired").Inc()
	return deadline, displaced, nil
}

func (r *SlotRepo) Release(ctx context.Context, slotID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE time_slots
		SET temp_reserved = FALSE, reserved_by = NULL, reserved_until = NULL
		WHERE id = $1 AND reserved_by = $2
	`, slotID, userID)
	if err != nil {
		return fmt.Errorf("failed to release hold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotHeldByYou
	}

	metrics.SlotHolds.WithLabelValues("released").Inc()
	return nil
}

func (r *SlotRepo) Query(ctx context.Context, centerID uuid.UUID, date string, userID uuid.UUID) ([]domain.SlotView, error) {
	now := r.clock.Now().UTC()

	// Free or self-held only; a foreign hold hides the slot without revealing
	// its owner. Expired holds count as free.
	rows, err := r.pool.Query(ctx, `
		SELECT id, slot_time,
			COALESCE(temp_reserved AND reserved_by = $3 AND reserved_until > $4, FALSE) AS is_held_by_me
		FROM time_slots
		WHERE center_id = $1 AND slot_date = $2 AND active AND NOT booked
			AND (
				NOT temp_reserved
				OR reserved_by IS NULL
				OR reserved_by = $3
				OR reserved_until <= $4
			)
		ORDER BY slot_time
	`, centerID, date, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var views []domain.SlotView
	for rows.Next() {
		var v domain.SlotView
		if err := rows.Scan(&v.ID, &v.Time, &v.IsHeldByMe); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *SlotRepo) GetByID(ctx context.Context, slotID uuid.UUID) (*domain.TimeSlot, error) {
	return scanSlot(r.pool.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = $1`, slotID))
}
