package database

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/openvax/vaxbook/internal/domain"
)

// testPool connects to the database named by TEST_DATABASE_URL, running the
// migrations first. Tests that need a real database skip when it is unset.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

// createTestUser inserts a user with the given role and returns it.
func createTestUser(t *testing.T, pool *pgxpool.Pool, role domain.Role, centerID *uuid.UUID) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	u := &domain.User{
		Phone:    "09" + uuid.NewString()[:8],
		FullName: "Test User",
		Role:     role,
		CenterID: centerID,
	}
	err = pool.QueryRow(context.Background(), `
		INSERT INTO users (phone, full_name, password_hash, role, center_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, u.Phone, u.FullName, string(hash), u.Role, u.CenterID).Scan(&u.ID)
	require.NoError(t, err)
	return u
}

// createTestSlot inserts an active, free slot and returns its id.
func createTestSlot(t *testing.T, pool *pgxpool.Pool, centerID uuid.UUID, date, tm string) uuid.UUID {
	t.Helper()

	var id uuid.UUID
	err := pool.QueryRow(context.Background(), `
		INSERT INTO time_slots (center_id, slot_date, slot_time)
		VALUES ($1, $2, $3)
		RETURNING id
	`, centerID, date, tm).Scan(&id)
	require.NoError(t, err)
	return id
}
