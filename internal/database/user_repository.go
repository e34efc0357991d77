package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/openvax/vaxbook/internal/domain"
)

const userColumns = `id, phone, full_name, role, center_id`

// UserRepo implements domain.UserRepository and domain.CredentialChecker
// backed by PostgreSQL.
type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Phone, &u.FullName, &u.Role, &u.CenterID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// Check verifies login credentials. Unknown accounts and wrong passwords both
// map to ErrInvalidCredentials so the response does not reveal which.
func (r *UserRepo) Check(ctx context.Context, phone, password string) (*domain.User, error) {
	var (
		u    domain.User
		hash string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE phone = $1`, phone).
		Scan(&u.ID, &u.Phone, &u.FullName, &u.Role, &u.CenterID, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return &u, nil
}
