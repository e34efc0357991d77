package domain

import (
	"context"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

// User is an account. Staff users carry the center they work at; patients do not.
type User struct {
	ID       uuid.UUID  `db:"id"`
	Phone    string     `db:"phone"`
	FullName string     `db:"full_name"`
	Role     Role       `db:"role"`
	CenterID *uuid.UUID `db:"center_id"`
}

type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
}

// CredentialChecker verifies login credentials and resolves the account.
// Password storage and verification live outside the session-exclusivity
// core; the registry only needs a yes/no plus the user.
type CredentialChecker interface {
	Check(ctx context.Context, phone, password string) (*User, error)
}
