package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/user/carteira/backend/internal/models"
)

// NormalizeEmail lowercases and trims an email address. Every lookup
// and insert goes through this so the unique index behaves.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user. The role always starts as cliente.
func CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	user := &models.User{
		Email:    NormalizeEmail(email),
		Password: passwordHash,
		Name:     name,
		Role:     models.RoleCliente,
	}

	query := `INSERT INTO users (email, password_hash, name)
			  VALUES ($1, $2, $3)
			  RETURNING id, role, created_at, updated_at`

	err := DB.QueryRow(ctx, query, user.Email, passwordHash, name).
		Scan(&user.ID, &user.Role, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByEmail retrieves a user by email. Returns nil, nil when absent.
func GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password_hash, name, role, created_at, updated_at, last_sign_in_at
			  FROM users WHERE email = $1`

	err := DB.QueryRow(ctx, query, NormalizeEmail(email)).
		Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.Role,
			&user.CreatedAt, &user.UpdatedAt, &user.LastSignInAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

// GetUserByID retrieves a user by id. Returns nil, nil when absent.
func GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password_hash, name, role, created_at, updated_at, last_sign_in_at
			  FROM users WHERE id = $1`

	err := DB.QueryRow(ctx, query, userID).
		Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.Role,
			&user.CreatedAt, &user.UpdatedAt, &user.LastSignInAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return user, nil
}

// ListUsers returns all users for the admin panel, newest first.
// Password hashes are not selected.
func ListUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0)
	query := `SELECT id, email, name, role, created_at, updated_at, last_sign_in_at
			  FROM users ORDER BY created_at DESC`

	rows, err := DB.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.Role,
			&user.CreatedAt, &user.UpdatedAt, &user.LastSignInAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning user row: %w", err)
		}
		users = append(users, user)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", rows.Err())
	}

	return users, nil
}

// UpdateUserRole changes a user's role. Returns false when the user
// does not exist.
func UpdateUserRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	query := `UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`

	cmdTag, err := DB.Exec(ctx, query, role, userID)
	if err != nil {
		return false, fmt.Errorf("error updating role for user %s: %w", userID, err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// TouchLastSignIn records a successful login.
func TouchLastSignIn(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET last_sign_in_at = NOW(), updated_at = NOW() WHERE id = $1`

	if _, err := DB.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("error touching last sign-in for user %s: %w", userID, err)
	}
	return nil
}
