package store

import (
	"context"
	"fmt"

	"chatsync/internal/models"
)

const userColumns = `id, name, email, phone, created_at`

// CreateUser inserts a new user with an already hashed password
func (s *Store) CreateUser(ctx context.Context, name, email string, phone *string, passwordHash string) (models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (name, email, phone, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		name, email, phone, passwordHash,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", translate(err))
	}
	return user, nil
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt)
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", translate(err))
	}
	return user, nil
}

// GetUserByEmail returns a user including the password hash
func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt, &user.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("get user by email: %w", translate(err))
	}
	return user, nil
}

// ListUsers returns every user except one, ordered by name then id
func (s *Store) ListUsers(ctx context.Context, except string) ([]models.User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id::text <> $1
		ORDER BY name ASC, id ASC
	`, except)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", translate(err))
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
