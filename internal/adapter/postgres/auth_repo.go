package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"parkgate/internal/domain"
)

var _ domain.UserRepository = (*DB)(nil)

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	err := d.sql.QueryRowContext(ctx,
		"SELECT username, role, auth FROM users WHERE username = $1",
		username,
	).Scan(&u.Username, &u.Role, &u.AuthSecret)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns users in creation order.
func (d *DB) List(ctx context.Context) ([]domain.User, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT username, role, auth FROM users ORDER BY created_at, username")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.Role, &u.AuthSecret); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, u domain.User) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO users (username, role, auth, created_at) VALUES ($1, $2, $3, $4)",
		u.Username, string(u.Role), u.AuthSecret, time.Now(),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
