package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const userColumns = "id, email, username, hashed_password, is_active, created_at, updated_at"

func (s *Store) CreateUser(ctx context.Context, email, username, passwordHash string) (*User, error) {
	var id int64
	err := s.db.QueryRowxContext(ctx,
		s.q("INSERT INTO users (email, username, hashed_password, is_active, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id"),
		email, username, passwordHash, true, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	var user User
	err := s.db.GetContext(ctx, &user, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetUserByLogin looks up by email when login contains @ and by username otherwise.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	query, arg := "SELECT "+userColumns+" FROM users WHERE username = ?", login
	if strings.Contains(login, "@") {
		query, arg = "SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(login)
	}
	var user User
	err := s.db.GetContext(ctx, &user, s.q(query), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users,
		s.q("SELECT "+userColumns+" FROM users ORDER BY id LIMIT ? OFFSET ?"), limit, skip)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateUser(ctx context.Context, id int64, upd UserUpdate) (*User, error) {
	var (
		sets []string
		args []interface{}
	)
	if upd.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *upd.Email)
	}
	if upd.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *upd.Username)
	}
	if upd.PasswordHash != nil {
		sets = append(sets, "hashed_password = ?")
		args = append(args, *upd.PasswordHash)
	}
	if upd.IsActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *upd.IsActive)
	}
	if len(sets) == 0 {
		user, err := s.GetUserByID(ctx, id)
		if err == nil && user == nil {
			return nil, ErrNotFound
		}
		return user, err
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx, s.q("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}
