package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"photomap/internal/catalog"
)

// FindUserByID returns the user, or nil if no such user exists.
func (d *Database) FindUserByID(ctx context.Context, id int64) (user *catalog.User, err error) {
	start := time.Now()
	defer func() { recordQuery("find_user", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var (
		u         catalog.User
		createdAt int64
	)

	d.mu.RLock()
	err = d.db.QueryRowContext(ctx, `SELECT id, username, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &createdAt)
	d.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("find user", err)
	}

	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

// CreateUser adds an account. Usernames are unique.
func (d *Database) CreateUser(ctx context.Context, username string) (*catalog.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := d.now()

	d.mu.Lock()
	result, err := d.db.ExecContext(ctx, `INSERT INTO users (username, created_at) VALUES (?, ?)`,
		username, now.Unix())
	d.mu.Unlock()

	if err != nil {
		return nil, persistenceError("create user", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, persistenceError("create user", err)
	}

	return &catalog.User{ID: id, Username: username, CreatedAt: time.Unix(now.Unix(), 0).UTC()}, nil
}

// DeleteUser removes an account. Their photos become orphaned and their
// ratings are removed.
func (d *Database) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	result, err := d.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	d.mu.Unlock()

	if err != nil {
		return persistenceError("delete user", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistenceError("delete user", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", id, catalog.ErrNotFound)
	}
	return nil
}
