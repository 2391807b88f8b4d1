package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"photomap/internal/catalog"
)

// FindRating returns the user's rating for the photo, or nil if there is none.
func (d *Database) FindRating(ctx context.Context, photoID, userID int64) (rating *catalog.Rating, err error) {
	start := time.Now()
	defer func() { recordQuery("find_rating", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	r := catalog.Rating{PhotoID: photoID, UserID: userID}
	var createdAt int64

	d.mu.RLock()
	err = d.db.QueryRowContext(ctx, `
		SELECT rating, created_at FROM ratings WHERE photo_id = ? AND user_id = ?
	`, photoID, userID).Scan(&r.Value, &createdAt)
	d.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, persistenceError("find rating", err)
	}

	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &r, nil
}

// UpsertRating creates or replaces the user's rating for the photo. The
// original creation time is kept on replace.
func (d *Database) UpsertRating(ctx context.Context, photoID, userID int64, value int) (err error) {
	start := time.Now()
	defer func() { recordQuery("upsert_rating", start, err) }()

	if err = catalog.ValidateRating(value); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO ratings (photo_id, user_id, rating, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(photo_id, user_id) DO UPDATE SET rating = excluded.rating
	`, photoID, userID, value, d.now().Unix())
	d.mu.Unlock()

	if err != nil {
		err = persistenceError("upsert rating", err)
		return err
	}
	return nil
}

// DeleteRating removes the user's rating for the photo.
func (d *Database) DeleteRating(ctx context.Context, photoID, userID int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_rating", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	result, err := d.db.ExecContext(ctx, `DELETE FROM ratings WHERE photo_id = ? AND user_id = ?`, photoID, userID)
	d.mu.Unlock()

	if err != nil {
		return persistenceError("delete rating", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistenceError("delete rating", err)
	}
	if affected == 0 {
		err = fmt.Errorf("rating for photo %d by user %d: %w", photoID, userID, catalog.ErrNotFound)
		return err
	}
	return nil
}

// ListRatings returns all ratings for a photo, oldest first.
func (d *Database) ListRatings(ctx context.Context, photoID int64) (ratings []catalog.Rating, err error) {
	start := time.Now()
	defer func() { recordQuery("list_ratings", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT user_id, rating, created_at FROM ratings WHERE photo_id = ? ORDER BY created_at, id
	`, photoID)
	if err != nil {
		return nil, persistenceError("list ratings", err)
	}
	defer rows.Close()

	ratings = []catalog.Rating{}
	for rows.Next() {
		r := catalog.Rating{PhotoID: photoID}
		var createdAt int64
		if scanErr := rows.Scan(&r.UserID, &r.Value, &createdAt); scanErr != nil {
			err = persistenceError("list ratings", scanErr)
			return nil, err
		}
		r.CreatedAt = time.Unix(createdAt, 0).UTC()
		ratings = append(ratings, r)
	}

	if err = rows.Err(); err != nil {
		return nil, persistenceError("list ratings", err)
	}
	return ratings, nil
}
