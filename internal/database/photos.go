package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"photomap/internal/catalog"
	"photomap/internal/logging"
)

// Default and maximum page sizes for ListPhotos.
const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

const photoColumns = `p.id, p.user_id, p.filename, p.original_filename, p.file_size, p.mime_type,
	p.thumbnail_filename, p.gps_latitude, p.gps_longitude, p.taken_at, p.uploaded_at, p.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*catalog.Photo, error) {
	var (
		photo      catalog.Photo
		userID     sql.NullInt64
		thumb      sql.NullString
		lat, lon   sql.NullFloat64
		takenAt    sql.NullInt64
		uploadedAt int64
		updatedAt  int64
	)

	err := row.Scan(&photo.ID, &userID, &photo.StoredFilename, &photo.OriginalFilename,
		&photo.FileSize, &photo.MimeType, &thumb, &lat, &lon, &takenAt, &uploadedAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := userID.Int64
		photo.OwnerID = &id
	}
	photo.DerivativeFilename = thumb.String
	if lat.Valid && lon.Valid {
		photo.Location = &catalog.GeoPoint{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if takenAt.Valid {
		t := time.Unix(takenAt.Int64, 0).UTC()
		photo.TakenAt = &t
	}
	photo.UploadedAt = time.Unix(uploadedAt, 0).UTC()
	photo.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &photo, nil
}

func nullableOwner(owner *int64) sql.NullInt64 {
	if owner == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *owner, Valid: true}
}

// CreatePhoto inserts a catalog row for a fully staged file.
func (d *Database) CreatePhoto(ctx context.Context, staged catalog.StagedFile) (id int64, err error) {
	start := time.Now()
	defer func() { recordQuery("create_photo", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var lat, lon sql.NullFloat64
	if staged.Location != nil {
		lat = sql.NullFloat64{Float64: staged.Location.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: staged.Location.Longitude, Valid: true}
	}

	var takenAt sql.NullInt64
	if staged.TakenAt != nil {
		takenAt = sql.NullInt64{Int64: staged.TakenAt.Unix(), Valid: true}
	}

	var thumb sql.NullString
	if staged.DerivativeFilename != "" {
		thumb = sql.NullString{String: staged.DerivativeFilename, Valid: true}
	}

	now := d.now().Unix()

	d.mu.Lock()
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO photos (user_id, filename, original_filename, file_size, mime_type,
			thumbnail_filename, gps_latitude, gps_longitude, taken_at, uploaded_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, nullableOwner(staged.OwnerID), staged.StoredFilename, staged.OriginalFilename, staged.FileSize,
		staged.MimeType, thumb, lat, lon, takenAt, now, now)
	d.mu.Unlock()

	if err != nil {
		return 0, persistenceError("create photo", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, persistenceError("create photo", err)
	}

	logging.Debug("Created photo %d (%s)", id, staged.StoredFilename)
	return id, nil
}

// GetPhoto returns the photo with the given id.
func (d *Database) GetPhoto(ctx context.Context, id int64) (photo *catalog.Photo, err error) {
	start := time.Now()
	defer func() { recordQuery("get_photo", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.RLock()
	row := d.db.QueryRowContext(ctx, `SELECT `+photoColumns+` FROM photos p WHERE p.id = ?`, id)
	photo, err = scanPhoto(row)
	d.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %d: %w", id, catalog.ErrNotFound)
	}
	if err != nil {
		return nil, persistenceError("get photo", err)
	}
	return photo, nil
}

// buildPhotoFilter returns the WHERE clause and arguments for filter.
func buildPhotoFilter(filter catalog.PhotoFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if filter.TakenFrom != nil {
		conds = append(conds, "p.taken_at >= ?")
		args = append(args, filter.TakenFrom.Unix())
	}

	if filter.TakenTo != nil {
		// Whole day inclusive: everything before midnight of the next day.
		t := *filter.TakenTo
		dayEnd := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
		conds = append(conds, "p.taken_at < ?")
		args = append(args, dayEnd.Unix())
	}

	if filter.MinRating != nil {
		conds = append(conds, "(SELECT AVG(r.rating) FROM ratings r WHERE r.photo_id = p.id) >= ?")
		args = append(args, *filter.MinRating)
	}

	if filter.HasGPS != nil {
		if *filter.HasGPS {
			conds = append(conds, "p.gps_latitude IS NOT NULL AND p.gps_longitude IS NOT NULL")
		} else {
			conds = append(conds, "(p.gps_latitude IS NULL OR p.gps_longitude IS NULL)")
		}
	}

	if filter.OrphanedOnly {
		conds = append(conds, "p.user_id IS NULL")
	} else if filter.OwnerID != nil {
		conds = append(conds, "p.user_id = ?")
		args = append(args, *filter.OwnerID)
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPhotos returns photos matching filter, newest upload first.
func (d *Database) ListPhotos(ctx context.Context, filter catalog.PhotoFilter) (photos []catalog.Photo, err error) {
	start := time.Now()
	defer func() { recordQuery("list_photos", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	limit := filter.Limit
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	where, args := buildPhotoFilter(filter)
	query := `SELECT ` + photoColumns + ` FROM photos p` + where +
		` ORDER BY p.uploaded_at DESC, p.id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list photos", err)
	}
	defer rows.Close()

	photos = []catalog.Photo{}
	for rows.Next() {
		photo, scanErr := scanPhoto(rows)
		if scanErr != nil {
			err = persistenceError("list photos", scanErr)
			return nil, err
		}
		photos = append(photos, *photo)
	}

	if err = rows.Err(); err != nil {
		return nil, persistenceError("list photos", err)
	}
	return photos, nil
}

// DeletePhoto removes the photo row. Its ratings go with it by cascade.
func (d *Database) DeletePhoto(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("delete_photo", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	result, err := d.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	d.mu.Unlock()

	if err != nil {
		return persistenceError("delete photo", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistenceError("delete photo", err)
	}
	if affected == 0 {
		err = fmt.Errorf("photo %d: %w", id, catalog.ErrNotFound)
		return err
	}
	return nil
}

// ReassignOwner sets or clears the owner of a photo. A non-nil owner must
// reference an existing user.
func (d *Database) ReassignOwner(ctx context.Context, photoID int64, ownerID *int64) (err error) {
	start := time.Now()
	defer func() { recordQuery("reassign_owner", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		if ownerID != nil {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, *ownerID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("user %d: %w", *ownerID, catalog.ErrNotFound)
			}
			if err != nil {
				return persistenceError("reassign owner", err)
			}
		}

		result, err := tx.ExecContext(ctx, `UPDATE photos SET user_id = ?, updated_at = ? WHERE id = ?`,
			nullableOwner(ownerID), d.now().Unix(), photoID)
		if err != nil {
			return persistenceError("reassign owner", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return persistenceError("reassign owner", err)
		}
		if affected == 0 {
			return fmt.Errorf("photo %d: %w", photoID, catalog.ErrNotFound)
		}
		return nil
	})
	return err
}

// UpdateDerivative records a regenerated derivative filename.
func (d *Database) UpdateDerivative(ctx context.Context, photoID int64, derivative string) (err error) {
	start := time.Now()
	defer func() { recordQuery("update_derivative", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var thumb sql.NullString
	if derivative != "" {
		thumb = sql.NullString{String: derivative, Valid: true}
	}

	d.mu.Lock()
	result, err := d.db.ExecContext(ctx, `UPDATE photos SET thumbnail_filename = ?, updated_at = ? WHERE id = ?`,
		thumb, d.now().Unix(), photoID)
	d.mu.Unlock()

	if err != nil {
		return persistenceError("update derivative", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistenceError("update derivative", err)
	}
	if affected == 0 {
		err = fmt.Errorf("photo %d: %w", photoID, catalog.ErrNotFound)
		return err
	}
	return nil
}

// GetStats counts photos, orphans, geotagged photos and ratings.
func (d *Database) GetStats(ctx context.Context) (stats catalog.Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	d.mu.RLock()
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM photos),
			(SELECT COUNT(*) FROM photos WHERE user_id IS NULL),
			(SELECT COUNT(*) FROM photos WHERE gps_latitude IS NOT NULL AND gps_longitude IS NOT NULL),
			(SELECT COUNT(*) FROM ratings)
	`).Scan(&stats.Photos, &stats.OrphanedPhotos, &stats.PhotosWithGPS, &stats.Ratings)
	d.mu.RUnlock()

	if err != nil {
		return catalog.Stats{}, persistenceError("stats", err)
	}
	return stats, nil
}
