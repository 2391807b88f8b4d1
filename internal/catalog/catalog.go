package catalog

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a photo or rating does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistence marks failures of the backing store (unavailable,
	// constraint violation, timeout). Nothing was committed.
	ErrPersistence = errors.New("catalog unavailable")

	// ErrInvalidRating is returned for values outside [MinRating, MaxRating].
	ErrInvalidRating = errors.New("rating out of range")
)

// Writer is the persistence contract the intake pipeline and the rating
// service depend on.
type Writer interface {
	// CreatePhoto inserts one row atomically and returns its id.
	CreatePhoto(ctx context.Context, staged StagedFile) (int64, error)

	// FindUserByID returns nil without error when the user does not exist.
	FindUserByID(ctx context.Context, id int64) (*User, error)

	// FindRating returns nil without error when there is no rating.
	FindRating(ctx context.Context, photoID, userID int64) (*Rating, error)

	// UpsertRating inserts or replaces the (photo, user) rating atomically.
	UpsertRating(ctx context.Context, photoID, userID int64, value int) error

	// DeleteRating returns ErrNotFound when there is nothing to delete.
	DeleteRating(ctx context.Context, photoID, userID int64) error

	ListRatings(ctx context.Context, photoID int64) ([]Rating, error)
}

// Store extends Writer with the read and maintenance operations used by the
// photo service.
type Store interface {
	Writer

	// GetPhoto returns ErrNotFound for unknown ids.
	GetPhoto(ctx context.Context, id int64) (*Photo, error)
	ListPhotos(ctx context.Context, filter PhotoFilter) ([]Photo, error)

	// DeletePhoto removes the row and, by cascade, its ratings.
	DeletePhoto(ctx context.Context, id int64) error
	ReassignOwner(ctx context.Context, photoID int64, ownerID *int64) error
	UpdateDerivative(ctx context.Context, photoID int64, derivative string) error

	GetStats(ctx context.Context) (Stats, error)
}

// ValidateRating checks value against the allowed range.
func ValidateRating(value int) error {
	if value < MinRating || value > MaxRating {
		return fmt.Errorf("%w: %d (must be %d-%d)", ErrInvalidRating, value, MinRating, MaxRating)
	}
	return nil
}
