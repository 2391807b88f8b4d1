package rating

import (
	"context"
	"errors"
	"fmt"

	"photomap/internal/catalog"
	"photomap/internal/logging"
	"photomap/internal/metrics"
)

// Service applies rating mutations through the catalog.
type Service struct {
	catalog catalog.Writer
}

// NewService creates a rating service.
func NewService(writer catalog.Writer) *Service {
	return &Service{catalog: writer}
}

// Set records value as userID's rating of photoID, replacing any earlier
// rating by the same user. The value is validated before anything is
// written. An unknown photo or user yields catalog.ErrNotFound.
func (s *Service) Set(ctx context.Context, photoID, userID int64, value int) error {
	if err := catalog.ValidateRating(value); err != nil {
		recordMutation("set", err)
		return err
	}

	err := s.catalog.UpsertRating(ctx, photoID, userID, value)
	recordMutation("set", err)
	if err != nil {
		return fmt.Errorf("failed to rate photo %d: %w", photoID, err)
	}

	logging.Debug("User %d rated photo %d: %d", userID, photoID, value)
	return nil
}

// Clear removes userID's rating of photoID. It returns catalog.ErrNotFound
// when there is no such rating.
func (s *Service) Clear(ctx context.Context, photoID, userID int64) error {
	err := s.catalog.DeleteRating(ctx, photoID, userID)
	recordMutation("clear", err)
	if err != nil {
		return fmt.Errorf("failed to clear rating on photo %d: %w", photoID, err)
	}

	logging.Debug("User %d cleared rating on photo %d", userID, photoID)
	return nil
}

// Get returns userID's rating of photoID, or nil.
func (s *Service) Get(ctx context.Context, photoID, userID int64) (*catalog.Rating, error) {
	return s.catalog.FindRating(ctx, photoID, userID)
}

// Summary loads a photo's ratings and summarizes them for viewer.
func (s *Service) Summary(ctx context.Context, photoID int64, viewer *int64) (Summary, error) {
	ratings, err := s.catalog.ListRatings(ctx, photoID)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list ratings for photo %d: %w", photoID, err)
	}
	return Summarize(ratings, viewer), nil
}

func recordMutation(op string, err error) {
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrInvalidRating):
		status = "invalid"
	case errors.Is(err, catalog.ErrNotFound):
		status = "not_found"
	default:
		status = "error"
	}
	metrics.RatingMutationsTotal.WithLabelValues(op, status).Inc()
}
