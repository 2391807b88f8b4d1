package photos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"photomap/internal/catalog"
	"photomap/internal/lifecycle"
	"photomap/internal/logging"
	"photomap/internal/rating"
)

// orphanPageSize is the page size used when walking every orphaned photo.
const orphanPageSize = 500

// View is a photo as presented to one viewer.
type View struct {
	catalog.Photo
	rating.Summary
}

// BulkResult reports a bulk operation that continues past failures.
type BulkResult struct {
	Deleted int      `json:"deleted"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors,omitempty"`
}

// Service is the read model and maintenance surface over the catalog and
// the files each photo owns on disk.
type Service struct {
	store       catalog.Store
	thumbs      lifecycle.Generator
	originalDir string
}

// NewService creates a photo service.
func NewService(store catalog.Store, thumbs lifecycle.Generator, originalDir string) *Service {
	return &Service{store: store, thumbs: thumbs, originalDir: originalDir}
}

// Get returns one photo with its rating summary for viewer. A nil viewer is
// anonymous.
func (s *Service) Get(ctx context.Context, id int64, viewer *int64) (*View, error) {
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}

	view, err := s.view(ctx, *photo, viewer)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// List returns the photos matching filter, newest upload first.
func (s *Service) List(ctx context.Context, filter catalog.PhotoFilter, viewer *int64) ([]View, error) {
	photos, err := s.store.ListPhotos(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(photos))
	for _, p := range photos {
		v, err := s.view(ctx, p, viewer)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) view(ctx context.Context, photo catalog.Photo, viewer *int64) (View, error) {
	ratings, err := s.store.ListRatings(ctx, photo.ID)
	if err != nil {
		return View{}, fmt.Errorf("failed to load ratings for photo %d: %w", photo.ID, err)
	}
	return View{Photo: photo, Summary: rating.Summarize(ratings, viewer)}, nil
}

// Delete removes a photo, its ratings, its original and every derivative.
// The row goes first so the catalog never points at missing files; file
// removal problems after that are logged.
func (s *Service) Delete(ctx context.Context, id int64) error {
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeletePhoto(ctx, id); err != nil {
		return err
	}

	if err := s.removeFiles(photo); err != nil {
		logging.Warn("Photo %d deleted but files remain: %v", id, err)
	}

	logging.Info("Deleted photo %d (%s)", id, photo.OriginalFilename)
	return nil
}

func (s *Service) removeFiles(photo *catalog.Photo) error {
	var errs []error

	original := filepath.Join(s.originalDir, photo.StoredFilename)
	if err := os.Remove(original); err != nil && !errors.Is(err, os.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := s.thumbs.Remove(photo.StoredFilename); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ListOrphaned returns photos without an owner.
func (s *Service) ListOrphaned(ctx context.Context, limit, offset int) ([]catalog.Photo, error) {
	return s.store.ListPhotos(ctx, catalog.PhotoFilter{OrphanedOnly: true, Limit: limit, Offset: offset})
}

// DeleteOrphaned deletes every orphaned photo, continuing past individual
// failures.
func (s *Service) DeleteOrphaned(ctx context.Context) (BulkResult, error) {
	var ids []int64
	for offset := 0; ; offset += orphanPageSize {
		page, err := s.ListOrphaned(ctx, orphanPageSize, offset)
		if err != nil {
			return BulkResult{}, err
		}
		for _, p := range page {
			ids = append(ids, p.ID)
		}
		if len(page) < orphanPageSize {
			break
		}
	}

	result := BulkResult{Total: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.Delete(ctx, id); err != nil {
			logging.Warn("Failed to delete orphaned photo %d: %v", id, err)
			result.Errors = append(result.Errors, fmt.Sprintf("photo %d: %v", id, err))
			continue
		}
		result.Deleted++
	}

	logging.Info("Deleted %d of %d orphaned photos", result.Deleted, result.Total)
	return result, nil
}

// ReassignOwner sets the owner of a photo, or orphans it when ownerID is
// nil.
func (s *Service) ReassignOwner(ctx context.Context, photoID int64, ownerID *int64) error {
	if err := s.store.ReassignOwner(ctx, photoID, ownerID); err != nil {
		return err
	}

	if ownerID == nil {
		logging.Info("Photo %d is now orphaned", photoID)
	} else {
		logging.Info("Photo %d reassigned to user %d", photoID, *ownerID)
	}
	return nil
}

// RegenerateDerivatives renders every derivative of a photo again from its
// original and records the primary one. On failure the photo's existing
// derivatives and catalog row are left as they were.
func (s *Service) RegenerateDerivatives(ctx context.Context, id int64) (*catalog.Photo, error) {
	photo, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return nil, err
	}

	src := filepath.Join(s.originalDir, photo.StoredFilename)
	derivs, err := s.thumbs.Generate(ctx, src, photo.StoredFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate derivatives for photo %d: %w", id, err)
	}
	if len(derivs) == 0 {
		return nil, fmt.Errorf("no derivatives produced for photo %d", id)
	}

	name := filepath.ToSlash(derivs[0].Name)
	if err := s.store.UpdateDerivative(ctx, id, name); err != nil {
		return nil, err
	}

	photo.DerivativeFilename = name
	logging.Debug("Regenerated %d derivatives for photo %d", len(derivs), id)
	return photo, nil
}

// Stats returns catalog totals.
func (s *Service) Stats(ctx context.Context) (catalog.Stats, error) {
	return s.store.GetStats(ctx)
}
