package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"photomap/internal/catalog"
	"photomap/internal/filesystem"
	"photomap/internal/logging"
	"photomap/internal/media"
	"photomap/internal/mediatypes"
	"photomap/internal/metrics"
)

// Generator renders derivatives of an original image.
type Generator interface {
	Generate(ctx context.Context, srcPath, storedFilename string) ([]media.Derivative, error)
	Remove(storedFilename string) error
}

// Config holds the directories and rules the manager enforces.
type Config struct {
	OriginalDir       string
	FailedDir         string
	AllowedExtensions mediatypes.ExtensionSet
	Retry             filesystem.RetryConfig
}

// Manager drives one file at a time through validate, extract, move,
// thumbnail and persist, or routes it to the failed directory. It is safe
// for concurrent use on distinct files.
type Manager struct {
	config  Config
	catalog catalog.Writer
	thumbs  Generator

	extract func(path string) media.Metadata
	newName func(ext string) string
	now     func() time.Time
}

// NewManager creates a lifecycle manager.
func NewManager(config Config, writer catalog.Writer, thumbs Generator) *Manager {
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = mediatypes.NewExtensionSet(mediatypes.DefaultAllowedExtensions...)
	}
	if config.Retry.MaxRetries == 0 && config.Retry.InitialBackoff == 0 {
		config.Retry = filesystem.DefaultRetryConfig()
	}

	return &Manager{
		config:  config,
		catalog: writer,
		thumbs:  thumbs,
		extract: media.ExtractMetadata,
		newName: func(ext string) string { return uuid.NewString() + ext },
		now:     time.Now,
	}
}

// Result describes the terminal state of one processed file.
type Result struct {
	OriginalFilename string
	// Persisted
	PhotoID            int64
	StoredFilename     string
	DerivativeFilename string
	OwnerID            *int64
	// Failed
	Err        *PipelineError
	FailedPath string
}

// Outcome is the pipeline outcome metric label for r.
func (r Result) Outcome() string {
	if r.Err != nil {
		return string(r.Err.Kind)
	}
	return "persisted"
}

// processing tracks where the file currently lives so failure handling can
// find it after it has left the claim directory.
type processing struct {
	originalName string
	current      string
	stored       string
	derivatives  bool
}

// Process runs the pipeline on a claimed file. Every error is handled here:
// the file always ends in either the original directory (with a catalog
// row) or the failed directory (with a diagnostic file).
func (m *Manager) Process(ctx context.Context, claimedPath string) Result {
	start := time.Now()
	p := &processing{
		originalName: filepath.Base(claimedPath),
		current:      claimedPath,
	}

	result, err := m.run(ctx, p)
	if err != nil {
		result = m.fail(p, err)
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	metrics.PipelineOutcomesTotal.WithLabelValues(result.Outcome()).Inc()
	return result
}

func (m *Manager) run(ctx context.Context, p *processing) (Result, error) {
	// Validated
	var (
		size int64
		mime string
	)
	err := m.stage(StageValidate, func() error {
		ext := mediatypes.Ext(p.originalName)
		if !m.config.AllowedExtensions[ext] {
			return &PipelineError{
				Kind:  KindValidation,
				Stage: StageValidate,
				Err:   fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedExtension, ext, m.config.AllowedExtensions),
			}
		}

		info, err := filesystem.StatWithRetry(p.current, m.config.Retry)
		if err != nil {
			return classify(StageValidate, KindStorage, err)
		}
		if !info.Mode().IsRegular() {
			return &PipelineError{Kind: KindValidation, Stage: StageValidate, Err: fmt.Errorf("not a regular file")}
		}

		size = info.Size()
		mime = mediatypes.GetMimeType(ext)
		p.stored = m.newName(ext)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// MetadataExtracted
	var md media.Metadata
	_ = m.stage(StageExtract, func() error {
		md = m.extract(p.current)
		return nil
	})

	if err := ctx.Err(); err != nil {
		return Result{}, classify(StageExtract, KindTimeout, err)
	}

	// Original relocated
	err = m.stage(StageMove, func() error {
		dst := filepath.Join(m.config.OriginalDir, p.stored)
		if err := filesystem.Move(p.current, dst, m.config.Retry); err != nil {
			return classify(StageMove, KindStorage, err)
		}
		p.current = dst
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	// ThumbnailGenerated
	var derivs []media.Derivative
	err = m.stage(StageThumbnail, func() error {
		var err error
		derivs, err = m.thumbs.Generate(ctx, p.current, p.stored)
		if err != nil {
			return classify(StageThumbnail, KindStorage, err)
		}
		p.derivatives = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, classify(StagePersist, KindTimeout, err)
	}

	// Persisted
	var result Result
	err = m.stage(StagePersist, func() error {
		owner, err := m.resolveOwner(ctx, p.originalName)
		if err != nil {
			return classify(StagePersist, KindPersistence, err)
		}

		staged := catalog.StagedFile{
			OwnerID:          owner,
			StoredFilename:   p.stored,
			OriginalFilename: p.originalName,
			FileSize:         size,
			MimeType:         mime,
			Location:         md.Location,
			TakenAt:          md.TakenAt,
		}
		if len(derivs) > 0 {
			staged.DerivativeFilename = filepath.ToSlash(derivs[0].Name)
		}

		id, err := m.catalog.CreatePhoto(ctx, staged)
		if err != nil {
			return classify(StagePersist, KindPersistence, err)
		}

		if owner == nil {
			metrics.PipelineOrphanedPhotos.Inc()
		}

		result = Result{
			OriginalFilename:   p.originalName,
			PhotoID:            id,
			StoredFilename:     p.stored,
			DerivativeFilename: staged.DerivativeFilename,
			OwnerID:            owner,
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logging.Info("Processed %s -> photo %d (%s)", p.originalName, result.PhotoID, result.StoredFilename)
	return result, nil
}

// stage times fn under the given stage label.
func (m *Manager) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.PipelineStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}

// resolveOwner returns the user named by the filename prefix, or nil when
// there is no prefix or no such user.
func (m *Manager) resolveOwner(ctx context.Context, filename string) (*int64, error) {
	id, ok := ParseOwnerID(filename)
	if !ok {
		return nil, nil
	}

	user, err := m.catalog.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		logging.Info("No user %d for %s, storing as orphaned", id, filename)
		return nil, nil
	}
	return &user.ID, nil
}

// fail routes the file from wherever it currently is into the failed
// directory and writes the diagnostic file. It never returns an error;
// problems are logged.
func (m *Manager) fail(p *processing, err error) Result {
	pe := classify(StageFail, KindStorage, err)
	result := Result{OriginalFilename: p.originalName, Err: pe}

	_ = m.stage(StageFail, func() error {
		if p.derivatives {
			if rmErr := m.thumbs.Remove(p.stored); rmErr != nil {
				logging.Warn("Failed to remove derivatives of %s: %v", p.stored, rmErr)
			}
		}

		failedPath := filepath.Join(m.config.FailedDir, p.originalName)
		if mvErr := filesystem.Move(p.current, failedPath, m.config.Retry); mvErr != nil {
			if errors.Is(mvErr, os.ErrNotExist) {
				logging.Error("Failed file %s vanished before it could be moved to %s", p.current, m.config.FailedDir)
			} else {
				logging.Error("Failed to move %s to failed directory: %v", p.current, mvErr)
			}
			return mvErr
		}
		result.FailedPath = failedPath

		if diagErr := m.writeDiagnostic(failedPath, pe); diagErr != nil {
			metrics.PipelineDiagnosticErrors.Inc()
			logging.Error("Failed to write diagnostic for %s: %v", failedPath, diagErr)
		}
		return nil
	})

	logging.Warn("Failed to process %s: %v", p.originalName, pe)
	return result
}

func (m *Manager) writeDiagnostic(failedPath string, pe *PipelineError) error {
	return filesystem.WriteFileAtomic(DiagnosticPath(failedPath), FormatDiagnostic(pe, m.now()), 0o644, m.config.Retry)
}
