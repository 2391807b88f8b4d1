package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"photomap/internal/catalog"
	"photomap/internal/media"
)

// ErrorKind classifies why a file was routed to the failed directory. The
// values double as pipeline outcome metric labels.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindStorage     ErrorKind = "storage"
	KindDecode      ErrorKind = "decode"
	KindPersistence ErrorKind = "persistence"
	KindTimeout     ErrorKind = "timeout"
)

// Pipeline stages, used in errors, logs and the stage duration metric.
const (
	StageClaim     = "claim"
	StageValidate  = "validate"
	StageExtract   = "extract"
	StageMove      = "move"
	StageThumbnail = "thumbnail"
	StagePersist   = "persist"
	StageFail      = "fail"
)

// ErrUnsupportedExtension is returned for files outside the allow-list.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// PipelineError is the error carried by a failed Result.
type PipelineError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s error at %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// classify wraps err with the kind implied by its chain. fallback applies
// when nothing more specific matches.
func classify(stage string, fallback ErrorKind, err error) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}

	kind := fallback
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.Is(err, media.ErrDecode):
		kind = KindDecode
	case errors.Is(err, catalog.ErrPersistence), errors.Is(err, catalog.ErrNotFound):
		kind = KindPersistence
	case errors.Is(err, ErrUnsupportedExtension):
		kind = KindValidation
	}

	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}
