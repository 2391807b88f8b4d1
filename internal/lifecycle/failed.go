package lifecycle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"photomap/internal/filesystem"
	"photomap/internal/logging"
)

// DiagnosticSuffix is appended to a failed file's name to form the name of
// its diagnostic record.
const DiagnosticSuffix = ".error.txt"

// Requeue errors.
var (
	ErrInvalidName   = errors.New("invalid file name")
	ErrAlreadyQueued = errors.New("already in incoming directory")
)

// DiagnosticPath returns the diagnostic file path for a failed file.
func DiagnosticPath(failedPath string) string {
	return failedPath + DiagnosticSuffix
}

// FormatDiagnostic renders the diagnostic record:
//
//	Error: decode
//	Stage: thumbnail
//	Message: ...
//	Timestamp: 2024-06-01T10:00:00Z
func FormatDiagnostic(pe *PipelineError, at time.Time) []byte {
	msg := strings.ReplaceAll(pe.Err.Error(), "\n", " ")
	return []byte(fmt.Sprintf("Error: %s\nStage: %s\nMessage: %s\nTimestamp: %s\n",
		pe.Kind, pe.Stage, msg, at.UTC().Format(time.RFC3339)))
}

// Diagnostic is a parsed diagnostic record.
type Diagnostic struct {
	Kind      ErrorKind `json:"kind"`
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ParseDiagnostic reads a record written by FormatDiagnostic. Unknown lines
// are ignored.
func ParseDiagnostic(data []byte) Diagnostic {
	var d Diagnostic
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ": ")
		if !ok {
			continue
		}
		switch key {
		case "Error":
			d.Kind = ErrorKind(value)
		case "Stage":
			d.Stage = value
		case "Message":
			d.Message = value
		case "Timestamp":
			if t, err := time.Parse(time.RFC3339, value); err == nil {
				d.Timestamp = t
			}
		}
	}
	return d
}

// FailedFile is a file waiting in the failed directory.
type FailedFile struct {
	Name       string      `json:"name"`
	Size       int64       `json:"size"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}

// ListFailed returns the files in failedDir with their diagnostics, sorted
// by name. Diagnostic files themselves are not listed.
func ListFailed(failedDir string, config filesystem.RetryConfig) ([]FailedFile, error) {
	entries, err := filesystem.ReadDirWithRetry(failedDir, config)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", failedDir, err)
	}

	var files []FailedFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasSuffix(name, DiagnosticSuffix) || strings.HasSuffix(name, ".partial") {
			continue
		}

		f := FailedFile{Name: name}
		if info, err := entry.Info(); err == nil {
			f.Size = info.Size()
		}

		if data, err := os.ReadFile(DiagnosticPath(filepath.Join(failedDir, name))); err == nil {
			d := ParseDiagnostic(data)
			f.Diagnostic = &d
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Requeue moves a failed file back into incomingDir under its original name
// and removes its diagnostic record, so the next poll retries it.
func Requeue(failedDir, incomingDir, name string, config filesystem.RetryConfig) error {
	if name != filepath.Base(name) || name == "." || name == ".." ||
		strings.HasPrefix(name, ".") || strings.HasSuffix(name, DiagnosticSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	src := filepath.Join(failedDir, name)
	dst := filepath.Join(incomingDir, name)

	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%s: %w", name, ErrAlreadyQueued)
	}

	if err := filesystem.Move(src, dst, config); err != nil {
		return fmt.Errorf("failed to requeue %s: %w", name, err)
	}

	if err := os.Remove(DiagnosticPath(src)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn("Requeued %s but failed to remove its diagnostic: %v", name, err)
	}

	logging.Info("Requeued %s", name)
	return nil
}
