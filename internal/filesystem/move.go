package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"photomap/internal/logging"
)

// Move relocates src to dst, replacing any existing dst. A same-volume
// rename is atomic. When src and dst live on different devices the file is
// copied, synced and the source removed; dst is never left half-written
// under its final name.
func Move(src, dst string, config RetryConfig) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	err := RenameWithRetry(src, dst, config)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return err
	}

	logging.Debug("Cross-device move %s -> %s, falling back to copy", src, dst)
	if err := copyFile(src, dst, config); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return nil
}

// Claim atomically renames src into dir. It returns os.ErrNotExist (wrapped)
// when another worker already took the file.
func Claim(src, dir string, config RetryConfig) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create claim directory: %w", err)
	}

	dst := filepath.Join(dir, filepath.Base(src))
	if err := RenameWithRetry(src, dst, config); err != nil {
		return "", err
	}
	return dst, nil
}

func isCrossDevice(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.EXDEV
}

func copyFile(src, dst string, config RetryConfig) (err error) {
	start := time.Now()
	defer func() {
		if obs := observe(); obs != nil {
			obs.ObserveOperation(config.resolveVolume(dst), "copy", time.Since(start).Seconds(), err)
		}
	}()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			logging.Warn("failed to close %s: %v", src, closeErr)
		}
	}()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	return os.Rename(tmp, dst)
}

// WriteFileAtomic writes data to a temporary sibling and renames it over
// path, creating the parent directory if needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, config RetryConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := path + ".partial"
	if err := WriteFileWithRetry(tmp, data, perm, config); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := RenameWithRetry(tmp, path, config); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
