package media

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"photomap/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogSettings maps the application log level onto libvips' own level
// and a handler forwarding its messages to our logger.
func vipsLogSettings(appLevel logging.LogLevel) (vips.LogLevel, func(string, vips.LogLevel, string)) {
	switch appLevel {
	case logging.LevelDebug:
		return vips.LogLevelInfo, func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelInfo:
		return vips.LogLevelWarning, func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			}
		}
	case logging.LevelWarn:
		return vips.LogLevelError, func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		return vips.LogLevelCritical, func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelCritical {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	}
}

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() to respect LOG_LEVEL
	level, handler := vipsLogSettings(logging.GetLevel())
	vips.LoggingSettings(handler, level)

	// Intake workers already run in parallel; keep libvips single-threaded per call
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// thumbnailWithVips shrinks the image at path to fit maxSize x maxSize and
// returns it JPEG-encoded with metadata stripped. libvips shrinks during
// decode, so large JPEGs never materialize at full resolution.
func thumbnailWithVips(path string, maxSize, quality int) ([]byte, int, int, error) {
	if !IsVipsAvailable() {
		return nil, 0, 0, fmt.Errorf("libvips not available")
	}

	params := vips.NewImportParams()
	params.AutoRotate.Set(true)

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: vips failed to load image: %w", ErrDecode, err)
	}
	defer ref.Close()

	logging.Debug("Vips loaded %s: %dx%d, fitting to %d", filepath.Base(path), ref.Width(), ref.Height(), maxSize)

	// Never upscale
	if ref.Width() > maxSize || ref.Height() > maxSize {
		if err := ref.Thumbnail(maxSize, maxSize, vips.InterestingNone); err != nil {
			return nil, 0, 0, fmt.Errorf("vips resize failed: %w", err)
		}
	}

	data, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, 0, 0, fmt.Errorf("vips export failed: %w", err)
	}

	return data, ref.Width(), ref.Height(), nil
}
