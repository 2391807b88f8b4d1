// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// A .env file in the working directory is read first; variables already set
// in the environment win. The following variables are supported:
//
//   - INCOMING_DIR: Directory polled for new uploads (default: /data/incoming)
//   - ORIGINAL_DIR: Final home of accepted originals (default: /data/originals)
//   - DERIVATIVE_DIR: Root of the per-size thumbnail directories (default: /data/thumbnails)
//   - FAILED_DIR: Rejected files and their .error.txt records (default: /data/failed)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - POLL_INTERVAL: Intake poll interval as Go duration (default: 10s)
//   - PROCESSING_TIMEOUT: Per-file pipeline deadline as Go duration (default: 2m)
//   - ALLOWED_EXTENSIONS: Extensions accepted by validation (default: .jpg,.jpeg,.png)
//   - INTAKE_EXTENSIONS: Extensions the poller picks up (default: all known image types)
//   - THUMBNAIL_SIZES: name:px pairs, first is primary (default: medium:300)
//   - THUMBNAIL_QUALITY: JPEG quality 1-100 (default: 85)
//   - INTAKE_WORKERS: Fixed worker count (default: 1.5 per CPU, at most 8)
//   - USE_VIPS: Prefer libvips for resizing when available (default: true)
//   - METRICS_PORT: Operations listener port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the operations listener (default: true)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Share of MEMORY_LIMIT for Go heap (default: 0.85)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// Malformed durations and numbers log a warning and fall back to defaults.
// Malformed THUMBNAIL_SIZES or empty extension lists are errors.
//
// # Directory Setup
//
// Every directory is required. Missing ones are created, and each is checked
// for write access, along with one subdirectory of DERIVATIVE_DIR per size.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Database initialization timing
//   - [LogThumbnailInit]: Derivative sizes and backend
//   - [LogIntakeInit]: Poll interval and worker count
//   - [LogHTTPRoutes]: Operations routes (debug level)
//   - [LogServerStarted]: Endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownComplete]: Graceful shutdown
package startup
