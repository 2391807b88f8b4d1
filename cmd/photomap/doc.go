// Package main provides the entry point for the photomap intake service.
//
// photomap watches an incoming directory for uploaded photos, claims each
// file, extracts its EXIF metadata, renders thumbnails, and records the
// photo in a SQLite catalog. Files that cannot be processed are moved to a
// failed directory next to a diagnostic describing what went wrong.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from environment or container limits
//  2. Configuration Loading: Reads .env and environment variables, prepares directories
//  3. Database Initialization: Opens the SQLite catalog and applies migrations
//  4. Component Initialization:
//     - Memory Monitor: Pauses intake under memory pressure
//     - Thumbnail Generator: libvips when available, imaging otherwise
//     - Lifecycle Manager: Moves each file through extract, thumbnail and persist
//     - Intake Poller: Claims files from the incoming directory on a timer
//     - Metrics Collector: Refreshes catalog gauges every minute
//  5. Operations Listener: Health probes, Prometheus metrics and failed-file endpoints
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM
//
// # Environment Variables
//
//   - INCOMING_DIR: Directory watched for new uploads (default: /data/incoming)
//   - ORIGINAL_DIR: Where accepted originals are stored (default: /data/originals)
//   - DERIVATIVE_DIR: Thumbnail output root (default: /data/thumbnails)
//   - FAILED_DIR: Rejected files and diagnostics (default: /data/failed)
//   - DATABASE_DIR: Directory for the SQLite catalog (default: /database)
//   - POLL_INTERVAL: Incoming directory scan interval (default: 10s)
//   - PROCESSING_TIMEOUT: Per-file pipeline deadline (default: 2m)
//   - INTAKE_WORKERS: Concurrent pipeline workers (default: derived from CPUs)
//   - ALLOWED_EXTENSIONS: Extensions the pipeline accepts
//   - INTAKE_EXTENSIONS: Extensions the poller picks up
//   - THUMBNAIL_SIZES: Comma-separated name:pixels pairs (default: medium:300)
//   - THUMBNAIL_QUALITY: JPEG quality 1-100 (default: 85)
//   - USE_VIPS: Use libvips for decoding and resizing (default: true)
//   - METRICS_PORT: Operations listener port (default: 9090)
//   - METRICS_ENABLED: Run the operations listener (default: true)
//   - LOG_LEVEL: Logging level (debug/info/warn/error)
//   - GOMEMLIMIT / MEMORY_LIMIT / MEMORY_RATIO: Go heap limit
//
// # Graceful Shutdown
//
//  1. Shutdown the operations listener (30s timeout)
//  2. Stop the intake poller; in-flight files finish, queued files return to incoming
//  3. Stop the metrics collector and memory monitor
//  4. Shutdown libvips
//  5. Close the database
//
// Files left in the claim directory by a crash are returned to the incoming
// directory on the next start.
package main
