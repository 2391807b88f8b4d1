package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"photomap/internal/filesystem"
)

// Intake poller metrics
var (
	IntakePollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_intake_polls_total",
			Help: "Total number of incoming directory scans",
		},
	)

	IntakePollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_intake_poll_errors_total",
			Help: "Total number of scans that could not read the incoming directory",
		},
	)

	IntakePollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photomap_intake_poll_duration_seconds",
			Help:    "Duration of a full poll cycle including dispatched work",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	IntakePollSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_intake_poll_skipped_total",
			Help: "Poll cycles skipped, by reason",
		},
		[]string{"reason"}, // "busy", "memory"
	)

	IntakeFilesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_intake_files_discovered_total",
			Help: "Files found in the incoming directory with a discoverable extension",
		},
	)

	IntakeFilesClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_intake_files_claimed_total",
			Help: "Files successfully claimed out of the incoming directory",
		},
	)

	IntakeClaimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_intake_claim_conflicts_total",
			Help: "Claims lost because the file was already gone",
		},
	)

	IntakeInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_intake_in_flight",
			Help: "Files currently being processed",
		},
	)

	IntakeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_intake_workers",
			Help: "Configured size of the intake worker pool",
		},
	)

	IntakeLastPollTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_intake_last_poll_timestamp",
			Help: "Unix timestamp of the last completed poll",
		},
	)
)

// Pipeline metrics
var (
	PipelineOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_pipeline_outcomes_total",
			Help: "Processed files by outcome (persisted or failure kind)",
		},
		[]string{"outcome"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photomap_pipeline_duration_seconds",
			Help:    "End-to-end processing time of one file",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	PipelineDiagnosticErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_pipeline_diagnostic_errors_total",
			Help: "Diagnostic files that could not be written",
		},
	)

	PipelineOrphanedPhotos = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_pipeline_orphaned_photos_total",
			Help: "Photos persisted without a resolvable owner",
		},
	)
)

// Metadata extraction metrics
var (
	MetadataExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_metadata_extractions_total",
			Help: "Metadata fields looked up, by field and result",
		},
		[]string{"field", "result"}, // field: gps|taken_at, result: found|missing
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_thumbnail_generations_total",
			Help: "Total number of derivative images generated",
		},
		[]string{"size", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_thumbnail_generation_duration_seconds",
			Help:    "Time to decode, resize and encode one derivative",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"}, // "imaging" or "vips"
	)

	ThumbnailImageDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_thumbnail_image_decode_total",
			Help: "Source images decoded, by detected format",
		},
		[]string{"format"},
	)
)

// Rating metrics
var (
	RatingMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_rating_mutations_total",
			Help: "Rating set/clear operations by result",
		},
		[]string{"operation", "status"},
	)
)

// Operations listener metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_http_requests_total",
			Help: "Requests served by the operations listener",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_http_request_duration_seconds",
			Help:    "Operations listener request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_http_requests_in_flight",
			Help: "Operations listener requests currently being served",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // "commit" or "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Catalog contents
var (
	CatalogPhotosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_catalog_photos",
			Help: "Photos in the catalog",
		},
	)

	CatalogOrphanedPhotos = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_catalog_orphaned_photos",
			Help: "Photos with no owner",
		},
	)

	CatalogPhotosWithGPS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_catalog_photos_with_gps",
			Help: "Photos carrying a GPS position",
		},
	)

	CatalogRatingsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_catalog_ratings",
			Help: "Ratings in the catalog",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_filesystem_retry_success_total",
			Help: "Operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_filesystem_retry_failures_total",
			Help: "Operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photomap_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a retried filesystem operation",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photomap_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// volumeObserver records the filesystem package's moves, writes and NFS
// retries, labelled by pipeline volume (incoming, original, derivative,
// failed or database).
type volumeObserver struct{}

// NewFilesystemObserver returns the observer passed to
// filesystem.SetObserver at startup.
func NewFilesystemObserver() filesystem.Observer {
	return volumeObserver{}
}

func (volumeObserver) ObserveOperation(volume, operation string, durationSeconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(volume, operation).Observe(durationSeconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(volume, operation).Inc()
	}
}

func (volumeObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (volumeObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (volumeObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (volumeObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(durationSeconds)
}

func (volumeObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photomap_memory_paused",
			Help: "Whether intake is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photomap_memory_gc_pauses_total",
			Help: "Times intake was paused and a GC forced",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photomap_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
