// Package metrics provides Prometheus instrumentation for photomap.
//
// All metrics are registered with promauto at package init and prefixed with
// "photomap_". InitializeMetrics pre-populates label sets so dashboards see
// zero values before the first event.
//
// # Metric Categories
//
// ## Intake
//   - IntakePollsTotal, IntakePollErrors, IntakePollDuration
//   - IntakePollSkipped by reason (busy, memory)
//   - IntakeFilesDiscovered, IntakeFilesClaimed, IntakeClaimConflicts
//   - IntakeInFlight, IntakeWorkers, IntakeLastPollTimestamp
//
// ## Pipeline
//   - PipelineOutcomesTotal by outcome: persisted, validation, storage,
//     decode, persistence, timeout
//   - PipelineStageDuration by stage, PipelineDuration end to end
//   - PipelineDiagnosticErrors, PipelineOrphanedPhotos
//
// ## Metadata and thumbnails
//   - MetadataExtractionsTotal by field (gps, taken_at) and result
//   - ThumbnailGenerationsTotal by size and status
//   - ThumbnailGenerationDuration by backend (imaging, vips)
//
// ## Catalog
//   - DBQueryTotal, DBQueryDuration, DBTransactionDuration, DBConnectionsOpen
//   - CatalogPhotosTotal, CatalogOrphanedPhotos, CatalogPhotosWithGPS,
//     CatalogRatingsTotal (refreshed by Collector)
//   - RatingMutationsTotal by operation and status
//
// ## Operations listener
//   - HTTPRequestsTotal by method, route template and status
//   - HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Filesystem and memory
//   - Filesystem* metrics labelled by volume (incoming, original,
//     derivative, failed) via the filesystem.Observer implementation
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
package metrics
