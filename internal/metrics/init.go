package metrics

// Label values shared with the packages that record them.
var (
	// Outcomes lists every value of the pipeline "outcome" label.
	Outcomes = []string{"persisted", "validation", "storage", "decode", "persistence", "timeout"}

	// Stages lists every value of the pipeline "stage" label.
	Stages = []string{"claim", "validate", "extract", "move", "thumbnail", "persist", "fail"}

	// Volumes lists the filesystem volume labels.
	Volumes = []string{"incoming", "original", "derivative", "failed", "database", "unknown"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(thumbnailSizes []string) {
	for _, outcome := range Outcomes {
		PipelineOutcomesTotal.WithLabelValues(outcome)
	}
	for _, stage := range Stages {
		PipelineStageDuration.WithLabelValues(stage)
	}

	for _, reason := range []string{"busy", "memory"} {
		IntakePollSkipped.WithLabelValues(reason)
	}

	for _, field := range []string{"gps", "taken_at"} {
		for _, result := range []string{"found", "missing"} {
			MetadataExtractionsTotal.WithLabelValues(field, result)
		}
	}

	for _, size := range thumbnailSizes {
		ThumbnailGenerationsTotal.WithLabelValues(size, "success")
		ThumbnailGenerationsTotal.WithLabelValues(size, "error")
	}
	for _, backend := range []string{"imaging", "vips"} {
		ThumbnailGenerationDuration.WithLabelValues(backend)
	}
	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "unknown"} {
		ThumbnailImageDecodeByFormat.WithLabelValues(format)
	}

	for _, op := range []string{"set", "clear"} {
		for _, status := range []string{"success", "invalid", "not_found", "error"} {
			RatingMutationsTotal.WithLabelValues(op, status)
		}
	}

	for _, op := range []string{"stat", "rename", "copy", "write", "readdir"} {
		for _, vol := range Volumes {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"create_photo", "get_photo", "find_user", "find_rating",
		"upsert_rating", "delete_rating", "list_ratings", "list_photos", "delete_photo",
		"reassign_owner", "update_derivative", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}
}
