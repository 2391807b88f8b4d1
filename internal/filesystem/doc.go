// Package filesystem wraps the file operations the intake pipeline depends
// on: claiming files out of the incoming directory, moving them between the
// original, derivative and failed directories, and writing diagnostics.
//
// Every operation retries on ESTALE with capped exponential backoff, which
// matters when the intake volumes are NFS mounts shared with an uploader.
// Move falls back to copy-then-remove when source and destination are on
// different devices.
//
// Metrics are recorded through an Observer set with SetObserver; labels come
// from a VolumeResolver mapping paths to volume names.
package filesystem
