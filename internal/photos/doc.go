// Package photos composes catalog rows with per-viewer rating summaries and
// owns the maintenance operations that touch both the catalog and the
// files on disk: cascade delete, orphan cleanup, ownership reassignment and
// derivative regeneration.
package photos
