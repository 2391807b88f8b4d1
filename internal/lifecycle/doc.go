// Package lifecycle owns the directory state machine of an intake file.
//
// A claimed file moves Incoming → Validated → MetadataExtracted →
// ThumbnailGenerated → Persisted, ending in the original directory with its
// derivatives written and a catalog row created. Any error along the way
// routes the file, from wherever it currently is, to the failed directory
// together with a "<name>.error.txt" diagnostic record. Manager.Process
// never returns an error; the terminal state is reported in a Result.
//
// Owners are derived from a leading "{digits}_" filename prefix. A prefix
// naming no existing user yields an orphaned photo, not a failure.
package lifecycle
