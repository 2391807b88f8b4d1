// Package logging provides the leveled logger shared by every photomap
// component.
//
// Levels, lowest first:
//   - DEBUG: per-file pipeline transitions
//   - INFO: claims, successful intakes, startup banners
//   - WARN: recoverable problems (unreadable incoming dir, missing owner)
//   - ERROR: failed intakes and persistence errors
//   - FATAL: startup errors that terminate the process
//
// The level comes from DEBUG=true or LOG_LEVEL and can be overridden with
// SetLevel.
package logging
