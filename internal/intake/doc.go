// Package intake discovers new photos in the incoming directory and feeds
// them to the lifecycle manager.
//
// Each poll cycle lists the incoming directory, skips hidden entries,
// directories and files outside the discovery extension list, and claims
// every remaining file by renaming it into
// "<incoming>/.claimed/<uuid>/<name>". The rename is the claim: a file that
// vanished before it could be renamed was taken by someone else and is
// skipped. Claimed files go to a bounded queue served by a fixed pool of
// workers, each running the lifecycle with a per-file timeout.
//
// Cycles never overlap. A poll is skipped when the previous one is still
// running or the memory monitor reports pressure, and an unreadable
// incoming directory is logged and retried on the next tick.
//
// On start, files left in the claim directory by an interrupted run are
// returned to the incoming directory. On stop, in-flight files finish and
// queued files are returned.
package intake
