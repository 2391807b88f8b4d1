// Command photomapctl provides operator commands for a photomap deployment.
//
// Usage:
//
//	photomapctl <command> [args]
//
// Commands:
//
//	failed          List files in the failed directory together with the
//	                error kind, stage and message from their diagnostics.
//
//	requeue <name>  Move one or more failed files back to the incoming
//	                directory and delete their diagnostics. The next poll
//	                retries them. With --all every failed file is requeued
//	                after a confirmation prompt; pass --yes to skip it when
//	                stdin is not a terminal.
//
//	status          Display catalog totals and the time the last photo was
//	                accepted.
//
//	photo <id>      Show a photo's catalog record and its rating summary as
//	                an anonymous viewer sees it.
//
//	regenerate <id> Re-render every configured thumbnail size from the
//	                stored original and record the new derivative.
//
//	rate <photo> <user> <1-5|clear>
//	                Set or clear a user's rating and print the display
//	                rating that user now sees.
//
//	orphans         List photos without an owner. With --delete every
//	                orphaned photo is removed together with its files,
//	                after the same confirmation rules as requeue --all.
//
// Environment:
//
//	DATABASE_DIR    - Path to database directory (default: /database)
//	INCOMING_DIR    - Incoming directory (default: /data/incoming)
//	ORIGINAL_DIR    - Original storage (default: /data/originals)
//	DERIVATIVE_DIR  - Thumbnail root (default: /data/thumbnails)
//	FAILED_DIR      - Failed directory (default: /data/failed)
//	THUMBNAIL_SIZES - Sizes used by regenerate (default: medium:300)
//
// The commands work on the same directories as the running service and are
// safe to run while it is polling: requeued files are picked up like any
// other upload.
package main
