package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"photomap/internal/catalog"
	"photomap/internal/database"
	"photomap/internal/filesystem"
	"photomap/internal/lifecycle"
	"photomap/internal/media"
	"photomap/internal/photos"
	"photomap/internal/rating"
	"photomap/internal/startup"

	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second

	defaultDatabaseDir   = "/database"
	defaultIncomingDir   = "/data/incoming"
	defaultOriginalDir   = "/data/originals"
	defaultDerivativeDir = "/data/thumbnails"
	defaultFailedDir     = "/data/failed"
	defaultSizes         = "medium:300"

	orphanPageSize = 100
)

type dirs struct {
	database   string
	incoming   string
	original   string
	derivative string
	failed     string
	sizes      string
	quality    int
	useVips    bool
}

func dirsFromEnv() dirs {
	get := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}
	return dirs{
		database:   get("DATABASE_DIR", defaultDatabaseDir),
		incoming:   get("INCOMING_DIR", defaultIncomingDir),
		original:   get("ORIGINAL_DIR", defaultOriginalDir),
		derivative: get("DERIVATIVE_DIR", defaultDerivativeDir),
		failed:     get("FAILED_DIR", defaultFailedDir),
		sizes:      get("THUMBNAIL_SIZES", defaultSizes),
		quality:    qualityFromEnv(),
		useVips:    useVipsFromEnv(),
	}
}

// qualityFromEnv reads THUMBNAIL_QUALITY with the same range check as the
// service.
func qualityFromEnv() int {
	v := os.Getenv("THUMBNAIL_QUALITY")
	if v == "" {
		return startup.DefaultThumbnailQuality
	}
	q, err := strconv.Atoi(v)
	if err != nil || q < 1 || q > 100 {
		fmt.Fprintf(os.Stderr, "Warning: invalid THUMBNAIL_QUALITY %q, using %d\n", v, startup.DefaultThumbnailQuality)
		return startup.DefaultThumbnailQuality
	}
	return q
}

func useVipsFromEnv() bool {
	v := os.Getenv("USE_VIPS")
	if v == "" {
		return true
	}
	use, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid USE_VIPS %q, using true\n", v)
		return true
	}
	return use
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	d := dirsFromEnv()
	retry := filesystem.DefaultRetryConfig()

	switch command {
	case "failed":
		if err := listFailed(os.Stdout, d.failed, retry); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "requeue":
		if !requeue(os.Stdin, os.Stdout, d, args, retry, isInteractive()) {
			os.Exit(1)
		}
	case "status":
		if !withCatalog(ctx, d, func(db *database.Database, _ *photos.Service) error {
			return showStatus(ctx, os.Stdout, db)
		}) {
			os.Exit(1)
		}
	case "photo", "regenerate":
		id, err := parseID(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !withCatalog(ctx, d, func(_ *database.Database, svc *photos.Service) error {
			if command == "photo" {
				return showPhoto(ctx, os.Stdout, svc, id)
			}
			return regenerate(ctx, os.Stdout, svc, id)
		}) {
			os.Exit(1)
		}
	case "rate":
		if !withCatalog(ctx, d, func(db *database.Database, _ *photos.Service) error {
			return rate(ctx, os.Stdout, rating.NewService(db), args)
		}) {
			os.Exit(1)
		}
	case "orphans":
		if !withCatalog(ctx, d, func(_ *database.Database, svc *photos.Service) error {
			return orphans(ctx, os.Stdin, os.Stdout, svc, args, isInteractive())
		}) {
			os.Exit(1)
		}
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(command)
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // input is sanitized via allowlist in sanitizeCommand
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("photomap operations")
	fmt.Println("")
	fmt.Println("Usage: photomapctl <command> [args]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  failed                 - List files in the failed directory")
	fmt.Println("  requeue <name>...      - Move failed files back to incoming")
	fmt.Println("  requeue --all [--yes]  - Requeue every failed file")
	fmt.Println("  status                 - Show catalog totals")
	fmt.Println("  photo <id>             - Show a photo and its rating summary")
	fmt.Println("  regenerate <id>        - Re-render a photo's thumbnails")
	fmt.Println("  orphans [--delete]     - List (or delete) photos without an owner")
	fmt.Println("  rate <photo> <user> <1-5|clear>")
	fmt.Println("                         - Set or clear a user's rating")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR    - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Printf("  INCOMING_DIR    - Incoming directory (default: %s)\n", defaultIncomingDir)
	fmt.Printf("  ORIGINAL_DIR    - Original storage (default: %s)\n", defaultOriginalDir)
	fmt.Printf("  DERIVATIVE_DIR  - Thumbnail root (default: %s)\n", defaultDerivativeDir)
	fmt.Printf("  FAILED_DIR      - Failed directory (default: %s)\n", defaultFailedDir)
	fmt.Printf("  THUMBNAIL_SIZES - Sizes used by regenerate (default: %s)\n", defaultSizes)
	fmt.Printf("  THUMBNAIL_QUALITY - JPEG quality used by regenerate (default: %d)\n", startup.DefaultThumbnailQuality)
	fmt.Println("  USE_VIPS        - Resize with libvips when available (default: true)")
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec // fd fits in int
}

func listFailed(w io.Writer, failedDir string, retry filesystem.RetryConfig) error {
	files, err := lifecycle.ListFailed(failedDir, retry)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(w, "No failed files.")
		return nil
	}

	for _, f := range files {
		if f.Diagnostic == nil {
			fmt.Fprintf(w, "%s\t%d bytes\t(no diagnostic)\n", f.Name, f.Size)
			continue
		}
		fmt.Fprintf(w, "%s\t%d bytes\t%s/%s\t%s\n",
			f.Name, f.Size, f.Diagnostic.Kind, f.Diagnostic.Stage, f.Diagnostic.Message)
	}
	return nil
}

// requeue moves the named files, or all of them with --all, back to the
// incoming directory. --all asks for confirmation on a terminal and
// requires --yes otherwise.
func requeue(in io.Reader, out io.Writer, d dirs, args []string, retry filesystem.RetryConfig, interactive bool) bool {
	var names []string
	all, yes := false, false
	for _, a := range args {
		switch a {
		case "--all":
			all = true
		case "--yes", "-y":
			yes = true
		default:
			names = append(names, a)
		}
	}

	if all {
		if len(names) > 0 {
			fmt.Fprintln(os.Stderr, "Error: --all cannot be combined with file names")
			return false
		}
		files, err := lifecycle.ListFailed(d.failed, retry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		if len(files) == 0 {
			fmt.Fprintln(out, "No failed files.")
			return true
		}
		if !yes {
			if !interactive {
				fmt.Fprintln(os.Stderr, "Error: --all requires --yes when not run from a terminal")
				return false
			}
			if !confirm(in, out, fmt.Sprintf("Requeue %d files?", len(files))) {
				fmt.Fprintln(out, "Aborted.")
				return false
			}
		}
		for _, f := range files {
			names = append(names, f.Name)
		}
	}

	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no files named")
		return false
	}

	ok := true
	for _, name := range names {
		err := lifecycle.Requeue(d.failed, d.incoming, name, retry)
		switch {
		case err == nil:
			fmt.Fprintf(out, "Requeued %s\n", name)
		case errors.Is(err, os.ErrNotExist):
			fmt.Fprintf(os.Stderr, "Error: %s not found in failed directory\n", name)
			ok = false
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			ok = false
		}
	}
	return ok
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// withCatalog opens the database and a photo service over it for the
// duration of fn.
func withCatalog(ctx context.Context, d dirs, fn func(db *database.Database, svc *photos.Service) error) bool {
	sizes, err := media.ParseSizes(d.sizes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid THUMBNAIL_SIZES: %v\n", err)
		return false
	}

	db, err := database.New(ctx, filepath.Join(d.database, startup.DatabaseFilename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", d.database)
		return false
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	if d.useVips {
		if err := media.InitVips(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: libvips unavailable, using imaging: %v\n", err)
		}
		defer media.ShutdownVips()
	}

	thumbs := media.NewThumbnailGenerator(d.derivative, sizes, d.quality, d.useVips)
	if err := fn(db, photos.NewService(db, thumbs, d.original)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	return true
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one photo id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid photo id %q", sanitizeCommand(args[0]))
	}
	return id, nil
}

func showPhoto(ctx context.Context, w io.Writer, svc *photos.Service, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	v, err := svc.Get(ctx, id, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "ID:          %d\n", v.ID)
	fmt.Fprintf(w, "Stored:      %s\n", v.StoredFilename)
	fmt.Fprintf(w, "Uploaded as: %s\n", v.OriginalFilename)
	fmt.Fprintf(w, "Size:        %d bytes (%s)\n", v.FileSize, v.MimeType)
	if v.OwnerID != nil {
		fmt.Fprintf(w, "Owner:       %d\n", *v.OwnerID)
	} else {
		fmt.Fprintln(w, "Owner:       none (orphaned)")
	}
	if v.DerivativeFilename != "" {
		fmt.Fprintf(w, "Thumbnail:   %s\n", v.DerivativeFilename)
	}
	if v.Location != nil {
		fmt.Fprintf(w, "Location:    %.6f, %.6f\n", v.Location.Latitude, v.Location.Longitude)
	}
	if v.TakenAt != nil {
		fmt.Fprintf(w, "Taken:       %s\n", v.TakenAt.Format(time.RFC3339))
	}
	if v.Display != nil {
		fmt.Fprintf(w, "Rating:      %.2f (%d ratings)\n", *v.Display, v.Count)
	} else {
		fmt.Fprintln(w, "Rating:      none")
	}
	return nil
}

func regenerate(ctx context.Context, w io.Writer, svc *photos.Service, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	photo, err := svc.RegenerateDerivatives(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Regenerated thumbnails for photo %d (%s)\n", photo.ID, photo.DerivativeFilename)
	return nil
}

// rate sets or clears one user's rating and prints the photo's summary as
// that user now sees it.
func rate(ctx context.Context, w io.Writer, svc *rating.Service, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: rate <photo> <user> <1-5|clear>")
	}
	photoID, err := parseID(args[:1])
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || userID < 1 {
		return fmt.Errorf("invalid user id %q", sanitizeCommand(args[1]))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if args[2] == "clear" {
		err = svc.Clear(ctx, photoID, userID)
	} else {
		value, convErr := strconv.Atoi(args[2])
		if convErr != nil {
			return fmt.Errorf("invalid rating %q", sanitizeCommand(args[2]))
		}
		err = svc.Set(ctx, photoID, userID, value)
	}
	if err != nil {
		return err
	}

	summary, err := svc.Summary(ctx, photoID, &userID)
	if err != nil {
		return err
	}
	if summary.Display == nil {
		fmt.Fprintf(w, "Photo %d: no ratings\n", photoID)
		return nil
	}
	fmt.Fprintf(w, "Photo %d: %.2f as seen by user %d (%d ratings)\n", photoID, *summary.Display, userID, summary.Count)
	return nil
}

// orphans lists orphaned photos, or deletes all of them with --delete.
// Deletion asks for confirmation on a terminal and requires --yes otherwise.
func orphans(ctx context.Context, in io.Reader, out io.Writer, svc *photos.Service, args []string, interactive bool) error {
	del, yes := false, false
	for _, a := range args {
		switch a {
		case "--delete":
			del = true
		case "--yes", "-y":
			yes = true
		default:
			return fmt.Errorf("unknown argument %q", sanitizeCommand(a))
		}
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.OrphanedPhotos == 0 {
		fmt.Fprintln(out, "No orphaned photos.")
		return nil
	}

	if !del {
		for offset := 0; ; offset += orphanPageSize {
			page, err := svc.ListOrphaned(ctx, orphanPageSize, offset)
			if err != nil {
				return err
			}
			for _, p := range page {
				fmt.Fprintf(out, "%d\t%s\t%s\n", p.ID, p.OriginalFilename, p.UploadedAt.Format(time.RFC3339))
			}
			if len(page) < orphanPageSize {
				return nil
			}
		}
	}

	if !yes {
		if !interactive {
			return errors.New("--delete requires --yes when not run from a terminal")
		}
		if !confirm(in, out, fmt.Sprintf("Delete %d orphaned photos and their files?", stats.OrphanedPhotos)) {
			return errors.New("aborted")
		}
	}

	result, err := svc.DeleteOrphaned(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d of %d orphaned photos\n", result.Deleted, result.Total)
	for _, e := range result.Errors {
		fmt.Fprintf(out, "  %s\n", e)
	}
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d deletions failed", len(result.Errors))
	}
	return nil
}

type statusSource interface {
	GetStats(ctx context.Context) (catalog.Stats, error)
	GetLastIntake(ctx context.Context) (time.Time, error)
}

func showStatus(ctx context.Context, w io.Writer, db statusSource) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats, err := db.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog stats: %w", err)
	}

	fmt.Fprintf(w, "Photos:          %d\n", stats.Photos)
	fmt.Fprintf(w, "Orphaned photos: %d\n", stats.OrphanedPhotos)
	fmt.Fprintf(w, "Photos with GPS: %d\n", stats.PhotosWithGPS)
	fmt.Fprintf(w, "Ratings:         %d\n", stats.Ratings)

	last, err := db.GetLastIntake(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(w, "Last intake:     unknown (%v)\n", err)
	case last.IsZero():
		fmt.Fprintln(w, "Last intake:     never")
	default:
		fmt.Fprintf(w, "Last intake:     %s\n", last.Local().Format(time.RFC1123))
	}
	return nil
}
