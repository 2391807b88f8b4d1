package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"photomap/internal/catalog"
	"photomap/internal/logging"
	"photomap/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// schemaVersion is stored in the metadata table.
const schemaVersion = 1

// Database is the sqlite implementation of catalog.Store.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	now    func() time.Time
}

var _ catalog.Store = (*Database)(nil)

// New opens (creating if needed) the catalog database at dbPath. The parent
// directory must already exist and be writable; startup.LoadConfig checks
// this before New is called.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// WAL for concurrent readers, busy_timeout against "database is locked",
	// foreign keys for rating cascade and owner SET NULL.
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS photos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
		filename TEXT NOT NULL UNIQUE,
		original_filename TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		mime_type TEXT NOT NULL,
		thumbnail_filename TEXT,
		gps_latitude REAL,
		gps_longitude REAL,
		taken_at INTEGER,
		uploaded_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		CHECK ((gps_latitude IS NULL) = (gps_longitude IS NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_photos_gps ON photos(gps_latitude, gps_longitude);
	CREATE INDEX IF NOT EXISTS idx_photos_taken_at ON photos(taken_at);
	CREATE INDEX IF NOT EXISTS idx_photos_uploaded_at ON photos(uploaded_at);
	CREATE INDEX IF NOT EXISTS idx_photos_user ON photos(user_id);

	CREATE TABLE IF NOT EXISTS ratings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		photo_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		created_at INTEGER NOT NULL,
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		UNIQUE(photo_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_photo ON ratings(photo_id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err = d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	err = d.runMigrations(ctx)
	return err
}

// runMigrations records the schema version and applies upgrades from older
// versions. Version 1 is the first released schema.
func (d *Database) runMigrations(ctx context.Context) error {
	current, err := d.GetMetadata(ctx, "schema_version")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current == strconv.Itoa(schemaVersion) {
		return nil
	}

	if current != "" {
		logging.Info("Migrating database schema from version %s to %d", current, schemaVersion)
	}

	return d.SetMetadata(ctx, "schema_version", strconv.Itoa(schemaVersion))
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// withTx runs fn in a transaction, committing on success.
func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	txStart := time.Now()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(time.Since(txStart).Seconds())
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(time.Since(txStart).Seconds())
	return tx.Commit()
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// persistenceError wraps a driver error so callers can match
// catalog.ErrPersistence. Foreign key violations map to ErrNotFound since
// they mean the referenced photo or user is gone.
func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%s: %w: %w", op, catalog.ErrNotFound, err)
	}

	return fmt.Errorf("%s: %w: %w", op, catalog.ErrPersistence, err)
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s is read-only (mode %v), writes will fail", path, info.Mode())
		}
	}

	return nil
}

// MetricsStats adapts the database to metrics.StatsProvider.
func (d *Database) MetricsStats() metrics.StatsProvider {
	return metricsStats{d}
}

type metricsStats struct{ d *Database }

func (m metricsStats) GetStats(ctx context.Context) (metrics.Stats, error) {
	s, err := m.d.GetStats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats(s), nil
}
