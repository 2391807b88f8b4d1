package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"photomap/internal/logging"
	"photomap/internal/media"
	"photomap/internal/mediatypes"
	"photomap/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Defaults
const (
	DefaultPollInterval      = 10 * time.Second
	DefaultProcessingTimeout = 2 * time.Minute
	DefaultThumbnailQuality  = 85
	DatabaseFilename         = "photomap.db"

	// Each worker may hold a fully decoded original in memory.
	maxIntakeWorkers = 8
)

// Config holds all application configuration
type Config struct {
	IncomingDir   string
	OriginalDir   string
	DerivativeDir string
	FailedDir     string
	DatabaseDir   string

	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	IntakeWorkers     int

	// AllowedExtensions is validated by the lifecycle; IntakeExtensions
	// decides what the poller picks up at all.
	AllowedExtensions mediatypes.ExtensionSet
	IntakeExtensions  mediatypes.ExtensionSet

	ThumbnailSizes   []media.Size
	ThumbnailQuality int
	UseVips          bool

	MetricsPort    string
	MetricsEnabled bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables,
// seeded from a .env file in the working directory when one exists.
func LoadConfig() (*Config, error) {
	envFileErr := godotenv.Load()

	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	switch {
	case envFileErr == nil:
		logging.Info("  Loaded environment from .env")
	case !errors.Is(envFileErr, fs.ErrNotExist):
		logging.Warn("  Failed to read .env: %v", envFileErr)
	}

	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := config.prepareDirectories(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    libvips:     %s", enabledString(config.UseVips))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// configFromEnv parses every setting, warning and falling back to defaults
// on malformed values. It touches no directories.
func configFromEnv() (*Config, error) {
	incomingDir := getEnv("INCOMING_DIR", "/data/incoming")
	originalDir := getEnv("ORIGINAL_DIR", "/data/originals")
	derivativeDir := getEnv("DERIVATIVE_DIR", "/data/thumbnails")
	failedDir := getEnv("FAILED_DIR", "/data/failed")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	allowedStr := getEnv("ALLOWED_EXTENSIONS", strings.Join(mediatypes.DefaultAllowedExtensions, ","))
	intakeStr := getEnv("INTAKE_EXTENSIONS", mediatypes.ImageExtensionSet().String())
	sizesStr := getEnv("THUMBNAIL_SIZES", "medium:300")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	useVips := getEnvBool("USE_VIPS", true)

	logging.Info("  INCOMING_DIR:        %s", incomingDir)
	logging.Info("  ORIGINAL_DIR:        %s", originalDir)
	logging.Info("  DERIVATIVE_DIR:      %s", derivativeDir)
	logging.Info("  FAILED_DIR:          %s", failedDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  ALLOWED_EXTENSIONS:  %s", allowedStr)
	logging.Info("  INTAKE_EXTENSIONS:   %s", intakeStr)
	logging.Info("  THUMBNAIL_SIZES:     %s", sizesStr)
	logging.Info("  USE_VIPS:            %v", useVips)
	logging.Info("  METRICS_PORT:        %s", metricsPort)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	pollInterval := getEnvDuration("POLL_INTERVAL", DefaultPollInterval)
	processingTimeout := getEnvDuration("PROCESSING_TIMEOUT", DefaultProcessingTimeout)
	quality := getEnvInt("THUMBNAIL_QUALITY", DefaultThumbnailQuality)
	if quality < 1 || quality > 100 {
		logging.Warn("  THUMBNAIL_QUALITY %d out of range, using default: %d", quality, DefaultThumbnailQuality)
		quality = DefaultThumbnailQuality
	}

	sizes, err := media.ParseSizes(sizesStr)
	if err != nil {
		return nil, fmt.Errorf("invalid THUMBNAIL_SIZES: %w", err)
	}

	allowed := mediatypes.ParseExtensionList(allowedStr)
	if len(allowed) == 0 {
		return nil, fmt.Errorf("ALLOWED_EXTENSIONS is empty")
	}
	intake := mediatypes.ParseExtensionList(intakeStr)
	if len(intake) == 0 {
		return nil, fmt.Errorf("INTAKE_EXTENSIONS is empty")
	}

	intakeWorkers := workers.ForMixed(maxIntakeWorkers)

	logging.Info("  POLL_INTERVAL:       %v", pollInterval)
	logging.Info("  PROCESSING_TIMEOUT:  %v", processingTimeout)
	logging.Info("  THUMBNAIL_QUALITY:   %d", quality)
	logging.Info("  %-20s %d", workers.OverrideEnv+":", intakeWorkers)

	paths := []struct {
		name string
		path *string
	}{
		{"incoming", &incomingDir},
		{"original", &originalDir},
		{"derivative", &derivativeDir},
		{"failed", &failedDir},
		{"database", &databaseDir},
	}
	for _, p := range paths {
		abs, err := filepath.Abs(*p.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", p.name, err)
		}
		*p.path = abs
	}

	return &Config{
		IncomingDir:       incomingDir,
		OriginalDir:       originalDir,
		DerivativeDir:     derivativeDir,
		FailedDir:         failedDir,
		DatabaseDir:       databaseDir,
		PollInterval:      pollInterval,
		ProcessingTimeout: processingTimeout,
		IntakeWorkers:     intakeWorkers,
		AllowedExtensions: allowed,
		IntakeExtensions:  intake,
		ThumbnailSizes:    sizes,
		ThumbnailQuality:  quality,
		UseVips:           useVips,
		MetricsPort:       metricsPort,
		MetricsEnabled:    metricsEnabled,
		DatabasePath:      filepath.Join(databaseDir, DatabaseFilename),
	}, nil
}

// prepareDirectories creates every directory and checks it is writable.
// All of them are required: intake cannot run with any one missing.
func (c *Config) prepareDirectories() error {
	dirs := []struct {
		name string
		path string
	}{
		{"incoming", c.IncomingDir},
		{"original", c.OriginalDir},
		{"derivative", c.DerivativeDir},
		{"failed", c.FailedDir},
		{"database", c.DatabaseDir},
	}

	for _, d := range dirs {
		logging.Info("  %-10s %s", d.name+":", d.path)
		if err := ensureDirectory(d.path, d.name); err != nil {
			return fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Debug("    [OK] %s directory is writable", d.name)
	}

	for _, size := range c.ThumbnailSizes {
		dir := filepath.Join(c.DerivativeDir, size.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create derivative directory %s: %w", dir, err)
		}
	}

	logging.Info("  [OK] All directories ready")
	return nil
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogThumbnailInit logs the derivative sizes and backend
func LogThumbnailInit(sizes []media.Size, vipsAvailable bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("THUMBNAIL GENERATOR")
	logging.Info("------------------------------------------------------------")
	for _, s := range sizes {
		logging.Info("  %-10s max %dpx", s.Name, s.Max)
	}
	if vipsAvailable {
		logging.Info("  Backend: libvips (imaging fallback)")
	} else {
		logging.Info("  Backend: imaging")
	}
}

// LogIntakeInit logs intake poller initialization
func LogIntakeInit(interval time.Duration, workerCount int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INTAKE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Poll interval: %v", interval)
	logging.Info("  Workers:       %d", workerCount)
	logging.Info("  Starting intake poller...")
}

// LogIntakeStarted logs successful poller start
func LogIntakeStarted() {
	logging.Info("  [OK] Intake poller started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the operations listener routes at debug level
func LogHTTPRoutes(router *mux.Router) {
	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })

	logging.Debug("  Registered routes (%d total):", len(routes))
	for _, route := range routes {
		logging.Debug("    %-6s %s", route.Method, route.Path)
	}
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	IncomingDir     string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PHOTOMAP STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Watching:        %s", config.IncomingDir)
	logging.Info("")
	if config.MetricsEnabled {
		logging.Info("  Operations:      http://0.0.0.0:%s", config.MetricsPort)
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
		logging.Info("    Health:        http://localhost:%s/healthz", config.MetricsPort)
	} else {
		logging.Info("  Operations:      DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
        __          __
   ____/ /_  ____  / /_____  ____ ___  ____ _____
  / __ \/ __ \/ __ \/ __/ __ \/ __ '__ \/ __ '/ __ \
 / /_/ / / / / /_/ / /_/ /_/ / / / / / / /_/ / /_/ /
/ .___/_/ /_/\____/\__/\____/_/ /_/ /_/\__,_/ .___/
/_/                                        /_/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if name == "incoming" && logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("    %d entries waiting", len(entries))
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
