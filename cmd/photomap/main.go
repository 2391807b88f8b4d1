package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photomap/internal/database"
	"photomap/internal/filesystem"
	"photomap/internal/handlers"
	"photomap/internal/intake"
	"photomap/internal/lifecycle"
	"photomap/internal/logging"
	"photomap/internal/media"
	"photomap/internal/memory"
	"photomap/internal/metrics"
	"photomap/internal/startup"
)

const (
	collectorInterval = time.Minute
	shutdownTimeout   = 30 * time.Second
	lastIntakeTimeout = 5 * time.Second
)

func main() {
	startTime := time.Now()

	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(volumeResolver(config))
	retry := filesystem.DefaultRetryConfig()

	// Database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	// Memory backpressure
	monitorConfig := memory.DefaultConfig()
	monitor := memory.NewMonitor(monitorConfig)
	monitor.Start()

	// Thumbnails
	if config.UseVips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, using imaging: %v", err)
		}
	}
	thumbs := media.NewThumbnailGenerator(config.DerivativeDir, config.ThumbnailSizes, config.ThumbnailQuality, config.UseVips)
	startup.LogThumbnailInit(thumbs.Sizes(), media.IsVipsAvailable())
	metrics.InitializeMetrics(thumbs.SizeNames())

	// Pipeline
	manager := lifecycle.NewManager(lifecycle.Config{
		OriginalDir:       config.OriginalDir,
		FailedDir:         config.FailedDir,
		AllowedExtensions: config.AllowedExtensions,
		Retry:             retry,
	}, db, thumbs)

	startup.LogIntakeInit(config.PollInterval, config.IntakeWorkers)
	poller := intake.New(intake.Config{
		IncomingDir:       config.IncomingDir,
		Extensions:        config.IntakeExtensions,
		PollInterval:      config.PollInterval,
		ProcessingTimeout: config.ProcessingTimeout,
		Workers:           config.IntakeWorkers,
		Retry:             retry,
	}, manager, monitor)
	poller.SetOnResult(lastIntakeRecorder(db))

	if err := poller.Start(); err != nil {
		startup.LogFatal("Failed to start intake: %v", err)
	}
	startup.LogIntakeStarted()

	collector := metrics.NewCollector(db.MetricsStats(), db, collectorInterval)
	collector.Start()

	// Operations listener
	var srv *http.Server
	if config.MetricsEnabled {
		h := handlers.New(poller, db, monitor, handlers.Config{
			IncomingDir: config.IncomingDir,
			FailedDir:   config.FailedDir,
			Retry:       retry,
		})
		router := handlers.NewRouter(h)
		startup.LogHTTPRoutes(router)

		srv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				startup.LogFatal("Operations listener error: %v", err)
			}
		}()
	}

	startup.LogServerStarted(startup.ServerConfig{
		IncomingDir:     config.IncomingDir,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	shutdown(sig.String(), srv, poller, collector, monitor, db)
}

func shutdown(signal string, srv *http.Server, poller *intake.Poller, collector *metrics.Collector,
	monitor *memory.Monitor, db *database.Database,
) {
	startup.LogShutdownInitiated(signal)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		startup.LogShutdownStep("Shutting down operations listener")
		if err := srv.Shutdown(ctx); err != nil {
			logging.Warn("Operations listener shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Operations listener stopped")
		}
	}

	startup.LogShutdownStep("Stopping intake (in-flight files complete)")
	poller.Stop()
	startup.LogShutdownStepComplete("Intake stopped")

	collector.Stop()
	monitor.Stop()

	startup.LogShutdownStep("Shutting down libvips")
	media.ShutdownVips()

	startup.LogShutdownStep("Closing database")
	if err := db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}

// volumeResolver labels filesystem metrics by configured directory.
func volumeResolver(config *startup.Config) *filesystem.VolumeResolver {
	return filesystem.NewVolumeResolver(map[string]string{
		"incoming":   config.IncomingDir,
		"original":   config.OriginalDir,
		"derivative": config.DerivativeDir,
		"failed":     config.FailedDir,
		"database":   config.DatabaseDir,
	})
}

// lastIntakeRecorder stores the time of the most recent persisted photo.
func lastIntakeRecorder(store interface {
	SetLastIntake(ctx context.Context, t time.Time) error
},
) func(lifecycle.Result) {
	return func(r lifecycle.Result) {
		if r.Err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), lastIntakeTimeout)
		defer cancel()
		if err := store.SetLastIntake(ctx, time.Now()); err != nil {
			logging.Debug("Failed to record last intake time: %v", err)
		}
	}
}
