package handlers

import (
	"context"
	"time"

	"photomap/internal/catalog"
	"photomap/internal/filesystem"
	"photomap/internal/intake"
)

// IntakeStatus reports the state of the intake poller.
type IntakeStatus interface {
	IsReady() bool
	GetStatus() intake.Status
}

// StatsSource provides catalog totals.
type StatsSource interface {
	GetStats(ctx context.Context) (catalog.Stats, error)
}

// MemoryStatus reports heap pressure. A nil *memory.Monitor satisfies it.
type MemoryStatus interface {
	GetUsage() float64
	IsPaused() bool
}

// Config holds the directories the operator endpoints act on.
type Config struct {
	IncomingDir string
	FailedDir   string
	Retry       filesystem.RetryConfig
}

// Handlers serves the operations listener: health, version, metrics and
// failed file management.
type Handlers struct {
	intake  IntakeStatus
	stats   StatsSource
	memory  MemoryStatus
	config  Config
	started time.Time
}

// New creates the operations handlers.
func New(intake IntakeStatus, stats StatsSource, memory MemoryStatus, config Config) *Handlers {
	return &Handlers{
		intake:  intake,
		stats:   stats,
		memory:  memory,
		config:  config,
		started: time.Now(),
	}
}
