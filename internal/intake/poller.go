package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"photomap/internal/filesystem"
	"photomap/internal/lifecycle"
	"photomap/internal/logging"
	"photomap/internal/mediatypes"
	"photomap/internal/metrics"
)

const (
	// ClaimDirName is the hidden directory under the incoming directory that
	// holds files a worker has taken ownership of.
	ClaimDirName = ".claimed"

	defaultPollInterval      = 10 * time.Second
	defaultProcessingTimeout = 2 * time.Minute
)

// Processor takes a claimed file to a terminal state.
type Processor interface {
	Process(ctx context.Context, claimedPath string) lifecycle.Result
}

// Throttler reports memory pressure. A nil *memory.Monitor satisfies it and
// never throttles.
type Throttler interface {
	// IsPaused reports critical pressure; the poll cycle is skipped.
	IsPaused() bool
	// ShouldThrottle reports high pressure; a cycle claims no more files
	// than there are workers.
	ShouldThrottle() bool
}

// Config configures the poller.
type Config struct {
	IncomingDir string
	// Extensions is the discovery list. Files outside it stay in the
	// incoming directory untouched.
	Extensions        mediatypes.ExtensionSet
	PollInterval      time.Duration
	ProcessingTimeout time.Duration
	Workers           int
	// QueueSize bounds how many claimed files may wait for a worker.
	QueueSize int
	Retry     filesystem.RetryConfig
}

// Poller scans the incoming directory on an interval, claims each eligible
// file by renaming it into a private claim directory, and hands it to a
// bounded pool of workers. A file is claimed by at most one poll.
type Poller struct {
	config    Config
	processor Processor
	throttle  Throttler
	claimDir  string

	jobs     chan string
	stopChan chan struct{}
	stopOnce sync.Once
	stopping atomic.Bool
	loopWg   sync.WaitGroup
	workerWg sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	pollMu    sync.Mutex
	isPolling bool
	started   bool
	lastPoll  time.Time
	lastError error
	polled    bool

	filesClaimed   atomic.Int64
	filesPersisted atomic.Int64
	filesFailed    atomic.Int64
	inFlight       atomic.Int64

	onResult func(lifecycle.Result)
}

// New creates a poller. Zero durations and counts take defaults.
func New(config Config, processor Processor, throttle Throttler) *Poller {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.ProcessingTimeout <= 0 {
		config.ProcessingTimeout = defaultProcessingTimeout
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = config.Workers * 2
	}
	if len(config.Extensions) == 0 {
		config.Extensions = mediatypes.ImageExtensionSet()
	}
	if config.Retry.MaxRetries == 0 && config.Retry.InitialBackoff == 0 {
		config.Retry = filesystem.DefaultRetryConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Poller{
		config:    config,
		processor: processor,
		throttle:  throttle,
		claimDir:  filepath.Join(config.IncomingDir, ClaimDirName),
		jobs:      make(chan string, config.QueueSize),
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetOnResult sets a callback invoked by workers after each file.
func (p *Poller) SetOnResult(callback func(lifecycle.Result)) {
	p.onResult = callback
}

// Start recovers files left claimed by a previous run, starts the workers
// and begins polling.
func (p *Poller) Start() error {
	p.pollMu.Lock()
	if p.started {
		p.pollMu.Unlock()
		return fmt.Errorf("poller already started")
	}
	p.started = true
	p.pollMu.Unlock()

	if n, err := p.RecoverClaimed(); err != nil {
		logging.Warn("Failed to recover claimed files: %v", err)
	} else if n > 0 {
		logging.Info("Returned %d interrupted files to %s", n, p.config.IncomingDir)
	}

	metrics.IntakeWorkers.Set(float64(p.config.Workers))
	for i := 0; i < p.config.Workers; i++ {
		p.workerWg.Add(1)
		go p.worker(i)
	}

	p.loopWg.Add(1)
	go p.pollLoop()

	logging.Info("Intake poller started: %s every %v with %d workers (extensions: %s)",
		p.config.IncomingDir, p.config.PollInterval, p.config.Workers, p.config.Extensions)
	return nil
}

// Stop stops polling, lets in-flight files finish, and returns queued but
// unstarted files to the incoming directory.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		close(p.stopChan)
		p.loopWg.Wait()

		close(p.jobs)
		p.workerWg.Wait()
		p.cancel()

		logging.Info("Intake poller stopped")
	})
}

func (p *Poller) pollLoop() {
	defer p.loopWg.Done()

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(); err != nil {
			logging.Error("Intake poll failed: %v", err)
		}

		select {
		case <-ticker.C:
		case <-p.stopChan:
			return
		}
	}
}

// Poll runs one scan-and-claim cycle and returns how many files it queued.
// It returns immediately if another cycle is running or memory is under
// pressure.
func (p *Poller) Poll() (int, error) {
	if !p.tryStartPoll() {
		metrics.IntakePollSkipped.WithLabelValues("busy").Inc()
		logging.Debug("Poll already in progress, skipping")
		return 0, nil
	}
	defer p.finishPoll()

	limit := cap(p.jobs)
	if p.throttle != nil {
		if p.throttle.IsPaused() {
			metrics.IntakePollSkipped.WithLabelValues("memory").Inc()
			logging.Warn("Memory critical, skipping intake poll")
			return 0, nil
		}
		if p.throttle.ShouldThrottle() {
			limit = min(limit, p.config.Workers)
			logging.Debug("Memory high, claiming at most %d files this poll", limit)
		}
	}

	start := time.Now()
	metrics.IntakePollsTotal.Inc()
	defer func() {
		metrics.IntakePollDuration.Observe(time.Since(start).Seconds())
		metrics.IntakeLastPollTimestamp.Set(float64(time.Now().Unix()))
	}()

	queued, err := p.scan(limit)
	p.recordPoll(start, err)
	if err != nil {
		metrics.IntakePollErrors.Inc()
		return queued, err
	}

	if queued > 0 {
		logging.Info("Queued %d files from %s", queued, p.config.IncomingDir)
	}
	return queued, nil
}

func (p *Poller) scan(limit int) (int, error) {
	entries, err := filesystem.ReadDirWithRetry(p.config.IncomingDir, p.config.Retry)
	if err != nil {
		return 0, fmt.Errorf("failed to read incoming directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	queued := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !p.config.Extensions.Matches(name) {
			continue
		}
		metrics.IntakeFilesDiscovered.Inc()

		if p.stopping.Load() || queued >= limit {
			break
		}

		// Only this goroutine sends, so a free slot stays free until the send.
		if len(p.jobs) >= cap(p.jobs) {
			logging.Debug("Intake queue full, leaving remaining files for the next poll")
			break
		}

		claimed, err := p.claim(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				metrics.IntakeClaimConflicts.Inc()
				logging.Debug("%s was taken before it could be claimed", name)
			} else {
				logging.Warn("Failed to claim %s: %v", name, err)
			}
			continue
		}

		metrics.IntakeFilesClaimed.Inc()
		p.filesClaimed.Add(1)
		p.jobs <- claimed
		queued++
	}

	return queued, nil
}

// claim renames name into its own directory under the claim root, so two
// files with the same name never collide while in flight.
func (p *Poller) claim(name string) (string, error) {
	dir := filepath.Join(p.claimDir, uuid.NewString())
	claimed, err := filesystem.Claim(filepath.Join(p.config.IncomingDir, name), dir, p.config.Retry)
	if err != nil {
		_ = os.Remove(dir)
		return "", err
	}
	return claimed, nil
}

func (p *Poller) worker(id int) {
	defer p.workerWg.Done()

	logging.Debug("Intake worker %d started", id)

	for path := range p.jobs {
		if p.stopping.Load() {
			p.release(path)
			continue
		}
		p.process(path)
	}

	logging.Debug("Intake worker %d finished", id)
}

func (p *Poller) process(path string) {
	p.inFlight.Add(1)
	metrics.IntakeInFlight.Inc()
	defer func() {
		p.inFlight.Add(-1)
		metrics.IntakeInFlight.Dec()
	}()

	ctx, cancel := context.WithTimeout(p.ctx, p.config.ProcessingTimeout)
	result := p.processor.Process(ctx, path)
	cancel()

	if err := os.Remove(filepath.Dir(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Debug("Failed to remove claim directory %s: %v", filepath.Dir(path), err)
	}

	if result.Err != nil {
		p.filesFailed.Add(1)
	} else {
		p.filesPersisted.Add(1)
	}

	if p.onResult != nil {
		p.onResult(result)
	}
}

// release returns a claimed but unprocessed file to the incoming directory.
func (p *Poller) release(path string) {
	dst := filepath.Join(p.config.IncomingDir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		logging.Warn("Cannot release %s: a file with that name is already in %s", path, p.config.IncomingDir)
		return
	}
	if err := filesystem.Move(path, dst, p.config.Retry); err != nil {
		logging.Error("Failed to release %s: %v", path, err)
		return
	}
	_ = os.Remove(filepath.Dir(path))
}

// RecoverClaimed returns files left in the claim directory by an
// interrupted run to the incoming directory. It must not run while workers
// are active.
func (p *Poller) RecoverClaimed() (int, error) {
	dirs, err := os.ReadDir(p.claimDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, d := range dirs {
		path := filepath.Join(p.claimDir, d.Name())
		if !d.IsDir() {
			p.release(path)
			recovered++
			continue
		}

		files, err := os.ReadDir(path)
		if err != nil {
			logging.Warn("Failed to read claim directory %s: %v", path, err)
			continue
		}
		for _, f := range files {
			if f.IsDir() || strings.HasSuffix(f.Name(), ".partial") {
				continue
			}
			p.release(filepath.Join(path, f.Name()))
			recovered++
		}
		_ = os.Remove(path)
	}

	return recovered, nil
}

func (p *Poller) tryStartPoll() bool {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	if p.isPolling {
		return false
	}
	p.isPolling = true
	return true
}

func (p *Poller) finishPoll() {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()
	p.isPolling = false
}

func (p *Poller) recordPoll(at time.Time, err error) {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()
	p.lastPoll = at
	p.lastError = err
	p.polled = true
}

// IsReady reports whether at least one poll has completed without error.
func (p *Poller) IsReady() bool {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()
	return p.polled && p.lastError == nil
}

// Status is a snapshot of the poller for health endpoints.
type Status struct {
	Ready     bool      `json:"ready"`
	Polling   bool      `json:"polling"`
	LastPoll  time.Time `json:"lastPoll,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	Workers   int       `json:"workers"`
	Queued    int       `json:"queued"`
	InFlight  int64     `json:"inFlight"`
	Claimed   int64     `json:"claimed"`
	Persisted int64     `json:"persisted"`
	Failed    int64     `json:"failed"`
}

// GetStatus returns the current poller status.
func (p *Poller) GetStatus() Status {
	p.pollMu.Lock()
	defer p.pollMu.Unlock()

	s := Status{
		Ready:     p.polled && p.lastError == nil,
		Polling:   p.isPolling,
		LastPoll:  p.lastPoll,
		Workers:   p.config.Workers,
		Queued:    len(p.jobs),
		InFlight:  p.inFlight.Load(),
		Claimed:   p.filesClaimed.Load(),
		Persisted: p.filesPersisted.Load(),
		Failed:    p.filesFailed.Load(),
	}
	if p.lastError != nil {
		s.LastError = p.lastError.Error()
	}
	return s
}
