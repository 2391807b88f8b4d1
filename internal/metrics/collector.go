package metrics

import (
	"context"
	"time"

	"photomap/internal/logging"
)

// StatsProvider reports catalog totals for the collector.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// ConnectionReporter refreshes connection-pool gauges.
type ConnectionReporter interface {
	UpdateDBMetrics()
}

// Stats holds the current catalog totals
type Stats struct {
	Photos         int
	OrphanedPhotos int
	PhotosWithGPS  int
	Ratings        int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	connections   ConnectionReporter
	interval      time.Duration
	timeout       time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. connections may be nil.
func NewCollector(provider StatsProvider, connections ConnectionReporter, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		connections:   connections,
		interval:      interval,
		timeout:       10 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.connections != nil {
		c.connections.UpdateDBMetrics()
	}

	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogPhotosTotal.Set(float64(stats.Photos))
	CatalogOrphanedPhotos.Set(float64(stats.OrphanedPhotos))
	CatalogPhotosWithGPS.Set(float64(stats.PhotosWithGPS))
	CatalogRatingsTotal.Set(float64(stats.Ratings))

	logging.Debug("Metrics collected: photos=%d, orphaned=%d, gps=%d, ratings=%d",
		stats.Photos, stats.OrphanedPhotos, stats.PhotosWithGPS, stats.Ratings)
}
