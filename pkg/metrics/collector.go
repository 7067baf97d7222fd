package metrics

import (
	"context"
	"time"

	"github.com/contaixt/contaixt/pkg/types"
)

// StatsSource provides job queue statistics for the collector.
type StatsSource interface {
	JobStats(ctx context.Context) ([]types.JobStat, error)
}

const (
	collectInterval = 15 * time.Second
	collectTimeout  = 10 * time.Second
)

// Collector periodically refreshes queue gauges from the job store.
type Collector struct {
	source StatsSource
	done   chan struct{}
}

// NewCollector builds a collector over the given stats source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		done:   make(chan struct{}),
	}
}

// Start launches the refresh loop. The first refresh runs immediately
// so gauges are populated before the first scrape.
func (c *Collector) Start() {
	go c.run()
}

// Stop terminates the refresh loop.
func (c *Collector) Stop() {
	close(c.done)
}

func (c *Collector) run() {
	ticker := time.NewTicker(collectInterval)
	defer ticker.Stop()

	c.collect()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	stats, err := c.source.JobStats(ctx)
	if err != nil {
		return
	}

	// Reset so buckets that drained to zero do not keep stale values.
	JobsTotal.Reset()
	for _, stat := range stats {
		JobsTotal.WithLabelValues(string(stat.Type), string(stat.Status)).Set(float64(stat.Count))
	}
}
