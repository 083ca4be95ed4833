// Package metrics provides Prometheus metrics for the stream analysis suite.
//
// The collector is fed from two places: worker poll outcomes (it implements
// worker.Observer) and the aggregation cycle's scores.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dimension label values.
const (
	DimensionQuality    = "quality"
	DimensionLatency    = "latency"
	DimensionAdaptation = "adaptation"
)

// pollBuckets covers fast HEAD probes up to ffprobe runs on several segments.
var pollBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// Collector manages all Prometheus metrics for one session.
type Collector struct {
	info            *prometheus.GaugeVec
	health          prometheus.Gauge
	dimensionScore  *prometheus.GaugeVec
	dimensionAvail  *prometheus.GaugeVec
	samplesTotal    *prometheus.CounterVec
	pollDuration    *prometheus.HistogramVec
	persistErrors   *prometheus.CounterVec
	switchingEvents *prometheus.CounterVec
	manifestLatency prometheus.Gauge
	stability       prometheus.Gauge
	elapsed         prometheus.Gauge

	startTime time.Time

	// For summary generation
	mu            sync.Mutex
	samples       map[string]map[string]int64
	persistFails  map[string]int64
	switches      map[string]int64
	lastHealth    float64
	healthUpdates int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version     string
	ManifestURL string
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_info",
			Help: "Information about the analysis session (value always 1)",
		}, []string{"version", "manifest_url"}),

		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_health_score",
			Help: "Overall stream health score (0-1)",
		}),
		dimensionScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_dimension_score",
			Help: "Score per analysis dimension (0-1, 0 when unavailable)",
		}, []string{"dimension"}),
		dimensionAvail: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stream_dimension_available",
			Help: "1 if the dimension had a usable result in the last cycle",
		}, []string{"dimension"}),

		samplesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_analyzer_samples_total",
			Help: "Analyzer polls by outcome status",
		}, []string{"analyzer", "status"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stream_analyzer_poll_duration_seconds",
			Help:    "Wall time of one analyzer poll",
			Buckets: pollBuckets,
		}, []string{"analyzer"}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_persist_errors_total",
			Help: "Failed writes of an analyzer's output files",
		}, []string{"analyzer"}),

		switchingEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_switching_events_total",
			Help: "Bitrate switching events by direction",
		}, []string{"direction"}),
		manifestLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_manifest_latency_ms",
			Help: "Mean manifest latency over the latency window",
		}),
		stability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_stability_score",
			Help: "Bitrate stability score (0-1)",
		}),
		elapsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_session_elapsed_seconds",
			Help: "Seconds since the session started",
		}),

		startTime:    time.Now(),
		samples:      make(map[string]map[string]int64),
		persistFails: make(map[string]int64),
		switches:     make(map[string]int64),
	}

	registry.MustRegister(
		c.info,
		c.health,
		c.dimensionScore,
		c.dimensionAvail,
		c.samplesTotal,
		c.pollDuration,
		c.persistErrors,
		c.switchingEvents,
		c.manifestLatency,
		c.stability,
		c.elapsed,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	c.info.WithLabelValues(version, cfg.ManifestURL).Set(1)
	return c
}

// =============================================================================
// Worker observation
// =============================================================================

// ObservePoll records one poll outcome.
func (c *Collector) ObservePoll(analyzer, status string, elapsed time.Duration) {
	c.samplesTotal.WithLabelValues(analyzer, status).Inc()
	c.pollDuration.WithLabelValues(analyzer).Observe(elapsed.Seconds())

	c.mu.Lock()
	byStatus := c.samples[analyzer]
	if byStatus == nil {
		byStatus = make(map[string]int64)
		c.samples[analyzer] = byStatus
	}
	byStatus[status]++
	c.mu.Unlock()
}

// ObservePersistError records a failed write.
func (c *Collector) ObservePersistError(analyzer string) {
	c.persistErrors.WithLabelValues(analyzer).Inc()

	c.mu.Lock()
	c.persistFails[analyzer]++
	c.mu.Unlock()
}

// RecordSwitch records one bitrate switching event.
func (c *Collector) RecordSwitch(direction string) {
	c.switchingEvents.WithLabelValues(direction).Inc()

	c.mu.Lock()
	c.switches[direction]++
	c.mu.Unlock()
}

// =============================================================================
// Score updates
// =============================================================================

// DimensionUpdate is one dimension's score.
type DimensionUpdate struct {
	Score     float64
	Available bool
}

// ScoreUpdate holds one aggregation cycle's figures.
// This mirrors suite.AggregateSnapshot to keep the packages independent.
type ScoreUpdate struct {
	Health     float64
	Quality    DimensionUpdate
	Latency    DimensionUpdate
	Adaptation DimensionUpdate

	// Optional details; nil leaves the gauge unchanged.
	ManifestLatencyMs *float64
	StabilityScore    *float64
}

// RecordScores updates the score gauges.
func (c *Collector) RecordScores(u ScoreUpdate) {
	c.health.Set(u.Health)
	c.setDimension(DimensionQuality, u.Quality)
	c.setDimension(DimensionLatency, u.Latency)
	c.setDimension(DimensionAdaptation, u.Adaptation)
	if u.ManifestLatencyMs != nil {
		c.manifestLatency.Set(*u.ManifestLatencyMs)
	}
	if u.StabilityScore != nil {
		c.stability.Set(*u.StabilityScore)
	}
	c.elapsed.Set(time.Since(c.startTime).Seconds())

	c.mu.Lock()
	c.lastHealth = u.Health
	c.healthUpdates++
	c.mu.Unlock()
}

func (c *Collector) setDimension(name string, d DimensionUpdate) {
	c.dimensionScore.WithLabelValues(name).Set(d.Score)
	avail := 0.0
	if d.Available {
		avail = 1
	}
	c.dimensionAvail.WithLabelValues(name).Set(avail)
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for generating an exit summary.
type Summary struct {
	Duration        time.Duration
	Samples         map[string]map[string]int64
	PersistErrors   map[string]int64
	SwitchingEvents map[string]int64
	LastHealth      float64
	HealthUpdates   int64
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:        time.Since(c.startTime),
		Samples:         make(map[string]map[string]int64, len(c.samples)),
		PersistErrors:   make(map[string]int64, len(c.persistFails)),
		SwitchingEvents: make(map[string]int64, len(c.switches)),
		LastHealth:      c.lastHealth,
		HealthUpdates:   c.healthUpdates,
	}
	for analyzer, byStatus := range c.samples {
		cp := make(map[string]int64, len(byStatus))
		for status, n := range byStatus {
			cp[status] = n
		}
		s.Samples[analyzer] = cp
	}
	for k, v := range c.persistFails {
		s.PersistErrors[k] = v
	}
	for k, v := range c.switches {
		s.SwitchingEvents[k] = v
	}
	return s
}

// TotalSamples returns the number of polls observed for analyzer.
func (c *Collector) TotalSamples(analyzer string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, n := range c.samples[analyzer] {
		total += n
	}
	return total
}
