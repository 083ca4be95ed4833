// Package latency measures manifest and segment round-trip times and keeps
// rolling windows of the results.
package latency

import (
	"context"
	"log/slog"
	"time"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/manifest"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/probe"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
)

const (
	// Name identifies the analyzer in logs, metrics and the suite.
	Name = "latency"

	// DefaultWindowSize is the number of measurements kept per window.
	DefaultWindowSize = 50

	// DefaultInterval is the standalone poll interval.
	DefaultInterval = 5 * time.Second

	// SegmentsPerPoll is the number of segments timed each poll.
	SegmentsPerPoll = 2

	JSONFile   = "latency_analysis.json"
	CSVFile    = "latency_analysis.csv"
	ReportFile = "latency_report.txt"
)

// Result is the payload of a successful latency sample.
type Result struct {
	ManifestURL         string                `json:"manifest_url"`
	ManifestMeasurement probe.Measurement     `json:"manifest_measurement"`
	SegmentMeasurements []probe.Measurement   `json:"segment_measurements"`
	SegmentInfo         *manifest.SegmentInfo `json:"segment_info,omitempty"`
	ManifestMetrics     *stats.WindowMetrics  `json:"manifest_metrics,omitempty"`
	SegmentMetrics      *stats.WindowMetrics  `json:"segment_metrics,omitempty"`
	SessionDuration     float64               `json:"session_duration"`
}

// Config holds the collaborators of an Analyzer.
type Config struct {
	ManifestURL string
	Reader      manifest.Reader

	// ManifestProber times the manifest GET; SegmentProber times segment GETs.
	ManifestProber probe.LatencyProber
	SegmentProber  probe.LatencyProber

	WindowSize int
	Clock      timeseries.Clock
	Logger     *slog.Logger
}

// Analyzer is one latency session. It is owned by a single worker.
type Analyzer struct {
	cfg     Config
	logger  *slog.Logger
	clock   timeseries.Clock
	started time.Time

	manifestWindow *timeseries.History[probe.Measurement]
	segmentWindow  *timeseries.History[probe.Measurement]
}

// New creates an Analyzer. Nil probers default to HTTP GET probers with the
// standard manifest and segment timeouts.
func New(cfg Config) *Analyzer {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.Clock == nil {
		cfg.Clock = timeseries.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ManifestProber == nil {
		cfg.ManifestProber = probe.NewHTTPProber("GET", probe.ManifestTimeout, "")
	}
	if cfg.SegmentProber == nil {
		cfg.SegmentProber = probe.NewHTTPProber("GET", probe.SegmentTimeout, "")
	}
	return &Analyzer{
		cfg:            cfg,
		logger:         cfg.Logger.With("analyzer", Name),
		clock:          cfg.Clock,
		started:        cfg.Clock.Now(),
		manifestWindow: timeseries.NewHistory[probe.Measurement](cfg.WindowSize),
		segmentWindow:  timeseries.NewHistory[probe.Measurement](cfg.WindowSize),
	}
}

// Poll times the manifest and up to two segments.
//
// Segment timing does not depend on the manifest measurement: a manifest
// timeout or HTTP error is carried in ManifestMeasurement and counted in
// the manifest window, and the sample stays a success with both window
// summaries attached.
func (a *Analyzer) Poll(ctx context.Context) (sample.Sample[Result], error) {
	now := a.clock.Now()

	m := a.cfg.ManifestProber.ProbeLatency(ctx, a.cfg.ManifestURL)
	a.manifestWindow.Append(m)
	if !m.OK() {
		a.logger.Warn("manifest_probe_failed",
			"status", string(m.Status),
			"http_status", m.HTTPStatus,
			"error", m.Error,
		)
	}

	res := Result{
		ManifestURL:         a.cfg.ManifestURL,
		ManifestMeasurement: m,
		SegmentMeasurements: []probe.Measurement{},
	}

	snap, err := a.cfg.Reader.Fetch(ctx, a.cfg.ManifestURL)
	if err != nil {
		a.logger.Warn("manifest_fetch_failed", "error", err)
	} else if rep, ok := snap.FirstVideo(); ok {
		if info, ok := rep.SegmentInfo(); ok {
			res.SegmentInfo = &info
		}
		for _, ref := range rep.EarliestSegments(SegmentsPerPoll) {
			sm := a.cfg.SegmentProber.ProbeLatency(ctx, ref.MediaURL)
			a.segmentWindow.Append(sm)
			res.SegmentMeasurements = append(res.SegmentMeasurements, sm)
			if !sm.OK() {
				a.logger.Debug("segment_probe_failed", "url", ref.MediaURL, "status", string(sm.Status), "error", sm.Error)
			}
		}
	}

	res.ManifestMetrics = a.ManifestMetrics()
	res.SegmentMetrics = a.SegmentMetrics()
	res.SessionDuration = a.clock.Now().Sub(a.started).Seconds()
	return sample.Success(now, res), nil
}

// ManifestMetrics summarizes the manifest window.
func (a *Analyzer) ManifestMetrics() *stats.WindowMetrics {
	return summarize(a.manifestWindow.Snapshot())
}

// SegmentMetrics summarizes the segment window.
func (a *Analyzer) SegmentMetrics() *stats.WindowMetrics {
	return summarize(a.segmentWindow.Snapshot())
}

// RecentManifestMeasurements returns the newest n manifest measurements.
func (a *Analyzer) RecentManifestMeasurements(n int) []probe.Measurement {
	return a.manifestWindow.Last(n)
}

// Files returns the persistence sink for this analyzer rooted at dir.
func (a *Analyzer) Files(dir string) *persist.Files[Result] {
	return persist.NewFiles(dir, JSONFile, CSVFile, ReportFile, a.Report)
}

func summarize(ms []probe.Measurement) *stats.WindowMetrics {
	obs := make([]stats.Observation, len(ms))
	for i, m := range ms {
		obs[i] = stats.Observation{Status: m.Status, Value: m.LatencyMs}
	}
	return stats.Summarize(obs)
}
