// Package quality samples a handful of segments from the first video
// representation and derives bitrate and visual similarity metrics.
package quality

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/manifest"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/persist"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/process"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/stats"
	"github.com/randomizedcoder/go-stream-analysis-suite/internal/timeseries"
)

const (
	// Name identifies the analyzer in logs, metrics and the suite.
	Name = "quality"

	// DefaultInterval is the standalone poll interval.
	DefaultInterval = 30 * time.Second

	// MaxSegments is the number of segment refs selected per poll.
	MaxSegments = 5

	// DefaultConcurrency bounds simultaneous segment probes.
	DefaultConcurrency = 2

	JSONFile   = "stream_quality_analysis.json"
	CSVFile    = "stream_quality_analysis.csv"
	ReportFile = "quality_report.txt"
)

// ErrNoSegments is the failure detail when no segment could be probed.
var ErrNoSegments = errors.New("no segments analyzed")

// Prober inspects segments with an external media tool.
type Prober interface {
	ProbeQuality(ctx context.Context, ref manifest.SegmentRef) (process.QualityInfo, error)
	Similarity(ctx context.Context, a, b manifest.SegmentRef) (float64, error)
}

// SegmentQuality is the probe result for one segment.
type SegmentQuality struct {
	Number int64  `json:"segment_number"`
	URL    string `json:"url"`
	process.QualityInfo
}

// Aggregate summarizes one poll. Similarity is nil when fewer than two
// segments succeeded or the comparison failed.
type Aggregate struct {
	AvgBitrate       *float64 `json:"avg_bitrate,omitempty"`
	Similarity       *float64 `json:"similarity,omitempty"`
	SegmentsAnalyzed int      `json:"segments_analyzed"`
}

// Result is the payload of a successful quality sample.
type Result struct {
	Manifest         manifest.Info    `json:"manifest_info"`
	RepresentationID string           `json:"representation_id"`
	Bandwidth        int64            `json:"bandwidth"`
	Segments         []SegmentQuality `json:"segments"`
	Aggregate        Aggregate        `json:"aggregate"`
	SessionDuration  float64          `json:"session_duration"`
}

// Config holds the collaborators of an Analyzer.
type Config struct {
	ManifestURL string
	Reader      manifest.Reader
	Prober      Prober
	Concurrency int
	Clock       timeseries.Clock
	Logger      *slog.Logger
}

// Analyzer is one quality session. It is owned by a single worker.
type Analyzer struct {
	cfg     Config
	logger  *slog.Logger
	clock   timeseries.Clock
	started time.Time
}

// New creates an Analyzer.
func New(cfg Config) *Analyzer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = timeseries.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Analyzer{
		cfg:     cfg,
		logger:  cfg.Logger.With("analyzer", Name),
		clock:   cfg.Clock,
		started: cfg.Clock.Now(),
	}
}

// Poll fetches the manifest and probes up to MaxSegments segments.
// A manifest failure returns an error and no sample.
func (a *Analyzer) Poll(ctx context.Context) (sample.Sample[Result], error) {
	now := a.clock.Now()

	snap, err := a.cfg.Reader.Fetch(ctx, a.cfg.ManifestURL)
	if err != nil {
		return sample.Sample[Result]{}, fmt.Errorf("fetch manifest: %w", err)
	}

	rep, ok := snap.FirstVideo()
	if !ok {
		return sample.FailureWithStatus[Result](now, sample.StatusError, errors.New("no video representation")), nil
	}
	refs := rep.EarliestSegments(MaxSegments)

	probed := a.probeAll(ctx, refs)

	res := Result{
		Manifest:         snap.Info(),
		RepresentationID: rep.ID,
		Bandwidth:        rep.Bandwidth,
		Segments:         make([]SegmentQuality, 0, len(refs)),
	}
	var succeeded []manifest.SegmentRef
	var bitrates []float64
	for i, p := range probed {
		if p == nil {
			continue
		}
		res.Segments = append(res.Segments, *p)
		succeeded = append(succeeded, refs[i])
		bitrates = append(bitrates, float64(p.Bitrate))
	}

	if len(res.Segments) == 0 {
		return sample.FailureWithStatus[Result](now, sample.StatusError, ErrNoSegments), nil
	}

	avg, _ := stats.MeanVariance(bitrates)
	res.Aggregate.AvgBitrate = &avg
	res.Aggregate.SegmentsAnalyzed = len(res.Segments)

	if len(succeeded) >= 2 {
		score, err := a.cfg.Prober.Similarity(ctx, succeeded[0], succeeded[len(succeeded)-1])
		if err != nil {
			a.logger.Warn("similarity_failed", "error", err)
		} else {
			score = clamp01(score)
			res.Aggregate.Similarity = &score
		}
	}

	res.SessionDuration = a.clock.Now().Sub(a.started).Seconds()
	return sample.Success(now, res), nil
}

// probeAll probes refs with bounded concurrency. The result is index-aligned
// with refs; failed probes are nil.
func (a *Analyzer) probeAll(ctx context.Context, refs []manifest.SegmentRef) []*SegmentQuality {
	out := make([]*SegmentQuality, len(refs))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			info, err := a.cfg.Prober.ProbeQuality(ctx, ref)
			if err != nil {
				a.logger.Warn("segment_probe_failed",
					"segment", ref.Number,
					"url", ref.MediaURL,
					"error", err,
				)
				return nil
			}
			out[i] = &SegmentQuality{Number: ref.Number, URL: ref.MediaURL, QualityInfo: info}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Files returns the persistence sink for this analyzer rooted at dir.
func (a *Analyzer) Files(dir string) *persist.Files[Result] {
	return persist.NewFiles(dir, JSONFile, CSVFile, ReportFile, a.Report)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
